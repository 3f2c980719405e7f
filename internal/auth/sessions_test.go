package auth

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTokenCodec_SignAndVerify(t *testing.T) {
	codec := NewTokenCodec([]byte(strings.Repeat("x", 32)))

	encoded := codec.EncodeSessionID("abc")
	if encoded == "abc" {
		t.Fatalf("expected signed token value")
	}

	id, ok := codec.DecodeSessionID(encoded)
	if !ok || id != "abc" {
		t.Fatalf("expected decode ok for signed token")
	}

	_, ok = codec.DecodeSessionID(encoded + "x")
	if ok {
		t.Fatalf("expected tampered token to fail verification")
	}
}

func TestTokenCodec_Unsigned(t *testing.T) {
	codec := NewTokenCodec(nil)
	id, ok := codec.DecodeSessionID("abc")
	if !ok || id != "abc" {
		t.Fatalf("expected unsigned token to decode")
	}
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest("GET", "/v1/games", nil)
	if _, ok := BearerToken(r); ok {
		t.Fatalf("expected no token without header")
	}

	r.Header.Set("Authorization", "Bearer tok.sig")
	token, ok := BearerToken(r)
	if !ok || token != "tok.sig" {
		t.Fatalf("unexpected token: %q ok=%v", token, ok)
	}

	r.Header.Set("Authorization", "bearer tok.sig")
	if _, ok := BearerToken(r); !ok {
		t.Fatalf("expected case-insensitive scheme")
	}

	r.Header.Set("Authorization", "Basic dXNlcg==")
	if _, ok := BearerToken(r); ok {
		t.Fatalf("expected non-bearer scheme to be rejected")
	}

	r.Header.Set("Authorization", "Bearer   ")
	if _, ok := BearerToken(r); ok {
		t.Fatalf("expected empty token to be rejected")
	}
}
