package offline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"Lundawebserver/internal/results"
)

// Transport carries batches to the server. The protocol is transport
// agnostic; this interface is all the syncer knows about the network.
type Transport interface {
	SubmitBatch(ctx context.Context, gameID string, ops []results.Op) (results.BatchOpsResult, error)
	FetchResults(ctx context.Context, gameID string) (*results.Document, error)
}

// TransportError is a recoverable delivery failure: the batch may retry with
// backoff and its ops stay pending.
type TransportError struct {
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transport failure (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RejectedError is a permanent server rejection (malformed request, auth).
// Never retried.
type RejectedError struct {
	Status  int
	Code    string
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("rejected (status %d, %s): %s", e.Status, e.Code, e.Message)
}

// HTTPTransport talks to the batch endpoint of the results API.
type HTTPTransport struct {
	BaseURL string
	// Token supplies the bearer session token per request.
	Token  func(ctx context.Context) (string, error)
	Client *http.Client
}

func (t *HTTPTransport) client() *http.Client {
	if t.Client != nil {
		return t.Client
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func (t *HTTPTransport) do(ctx context.Context, method, url string, body, out any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.Token != nil {
		tok, err := t.Token(ctx)
		if err != nil {
			return &RejectedError{Status: http.StatusUnauthorized, Code: "no_token", Message: err.Error()}
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := t.client().Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &TransportError{Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
		}
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		// Includes 503 game_busy: the whole batch retries later.
		return &TransportError{Status: resp.StatusCode, Err: fmt.Errorf("server unavailable")}
	default:
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&env)
		return &RejectedError{Status: resp.StatusCode, Code: env.Error.Code, Message: env.Error.Message}
	}
}

func (t *HTTPTransport) SubmitBatch(ctx context.Context, gameID string, ops []results.Op) (results.BatchOpsResult, error) {
	var res results.BatchOpsResult
	url := fmt.Sprintf("%s/v1/games/%s/results/ops", t.BaseURL, gameID)
	payload := struct {
		Ops []results.Op `json:"ops"`
	}{Ops: ops}
	if err := t.do(ctx, http.MethodPost, url, payload, &res); err != nil {
		return results.BatchOpsResult{}, err
	}
	return res, nil
}

func (t *HTTPTransport) FetchResults(ctx context.Context, gameID string) (*results.Document, error) {
	var out struct {
		Results *results.Document `json:"results"`
	}
	url := fmt.Sprintf("%s/v1/games/%s/results", t.BaseURL, gameID)
	if err := t.do(ctx, http.MethodGet, url, nil, &out); err != nil {
		return nil, err
	}
	if out.Results == nil {
		out.Results = results.NewDocument()
	}
	return out.Results, nil
}
