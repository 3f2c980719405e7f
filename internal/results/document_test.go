package results

import (
	"encoding/json"
	"testing"
	"time"
)

func scoreOp(id, path string, n int, base int64) Op {
	v := ScoreValue(n)
	return Op{
		ID:          id,
		GameID:      "g1",
		BaseVersion: base,
		Type:        OpSet,
		Path:        path,
		Value:       &v,
		TS:          time.Now(),
		Actor:       Actor{UserID: "u1"},
	}
}

func TestApplyAdvancesVersionByOne(t *testing.T) {
	d := NewDocument()
	if err := d.Apply(scoreOp("op1", "rounds/0/matches/0/sets/0/teamAScore", 6, 0)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if d.Version != 1 {
		t.Fatalf("version = %d, want 1", d.Version)
	}
	v, ok := d.Get("rounds/0/matches/0/sets/0/teamAScore")
	if !ok || v.Score != 6 {
		t.Fatalf("get = %+v ok=%v, want score 6", v, ok)
	}
}

func TestTouchedSince(t *testing.T) {
	d := NewDocument()
	path := "rounds/0/matches/0/sets/0/teamAScore"
	if err := d.Apply(scoreOp("op1", path, 6, 0)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !d.TouchedSince(path, 0) {
		t.Fatal("path should be touched since version 0")
	}
	if d.TouchedSince(path, 1) {
		t.Fatal("path should not be touched since version 1")
	}
	if d.TouchedSince("rounds/0/matches/0/sets/0/teamBScore", 0) {
		t.Fatal("untouched sibling path reported touched")
	}
}

func TestAddAndRemoveListMembers(t *testing.T) {
	d := NewDocument()
	path := "rounds/0/matches/0/teams/teamA/players"
	add := func(id, player string) Op {
		v := TextValue(player)
		return Op{ID: id, GameID: "g1", Type: OpAdd, Path: path, Value: &v, Actor: Actor{UserID: "u1"}}
	}
	if err := d.Apply(add("a1", "p1")); err != nil {
		t.Fatalf("add p1: %v", err)
	}
	if err := d.Apply(add("a2", "p2")); err != nil {
		t.Fatalf("add p2: %v", err)
	}
	// Duplicate member still counts as a touch but not a second entry.
	if err := d.Apply(add("a3", "p1")); err != nil {
		t.Fatalf("re-add p1: %v", err)
	}
	v, _ := d.Get(path)
	if len(v.Items) != 2 {
		t.Fatalf("players = %v, want 2 entries", v.Items)
	}
	if d.Version != 3 {
		t.Fatalf("version = %d, want 3", d.Version)
	}

	rm := TextValue("p1")
	if err := d.Apply(Op{ID: "r1", GameID: "g1", Type: OpRemove, Path: path, Value: &rm, Actor: Actor{UserID: "u1"}}); err != nil {
		t.Fatalf("remove: %v", err)
	}
	v, _ = d.Get(path)
	if len(v.Items) != 1 || v.Items[0] != "p2" {
		t.Fatalf("players after remove = %v, want [p2]", v.Items)
	}
}

func TestRemoveLeavesTombstone(t *testing.T) {
	d := NewDocument()
	path := "rounds/0/matches/0/courtId"
	court := TextValue("court-7")
	if err := d.Apply(Op{ID: "s1", GameID: "g1", Type: OpSet, Path: path, Value: &court, Actor: Actor{UserID: "u1"}}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := d.Apply(Op{ID: "r1", GameID: "g1", BaseVersion: 1, Type: OpRemove, Path: path, Actor: Actor{UserID: "u1"}}); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := d.Get(path); ok {
		t.Fatal("removed path still readable")
	}
	if !d.TouchedSince(path, 1) {
		t.Fatal("remove must count as a touch")
	}
	patch := d.NetPatch(path)
	if len(patch) != 1 || patch[0].Op != OpRemove {
		t.Fatalf("net patch = %+v, want single remove", patch)
	}
}

func TestResetClearsDocument(t *testing.T) {
	d := NewDocument()
	if err := d.Apply(scoreOp("op1", "rounds/0/matches/0/sets/0/teamAScore", 6, 0)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	flag := FlagValue(true)
	if err := d.Apply(Op{ID: "rs", GameID: "g1", BaseVersion: 1, Type: OpSet, Path: ResetPath, Value: &flag, Actor: Actor{UserID: "u1"}}); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if d.Version != 0 || len(d.Fields) != 0 {
		t.Fatalf("after reset version=%d fields=%d, want empty v0", d.Version, len(d.Fields))
	}
}

func TestDocumentJSONRoundTrip(t *testing.T) {
	d := NewDocument()
	if err := d.Apply(scoreOp("op1", "rounds/0/matches/0/sets/0/teamAScore", 4, 0)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	add := TextValue("p1")
	if err := d.Apply(Op{ID: "a1", GameID: "g1", BaseVersion: 1, Type: OpAdd, Path: "rounds/0/matches/0/teams/teamB/players", Value: &add, Actor: Actor{UserID: "u1"}}); err != nil {
		t.Fatalf("add: %v", err)
	}

	raw, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got Document
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Version != d.Version {
		t.Fatalf("version = %d, want %d", got.Version, d.Version)
	}
	v, ok := got.Get("rounds/0/matches/0/teams/teamB/players")
	if !ok || len(v.Items) != 1 || v.Items[0] != "p1" {
		t.Fatalf("players after round trip = %+v ok=%v", v, ok)
	}
}
