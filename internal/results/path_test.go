package results

import "testing"

func TestNormalizePathAcceptsKnownShapes(t *testing.T) {
	cases := []struct {
		raw  string
		want string
		cat  string
	}{
		{"/reset", "reset", "reset"},
		{"rounds", "rounds", "rounds"},
		{"/rounds/0/status", "rounds/0/status", "status"},
		{"/rounds/1/matches", "rounds/1/matches", "matches"},
		{"rounds/0/matches/2/courtId", "rounds/0/matches/2/courtId", "courtId"},
		{"rounds/0/matches/0/sets/0/teamAScore", "rounds/0/matches/0/sets/0/teamAScore", "setScore"},
		{"rounds/0/matches/0/sets/1/teamBScore", "rounds/0/matches/0/sets/1/teamBScore", "setScore"},
		{"rounds/0/matches/0/teams/teamA/players", "rounds/0/matches/0/teams/teamA/players", "players"},
	}
	for _, c := range cases {
		got, cat, err := NormalizePath(c.raw)
		if err != nil {
			t.Fatalf("NormalizePath(%q): %v", c.raw, err)
		}
		if got != c.want || cat.Name != c.cat {
			t.Fatalf("NormalizePath(%q) = %q/%q, want %q/%q", c.raw, got, cat.Name, c.want, c.cat)
		}
	}
}

func TestNormalizePathRejectsUnknownShapes(t *testing.T) {
	bad := []string{
		"",
		"/",
		"players",
		"rounds/x/status",
		"rounds/0",
		"rounds/0/matches/1",
		"rounds/0/matches/1/teams/teamC/players",
		"rounds/0/matches/1/sets/0/score",
		"rounds/999/status",
	}
	for _, raw := range bad {
		if _, _, err := NormalizePath(raw); err == nil {
			t.Fatalf("NormalizePath(%q) accepted, want error", raw)
		}
	}
}

func TestValidateOpShapes(t *testing.T) {
	score := ScoreValue(6)
	big := ScoreValue(MaxScore + 1)
	player := TextValue("p1")
	list := ListValue("p1", "p2")

	ok := []Op{
		{ID: "1", Type: OpSet, Path: "rounds/0/matches/0/sets/0/teamAScore", Value: &score},
		{ID: "2", Type: OpAdd, Path: "rounds/0/matches/0/teams/teamA/players", Value: &player},
		{ID: "3", Type: OpRemove, Path: "rounds/0/matches/0/teams/teamA/players", Value: &player},
		{ID: "4", Type: OpSet, Path: "rounds/0/matches/0/teams/teamA/players", Value: &list},
		{ID: "5", Type: OpRemove, Path: "rounds/0/matches/0/courtId"},
		{ID: "6", Type: OpAdd, Path: "rounds", Value: &player},
	}
	for _, op := range ok {
		if err := ValidateOp(op); err != nil {
			t.Fatalf("ValidateOp(%s %s): %v", op.Type, op.Path, err)
		}
	}

	bad := []Op{
		{Type: OpSet, Path: "rounds/0/matches/0/sets/0/teamAScore", Value: &score},            // missing id
		{ID: "7", Type: OpSet, Path: "rounds/0/matches/0/sets/0/teamAScore"},                  // set without value
		{ID: "8", Type: OpSet, Path: "rounds/0/matches/0/sets/0/teamAScore", Value: &player},  // wrong kind
		{ID: "9", Type: OpSet, Path: "rounds/0/matches/0/sets/0/teamAScore", Value: &big},     // out of range
		{ID: "10", Type: OpAdd, Path: "rounds/0/matches/0/sets/0/teamAScore", Value: &player}, // add on scalar
		{ID: "11", Type: OpRemove, Path: "reset"},                                             // remove on reset
		{ID: "12", Type: "merge", Path: "rounds", Value: &player},                             // unknown type
	}
	for _, op := range bad {
		if err := ValidateOp(op); err == nil {
			t.Fatalf("ValidateOp(%s %s) accepted, want error", op.Type, op.Path)
		}
	}
}
