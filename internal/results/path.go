package results

import (
	"fmt"
	"strconv"
	"strings"
)

// Paths address single fields of the results document in a normalized slash
// form, e.g. "rounds/0/matches/1/sets/0/teamAScore". The path string is the
// unit of conflict detection.

const maxIndex = 63

// ResetPath is the special whole-document path: a set on it wipes the
// results and returns the version to zero.
const ResetPath = "reset"

// Category describes what a path addresses and which payloads it accepts.
type Category struct {
	Name string
	// Kind is the payload kind a set on this path carries.
	Kind ValueKind
	// Elem reports that add/remove address single list members, carried as
	// text payloads (player ids, round ids, match ids).
	Elem                     bool
	CanSet, CanAdd, CanRemove bool
}

var (
	catReset   = Category{Name: "reset", Kind: KindFlag, CanSet: true}
	catRounds  = Category{Name: "rounds", Kind: KindList, Elem: true, CanAdd: true, CanRemove: true}
	catStatus  = Category{Name: "status", Kind: KindText, CanSet: true}
	catMatches = Category{Name: "matches", Kind: KindList, Elem: true, CanAdd: true, CanRemove: true}
	catCourt   = Category{Name: "courtId", Kind: KindText, CanSet: true, CanRemove: true}
	catScore   = Category{Name: "setScore", Kind: KindScore, CanSet: true}
	catPlayers = Category{Name: "players", Kind: KindList, Elem: true, CanSet: true, CanAdd: true, CanRemove: true}
)

// NormalizePath canonicalizes a client-supplied path and rejects anything
// outside the known document shape.
func NormalizePath(raw string) (string, Category, error) {
	p := strings.Trim(strings.TrimSpace(raw), "/")
	if p == "" {
		return "", Category{}, fmt.Errorf("empty path")
	}
	segs := strings.Split(p, "/")
	cat, err := classify(segs)
	if err != nil {
		return "", Category{}, fmt.Errorf("path %q: %w", raw, err)
	}
	return strings.Join(segs, "/"), cat, nil
}

func classify(segs []string) (Category, error) {
	if len(segs) == 1 && segs[0] == ResetPath {
		return catReset, nil
	}
	if segs[0] != "rounds" {
		return Category{}, fmt.Errorf("unknown root %q", segs[0])
	}
	if len(segs) == 1 {
		return catRounds, nil
	}
	if err := checkIndex(segs[1]); err != nil {
		return Category{}, err
	}
	if len(segs) == 2 {
		return Category{}, fmt.Errorf("round itself is not addressable, use rounds with a remove")
	}
	switch segs[2] {
	case "status":
		if len(segs) == 3 {
			return catStatus, nil
		}
	case "matches":
		return classifyMatch(segs)
	}
	return Category{}, fmt.Errorf("unknown round field %q", segs[2])
}

func classifyMatch(segs []string) (Category, error) {
	// segs: rounds/{i}/matches[/...]
	if len(segs) == 3 {
		return catMatches, nil
	}
	if err := checkIndex(segs[3]); err != nil {
		return Category{}, err
	}
	if len(segs) == 4 {
		return Category{}, fmt.Errorf("match itself is not addressable, use matches with a remove")
	}
	switch segs[4] {
	case "courtId":
		if len(segs) == 5 {
			return catCourt, nil
		}
	case "status":
		if len(segs) == 5 {
			return catStatus, nil
		}
	case "sets":
		if len(segs) == 7 {
			if err := checkIndex(segs[5]); err != nil {
				return Category{}, err
			}
			if segs[6] == "teamAScore" || segs[6] == "teamBScore" {
				return catScore, nil
			}
		}
	case "teams":
		if len(segs) == 7 && (segs[5] == "teamA" || segs[5] == "teamB") && segs[6] == "players" {
			return catPlayers, nil
		}
	}
	return Category{}, fmt.Errorf("unknown match field %q", strings.Join(segs[4:], "/"))
}

func checkIndex(seg string) error {
	n, err := strconv.Atoi(seg)
	if err != nil || n < 0 || n > maxIndex {
		return fmt.Errorf("bad index %q", seg)
	}
	return nil
}

// ValidateOp checks a single operation against the document shape. A failure
// here is permanent: the operation can never apply and must not be retried.
func ValidateOp(op Op) error {
	if op.ID == "" {
		return fmt.Errorf("missing op id")
	}
	if op.BaseVersion < 0 {
		return fmt.Errorf("negative base version")
	}
	norm, cat, err := NormalizePath(op.Path)
	if err != nil {
		return err
	}
	if norm != op.Path {
		return fmt.Errorf("path %q not normalized (want %q)", op.Path, norm)
	}
	switch op.Type {
	case OpSet:
		if !cat.CanSet {
			return fmt.Errorf("set not allowed on %s path", cat.Name)
		}
		if op.Value == nil {
			return fmt.Errorf("set without value")
		}
		return op.Value.checkShape(cat.Kind)
	case OpAdd:
		if !cat.CanAdd {
			return fmt.Errorf("add not allowed on %s path", cat.Name)
		}
		if op.Value == nil {
			return fmt.Errorf("add without value")
		}
		return op.Value.checkShape(KindText)
	case OpRemove:
		if !cat.CanRemove {
			return fmt.Errorf("remove not allowed on %s path", cat.Name)
		}
		if cat.Elem && op.Value != nil {
			return op.Value.checkShape(KindText)
		}
		if op.Value != nil {
			return fmt.Errorf("remove with unexpected value")
		}
		return nil
	default:
		return fmt.Errorf("unknown op type %q", op.Type)
	}
}
