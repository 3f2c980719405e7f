package results

import (
	"encoding/json"
	"fmt"
)

type ValueKind string

const (
	KindScore ValueKind = "score"
	KindList  ValueKind = "list"
	KindText  ValueKind = "text"
	KindFlag  ValueKind = "flag"

	// KindAbsent marks a removed path. It never travels on the wire as an
	// operation payload; it only appears inside documents as a tombstone so
	// "was this path touched since version V" keeps working after removes.
	KindAbsent ValueKind = "absent"
)

const (
	MaxScore       = 99
	MaxListEntries = 16
)

// Value is the closed union of payload shapes an operation may carry.
// Exactly one of the payload fields is meaningful, selected by Kind.
type Value struct {
	Kind  ValueKind
	Score int
	Items []string
	Text  string
	Flag  bool
}

func ScoreValue(n int) Value { return Value{Kind: KindScore, Score: n} }

func ListValue(items ...string) Value {
	return Value{Kind: KindList, Items: append([]string(nil), items...)}
}
func TextValue(s string) Value { return Value{Kind: KindText, Text: s} }
func FlagValue(b bool) Value   { return Value{Kind: KindFlag, Flag: b} }

func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindScore:
		return v.Score == o.Score
	case KindList:
		if len(v.Items) != len(o.Items) {
			return false
		}
		for i := range v.Items {
			if v.Items[i] != o.Items[i] {
				return false
			}
		}
		return true
	case KindText:
		return v.Text == o.Text
	case KindFlag:
		return v.Flag == o.Flag
	default:
		return true
	}
}

func (v Value) clone() Value {
	if v.Kind == KindList {
		v.Items = append([]string(nil), v.Items...)
	}
	return v
}

type valueJSON struct {
	Kind  ValueKind `json:"kind"`
	Score *int      `json:"score,omitempty"`
	Items []string  `json:"items,omitempty"`
	Text  *string   `json:"text,omitempty"`
	Flag  *bool     `json:"flag,omitempty"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	out := valueJSON{Kind: v.Kind}
	switch v.Kind {
	case KindScore:
		out.Score = &v.Score
	case KindList:
		items := v.Items
		if items == nil {
			items = []string{}
		}
		out.Items = items
	case KindText:
		out.Text = &v.Text
	case KindFlag:
		out.Flag = &v.Flag
	case KindAbsent:
	default:
		return nil, fmt.Errorf("marshal value: unknown kind %q", v.Kind)
	}
	return json.Marshal(out)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw valueJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = Value{Kind: raw.Kind}
	switch raw.Kind {
	case KindScore:
		if raw.Score == nil {
			return fmt.Errorf("unmarshal value: score kind without score")
		}
		v.Score = *raw.Score
	case KindList:
		v.Items = raw.Items
		if v.Items == nil {
			v.Items = []string{}
		}
	case KindText:
		if raw.Text == nil {
			return fmt.Errorf("unmarshal value: text kind without text")
		}
		v.Text = *raw.Text
	case KindFlag:
		if raw.Flag == nil {
			return fmt.Errorf("unmarshal value: flag kind without flag")
		}
		v.Flag = *raw.Flag
	case KindAbsent:
	default:
		return fmt.Errorf("unmarshal value: unknown kind %q", raw.Kind)
	}
	return nil
}

// checkShape validates a payload against the kind a path category expects.
func (v Value) checkShape(want ValueKind) error {
	if v.Kind != want {
		return fmt.Errorf("value kind %q, path expects %q", v.Kind, want)
	}
	switch v.Kind {
	case KindScore:
		if v.Score < 0 || v.Score > MaxScore {
			return fmt.Errorf("score %d out of range [0,%d]", v.Score, MaxScore)
		}
	case KindList:
		if len(v.Items) > MaxListEntries {
			return fmt.Errorf("list of %d entries exceeds limit %d", len(v.Items), MaxListEntries)
		}
		for _, it := range v.Items {
			if it == "" {
				return fmt.Errorf("list contains empty entry")
			}
		}
	case KindText:
		if v.Text == "" {
			return fmt.Errorf("empty text value")
		}
	}
	return nil
}
