package results

import "fmt"

// Field is one addressed value of the document plus the document version at
// which it last changed. Keeping the version per path makes "was this path
// touched since version V" an O(1) lookup.
type Field struct {
	Value   Value `json:"value"`
	Version int64 `json:"version"`
}

// Document is the flat form of the nested results tree (rounds → matches →
// teams/sets): normalized path strings mapped to typed fields. Removed paths
// stay behind as tombstones so conflict detection survives removes.
type Document struct {
	Fields  map[string]Field `json:"fields"`
	Version int64            `json:"version"`
}

func NewDocument() *Document {
	return &Document{Fields: make(map[string]Field)}
}

func (d *Document) Clone() *Document {
	c := &Document{Fields: make(map[string]Field, len(d.Fields)), Version: d.Version}
	for k, f := range d.Fields {
		f.Value = f.Value.clone()
		c.Fields[k] = f
	}
	return c
}

// Get returns the live value at path. Tombstones read as absent.
func (d *Document) Get(path string) (Value, bool) {
	f, ok := d.Fields[path]
	if !ok || f.Value.Kind == KindAbsent {
		return Value{}, false
	}
	return f.Value.clone(), true
}

// TouchedSince reports whether path changed after the given version.
func (d *Document) TouchedSince(path string, version int64) bool {
	f, ok := d.Fields[path]
	return ok && f.Version > version
}

// TouchedBetween reports whether path changed after `since` and at or before
// `through`. The resolver uses it so operations later in a batch do not
// conflict with earlier operations of the same batch.
func (d *Document) TouchedBetween(path string, since, through int64) bool {
	f, ok := d.Fields[path]
	return ok && f.Version > since && f.Version <= through
}

// Apply mutates the document with one validated operation and advances the
// version by exactly one. A reset set clears everything and returns the
// version to zero.
func (d *Document) Apply(op Op) error {
	if err := ValidateOp(op); err != nil {
		return err
	}
	if op.Path == ResetPath {
		d.Fields = make(map[string]Field)
		d.Version = 0
		return nil
	}

	next := d.Version + 1
	switch op.Type {
	case OpSet:
		d.Fields[op.Path] = Field{Value: op.Value.clone(), Version: next}
	case OpAdd:
		cur, _ := d.Get(op.Path)
		if cur.Kind != KindList {
			cur = ListValue()
		}
		for _, it := range cur.Items {
			if it == op.Value.Text {
				// Already a member; the add still counts as a touch.
				d.Fields[op.Path] = Field{Value: cur, Version: next}
				d.Version = next
				return nil
			}
		}
		cur.Items = append(cur.Items, op.Value.Text)
		d.Fields[op.Path] = Field{Value: cur, Version: next}
	case OpRemove:
		if op.Value != nil {
			cur, ok := d.Get(op.Path)
			if ok && cur.Kind == KindList {
				kept := cur.Items[:0]
				for _, it := range cur.Items {
					if it != op.Value.Text {
						kept = append(kept, it)
					}
				}
				cur.Items = kept
				d.Fields[op.Path] = Field{Value: cur, Version: next}
				break
			}
			d.Fields[op.Path] = Field{Value: Value{Kind: KindAbsent}, Version: next}
		} else {
			d.Fields[op.Path] = Field{Value: Value{Kind: KindAbsent}, Version: next}
		}
	default:
		return fmt.Errorf("apply: unknown op type %q", op.Type)
	}
	d.Version = next
	return nil
}

// NetPatch describes the server's current state of a path as an ordered
// patch, for attaching to a conflict.
func (d *Document) NetPatch(path string) []PatchEntry {
	v, ok := d.Get(path)
	if !ok {
		return []PatchEntry{{Op: OpRemove, Path: path}}
	}
	return []PatchEntry{{Op: OpSet, Path: path, Value: &v}}
}

// ApplyPatch overwrites paths with the given patch entries without touching
// the version. The client uses it to fold a conflict's serverPatch into its
// confirmed shadow.
func (d *Document) ApplyPatch(patch []PatchEntry) {
	for _, p := range patch {
		switch p.Op {
		case OpRemove:
			delete(d.Fields, p.Path)
		case OpSet:
			if p.Value != nil {
				d.Fields[p.Path] = Field{Value: p.Value.clone(), Version: d.Version}
			}
		}
	}
}
