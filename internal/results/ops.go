package results

import "time"

type OpType string

const (
	OpSet    OpType = "set"
	OpAdd    OpType = "add"
	OpRemove OpType = "remove"
)

// Conflict reasons returned by the resolver.
const (
	ReasonVersionMismatch = "version_mismatch"
	ReasonFutureVersion   = "future_version"
	ReasonStaleAfterReset = "stale_after_reset"
)

type Actor struct {
	UserID string `json:"userId"`
}

// Op is a single intended field mutation. The id is client-generated and
// stable across retries; the server deduplicates on it.
type Op struct {
	ID          string    `json:"id"`
	GameID      string    `json:"gameId"`
	BaseVersion int64     `json:"base_version"`
	Type        OpType    `json:"op"`
	Path        string    `json:"path"`
	Value       *Value    `json:"value,omitempty"`
	TS          time.Time `json:"ts"`
	Actor       Actor     `json:"actor"`
}

// PatchEntry is one step of a server or client patch attached to a conflict.
type PatchEntry struct {
	Op    OpType `json:"op"`
	Path  string `json:"path"`
	Value *Value `json:"value,omitempty"`
}

// ConflictOp explains a rejected operation: what the server holds for the
// touched path versus what the client intended.
type ConflictOp struct {
	OpID        string       `json:"opId"`
	Reason      string       `json:"reason"`
	ServerPatch []PatchEntry `json:"serverPatch"`
	ClientPatch []PatchEntry `json:"clientPatch"`
}

// BatchOpsResult is the server's reply to one submitted batch.
type BatchOpsResult struct {
	Applied     []string     `json:"applied"`
	HeadVersion int64        `json:"headVersion"`
	ServerTime  time.Time    `json:"serverTime"`
	Conflicts   []ConflictOp `json:"conflicts"`
}

// ClientPatch renders the rejected mutation in patch form.
func ClientPatch(op Op) []PatchEntry {
	return []PatchEntry{{Op: op.Type, Path: op.Path, Value: op.Value}}
}
