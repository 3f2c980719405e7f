// Package offline is the device-side half of the results sync protocol: a
// durable outbox of not-yet-confirmed operations, a shadow cache of the last
// server-confirmed document, and a syncer that drains the outbox in batches
// with backoff. It has no rendering or navigation dependencies; the UI talks
// to it through plain calls and the conflict callback.
package offline

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"Lundawebserver/internal/results"
)

type OpStatus string

const (
	StatusPending  OpStatus = "pending"
	StatusSending  OpStatus = "sending"
	StatusApplied  OpStatus = "applied"
	StatusConflict OpStatus = "conflict"
	StatusFailed   OpStatus = "failed"
)

var (
	ErrUnsyncedOps = errors.New("game has unsynced operations")
	ErrNoGame      = errors.New("unknown game")
)

// OutboxOp is an operation plus its sync lifecycle. Status only moves along
// pending → sending → {applied, conflict, failed}, with failed → pending
// while the retry budget lasts.
type OutboxOp struct {
	results.Op
	Status     OpStatus `json:"status"`
	RetryCount int      `json:"retry_count"`
	LastError  string   `json:"last_error,omitempty"`
}

func (o OutboxOp) terminal() bool {
	return o.Status == StatusApplied || o.Status == StatusConflict || o.Status == StatusFailed
}

// GameShadow mirrors the last server-confirmed document. The document's own
// version is the shadow version; optimistic projections are derived views
// and never stored here.
type GameShadow struct {
	GameID       string            `json:"gameId"`
	Doc          *results.Document `json:"doc"`
	LastSyncedAt time.Time         `json:"lastSyncedAt"`
}

func (s GameShadow) Version() int64 {
	if s.Doc == nil {
		return 0
	}
	return s.Doc.Version
}

// NewOp builds an operation for a local edit. The id is generated once and
// survives retries, which is what makes resubmission safe.
func NewOp(gameID, userID string, baseVersion int64, typ results.OpType, path string, value *results.Value) results.Op {
	return results.Op{
		ID:          uuid.NewString(),
		GameID:      gameID,
		BaseVersion: baseVersion,
		Type:        typ,
		Path:        path,
		Value:       value,
		TS:          time.Now().UTC(),
		Actor:       results.Actor{UserID: userID},
	}
}
