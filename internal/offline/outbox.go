package offline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Outbox is the durable, ordered per-game queue of pending operations. All
// mutations write through to the store immediately; state transitions are
// idempotent so a crashed or duplicated reconcile pass is harmless.
type Outbox struct {
	store Store
	mu    sync.Mutex
}

func NewOutbox(store Store) *Outbox {
	return &Outbox{store: store}
}

func (o *Outbox) load(ctx context.Context, gameID string) ([]OutboxOp, error) {
	raw, ok, err := o.store.Get(ctx, outboxKey(gameID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var ops []OutboxOp
	if err := json.Unmarshal(raw, &ops); err != nil {
		return nil, fmt.Errorf("decode outbox %s: %w", gameID, err)
	}
	return ops, nil
}

func (o *Outbox) save(ctx context.Context, gameID string, ops []OutboxOp) error {
	if len(ops) == 0 {
		return o.store.Delete(ctx, outboxKey(gameID))
	}
	raw, err := json.Marshal(ops)
	if err != nil {
		return fmt.Errorf("encode outbox %s: %w", gameID, err)
	}
	return o.store.Set(ctx, outboxKey(gameID), raw)
}

// Enqueue appends an operation with status pending, preserving submission
// order.
func (o *Outbox) Enqueue(ctx context.Context, op OutboxOp) error {
	if op.GameID == "" {
		return ErrNoGame
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	ops, err := o.load(ctx, op.GameID)
	if err != nil {
		return err
	}
	op.Status = StatusPending
	ops = append(ops, op)
	return o.save(ctx, op.GameID, ops)
}

// NextBatch returns, in original submission order, up to maxSize operations
// that are pending or failed with retries remaining. Ops already sending are
// excluded.
func (o *Outbox) NextBatch(ctx context.Context, gameID string, maxSize, maxRetries int) ([]OutboxOp, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ops, err := o.load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	var batch []OutboxOp
	for _, op := range ops {
		eligible := op.Status == StatusPending ||
			(op.Status == StatusFailed && op.RetryCount < maxRetries)
		if !eligible {
			continue
		}
		batch = append(batch, op)
		if maxSize > 0 && len(batch) >= maxSize {
			break
		}
	}
	return batch, nil
}

func (o *Outbox) mark(ctx context.Context, gameID string, ids []string, fn func(op *OutboxOp)) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	ops, err := o.load(ctx, gameID)
	if err != nil {
		return err
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	for i := range ops {
		if want[ops[i].ID] {
			fn(&ops[i])
		}
	}
	return o.save(ctx, gameID, ops)
}

// MarkSending moves pending/failed ops to sending. Terminal ops stay put.
func (o *Outbox) MarkSending(ctx context.Context, gameID string, ids []string) error {
	return o.mark(ctx, gameID, ids, func(op *OutboxOp) {
		if op.Status == StatusPending || op.Status == StatusFailed {
			op.Status = StatusSending
		}
	})
}

// MarkApplied confirms ops. Idempotent: already-applied ops are untouched.
func (o *Outbox) MarkApplied(ctx context.Context, gameID string, ids []string) error {
	return o.mark(ctx, gameID, ids, func(op *OutboxOp) {
		op.Status = StatusApplied
		op.LastError = ""
	})
}

// MarkConflict records a rejection that needs user resolution.
func (o *Outbox) MarkConflict(ctx context.Context, gameID, opID, reason string) error {
	return o.mark(ctx, gameID, []string{opID}, func(op *OutboxOp) {
		if op.Status == StatusApplied {
			return
		}
		op.Status = StatusConflict
		op.LastError = reason
	})
}

// MarkPending returns non-terminal ops to pending after a transport failure,
// bumping their retry count.
func (o *Outbox) MarkPending(ctx context.Context, gameID string, ids []string, lastErr string) error {
	return o.mark(ctx, gameID, ids, func(op *OutboxOp) {
		if op.terminal() {
			return
		}
		op.Status = StatusPending
		op.RetryCount++
		op.LastError = lastErr
	})
}

// MarkFailed marks ops permanently failed (validation rejection or an
// exhausted retry budget). Terminal and user-visible.
func (o *Outbox) MarkFailed(ctx context.Context, gameID string, ids []string, lastErr string) error {
	return o.mark(ctx, gameID, ids, func(op *OutboxOp) {
		if op.Status == StatusApplied || op.Status == StatusConflict {
			return
		}
		op.Status = StatusFailed
		op.LastError = lastErr
	})
}

// Discard drops an op outright, used once the user resolves its conflict.
func (o *Outbox) Discard(ctx context.Context, gameID, opID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	ops, err := o.load(ctx, gameID)
	if err != nil {
		return err
	}
	kept := ops[:0]
	for _, op := range ops {
		if op.ID != opID {
			kept = append(kept, op)
		}
	}
	return o.save(ctx, gameID, kept)
}

// Prune discards applied ops; their effect lives in the confirmed shadow and
// they are no longer needed for retry or dedup.
func (o *Outbox) Prune(ctx context.Context, gameID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	ops, err := o.load(ctx, gameID)
	if err != nil {
		return err
	}
	kept := ops[:0]
	for _, op := range ops {
		if op.Status != StatusApplied {
			kept = append(kept, op)
		}
	}
	return o.save(ctx, gameID, kept)
}

// Games lists every game that still has outbox entries.
func (o *Outbox) Games(ctx context.Context) ([]string, error) {
	keys, err := o.store.Keys(ctx, outboxKeyPrefix)
	if err != nil {
		return nil, err
	}
	games := make([]string, 0, len(keys))
	for _, k := range keys {
		games = append(games, strings.TrimPrefix(k, outboxKeyPrefix))
	}
	return games, nil
}

// HasUnsynced reports whether any op still needs the server or the user.
// Games with unsynced ops must survive cache eviction.
func (o *Outbox) HasUnsynced(ctx context.Context, gameID string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ops, err := o.load(ctx, gameID)
	if err != nil {
		return false, err
	}
	for _, op := range ops {
		if op.Status != StatusApplied {
			return true, nil
		}
	}
	return false, nil
}

// Restore runs once on startup: a submission interrupted by a crash may or
// may not have reached the server, so sending ops go back to pending and are
// resubmitted with their original ids (the server deduplicates).
func (o *Outbox) Restore(ctx context.Context) error {
	games, err := o.Games(ctx)
	if err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, gameID := range games {
		ops, err := o.load(ctx, gameID)
		if err != nil {
			return err
		}
		changed := false
		for i := range ops {
			if ops[i].Status == StatusSending {
				ops[i].Status = StatusPending
				changed = true
			}
		}
		if changed {
			if err := o.save(ctx, gameID, ops); err != nil {
				return err
			}
		}
	}
	return nil
}
