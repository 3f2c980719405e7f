package offline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"Lundawebserver/internal/results"
)

type memStore struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newMemStore() *memStore { return &memStore{m: make(map[string][]byte)} }

func (s *memStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok, nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = append([]byte(nil), value...)
	return nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

func (s *memStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.m {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func testOp(id, gameID string, base int64, path string, score int) OutboxOp {
	v := results.ScoreValue(score)
	return OutboxOp{
		Op: results.Op{
			ID:          id,
			GameID:      gameID,
			BaseVersion: base,
			Type:        results.OpSet,
			Path:        path,
			Value:       &v,
			TS:          time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
			Actor:       results.Actor{UserID: "user-1"},
		},
		Status: StatusPending,
	}
}

const scorePath = "rounds/0/matches/0/sets/0/teamAScore"

func TestEnqueuePreservesOrder(t *testing.T) {
	ctx := context.Background()
	ob := NewOutbox(newMemStore())

	for i, id := range []string{"op-1", "op-2", "op-3"} {
		if err := ob.Enqueue(ctx, testOp(id, "g1", int64(i), scorePath, i)); err != nil {
			t.Fatalf("Enqueue(%s): %v", id, err)
		}
	}

	batch, err := ob.NextBatch(ctx, "g1", 0, 5)
	if err != nil {
		t.Fatalf("NextBatch: %v", err)
	}
	if len(batch) != 3 {
		t.Fatalf("batch size = %d, want 3", len(batch))
	}
	for i, want := range []string{"op-1", "op-2", "op-3"} {
		if batch[i].ID != want {
			t.Errorf("batch[%d].ID = %s, want %s", i, batch[i].ID, want)
		}
	}
}

func TestEnqueueRequiresGame(t *testing.T) {
	ob := NewOutbox(newMemStore())
	err := ob.Enqueue(context.Background(), testOp("op-1", "", 0, scorePath, 1))
	if !errors.Is(err, ErrNoGame) {
		t.Fatalf("Enqueue without game = %v, want ErrNoGame", err)
	}
}

func TestNextBatchSkipsSendingAndExhausted(t *testing.T) {
	ctx := context.Background()
	ob := NewOutbox(newMemStore())

	retryable := testOp("op-retry", "g1", 0, scorePath, 1)
	retryable.Status = StatusFailed
	retryable.RetryCount = 2
	exhausted := testOp("op-dead", "g1", 0, scorePath, 2)
	exhausted.Status = StatusFailed
	exhausted.RetryCount = 5

	for _, op := range []OutboxOp{retryable, exhausted, testOp("op-new", "g1", 1, scorePath, 3)} {
		if err := ob.Enqueue(ctx, op); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	// Enqueue resets status to pending; restore the failed states directly.
	if err := ob.MarkFailed(ctx, "g1", []string{"op-retry", "op-dead"}, "boom"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if err := ob.MarkSending(ctx, "g1", []string{"op-retry"}); err != nil {
		t.Fatalf("MarkSending: %v", err)
	}
	if err := ob.MarkPending(ctx, "g1", []string{"op-retry"}, "net down"); err != nil {
		t.Fatalf("MarkPending: %v", err)
	}

	batch, err := ob.NextBatch(ctx, "g1", 0, 5)
	if err != nil {
		t.Fatalf("NextBatch: %v", err)
	}
	ids := make([]string, len(batch))
	for i, op := range batch {
		ids[i] = op.ID
	}
	if len(ids) != 2 || ids[0] != "op-retry" || ids[1] != "op-new" {
		t.Fatalf("batch ids = %v, want [op-retry op-new]", ids)
	}
}

func TestMarkTransitions(t *testing.T) {
	ctx := context.Background()
	ob := NewOutbox(newMemStore())

	if err := ob.Enqueue(ctx, testOp("op-1", "g1", 0, scorePath, 6)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := ob.MarkSending(ctx, "g1", []string{"op-1"}); err != nil {
		t.Fatalf("MarkSending: %v", err)
	}
	if err := ob.MarkApplied(ctx, "g1", []string{"op-1"}); err != nil {
		t.Fatalf("MarkApplied: %v", err)
	}
	// Applied is terminal; a late failure report must not regress it.
	if err := ob.MarkFailed(ctx, "g1", []string{"op-1"}, "late"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if err := ob.MarkConflict(ctx, "g1", "op-1", "version_mismatch"); err != nil {
		t.Fatalf("MarkConflict: %v", err)
	}

	ops, err := ob.load(ctx, "g1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ops[0].Status != StatusApplied {
		t.Fatalf("status = %s, want applied", ops[0].Status)
	}
}

func TestMarkPendingBumpsRetryCount(t *testing.T) {
	ctx := context.Background()
	ob := NewOutbox(newMemStore())

	if err := ob.Enqueue(ctx, testOp("op-1", "g1", 0, scorePath, 6)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	for i := 1; i <= 3; i++ {
		if err := ob.MarkSending(ctx, "g1", []string{"op-1"}); err != nil {
			t.Fatalf("MarkSending: %v", err)
		}
		if err := ob.MarkPending(ctx, "g1", []string{"op-1"}, "timeout"); err != nil {
			t.Fatalf("MarkPending: %v", err)
		}
	}

	ops, _ := ob.load(ctx, "g1")
	if ops[0].Status != StatusPending || ops[0].RetryCount != 3 {
		t.Fatalf("op = %s/%d, want pending/3", ops[0].Status, ops[0].RetryCount)
	}
	if ops[0].LastError != "timeout" {
		t.Fatalf("LastError = %q, want timeout", ops[0].LastError)
	}
}

func TestPruneDropsAppliedOnly(t *testing.T) {
	ctx := context.Background()
	ob := NewOutbox(newMemStore())

	for i, id := range []string{"op-1", "op-2", "op-3"} {
		if err := ob.Enqueue(ctx, testOp(id, "g1", int64(i), scorePath, i)); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	if err := ob.MarkApplied(ctx, "g1", []string{"op-1", "op-3"}); err != nil {
		t.Fatalf("MarkApplied: %v", err)
	}
	if err := ob.Prune(ctx, "g1"); err != nil {
		t.Fatalf("Prune: %v", err)
	}

	ops, _ := ob.load(ctx, "g1")
	if len(ops) != 1 || ops[0].ID != "op-2" {
		t.Fatalf("remaining = %v, want just op-2", ops)
	}
}

func TestHasUnsynced(t *testing.T) {
	ctx := context.Background()
	ob := NewOutbox(newMemStore())

	if err := ob.Enqueue(ctx, testOp("op-1", "g1", 0, scorePath, 6)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	unsynced, err := ob.HasUnsynced(ctx, "g1")
	if err != nil || !unsynced {
		t.Fatalf("HasUnsynced = %v, %v, want true", unsynced, err)
	}
	if err := ob.MarkApplied(ctx, "g1", []string{"op-1"}); err != nil {
		t.Fatalf("MarkApplied: %v", err)
	}
	unsynced, err = ob.HasUnsynced(ctx, "g1")
	if err != nil || unsynced {
		t.Fatalf("HasUnsynced after apply = %v, %v, want false", unsynced, err)
	}
}

func TestRestoreReturnsSendingToPending(t *testing.T) {
	ctx := context.Background()
	ob := NewOutbox(newMemStore())

	if err := ob.Enqueue(ctx, testOp("op-1", "g1", 0, scorePath, 6)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := ob.MarkSending(ctx, "g1", []string{"op-1"}); err != nil {
		t.Fatalf("MarkSending: %v", err)
	}

	// Simulates a restart mid-submission.
	if err := ob.Restore(ctx); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	batch, err := ob.NextBatch(ctx, "g1", 0, 5)
	if err != nil {
		t.Fatalf("NextBatch: %v", err)
	}
	if len(batch) != 1 || batch[0].ID != "op-1" || batch[0].Status != StatusPending {
		t.Fatalf("batch = %+v, want op-1 pending", batch)
	}
}

func TestDiscardRemovesOp(t *testing.T) {
	ctx := context.Background()
	ob := NewOutbox(newMemStore())

	for _, id := range []string{"op-1", "op-2"} {
		if err := ob.Enqueue(ctx, testOp(id, "g1", 0, scorePath, 6)); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	if err := ob.Discard(ctx, "g1", "op-1"); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	ops, _ := ob.load(ctx, "g1")
	if len(ops) != 1 || ops[0].ID != "op-2" {
		t.Fatalf("remaining = %v, want just op-2", ops)
	}
}
