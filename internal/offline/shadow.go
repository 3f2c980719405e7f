package offline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"Lundawebserver/internal/results"
)

// ShadowCache holds the last server-confirmed document per game. Confirmed
// state only ever changes from server responses; local edits are visible
// through Project, which derives a view without mutating anything stored.
type ShadowCache struct {
	store Store
	mu    sync.Mutex
}

func NewShadowCache(store Store) *ShadowCache {
	return &ShadowCache{store: store}
}

// Get returns the confirmed shadow, or an empty version-0 shadow when the
// game has never synced.
func (c *ShadowCache) Get(ctx context.Context, gameID string) (GameShadow, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.get(ctx, gameID)
}

func (c *ShadowCache) get(ctx context.Context, gameID string) (GameShadow, error) {
	raw, ok, err := c.store.Get(ctx, shadowKey(gameID))
	if err != nil {
		return GameShadow{}, err
	}
	if !ok {
		return GameShadow{GameID: gameID, Doc: results.NewDocument()}, nil
	}
	var sh GameShadow
	if err := json.Unmarshal(raw, &sh); err != nil {
		return GameShadow{}, fmt.Errorf("decode shadow %s: %w", gameID, err)
	}
	if sh.Doc == nil {
		sh.Doc = results.NewDocument()
	}
	return sh, nil
}

func (c *ShadowCache) put(ctx context.Context, sh GameShadow) error {
	raw, err := json.Marshal(sh)
	if err != nil {
		return fmt.Errorf("encode shadow %s: %w", sh.GameID, err)
	}
	return c.store.Set(ctx, shadowKey(sh.GameID), raw)
}

// Project returns the confirmed document with the given pending operations
// pre-applied, for immediate display. The projection is a derived view; the
// stored shadow is untouched.
func (c *ShadowCache) Project(ctx context.Context, gameID string, pending []OutboxOp) (*results.Document, error) {
	sh, err := c.Get(ctx, gameID)
	if err != nil {
		return nil, err
	}
	proj := sh.Doc.Clone()
	for _, op := range pending {
		if op.Status == StatusApplied || op.Status == StatusFailed {
			continue
		}
		// Projection ignores version bookkeeping; a stale base is fine here.
		_ = proj.Apply(op.Op)
	}
	return proj, nil
}

// Commit folds a successful batch into confirmed state: the client's own
// applied ops in order, then the server's head version.
func (c *ShadowCache) Commit(ctx context.Context, gameID string, headVersion int64, applied []results.Op, syncedAt time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sh, err := c.get(ctx, gameID)
	if err != nil {
		return err
	}
	for _, op := range applied {
		if err := sh.Doc.Apply(op); err != nil {
			return fmt.Errorf("commit op %s: %w", op.ID, err)
		}
	}
	sh.Doc.Version = headVersion
	sh.LastSyncedAt = syncedAt
	return c.put(ctx, sh)
}

// behind reports whether the pre-commit shadow version plus the client's own
// applied ops fails to explain the server's head version. When it does,
// another device advanced the document and the confirmed snapshot must be
// refreshed from the server.
func (sh GameShadow) behind(headVersion int64, appliedCount int) bool {
	return sh.Version() != headVersion-int64(appliedCount)
}

// Replace swaps in a fresh server snapshot wholesale.
func (c *ShadowCache) Replace(ctx context.Context, gameID string, doc *results.Document, syncedAt time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.put(ctx, GameShadow{GameID: gameID, Doc: doc, LastSyncedAt: syncedAt})
}

// RevertConflict folds a conflict's serverPatch into the confirmed document
// for the rejected path only; optimistic edits on unrelated paths are
// unaffected because they live in the outbox, not here.
func (c *ShadowCache) RevertConflict(ctx context.Context, gameID string, conflict results.ConflictOp) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sh, err := c.get(ctx, gameID)
	if err != nil {
		return err
	}
	sh.Doc.ApplyPatch(conflict.ServerPatch)
	return c.put(ctx, sh)
}

// Evict drops the cached shadow. Callers must first check the outbox: games
// with unsynced operations must survive eviction.
func (c *ShadowCache) Evict(ctx context.Context, gameID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Delete(ctx, shadowKey(gameID))
}
