package offline

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"Lundawebserver/internal/results"
)

const (
	defaultSyncInterval = 5 * time.Second
	defaultMaxRetries   = 5
	defaultBackoffMin   = time.Second
	defaultBackoffMax   = 30 * time.Second
	defaultMaxBatch     = 100
)

// Syncer drains the outbox: one in-flight batch per game, exponential backoff
// on transport failures, and reconciliation of the server's per-op verdicts
// into the outbox and shadow cache.
type Syncer struct {
	Outbox    *Outbox
	Shadows   *ShadowCache
	Transport Transport
	Logger    *slog.Logger

	// OnConflict is invoked after a batch response carrying conflicts has been
	// reconciled, so the UI can surface them. May be nil.
	OnConflict func(gameID string, conflicts []results.ConflictOp)

	Interval   time.Duration
	MaxRetries int
	BackoffMin time.Duration
	BackoffMax time.Duration
	MaxBatch   int
	Now        func() time.Time

	mu       sync.Mutex
	active   map[string]bool
	attempts map[string]int
	timers   map[string]*time.Timer
	runCtx   context.Context
	wg       sync.WaitGroup
}

func (s *Syncer) interval() time.Duration {
	if s.Interval > 0 {
		return s.Interval
	}
	return defaultSyncInterval
}

func (s *Syncer) maxRetries() int {
	if s.MaxRetries > 0 {
		return s.MaxRetries
	}
	return defaultMaxRetries
}

func (s *Syncer) maxBatch() int {
	if s.MaxBatch > 0 {
		return s.MaxBatch
	}
	return defaultMaxBatch
}

func (s *Syncer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Syncer) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Run restores interrupted submissions, then drains every game with outbox
// entries on a fixed interval until ctx is cancelled. A batch already handed
// to the transport is allowed to finish after cancellation so its verdicts
// are not lost.
func (s *Syncer) Run(ctx context.Context) error {
	s.mu.Lock()
	s.runCtx = ctx
	s.mu.Unlock()

	if err := s.Outbox.Restore(ctx); err != nil {
		return err
	}
	s.kickAll(ctx)

	ticker := time.NewTicker(s.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.stopTimers()
			s.wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			s.kickAll(ctx)
		}
	}
}

func (s *Syncer) kickAll(ctx context.Context) {
	games, err := s.Outbox.Games(ctx)
	if err != nil {
		s.logger().Error("listing outbox games", "error", err)
		return
	}
	for _, gameID := range games {
		s.Kick(ctx, gameID)
	}
}

// Kick starts a sync pass for one game unless one is already in flight. Safe
// to call from the UI after every local edit.
func (s *Syncer) Kick(ctx context.Context, gameID string) {
	if !s.begin(gameID) {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.end(gameID)
		if err := s.syncGame(ctx, gameID); err != nil {
			s.logger().Error("sync pass failed", "gameId", gameID, "error", err)
		}
	}()
}

func (s *Syncer) begin(gameID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		s.active = make(map[string]bool)
	}
	if s.active[gameID] {
		return false
	}
	if t, ok := s.timers[gameID]; ok {
		t.Stop()
		delete(s.timers, gameID)
	}
	s.active[gameID] = true
	return true
}

func (s *Syncer) end(gameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, gameID)
}

func (s *Syncer) syncGame(ctx context.Context, gameID string) error {
	batch, err := s.Outbox.NextBatch(ctx, gameID, s.maxBatch(), s.maxRetries())
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	ids := make([]string, len(batch))
	ops := make([]results.Op, len(batch))
	for i, op := range batch {
		ids[i] = op.ID
		ops[i] = op.Op
	}
	if err := s.Outbox.MarkSending(ctx, gameID, ids); err != nil {
		return err
	}

	// The submission outlives UI teardown; cancelling mid-flight would leave
	// the batch in limbo until the next restore.
	sctx := context.WithoutCancel(ctx)
	res, err := s.Transport.SubmitBatch(sctx, gameID, ops)
	if err != nil {
		return s.handleSubmitError(sctx, gameID, batch, ids, err)
	}
	s.resetAttempts(gameID)
	return s.reconcile(sctx, gameID, batch, res)
}

func (s *Syncer) handleSubmitError(ctx context.Context, gameID string, batch []OutboxOp, ids []string, err error) error {
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		// The server understood the request and refused it. Retrying the same
		// bytes cannot help.
		s.logger().Warn("batch rejected", "gameId", gameID, "status", rejected.Status, "code", rejected.Code)
		return s.Outbox.MarkFailed(ctx, gameID, ids, rejected.Error())
	}

	// Transport failure: ops go back to pending with a bumped retry count,
	// then anything over budget is failed for good.
	if markErr := s.Outbox.MarkPending(ctx, gameID, ids, err.Error()); markErr != nil {
		return markErr
	}
	var exhausted []string
	for _, op := range batch {
		if op.RetryCount+1 >= s.maxRetries() {
			exhausted = append(exhausted, op.ID)
		}
	}
	if len(exhausted) > 0 {
		if markErr := s.Outbox.MarkFailed(ctx, gameID, exhausted, "retry budget exhausted: "+err.Error()); markErr != nil {
			return markErr
		}
	}
	if len(exhausted) < len(batch) {
		s.scheduleRetry(gameID)
	}
	s.logger().Warn("batch submission failed", "gameId", gameID, "ops", len(batch), "error", err)
	return nil
}

func (s *Syncer) reconcile(ctx context.Context, gameID string, batch []OutboxOp, res results.BatchOpsResult) error {
	appliedSet := make(map[string]bool, len(res.Applied))
	for _, id := range res.Applied {
		appliedSet[id] = true
	}
	conflictSet := make(map[string]results.ConflictOp, len(res.Conflicts))
	for _, c := range res.Conflicts {
		conflictSet[c.OpID] = c
	}

	// Confirmed ops in original batch order, for folding into the shadow.
	var appliedOps []results.Op
	var leftovers []string
	for _, op := range batch {
		switch {
		case appliedSet[op.ID]:
			appliedOps = append(appliedOps, op.Op)
		case conflictSet[op.ID].OpID != "":
		default:
			// Neither applied nor conflicted: the server skipped it as
			// malformed. Surface it instead of retrying forever.
			leftovers = append(leftovers, op.ID)
		}
	}

	if err := s.Outbox.MarkApplied(ctx, gameID, res.Applied); err != nil {
		return err
	}
	for _, c := range res.Conflicts {
		if err := s.Outbox.MarkConflict(ctx, gameID, c.OpID, c.Reason); err != nil {
			return err
		}
	}
	if len(leftovers) > 0 {
		if err := s.Outbox.MarkFailed(ctx, gameID, leftovers, "skipped by server"); err != nil {
			return err
		}
	}

	if err := s.advanceShadow(ctx, gameID, appliedOps, res); err != nil {
		return err
	}
	if err := s.Outbox.Prune(ctx, gameID); err != nil {
		return err
	}

	if len(res.Conflicts) > 0 && s.OnConflict != nil {
		s.OnConflict(gameID, res.Conflicts)
	}
	s.logger().Info("batch reconciled",
		"gameId", gameID,
		"applied", len(res.Applied),
		"conflicts", len(res.Conflicts),
		"headVersion", res.HeadVersion)
	return nil
}

func (s *Syncer) advanceShadow(ctx context.Context, gameID string, appliedOps []results.Op, res results.BatchOpsResult) error {
	sh, err := s.Shadows.Get(ctx, gameID)
	if err != nil {
		return err
	}
	if sh.behind(res.HeadVersion, len(appliedOps)) {
		// Another device moved the document; our own ops are not enough to
		// reconstruct confirmed state, so take a fresh snapshot.
		doc, err := s.Transport.FetchResults(ctx, gameID)
		if err != nil {
			s.logger().Warn("refreshing shadow after drift", "gameId", gameID, "error", err)
			// Degraded: commit our own ops so the shadow stays usable. Remote
			// edits arrive whenever the UI next fetches this game.
		} else {
			return s.Shadows.Replace(ctx, gameID, doc, s.now().UTC())
		}
	}
	if err := s.Shadows.Commit(ctx, gameID, res.HeadVersion, appliedOps, s.now().UTC()); err != nil {
		return err
	}
	for _, c := range res.Conflicts {
		if err := s.Shadows.RevertConflict(ctx, gameID, c); err != nil {
			return err
		}
	}
	return nil
}

func (s *Syncer) scheduleRetry(gameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attempts == nil {
		s.attempts = make(map[string]int)
	}
	attempt := s.attempts[gameID]
	s.attempts[gameID] = attempt + 1
	delay := s.backoff(attempt)

	if s.timers == nil {
		s.timers = make(map[string]*time.Timer)
	}
	if t, ok := s.timers[gameID]; ok {
		t.Stop()
	}
	ctx := s.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	s.timers[gameID] = time.AfterFunc(delay, func() {
		if ctx.Err() != nil {
			return
		}
		s.Kick(ctx, gameID)
	})
}

// backoff doubles from BackoffMin up to BackoffMax, with 30% jitter so a
// fleet of devices recovering from the same outage does not resubmit in
// lockstep.
func (s *Syncer) backoff(attempt int) time.Duration {
	min, max := s.BackoffMin, s.BackoffMax
	if min <= 0 {
		min = defaultBackoffMin
	}
	if max <= 0 {
		max = defaultBackoffMax
	}
	d := min
	for i := 0; i < attempt && d < max; i++ {
		d *= 2
	}
	if d > max {
		d = max
	}
	jitter := 1 + (rand.Float64()*0.6 - 0.3)
	return time.Duration(float64(d) * jitter)
}

func (s *Syncer) resetAttempts(gameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, gameID)
}

func (s *Syncer) stopTimers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

// EvictGame drops a game's cached shadow once it no longer needs the device.
// Refused while unsynced operations remain.
func (s *Syncer) EvictGame(ctx context.Context, gameID string) error {
	unsynced, err := s.Outbox.HasUnsynced(ctx, gameID)
	if err != nil {
		return err
	}
	if unsynced {
		return ErrUnsyncedOps
	}
	return s.Shadows.Evict(ctx, gameID)
}
