package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"Lundawebserver/internal/domain"
	"Lundawebserver/internal/results"
)

const (
	defaultMaxBatchOps = 100
	defaultOpHistory   = 500
	defaultLockWait    = 5 * time.Second
)

type GameGetter interface {
	GetGame(ctx context.Context, gameID string) (domain.Game, error)
}

// ResultsStore persists per-game sync state. UpdateState must run fn against
// the current state under a row lock and persist the mutated state
// atomically with the version it carries.
type ResultsStore interface {
	GetState(ctx context.Context, gameID string) (*results.State, error)
	UpdateState(ctx context.Context, gameID string, fn func(st *results.State) error) error
}

// ResultsNotifier fans results events out to the other participants' devices.
type ResultsNotifier interface {
	ResultsUpdated(ctx context.Context, game domain.Game, actorID string, headVersion int64, conflicts int)
}

// ResultsService is the server-side authority of the results sync protocol.
// It evaluates one batch per game at a time, in client submission order.
type ResultsService struct {
	Games    GameGetter
	Results  ResultsStore
	Notifier ResultsNotifier
	Logger   *slog.Logger

	MaxBatchOps int
	OpHistory   int
	LockWait    time.Duration
	Now         func() time.Time

	lockInit sync.Once
	locks    *gameLocks
}

func (s *ResultsService) lock(ctx context.Context, gameID string) (func(), error) {
	s.lockInit.Do(func() { s.locks = newGameLocks() })
	wait := s.LockWait
	if wait <= 0 {
		wait = defaultLockWait
	}
	return s.locks.acquire(ctx, gameID, wait)
}

// GetResults returns the confirmed document and version for a game the user
// participates in.
func (s *ResultsService) GetResults(ctx context.Context, gameID, userID string) (*results.Document, error) {
	game, err := s.Games.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	member := false
	for _, p := range game.Participants {
		if p.User.ID == userID {
			member = true
			break
		}
	}
	if !member {
		return nil, domain.ErrForbidden
	}
	st, err := s.Results.GetState(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return st.Doc, nil
}

// BatchOps applies one ordered batch of operations for one game.
//
// Per operation, against the document version V at the moment of evaluation:
// baseVersion == V applies and bumps V; baseVersion < V re-bases when the
// path is untouched since baseVersion and conflicts otherwise; baseVersion
// > V is rejected as a defensive future_version conflict. Op ids already in
// the dedup window are reported applied again without touching the document.
func (s *ResultsService) BatchOps(ctx context.Context, gameID, userID string, ops []results.Op) (results.BatchOpsResult, error) {
	if s.Now == nil {
		s.Now = time.Now
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if len(ops) == 0 {
		return results.BatchOpsResult{}, domain.NewValidationError(map[string]string{"ops": "must not be empty"})
	}
	maxOps := s.MaxBatchOps
	if maxOps <= 0 {
		maxOps = defaultMaxBatchOps
	}
	if len(ops) > maxOps {
		return results.BatchOpsResult{}, domain.NewValidationError(map[string]string{"ops": "too many operations in one batch"})
	}

	game, err := s.Games.GetGame(ctx, gameID)
	if err != nil {
		return results.BatchOpsResult{}, err
	}
	if !game.CanEditResults(userID) {
		return results.BatchOpsResult{}, domain.ErrForbidden
	}

	release, err := s.lock(ctx, gameID)
	if err != nil {
		return results.BatchOpsResult{}, err
	}
	defer release()

	window := s.OpHistory
	if window <= 0 {
		window = defaultOpHistory
	}

	res := results.BatchOpsResult{
		Applied:   []string{},
		Conflicts: []results.ConflictOp{},
	}

	err = s.Results.UpdateState(ctx, gameID, func(st *results.State) error {
		resetSeen := false
		// Touches at or before batchStart belong to other batches; touches
		// after it were made by earlier ops of this one and are compatible.
		batchStart := st.Doc.Version
		for _, op := range ops {
			if op.GameID != "" && op.GameID != gameID {
				logger.Warn("op for wrong game skipped", "game_id", gameID, "op_id", op.ID, "op_game_id", op.GameID)
				continue
			}
			if st.Seen(op.ID) {
				// Resubmitted after a lost response; already folded in.
				res.Applied = append(res.Applied, op.ID)
				continue
			}
			if err := results.ValidateOp(op); err != nil {
				// Permanent: neither applied nor conflicted, the client
				// marks it failed without retrying.
				logger.Warn("malformed op skipped", "game_id", gameID, "op_id", op.ID, "err", err)
				continue
			}

			if op.Path == results.ResetPath {
				if op.BaseVersion == st.Doc.Version || st.Doc.Version == 0 {
					if err := st.Doc.Apply(op); err != nil {
						logger.Warn("reset apply failed", "game_id", gameID, "op_id", op.ID, "err", err)
						continue
					}
					st.ClearHistory()
					st.Record(op.ID, window)
					res.Applied = append(res.Applied, op.ID)
					resetSeen = true
					batchStart = 0
					continue
				}
				res.Conflicts = append(res.Conflicts, results.ConflictOp{
					OpID:        op.ID,
					Reason:      results.ReasonVersionMismatch,
					ServerPatch: []results.PatchEntry{},
					ClientPatch: results.ClientPatch(op),
				})
				continue
			}

			if resetSeen && op.BaseVersion != 0 {
				res.Conflicts = append(res.Conflicts, results.ConflictOp{
					OpID:        op.ID,
					Reason:      results.ReasonStaleAfterReset,
					ServerPatch: st.Doc.NetPatch(op.Path),
					ClientPatch: results.ClientPatch(op),
				})
				continue
			}

			v := st.Doc.Version
			switch {
			case op.BaseVersion == v:
				// Fresh against the head.
			case op.BaseVersion < v:
				if st.Doc.TouchedBetween(op.Path, op.BaseVersion, batchStart) {
					res.Conflicts = append(res.Conflicts, results.ConflictOp{
						OpID:        op.ID,
						Reason:      results.ReasonVersionMismatch,
						ServerPatch: st.Doc.NetPatch(op.Path),
						ClientPatch: results.ClientPatch(op),
					})
					continue
				}
				// Stale base but the path is untouched since then: safe to
				// re-base onto the head.
			default:
				logger.Error("op claims future version", "game_id", gameID, "op_id", op.ID, "base_version", op.BaseVersion, "head", v)
				res.Conflicts = append(res.Conflicts, results.ConflictOp{
					OpID:        op.ID,
					Reason:      results.ReasonFutureVersion,
					ServerPatch: st.Doc.NetPatch(op.Path),
					ClientPatch: results.ClientPatch(op),
				})
				continue
			}

			if err := st.Doc.Apply(op); err != nil {
				logger.Warn("op apply failed", "game_id", gameID, "op_id", op.ID, "err", err)
				continue
			}
			st.Record(op.ID, window)
			res.Applied = append(res.Applied, op.ID)
		}
		res.HeadVersion = st.Doc.Version
		return nil
	})
	if err != nil {
		return results.BatchOpsResult{}, err
	}

	res.ServerTime = s.Now().UTC()

	if s.Notifier != nil && (len(res.Applied) > 0 || len(res.Conflicts) > 0) {
		s.Notifier.ResultsUpdated(ctx, game, userID, res.HeadVersion, len(res.Conflicts))
	}

	return res, nil
}
