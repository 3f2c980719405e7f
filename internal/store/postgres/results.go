package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"Lundawebserver/internal/results"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ResultsStore persists per-game sync state: the confirmed document and the
// dedup history of applied op ids. Mutations run under a row lock so one
// batch at a time rewrites a game's state even across server instances.
type ResultsStore struct {
	pool *pgxpool.Pool
}

func NewResultsStore(pool *pgxpool.Pool) *ResultsStore {
	return &ResultsStore{pool: pool}
}

func (s *ResultsStore) GetState(ctx context.Context, gameID string) (*results.State, error) {
	var doc, applied []byte
	err := s.pool.QueryRow(ctx, `SELECT doc, applied_ops FROM game_results WHERE game_id = $1`, gameID).Scan(&doc, &applied)
	if errors.Is(err, pgx.ErrNoRows) {
		return results.NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get game results: %w", err)
	}
	return decodeState(gameID, doc, applied)
}

// UpdateState runs fn against the current state under a transaction and
// persists whatever fn leaves behind. A missing row is bootstrapped first so
// the row lock always has something to grab.
func (s *ResultsStore) UpdateState(ctx context.Context, gameID string, fn func(st *results.State) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const bootstrap = `
		INSERT INTO game_results (game_id, doc, applied_ops, version)
		VALUES ($1, $2, '[]', 0)
		ON CONFLICT (game_id) DO NOTHING
	`
	emptyDoc, err := json.Marshal(results.NewDocument())
	if err != nil {
		return fmt.Errorf("encode empty doc: %w", err)
	}
	if _, err := tx.Exec(ctx, bootstrap, gameID, emptyDoc); err != nil {
		return fmt.Errorf("bootstrap game results: %w", err)
	}

	var docRaw, appliedRaw []byte
	if err := tx.QueryRow(ctx, `SELECT doc, applied_ops FROM game_results WHERE game_id = $1 FOR UPDATE`, gameID).Scan(&docRaw, &appliedRaw); err != nil {
		return fmt.Errorf("lock game results: %w", err)
	}
	st, err := decodeState(gameID, docRaw, appliedRaw)
	if err != nil {
		return err
	}

	if err := fn(st); err != nil {
		return err
	}

	docOut, err := json.Marshal(st.Doc)
	if err != nil {
		return fmt.Errorf("encode doc: %w", err)
	}
	applied := st.AppliedIDs
	if applied == nil {
		applied = []string{}
	}
	appliedOut, err := json.Marshal(applied)
	if err != nil {
		return fmt.Errorf("encode applied ops: %w", err)
	}

	const update = `
		UPDATE game_results
		SET doc = $2, applied_ops = $3, version = $4, updated_at = now()
		WHERE game_id = $1
	`
	if _, err := tx.Exec(ctx, update, gameID, docOut, appliedOut, st.Doc.Version); err != nil {
		return fmt.Errorf("update game results: %w", err)
	}

	// Mirror the head version onto the game row so listings can show sync
	// progress without joining game_results.
	if _, err := tx.Exec(ctx, `UPDATE games SET results_version = $2 WHERE id = $1`, gameID, st.Doc.Version); err != nil {
		return fmt.Errorf("mirror results version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func decodeState(gameID string, docRaw, appliedRaw []byte) (*results.State, error) {
	st := results.NewState()
	if len(docRaw) > 0 {
		if err := json.Unmarshal(docRaw, st.Doc); err != nil {
			return nil, fmt.Errorf("decode doc for game %s: %w", gameID, err)
		}
		if st.Doc.Fields == nil {
			st.Doc.Fields = make(map[string]results.Field)
		}
	}
	if len(appliedRaw) > 0 {
		if err := json.Unmarshal(appliedRaw, &st.AppliedIDs); err != nil {
			return nil, fmt.Errorf("decode applied ops for game %s: %w", gameID, err)
		}
	}
	return st, nil
}
