package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Lundawebserver/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type GamesStore struct {
	pool *pgxpool.Pool
}

func NewGamesStore(pool *pgxpool.Pool) *GamesStore {
	return &GamesStore{pool: pool}
}

func (s *GamesStore) CreateGame(ctx context.Context, createdBy, title string, startTime, endTime *time.Time, resultsByAnyone bool, adminIDs, playerIDs []string, updatedAt time.Time) (string, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const insertGame = `
		INSERT INTO games (created_by, title, start_time, end_time, results_by_anyone, results_status, results_version, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7)
		RETURNING id
	`

	var gameIDUUID pgtype.UUID
	var startAny any
	if startTime != nil {
		startAny = *startTime
	}
	var endAny any
	if endTime != nil {
		endAny = *endTime
	}
	if err := tx.QueryRow(ctx, insertGame, createdBy, title, startAny, endAny, resultsByAnyone, domain.ResultsNone, updatedAt).Scan(&gameIDUUID); err != nil {
		return "", fmt.Errorf("insert game: %w", err)
	}
	gameID := uuidOrEmpty(gameIDUUID)

	const insertParticipant = `
		INSERT INTO game_participants (game_id, user_id, role)
		VALUES ($1, $2, $3)
	`
	insert := func(userID string, role domain.ParticipantRole) error {
		if _, err := tx.Exec(ctx, insertParticipant, gameID, userID, role); err != nil {
			var pgerr *pgconn.PgError
			if errors.As(err, &pgerr) && pgerr.Code == "23503" {
				return domain.ErrValidation
			}
			return fmt.Errorf("insert game participant: %w", err)
		}
		return nil
	}
	if err := insert(createdBy, domain.RoleOwner); err != nil {
		return "", err
	}
	for _, id := range adminIDs {
		if err := insert(id, domain.RoleAdmin); err != nil {
			return "", err
		}
	}
	for _, id := range playerIDs {
		if err := insert(id, domain.RolePlayer); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit tx: %w", err)
	}
	return gameID, nil
}

func (s *GamesStore) GetGame(ctx context.Context, gameID string) (domain.Game, error) {
	const q = `
		SELECT g.id, g.created_by, g.title, g.start_time, g.end_time, g.results_by_anyone, g.results_status, g.results_version, g.created_at, g.updated_at
		FROM games g
		WHERE g.id = $1
	`
	var (
		idUUID        pgtype.UUID
		createdBy     pgtype.UUID
		title         string
		startTime     pgtype.Timestamptz
		endTime       pgtype.Timestamptz
		byAnyone      bool
		resultsStatus string
		resultsVer    int64
		createdAt     time.Time
		updatedAt     time.Time
	)
	if err := s.pool.QueryRow(ctx, q, gameID).Scan(
		&idUUID,
		&createdBy,
		&title,
		&startTime,
		&endTime,
		&byAnyone,
		&resultsStatus,
		&resultsVer,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Game{}, domain.ErrNotFound
		}
		return domain.Game{}, fmt.Errorf("get game: %w", err)
	}

	id := uuidOrEmpty(idUUID)
	participants, err := s.listParticipants(ctx, id)
	if err != nil {
		return domain.Game{}, err
	}

	return domain.Game{
		ID:              id,
		CreatedBy:       uuidOrEmpty(createdBy),
		Title:           title,
		StartTime:       timestamptzPtr(startTime),
		EndTime:         timestamptzPtr(endTime),
		ResultsByAnyone: byAnyone,
		ResultsStatus:   domain.ResultsStatus(resultsStatus),
		ResultsVersion:  resultsVer,
		Participants:    participants,
		CreatedAt:       createdAt,
		UpdatedAt:       updatedAt,
	}, nil
}

func (s *GamesStore) ListGamesForUser(ctx context.Context, userID string, limit int) ([]domain.Game, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	// Games where the user participates, most recent first.
	const q = `
		SELECT g.id, g.created_by, g.title, g.start_time, g.end_time, g.results_by_anyone, g.results_status, g.results_version, g.created_at, g.updated_at
		FROM games g
		JOIN game_participants gp ON gp.game_id = g.id
		WHERE gp.user_id = $1
		ORDER BY g.created_at DESC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()

	type gameRow struct {
		idUUID        pgtype.UUID
		createdBy     pgtype.UUID
		title         string
		startTime     pgtype.Timestamptz
		endTime       pgtype.Timestamptz
		byAnyone      bool
		resultsStatus string
		resultsVer    int64
		createdAt     time.Time
		updatedAt     time.Time
	}

	var tmp []gameRow
	for rows.Next() {
		var r gameRow
		if err := rows.Scan(&r.idUUID, &r.createdBy, &r.title, &r.startTime, &r.endTime, &r.byAnyone, &r.resultsStatus, &r.resultsVer, &r.createdAt, &r.updatedAt); err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		tmp = append(tmp, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}

	out := make([]domain.Game, 0, len(tmp))
	for _, r := range tmp {
		id := uuidOrEmpty(r.idUUID)
		participants, err := s.listParticipants(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Game{
			ID:              id,
			CreatedBy:       uuidOrEmpty(r.createdBy),
			Title:           r.title,
			StartTime:       timestamptzPtr(r.startTime),
			EndTime:         timestamptzPtr(r.endTime),
			ResultsByAnyone: r.byAnyone,
			ResultsStatus:   domain.ResultsStatus(r.resultsStatus),
			ResultsVersion:  r.resultsVer,
			Participants:    participants,
			CreatedAt:       r.createdAt,
			UpdatedAt:       r.updatedAt,
		})
	}
	return out, nil
}

func (s *GamesStore) listParticipants(ctx context.Context, gameID string) ([]domain.GameParticipant, error) {
	const q = `
		SELECT u.id, u.username, gp.role
		FROM game_participants gp
		JOIN users u ON u.id = gp.user_id
		WHERE gp.game_id = $1
		ORDER BY gp.role ASC, u.username ASC
	`

	rows, err := s.pool.Query(ctx, q, gameID)
	if err != nil {
		return nil, fmt.Errorf("list game participants: %w", err)
	}
	defer rows.Close()

	var out []domain.GameParticipant
	for rows.Next() {
		var (
			idUUID   pgtype.UUID
			username string
			role     string
		)
		if err := rows.Scan(&idUUID, &username, &role); err != nil {
			return nil, fmt.Errorf("scan game participant: %w", err)
		}
		out = append(out, domain.GameParticipant{
			User: domain.UserSummary{ID: uuidOrEmpty(idUUID), Username: username},
			Role: domain.ParticipantRole(role),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list game participants: %w", err)
	}
	return out, nil
}

// SetResultsByAnyone toggles whether any participant may edit results.
func (s *GamesStore) SetResultsByAnyone(ctx context.Context, gameID string, allowed bool, updatedAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE games SET results_by_anyone = $2, updated_at = $3 WHERE id = $1`, gameID, allowed, updatedAt)
	if err != nil {
		return fmt.Errorf("set results_by_anyone: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetResultsStatus moves the results lifecycle (none, in_progress, final).
func (s *GamesStore) SetResultsStatus(ctx context.Context, gameID string, status domain.ResultsStatus, updatedAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE games SET results_status = $2, updated_at = $3 WHERE id = $1`, gameID, status, updatedAt)
	if err != nil {
		return fmt.Errorf("set results_status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
