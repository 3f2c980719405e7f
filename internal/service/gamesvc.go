package service

import (
	"context"
	"strings"
	"time"

	"Lundawebserver/internal/domain"
)

type GamesStore interface {
	CreateGame(ctx context.Context, createdBy, title string, startTime, endTime *time.Time, resultsByAnyone bool, adminIDs, playerIDs []string, updatedAt time.Time) (string, error)
	GetGame(ctx context.Context, gameID string) (domain.Game, error)
	ListGamesForUser(ctx context.Context, userID string, limit int) ([]domain.Game, error)
	SetResultsByAnyone(ctx context.Context, gameID string, allowed bool, updatedAt time.Time) error
	SetResultsStatus(ctx context.Context, gameID string, status domain.ResultsStatus, updatedAt time.Time) error
}

type GameService struct {
	Games GamesStore
	Now   func() time.Time
}

type CreateGameParams struct {
	Title           string
	StartTime       *time.Time
	EndTime         *time.Time
	ResultsByAnyone bool
	AdminIDs        []string
	PlayerIDs       []string
}

func (s *GameService) CreateGame(ctx context.Context, creatorID string, p CreateGameParams) (string, error) {
	if s.Now == nil {
		s.Now = time.Now
	}

	p.Title = strings.TrimSpace(p.Title)
	if p.Title == "" {
		return "", domain.NewValidationError(map[string]string{"title": "required"})
	}
	if p.StartTime != nil && p.EndTime != nil && p.EndTime.Before(*p.StartTime) {
		return "", domain.NewValidationError(map[string]string{"end_time": "must not precede start_time"})
	}

	// The creator is always the owner; admin listings win over player
	// listings when a user appears in both.
	seen := map[string]bool{creatorID: true}
	admins := make([]string, 0, len(p.AdminIDs))
	for _, id := range p.AdminIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		admins = append(admins, id)
	}
	players := make([]string, 0, len(p.PlayerIDs))
	for _, id := range p.PlayerIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		players = append(players, id)
	}
	if len(seen) < 2 {
		return "", domain.NewValidationError(map[string]string{"players": "must have at least 2 participants"})
	}

	return s.Games.CreateGame(ctx, creatorID, p.Title, p.StartTime, p.EndTime, p.ResultsByAnyone, admins, players, s.Now().UTC())
}

// GetGame returns the game if the caller participates in it.
func (s *GameService) GetGame(ctx context.Context, userID, gameID string) (domain.Game, error) {
	g, err := s.Games.GetGame(ctx, gameID)
	if err != nil {
		return domain.Game{}, err
	}
	if !participates(g, userID) {
		return domain.Game{}, domain.ErrNotFound
	}
	return g, nil
}

func (s *GameService) ListGames(ctx context.Context, userID string, limit int) ([]domain.Game, error) {
	return s.Games.ListGamesForUser(ctx, userID, limit)
}

// SetResultsByAnyone is an owner/admin toggle for who may edit results.
func (s *GameService) SetResultsByAnyone(ctx context.Context, userID, gameID string, allowed bool) error {
	if s.Now == nil {
		s.Now = time.Now
	}

	g, err := s.Games.GetGame(ctx, gameID)
	if err != nil {
		return err
	}
	if !hasRole(g, userID, domain.RoleOwner, domain.RoleAdmin) {
		return domain.ErrForbidden
	}
	return s.Games.SetResultsByAnyone(ctx, gameID, allowed, s.Now().UTC())
}

// FinalizeResults moves the results lifecycle to final. Only the owner or an
// admin may finalize; edits after that are still accepted by the resolver
// but the status flags the outcome as official.
func (s *GameService) FinalizeResults(ctx context.Context, userID, gameID string) error {
	if s.Now == nil {
		s.Now = time.Now
	}

	g, err := s.Games.GetGame(ctx, gameID)
	if err != nil {
		return err
	}
	if !hasRole(g, userID, domain.RoleOwner, domain.RoleAdmin) {
		return domain.ErrForbidden
	}
	return s.Games.SetResultsStatus(ctx, gameID, domain.ResultsFinal, s.Now().UTC())
}

func participates(g domain.Game, userID string) bool {
	for _, p := range g.Participants {
		if p.User.ID == userID {
			return true
		}
	}
	return false
}

func hasRole(g domain.Game, userID string, roles ...domain.ParticipantRole) bool {
	for _, p := range g.Participants {
		if p.User.ID != userID {
			continue
		}
		for _, r := range roles {
			if p.Role == r {
				return true
			}
		}
	}
	return false
}
