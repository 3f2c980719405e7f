package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"Lundawebserver/internal/domain"
	"Lundawebserver/internal/notifications"
)

type NotificationTokensStore interface {
	UpsertToken(ctx context.Context, userID, token, platform string, when time.Time) (domain.NotificationToken, error)
	DeleteToken(ctx context.Context, userID, token string) error
	ListTokens(ctx context.Context, userID string) ([]domain.NotificationToken, error)
}

type NotificationUsersStore interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)
}

type PushSender interface {
	Send(ctx context.Context, token string, msg notifications.Message) error
}

type NotificationService struct {
	Tokens NotificationTokensStore
	Users  NotificationUsersStore
	Sender PushSender
	Logger *slog.Logger
	Now    func() time.Time
}

func (s *NotificationService) RegisterToken(ctx context.Context, userID, token, platform string) (domain.NotificationToken, error) {
	if s.Tokens == nil {
		return domain.NotificationToken{}, errors.New("notifications unavailable")
	}
	token = strings.TrimSpace(token)
	platform = strings.TrimSpace(strings.ToLower(platform))
	if token == "" || platform == "" {
		return domain.NotificationToken{}, domain.NewValidationError(map[string]string{"token": "required", "platform": "required"})
	}
	switch platform {
	case "android", "ios":
	default:
		return domain.NotificationToken{}, domain.NewValidationError(map[string]string{"platform": "must be ios or android"})
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	when := s.Now().UTC().Truncate(time.Millisecond)
	return s.Tokens.UpsertToken(ctx, userID, token, platform, when)
}

func (s *NotificationService) DeleteToken(ctx context.Context, userID, token string) error {
	if s.Tokens == nil {
		return errors.New("notifications unavailable")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.NewValidationError(map[string]string{"token": "required"})
	}
	return s.Tokens.DeleteToken(ctx, userID, token)
}

// ResultsUpdated pushes a data-only nudge to every participant except the
// actor, so their devices refetch the confirmed document instead of waiting
// for the next poll. Delivery is best effort.
func (s *NotificationService) ResultsUpdated(ctx context.Context, game domain.Game, actorID string, headVersion int64, conflicts int) {
	if s.Tokens == nil || s.Sender == nil {
		return
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	actorName := ""
	if s.Users != nil {
		if actor, err := s.Users.GetUserByID(ctx, actorID); err == nil {
			actorName = actor.Username
		}
	}

	payload := map[string]string{
		"type":         "results_updated",
		"game_id":      game.ID,
		"game_title":   game.Title,
		"head_version": strconv.FormatInt(headVersion, 10),
		"actor":        actorName,
	}
	if conflicts > 0 {
		payload["conflicts"] = strconv.Itoa(conflicts)
	}

	body := "Match results were updated."
	if actorName != "" {
		body = actorName + " updated the match results."
	}
	dataOnlyMsg := notifications.Message{
		Data: payload,
	}
	// iOS does not reliably deliver data-only pushes, so its devices get an
	// alert variant.
	iosAlertMsg := notifications.Message{
		Data: payload,
		Notification: &notifications.Notification{
			Title: game.Title,
			Body:  body,
		},
	}

	for _, p := range game.Participants {
		if p.User.ID == actorID {
			continue
		}
		tokens, err := s.Tokens.ListTokens(ctx, p.User.ID)
		if err != nil {
			logger.Error("notifications: list tokens failed", "err", err, "user_id", p.User.ID)
			continue
		}
		for _, token := range tokens {
			msg := dataOnlyMsg
			if strings.TrimSpace(strings.ToLower(token.Platform)) == "ios" {
				msg = iosAlertMsg
			}
			if err := s.Sender.Send(ctx, token.Token, msg); err != nil {
				if errors.Is(err, notifications.ErrInvalidToken) {
					if delErr := s.Tokens.DeleteToken(ctx, p.User.ID, token.Token); delErr != nil {
						logger.Error("notifications: delete invalid token failed", "err", delErr, "user_id", p.User.ID)
					}
					continue
				}
				logger.Error("notifications: send failed", "err", err, "user_id", p.User.ID)
			}
		}
	}
}
