package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"Lundawebserver/internal/domain"
	"Lundawebserver/internal/notifications"
)

type stubNotificationTokensStore struct {
	upsertFunc func(context.Context, string, string, string, time.Time) (domain.NotificationToken, error)
	deleteFunc func(context.Context, string, string) error
	listFunc   func(context.Context, string) ([]domain.NotificationToken, error)
}

func (s *stubNotificationTokensStore) UpsertToken(ctx context.Context, userID, token, platform string, when time.Time) (domain.NotificationToken, error) {
	if s.upsertFunc != nil {
		return s.upsertFunc(ctx, userID, token, platform, when)
	}
	return domain.NotificationToken{}, errors.New("upsert not stubbed")
}

func (s *stubNotificationTokensStore) DeleteToken(ctx context.Context, userID, token string) error {
	if s.deleteFunc != nil {
		return s.deleteFunc(ctx, userID, token)
	}
	return errors.New("delete not stubbed")
}

func (s *stubNotificationTokensStore) ListTokens(ctx context.Context, userID string) ([]domain.NotificationToken, error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, userID)
	}
	return nil, errors.New("list not stubbed")
}

type stubNotificationUsersStore struct {
	getByIDFunc func(context.Context, string) (domain.User, error)
}

func (s *stubNotificationUsersStore) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	if s.getByIDFunc != nil {
		return s.getByIDFunc(ctx, id)
	}
	return domain.User{}, errors.New("get user not stubbed")
}

type stubPushSender struct {
	sendFunc func(context.Context, string, notifications.Message) error
}

func (s *stubPushSender) Send(ctx context.Context, token string, msg notifications.Message) error {
	if s.sendFunc != nil {
		return s.sendFunc(ctx, token, msg)
	}
	return nil
}

func TestNotificationServiceRegisterTokenValidation(t *testing.T) {
	svc := &NotificationService{
		Tokens: &stubNotificationTokensStore{},
	}

	if _, err := svc.RegisterToken(context.Background(), "user-1", "", "android"); err == nil {
		t.Fatalf("expected validation error for empty token")
	}
	if _, err := svc.RegisterToken(context.Background(), "user-1", "token", ""); err == nil {
		t.Fatalf("expected validation error for empty platform")
	}
}

func TestNotificationServiceResultsUpdatedSkipsActor(t *testing.T) {
	var notified []string
	tokens := &stubNotificationTokensStore{
		listFunc: func(_ context.Context, userID string) ([]domain.NotificationToken, error) {
			return []domain.NotificationToken{{Token: "token-" + userID}}, nil
		},
	}
	users := &stubNotificationUsersStore{
		getByIDFunc: func(_ context.Context, id string) (domain.User, error) {
			return domain.User{ID: id, Username: "alice"}, nil
		},
	}
	sender := &stubPushSender{
		sendFunc: func(_ context.Context, token string, msg notifications.Message) error {
			data := msg.Data
			if data["type"] != "results_updated" || data["game_id"] != "game-1" || data["head_version"] != "7" {
				t.Fatalf("unexpected payload: %v", data)
			}
			notified = append(notified, token)
			return nil
		},
	}

	svc := &NotificationService{Tokens: tokens, Users: users, Sender: sender}
	game := domain.Game{
		ID: "game-1",
		Participants: []domain.GameParticipant{
			{User: domain.UserSummary{ID: "user-1"}, Role: domain.RoleOwner},
			{User: domain.UserSummary{ID: "user-2"}, Role: domain.RolePlayer},
		},
	}

	svc.ResultsUpdated(context.Background(), game, "user-1", 7, 0)

	if len(notified) != 1 || notified[0] != "token-user-2" {
		t.Fatalf("notified = %v, want only user-2's device", notified)
	}
}

func TestNotificationServiceResultsUpdatedDeletesInvalidToken(t *testing.T) {
	deleted := false
	tokens := &stubNotificationTokensStore{
		listFunc: func(_ context.Context, userID string) ([]domain.NotificationToken, error) {
			if userID != "user-2" {
				t.Fatalf("unexpected user id: %s", userID)
			}
			return []domain.NotificationToken{{Token: "token-1"}}, nil
		},
		deleteFunc: func(_ context.Context, userID, token string) error {
			if userID != "user-2" || token != "token-1" {
				t.Fatalf("unexpected delete args: %s %s", userID, token)
			}
			deleted = true
			return nil
		},
	}
	users := &stubNotificationUsersStore{
		getByIDFunc: func(_ context.Context, id string) (domain.User, error) {
			return domain.User{ID: id, Username: "alice"}, nil
		},
	}
	sender := &stubPushSender{
		sendFunc: func(_ context.Context, token string, msg notifications.Message) error {
			return notifications.ErrInvalidToken
		},
	}

	svc := &NotificationService{Tokens: tokens, Users: users, Sender: sender}
	game := domain.Game{
		ID: "game-1",
		Participants: []domain.GameParticipant{
			{User: domain.UserSummary{ID: "user-1"}, Role: domain.RoleOwner},
			{User: domain.UserSummary{ID: "user-2"}, Role: domain.RolePlayer},
		},
	}

	svc.ResultsUpdated(context.Background(), game, "user-1", 3, 0)

	if !deleted {
		t.Fatalf("expected invalid token to be deleted")
	}
}
