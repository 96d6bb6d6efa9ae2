package services

import (
	"context"

	"github.com/google/uuid"

	"driftchat/internal/domain"
	"driftchat/internal/repository"
)

// PresenceReader is the read side of the presence store.
type PresenceReader interface {
	IsOnline(ctx context.Context, userID uuid.UUID) (bool, error)
	OnlineUsers(ctx context.Context) ([]string, error)
}

type UserService struct {
	userRepo repository.UserRepository
	presence PresenceReader
}

func NewUserService(userRepo repository.UserRepository, presence PresenceReader) *UserService {
	return &UserService{userRepo: userRepo, presence: presence}
}

// UserSummary pairs a profile with its live presence.
type UserSummary struct {
	domain.Profile
	IsOnline bool `json:"isOnline"`
}

// ListOthers returns every other user, annotated with presence so the
// contact list can render online badges without a second round trip.
func (s *UserService) ListOthers(ctx context.Context, selfID uuid.UUID) ([]UserSummary, error) {
	users, err := s.userRepo.ListOthers(ctx, selfID)
	if err != nil {
		return nil, err
	}

	online := map[string]bool{}
	if s.presence != nil {
		ids, err := s.presence.OnlineUsers(ctx)
		if err == nil {
			for _, id := range ids {
				online[id] = true
			}
		}
	}

	summaries := make([]UserSummary, 0, len(users))
	for _, u := range users {
		summaries = append(summaries, UserSummary{
			Profile:  u.Profile(),
			IsOnline: online[u.ID.String()],
		})
	}
	return summaries, nil
}

func (s *UserService) GetProfile(ctx context.Context, id uuid.UUID) (domain.Profile, error) {
	u, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return domain.Profile{}, err
	}
	return u.Profile(), nil
}
