package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"taskbuddy/internal/models"
	"taskbuddy/internal/repositories"
	"taskbuddy/internal/timeparse"
)

type UserService interface {
	GetOrCreate(ctx context.Context, userID string) (*models.User, error)
	GetByID(ctx context.Context, userID string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, upd models.ProfileUpdate) (*models.User, error)
	SetTimeZone(ctx context.Context, userID, zone string) (*models.User, error)
	GetByVerifiedPhone(ctx context.Context, phone string) (*models.User, error)
}

type userService struct {
	repo repositories.UserRepository
}

func NewUserService(repo repositories.UserRepository) UserService {
	return &userService{repo: repo}
}

func (s *userService) GetOrCreate(ctx context.Context, userID string) (*models.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	return s.repo.GetOrCreate(ctx, userID)
}

func (s *userService) GetByID(ctx context.Context, userID string) (*models.User, error) {
	return s.repo.GetByID(ctx, userID)
}

// UpdateProfile rejects zone names that do not load as IANA zones, so a bad
// value never silently turns into UTC later.
func (s *userService) UpdateProfile(ctx context.Context, userID string, upd models.ProfileUpdate) (*models.User, error) {
	if upd.TimeZone != nil {
		zone := strings.TrimSpace(*upd.TimeZone)
		if !timeparse.ValidZone(zone) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTimeZone, zone)
		}
		upd.TimeZone = &zone
	}
	if upd.FirstName != nil {
		name := strings.TrimSpace(*upd.FirstName)
		upd.FirstName = &name
	}
	if _, err := s.repo.GetOrCreate(ctx, userID); err != nil {
		return nil, err
	}
	u, err := s.repo.UpdateProfile(ctx, userID, upd)
	if err != nil {
		return nil, err
	}
	log.Printf("[user][profile][update] user=%s zone=%s", userID, u.TimeZone)
	return u, nil
}

func (s *userService) SetTimeZone(ctx context.Context, userID, zone string) (*models.User, error) {
	return s.UpdateProfile(ctx, userID, models.ProfileUpdate{TimeZone: &zone})
}

func (s *userService) GetByVerifiedPhone(ctx context.Context, phone string) (*models.User, error) {
	return s.repo.GetByVerifiedPhone(ctx, phone)
}
