package profiles

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Profile, error)
	GetProfile(ctx context.Context, id string) (*Profile, error)
	GetByEmail(ctx context.Context, email string) (*Profile, error)
	UpdateProfile(ctx context.Context, callerID, id string, req UpdateRequest) (*Profile, error)
	RecordDonation(ctx context.Context, id string, amount float64) (*Profile, error)
	AuthorNames(ctx context.Context, ids []string) (map[string]string, error)
}

// CreateRequest carries a new account. PasswordHash is already hashed.
type CreateRequest struct {
	Email        string
	PasswordHash string
	FullName     string
}

type profileService struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger *zap.Logger) Service {
	return &profileService{repo: repo, logger: logger, now: time.Now}
}

func (s *profileService) Create(ctx context.Context, req CreateRequest) (*Profile, error) {
	now := s.now().UTC()
	p := &Profile{
		Email:        NormalizeEmail(req.Email),
		PasswordHash: req.PasswordHash,
		FullName:     strings.TrimSpace(req.FullName),
		Interests:    []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	p.ProfileCompletion = Completion(p)

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("Profile created", zap.String("user_id", p.ID))
	return p, nil
}

func (s *profileService) GetProfile(ctx context.Context, id string) (*Profile, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *profileService) GetByEmail(ctx context.Context, email string) (*Profile, error) {
	return s.repo.GetByEmail(ctx, NormalizeEmail(email))
}

func (s *profileService) UpdateProfile(ctx context.Context, callerID, id string, req UpdateRequest) (*Profile, error) {
	if callerID != id {
		return nil, ErrForbidden
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	req.Apply(p)
	p.UpdatedAt = s.now().UTC()

	updated, err := s.repo.Update(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("update profile %s: %w", id, err)
	}
	s.logger.Info("Profile updated",
		zap.String("user_id", id),
		zap.Int("completion", updated.ProfileCompletion))
	return updated, nil
}

// RecordDonation sets the donor flag. The flag is never cleared once set, and
// the first claim's amount and date stay on the profile for the receipt.
func (s *profileService) RecordDonation(ctx context.Context, id string, amount float64) (*Profile, error) {
	p, err := s.repo.MarkDonor(ctx, id, amount, s.now().UTC())
	if err != nil {
		return nil, err
	}
	s.logger.Info("Donation recorded", zap.String("user_id", id), zap.Float64("amount", amount))
	return p, nil
}

// AuthorNames maps user ids to full names for note listings. Unknown ids are
// omitted.
func (s *profileService) AuthorNames(ctx context.Context, ids []string) (map[string]string, error) {
	profiles, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(profiles))
	for _, p := range profiles {
		names[p.ID] = p.FullName
	}
	return names, nil
}
