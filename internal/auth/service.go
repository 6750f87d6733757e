package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"collegestar/notes-portal/notes-portal-backend/internal/profiles"
)

const minPasswordLength = 6

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", minPasswordLength)
)

// TokenIssuer signs bearer tokens for an authenticated user.
type TokenIssuer interface {
	Issue(userID, email string) (string, error)
}

// Session is returned by register and login.
type Session struct {
	Token string            `json:"token"`
	User  *profiles.Profile `json:"user"`
}

type Service struct {
	profiles profiles.Service
	tokens   TokenIssuer
	logger   *zap.Logger
	cost     int
}

func NewService(p profiles.Service, tokens TokenIssuer, logger *zap.Logger) *Service {
	return &Service{profiles: p, tokens: tokens, logger: logger, cost: bcrypt.DefaultCost}
}

func (s *Service) Register(ctx context.Context, email, password, fullName string) (*Session, error) {
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.profiles.Create(ctx, profiles.CreateRequest{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     fullName,
	})
	if err != nil {
		return nil, err
	}
	return s.session(user)
}

func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.profiles.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, profiles.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Debug("Password mismatch", zap.String("user_id", user.ID))
		return nil, ErrInvalidCredentials
	}
	return s.session(user)
}

func (s *Service) Me(ctx context.Context, userID string) (*profiles.Profile, error) {
	return s.profiles.GetProfile(ctx, userID)
}

func (s *Service) session(user *profiles.Profile) (*Session, error) {
	tok, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &Session{Token: tok, User: user}, nil
}
