package verification

import (
	"context"
	"errors"
	"time"
)

// ErrNotAuthenticated is returned when no user identity can be resolved.
var ErrNotAuthenticated = errors.New("not authenticated")

type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// Profile is the subset of a profile record the donation flow cares about.
type Profile struct {
	ID            string     `json:"id"`
	FullName      string     `json:"full_name"`
	DonorVerified bool       `json:"donorVerified"`
	DonorAmount   *float64   `json:"donorAmount,omitempty"`
	DonorAt       *time.Time `json:"donorAt,omitempty"`
}

// ProfilePatch carries the fields of a partial profile update.
type ProfilePatch map[string]any

// IdentityStore is the backend the poller checks against. Either the REST
// API or a hosted backend can satisfy it.
type IdentityStore interface {
	// CurrentUser resolves the signed-in user without touching the network.
	CurrentUser(ctx context.Context) (*User, error)
	FetchProfile(ctx context.Context, id string) (*Profile, error)
	UpdateProfile(ctx context.Context, id string, patch ProfilePatch) (*Profile, error)
}
