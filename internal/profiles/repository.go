package profiles

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound   = errors.New("profile not found")
	ErrEmailTaken = errors.New("email already registered")
	ErrForbidden  = errors.New("cannot modify another user's profile")
)

type Repository interface {
	Create(ctx context.Context, p *Profile) error
	GetByID(ctx context.Context, id string) (*Profile, error)
	GetByEmail(ctx context.Context, email string) (*Profile, error)
	GetByIDs(ctx context.Context, ids []string) ([]Profile, error)
	Update(ctx context.Context, p *Profile) (*Profile, error)
	MarkDonor(ctx context.Context, id string, amount float64, at time.Time) (*Profile, error)
}

type memoryRepository struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewMemoryRepository keeps profiles in process memory.
func NewMemoryRepository() Repository {
	return &memoryRepository{profiles: make(map[string]Profile)}
}

func (r *memoryRepository) Create(ctx context.Context, p *Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.profiles {
		if existing.Email == p.Email {
			return ErrEmailTaken
		}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	r.profiles[p.ID] = clone(*p)
	return nil
}

func (r *memoryRepository) GetByID(ctx context.Context, id string) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := clone(p)
	return &out, nil
}

func (r *memoryRepository) GetByEmail(ctx context.Context, email string) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.profiles {
		if p.Email == email {
			out := clone(p)
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryRepository) GetByIDs(ctx context.Context, ids []string) ([]Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Profile, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.profiles[id]; ok {
			out = append(out, clone(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepository) Update(ctx context.Context, p *Profile) (*Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.profiles[p.ID]
	if !ok {
		return nil, ErrNotFound
	}
	updated := clone(*p)
	updated.Email = existing.Email
	updated.PasswordHash = existing.PasswordHash
	updated.DonorVerified = existing.DonorVerified
	updated.DonorAmount = existing.DonorAmount
	updated.DonorAt = existing.DonorAt
	updated.CreatedAt = existing.CreatedAt
	r.profiles[p.ID] = updated
	out := clone(updated)
	return &out, nil
}

func (r *memoryRepository) MarkDonor(ctx context.Context, id string, amount float64, at time.Time) (*Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	if p.DonorVerified {
		out := clone(p)
		return &out, nil
	}
	p.DonorVerified = true
	p.DonorAmount = &amount
	p.DonorAt = &at
	p.UpdatedAt = at
	r.profiles[id] = p
	out := clone(p)
	return &out, nil
}

func clone(p Profile) Profile {
	if p.Interests != nil {
		p.Interests = append([]string(nil), p.Interests...)
	}
	if p.DonorAmount != nil {
		v := *p.DonorAmount
		p.DonorAmount = &v
	}
	if p.DonorAt != nil {
		v := *p.DonorAt
		p.DonorAt = &v
	}
	return p
}
