package notes

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("note not found")
	ErrForbidden = errors.New("only the owner can modify this note")
	ErrInvalid   = errors.New("invalid note")
)

type Repository interface {
	Create(ctx context.Context, n *Note) error
	GetByID(ctx context.Context, id string) (*Note, error)
	// List returns every note, newest first.
	List(ctx context.Context) ([]Note, error)
	// ListByUser returns a user's notes, most downloaded first.
	ListByUser(ctx context.Context, userID string) ([]Note, error)
	Update(ctx context.Context, n *Note) (*Note, error)
	Delete(ctx context.Context, id string) error
	// IncrementDownloads atomically adds one to the download counter.
	IncrementDownloads(ctx context.Context, id string) (*Note, error)
	// FileURLs returns the file reference of every note.
	FileURLs(ctx context.Context) ([]string, error)
}

type memoryRepository struct {
	mu    sync.RWMutex
	seq   int
	notes map[string]memoryNote
}

type memoryNote struct {
	Note
	seq int
}

// NewMemoryRepository keeps notes in process memory.
func NewMemoryRepository() Repository {
	return &memoryRepository{notes: make(map[string]memoryNote)}
}

func (r *memoryRepository) Create(ctx context.Context, n *Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	r.seq++
	r.notes[n.ID] = memoryNote{Note: cloneNote(*n), seq: r.seq}
	return nil
}

func (r *memoryRepository) GetByID(ctx context.Context, id string) (*Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.notes[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneNote(n.Note)
	return &out, nil
}

func (r *memoryRepository) List(ctx context.Context) ([]Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := r.snapshot(func(memoryNote) bool { return true })
	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].seq > all[j].seq
	})
	return unwrap(all), nil
}

func (r *memoryRepository) ListByUser(ctx context.Context, userID string) ([]Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mine := r.snapshot(func(n memoryNote) bool { return n.UserID == userID })
	sort.SliceStable(mine, func(i, j int) bool {
		if mine[i].DownloadCount != mine[j].DownloadCount {
			return mine[i].DownloadCount > mine[j].DownloadCount
		}
		return mine[i].seq > mine[j].seq
	})
	return unwrap(mine), nil
}

func (r *memoryRepository) Update(ctx context.Context, n *Note) (*Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.notes[n.ID]
	if !ok {
		return nil, ErrNotFound
	}
	existing.Title = n.Title
	existing.Description = n.Description
	existing.Subject = n.Subject
	existing.Tags = append([]string(nil), n.Tags...)
	r.notes[n.ID] = existing
	out := cloneNote(existing.Note)
	return &out, nil
}

func (r *memoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.notes[id]; !ok {
		return ErrNotFound
	}
	delete(r.notes, id)
	return nil
}

func (r *memoryRepository) IncrementDownloads(ctx context.Context, id string) (*Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notes[id]
	if !ok {
		return nil, ErrNotFound
	}
	n.DownloadCount++
	r.notes[id] = n
	out := cloneNote(n.Note)
	return &out, nil
}

func (r *memoryRepository) FileURLs(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	urls := make([]string, 0, len(r.notes))
	for _, n := range r.notes {
		urls = append(urls, n.FileURL)
	}
	return urls, nil
}

func (r *memoryRepository) snapshot(keep func(memoryNote) bool) []memoryNote {
	out := make([]memoryNote, 0, len(r.notes))
	for _, n := range r.notes {
		if keep(n) {
			out = append(out, memoryNote{Note: cloneNote(n.Note), seq: n.seq})
		}
	}
	return out
}

func unwrap(in []memoryNote) []Note {
	out := make([]Note, len(in))
	for i, n := range in {
		out[i] = n.Note
	}
	return out
}

func cloneNote(n Note) Note {
	if n.Tags != nil {
		n.Tags = append([]string(nil), n.Tags...)
	}
	return n
}
