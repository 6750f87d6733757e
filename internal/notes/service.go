package notes

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"collegestar/notes-portal/notes-portal-backend/internal/notes/export"
	"collegestar/notes-portal/notes-portal-backend/pkg/storage"
)

const maxPageSize = 100

// AuthorDirectory resolves note owners to display names.
type AuthorDirectory interface {
	AuthorNames(ctx context.Context, ids []string) (map[string]string, error)
}

type Service interface {
	List(ctx context.Context, q ListQuery) ([]Note, int, error)
	Get(ctx context.Context, id string) (*Note, error)
	ListByUser(ctx context.Context, userID string) ([]Note, error)
	Create(ctx context.Context, req CreateRequest) (*Note, error)
	Update(ctx context.Context, callerID, id string, req UpdateRequest) (*Note, error)
	Delete(ctx context.Context, callerID, id string) error
	RecordDownload(ctx context.Context, id string) (*Download, error)
	OpenFile(ctx context.Context, id string) (io.ReadCloser, *Note, error)
	Stats(ctx context.Context, userID string) (*Stats, error)
	Export(ctx context.Context, userID string, format export.Format, w io.Writer) error
}

type noteService struct {
	repo    Repository
	store   storage.Storage
	authors AuthorDirectory
	logger  *zap.Logger
	now     func() time.Time
}

func NewService(repo Repository, store storage.Storage, authors AuthorDirectory, logger *zap.Logger) Service {
	return &noteService{
		repo:    repo,
		store:   store,
		authors: authors,
		logger:  logger,
		now:     time.Now,
	}
}

// List returns the filtered page and the number of notes matching before
// paging.
func (s *noteService) List(ctx context.Context, q ListQuery) ([]Note, int, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, 0, err
	}

	matched := all[:0]
	for _, n := range all {
		if q.Subject != "" && !strings.EqualFold(strings.TrimSpace(n.Subject), strings.TrimSpace(q.Subject)) {
			continue
		}
		if !n.Matches(q.Query) {
			continue
		}
		matched = append(matched, n)
	}
	total := len(matched)

	page := paginate(matched, q.Limit, q.Offset)
	s.attachAuthors(ctx, page)
	return page, total, nil
}

func paginate(notes []Note, limit, offset int) []Note {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(notes) {
		return []Note{}
	}
	notes = notes[offset:]
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if limit > 0 && limit < len(notes) {
		notes = notes[:limit]
	}
	return notes
}

func (s *noteService) Get(ctx context.Context, id string) (*Note, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	one := []Note{*n}
	s.attachAuthors(ctx, one)
	return &one[0], nil
}

func (s *noteService) ListByUser(ctx context.Context, userID string) ([]Note, error) {
	notes, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.attachAuthors(ctx, notes)
	return notes, nil
}

// Create stores the file first and then writes the metadata. When the
// metadata write fails the stored file is removed on a best-effort basis.
func (s *noteService) Create(ctx context.Context, req CreateRequest) (*Note, error) {
	title := strings.TrimSpace(req.Title)
	subject := strings.TrimSpace(req.Subject)
	if title == "" || subject == "" {
		return nil, fmt.Errorf("%w: title and subject are required", ErrInvalid)
	}
	if req.Body == nil || req.FileName == "" {
		return nil, fmt.Errorf("%w: file is required", ErrInvalid)
	}

	key := storage.NewKey(req.FileName)
	if err := s.store.Put(ctx, key, req.Body, req.ContentType); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	n := &Note{
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Subject:     subject,
		Tags:        CleanTags(req.Tags),
		FileName:    req.FileName,
		FileURL:     s.store.URL(key),
		UserID:      req.UserID,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			s.logger.Warn("Failed to remove upload after metadata error",
				zap.String("key", key), zap.Error(delErr))
		}
		return nil, err
	}

	s.logger.Info("Note uploaded",
		zap.String("note_id", n.ID),
		zap.String("user_id", n.UserID),
		zap.String("key", key))
	return n, nil
}

func (s *noteService) Update(ctx context.Context, callerID, id string, req UpdateRequest) (*Note, error) {
	n, err := s.owned(ctx, callerID, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		n.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		n.Description = strings.TrimSpace(*req.Description)
	}
	if req.Subject != nil {
		n.Subject = strings.TrimSpace(*req.Subject)
	}
	if req.Tags != nil {
		n.Tags = CleanTags(*req.Tags)
	}
	if n.Title == "" || n.Subject == "" {
		return nil, fmt.Errorf("%w: title and subject are required", ErrInvalid)
	}

	return s.repo.Update(ctx, n)
}

// Delete removes the note record, then its file. A file that cannot be
// removed is left for the orphan sweeper.
func (s *noteService) Delete(ctx context.Context, callerID, id string) error {
	n, err := s.owned(ctx, callerID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if key, ok := s.store.KeyFromURL(n.FileURL); ok {
		if err := s.store.Delete(ctx, key); err != nil {
			s.logger.Warn("Failed to remove note file", zap.String("key", key), zap.Error(err))
		}
	}
	s.logger.Info("Note deleted", zap.String("note_id", id), zap.String("user_id", callerID))
	return nil
}

func (s *noteService) owned(ctx context.Context, callerID, id string) (*Note, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.UserID != callerID {
		return nil, ErrForbidden
	}
	return n, nil
}

func (s *noteService) RecordDownload(ctx context.Context, id string) (*Download, error) {
	n, err := s.repo.IncrementDownloads(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Download{FileURL: n.FileURL, DownloadCount: n.DownloadCount}, nil
}

func (s *noteService) OpenFile(ctx context.Context, id string) (io.ReadCloser, *Note, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	key, ok := s.store.KeyFromURL(n.FileURL)
	if !ok {
		return nil, nil, fmt.Errorf("%w: file reference %q is not in this store", storage.ErrObjectNotFound, n.FileURL)
	}
	rc, err := s.store.Open(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	return rc, n, nil
}

func (s *noteService) Stats(ctx context.Context, userID string) (*Stats, error) {
	notes, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats := &Stats{UserID: userID, NoteCount: len(notes)}
	for _, n := range notes {
		stats.TotalDownloads += n.DownloadCount
	}
	return stats, nil
}

func (s *noteService) Export(ctx context.Context, userID string, format export.Format, w io.Writer) error {
	notes, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return err
	}

	table := export.Table{
		Sheet:   "Notes",
		Columns: []string{"Title", "Subject", "Tags", "Description", "File", "Downloads", "Uploaded"},
		Rows:    make([][]interface{}, 0, len(notes)),
	}
	for _, n := range notes {
		table.Rows = append(table.Rows, []interface{}{
			n.Title, n.Subject, n.Tags, n.Description, n.FileName, n.DownloadCount, n.CreatedAt,
		})
	}

	switch format {
	case export.FormatXLSX:
		return export.WriteXLSX(w, table, export.DefaultExcelOptions())
	default:
		return export.WriteCSV(w, table, export.DefaultCSVOptions())
	}
}

func (s *noteService) attachAuthors(ctx context.Context, notes []Note) {
	if s.authors == nil || len(notes) == 0 {
		return
	}
	ids := make([]string, 0, len(notes))
	seen := make(map[string]struct{}, len(notes))
	for _, n := range notes {
		if _, ok := seen[n.UserID]; !ok {
			seen[n.UserID] = struct{}{}
			ids = append(ids, n.UserID)
		}
	}

	names, err := s.authors.AuthorNames(ctx, ids)
	if err != nil {
		s.logger.Warn("Failed to resolve note authors", zap.Error(err))
		return
	}
	for i := range notes {
		notes[i].AuthorName = names[notes[i].UserID]
	}
}
