// Package maintenance removes uploaded files that no note refers to. Uploads
// and note records are written without a transaction, so a crash between the
// two leaves a stored file behind.
package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"collegestar/notes-portal/notes-portal-backend/pkg/storage"
)

// FileReferences lists the file URL of every note.
type FileReferences interface {
	FileURLs(ctx context.Context) ([]string, error)
}

// SweepResult summarises one sweep.
type SweepResult struct {
	Scanned int
	Kept    int
	Removed []string
	Failed  int
}

type Sweeper struct {
	store  storage.Storage
	refs   FileReferences
	grace  time.Duration
	logger *zap.Logger
	now    func() time.Time

	cron    *cron.Cron
	mu      sync.Mutex
	running bool
}

// NewSweeper deletes objects older than grace that no note references.
func NewSweeper(store storage.Storage, refs FileReferences, grace time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		store:  store,
		refs:   refs,
		grace:  grace,
		logger: logger,
		now:    time.Now,
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DefaultLogger),
			cron.SkipIfStillRunning(cron.DefaultLogger),
		)),
	}
}

// Start runs a sweep on schedule, a standard cron expression or a descriptor
// such as "@daily".
func (s *Sweeper) Start(schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("sweeper already running")
	}

	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if _, err := s.SweepOnce(ctx); err != nil {
			s.logger.Error("Orphan sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("Orphan sweeper started", zap.String("schedule", schedule), zap.Duration("grace", s.grace))
	return nil
}

// Stop waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("Orphan sweeper stopped")
}

func (s *Sweeper) SweepOnce(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	objects, err := s.store.List(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list stored files: %w", err)
	}
	urls, err := s.refs.FileURLs(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list note files: %w", err)
	}

	referenced := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		if key, ok := s.store.KeyFromURL(u); ok {
			referenced[key] = struct{}{}
		}
	}

	cutoff := s.now().Add(-s.grace)
	for _, obj := range objects {
		result.Scanned++
		if _, ok := referenced[obj.Key]; ok || obj.Modified.After(cutoff) {
			result.Kept++
			continue
		}
		if err := s.store.Delete(ctx, obj.Key); err != nil {
			result.Failed++
			s.logger.Warn("Failed to remove orphaned file", zap.String("key", obj.Key), zap.Error(err))
			continue
		}
		result.Removed = append(result.Removed, obj.Key)
	}

	s.logger.Info("Orphan sweep finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("removed", len(result.Removed)),
		zap.Int("failed", result.Failed))
	return result, nil
}
