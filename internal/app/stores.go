// Package app opens the stores selected by configuration. Both the API server
// and the worker process go through it so they agree on where data lives.
package app

import (
	"context"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"go.uber.org/zap"

	"collegestar/notes-portal/notes-portal-backend/internal/config"
	"collegestar/notes-portal/notes-portal-backend/internal/database"
	"collegestar/notes-portal/notes-portal-backend/internal/notes"
	"collegestar/notes-portal/notes-portal-backend/internal/profiles"
	"collegestar/notes-portal/notes-portal-backend/pkg/storage"
)

// Repositories holds the document store for profiles and notes.
type Repositories struct {
	Profiles profiles.Repository
	Notes    notes.Repository
	close    func()
}

// Close releases the underlying connection.
func (r *Repositories) Close() {
	if r.close != nil {
		r.close()
	}
}

// OpenRepositories connects to the configured database driver. The memory
// driver keeps everything in process.
func OpenRepositories(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Repositories, error) {
	switch cfg.Database.Driver {
	case "mongo":
		client, err := database.ConnectMongo(ctx, cfg.Database.MongoURI, cfg.Database.ConnectTimeout)
		if err != nil {
			return nil, err
		}
		closeFn := func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(disconnectCtx); err != nil {
				logger.Warn("Mongo disconnect failed", zap.Error(err))
			}
		}

		db := client.Database(cfg.Database.Name)
		if err := profiles.EnsureIndexes(ctx, db); err != nil {
			closeFn()
			return nil, err
		}
		if err := notes.EnsureIndexes(ctx, db); err != nil {
			closeFn()
			return nil, err
		}
		logger.Info("Connected to mongo", zap.String("database", cfg.Database.Name))
		return &Repositories{
			Profiles: profiles.NewMongoRepository(db),
			Notes:    notes.NewMongoRepository(db),
			close:    closeFn,
		}, nil

	case "postgres":
		db, err := database.ConnectPostgres(cfg.Database.PostgresDSN, logger)
		if err != nil {
			return nil, err
		}
		closeFn := func() {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		}
		profileRepo, err := profiles.NewPostgresRepository(db)
		if err != nil {
			closeFn()
			return nil, err
		}
		noteRepo, err := notes.NewPostgresRepository(db)
		if err != nil {
			closeFn()
			return nil, err
		}
		return &Repositories{Profiles: profileRepo, Notes: noteRepo, close: closeFn}, nil

	default:
		logger.Warn("Using in-memory repositories; data is lost on exit")
		return &Repositories{
			Profiles: profiles.NewMemoryRepository(),
			Notes:    notes.NewMemoryRepository(),
		}, nil
	}
}

// OpenStorage returns the configured file store. awsCfg is only read for s3.
func OpenStorage(cfg *config.Config, awsCfg aws.Config) (storage.Storage, error) {
	if cfg.Storage.Driver == "s3" {
		// A path-only public URL is the local default; S3 derives its own.
		publicURL := cfg.Storage.PublicURL
		if strings.HasPrefix(publicURL, "/") {
			publicURL = ""
		}
		return storage.NewS3Client(awsCfg, storage.S3Options{
			Bucket:    cfg.Storage.Bucket,
			PublicURL: publicURL,
			Endpoint:  cfg.Storage.Endpoint,
			PathStyle: cfg.Storage.PathStyle,
		}), nil
	}
	return storage.NewLocalClient(cfg.Storage.UploadDir, cfg.Storage.PublicURL)
}

// LoadAWS returns an empty config when nothing configured needs AWS.
func LoadAWS(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	if !cfg.UsesAWS() {
		return aws.Config{}, nil
	}
	return cfg.AWS.Load(ctx)
}
