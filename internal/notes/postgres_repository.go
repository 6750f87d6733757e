package notes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type noteRow struct {
	ID            string `gorm:"type:uuid;primaryKey"`
	Title         string `gorm:"not null"`
	Description   string
	Subject       string `gorm:"not null"`
	Tags          datatypes.JSONSlice[string]
	FileName      string
	FileURL       string
	DownloadCount int       `gorm:"not null;default:0;index:idx_notes_user_downloads,priority:2"`
	UserID        string    `gorm:"type:uuid;index:idx_notes_user_downloads,priority:1;not null"`
	CreatedAt     time.Time `gorm:"index"`
}

func (noteRow) TableName() string { return "notes" }

func (r noteRow) toNote() Note {
	return Note{
		ID:            r.ID,
		Title:         r.Title,
		Description:   r.Description,
		Subject:       r.Subject,
		Tags:          []string(r.Tags),
		FileName:      r.FileName,
		FileURL:       r.FileURL,
		DownloadCount: r.DownloadCount,
		UserID:        r.UserID,
		CreatedAt:     r.CreatedAt,
	}
}

type postgresRepository struct {
	db *gorm.DB
}

// NewPostgresRepository stores notes in the notes table, migrating it on
// first use.
func NewPostgresRepository(db *gorm.DB) (Repository, error) {
	if err := db.AutoMigrate(&noteRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate notes table: %w", err)
	}
	return &postgresRepository{db: db}, nil
}

func (r *postgresRepository) Create(ctx context.Context, n *Note) error {
	if _, err := uuid.Parse(n.UserID); err != nil {
		return fmt.Errorf("%w: owner id %q", ErrInvalid, n.UserID)
	}
	row := noteRow{
		ID:            uuid.NewString(),
		Title:         n.Title,
		Description:   n.Description,
		Subject:       n.Subject,
		Tags:          datatypes.JSONSlice[string](n.Tags),
		FileName:      n.FileName,
		FileURL:       n.FileURL,
		DownloadCount: n.DownloadCount,
		UserID:        n.UserID,
		CreatedAt:     n.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert note: %w", err)
	}
	n.ID = row.ID
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id string) (*Note, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	var row noteRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find note: %w", err)
	}
	n := row.toNote()
	return &n, nil
}

func (r *postgresRepository) List(ctx context.Context) ([]Note, error) {
	return r.find(r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC"))
}

func (r *postgresRepository) ListByUser(ctx context.Context, userID string) ([]Note, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return []Note{}, nil
	}
	return r.find(r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("download_count DESC").
		Order("created_at DESC"))
}

func (r *postgresRepository) find(q *gorm.DB) ([]Note, error) {
	var rows []noteRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	out := make([]Note, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toNote())
	}
	return out, nil
}

func (r *postgresRepository) Update(ctx context.Context, n *Note) (*Note, error) {
	if _, err := uuid.Parse(n.ID); err != nil {
		return nil, ErrNotFound
	}
	result := r.db.WithContext(ctx).Model(&noteRow{}).
		Where("id = ?", n.ID).
		Select("title", "description", "subject", "tags").
		Updates(&noteRow{
			Title:       n.Title,
			Description: n.Description,
			Subject:     n.Subject,
			Tags:        datatypes.JSONSlice[string](n.Tags),
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update note: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, n.ID)
}

func (r *postgresRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	result := r.db.WithContext(ctx).Delete(&noteRow{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete note: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresRepository) IncrementDownloads(ctx context.Context, id string) (*Note, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	result := r.db.WithContext(ctx).Model(&noteRow{}).
		Where("id = ?", id).
		UpdateColumn("download_count", gorm.Expr("download_count + ?", 1))
	if result.Error != nil {
		return nil, fmt.Errorf("failed to count download: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *postgresRepository) FileURLs(ctx context.Context) ([]string, error) {
	var urls []string
	if err := r.db.WithContext(ctx).Model(&noteRow{}).Pluck("file_url", &urls).Error; err != nil {
		return nil, fmt.Errorf("failed to query note files: %w", err)
	}
	return urls, nil
}
