package profiles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type profileRow struct {
	ID                string `gorm:"type:uuid;primaryKey"`
	Email             string `gorm:"uniqueIndex;not null"`
	PasswordHash      string `gorm:"not null"`
	FullName          string
	Bio               string
	AvatarURL         string
	Institute         string
	Course            string
	Stream            string
	Interests         datatypes.JSONSlice[string]
	LastQualification string
	Aim               string
	StudyHours        string
	PreferredContent  string
	ProfileCompletion int
	DonorVerified     bool `gorm:"not null;default:false"`
	DonorAmount       *float64
	DonorAt           *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (profileRow) TableName() string { return "profiles" }

func (r profileRow) toProfile() *Profile {
	return &Profile{
		ID:                r.ID,
		Email:             r.Email,
		PasswordHash:      r.PasswordHash,
		FullName:          r.FullName,
		Bio:               r.Bio,
		AvatarURL:         r.AvatarURL,
		Institute:         r.Institute,
		Course:            r.Course,
		Stream:            r.Stream,
		Interests:         []string(r.Interests),
		LastQualification: r.LastQualification,
		Aim:               r.Aim,
		StudyHours:        r.StudyHours,
		PreferredContent:  r.PreferredContent,
		ProfileCompletion: r.ProfileCompletion,
		DonorVerified:     r.DonorVerified,
		DonorAmount:       r.DonorAmount,
		DonorAt:           r.DonorAt,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

// editableColumns are written by Update; donor columns are only touched by
// MarkDonor.
var editableColumns = []string{
	"full_name", "bio", "avatar_url", "institute", "course", "stream",
	"interests", "last_qualification", "aim", "study_hours",
	"preferred_content", "profile_completion", "updated_at",
}

type postgresRepository struct {
	db *gorm.DB
}

// NewPostgresRepository stores profiles in the profiles table, migrating it
// on first use.
func NewPostgresRepository(db *gorm.DB) (Repository, error) {
	if err := db.AutoMigrate(&profileRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate profiles table: %w", err)
	}
	return &postgresRepository{db: db}, nil
}

func (r *postgresRepository) Create(ctx context.Context, p *Profile) error {
	row := profileRow{
		ID:                uuid.NewString(),
		Email:             p.Email,
		PasswordHash:      p.PasswordHash,
		FullName:          p.FullName,
		Interests:         datatypes.JSONSlice[string](p.Interests),
		ProfileCompletion: p.ProfileCompletion,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	p.ID = row.ID
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id string) (*Profile, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return r.first(ctx, "id = ?", id)
}

func (r *postgresRepository) GetByEmail(ctx context.Context, email string) (*Profile, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *postgresRepository) first(ctx context.Context, query string, arg any) (*Profile, error) {
	var row profileRow
	if err := r.db.WithContext(ctx).Where(query, arg).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	return row.toProfile(), nil
}

func (r *postgresRepository) GetByIDs(ctx context.Context, ids []string) ([]Profile, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return []Profile{}, nil
	}

	var rows []profileRow
	if err := r.db.WithContext(ctx).Where("id IN ?", valid).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	out := make([]Profile, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row.toProfile())
	}
	return out, nil
}

func (r *postgresRepository) Update(ctx context.Context, p *Profile) (*Profile, error) {
	if _, err := uuid.Parse(p.ID); err != nil {
		return nil, ErrNotFound
	}
	row := profileRow{
		FullName:          p.FullName,
		Bio:               p.Bio,
		AvatarURL:         p.AvatarURL,
		Institute:         p.Institute,
		Course:            p.Course,
		Stream:            p.Stream,
		Interests:         datatypes.JSONSlice[string](p.Interests),
		LastQualification: p.LastQualification,
		Aim:               p.Aim,
		StudyHours:        p.StudyHours,
		PreferredContent:  p.PreferredContent,
		ProfileCompletion: p.ProfileCompletion,
		UpdatedAt:         p.UpdatedAt,
	}
	result := r.db.WithContext(ctx).Model(&profileRow{}).
		Where("id = ?", p.ID).
		Select(editableColumns).
		Updates(&row)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update profile: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, p.ID)
}

func (r *postgresRepository) MarkDonor(ctx context.Context, id string, amount float64, at time.Time) (*Profile, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	result := r.db.WithContext(ctx).Model(&profileRow{}).
		Where("id = ? AND donor_verified = ?", id, false).
		Updates(map[string]any{
			"donor_verified": true,
			"donor_amount":   amount,
			"donor_at":       at,
			"updated_at":     at,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to record donation: %w", result.Error)
	}
	// No rows means already a donor or no such profile; GetByID tells them apart.
	return r.GetByID(ctx, id)
}
