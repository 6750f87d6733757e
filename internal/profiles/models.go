package profiles

import (
	"math"
	"strings"
	"time"
)

// Profile is a user account together with its academic profile and donor
// status. Field names on the wire follow the web client.
type Profile struct {
	ID                string     `json:"id"`
	Email             string     `json:"email"`
	PasswordHash      string     `json:"-"`
	FullName          string     `json:"full_name"`
	Bio               string     `json:"bio"`
	AvatarURL         string     `json:"avatar_url"`
	Institute         string     `json:"institute"`
	Course            string     `json:"course"`
	Stream            string     `json:"stream"`
	Interests         []string   `json:"interests"`
	LastQualification string     `json:"lastQualification"`
	Aim               string     `json:"aim"`
	StudyHours        string     `json:"studyHours"`
	PreferredContent  string     `json:"preferredContent"`
	ProfileCompletion int        `json:"profileCompletion"`
	DonorVerified     bool       `json:"donorVerified"`
	DonorAmount       *float64   `json:"donorAmount,omitempty"`
	DonorAt           *time.Time `json:"donorAt,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// UpdateRequest is a partial profile update. Nil fields are left alone.
// Completion and donor fields are not client-writable.
type UpdateRequest struct {
	FullName          *string   `json:"full_name"`
	Bio               *string   `json:"bio"`
	AvatarURL         *string   `json:"avatar_url"`
	Institute         *string   `json:"institute"`
	Course            *string   `json:"course"`
	Stream            *string   `json:"stream"`
	Interests         *[]string `json:"interests"`
	LastQualification *string   `json:"lastQualification"`
	Aim               *string   `json:"aim"`
	StudyHours        *string   `json:"studyHours"`
	PreferredContent  *string   `json:"preferredContent"`
}

// Apply copies the set fields of r onto p and recomputes completion.
func (r UpdateRequest) Apply(p *Profile) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&p.FullName, r.FullName)
	set(&p.Bio, r.Bio)
	set(&p.AvatarURL, r.AvatarURL)
	set(&p.Institute, r.Institute)
	set(&p.Course, r.Course)
	set(&p.Stream, r.Stream)
	set(&p.LastQualification, r.LastQualification)
	set(&p.Aim, r.Aim)
	set(&p.StudyHours, r.StudyHours)
	set(&p.PreferredContent, r.PreferredContent)
	if r.Interests != nil {
		p.Interests = dedupe(*r.Interests)
	}
	p.ProfileCompletion = Completion(p)
}

// Completion is the rounded percentage of the eight academic fields that are
// filled in.
func Completion(p *Profile) int {
	fields := []string{
		p.Institute,
		p.Course,
		p.Stream,
		p.LastQualification,
		p.Aim,
		p.StudyHours,
		p.PreferredContent,
	}
	filled := 0
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			filled++
		}
	}
	if len(p.Interests) > 0 {
		filled++
	}
	return int(math.Round(float64(filled) / float64(len(fields)+1) * 100))
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// NormalizeEmail lowercases and trims an address for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
