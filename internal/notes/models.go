package notes

import (
	"io"
	"strings"
	"time"
)

// Note is an uploaded study file and its catalogue metadata.
type Note struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Subject       string    `json:"subject"`
	Tags          []string  `json:"tags"`
	FileName      string    `json:"file_name"`
	FileURL       string    `json:"file_url"`
	DownloadCount int       `json:"download_count"`
	UserID        string    `json:"user_id"`
	AuthorName    string    `json:"author_name,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Matches reports whether q occurs in the title, subject or any tag,
// ignoring case. An empty query matches everything.
func (n *Note) Matches(q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(n.Title), q) || strings.Contains(strings.ToLower(n.Subject), q) {
		return true
	}
	for _, tag := range n.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

// ListQuery filters and pages the catalogue. Limit 0 returns every match.
type ListQuery struct {
	Query   string
	Subject string
	Limit   int
	Offset  int
}

// CreateRequest is a note upload. Body is consumed by the storage backend.
type CreateRequest struct {
	UserID      string
	Title       string
	Description string
	Subject     string
	Tags        []string
	FileName    string
	ContentType string
	Body        io.Reader
}

// UpdateRequest patches note metadata. The file itself cannot be replaced.
type UpdateRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Subject     *string   `json:"subject"`
	Tags        *[]string `json:"tags"`
}

// Download is returned after a download is counted.
type Download struct {
	FileURL       string `json:"file_url"`
	DownloadCount int    `json:"download_count"`
}

// Stats summarises an author's catalogue.
type Stats struct {
	UserID         string `json:"user_id"`
	NoteCount      int    `json:"note_count"`
	TotalDownloads int    `json:"total_downloads"`
}

// CleanTags trims, drops blanks and removes duplicates, preserving order.
func CleanTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}
