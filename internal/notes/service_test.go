package notes

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"collegestar/notes-portal/notes-portal-backend/internal/notes/export"
	"collegestar/notes-portal/notes-portal-backend/pkg/storage"
)

// MockAuthorDirectory is a mock implementation of AuthorDirectory
type MockAuthorDirectory struct {
	mock.Mock
}

func (m *MockAuthorDirectory) AuthorNames(ctx context.Context, ids []string) (map[string]string, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

type fixture struct {
	svc     *noteService
	repo    Repository
	store   storage.Storage
	authors *MockAuthorDirectory
	clock   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.NewLocalClient(t.TempDir(), "/uploads")
	require.NoError(t, err)

	f := &fixture{
		repo:    NewMemoryRepository(),
		store:   store,
		authors: new(MockAuthorDirectory),
		clock:   time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	f.authors.On("AuthorNames", mock.Anything, mock.Anything).
		Return(map[string]string{"u1": "Asha", "u2": "Bilal"}, nil).Maybe()

	f.svc = NewService(f.repo, store, f.authors, zap.NewNop()).(*noteService)
	f.svc.now = func() time.Time {
		f.clock = f.clock.Add(time.Minute)
		return f.clock
	}
	return f
}

func (f *fixture) upload(t *testing.T, user, title, subject string, tags ...string) *Note {
	t.Helper()
	n, err := f.svc.Create(context.Background(), CreateRequest{
		UserID:   user,
		Title:    title,
		Subject:  subject,
		Tags:     tags,
		FileName: strings.ReplaceAll(title, " ", "_") + ".PDF",
		Body:     strings.NewReader("content of " + title),
	})
	require.NoError(t, err)
	return n
}

func TestCreateStoresFileAndMetadata(t *testing.T) {
	f := newFixture(t)
	n := f.upload(t, "u1", " Organic Chemistry ", "Chemistry", "jee", " JEE ", "", "neet")

	assert.NotEmpty(t, n.ID)
	assert.Equal(t, "Organic Chemistry", n.Title)
	assert.Equal(t, []string{"jee", "neet"}, n.Tags)
	assert.Equal(t, 0, n.DownloadCount)
	assert.True(t, strings.HasPrefix(n.FileURL, "/uploads/"))
	assert.True(t, strings.HasSuffix(n.FileURL, ".pdf"))

	key, ok := f.store.KeyFromURL(n.FileURL)
	require.True(t, ok)
	rc, err := f.store.Open(context.Background(), key)
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "content of  Organic Chemistry ", string(body))
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), CreateRequest{UserID: "u1", Title: "x", FileName: "a.pdf", Body: strings.NewReader("")})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = f.svc.Create(context.Background(), CreateRequest{UserID: "u1", Title: "x", Subject: "y"})
	assert.ErrorIs(t, err, ErrInvalid)

	objects, err := f.store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, objects)
}

type failingRepo struct{ Repository }

func (failingRepo) Create(ctx context.Context, n *Note) error { return errors.New("db down") }

func TestCreateRemovesFileWhenMetadataFails(t *testing.T) {
	f := newFixture(t)
	f.svc.repo = failingRepo{f.repo}

	_, err := f.svc.Create(context.Background(), CreateRequest{
		UserID: "u1", Title: "t", Subject: "s", FileName: "a.pdf", Body: strings.NewReader("x"),
	})
	require.Error(t, err)

	objects, err := f.store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestListSearchAndPaging(t *testing.T) {
	f := newFixture(t)
	f.upload(t, "u1", "Thermodynamics", "Physics", "heat")
	f.upload(t, "u2", "Calculus Basics", "Mathematics", "limits")
	f.upload(t, "u1", "Wave Optics", "Physics", "light", "JEE")
	ctx := context.Background()

	all, total, err := f.svc.List(ctx, ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, all, 3)
	assert.Equal(t, "Wave Optics", all[0].Title)
	assert.Equal(t, "Thermodynamics", all[2].Title)
	assert.Equal(t, "Asha", all[0].AuthorName)
	assert.Equal(t, "Bilal", all[1].AuthorName)

	byTag, _, err := f.svc.List(ctx, ListQuery{Query: "jee"})
	require.NoError(t, err)
	require.Len(t, byTag, 1)
	assert.Equal(t, "Wave Optics", byTag[0].Title)

	bySubject, _, err := f.svc.List(ctx, ListQuery{Query: "PHYS"})
	require.NoError(t, err)
	assert.Len(t, bySubject, 2)

	filtered, total, err := f.svc.List(ctx, ListQuery{Subject: "mathematics"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Calculus Basics", filtered[0].Title)

	page, total, err := f.svc.List(ctx, ListQuery{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 1)
	assert.Equal(t, "Calculus Basics", page[0].Title)

	past, _, err := f.svc.List(ctx, ListQuery{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, past)
}

func TestListSurvivesAuthorLookupFailure(t *testing.T) {
	f := newFixture(t)
	f.upload(t, "u1", "T", "S")
	authors := new(MockAuthorDirectory)
	authors.On("AuthorNames", mock.Anything, []string{"u1"}).Return(nil, errors.New("boom"))
	f.svc.authors = authors

	notes, _, err := f.svc.List(context.Background(), ListQuery{})
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Empty(t, notes[0].AuthorName)
	authors.AssertExpectations(t)
}

func TestDownloadsAndStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.upload(t, "u1", "A", "S")
	b := f.upload(t, "u1", "B", "S")
	f.upload(t, "u2", "C", "S")

	for i := 0; i < 3; i++ {
		_, err := f.svc.RecordDownload(ctx, b.ID)
		require.NoError(t, err)
	}
	dl, err := f.svc.RecordDownload(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, dl.DownloadCount)
	assert.Equal(t, a.FileURL, dl.FileURL)

	mine, err := f.svc.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "B", mine[0].Title)
	assert.Equal(t, 3, mine[0].DownloadCount)

	stats, err := f.svc.Stats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, &Stats{UserID: "u1", NoteCount: 2, TotalDownloads: 4}, stats)

	_, err = f.svc.RecordDownload(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateAndDeleteOwnerOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := f.upload(t, "u1", "Draft", "History")

	title := "Final"
	_, err := f.svc.Update(ctx, "u2", n.ID, UpdateRequest{Title: &title})
	assert.ErrorIs(t, err, ErrForbidden)

	blank := " "
	_, err = f.svc.Update(ctx, "u1", n.ID, UpdateRequest{Subject: &blank})
	assert.ErrorIs(t, err, ErrInvalid)

	tags := []string{"modern", "ww2"}
	updated, err := f.svc.Update(ctx, "u1", n.ID, UpdateRequest{Title: &title, Tags: &tags})
	require.NoError(t, err)
	assert.Equal(t, "Final", updated.Title)
	assert.Equal(t, "History", updated.Subject)
	assert.Equal(t, tags, updated.Tags)

	assert.ErrorIs(t, f.svc.Delete(ctx, "u2", n.ID), ErrForbidden)
	require.NoError(t, f.svc.Delete(ctx, "u1", n.ID))

	_, err = f.svc.Get(ctx, n.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	objects, err := f.store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestOpenFile(t *testing.T) {
	f := newFixture(t)
	n := f.upload(t, "u1", "Notes", "S")

	rc, got, err := f.svc.OpenFile(context.Background(), n.ID)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, n.ID, got.ID)
	body, _ := io.ReadAll(rc)
	assert.Equal(t, "content of Notes", string(body))
}

func TestExportCSV(t *testing.T) {
	f := newFixture(t)
	f.upload(t, "u1", "Algebra", "Maths", "x", "y")

	var buf bytes.Buffer
	require.NoError(t, f.svc.Export(context.Background(), "u1", export.FormatCSV, &buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Title,Subject,Tags,Description,File,Downloads,Uploaded", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], `Algebra,Maths,"x, y",,Algebra.PDF,0,2024-05-01T09:01:00Z`))
}
