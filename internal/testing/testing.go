// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/fiply/internal/models"
	"github.com/desertthunder/fiply/internal/services"
	"github.com/desertthunder/fiply/internal/shared"
)

// MockFetcher is a test double for tasks.HistoryFetcher. Respond receives the 1-based call number.
type MockFetcher struct {
	Respond func(call int, at time.Time) (*models.Page, error)
	Calls   []time.Time
}

func (m *MockFetcher) Fetch(ctx context.Context, at time.Time) (*models.Page, error) {
	m.Calls = append(m.Calls, at)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.Respond(len(m.Calls), at)
}

// SearchCall records one [MockCatalog.ResolveTrack] invocation.
type SearchCall struct {
	Title         string
	Disambiguator string
	Kind          services.Disambiguator
}

// MockCatalog is a test double for [services.Catalog]. Matches and SearchErrs are keyed by title.
type MockCatalog struct {
	Playlists  map[string]*models.Playlist
	Matches    map[string]*models.TrackMatch
	SearchErrs map[string]error
	GetErr     error
	ReplaceErr error

	Searches []SearchCall
	Checked  []string
	Replaced map[string][]string

	mu sync.Mutex
}

// NewMockCatalog returns a catalog that knows the given playlist ids.
func NewMockCatalog(playlistIDs ...string) *MockCatalog {
	m := &MockCatalog{
		Playlists:  map[string]*models.Playlist{},
		Matches:    map[string]*models.TrackMatch{},
		SearchErrs: map[string]error{},
		Replaced:   map[string][]string{},
	}
	for _, id := range playlistIDs {
		m.Playlists[id] = &models.Playlist{ID: id, Name: "playlist " + id}
	}
	return m
}

// AddMatch registers the catalog hit for title.
func (m *MockCatalog) AddMatch(title, id string, popularity int) {
	m.Matches[title] = &models.TrackMatch{ID: id, URI: "spotify:track:" + id, Name: title, Popularity: popularity}
}

func (m *MockCatalog) Name() string { return "mock" }

func (m *MockCatalog) ResolveTrack(ctx context.Context, title, disambiguator string, kind services.Disambiguator) (*models.TrackMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Searches = append(m.Searches, SearchCall{Title: title, Disambiguator: disambiguator, Kind: kind})
	if err := m.SearchErrs[title]; err != nil {
		return nil, err
	}
	return m.Matches[title], nil
}

func (m *MockCatalog) GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Checked = append(m.Checked, playlistID)
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	pl, ok := m.Playlists[playlistID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
	}
	return pl, nil
}

func (m *MockCatalog) ReplacePlaylist(ctx context.Context, playlistID string, uris []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReplaceErr != nil {
		return m.ReplaceErr
	}
	m.Replaced[playlistID] = append([]string(nil), uris...)
	return nil
}

// SearchCount returns how many searches were made for title.
func (m *MockCatalog) SearchCount(title string) int {
	n := 0
	for _, s := range m.Searches {
		if s.Title == title {
			n++
		}
	}
	return n
}

// MockJournal is an in-memory tasks.RunJournal.
type MockJournal struct {
	Runs      []*models.Run
	Statuses  []models.RunStatus
	Tracks    []models.RunTrack
	CreateErr error
}

func (m *MockJournal) Create(run *models.Run) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	run.SetID(fmt.Sprintf("run-%d", len(m.Runs)+1))
	run.SetSequence(len(m.Runs) + 1)
	m.Runs = append(m.Runs, run)
	return nil
}

func (m *MockJournal) Update(run *models.Run) error {
	m.Statuses = append(m.Statuses, run.Status())
	return nil
}

func (m *MockJournal) AddTracks(runID string, tracks []models.RunTrack) error {
	m.Tracks = append(m.Tracks, tracks...)
	return nil
}

// Events builds play events with the given titles, one second apart counting down from start.
func Events(start int64, titles ...string) []models.PlayEvent {
	events := make([]models.PlayEvent, len(titles))
	for i, title := range titles {
		events[i] = models.PlayEvent{
			Title:        title,
			Album:        "album " + title,
			Interpreters: []string{"artist " + title},
			StartTime:    start - int64(i),
		}
	}
	return events
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
