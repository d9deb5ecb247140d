// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/trueshuffle/internal/models"
	"github.com/desertthunder/trueshuffle/internal/transport"
)

// FakeClock is a [transport.Clock] that records sleeps and advances instantly.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func NewFakeClock() *FakeClock {
	return &FakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

// Sleeps returns every requested sleep in order.
func (c *FakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.sleeps)
}

// Span is one recorded command with its wall-clock execution window.
type Span struct {
	Cmd   transport.Command
	Start time.Time
	End   time.Time
}

// RecordingExecutor is a scripted [transport.Executor] that records every call.
type RecordingExecutor struct {
	mu sync.Mutex

	// Delay is slept inside every call so concurrent callers would overlap without serialization.
	Delay        time.Duration
	QueueCleared bool

	devices  []models.Device
	state    *models.PlaybackState
	failures map[transport.Kind][]error
	spans    []Span
	inflight map[string]int
	overlaps int
}

// NewRecordingExecutor returns an executor reporting a single active device and nothing playing.
func NewRecordingExecutor() *RecordingExecutor {
	return &RecordingExecutor{
		devices:  []models.Device{{ID: "device-1", Name: "Desk", Type: "Computer", IsActive: true}},
		failures: make(map[transport.Kind][]error),
		inflight: make(map[string]int),
	}
}

func (e *RecordingExecutor) Execute(ctx context.Context, cmd transport.Command) (*transport.Response, error) {
	e.mu.Lock()
	start := time.Now()
	if e.inflight[cmd.UserID] > 0 {
		e.overlaps++
	}
	e.inflight[cmd.UserID]++
	delay := e.Delay
	e.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.inflight[cmd.UserID]--
	e.spans = append(e.spans, Span{Cmd: cmd, Start: start, End: time.Now()})

	if queued := e.failures[cmd.Kind]; len(queued) > 0 {
		e.failures[cmd.Kind] = queued[1:]
		if queued[0] != nil {
			return nil, queued[0]
		}
	}

	switch cmd.Kind {
	case transport.GetDevices:
		return &transport.Response{Devices: slices.Clone(e.devices)}, nil
	case transport.GetPlaybackState:
		if e.state == nil {
			return &transport.Response{}, nil
		}
		state := *e.state
		return &transport.Response{State: &state}, nil
	case transport.StartPlayback:
		return &transport.Response{QueueCleared: e.QueueCleared}, nil
	default:
		return &transport.Response{}, nil
	}
}

// SetDevices replaces the reported device list.
func (e *RecordingExecutor) SetDevices(devices ...models.Device) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.devices = devices
}

// SetPlaying reports uri as the playing track.
func (e *RecordingExecutor) SetPlaying(uri string) {
	e.SetState(&models.PlaybackState{TrackURI: uri, Name: uri, IsPlaying: true, DurationMS: 180000, DeviceID: "device-1"})
}

// SetState replaces the reported playback state; nil means nothing is playing.
func (e *RecordingExecutor) SetState(state *models.PlaybackState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = state
}

// FailNext makes the next calls of kind return errs in order. A nil entry lets that call succeed.
func (e *RecordingExecutor) FailNext(kind transport.Kind, errs ...error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures[kind] = append(e.failures[kind], errs...)
}

// Spans returns every completed call.
func (e *RecordingExecutor) Spans() []Span {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.spans)
}

// Commands returns the calls of the given kinds in issue order; no kinds returns all of them.
func (e *RecordingExecutor) Commands(kinds ...transport.Kind) []transport.Command {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []transport.Command
	for _, s := range e.spans {
		if len(kinds) == 0 || slices.Contains(kinds, s.Cmd.Kind) {
			out = append(out, s.Cmd)
		}
	}
	return out
}

// Tracks returns the track URIs of the playback-affecting calls of kind.
func (e *RecordingExecutor) Tracks(kind transport.Kind) []string {
	var out []string
	for _, c := range e.Commands(kind) {
		out = append(out, c.TrackURI)
	}
	return out
}

// Overlaps counts calls that began while another call for the same user was in flight.
func (e *RecordingExecutor) Overlaps() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.overlaps
}

// Reset forgets recorded calls.
func (e *RecordingExecutor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.spans = nil
	e.overlaps = 0
}

// MemoryRunStore keeps runs in a map.
type MemoryRunStore struct {
	mu      sync.Mutex
	runs    []*models.Run
	history []models.Status
	Saves   int
	// SaveErr, when set, is returned by every SaveRun.
	SaveErr error
}

func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{}
}

// LoadRun returns the most recently created run for key, or nil.
func (s *MemoryRunStore) LoadRun(ctx context.Context, key models.RunKey) (*models.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.runs) - 1; i >= 0; i-- {
		if s.runs[i].Key == key {
			return s.runs[i].Clone(), nil
		}
	}
	return nil, nil
}

func (s *MemoryRunStore) SaveRun(ctx context.Context, run *models.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.Saves++
	s.history = append(s.history, run.Status)

	if run.ID == "" {
		run.ID = fmt.Sprintf("run-%d", len(s.runs)+1)
		run.Sequence = len(s.runs) + 1
	}
	for i, existing := range s.runs {
		if existing.ID == run.ID {
			s.runs[i] = run.Clone()
			return nil
		}
	}
	s.runs = append(s.runs, run.Clone())
	return nil
}

// History returns the status of every saved run in save order.
func (s *MemoryRunStore) History() []models.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}

// All returns copies of every stored run in creation order.
func (s *MemoryRunStore) All() []*models.Run {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Run, len(s.runs))
	for i, r := range s.runs {
		out[i] = r.Clone()
	}
	return out
}

// FakeLibrary serves canned track lists per playlist.
type FakeLibrary struct {
	mu        sync.Mutex
	Lists     map[string]*models.TrackList
	Created   []models.Playlist
	Added     map[string][]string
	AddErr    error
	CreateErr error
	Fetches   int
	createSeq int
}

func NewFakeLibrary() *FakeLibrary {
	return &FakeLibrary{Lists: make(map[string]*models.TrackList), Added: make(map[string][]string)}
}

// AddPlaylist registers a playlist whose tracks are the given URIs.
func (l *FakeLibrary) AddPlaylist(id, name string, uris ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	list := &models.TrackList{Playlist: models.Playlist{ID: id, Name: name, TrackCount: len(uris)}}
	for _, u := range uris {
		list.Tracks = append(list.Tracks, models.Track{URI: u, Name: u})
	}
	l.Lists[id] = list
}

func (l *FakeLibrary) PlaylistTracks(ctx context.Context, userID, playlistID string) (*models.TrackList, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.Fetches++
	list, ok := l.Lists[playlistID]
	if !ok {
		return nil, fmt.Errorf("playlist %s not found", playlistID)
	}
	c := *list
	c.Tracks = slices.Clone(list.Tracks)
	c.Excluded = slices.Clone(list.Excluded)
	return &c, nil
}

// Playlists returns the registered playlists ordered by ID.
func (l *FakeLibrary) Playlists(ctx context.Context, userID string) ([]models.Playlist, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]models.Playlist, 0, len(l.Lists))
	for _, list := range l.Lists {
		out = append(out, list.Playlist)
	}
	slices.SortFunc(out, func(a, b models.Playlist) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (l *FakeLibrary) CreatePlaylist(ctx context.Context, userID, name, description string) (*models.Playlist, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.CreateErr != nil {
		return nil, l.CreateErr
	}
	l.createSeq++
	p := models.Playlist{ID: fmt.Sprintf("created-%d", l.createSeq), Name: name}
	l.Created = append(l.Created, p)
	return &p, nil
}

func (l *FakeLibrary) AddTracks(ctx context.Context, userID, playlistID string, uris []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.AddErr != nil {
		return l.AddErr
	}
	l.Added[playlistID] = append(l.Added[playlistID], uris...)
	return nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
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

var _ io.ReadCloser = (*FCloser)(nil)

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
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
