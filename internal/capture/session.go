package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/maneesh/talentdrop/internal/models"
)

const (
	// DefaultMaxDuration is the recording ceiling.
	DefaultMaxDuration = 90 * time.Second
	// DefaultTickInterval is how often the companion timer ticks.
	DefaultTickInterval = time.Second
)

// User-visible warnings.
const (
	MsgDeviceUnavailable = "Could not access your camera or microphone."
	MsgNoData            = "No data was recorded. Try again."
	MsgUploadFailed      = "Upload failed. Please try again."
)

var (
	// ErrDeviceUnavailable is returned by devices that cannot be opened,
	// including when the user denies access.
	ErrDeviceUnavailable = errors.New("camera or microphone unavailable")

	// ErrNoData is returned by Stop when the stream produced no bytes.
	ErrNoData = errors.New("no data recorded")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("session closed")
)

// Device grants access to a capture source.
type Device interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is a live capture. Close releases the device and must unblock a
// pending Read.
type Stream interface {
	io.ReadCloser
	ContentType() string
}

// Uploader sends a finished recording for a candidate.
type Uploader interface {
	UploadVideo(ctx context.Context, candidateID, contentType string, r io.Reader) (*models.Candidate, error)
}

// Notifier shows warnings to the user.
type Notifier interface {
	Warn(msg string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(msg string)

func (f NotifierFunc) Warn(msg string) { f(msg) }

// Clip is a finished recording.
type Clip struct {
	Data        []byte
	ContentType string
	// Duration is the session timer at stop, not a property of Data.
	Duration    time.Duration
}

// Session is one recording screen. All methods are safe for concurrent use.
type Session struct {
	device   Device
	uploader Uploader
	notifier Notifier
	onTick   func(elapsed, max time.Duration)

	maxDuration  time.Duration
	tickInterval time.Duration

	mu       sync.Mutex
	state    State
	closed   bool
	elapsed  time.Duration
	stream   Stream
	captured *bytes.Buffer
	copyDone chan struct{}
	stopTick chan struct{}
	clip     *Clip
	record   *models.Candidate

	// queued holds callbacks raised under mu; unlock runs them after release.
	queued []func()
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithNotifier sets where warnings go. Warnings are delivered outside the
// session lock, so a notifier may query the session.
func WithNotifier(n Notifier) SessionOption {
	return func(s *Session) { s.notifier = n }
}

// WithMaxDuration overrides the recording ceiling.
func WithMaxDuration(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.maxDuration = d
		}
	}
}

// WithTickInterval sets the companion timer period. Zero disables the timer;
// the caller then drives Tick itself.
func WithTickInterval(d time.Duration) SessionOption {
	return func(s *Session) { s.tickInterval = d }
}

// WithProgress registers a callback run on every tick while recording. It
// runs outside the session lock and may call State or Progress.
func WithProgress(fn func(elapsed, max time.Duration)) SessionOption {
	return func(s *Session) { s.onTick = fn }
}

// NewSession creates an idle recording session.
func NewSession(device Device, uploader Uploader, opts ...SessionOption) *Session {
	s := &Session{
		device:       device,
		uploader:     uploader,
		notifier:     NotifierFunc(func(string) {}),
		maxDuration:  DefaultMaxDuration,
		tickInterval: DefaultTickInterval,
		state:        StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Progress returns the recorded time so far and the ceiling.
func (s *Session) Progress() (elapsed, max time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed, s.maxDuration
}

// Clip returns the recording once one exists.
func (s *Session) Clip() (*Clip, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clip, s.clip != nil
}

// Record returns the candidate record returned by a successful upload.
func (s *Session) Record() *models.Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record
}

// unlock releases mu and then runs the callbacks queued while it was held,
// so progress and warning callbacks may call back into the session.
func (s *Session) unlock() {
	queued := s.queued
	s.queued = nil
	s.mu.Unlock()
	for _, fn := range queued {
		fn()
	}
}

func (s *Session) warnLocked(msg string) {
	s.queued = append(s.queued, func() { s.notifier.Warn(msg) })
}

// Start acquires the device and begins recording. If access fails the
// session stays Idle and the user is warned.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.unlock()

	if s.closed {
		return ErrClosed
	}
	to, err := Next(s.state, EventStart)
	if err != nil {
		return err
	}

	stream, err := s.device.Open(ctx)
	if err != nil {
		s.state, _ = Next(s.state, EventDenied)
		s.warnLocked(MsgDeviceUnavailable)
		return fmt.Errorf("start recording: %w", err)
	}

	s.state = to
	s.elapsed = 0
	s.stream = stream
	s.captured = &bytes.Buffer{}
	s.copyDone = make(chan struct{})

	go func(dst *bytes.Buffer, done chan struct{}) {
		defer close(done)
		// Read errors end the capture; whatever arrived is kept.
		io.Copy(dst, stream)
	}(s.captured, s.copyDone)

	if s.tickInterval > 0 {
		s.stopTick = make(chan struct{})
		go s.runTicker(s.stopTick)
	}
	return nil
}

// runTicker is the companion timer of one recording.
func (s *Session) runTicker(stop <-chan struct{}) {
	t := time.NewTicker(s.tickInterval)
	defer t.Stop()

	for {
		select {
		case <-stop:
			return
		case <-t.C:
			s.mu.Lock()
			if s.stopTick != stop {
				s.unlock()
				return
			}
			s.tickLocked()
			s.unlock()
		}
	}
}

// Tick advances the recording timer by one second and stops the recording
// once the ceiling is reached. Ticks outside Recording are ignored.
func (s *Session) Tick() {
	s.mu.Lock()
	defer s.unlock()
	s.tickLocked()
}

func (s *Session) tickLocked() {
	if s.state != StateRecording {
		return
	}
	s.elapsed += time.Second
	if s.onTick != nil {
		elapsed, ceiling := s.elapsed, s.maxDuration
		s.queued = append(s.queued, func() { s.onTick(elapsed, ceiling) })
	}
	if s.elapsed >= s.maxDuration {
		// Errors are surfaced through the notifier.
		_ = s.stopLocked(EventTimeout)
	}
}

// Stop ends the recording and releases the device. Without captured bytes
// the session returns to Idle and the user is warned.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.unlock()

	if s.closed {
		return ErrClosed
	}
	if _, err := Next(s.state, EventStop); err != nil {
		return err
	}
	return s.stopLocked(EventStop)
}

func (s *Session) stopLocked(ev Event) error {
	data, contentType := s.releaseLocked()

	if len(data) == 0 {
		s.state, _ = Next(s.state, EventNoData)
		s.warnLocked(MsgNoData)
		return ErrNoData
	}

	to, err := Next(s.state, ev)
	if err != nil {
		return err
	}
	s.state = to
	s.clip = &Clip{Data: data, ContentType: contentType, Duration: s.elapsed}
	return nil
}

// releaseLocked stops the timer, closes the device and collects what the
// stream delivered.
func (s *Session) releaseLocked() ([]byte, string) {
	if s.stopTick != nil {
		close(s.stopTick)
		s.stopTick = nil
	}
	if s.stream == nil {
		return nil, ""
	}

	contentType := s.stream.ContentType()
	s.stream.Close()
	<-s.copyDone

	data := s.captured.Bytes()
	s.stream, s.captured, s.copyDone = nil, nil, nil
	return data, contentType
}

// Rerecord discards the clip and starts a new recording.
func (s *Session) Rerecord(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.unlock()
		return ErrClosed
	}
	to, err := Next(s.state, EventRerecord)
	if err != nil {
		s.unlock()
		return err
	}
	s.state = to
	s.clip = nil
	s.elapsed = 0
	s.unlock()

	return s.Start(ctx)
}

// Upload sends the clip for candidateID. On failure the session returns to
// Recorded with the clip intact.
func (s *Session) Upload(ctx context.Context, candidateID string) (*models.Candidate, error) {
	s.mu.Lock()
	if s.closed {
		s.unlock()
		return nil, ErrClosed
	}
	to, err := Next(s.state, EventUpload)
	if err != nil {
		s.unlock()
		return nil, err
	}
	s.state = to
	clip := s.clip
	s.unlock()

	rec, err := s.uploader.UploadVideo(ctx, candidateID, clip.ContentType, bytes.NewReader(clip.Data))

	s.mu.Lock()
	defer s.unlock()
	if err != nil {
		s.state, _ = Next(s.state, EventUploadFailed)
		s.warnLocked(MsgUploadFailed)
		return nil, fmt.Errorf("upload recording: %w", err)
	}
	s.state, _ = Next(s.state, EventUploadOK)
	s.record = rec
	return rec, nil
}

// Close releases the device if a recording is in progress. An unfinished
// recording is discarded.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.state == StateRecording {
		s.releaseLocked()
		s.state = StateIdle
	}
	return nil
}
