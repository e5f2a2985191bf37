package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hearsaylabs/hearsay/pkg/audio"
	"github.com/hearsaylabs/hearsay/pkg/fault"
	"github.com/hearsaylabs/hearsay/pkg/identify"
	"github.com/hearsaylabs/hearsay/pkg/recognizer"
)

const (
	defaultQueueDepth = 64
	defaultWindow     = 5 * time.Second
	flushTimeout      = 3 * time.Second
)

// Manager owns all live sessions. Each session has exactly one provider
// stream and one goroutine serializing its state transitions, segment
// appends, and outbound audio; sessions run fully in parallel with each
// other.
type Manager struct {
	store      *Store
	opener     recognizer.StreamOpener
	identifier identify.Identifier
	cfg        recognizer.StreamConfig
	queueDepth int
	windowDur  time.Duration
	log        *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithStreamConfig sets the provider stream configuration.
func WithStreamConfig(cfg recognizer.StreamConfig) ManagerOption {
	return func(m *Manager) { m.cfg = cfg }
}

// WithIdentifier enables post-hoc speaker identification on finalized
// segments.
func WithIdentifier(id identify.Identifier) ManagerOption {
	return func(m *Manager) { m.identifier = id }
}

// WithQueueDepth bounds the per-session outbound audio queue (default 64
// chunks). When the queue is full the oldest chunk is dropped with a
// warning; producers are never blocked.
func WithQueueDepth(n int) ManagerOption {
	return func(m *Manager) { m.queueDepth = n }
}

// WithAudioWindow sets how much recent audio is retained for speaker
// identification (default 5s).
func WithAudioWindow(d time.Duration) ManagerOption {
	return func(m *Manager) { m.windowDur = d }
}

// WithManagerLogger sets the logger.
func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.log = l }
}

// NewManager creates a session manager.
func NewManager(store *Store, opener recognizer.StreamOpener, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:      store,
		opener:     opener,
		cfg:        recognizer.DefaultStreamConfig(),
		queueDepth: defaultQueueDepth,
		windowDur:  defaultWindow,
		log:        slog.Default(),
		sessions:   make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Session is one live transcription session.
type Session struct {
	ID string

	mgr    *Manager
	stream recognizer.Stream
	cancel context.CancelFunc

	audioCh  chan []byte
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	window *audio.Window
	seq    uint64

	mu    sync.Mutex
	state State
	err   error
}

// State returns the session's current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error that aborted the session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) setState(st State, err error) {
	s.mu.Lock()
	s.state = st
	if err != nil {
		s.err = err
	}
	s.mu.Unlock()
}

// Start opens a session and its provider stream. Starting a session that is
// already streaming is a no-op returning the existing session. A stopped
// session ID cannot be restarted; use a fresh ID, its segments stay
// queryable under the old one.
func (m *Manager) Start(ctx context.Context, sessionID string) (*Session, error) {
	const op = "session.Start"
	if sessionID == "" {
		return nil, fault.Validation(op, "sessionId is required")
	}
	if m.opener == nil {
		return nil, fault.Configuration(op, "transcription provider not configured")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[sessionID]; ok {
		if existing.State() == StateStreaming {
			return existing, nil
		}
		return nil, fault.State(op, "session %q is stopped; start a new session", sessionID)
	}

	// The stream outlives Start; its lifetime is bound to the session,
	// not the caller's context.
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stream, err := m.opener.OpenStream(streamCtx, m.cfg)
	if err != nil {
		cancel()
		return nil, fault.Remote(op, err, "open stream for session %q", sessionID)
	}

	rate := m.cfg.SampleRate
	if rate <= 0 {
		rate = 16000
	}
	windowBytes := int(m.windowDur.Seconds() * float64(rate) * 2)

	s := &Session{
		ID:      sessionID,
		mgr:     m,
		stream:  stream,
		cancel:  cancel,
		audioCh: make(chan []byte, m.queueDepth),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
		window:  audio.NewWindow(windowBytes, rate),
		state:   StateCreated,
	}
	s.setState(StateStreaming, nil)
	m.sessions[sessionID] = s
	go s.run(streamCtx)

	m.log.Info("session: started", "session", sessionID)
	return s, nil
}

// SendAudio queues a chunk for the session's stream. Only valid while the
// session is streaming. The call never blocks: if the queue is full the
// oldest queued chunk is dropped with a warning.
func (m *Manager) SendAudio(ctx context.Context, sessionID string, chunk []byte) error {
	const op = "session.SendAudio"
	if len(chunk) == 0 {
		return fault.Validation(op, "empty audio chunk")
	}
	s, err := m.lookup(op, sessionID)
	if err != nil {
		return err
	}
	if s.State() != StateStreaming {
		return fault.State(op, "session %q is %s, want %s", sessionID, s.State(), StateStreaming)
	}

	select {
	case s.audioCh <- chunk:
		return nil
	default:
	}
	// Queue full: drop the oldest chunk to make room. Recent audio matters
	// more than old audio for live transcription.
	select {
	case <-s.audioCh:
		m.log.Warn("session: audio queue full, dropped oldest chunk", "session", sessionID)
	default:
	}
	select {
	case s.audioCh <- chunk:
	default:
	}
	return nil
}

// Stop flushes buffered transcripts, closes the stream, and moves the
// session to stopped. Stopping an already-stopped session is a no-op.
func (m *Manager) Stop(ctx context.Context, sessionID string) error {
	const op = "session.Stop"
	s, err := m.lookup(op, sessionID)
	if err != nil {
		return err
	}
	s.stopOnce.Do(func() { close(s.stopCh) })
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get returns a live or stopped session known to this manager.
func (m *Manager) Get(sessionID string) (*Session, error) {
	return m.lookup("session.Get", sessionID)
}

// Segments returns the persisted segments of a session, including sessions
// stopped before this manager started.
func (m *Manager) Segments(ctx context.Context, sessionID string) ([]Segment, error) {
	return m.store.List(ctx, sessionID)
}

// Purge deletes a session's persisted segments. Purging a streaming
// session is a state error.
func (m *Manager) Purge(ctx context.Context, sessionID string) error {
	const op = "session.Purge"
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if ok && s.State() == StateStreaming {
		return fault.State(op, "session %q is still streaming", sessionID)
	}
	if err := m.store.Purge(ctx, sessionID); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	return nil
}

// Close stops every live session.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := m.Stop(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *Manager) lookup(op, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, fault.Validation(op, "sessionId is required")
	}
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return nil, fault.NotFound(op, "session %q", sessionID)
	}
	return s, nil
}

// run is the session's single writer: every state transition, segment
// append, and stream write happens here or is serialized through the
// channels it owns.
func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	defer s.cancel()
	defer s.stream.Close()

	events := make(chan *recognizer.TranscriptEvent)
	errCh := make(chan error, 1)
	go func() {
		defer close(events)
		for ev, err := range s.stream.Events() {
			if err != nil {
				errCh <- err
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case chunk := <-s.audioCh:
			s.window.Write(chunk)
			if err := s.stream.SendAudio(ctx, chunk, false); err != nil {
				s.abort(err)
				return
			}
		case ev, ok := <-events:
			if !ok {
				// The pump reports a transport error before closing
				// events, and both can become ready between two select
				// passes. Check for the error first so a failed stream
				// never looks like a clean shutdown.
				select {
				case err := <-errCh:
					s.abort(err)
				default:
					s.finish()
				}
				return
			}
			s.handleEvent(ctx, ev)
		case err := <-errCh:
			s.abort(err)
			return
		case <-s.stopCh:
			s.flush(ctx, events, errCh)
			s.finish()
			return
		case <-ctx.Done():
			s.finish()
			return
		}
	}
}

// flush tells the provider the stream is done and persists any finalized
// transcripts it sends back before closing.
func (s *Session) flush(ctx context.Context, events <-chan *recognizer.TranscriptEvent, errCh <-chan error) {
	// Forward whatever audio was queued before the stop.
	for {
		select {
		case chunk := <-s.audioCh:
			s.window.Write(chunk)
			if err := s.stream.SendAudio(ctx, chunk, false); err != nil {
				return
			}
			continue
		default:
		}
		break
	}
	if err := s.stream.SendAudio(ctx, nil, true); err != nil {
		return
	}

	deadline := time.NewTimer(flushTimeout)
	defer deadline.Stop()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.handleEvent(ctx, ev)
		case <-errCh:
			return
		case <-deadline.C:
			s.mgr.log.Warn("session: flush timed out", "session", s.ID)
			return
		}
	}
}

// handleEvent turns a finalized, non-empty transcript into the next
// segment. Partial transcripts are ignored.
func (s *Session) handleEvent(ctx context.Context, ev *recognizer.TranscriptEvent) {
	text := strings.TrimSpace(ev.Text)
	if !ev.IsFinal || text == "" {
		return
	}

	s.seq++
	seg := &Segment{
		SessionID:  s.ID,
		Seq:        s.seq,
		Content:    text,
		Confidence: ev.Confidence,
		Sentiment:  ev.Sentiment,
		Topics:     ev.Topics,
		Keywords:   ev.Keywords,
		Timestamp:  ev.Received,
	}
	if seg.Timestamp.IsZero() {
		seg.Timestamp = time.Now().UTC()
	}
	s.identifySpeaker(ctx, seg)

	if err := s.mgr.store.Append(ctx, seg); err != nil {
		// An unpersisted segment would leave a gap in the sequence, so a
		// storage failure takes the session down.
		s.abort(err)
		return
	}
	s.mgr.log.Debug("session: segment",
		"session", s.ID, "seq", seg.Seq, "speaker", seg.SpeakerID, "confidence", seg.Confidence)
}

// identifySpeaker resolves the speaker from the recent audio window. A miss
// or identification failure leaves the speaker unset.
func (s *Session) identifySpeaker(ctx context.Context, seg *Segment) {
	if s.mgr.identifier == nil {
		return
	}
	sample := s.window.Snapshot()
	if len(sample.Data) == 0 {
		return
	}
	res, err := s.mgr.identifier.Identify(ctx, sample, nil)
	switch {
	case err == nil:
		seg.SpeakerID = res.UserID
		seg.SpeakerName = res.UserName
	case errors.Is(err, identify.ErrNoMatch):
	default:
		s.mgr.log.Warn("session: speaker identification failed", "session", s.ID, "error", err)
	}
}

func (s *Session) finish() {
	s.setState(StateStopped, nil)
	s.mgr.log.Info("session: stopped", "session", s.ID, "segments", s.seq)
}

// abort handles a transport or storage failure: the session moves straight
// to stopped and the error is kept for callers. No automatic reconnect.
func (s *Session) abort(err error) {
	s.setState(StateStopped, fault.Remote("session.run", err, "session %q aborted", s.ID))
	s.mgr.log.Error("session: aborted", "session", s.ID, "error", err)
}
