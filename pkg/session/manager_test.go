package session_test

import (
	"context"
	"errors"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/hearsaylabs/hearsay/pkg/audio"
	"github.com/hearsaylabs/hearsay/pkg/fault"
	"github.com/hearsaylabs/hearsay/pkg/identify"
	"github.com/hearsaylabs/hearsay/pkg/kv"
	"github.com/hearsaylabs/hearsay/pkg/recognizer"
	"github.com/hearsaylabs/hearsay/pkg/session"
)

type streamMsg struct {
	ev  *recognizer.TranscriptEvent
	err error
}

// fakeStream is a scriptable provider stream: tests push events with emit
// and fail, and inspect what audio was written.
type fakeStream struct {
	ch        chan streamMsg
	closeOnce sync.Once

	mu   sync.Mutex
	sent [][]byte
	last bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{ch: make(chan streamMsg, 16)}
}

func (f *fakeStream) emit(ev *recognizer.TranscriptEvent) { f.ch <- streamMsg{ev: ev} }
func (f *fakeStream) fail(err error)                      { f.ch <- streamMsg{err: err} }

func (f *fakeStream) SendAudio(ctx context.Context, chunk []byte, last bool) error {
	f.mu.Lock()
	if chunk != nil {
		f.sent = append(f.sent, chunk)
	}
	if last {
		f.last = true
	}
	f.mu.Unlock()
	if last {
		f.closeOnce.Do(func() { close(f.ch) })
	}
	return nil
}

func (f *fakeStream) Events() iter.Seq2[*recognizer.TranscriptEvent, error] {
	return func(yield func(*recognizer.TranscriptEvent, error) bool) {
		for m := range f.ch {
			if m.err != nil {
				yield(nil, m.err)
				return
			}
			if !yield(m.ev, nil) {
				return
			}
		}
	}
}

func (f *fakeStream) Close() error {
	f.closeOnce.Do(func() { close(f.ch) })
	return nil
}

func (f *fakeStream) sentChunks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeStream) flushed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

type fakeOpener struct {
	mu      sync.Mutex
	streams []*fakeStream
}

func (o *fakeOpener) OpenStream(ctx context.Context, cfg recognizer.StreamConfig) (recognizer.Stream, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := newFakeStream()
	o.streams = append(o.streams, s)
	return s, nil
}

func (o *fakeOpener) opened() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.streams)
}

func final(text string, confidence float64) *recognizer.TranscriptEvent {
	return &recognizer.TranscriptEvent{
		Text:       text,
		IsFinal:    true,
		Confidence: confidence,
		Received:   time.Now().UTC(),
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestManager(opts ...session.ManagerOption) (*session.Manager, *fakeOpener) {
	opener := &fakeOpener{}
	store := session.NewStore(kv.NewMemory(nil))
	return session.NewManager(store, opener, opts...), opener
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	mgr, opener := newTestManager()

	s, err := mgr.Start(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if s.State() != session.StateStreaming {
		t.Fatalf("state = %s, want streaming", s.State())
	}

	if err := mgr.SendAudio(ctx, "s1", []byte{1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}
	stream := opener.streams[0]
	waitFor(t, "audio forwarded", func() bool { return stream.sentChunks() == 1 })

	stream.emit(final("hello there", 0.9))
	stream.emit(&recognizer.TranscriptEvent{Text: "general ken", IsFinal: false, Confidence: 0.5})
	stream.emit(final("general kenobi", 0.8))
	stream.emit(final("", 0.99)) // empty finals are not segments
	stream.emit(final("you are bold", 0.95))

	if err := mgr.Stop(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	if s.State() != session.StateStopped {
		t.Errorf("state = %s, want stopped", s.State())
	}
	if !stream.flushed() {
		t.Error("stop did not flush the stream")
	}

	segments, err := mgr.Segments(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(segments) != 3 {
		t.Fatalf("got %d segments, want 3", len(segments))
	}
	wantContent := []string{"hello there", "general kenobi", "you are bold"}
	for i, seg := range segments {
		if seg.Seq != uint64(i+1) {
			t.Errorf("segment %d: seq = %d, want %d (gap-free)", i, seg.Seq, i+1)
		}
		if seg.Content != wantContent[i] {
			t.Errorf("segment %d: content = %q, want %q", i, seg.Content, wantContent[i])
		}
	}
}

func TestStartIdempotentWhileStreaming(t *testing.T) {
	ctx := context.Background()
	mgr, opener := newTestManager()

	first, err := mgr.Start(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	second, err := mgr.Start(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("second start returned a different session")
	}
	if opener.opened() != 1 {
		t.Errorf("opened %d streams, want 1", opener.opened())
	}
}

func TestStartAfterStop(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager()

	if _, err := mgr.Start(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	if err := mgr.Stop(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.Start(ctx, "s1"); !fault.IsState(err) {
		t.Fatalf("expected state fault, got %v", err)
	}
}

func TestSendAudioStateErrors(t *testing.T) {
	ctx := context.Background()
	mgr, opener := newTestManager()

	if err := mgr.SendAudio(ctx, "nope", []byte{1}); !fault.IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}

	if _, err := mgr.Start(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	if err := mgr.Stop(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	if err := mgr.SendAudio(ctx, "s1", []byte{1}); !fault.IsState(err) {
		t.Fatalf("expected state fault, got %v", err)
	}
	// No segment was created by the rejected send.
	segments, err := mgr.Segments(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(segments) != 0 {
		t.Errorf("got %d segments, want 0", len(segments))
	}
	_ = opener
}

func TestStopIdempotent(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager()

	if _, err := mgr.Start(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := mgr.Stop(ctx, "s1"); err != nil {
			t.Fatalf("stop %d: %v", i, err)
		}
	}
}

func TestTransportErrorAbortsSession(t *testing.T) {
	ctx := context.Background()
	mgr, opener := newTestManager()

	s, err := mgr.Start(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	opener.streams[0].fail(errors.New("connection reset"))

	waitFor(t, "session aborted", func() bool { return s.State() == session.StateStopped })
	if !fault.IsRemote(s.Err()) {
		t.Errorf("session error = %v, want remote fault", s.Err())
	}
	if err := mgr.SendAudio(ctx, "s1", []byte{1}); !fault.IsState(err) {
		t.Errorf("expected state fault after abort, got %v", err)
	}
}

func TestTransportErrorWithQueuedAudio(t *testing.T) {
	ctx := context.Background()

	// The failure lands while the session loop is busy forwarding audio, so
	// the error and the closed event channel become readable together. The
	// error must win every time; a few dozen rounds would catch it being
	// dropped.
	for i := 0; i < 25; i++ {
		mgr, opener := newTestManager()
		s, err := mgr.Start(ctx, "s1")
		if err != nil {
			t.Fatal(err)
		}
		for j := 0; j < 8; j++ {
			if err := mgr.SendAudio(ctx, "s1", []byte{0, 0, 0, 0}); err != nil {
				t.Fatal(err)
			}
		}
		opener.streams[0].fail(errors.New("connection reset"))
		for j := 0; j < 8; j++ {
			// Races the shutdown; a state fault once stopped is fine.
			mgr.SendAudio(ctx, "s1", []byte{0, 0, 0, 0})
		}

		waitFor(t, "session stopped", func() bool { return s.State() == session.StateStopped })
		if !fault.IsRemote(s.Err()) {
			t.Fatalf("round %d: session error = %v, want remote fault", i, s.Err())
		}
	}
}

func TestPurge(t *testing.T) {
	ctx := context.Background()
	mgr, opener := newTestManager()

	if _, err := mgr.Start(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	if err := mgr.Purge(ctx, "s1"); !fault.IsState(err) {
		t.Fatalf("expected state fault purging a live session, got %v", err)
	}

	opener.streams[0].emit(final("to be purged", 0.9))
	if err := mgr.Stop(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	if err := mgr.Purge(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	segments, err := mgr.Segments(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(segments) != 0 {
		t.Errorf("got %d segments after purge, want 0", len(segments))
	}
}

// fixedIdentifier always resolves to the same user.
type fixedIdentifier struct{ result identify.Result }

func (f fixedIdentifier) Identify(ctx context.Context, sample audio.Sample, candidateUserIDs []string) (identify.Result, error) {
	return f.result, nil
}

func TestSpeakerResolution(t *testing.T) {
	ctx := context.Background()
	mgr, opener := newTestManager(session.WithIdentifier(fixedIdentifier{
		result: identify.Result{UserID: "alice", UserName: "Alice", Score: 0.9},
	}))

	if _, err := mgr.Start(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	// Fill the audio window before the transcript arrives.
	if err := mgr.SendAudio(ctx, "s1", make([]byte, 3200)); err != nil {
		t.Fatal(err)
	}
	stream := opener.streams[0]
	waitFor(t, "audio forwarded", func() bool { return stream.sentChunks() == 1 })

	stream.emit(final("hi, it's me", 0.9))
	if err := mgr.Stop(ctx, "s1"); err != nil {
		t.Fatal(err)
	}

	segments, err := mgr.Segments(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(segments) != 1 {
		t.Fatalf("got %d segments, want 1", len(segments))
	}
	if segments[0].SpeakerID != "alice" || segments[0].SpeakerName != "Alice" {
		t.Errorf("speaker = %q/%q, want alice/Alice", segments[0].SpeakerID, segments[0].SpeakerName)
	}
}

func TestStoreOrdersBeyondNine(t *testing.T) {
	ctx := context.Background()
	store := session.NewStore(kv.NewMemory(nil))

	// Appended out of order and past single digits: List must come back
	// in numeric sequence order.
	for _, seq := range []uint64{10, 2, 1, 11, 3, 4, 5, 6, 7, 8, 9, 12} {
		err := store.Append(ctx, &session.Segment{
			SessionID: "s1", Seq: seq, Content: "x", Timestamp: time.Now().UTC(),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	segments, err := store.List(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(segments) != 12 {
		t.Fatalf("got %d segments, want 12", len(segments))
	}
	for i, seg := range segments {
		if seg.Seq != uint64(i+1) {
			t.Fatalf("position %d has seq %d", i, seg.Seq)
		}
	}
}
