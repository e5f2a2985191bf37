package audio

import "sync"

// Window keeps the most recent audio bytes of a live stream in a fixed-size
// ring. The session manager writes every outbound chunk into the window and
// snapshots it when a transcript finalizes, so speaker identification runs
// on the audio that actually produced the segment.
//
// Writes past capacity overwrite the oldest bytes.
type Window struct {
	mu     sync.Mutex
	buf    []byte
	pos    int
	filled bool
	rate   int
}

// NewWindow creates a Window holding up to capacity bytes of PCM16 audio at
// the given sample rate.
func NewWindow(capacity, sampleRate int) *Window {
	if capacity <= 0 {
		capacity = 1
	}
	return &Window{buf: make([]byte, capacity), rate: sampleRate}
}

// Write appends audio bytes, overwriting the oldest data when full.
func (w *Window) Write(p []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	// Only the last len(buf) bytes of a large write can survive.
	if len(p) >= len(w.buf) {
		copy(w.buf, p[len(p)-len(w.buf):])
		w.pos = 0
		w.filled = true
		return
	}
	n := copy(w.buf[w.pos:], p)
	if n < len(p) {
		copy(w.buf, p[n:])
		w.filled = true
	}
	w.pos = (w.pos + len(p)) % len(w.buf)
	if w.pos == 0 && n == len(p) {
		w.filled = true
	}
}

// Snapshot returns the buffered audio in arrival order as a Sample.
// Returns a zero Sample when nothing has been written.
func (w *Window) Snapshot() Sample {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []byte
	if w.filled {
		out = make([]byte, len(w.buf))
		n := copy(out, w.buf[w.pos:])
		copy(out[n:], w.buf[:w.pos])
	} else {
		out = make([]byte, w.pos)
		copy(out, w.buf[:w.pos])
	}
	if len(out) == 0 {
		return Sample{}
	}
	return PCM(out, w.rate)
}

// Reset discards all buffered audio.
func (w *Window) Reset() {
	w.mu.Lock()
	w.pos = 0
	w.filled = false
	w.mu.Unlock()
}
