// Package session manages live transcription sessions: one duplex provider
// stream per session, an owning goroutine serializing all mutation, and an
// ordered, gap-free sequence of finalized transcript segments persisted per
// session.
package session

import "time"

// State is a session's lifecycle state.
type State string

const (
	StateCreated   State = "created"
	StateStreaming State = "streaming"
	StateStopped   State = "stopped"
)

// Segment is one finalized transcript with its annotations. Segments are
// immutable once appended; sequence numbers are strictly increasing and
// gap-free in provider arrival order.
type Segment struct {
	SessionID   string    `msgpack:"session_id" json:"sessionId"`
	Seq         uint64    `msgpack:"seq" json:"sequenceNumber"`
	Content     string    `msgpack:"content" json:"content"`
	SpeakerID   string    `msgpack:"speaker_id,omitempty" json:"speakerId,omitempty"`
	SpeakerName string    `msgpack:"speaker_name,omitempty" json:"speakerName,omitempty"`
	Confidence  float64   `msgpack:"confidence" json:"confidence"`
	Sentiment   string    `msgpack:"sentiment,omitempty" json:"sentiment,omitempty"`
	Topics      []string  `msgpack:"topics,omitempty" json:"topics,omitempty"`
	Keywords    []string  `msgpack:"keywords,omitempty" json:"keywords,omitempty"`
	Timestamp   time.Time `msgpack:"timestamp" json:"timestamp"`
}
