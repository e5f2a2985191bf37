// Package recognizer defines the boundary to the external speech
// recognition provider and ships two concrete clients: a speaker-profile
// service (create/enroll/delete/identify voice profiles) and a Deepgram
// client for prerecorded and live streaming transcription.
//
// The core consumes the narrow interfaces declared here; nothing above this
// package knows which vendor is behind them.
package recognizer

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/hearsaylabs/hearsay/pkg/audio"
)

// ErrNoSpeakerFound is returned by Identify when no candidate profile
// matched the audio.
var ErrNoSpeakerFound = errors.New("recognizer: no speaker identified")

// ErrProfileNotFound is returned when the provider does not know the
// referenced profile.
var ErrProfileNotFound = errors.New("recognizer: profile not found")

// Match is the result of a speaker identification call.
type Match struct {
	// ProfileID is the provider-side handle of the identified speaker.
	ProfileID string

	// Score is the provider's confidence in [0, 1]. Scores are only
	// comparable within a single provider.
	Score float64
}

// EnrollmentResult reports the outcome of submitting an enrollment sample.
type EnrollmentResult struct {
	// Enrolled is true once the profile has enough speech to be used
	// for identification.
	Enrolled bool

	// SpeechLength is the total seconds of usable speech accumulated
	// so far, when the provider reports it.
	SpeechLength float64
}

// ProfileClient manages provider-side voice profiles.
type ProfileClient interface {
	// CreateProfile registers a new empty voice profile and returns its
	// provider-side handle.
	CreateProfile(ctx context.Context) (string, error)

	// Enroll submits a reference voice sample for the profile.
	Enroll(ctx context.Context, profileID string, sample audio.Sample) (EnrollmentResult, error)

	// DeleteProfile removes the profile. Returns ErrProfileNotFound if
	// the provider does not know it.
	DeleteProfile(ctx context.Context, profileID string) error

	// Identify returns the best-matching profile among the candidates,
	// or ErrNoSpeakerFound.
	Identify(ctx context.Context, sample audio.Sample, profileIDs []string) (Match, error)
}

// Transcriber transcribes a complete prerecorded sample in one call.
// Used for the enrollment quality-check transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, sample audio.Sample) (string, error)
}

// StreamConfig configures a live transcription stream.
type StreamConfig struct {
	// Encoding of the audio chunks, e.g. "linear16".
	Encoding string

	// SampleRate in Hz.
	SampleRate int

	// Channels is the channel count; live sessions use mono.
	Channels int

	// Language hint, e.g. "en-US".
	Language string

	// Model selects the provider model.
	Model string

	// InterimResults requests partial (non-final) transcripts.
	InterimResults bool

	// Diarize requests provider-side speaker tags on events.
	Diarize bool

	// Sentiment, Topics and Keywords request the corresponding
	// annotations on finalized transcripts.
	Sentiment bool
	Topics    bool
	Keywords  bool
}

// DefaultStreamConfig returns the stream configuration for 16kHz mono
// PCM16 with all annotations enabled.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Encoding:       "linear16",
		SampleRate:     16000,
		Channels:       1,
		Language:       "en",
		InterimResults: true,
		Diarize:        true,
		Sentiment:      true,
		Topics:         true,
		Keywords:       true,
	}
}

// TranscriptEvent is one transcript message from a live stream.
type TranscriptEvent struct {
	// Text is the transcript for this event. May be empty.
	Text string

	// IsFinal marks a finalized transcript; non-final events are
	// interim and will be superseded.
	IsFinal bool

	// Confidence in [0, 1] for the transcript.
	Confidence float64

	// Sentiment label when requested ("positive", "neutral", "negative").
	Sentiment string

	// Topics and Keywords annotations when requested.
	Topics   []string
	Keywords []string

	// SpeakerTag is the provider's diarization tag, when available.
	// It is not a user identity.
	SpeakerTag string

	// Received is when the event arrived.
	Received time.Time
}

// Stream is one live duplex transcription connection.
type Stream interface {
	// SendAudio writes one audio chunk. last marks the end of input and
	// asks the provider to flush pending transcripts.
	SendAudio(ctx context.Context, chunk []byte, last bool) error

	// Events yields transcript events in arrival order. The iterator
	// ends when the stream closes; a transport failure is yielded as a
	// non-nil error and terminates the iteration.
	Events() iter.Seq2[*TranscriptEvent, error]

	// Close releases the connection. Safe to call more than once.
	Close() error
}

// StreamOpener opens live transcription streams.
type StreamOpener interface {
	OpenStream(ctx context.Context, cfg StreamConfig) (Stream, error)
}
