// Package hearsay is the command surface of the voice core: speaker
// calibration, live transcription sessions, and session analytics, wired
// over the profile, identify, session and analysis packages. It is
// transport-agnostic; adapters (CLI, HTTP) stay thin on top of it.
package hearsay

import (
	"context"
	"log/slog"
	"time"

	"github.com/hearsaylabs/hearsay/pkg/analysis"
	"github.com/hearsaylabs/hearsay/pkg/audio"
	"github.com/hearsaylabs/hearsay/pkg/fault"
	"github.com/hearsaylabs/hearsay/pkg/identify"
	"github.com/hearsaylabs/hearsay/pkg/profile"
	"github.com/hearsaylabs/hearsay/pkg/recognizer"
	"github.com/hearsaylabs/hearsay/pkg/session"
)

// Core ties the voice packages together behind the operations an
// application calls.
type Core struct {
	profiles    *profile.Manager
	sessions    *session.Manager
	transcriber recognizer.Transcriber
	log         *slog.Logger
}

// Option configures a Core.
type Option func(*Core)

// WithTranscriber enables the calibration quality-check transcript.
func WithTranscriber(t recognizer.Transcriber) Option {
	return func(c *Core) { c.transcriber = t }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Core) { c.log = l }
}

// New creates a Core over the given profile and session managers.
func New(profiles *profile.Manager, sessions *session.Manager, opts ...Option) *Core {
	c := &Core{
		profiles: profiles,
		sessions: sessions,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CalibrationResult reports the outcome of a Calibrate call.
type CalibrationResult struct {
	UserID     string         `json:"userId"`
	ProfileID  string         `json:"profileId"`
	Status     profile.Status `json:"status"`
	Transcript string         `json:"transcript,omitempty"`
}

// CalibratedUser is one row of ListCalibrated.
type CalibratedUser struct {
	UserID    string         `json:"userId"`
	UserName  string         `json:"userName,omitempty"`
	Status    profile.Status `json:"status"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Analysis is a session's segments with their derived summary. Summary is
// nil when the session has no segments.
type Analysis struct {
	SessionID string            `json:"sessionId"`
	Segments  []session.Segment `json:"segments"`
	Summary   *analysis.Summary `json:"summary,omitempty"`
}

// Calibrate registers a user's voice: it creates (or replaces) the provider
// profile, enrolls the sample, and saves the local feature vector used by
// fallback identification. When a transcriber is configured, the sample is
// also transcribed as a quality check; a transcription failure is logged
// and the calibration proceeds with an empty transcript.
func (c *Core) Calibrate(ctx context.Context, userID, userName string, sample audio.Sample) (*CalibrationResult, error) {
	const op = "hearsay.Calibrate"
	if userID == "" {
		return nil, fault.Validation(op, "userId is required")
	}
	if err := sample.Validate(audio.MinEnrollDuration); err != nil {
		return nil, err
	}

	profileID, err := c.profiles.CreateProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	p, err := c.profiles.EnrollProfile(ctx, userID, sample)
	if err != nil {
		return nil, err
	}

	transcript := c.qualityTranscript(ctx, userID, sample)
	features := c.extractFeatures(userID, sample)
	if err := c.profiles.SaveCalibration(ctx, userID, userName, transcript, features); err != nil {
		return nil, err
	}

	c.log.Info("calibrated", "user", userID, "status", p.Status)
	return &CalibrationResult{
		UserID:     userID,
		ProfileID:  profileID,
		Status:     p.Status,
		Transcript: transcript,
	}, nil
}

// qualityTranscript transcribes the calibration sample for human review.
// Best-effort: failures never block enrollment.
func (c *Core) qualityTranscript(ctx context.Context, userID string, sample audio.Sample) string {
	if c.transcriber == nil {
		return ""
	}
	transcript, err := c.transcriber.Transcribe(ctx, sample)
	if err != nil {
		c.log.Warn("calibration transcript failed", "user", userID, "error", err)
		return ""
	}
	return transcript
}

// extractFeatures computes the fallback feature vector. Best-effort: a
// sample the extractor cannot embed just leaves the vector empty.
func (c *Core) extractFeatures(userID string, sample audio.Sample) []float32 {
	vec, err := embedSample(sample)
	if err != nil {
		c.log.Warn("feature extraction failed", "user", userID, "error", err)
		return nil
	}
	return vec
}

// ListCalibrated returns every user with a profile record.
func (c *Core) ListCalibrated(ctx context.Context) ([]CalibratedUser, error) {
	profiles, err := c.profiles.Store().List(ctx)
	if err != nil {
		return nil, err
	}
	users := make([]CalibratedUser, 0, len(profiles))
	for _, p := range profiles {
		users = append(users, CalibratedUser{
			UserID:    p.UserID,
			UserName:  p.UserName,
			Status:    p.Status,
			UpdatedAt: p.UpdatedAt,
		})
	}
	return users, nil
}

// RemoveCalibration deletes a user's profile locally and at the provider.
func (c *Core) RemoveCalibration(ctx context.Context, userID string) error {
	return c.profiles.DeleteProfile(ctx, userID)
}

// StartSession opens a live transcription session.
func (c *Core) StartSession(ctx context.Context, sessionID string) error {
	_, err := c.sessions.Start(ctx, sessionID)
	return err
}

// SendAudio forwards an audio chunk to a streaming session.
func (c *Core) SendAudio(ctx context.Context, sessionID string, chunk []byte) error {
	return c.sessions.SendAudio(ctx, sessionID, chunk)
}

// StopSession stops a session, flushing pending transcripts.
func (c *Core) StopSession(ctx context.Context, sessionID string) error {
	return c.sessions.Stop(ctx, sessionID)
}

// GetAnalysis returns a session's segments and their summary.
func (c *Core) GetAnalysis(ctx context.Context, sessionID string) (*Analysis, error) {
	segments, err := c.sessions.Segments(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &Analysis{
		SessionID: sessionID,
		Segments:  segments,
		Summary:   analysis.Summarize(segments),
	}, nil
}

// PurgeSession deletes a stopped session's segments.
func (c *Core) PurgeSession(ctx context.Context, sessionID string) error {
	return c.sessions.Purge(ctx, sessionID)
}

func embedSample(sample audio.Sample) ([]float32, error) {
	return identify.NewExtractor(sample.SampleRate).Embed(sample)
}
