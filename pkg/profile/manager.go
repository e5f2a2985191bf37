package profile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hearsaylabs/hearsay/pkg/audio"
	"github.com/hearsaylabs/hearsay/pkg/fault"
	"github.com/hearsaylabs/hearsay/pkg/recognizer"
)

// Manager drives the enrollment lifecycle against the recognition provider
// and keeps the Store in sync with provider-side state.
type Manager struct {
	store   *Store
	client  recognizer.ProfileClient
	timeout time.Duration
	log     *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithCallTimeout bounds each provider call (default 30s). A timed-out call
// is treated like any other provider failure, including cleanup.
func WithCallTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.log = l }
}

// NewManager creates a Manager. client may be nil when no provider is
// configured; lifecycle operations then fail with a configuration fault.
func NewManager(store *Store, client recognizer.ProfileClient, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:   store,
		client:  client,
		timeout: 30 * time.Second,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store exposes the underlying profile store for read-only collaborators.
func (m *Manager) Store() *Store { return m.store }

func (m *Manager) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.timeout)
}

// CreateProfile creates a fresh provider-side profile for the user and
// moves them to the enrolling state. An existing live profile — enrolled or
// mid-enrollment — is deleted at the provider first, so the user never has
// two live profiles.
func (m *Manager) CreateProfile(ctx context.Context, userID string) (string, error) {
	const op = "profile.CreateProfile"
	if userID == "" {
		return "", fault.Validation(op, "userId is required")
	}
	if m.client == nil {
		return "", fault.Configuration(op, "recognition provider not configured")
	}

	unlock := m.store.LockUser(userID)
	defer unlock()

	existing, err := m.store.Get(ctx, userID)
	if err != nil && !fault.IsNotFound(err) {
		return "", err
	}
	if existing.Live() {
		if err := m.deleteAtProvider(ctx, existing.ProfileID); err != nil {
			return "", fault.Remote(op, err, "delete previous profile %s", existing.ProfileID)
		}
	}

	callCtx, cancel := m.callCtx(ctx)
	profileID, err := m.client.CreateProfile(callCtx)
	cancel()
	if err != nil {
		return "", fault.Remote(op, err, "create provider profile for %q", userID)
	}

	now := time.Now().UTC()
	p := &Profile{
		UserID:    userID,
		ProfileID: profileID,
		Status:    StatusEnrolling,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if existing != nil {
		p.UserName = existing.UserName
		p.CreatedAt = existing.CreatedAt
	}
	if err := m.store.Put(ctx, p); err != nil {
		return "", err
	}
	m.log.Info("profile: created", "user", userID, "profile", profileID)
	return profileID, nil
}

// EnrollProfile submits an enrollment sample for a user in the enrolling
// state. On provider failure the partially-created provider profile is
// deleted best-effort, the record moves to failed, and the original error
// is surfaced.
func (m *Manager) EnrollProfile(ctx context.Context, userID string, sample audio.Sample) (*Profile, error) {
	const op = "profile.EnrollProfile"
	if userID == "" {
		return nil, fault.Validation(op, "userId is required")
	}
	if err := sample.Validate(audio.MinEnrollDuration); err != nil {
		return nil, err
	}
	if m.client == nil {
		return nil, fault.Configuration(op, "recognition provider not configured")
	}

	unlock := m.store.LockUser(userID)
	defer unlock()

	p, err := m.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusEnrolling {
		return nil, fault.State(op, "profile for %q is %s, want %s", userID, p.Status, StatusEnrolling)
	}

	callCtx, cancel := m.callCtx(ctx)
	result, err := m.client.Enroll(callCtx, p.ProfileID, sample)
	cancel()
	if err != nil {
		// Cleanup-on-failure: tear down the half-built provider profile.
		// A cleanup failure is logged but does not mask the enroll error.
		if cleanupErr := m.deleteAtProvider(ctx, p.ProfileID); cleanupErr != nil {
			m.log.Warn("profile: cleanup after failed enrollment", "user", userID, "error", cleanupErr)
		}
		p.ProfileID = ""
		p.Status = StatusFailed
		p.UpdatedAt = time.Now().UTC()
		if putErr := m.store.Put(ctx, p); putErr != nil {
			m.log.Warn("profile: record failed state", "user", userID, "error", putErr)
		}
		return nil, fault.Remote(op, err, "enroll %q", userID)
	}

	if result.Enrolled {
		p.Status = StatusEnrolled
	}
	p.UpdatedAt = time.Now().UTC()
	if err := m.store.Put(ctx, p); err != nil {
		return nil, err
	}
	m.log.Info("profile: enrollment sample accepted",
		"user", userID, "status", p.Status, "speech_seconds", result.SpeechLength)
	return p, nil
}

// DeleteProfile removes the provider-side profile and the local record.
// Deleting a user with no profile is a no-op success.
func (m *Manager) DeleteProfile(ctx context.Context, userID string) error {
	const op = "profile.DeleteProfile"
	if userID == "" {
		return fault.Validation(op, "userId is required")
	}

	unlock := m.store.LockUser(userID)
	defer unlock()

	p, err := m.store.Get(ctx, userID)
	if fault.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if p.Live() {
		if m.client == nil {
			return fault.Configuration(op, "recognition provider not configured")
		}
		if err := m.deleteAtProvider(ctx, p.ProfileID); err != nil {
			return fault.Remote(op, err, "delete provider profile %s", p.ProfileID)
		}
	}
	return m.store.Delete(ctx, userID)
}

// SaveCalibration records the quality-check transcript and the local
// feature vector on an existing profile.
func (m *Manager) SaveCalibration(ctx context.Context, userID, userName, transcript string, features []float32) error {
	unlock := m.store.LockUser(userID)
	defer unlock()

	p, err := m.store.Get(ctx, userID)
	if err != nil {
		return err
	}
	p.UserName = userName
	p.Transcript = transcript
	p.Features = features
	p.UpdatedAt = time.Now().UTC()
	return m.store.Put(ctx, p)
}

// GetProfile returns a user's profile record.
func (m *Manager) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	return m.store.Get(ctx, userID)
}

// ListEnrolled returns all profiles usable for identification.
func (m *Manager) ListEnrolled(ctx context.Context) ([]*Profile, error) {
	return m.store.ListEnrolled(ctx)
}

// deleteAtProvider deletes a provider-side profile, treating an unknown
// profile as already deleted.
func (m *Manager) deleteAtProvider(ctx context.Context, profileID string) error {
	callCtx, cancel := m.callCtx(ctx)
	defer cancel()
	err := m.client.DeleteProfile(callCtx, profileID)
	if errors.Is(err, recognizer.ErrProfileNotFound) {
		return nil
	}
	return err
}
