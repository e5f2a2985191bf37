package profile_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hearsaylabs/hearsay/pkg/audio"
	"github.com/hearsaylabs/hearsay/pkg/fault"
	"github.com/hearsaylabs/hearsay/pkg/kv"
	"github.com/hearsaylabs/hearsay/pkg/profile"
	"github.com/hearsaylabs/hearsay/pkg/recognizer"
)

// fakeClient is an in-memory stand-in for the recognition provider.
type fakeClient struct {
	nextID    int
	live      map[string]bool
	enrollErr error
	deleted   []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{live: make(map[string]bool)}
}

func (f *fakeClient) CreateProfile(ctx context.Context) (string, error) {
	f.nextID++
	id := fmt.Sprintf("prof-%d", f.nextID)
	f.live[id] = true
	return id, nil
}

func (f *fakeClient) Enroll(ctx context.Context, profileID string, sample audio.Sample) (recognizer.EnrollmentResult, error) {
	if f.enrollErr != nil {
		return recognizer.EnrollmentResult{}, f.enrollErr
	}
	if !f.live[profileID] {
		return recognizer.EnrollmentResult{}, recognizer.ErrProfileNotFound
	}
	return recognizer.EnrollmentResult{Enrolled: true, SpeechLength: 5.2}, nil
}

func (f *fakeClient) DeleteProfile(ctx context.Context, profileID string) error {
	if !f.live[profileID] {
		return recognizer.ErrProfileNotFound
	}
	delete(f.live, profileID)
	f.deleted = append(f.deleted, profileID)
	return nil
}

func (f *fakeClient) Identify(ctx context.Context, sample audio.Sample, profileIDs []string) (recognizer.Match, error) {
	return recognizer.Match{}, recognizer.ErrNoSpeakerFound
}

func enrollSample() audio.Sample {
	// 5 seconds of 16kHz mono PCM16, comfortably over the minimum.
	return audio.PCM(make([]byte, 16000*2*5), 16000)
}

func newManager(t *testing.T, client recognizer.ProfileClient) *profile.Manager {
	t.Helper()
	store := profile.NewStore(kv.NewMemory(nil))
	return profile.NewManager(store, client)
}

func TestCreateProfileTwiceLeavesOneLive(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	mgr := newManager(t, client)

	first, err := mgr.CreateProfile(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	second, err := mgr.CreateProfile(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Fatalf("expected a new provider profile, got %s twice", first)
	}
	if client.live[first] {
		t.Errorf("previous profile %s still live at provider", first)
	}
	if !client.live[second] {
		t.Errorf("new profile %s not live at provider", second)
	}
	if len(client.live) != 1 {
		t.Errorf("expected exactly one live profile, got %d", len(client.live))
	}

	p, err := mgr.GetProfile(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if p.ProfileID != second || p.Status != profile.StatusEnrolling {
		t.Errorf("got profile %s status %s, want %s enrolling", p.ProfileID, p.Status, second)
	}
}

func TestEnrollProfile(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	mgr := newManager(t, client)

	if _, err := mgr.CreateProfile(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	p, err := mgr.EnrollProfile(ctx, "alice", enrollSample())
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != profile.StatusEnrolled {
		t.Errorf("status = %s, want %s", p.Status, profile.StatusEnrolled)
	}
}

func TestEnrollProfileRequiresEnrollingState(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	mgr := newManager(t, client)

	if _, err := mgr.CreateProfile(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.EnrollProfile(ctx, "alice", enrollSample()); err != nil {
		t.Fatal(err)
	}
	// Already enrolled: a second enrollment attempt is a state fault.
	_, err := mgr.EnrollProfile(ctx, "alice", enrollSample())
	if !fault.IsState(err) {
		t.Fatalf("expected state fault, got %v", err)
	}
}

func TestEnrollFailureCleansUp(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	mgr := newManager(t, client)

	id, err := mgr.CreateProfile(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}

	client.enrollErr = errors.New("audio too noisy")
	_, err = mgr.EnrollProfile(ctx, "alice", enrollSample())
	if !fault.IsRemote(err) {
		t.Fatalf("expected remote fault, got %v", err)
	}
	if client.live[id] {
		t.Errorf("provider profile %s not cleaned up", id)
	}

	p, err := mgr.GetProfile(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != profile.StatusFailed {
		t.Errorf("status = %s, want %s", p.Status, profile.StatusFailed)
	}
	if p.ProfileID != "" {
		t.Errorf("profileId = %q, want empty after cleanup", p.ProfileID)
	}
}

func TestDeleteProfileIdempotent(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	mgr := newManager(t, client)

	if _, err := mgr.CreateProfile(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	if err := mgr.DeleteProfile(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	if len(client.live) != 0 {
		t.Errorf("expected no live provider profiles, got %d", len(client.live))
	}
	// Second delete, and delete of a user that never existed, succeed.
	if err := mgr.DeleteProfile(ctx, "alice"); err != nil {
		t.Errorf("repeat delete: %v", err)
	}
	if err := mgr.DeleteProfile(ctx, "bob"); err != nil {
		t.Errorf("delete unknown user: %v", err)
	}

	if _, err := mgr.GetProfile(ctx, "alice"); !fault.IsNotFound(err) {
		t.Errorf("expected not-found after delete, got %v", err)
	}
}

func TestSaveCalibration(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	mgr := newManager(t, client)

	if _, err := mgr.CreateProfile(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	features := []float32{0.1, 0.2, 0.3}
	if err := mgr.SaveCalibration(ctx, "alice", "Alice", "hello world", features); err != nil {
		t.Fatal(err)
	}
	p, err := mgr.GetProfile(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if p.UserName != "Alice" || p.Transcript != "hello world" {
		t.Errorf("calibration not persisted: %+v", p)
	}
	if len(p.Features) != 3 {
		t.Errorf("features not persisted: %v", p.Features)
	}
}

func TestListEnrolled(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	mgr := newManager(t, client)

	for _, user := range []string{"alice", "bob"} {
		if _, err := mgr.CreateProfile(ctx, user); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := mgr.EnrollProfile(ctx, "alice", enrollSample()); err != nil {
		t.Fatal(err)
	}

	enrolled, err := mgr.ListEnrolled(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(enrolled) != 1 || enrolled[0].UserID != "alice" {
		t.Fatalf("enrolled = %v, want just alice", enrolled)
	}
}
