package identify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hearsaylabs/hearsay/pkg/audio"
	"github.com/hearsaylabs/hearsay/pkg/fault"
	"github.com/hearsaylabs/hearsay/pkg/profile"
	"github.com/hearsaylabs/hearsay/pkg/recognizer"
)

// Remote identifies speakers through the recognition provider, sending the
// sample along with the provider profile IDs of every enrolled user.
type Remote struct {
	profiles *profile.Store
	client   recognizer.ProfileClient
	log      *slog.Logger
}

// RemoteOption configures a Remote identifier.
type RemoteOption func(*Remote)

// WithRemoteLogger sets the logger.
func WithRemoteLogger(l *slog.Logger) RemoteOption {
	return func(id *Remote) { id.log = l }
}

// NewRemote creates a Remote identifier.
func NewRemote(profiles *profile.Store, client recognizer.ProfileClient, opts ...RemoteOption) *Remote {
	id := &Remote{profiles: profiles, client: client, log: slog.Default()}
	for _, opt := range opts {
		opt(id)
	}
	return id
}

// Identify sends the sample to the provider with the enrolled candidates,
// restricted to candidateUserIDs when given. Only profiles in the enrolled
// state are offered; the provider's match is mapped back to the owning
// user. A provider match below the threshold, or for a profile no longer
// on record, counts as no match.
func (id *Remote) Identify(ctx context.Context, sample audio.Sample, candidateUserIDs []string) (Result, error) {
	const op = "identify.Remote"
	enrolled, err := id.profiles.ListEnrolled(ctx)
	if err != nil {
		return Result{}, err
	}
	candidates := filterCandidates(enrolled, candidateUserIDs)
	if len(candidates) == 0 {
		return Result{}, ErrNoMatch
	}

	byProfile := make(map[string]*profile.Profile, len(candidates))
	profileIDs := make([]string, 0, len(candidates))
	for _, p := range candidates {
		byProfile[p.ProfileID] = p
		profileIDs = append(profileIDs, p.ProfileID)
	}

	match, err := id.client.Identify(ctx, sample, profileIDs)
	if errors.Is(err, recognizer.ErrNoSpeakerFound) {
		return Result{}, ErrNoMatch
	}
	if err != nil {
		return Result{}, fault.Remote(op, err, "identify against %d candidates", len(profileIDs))
	}
	if match.Score <= MatchThreshold {
		return Result{}, ErrNoMatch
	}
	p, ok := byProfile[match.ProfileID]
	if !ok {
		id.log.Warn("identify: provider matched unknown profile", "profile", match.ProfileID)
		return Result{}, ErrNoMatch
	}
	return Result{UserID: p.UserID, UserName: p.UserName, Score: match.Score}, nil
}
