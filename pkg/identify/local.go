package identify

import (
	"context"
	"log/slog"

	"github.com/hearsaylabs/hearsay/pkg/audio"
	"github.com/hearsaylabs/hearsay/pkg/profile"
)

// Local matches samples against the feature vectors saved at calibration
// time. It needs no network and serves as the fallback when no recognition
// provider is configured.
type Local struct {
	profiles *profile.Store
	log      *slog.Logger
}

// LocalOption configures a Local identifier.
type LocalOption func(*Local)

// WithLocalLogger sets the logger.
func WithLocalLogger(l *slog.Logger) LocalOption {
	return func(id *Local) { id.log = l }
}

// NewLocal creates a Local identifier reading calibrated profiles from the
// given store.
func NewLocal(profiles *profile.Store, opts ...LocalOption) *Local {
	id := &Local{profiles: profiles, log: slog.Default()}
	for _, opt := range opts {
		opt(id)
	}
	return id
}

// Identify embeds the sample and scores it against the enrolled profiles
// that carry a feature vector, restricted to candidateUserIDs when given.
// The best score wins if it is strictly above the threshold; on a tie the
// lowest user ID wins, so repeated calls with the same stored state give
// the same answer.
func (id *Local) Identify(ctx context.Context, sample audio.Sample, candidateUserIDs []string) (Result, error) {
	enrolled, err := id.profiles.ListEnrolled(ctx)
	if err != nil {
		return Result{}, err
	}
	candidates := filterCandidates(enrolled, candidateUserIDs)

	extractor := NewExtractor(sample.SampleRate)
	vec, err := extractor.Embed(sample)
	if err != nil {
		return Result{}, err
	}

	var best Result
	found := false
	for _, p := range candidates {
		if len(p.Features) == 0 {
			continue
		}
		score := Cosine(vec, p.Features)
		if score <= MatchThreshold {
			continue
		}
		if !found || score > best.Score || (score == best.Score && p.UserID < best.UserID) {
			best = Result{UserID: p.UserID, UserName: p.UserName, Score: score}
			found = true
		}
	}
	if !found {
		return Result{}, ErrNoMatch
	}
	id.log.Debug("identify: local match", "user", best.UserID, "score", best.Score)
	return best, nil
}
