// Package identify resolves which calibrated user is speaking in an audio
// sample. Two implementations are provided: Remote delegates to the
// recognition provider's speaker identification endpoint, and Local matches
// against feature vectors stored during calibration, for use when no
// provider is configured or reachable.
package identify

import (
	"context"
	"errors"

	"github.com/hearsaylabs/hearsay/pkg/audio"
	"github.com/hearsaylabs/hearsay/pkg/profile"
)

// MatchThreshold is the minimum similarity score for a match. Scores at or
// below the threshold are treated as no match.
const MatchThreshold = 0.7

// ErrNoMatch is returned when no candidate scores above the threshold.
var ErrNoMatch = errors.New("identify: no speaker matched")

// Result is an identified speaker.
type Result struct {
	UserID   string
	UserName string
	Score    float64
}

// Identifier matches an audio sample against the calibrated users.
type Identifier interface {
	// Identify returns the best-matching user, or ErrNoMatch when no
	// candidate exceeds the threshold (including when no users are
	// calibrated). candidateUserIDs narrows the search to the named
	// users; empty means every enrolled user. Named users that are not
	// enrolled are skipped.
	Identify(ctx context.Context, sample audio.Sample, candidateUserIDs []string) (Result, error)
}

// filterCandidates keeps the enrolled profiles named by candidateUserIDs.
// An empty set means all of them.
func filterCandidates(enrolled []*profile.Profile, candidateUserIDs []string) []*profile.Profile {
	if len(candidateUserIDs) == 0 {
		return enrolled
	}
	wanted := make(map[string]bool, len(candidateUserIDs))
	for _, id := range candidateUserIDs {
		wanted[id] = true
	}
	var out []*profile.Profile
	for _, p := range enrolled {
		if wanted[p.UserID] {
			out = append(out, p)
		}
	}
	return out
}
