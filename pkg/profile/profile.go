// Package profile owns speaker enrollment state: one voice profile record
// per user, persisted through the kv store, and a manager that drives the
// enrollment lifecycle against the recognition provider.
//
// The lifecycle is a small state machine:
//
//	unenrolled → enrolling → {enrolled, failed}
//
// Both enrolled and failed return to enrolling through Manager.CreateProfile,
// which always tears down the previous provider-side profile first. At most
// one live provider-side profile exists per user at any time.
package profile

import "time"

// Status is the enrollment state of a voice profile.
type Status string

const (
	// StatusUnenrolled means no profile exists for the user.
	StatusUnenrolled Status = "unenrolled"

	// StatusEnrolling means a provider-side profile exists and is
	// waiting for (more) enrollment audio.
	StatusEnrolling Status = "enrolling"

	// StatusEnrolled means the profile is usable for identification.
	StatusEnrolled Status = "enrolled"

	// StatusFailed means the last enrollment attempt failed; the
	// provider-side profile has been torn down.
	StatusFailed Status = "failed"
)

// Profile is one user's voice enrollment record.
type Profile struct {
	// UserID is the owning user. Unique key.
	UserID string `msgpack:"user_id" json:"userId"`

	// UserName is the display name captured at calibration time.
	UserName string `msgpack:"user_name,omitempty" json:"userName,omitempty"`

	// ProfileID is the provider-side handle. Empty when no live
	// provider profile exists (unenrolled or failed).
	ProfileID string `msgpack:"profile_id,omitempty" json:"profileId,omitempty"`

	// Status is the enrollment state.
	Status Status `msgpack:"status" json:"enrollmentStatus"`

	// Transcript is the quality-check transcript captured during
	// calibration. May be empty when the transcription step failed.
	Transcript string `msgpack:"transcript,omitempty" json:"transcript,omitempty"`

	// Features is the fixed-length voice feature vector used by local
	// fallback identification. Nil when never computed.
	Features []float32 `msgpack:"features,omitempty" json:"-"`

	// CreatedAt is when the record was first created.
	CreatedAt time.Time `msgpack:"created_at" json:"createdAt"`

	// UpdatedAt is when the record last changed.
	UpdatedAt time.Time `msgpack:"updated_at" json:"updatedAt"`
}

// Live reports whether a provider-side profile handle exists.
func (p *Profile) Live() bool {
	return p != nil && p.ProfileID != ""
}
