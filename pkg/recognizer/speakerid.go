package recognizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hearsaylabs/hearsay/pkg/audio"
)

const (
	speakerIDPathPrefix = "/speaker/identification/v2.0/text-independent/profiles"
	defaultLocale       = "en-us"
	defaultTimeout      = 30 * time.Second
)

// SpeakerID is a ProfileClient backed by an Azure-style speaker
// identification REST API. Profiles are created empty, fed enrollment audio
// until the service reports them enrolled, and later matched against short
// audio samples.
type SpeakerID struct {
	key        string
	endpoint   string
	locale     string
	httpClient *http.Client
}

var _ ProfileClient = (*SpeakerID)(nil)

// SpeakerIDOption configures a SpeakerID client.
type SpeakerIDOption func(*SpeakerID)

// WithSpeakerIDHTTPClient sets a custom HTTP client.
func WithSpeakerIDHTTPClient(c *http.Client) SpeakerIDOption {
	return func(s *SpeakerID) { s.httpClient = c }
}

// WithSpeakerIDLocale sets the profile locale (default "en-us").
func WithSpeakerIDLocale(locale string) SpeakerIDOption {
	return func(s *SpeakerID) { s.locale = locale }
}

// WithSpeakerIDTimeout sets the per-call timeout (default 30s).
func WithSpeakerIDTimeout(d time.Duration) SpeakerIDOption {
	return func(s *SpeakerID) { s.httpClient = &http.Client{Timeout: d} }
}

// NewSpeakerID creates a speaker identification client.
//
// endpoint is the regional service base URL, e.g.
// "https://westus.api.cognitive.microsoft.com". key is the subscription key.
func NewSpeakerID(endpoint, key string, opts ...SpeakerIDOption) *SpeakerID {
	s := &SpeakerID{
		key:      key,
		endpoint: strings.TrimRight(endpoint, "/"),
		locale:   defaultLocale,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.httpClient == nil {
		s.httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return s
}

func (s *SpeakerID) do(ctx context.Context, method, url, contentType string, body io.Reader) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", s.key)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, respBody, nil
}

// CreateProfile registers a new empty voice profile.
func (s *SpeakerID) CreateProfile(ctx context.Context) (string, error) {
	reqBody, _ := json.Marshal(map[string]string{"locale": s.locale})
	status, body, err := s.do(ctx, http.MethodPost, s.endpoint+speakerIDPathPrefix,
		"application/json", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("create profile: %w", err)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return "", parseAPIError(status, body)
	}
	var resp struct {
		ProfileID string `json:"profileId"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("create profile: decode response: %w", err)
	}
	if resp.ProfileID == "" {
		return "", &APIError{HTTPStatus: status, Message: "create profile: empty profileId in response"}
	}
	return resp.ProfileID, nil
}

// Enroll submits a reference voice sample for the profile.
func (s *SpeakerID) Enroll(ctx context.Context, profileID string, sample audio.Sample) (EnrollmentResult, error) {
	url := s.endpoint + speakerIDPathPrefix + "/" + profileID + "/enrollments"
	status, body, err := s.do(ctx, http.MethodPost, url, sampleContentType(sample), bytes.NewReader(sample.Data))
	if err != nil {
		return EnrollmentResult{}, fmt.Errorf("enroll profile %s: %w", profileID, err)
	}
	if status == http.StatusNotFound {
		return EnrollmentResult{}, ErrProfileNotFound
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return EnrollmentResult{}, parseAPIError(status, body)
	}
	var resp struct {
		EnrollmentStatus   string  `json:"enrollmentStatus"`
		EnrollmentsSpeech  float64 `json:"enrollmentsSpeechLength"`
		RemainingSpeech    float64 `json:"remainingEnrollmentsSpeechLength"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return EnrollmentResult{}, fmt.Errorf("enroll profile %s: decode response: %w", profileID, err)
	}
	return EnrollmentResult{
		Enrolled:     strings.EqualFold(resp.EnrollmentStatus, "Enrolled"),
		SpeechLength: resp.EnrollmentsSpeech,
	}, nil
}

// DeleteProfile removes the profile.
func (s *SpeakerID) DeleteProfile(ctx context.Context, profileID string) error {
	url := s.endpoint + speakerIDPathPrefix + "/" + profileID
	status, body, err := s.do(ctx, http.MethodDelete, url, "", nil)
	if err != nil {
		return fmt.Errorf("delete profile %s: %w", profileID, err)
	}
	switch status {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return ErrProfileNotFound
	default:
		return parseAPIError(status, body)
	}
}

// Identify returns the best-matching candidate profile for the sample.
func (s *SpeakerID) Identify(ctx context.Context, sample audio.Sample, profileIDs []string) (Match, error) {
	if len(profileIDs) == 0 {
		return Match{}, ErrNoSpeakerFound
	}
	url := s.endpoint + speakerIDPathPrefix + ":identifySingleSpeaker?profileIds=" + strings.Join(profileIDs, ",")
	status, body, err := s.do(ctx, http.MethodPost, url, sampleContentType(sample), bytes.NewReader(sample.Data))
	if err != nil {
		return Match{}, fmt.Errorf("identify speaker: %w", err)
	}
	if status != http.StatusOK {
		return Match{}, parseAPIError(status, body)
	}
	var resp struct {
		IdentifiedProfile struct {
			ProfileID string  `json:"profileId"`
			Score     float64 `json:"score"`
		} `json:"identifiedProfile"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Match{}, fmt.Errorf("identify speaker: decode response: %w", err)
	}
	// The service reports the all-zero profile id when nobody matched.
	id := resp.IdentifiedProfile.ProfileID
	if id == "" || strings.Trim(id, "0-") == "" {
		return Match{}, ErrNoSpeakerFound
	}
	return Match{ProfileID: id, Score: resp.IdentifiedProfile.Score}, nil
}

// sampleContentType maps a sample encoding to the request content type.
func sampleContentType(s audio.Sample) string {
	switch s.Encoding {
	case audio.WAV:
		return "audio/wav"
	case audio.WebMOpus:
		return "audio/webm"
	default:
		return fmt.Sprintf("audio/pcm;rate=%d", s.SampleRate)
	}
}
