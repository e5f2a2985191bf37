// Package audio defines the audio value types passed across the hearsay
// core. A [Sample] carries raw bytes together with the parameters needed to
// interpret them; it is validated once at the boundary so downstream code
// never sees an untyped blob.
package audio

import (
	"encoding/binary"
	"time"

	"github.com/hearsaylabs/hearsay/pkg/fault"
)

// Encoding identifies how Sample bytes are encoded.
type Encoding int

const (
	// PCM16 is raw signed 16-bit little-endian PCM.
	PCM16 Encoding = iota
	// WAV is a RIFF/WAVE container holding PCM16.
	WAV
	// WebMOpus is a WebM container with an Opus track, as produced by
	// browser MediaRecorder. Passed through to the provider opaquely.
	WebMOpus
)

func (e Encoding) String() string {
	switch e {
	case PCM16:
		return "pcm16"
	case WAV:
		return "wav"
	case WebMOpus:
		return "webm/opus"
	default:
		return "unknown"
	}
}

// Accepted sample rates for enrollment and identification audio.
var acceptedRates = map[int]bool{8000: true, 16000: true, 24000: true, 48000: true}

// MinEnrollDuration is the shortest audio accepted for enrollment.
// Shorter samples do not carry enough voice to build a usable profile.
const MinEnrollDuration = 4 * time.Second

// Sample is one self-contained piece of audio.
type Sample struct {
	// Data is the encoded audio payload.
	Data []byte

	// Encoding describes how Data is encoded.
	Encoding Encoding

	// SampleRate is the sample rate in Hz. For WAV it is read from the
	// header by FromWAV; for WebMOpus it is advisory.
	SampleRate int

	// Channels is the channel count. Only mono is accepted.
	Channels int

	// data chunk location inside a parsed WAV container. Zero for samples
	// not built by FromWAV.
	dataOff int
	dataLen int
}

// PCM returns a Sample wrapping raw PCM16 mono data.
func PCM(data []byte, sampleRate int) Sample {
	return Sample{Data: data, Encoding: PCM16, SampleRate: sampleRate, Channels: 1}
}

// FromWAV parses a RIFF/WAVE header and returns a Sample describing it.
// Only uncompressed PCM16 WAV is understood.
func FromWAV(data []byte) (Sample, error) {
	const op = "audio.FromWAV"
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Sample{}, fault.Validation(op, "not a RIFF/WAVE file")
	}
	// Walk the chunks for "fmt " and "data". They usually follow the RIFF
	// header directly, but some encoders insert LIST chunks first.
	s := Sample{Data: data, Encoding: WAV}
	haveFmt := false
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		switch id {
		case "fmt ":
			if body+16 > len(data) {
				return Sample{}, fault.Validation(op, "truncated fmt chunk")
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			channels := int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			rate := int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits := binary.LittleEndian.Uint16(data[body+14 : body+16])
			if format != 1 || bits != 16 {
				return Sample{}, fault.Validation(op, "unsupported WAV format: format=%d bits=%d", format, bits)
			}
			s.SampleRate = rate
			s.Channels = channels
			haveFmt = true
		case "data":
			end := body + size
			if end > len(data) {
				end = len(data)
			}
			s.dataOff = body
			s.dataLen = end - body
		}
		off = body + size
		if size%2 == 1 {
			off++
		}
	}
	if !haveFmt {
		return Sample{}, fault.Validation(op, "missing fmt chunk")
	}
	if s.dataLen == 0 {
		return Sample{}, fault.Validation(op, "missing data chunk")
	}
	return s, nil
}

// pcmLen returns the number of raw PCM bytes in the sample, or -1 when the
// payload size cannot be derived from the encoding.
func (s Sample) pcmLen() int {
	switch s.Encoding {
	case PCM16:
		return len(s.Data)
	case WAV:
		if s.dataLen > 0 {
			return s.dataLen
		}
		// Hand-built WAV sample without chunk info: assume the minimal
		// 44-byte header.
		if len(s.Data) > 44 {
			return len(s.Data) - 44
		}
		return 0
	default:
		return -1
	}
}

// Duration returns the audio duration, or 0 when it cannot be computed
// (compressed containers).
func (s Sample) Duration() time.Duration {
	n := s.pcmLen()
	if n <= 0 || s.SampleRate <= 0 || s.Channels <= 0 {
		return 0
	}
	samples := n / 2 / s.Channels
	return time.Duration(samples) * time.Second / time.Duration(s.SampleRate)
}

// PCMData returns the raw PCM16 payload for PCM16 and WAV samples, or nil
// for encodings that need provider-side decoding.
func (s Sample) PCMData() []byte {
	switch s.Encoding {
	case PCM16:
		return s.Data
	case WAV:
		if s.dataLen > 0 {
			return s.Data[s.dataOff : s.dataOff+s.dataLen]
		}
		if len(s.Data) > 44 {
			return s.Data[44:]
		}
	}
	return nil
}

// Validate checks the sample against the documented input constraints:
// non-empty payload, mono, accepted sample rate. minDuration of zero skips
// the duration check; for compressed containers the duration is unknown and
// the check is skipped as well.
func (s Sample) Validate(minDuration time.Duration) error {
	const op = "audio.Validate"
	if len(s.Data) == 0 {
		return fault.Validation(op, "empty audio payload")
	}
	if s.Channels != 1 {
		return fault.Validation(op, "audio must be mono, got %d channels", s.Channels)
	}
	if !acceptedRates[s.SampleRate] {
		return fault.Validation(op, "unsupported sample rate %d Hz", s.SampleRate)
	}
	if minDuration > 0 {
		if d := s.Duration(); d > 0 && d < minDuration {
			return fault.Validation(op, "audio too short: %v, need at least %v", d, minDuration)
		}
	}
	return nil
}
