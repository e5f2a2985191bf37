package identify

import (
	"math"
	"math/cmplx"

	"github.com/hearsaylabs/hearsay/pkg/audio"
	"github.com/hearsaylabs/hearsay/pkg/fault"
)

// FeatureDim is the dimensionality of the voice feature vectors produced by
// an Extractor: one mean-pooled log-mel energy per filterbank channel.
const FeatureDim = 40

const (
	frameLengthMs = 25
	frameShiftMs  = 10
	preEmphasis   = 0.97
	energyFloor   = 1e-10
)

// Extractor turns PCM audio into a fixed-size voice feature vector by
// mean-pooling log mel filterbank frames and L2-normalizing the result.
// The window and filterbank are precomputed per sample rate, so an
// Extractor is cheap to reuse but not safe for concurrent use.
type Extractor struct {
	sampleRate  int
	frameLength int
	frameShift  int
	fftSize     int
	window      []float64
	filterbank  [][]float64
	fftBuf      []complex128
}

// NewExtractor creates an Extractor for the given sample rate.
func NewExtractor(sampleRate int) *Extractor {
	frameLength := sampleRate * frameLengthMs / 1000
	fftSize := nextPow2(frameLength)
	return &Extractor{
		sampleRate:  sampleRate,
		frameLength: frameLength,
		frameShift:  sampleRate * frameShiftMs / 1000,
		fftSize:     fftSize,
		window:      hammingWindow(frameLength),
		filterbank:  melFilterbank(FeatureDim, fftSize, sampleRate),
		fftBuf:      make([]complex128, fftSize),
	}
}

// Embed computes the feature vector for a sample. The sample must be PCM16
// at the extractor's sample rate and long enough for at least one frame.
func (e *Extractor) Embed(sample audio.Sample) ([]float32, error) {
	const op = "identify.Embed"
	pcm := sample.PCMData()
	if pcm == nil {
		return nil, fault.Validation(op, "encoding %s needs provider-side decoding", sample.Encoding)
	}
	if sample.SampleRate != e.sampleRate {
		return nil, fault.Validation(op, "sample rate %d, extractor expects %d",
			sample.SampleRate, e.sampleRate)
	}

	samples := decodePCM16(pcm)
	if len(samples) < e.frameLength {
		return nil, fault.Validation(op, "sample too short: %d samples, need %d",
			len(samples), e.frameLength)
	}
	emphasize(samples)

	numFrames := (len(samples)-e.frameLength)/e.frameShift + 1
	sum := make([]float64, FeatureDim)
	frame := make([]float64, FeatureDim)
	for f := 0; f < numFrames; f++ {
		e.logMelFrame(samples[f*e.frameShift:], frame)
		for m, v := range frame {
			sum[m] += v
		}
	}

	// Mean-pool over time, then L2-normalize so cosine similarity reduces
	// to a dot product of stored vectors.
	var norm float64
	for m := range sum {
		sum[m] /= float64(numFrames)
		norm += sum[m] * sum[m]
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return nil, fault.Validation(op, "silent sample produced a zero feature vector")
	}
	vec := make([]float32, FeatureDim)
	for m := range sum {
		vec[m] = float32(sum[m] / norm)
	}
	return vec, nil
}

// logMelFrame computes one frame of log mel filterbank energies into out.
func (e *Extractor) logMelFrame(samples []float64, out []float64) {
	for i := range e.fftBuf {
		e.fftBuf[i] = 0
	}
	for i := 0; i < e.frameLength; i++ {
		e.fftBuf[i] = complex(samples[i]*e.window[i], 0)
	}
	fft(e.fftBuf)

	half := e.fftSize/2 + 1
	power := make([]float64, half)
	for k := 0; k < half; k++ {
		re := real(e.fftBuf[k])
		im := imag(e.fftBuf[k])
		power[k] = re*re + im*im
	}

	for m := 0; m < FeatureDim; m++ {
		var energy float64
		for k, w := range e.filterbank[m] {
			energy += w * power[k]
		}
		out[m] = math.Log(math.Max(energy, energyFloor))
	}
}

// Cosine returns the cosine similarity of two feature vectors, or 0 when
// either is empty, zero, or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func decodePCM16(data []byte) []float64 {
	n := len(data) / 2
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		s := int16(data[2*i]) | int16(data[2*i+1])<<8
		out[i] = float64(s)
	}
	return out
}

func emphasize(samples []float64) {
	for i := len(samples) - 1; i > 0; i-- {
		samples[i] -= preEmphasis * samples[i-1]
	}
	samples[0] *= 1 - preEmphasis
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func hammingWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

func hzToMel(hz float64) float64  { return 2595 * math.Log10(1+hz/700) }
func melToHz(mel float64) float64 { return 700 * (math.Pow(10, mel/2595) - 1) }

// melFilterbank builds triangular mel filters as [numMels][fftSize/2+1]
// weights spanning 0 Hz to Nyquist.
func melFilterbank(numMels, fftSize, sampleRate int) [][]float64 {
	half := fftSize/2 + 1
	low := hzToMel(0)
	high := hzToMel(float64(sampleRate) / 2)

	bins := make([]int, numMels+2)
	for i := range bins {
		mel := low + float64(i)*(high-low)/float64(numMels+1)
		bin := int(math.Floor(melToHz(mel) * float64(fftSize) / float64(sampleRate)))
		if bin >= half {
			bin = half - 1
		}
		bins[i] = bin
	}

	fb := make([][]float64, numMels)
	for m := range fb {
		fb[m] = make([]float64, half)
		left, center, right := bins[m], bins[m+1], bins[m+2]
		for k := left; k <= center; k++ {
			if center > left {
				fb[m][k] = float64(k-left) / float64(center-left)
			}
		}
		for k := center; k <= right; k++ {
			if right > center {
				fb[m][k] = float64(right-k) / float64(right-center)
			}
		}
	}
	return fb
}

// fft is an in-place radix-2 Cooley-Tukey transform. len(x) must be a
// power of 2.
func fft(x []complex128) {
	n := len(x)
	if n <= 1 {
		return
	}

	j := 0
	for i := 1; i < n; i++ {
		bit := n >> 1
		for j&bit != 0 {
			j ^= bit
			bit >>= 1
		}
		j ^= bit
		if i < j {
			x[i], x[j] = x[j], x[i]
		}
	}

	for size := 2; size <= n; size <<= 1 {
		half := size / 2
		wn := cmplx.Exp(complex(0, -2*math.Pi/float64(size)))
		for start := 0; start < n; start += size {
			w := complex(1, 0)
			for k := 0; k < half; k++ {
				u := x[start+k]
				t := w * x[start+k+half]
				x[start+k] = u + t
				x[start+k+half] = u - t
				w *= wn
			}
		}
	}
}
