// Package testaudio synthesizes deterministic waveforms for tests.
package testaudio

import (
	"math"
	"math/rand"
)

// Song returns seconds of audio made of short tone clusters whose pitches are
// drawn from seed. Different seeds give unrelated songs.
func Song(seed int64, seconds float64, sampleRate int) []float64 {
	rng := rand.New(rand.NewSource(seed))
	n := int(seconds * float64(sampleRate))
	out := make([]float64, n)

	for pos := 0; pos < n; {
		segLen := int((0.15 + 0.25*rng.Float64()) * float64(sampleRate))
		if pos+segLen > n {
			segLen = n - pos
		}
		fade := segLen / 10
		tones := 2 + rng.Intn(2)
		for k := 0; k < tones; k++ {
			freq := 150 + rng.Float64()*(float64(sampleRate)/2-600)
			amp := 0.15 + 0.1*rng.Float64()
			phase := rng.Float64() * 2 * math.Pi
			for i := 0; i < segLen; i++ {
				env := 1.0
				if i < fade {
					env = float64(i) / float64(fade)
				} else if i > segLen-fade {
					env = float64(segLen-i) / float64(fade)
				}
				t := float64(pos+i) / float64(sampleRate)
				out[pos+i] += env * amp * math.Sin(2*math.Pi*freq*t+phase)
			}
		}
		pos += segLen
	}
	return out
}

// WithNoise returns a copy of samples plus uniform noise in [-amp, amp].
func WithNoise(samples []float64, amp float64, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s + amp*(2*rng.Float64()-1)
	}
	return out
}

// Silence returns n zero samples.
func Silence(n int) []float64 {
	return make([]float64, n)
}
