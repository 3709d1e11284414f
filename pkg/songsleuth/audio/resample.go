package audio

import (
	"math"

	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/floats"
)

// tapsPerRatio sets the low-pass length per unit of decimation ratio.
const tapsPerRatio = 16

// Resample converts samples between rates by linear interpolation. Equal rates
// return the input unchanged. Downsampling first low-passes the input below
// the new Nyquist frequency so higher partials do not alias into the band.
func Resample(samples []float64, fromRate, toRate int) []float64 {
	if fromRate == toRate || fromRate <= 0 || toRate <= 0 || len(samples) == 0 {
		return samples
	}

	ratio := float64(fromRate) / float64(toRate)
	if fromRate > toRate {
		samples = lowPass(samples, lowPassKernel(ratio))
	}

	n := int(float64(len(samples)) / ratio)
	out := make([]float64, n)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)
		if idx+1 < len(samples) {
			out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
		} else {
			out[i] = samples[len(samples)-1]
		}
	}
	return out
}

// lowPassKernel is a Hamming-windowed sinc with unit DC gain and its cutoff at
// 90% of the output Nyquist frequency.
func lowPassKernel(ratio float64) []float64 {
	half := int(math.Ceil(ratio)) * tapsPerRatio / 2
	taps := 2*half + 1
	fc := 0.45 / ratio // cycles per input sample

	kernel := window.Hamming(taps)
	for k := range kernel {
		x := float64(k - half)
		if x == 0 {
			kernel[k] *= 2 * fc
		} else {
			kernel[k] *= math.Sin(2*math.Pi*fc*x) / (math.Pi * x)
		}
	}
	floats.Scale(1/floats.Sum(kernel), kernel)
	return kernel
}

// lowPass convolves samples with a symmetric kernel, holding the edge samples
// beyond either end.
func lowPass(samples, kernel []float64) []float64 {
	half := len(kernel) / 2
	out := make([]float64, len(samples))
	padded := make([]float64, len(kernel))
	for i := range out {
		lo, hi := i-half, i+half+1
		if lo >= 0 && hi <= len(samples) {
			out[i] = floats.Dot(kernel, samples[lo:hi])
			continue
		}
		for k := range padded {
			j := min(max(lo+k, 0), len(samples)-1)
			padded[k] = samples[j]
		}
		out[i] = floats.Dot(kernel, padded)
	}
	return out
}
