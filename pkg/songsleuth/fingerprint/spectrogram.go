package fingerprint

import (
	"fmt"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/dsp/fourier"
)

// transform returns the first n/2 complex coefficients of a real frame.
type transform func(frame []float64) []complex128

func newTransform(backend string, n int) transform {
	if backend == BackendGonum {
		plan := fourier.NewFFT(n)
		buf := make([]complex128, n/2+1)
		return func(frame []float64) []complex128 {
			buf = plan.Coefficients(buf, frame)
			return buf[:n/2]
		}
	}
	return func(frame []float64) []complex128 {
		return fft.FFTReal(frame)[:n/2]
	}
}

func windowFunc(name string, n int) []float64 {
	if name == WindowHamming {
		return window.Hamming(n)
	}
	return window.Hann(n)
}

// Spectrogram computes the STFT magnitude grid of samples, one frame per hop.
// Frames running past the end of the input are zero-padded, so the frame count
// is ceil(len(samples)/hop).
func Spectrogram(samples []float64, cfg Config) ([][]float64, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(samples) < cfg.WindowSize {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientSamples, len(samples), cfg.WindowSize)
	}

	n := cfg.WindowSize
	win := windowFunc(cfg.Window, n)
	tf := newTransform(cfg.Backend, n)

	nFrames := (len(samples) + cfg.HopSize - 1) / cfg.HopSize
	spec := make([][]float64, nFrames)
	frame := make([]float64, n)
	for t := 0; t < nFrames; t++ {
		start := t * cfg.HopSize
		end := start + n
		if end > len(samples) {
			end = len(samples)
		}
		copied := copy(frame, samples[start:end])
		for i := copied; i < n; i++ {
			frame[i] = 0
		}
		for i := range frame {
			frame[i] *= win[i]
		}
		spec[t] = magnitudes(tf(frame))
	}
	return spec, nil
}

func magnitudes(coeffs []complex128) []float64 {
	mag := make([]float64, len(coeffs))
	for i, c := range coeffs {
		mag[i] = cmplx.Abs(c)
	}
	return mag
}
