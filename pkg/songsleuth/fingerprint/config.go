package fingerprint

import (
	"errors"
	"fmt"
)

const (
	FreqBits  = 10
	DeltaBits = 12

	freqMask  = 1<<FreqBits - 1
	deltaMask = 1<<DeltaBits - 1
)

// DefaultSampleRate is the rate every waveform is resampled to before analysis.
const DefaultSampleRate = 11025

// Window functions.
const (
	WindowHann    = "hann"
	WindowHamming = "hamming"
)

// FFT backends.
const (
	BackendDSP   = "go-dsp"
	BackendGonum = "gonum"
)

var (
	ErrInsufficientSamples = errors.New("insufficient samples for one analysis window")
	ErrInvalidConfig       = errors.New("invalid fingerprint config")
)

// Config holds every tunable of the spectrogram, peak and hash stages.
// Indexing and querying must use the same values.
type Config struct {
	SampleRate int
	WindowSize int
	HopSize    int
	Window     string
	Backend    string

	NeighborFrames   int
	NeighborBins     int
	MinMagnitude     float64
	MaxPeaksPerFrame int // 0 keeps every local maximum

	FanOut   int
	MinDelta int // frames
	MaxDelta int // frames
}

func DefaultConfig() Config {
	return Config{
		SampleRate:       DefaultSampleRate,
		WindowSize:       2048,
		HopSize:          512,
		Window:           WindowHann,
		Backend:          BackendDSP,
		NeighborFrames:   10,
		NeighborBins:     10,
		MinMagnitude:     2.0,
		MaxPeaksPerFrame: 5,
		FanOut:           5,
		MinDelta:         1,
		MaxDelta:         200,
	}
}

func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate must be positive", ErrInvalidConfig)
	case c.WindowSize < 2 || c.WindowSize&(c.WindowSize-1) != 0:
		return fmt.Errorf("%w: window size %d is not a power of two", ErrInvalidConfig, c.WindowSize)
	case c.HopSize <= 0 || c.HopSize > c.WindowSize:
		return fmt.Errorf("%w: hop size %d out of range", ErrInvalidConfig, c.HopSize)
	case c.NeighborFrames < 0 || c.NeighborBins < 0:
		return fmt.Errorf("%w: negative neighborhood", ErrInvalidConfig)
	case c.FanOut <= 0:
		return fmt.Errorf("%w: fan-out must be positive", ErrInvalidConfig)
	case c.MinDelta < 1 || c.MaxDelta < c.MinDelta || c.MaxDelta > deltaMask:
		return fmt.Errorf("%w: delta range [%d,%d] does not fit %d bits", ErrInvalidConfig, c.MinDelta, c.MaxDelta, DeltaBits)
	}
	switch c.Window {
	case WindowHann, WindowHamming:
	default:
		return fmt.Errorf("%w: unknown window %q", ErrInvalidConfig, c.Window)
	}
	switch c.Backend {
	case BackendDSP, BackendGonum:
	default:
		return fmt.Errorf("%w: unknown fft backend %q", ErrInvalidConfig, c.Backend)
	}
	return nil
}

// FrameDuration is the time covered by one hop.
func (c Config) FrameDuration() float64 {
	return float64(c.HopSize) / float64(c.SampleRate)
}

// BinHz is the frequency resolution of one bin.
func (c Config) BinHz() float64 {
	return float64(c.SampleRate) / float64(c.WindowSize)
}
