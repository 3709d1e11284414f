package fingerprint

import (
	"testing"

	"github.com/himanishpuri/SongSleuth/internal/testaudio"
)

func TestExtractPeaksSine(t *testing.T) {
	cfg := DefaultConfig()
	bin := 100

	samples := sine(float64(bin)*cfg.BinHz(), 0.5, 2*cfg.SampleRate, cfg.SampleRate)
	spec, err := Spectrogram(samples, cfg)
	if err != nil {
		t.Fatalf("Spectrogram failed: %v", err)
	}

	peaks := ExtractPeaks(spec, cfg)
	if len(peaks) == 0 {
		t.Fatal("No peaks extracted from a pure tone")
	}
	lastFull := (len(samples) - cfg.WindowSize) / cfg.HopSize
	for _, p := range peaks {
		if p.TimeIdx > lastFull {
			continue
		}
		if p.FreqIdx != bin {
			t.Errorf("Expected peak at bin %d, got bin %d (frame %d)", bin, p.FreqIdx, p.TimeIdx)
		}
	}
}

func TestExtractPeaksSilence(t *testing.T) {
	cfg := DefaultConfig()

	spec, err := Spectrogram(testaudio.Silence(3*cfg.SampleRate), cfg)
	if err != nil {
		t.Fatalf("Spectrogram failed: %v", err)
	}

	if peaks := ExtractPeaks(spec, cfg); len(peaks) != 0 {
		t.Errorf("Expected no peaks for silence, got %d", len(peaks))
	}
}

func TestExtractPeaksEmptySpectrogram(t *testing.T) {
	if peaks := ExtractPeaks(nil, DefaultConfig()); peaks != nil {
		t.Errorf("Expected nil for empty spectrogram, got %d peaks", len(peaks))
	}
}

func TestExtractPeaksOrderingAndNeighborhood(t *testing.T) {
	cfg := DefaultConfig()
	samples := testaudio.Song(11, 5, cfg.SampleRate)

	spec, err := Spectrogram(samples, cfg)
	if err != nil {
		t.Fatalf("Spectrogram failed: %v", err)
	}
	peaks := ExtractPeaks(spec, cfg)
	if len(peaks) == 0 {
		t.Fatal("No peaks extracted")
	}

	seen := make(map[[2]int]bool, len(peaks))
	perFrame := make(map[int]int)
	for i, p := range peaks {
		key := [2]int{p.TimeIdx, p.FreqIdx}
		if seen[key] {
			t.Fatalf("Duplicate landmark at frame %d bin %d", p.TimeIdx, p.FreqIdx)
		}
		seen[key] = true
		perFrame[p.TimeIdx]++

		if i > 0 {
			prev := peaks[i-1]
			if p.TimeIdx < prev.TimeIdx || (p.TimeIdx == prev.TimeIdx && p.FreqIdx <= prev.FreqIdx) {
				t.Fatalf("Peaks out of order at index %d", i)
			}
		}

		if p.Magnitude <= cfg.MinMagnitude {
			t.Errorf("Peak below threshold: %f", p.Magnitude)
		}

		for dt := -cfg.NeighborFrames; dt <= cfg.NeighborFrames; dt++ {
			ti := p.TimeIdx + dt
			if ti < 0 || ti >= len(spec) {
				continue
			}
			for df := -cfg.NeighborBins; df <= cfg.NeighborBins; df++ {
				k := p.FreqIdx + df
				if k < 0 || k >= len(spec[ti]) {
					continue
				}
				if spec[ti][k] > p.Magnitude {
					t.Fatalf("Peak (%d,%d) is not a neighborhood maximum", p.TimeIdx, p.FreqIdx)
				}
			}
		}
	}

	for frame, n := range perFrame {
		if n > cfg.MaxPeaksPerFrame {
			t.Errorf("Frame %d has %d peaks, cap is %d", frame, n, cfg.MaxPeaksPerFrame)
		}
	}

	density := float64(len(peaks)) / 5
	t.Logf("Extracted %d peaks (%.1f/s)", len(peaks), density)
}
