package fingerprint

import (
	"sort"
)

// Peak is a landmark: a local maximum of the spectrogram.
type Peak struct {
	TimeIdx   int
	FreqIdx   int
	Magnitude float64
	Time      float64 // seconds
	Freq      float64 // Hz
}

// ExtractPeaks returns the points that are the maximum of their
// (±NeighborFrames, ±NeighborBins) neighborhood and louder than MinMagnitude,
// ordered by frame then bin.
func ExtractPeaks(spec [][]float64, cfg Config) []Peak {
	if len(spec) == 0 || len(spec[0]) == 0 {
		return nil
	}

	nbMax := maxFilter(spec, cfg.NeighborFrames, cfg.NeighborBins)
	frameTime := cfg.FrameDuration()
	binHz := cfg.BinHz()

	peaks := make([]Peak, 0, len(spec)*maxInt(cfg.MaxPeaksPerFrame, 1))
	candidates := make([]Peak, 0, 16)
	for t, frame := range spec {
		candidates = candidates[:0]
		for k, mag := range frame {
			if mag <= cfg.MinMagnitude || mag < nbMax[t][k] {
				continue
			}
			candidates = append(candidates, Peak{
				TimeIdx:   t,
				FreqIdx:   k,
				Magnitude: mag,
				Time:      float64(t) * frameTime,
				Freq:      float64(k) * binHz,
			})
		}

		if cfg.MaxPeaksPerFrame > 0 && len(candidates) > cfg.MaxPeaksPerFrame {
			sort.SliceStable(candidates, func(i, j int) bool {
				return candidates[i].Magnitude > candidates[j].Magnitude
			})
			candidates = candidates[:cfg.MaxPeaksPerFrame]
			sort.Slice(candidates, func(i, j int) bool {
				return candidates[i].FreqIdx < candidates[j].FreqIdx
			})
		}
		peaks = append(peaks, candidates...)
	}
	return peaks
}

// maxFilter computes the moving maximum over a (2*dt+1) x (2*df+1) box,
// first along frequency and then along time.
func maxFilter(spec [][]float64, dt, df int) [][]float64 {
	nFrames := len(spec)
	nBins := len(spec[0])

	rows := make([][]float64, nFrames)
	for t, frame := range spec {
		row := make([]float64, nBins)
		for k := range frame {
			lo, hi := maxInt(0, k-df), minInt(nBins-1, k+df)
			m := frame[lo]
			for j := lo + 1; j <= hi; j++ {
				if frame[j] > m {
					m = frame[j]
				}
			}
			row[k] = m
		}
		rows[t] = row
	}

	out := make([][]float64, nFrames)
	for t := range rows {
		lo, hi := maxInt(0, t-dt), minInt(nFrames-1, t+dt)
		col := make([]float64, nBins)
		copy(col, rows[lo])
		for u := lo + 1; u <= hi; u++ {
			for k, v := range rows[u] {
				if v > col[k] {
					col[k] = v
				}
			}
		}
		out[t] = col
	}
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
