package fingerprint

import (
	"github.com/himanishpuri/SongSleuth/pkg/models"
)

const (
	shiftTarget = DeltaBits
	shiftAnchor = DeltaBits + FreqBits
)

// createAddress packs anchor bin, target bin and frame delta into 10/10/12 bits.
func createAddress(anchor, target Peak, cfg Config) (uint32, bool) {
	delta := target.TimeIdx - anchor.TimeIdx
	if delta < cfg.MinDelta || delta > cfg.MaxDelta || delta > deltaMask {
		return 0, false
	}
	if anchor.FreqIdx > freqMask || target.FreqIdx > freqMask {
		return 0, false
	}
	return uint32(anchor.FreqIdx)<<shiftAnchor | uint32(target.FreqIdx)<<shiftTarget | uint32(delta), true
}

// Decode splits a hash into its anchor bin, target bin and frame delta.
func Decode(hash uint32) (anchorBin, targetBin, delta int) {
	return int(hash >> shiftAnchor & freqMask), int(hash >> shiftTarget & freqMask), int(hash & deltaMask)
}

// Valid reports whether hash could have been produced under cfg.
func Valid(hash uint32, cfg Config) bool {
	_, _, delta := Decode(hash)
	return delta >= cfg.MinDelta && delta <= cfg.MaxDelta
}

// Hashes pairs every anchor with up to FanOut later peaks inside the target
// zone. peaks must be ordered by frame. Pairs that do not fit the hash layout
// are skipped and do not count toward the fan-out. Duplicate hashes are kept.
func Hashes(peaks []Peak, cfg Config) []models.Fingerprint {
	fps := make([]models.Fingerprint, 0, len(peaks)*cfg.FanOut)
	for i, anchor := range peaks {
		paired := 0
		for j := i + 1; j < len(peaks) && paired < cfg.FanOut; j++ {
			target := peaks[j]
			if target.TimeIdx-anchor.TimeIdx > cfg.MaxDelta {
				break
			}
			addr, ok := createAddress(anchor, target, cfg)
			if !ok {
				continue
			}
			fps = append(fps, models.Fingerprint{Hash: addr, AnchorFrame: uint32(anchor.TimeIdx)})
			paired++
		}
	}
	return fps
}
