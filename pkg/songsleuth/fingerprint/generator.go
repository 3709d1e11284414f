package fingerprint

import (
	"github.com/himanishpuri/SongSleuth/pkg/models"
)

// Generate runs spectrogram, peak extraction and hashing over samples, which
// must already be at cfg.SampleRate. Silent input yields no fingerprints and
// no error.
func Generate(samples []float64, cfg Config) ([]models.Fingerprint, []Peak, error) {
	spec, err := Spectrogram(samples, cfg)
	if err != nil {
		return nil, nil, err
	}
	peaks := ExtractPeaks(spec, cfg)
	return Hashes(peaks, cfg), peaks, nil
}

// DistinctHashes returns the unique hashes of fps in first-seen order.
func DistinctHashes(fps []models.Fingerprint) []uint32 {
	seen := make(map[uint32]struct{}, len(fps))
	out := make([]uint32, 0, len(fps))
	for _, fp := range fps {
		if _, ok := seen[fp.Hash]; ok {
			continue
		}
		seen[fp.Hash] = struct{}{}
		out = append(out, fp.Hash)
	}
	return out
}
