package songsleuth

import (
	"errors"
	"fmt"

	"github.com/himanishpuri/SongSleuth/pkg/songsleuth/fingerprint"
	"github.com/himanishpuri/SongSleuth/pkg/songsleuth/storage"
)

var (
	// ErrInsufficientSamples is returned when the waveform is shorter than one
	// analysis window.
	ErrInsufficientSamples = fingerprint.ErrInsufficientSamples
	// ErrIndexUnavailable wraps every failure of the storage backend.
	ErrIndexUnavailable = errors.New("fingerprint index unavailable")
	ErrSongNotFound     = storage.ErrSongNotFound
)

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrIndexUnavailable, op, err)
}
