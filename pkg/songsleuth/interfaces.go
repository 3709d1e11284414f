package songsleuth

import (
	"context"

	"github.com/himanishpuri/SongSleuth/pkg/models"
	"github.com/himanishpuri/SongSleuth/pkg/songsleuth/stream"
)

type Service interface {
	IndexSong(ctx context.Context, title, artist string, samples []float64, sampleRate int) (IndexResult, error)
	IndexFile(ctx context.Context, path, title, artist string) (IndexResult, error)
	IndexBatch(ctx context.Context, jobs []IndexJob, workers int, progress func(BatchResult)) ([]BatchResult, error)
	Identify(ctx context.Context, samples []float64, sampleRate int) (models.MatchResult, error)
	IdentifyFile(ctx context.Context, path string, limit int) ([]models.MatchResult, error)
	MatchFingerprints(ctx context.Context, fps []models.Fingerprint, limit int) ([]models.MatchResult, error)
	Listen(ctx context.Context, src stream.ChunkSource) (stream.Outcome, error)
	GetSong(ctx context.Context, songID string) (*models.Song, error)
	ListSongs(ctx context.Context) ([]models.Song, error)
	DeleteSong(ctx context.Context, songID string) error
	SampleRate() int
	Close() error
}

// Storage is the fingerprint index plus song catalog. Lookup must return the
// couples for each hash in a stable order.
type Storage interface {
	RegisterSong(ctx context.Context, song models.Song) (models.Song, bool, error)
	StoreFingerprints(ctx context.Context, songID string, fps []models.Fingerprint) error
	Lookup(ctx context.Context, hashes []uint32) (map[uint32][]models.Couple, error)
	DeleteFingerprints(ctx context.Context, songID string) error
	DeleteSong(ctx context.Context, songID string) error
	GetSong(ctx context.Context, songID string) (*models.Song, error)
	ListSongs(ctx context.Context) ([]models.Song, error)
	CountFingerprints(ctx context.Context, songID string) (int, error)
	Close() error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
