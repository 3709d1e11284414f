// Package songsleuth indexes songs by their spectral landmarks and identifies
// recordings, whole or streamed, against that index.
package songsleuth

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	xxhash "github.com/OneOfOne/xxhash"

	"github.com/himanishpuri/SongSleuth/pkg/logger"
	"github.com/himanishpuri/SongSleuth/pkg/models"
	"github.com/himanishpuri/SongSleuth/pkg/songsleuth/audio"
	"github.com/himanishpuri/SongSleuth/pkg/songsleuth/fingerprint"
	"github.com/himanishpuri/SongSleuth/pkg/songsleuth/matcher"
	"github.com/himanishpuri/SongSleuth/pkg/songsleuth/storage"
	"github.com/himanishpuri/SongSleuth/pkg/songsleuth/stream"
)

// IndexResult describes one indexing call. Skipped is set when the same
// content was already indexed under the same title and artist.
type IndexResult struct {
	Song         models.Song
	Fingerprints int
	Peaks        int
	Skipped      bool
}

// songService is the default implementation of the Service interface.
type songService struct {
	storage Storage
	log     Logger
	config  *Config
	names   storage.KeyLocks // held across register, replace and store
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
	cfg.Fingerprint.SampleRate = cfg.SampleRate
	cfg.Stream.SampleRate = cfg.SampleRate
	if err := cfg.Fingerprint.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Stream.Validate(); err != nil {
		return nil, fmt.Errorf("invalid stream config: %w", err)
	}

	stor := cfg.Storage
	if stor == nil {
		var err error
		stor, err = openStorage(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}

	return &songService{
		storage: stor,
		log:     cfg.Logger,
		config:  cfg,
	}, nil
}

func (s *songService) SampleRate() int { return s.config.SampleRate }

// checksum hashes the analyzed waveform so re-indexing identical audio is a
// no-op.
func checksum(samples []float64) string {
	h := xxhash.New64()
	var buf [8]byte
	for _, v := range samples {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

func (s *songService) offsetMs(frames int32) int32 {
	return int32(math.Round(float64(frames) * s.config.Fingerprint.FrameDuration() * 1000))
}

// IndexSong fingerprints samples and stores them under title and artist.
// Indexing the same content twice is a no-op; different content under an
// existing title and artist replaces the old entry.
func (s *songService) IndexSong(ctx context.Context, title, artist string, samples []float64, sampleRate int) (IndexResult, error) {
	if title == "" {
		return IndexResult{}, errors.New("song title is required")
	}
	s.log.Infof("Processing song: %s by %s", title, artist)

	// 1. Resample to the analysis rate
	samples = audio.Resample(samples, sampleRate, s.config.SampleRate)

	// 2. Fingerprint
	fps, peaks, err := fingerprint.Generate(samples, s.config.Fingerprint)
	if err != nil {
		return IndexResult{}, fmt.Errorf("fingerprinting failed: %w", err)
	}
	s.log.Infof("Extracted %d peaks, generated %d fingerprints", len(peaks), len(fps))
	if len(fps) == 0 {
		s.log.Warnf("%s by %s produced no fingerprints", title, artist)
	}

	sum := checksum(samples)
	durationMs := len(samples) * 1000 / s.config.SampleRate

	unlock := s.names.Lock(storage.SongKey(title, artist))
	defer unlock()

	// 3. Register, replacing a stale entry
	song, created, err := s.storage.RegisterSong(ctx, models.Song{
		Title:      title,
		Artist:     artist,
		DurationMs: durationMs,
		Checksum:   sum,
	})
	if err != nil {
		return IndexResult{}, unavailable("failed to register song", err)
	}
	if !created {
		if song.Checksum == sum && song.FingerprintCount == len(fps) {
			s.log.Infof("Song %s already indexed, skipping", song.ID)
			return IndexResult{Song: song, Fingerprints: len(fps), Peaks: len(peaks), Skipped: true}, nil
		}
		s.log.Infof("Replacing stale entry %s", song.ID)
		if err := s.storage.DeleteSong(ctx, song.ID); err != nil && !errors.Is(err, ErrSongNotFound) {
			return IndexResult{}, unavailable("failed to remove stale song", err)
		}
		song, _, err = s.storage.RegisterSong(ctx, models.Song{
			Title:      title,
			Artist:     artist,
			DurationMs: durationMs,
			Checksum:   sum,
		})
		if err != nil {
			return IndexResult{}, unavailable("failed to register song", err)
		}
	}

	// 4. Store fingerprints
	if len(fps) > 0 {
		if err := s.storage.StoreFingerprints(ctx, song.ID, fps); err != nil {
			if rbErr := s.storage.DeleteSong(ctx, song.ID); rbErr != nil {
				s.log.Errorf("Rollback of song %s failed: %v", song.ID, rbErr)
			}
			return IndexResult{}, unavailable("failed to store fingerprints", err)
		}
	}
	song.FingerprintCount = len(fps)

	s.log.Infof("Successfully added song ID=%s", song.ID)
	return IndexResult{Song: song, Fingerprints: len(fps), Peaks: len(peaks)}, nil
}

// IndexFile decodes path and indexes it. Empty title or artist fall back to
// the file's tags, then to its name.
func (s *songService) IndexFile(ctx context.Context, path, title, artist string) (IndexResult, error) {
	samples, err := audio.LoadFile(ctx, path, s.config.TempDir, s.config.SampleRate)
	if err != nil {
		return IndexResult{}, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	title, artist = audio.SongInfo(path, title, artist)
	return s.IndexSong(ctx, title, artist, samples, s.config.SampleRate)
}

// Identify runs one-shot identification. Silence and unknown audio yield a
// result with an empty SongID and no error.
func (s *songService) Identify(ctx context.Context, samples []float64, sampleRate int) (models.MatchResult, error) {
	return s.recognize(ctx, audio.Resample(samples, sampleRate, s.config.SampleRate))
}

// recognize expects samples at the analysis rate.
func (s *songService) recognize(ctx context.Context, samples []float64) (models.MatchResult, error) {
	fps, _, err := fingerprint.Generate(samples, s.config.Fingerprint)
	if err != nil {
		return models.MatchResult{}, err
	}
	if len(fps) == 0 {
		return models.MatchResult{}, nil
	}

	res, err := matcher.Match(ctx, s.storage, fps)
	if err != nil {
		return models.MatchResult{}, unavailable("lookup failed", err)
	}
	if !res.Found() {
		return models.MatchResult{QueryCount: len(fps)}, nil
	}
	return s.enrich(ctx, res), nil
}

func (s *songService) enrich(ctx context.Context, res matcher.Result) models.MatchResult {
	out := models.MatchResult{
		SongID:       res.SongID,
		Score:        res.Strength,
		OffsetFrames: res.DeltaFrames,
		OffsetMs:     s.offsetMs(res.DeltaFrames),
		QueryCount:   res.QueryCount,
		Confidence:   res.Confidence(),
	}
	song, err := s.storage.GetSong(ctx, res.SongID)
	if err != nil {
		s.log.Warnf("Failed to get song %s: %v", res.SongID, err)
		return out
	}
	out.Title = song.Title
	out.Artist = song.Artist
	return out
}

func (s *songService) rank(ctx context.Context, fps []models.Fingerprint, limit int) ([]models.MatchResult, error) {
	if len(fps) == 0 {
		return []models.MatchResult{}, nil
	}
	ranked, err := matcher.Rank(ctx, s.storage, fps, limit)
	if err != nil {
		return nil, unavailable("lookup failed", err)
	}
	s.log.Infof("Found %d candidate matches for %d fingerprints", len(ranked), len(fps))

	results := make([]models.MatchResult, 0, len(ranked))
	for _, r := range ranked {
		results = append(results, s.enrich(ctx, r))
	}
	return results, nil
}

// IdentifyFile decodes path and returns up to limit candidates, strongest
// first.
func (s *songService) IdentifyFile(ctx context.Context, path string, limit int) ([]models.MatchResult, error) {
	s.log.Infof("Matching audio: %s", path)
	samples, err := audio.LoadFile(ctx, path, s.config.TempDir, s.config.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	fps, _, err := fingerprint.Generate(samples, s.config.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("fingerprinting failed: %w", err)
	}
	return s.rank(ctx, fps, limit)
}

// MatchFingerprints ranks fingerprints computed by a client. Hashes that could
// not have come from this configuration are dropped.
func (s *songService) MatchFingerprints(ctx context.Context, fps []models.Fingerprint, limit int) ([]models.MatchResult, error) {
	valid := make([]models.Fingerprint, 0, len(fps))
	for _, fp := range fps {
		if fingerprint.Valid(fp.Hash, s.config.Fingerprint) {
			valid = append(valid, fp)
		}
	}
	if dropped := len(fps) - len(valid); dropped > 0 {
		s.log.Warnf("Dropped %d malformed fingerprints", dropped)
	}
	return s.rank(ctx, valid, limit)
}

// Listen identifies a live source with the configured streaming detector.
func (s *songService) Listen(ctx context.Context, src stream.ChunkSource) (stream.Outcome, error) {
	d, err := stream.NewDetector(s.config.Stream, stream.RecognizerFunc(s.recognize), stream.WithLogger(s.log))
	if err != nil {
		return stream.Outcome{}, err
	}
	out, err := d.Listen(ctx, src)
	if err != nil {
		return out, err
	}
	s.log.Infof("Listening finished: %s after %s (%d windows)", out.State, out.Elapsed, out.Windows)
	return out, nil
}

func (s *songService) GetSong(ctx context.Context, songID string) (*models.Song, error) {
	song, err := s.storage.GetSong(ctx, songID)
	if errors.Is(err, ErrSongNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, unavailable("failed to get song", err)
	}
	return song, nil
}

func (s *songService) ListSongs(ctx context.Context) ([]models.Song, error) {
	songs, err := s.storage.ListSongs(ctx)
	if err != nil {
		return nil, unavailable("failed to list songs", err)
	}
	return songs, nil
}

// DeleteSong removes a song and all its fingerprints.
func (s *songService) DeleteSong(ctx context.Context, songID string) error {
	err := s.storage.DeleteSong(ctx, songID)
	if errors.Is(err, ErrSongNotFound) {
		return err
	}
	if err != nil {
		return unavailable("failed to delete song", err)
	}
	s.log.Infof("Deleted song %s", songID)
	return nil
}

// Close releases all resources held by the service.
func (s *songService) Close() error {
	return s.storage.Close()
}
