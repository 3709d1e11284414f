package main

import (
	"fmt"
	"time"

	"github.com/himanishpuri/SongSleuth/pkg/models"
	"github.com/himanishpuri/SongSleuth/pkg/songsleuth/stream"
)

const (
	// MaxFingerprintsSoftLimit is roughly 30 seconds of audio.
	MaxFingerprintsSoftLimit = 10000
	// MaxFingerprintsHardLimit is the largest batch accepted.
	MaxFingerprintsHardLimit = 50000

	DefaultMatchLimit = 5
)

// FingerprintDTO is one client-computed fingerprint. Offset is the anchor
// frame.
type FingerprintDTO struct {
	Hash   uint32 `json:"hash"`
	Offset uint32 `json:"offset"`
}

// MatchFingerprintsRequest is the request body for POST /api/match/fingerprints
type MatchFingerprintsRequest struct {
	Fingerprints []FingerprintDTO `json:"fingerprints"`
	Limit        int              `json:"limit,omitempty"`
}

func (r *MatchFingerprintsRequest) Validate() error {
	if len(r.Fingerprints) == 0 {
		return fmt.Errorf("fingerprints cannot be empty")
	}
	if len(r.Fingerprints) > MaxFingerprintsHardLimit {
		return fmt.Errorf("too many fingerprints: %d (maximum: %d)", len(r.Fingerprints), MaxFingerprintsHardLimit)
	}
	if r.Limit < 0 {
		return fmt.Errorf("limit must not be negative")
	}
	return nil
}

func (r *MatchFingerprintsRequest) ToModels() []models.Fingerprint {
	fps := make([]models.Fingerprint, len(r.Fingerprints))
	for i, fp := range r.Fingerprints {
		fps[i] = models.Fingerprint{Hash: fp.Hash, AnchorFrame: fp.Offset}
	}
	return fps
}

// MatchResponse is the response for both match endpoints
type MatchResponse struct {
	Matches []MatchResultDTO `json:"matches"`
	Count   int              `json:"count"`
}

type MatchResultDTO struct {
	SongID       string  `json:"song_id"`
	Title        string  `json:"title"`
	Artist       string  `json:"artist"`
	Score        int     `json:"score"`
	OffsetFrames int32   `json:"offset_frames"`
	OffsetMs     int32   `json:"offset_ms"`
	QueryCount   int     `json:"query_count"`
	Confidence   float64 `json:"confidence"`
}

func toMatchDTO(m models.MatchResult) MatchResultDTO {
	return MatchResultDTO{
		SongID:       m.SongID,
		Title:        m.Title,
		Artist:       m.Artist,
		Score:        m.Score,
		OffsetFrames: m.OffsetFrames,
		OffsetMs:     m.OffsetMs,
		QueryCount:   m.QueryCount,
		Confidence:   m.Confidence,
	}
}

func toMatchDTOs(matches []models.MatchResult) []MatchResultDTO {
	out := make([]MatchResultDTO, len(matches))
	for i, m := range matches {
		out[i] = toMatchDTO(m)
	}
	return out
}

// ListenResponse is the response for POST /api/listen
type ListenResponse struct {
	State     string          `json:"state"`
	Detected  bool            `json:"detected"`
	Match     *MatchResultDTO `json:"match,omitempty"`
	ElapsedMs int64           `json:"elapsed_ms"`
	Windows   int             `json:"windows"`
}

func toListenResponse(out stream.Outcome) ListenResponse {
	resp := ListenResponse{
		State:     out.State.String(),
		Detected:  out.State == stream.Detected,
		ElapsedMs: out.Elapsed.Milliseconds(),
		Windows:   out.Windows,
	}
	if resp.Detected && out.Result.Found() {
		m := toMatchDTO(out.Result)
		resp.Match = &m
	}
	return resp
}

// AddSongResponse is the response for POST /api/songs
type AddSongResponse struct {
	Message      string `json:"message"`
	ID           string `json:"id"`
	Title        string `json:"title"`
	Artist       string `json:"artist"`
	Fingerprints int    `json:"fingerprints"`
	Skipped      bool   `json:"skipped,omitempty"`
}

type SongDTO struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Artist           string    `json:"artist"`
	DurationMs       int       `json:"duration_ms"`
	FingerprintCount int       `json:"fingerprint_count"`
	CreatedAt        time.Time `json:"created_at"`
}

func toSongDTO(s models.Song) SongDTO {
	return SongDTO{
		ID:               s.ID,
		Title:            s.Title,
		Artist:           s.Artist,
		DurationMs:       s.DurationMs,
		FingerprintCount: s.FingerprintCount,
		CreatedAt:        s.CreatedAt,
	}
}

// ListSongsResponse is the response for GET /api/songs
type ListSongsResponse struct {
	Songs []SongDTO `json:"songs"`
	Count int       `json:"count"`
}

// DeleteSongResponse is the response for DELETE /api/songs/{id}
type DeleteSongResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// MetricsResponse provides server health and index metrics
type MetricsResponse struct {
	Status           string `json:"status"`
	Backend          string `json:"backend"`
	DatabasePath     string `json:"database_path,omitempty"`
	SongCount        int    `json:"song_count"`
	FingerprintCount int64  `json:"fingerprint_count"`
	SampleRate       int    `json:"sample_rate"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
