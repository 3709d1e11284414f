package models

import "time"

// MatchResult represents a song match result with metadata and scoring.
// An empty SongID means no song matched.
type MatchResult struct {
	SongID       string  // Database ID of the matched song (UUID)
	Title        string  // Song title
	Artist       string  // Artist name
	Score        int     // Votes for the winning (song, delta) bucket
	OffsetFrames int32   // Winning delta in frames
	OffsetMs     int32   // Winning delta in milliseconds
	QueryCount   int     // Fingerprints in the query
	Confidence   float64 // Score / QueryCount
}

// Found reports whether the result names a song.
func (r MatchResult) Found() bool {
	return r.SongID != ""
}

// Song represents a song entry in the catalog.
type Song struct {
	ID               string // Database ID (UUID)
	Title            string
	Artist           string
	DurationMs       int
	Checksum         string // xxhash64 of the analyzed waveform, hex
	FingerprintCount int
	CreatedAt        time.Time
}
