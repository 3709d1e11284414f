package models

// Fingerprint is one landmark-pair hash anchored at the frame of its earlier landmark.
type Fingerprint struct {
	Hash        uint32
	AnchorFrame uint32
}

// Couple is the stored value for a hash bucket entry.
// AnchorFrame is the STFT frame of the anchor peak in the source audio.
type Couple struct {
	SongID      string // UUID of the song
	AnchorFrame uint32
}

// Match is a (song, delta) histogram bucket and its vote count.
type Match struct {
	SongID      string
	DeltaFrames int32 // indexed AnchorFrame - query AnchorFrame
	Count       int
}
