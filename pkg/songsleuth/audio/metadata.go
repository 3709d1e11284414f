package audio

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
)

type Metadata struct {
	Title  string
	Artist string
	Album  string
	Format string
}

// ReadMetadata reads embedded ID3/MP4/FLAC/OGG tags.
func ReadMetadata(path string) (Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return Metadata{}, err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{
		Title:  strings.TrimSpace(m.Title()),
		Artist: strings.TrimSpace(m.Artist()),
		Album:  strings.TrimSpace(m.Album()),
		Format: string(m.Format()),
	}, nil
}

// SongInfo picks title and artist for path: explicit values first, then tags,
// then the file name and "Unknown Artist".
func SongInfo(path, title, artist string) (string, string) {
	if title == "" || artist == "" {
		if meta, err := ReadMetadata(path); err == nil {
			if title == "" {
				title = meta.Title
			}
			if artist == "" {
				artist = meta.Artist
			}
		}
	}
	if title == "" {
		base := filepath.Base(path)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if artist == "" {
		artist = "Unknown Artist"
	}
	return title, artist
}
