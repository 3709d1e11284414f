package audio

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func tone(n, sampleRate int, freq float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

func TestWAVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	in := tone(4410, 44100, 440)

	if err := WriteWAV(path, in, 44100); err != nil {
		t.Fatalf("WriteWAV failed: %v", err)
	}

	out, rate, err := ReadWavAsFloat64(path)
	if err != nil {
		t.Fatalf("ReadWavAsFloat64 failed: %v", err)
	}
	if rate != 44100 {
		t.Errorf("Expected sample rate 44100, got %d", rate)
	}
	if len(out) != len(in) {
		t.Fatalf("Expected %d samples, got %d", len(in), len(out))
	}
	for i := range in {
		if math.Abs(in[i]-out[i]) > 1e-3 {
			t.Fatalf("Sample %d: wrote %f, read %f", i, in[i], out[i])
		}
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	_, _, err := DecodeWAV(bytes.NewReader([]byte("definitely not a riff file")))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestDecodeMP3RejectsGarbage(t *testing.T) {
	if _, _, err := DecodeMP3(bytes.NewReader(make([]byte, 16))); err == nil {
		t.Error("Expected an error decoding zero bytes as mp3")
	}
}

func TestLoadFileResamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := WriteWAV(path, tone(22050, 22050, 300), 22050); err != nil {
		t.Fatalf("WriteWAV failed: %v", err)
	}

	samples, err := LoadFile(context.Background(), path, t.TempDir(), 11025)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if len(samples) != 11025 {
		t.Errorf("Expected 11025 samples after resampling, got %d", len(samples))
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(context.Background(), filepath.Join(t.TempDir(), "missing.wav"), t.TempDir(), 11025)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
}

func TestSongInfoFallsBackToFileName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "My Track.wav")
	if err := WriteWAV(path, tone(100, 11025, 200), 11025); err != nil {
		t.Fatalf("WriteWAV failed: %v", err)
	}

	title, artist := SongInfo(path, "", "")
	if title != "My Track" {
		t.Errorf("Expected title from file name, got %q", title)
	}
	if artist != "Unknown Artist" {
		t.Errorf("Expected default artist, got %q", artist)
	}

	title, artist = SongInfo(path, "Given", "Someone")
	if title != "Given" || artist != "Someone" {
		t.Errorf("Explicit values should win, got %q by %q", title, artist)
	}
}
