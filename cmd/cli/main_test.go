package main

import (
	"flag"
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/himanishpuri/SongSleuth/pkg/songsleuth/fingerprint"
)

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		positional []string
		title      string
	}{
		{"flags after file", []string{"song.mp3", "-title", "X"}, []string{"song.mp3"}, "X"},
		{"flags before file", []string{"-title", "X", "song.mp3"}, []string{"song.mp3"}, "X"},
		{"no flags", []string{"a.wav", "b.wav"}, []string{"a.wav", "b.wav"}, ""},
		{"empty", nil, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("add", flag.ContinueOnError)
			title := fs.String("title", "", "")
			got, err := splitArgs(fs, tt.args)
			if err != nil {
				t.Fatalf("splitArgs: %v", err)
			}
			if len(got) != len(tt.positional) {
				t.Fatalf("positional = %v, want %v", got, tt.positional)
			}
			for i := range got {
				if got[i] != tt.positional[i] {
					t.Errorf("positional[%d] = %q, want %q", i, got[i], tt.positional[i])
				}
			}
			if *title != tt.title {
				t.Errorf("title = %q, want %q", *title, tt.title)
			}
		})
	}
}

func TestSplitArgsUnknownFlag(t *testing.T) {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if _, err := splitArgs(fs, []string{"song.mp3", "-bogus"}); err == nil {
		t.Error("expected error for unknown flag")
	}
}

func TestCollectAudioFiles(t *testing.T) {
	dir := t.TempDir()
	names := []string{"a.wav", "b.MP3", "nested/c.flac", "notes.txt", "nested/cover.jpg"}
	for _, n := range names {
		p := filepath.Join(dir, n)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := collectAudioFiles(dir)
	if err != nil {
		t.Fatalf("collectAudioFiles: %v", err)
	}
	sort.Strings(files)
	want := []string{
		filepath.Join(dir, "a.wav"),
		filepath.Join(dir, "b.MP3"),
		filepath.Join(dir, "nested/c.flac"),
	}
	if len(files) != len(want) {
		t.Fatalf("files = %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %s, want %s", i, files[i], want[i])
		}
	}
}

func TestCollectAudioFilesMissingDir(t *testing.T) {
	if _, err := collectAudioFiles(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestDrawPeaksStaysInBounds(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 50))
	cfg := fingerprint.DefaultConfig()
	peaks := []fingerprint.Peak{
		{TimeIdx: 0, FreqIdx: 0},
		{TimeIdx: 9, FreqIdx: cfg.WindowSize / 2},
		{TimeIdx: 5, FreqIdx: 100},
	}
	numSamples := cfg.WindowSize + 9*cfg.HopSize

	drawPeaks(img, peaks, numSamples, cfg)

	if got := img.RGBAAt(0, 49); got != peakColor {
		t.Errorf("bottom-left pixel = %v, want %v", got, peakColor)
	}
	if got := img.RGBAAt(50, 20); got.A != 0 {
		t.Errorf("unmarked pixel = %v, want transparent", got)
	}
}
