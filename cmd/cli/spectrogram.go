package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	imgcolor "image/color"
	"image/draw"
	"os"
	"path/filepath"
	"strings"

	"github.com/eligwz/spectrogram"

	"github.com/himanishpuri/SongSleuth/pkg/songsleuth/audio"
	"github.com/himanishpuri/SongSleuth/pkg/songsleuth/fingerprint"
)

var peakColor = imgcolor.RGBA{R: 255, A: 255}

func handleSpectrogram(args []string) {
	specCmd := flag.NewFlagSet("spectrogram", flag.ExitOnError)
	out := specCmd.String("out", "", "Output PNG (default: <audio_file>.png)")
	width := specCmd.Int("width", 2048, "Image width in pixels")
	height := specCmd.Int("height", 512, "Image height in pixels (frequency bins)")
	withPeaks := specCmd.Bool("peaks", false, "Overlay the landmarks used for fingerprinting")
	positional, _ := splitArgs(specCmd, args)
	if len(positional) != 1 {
		fmt.Println("Usage: songsleuth spectrogram <audio_file> [-out <png>] [-width <px>] [-height <px>] [-peaks]")
		os.Exit(1)
	}
	audioPath := positional[0]
	if *out == "" {
		*out = strings.TrimSuffix(audioPath, filepath.Ext(audioPath)) + ".png"
	}

	samples, err := audio.LoadFile(context.Background(), audioPath, tempDir, sampleRate)
	if err != nil {
		fatal("Failed to read audio", err)
	}
	fmt.Printf("Read %d samples at %d Hz\n", len(samples), sampleRate)

	img := spectrogram.NewImage128(image.Rect(0, 0, *width, *height))
	black := spectrogram.ParseColor("000000")
	draw.Draw(img, img.Bounds(), image.NewUniform(black), image.Point{}, draw.Src)

	// Hamming window, FFT, linear magnitude.
	spectrogram.Drawfft(img, samples, uint32(sampleRate), uint32(*height), false, false, true, false)

	if *withPeaks {
		cfg := fingerprint.DefaultConfig()
		cfg.SampleRate = sampleRate
		_, peaks, err := fingerprint.Generate(samples, cfg)
		if err != nil {
			fatal("Failed to extract peaks", err)
		}
		drawPeaks(img, peaks, len(samples), cfg)
		fmt.Printf("Overlaid %d peaks\n", len(peaks))
	}

	if err := spectrogram.SavePng(img, *out); err != nil {
		fatal("Failed to save PNG", err)
	}
	success.Printf("✅ Saved spectrogram to %s\n", *out)
}

// drawPeaks marks each peak as a 3x3 dot, low frequencies at the bottom.
func drawPeaks(img draw.Image, peaks []fingerprint.Peak, numSamples int, cfg fingerprint.Config) {
	b := img.Bounds()
	frames := (numSamples-cfg.WindowSize)/cfg.HopSize + 1
	bins := cfg.WindowSize/2 + 1
	if frames <= 0 {
		return
	}
	for _, p := range peaks {
		x := p.TimeIdx * b.Dx() / frames
		y := b.Dy() - 1 - p.FreqIdx*b.Dy()/bins
		for dx := -1; dx <= 1; dx++ {
			for dy := -1; dy <= 1; dy++ {
				if image.Pt(x+dx, y+dy).In(b) {
					img.Set(x+dx, y+dy, peakColor)
				}
			}
		}
	}
}
