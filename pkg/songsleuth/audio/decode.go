package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

var ErrUnsupportedFormat = errors.New("unsupported audio format")

// ReadWavAsFloat64 decodes a PCM WAV file into mono samples in [-1, 1].
func ReadWavAsFloat64(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	return DecodeWAV(f)
}

// DecodeWAV mixes every channel of a PCM WAV stream down to mono.
func DecodeWAV(r io.ReadSeeker) ([]float64, int, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, 0, fmt.Errorf("%w: not a PCM wav file", ErrUnsupportedFormat)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("reading wav samples: %w", err)
	}
	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}
	bitDepth := int(d.BitDepth)
	if bitDepth == 0 {
		bitDepth = buf.SourceBitDepth
	}
	scale := float64(int64(1) << (bitDepth - 1))
	bias := 0
	if bitDepth == 8 {
		bias = 128
	}

	n := len(buf.Data) / channels
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c] - bias)
		}
		out[i] = sum / float64(channels) / scale
	}
	return out, buf.Format.SampleRate, nil
}

// DecodeMP3 decodes an MP3 stream to mono. go-mp3 always yields 16-bit
// little-endian stereo frames.
func DecodeMP3(r io.Reader) ([]float64, int, error) {
	d, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	raw, err := io.ReadAll(d)
	if err != nil {
		return nil, 0, fmt.Errorf("decoding mp3: %w", err)
	}

	n := len(raw) / 4
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		l := int16(uint16(raw[4*i]) | uint16(raw[4*i+1])<<8)
		r := int16(uint16(raw[4*i+2]) | uint16(raw[4*i+3])<<8)
		out[i] = (float64(l) + float64(r)) / 2 / 32768
	}
	return out, d.SampleRate(), nil
}

// LoadFile decodes path to mono samples at sampleRate. WAV and MP3 are decoded
// in process; anything else goes through ffmpeg into tempDir.
func LoadFile(ctx context.Context, path, tempDir string, sampleRate int) ([]float64, error) {
	var (
		samples []float64
		rate    int
		err     error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		samples, rate, err = ReadWavAsFloat64(path)
	case ".mp3":
		var f *os.File
		f, err = os.Open(path)
		if err != nil {
			return nil, err
		}
		samples, rate, err = DecodeMP3(f)
		f.Close()
	default:
		err = ErrUnsupportedFormat
	}

	if errors.Is(err, ErrUnsupportedFormat) {
		wavPath, convErr := ConvertToMonoWAV(ctx, path, tempDir, ConvertWAVConfig{SampleRate: sampleRate})
		if convErr != nil {
			return nil, fmt.Errorf("audio conversion failed: %w", convErr)
		}
		defer os.Remove(wavPath)
		samples, rate, err = ReadWavAsFloat64(wavPath)
	}
	if err != nil {
		return nil, err
	}
	return Resample(samples, rate, sampleRate), nil
}

// WriteWAV encodes mono samples as 16-bit PCM.
func WriteWAV(path string, samples []float64, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	data := make([]int, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		data[i] = int(s * 32767)
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encoding wav: %w", err)
	}
	return enc.Close()
}
