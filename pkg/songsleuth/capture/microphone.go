//go:build portaudio

// Package capture reads live audio from the default input device.
package capture

import (
	"context"
	"fmt"

	"github.com/gordonklaus/portaudio"

	"github.com/himanishpuri/SongSleuth/pkg/songsleuth/audio"
)

const (
	deviceRate      = 44100
	framesPerBuffer = 4096
)

// Microphone is a blocking ChunkSource over the default input device. Audio
// is captured at the device rate and resampled to SampleRate.
type Microphone struct {
	SampleRate int

	stream *portaudio.Stream
	buffer []float32
	carry  []float64
}

func OpenMicrophone(sampleRate int) (*Microphone, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	m := &Microphone{
		SampleRate: sampleRate,
		buffer:     make([]float32, framesPerBuffer),
	}
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(deviceRate), framesPerBuffer, m.buffer)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open audio stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to start audio stream: %w", err)
	}
	m.stream = stream
	return m, nil
}

// ReadChunk blocks until n samples at SampleRate have been captured. The
// context is checked between device reads.
func (m *Microphone) ReadChunk(ctx context.Context, n int) ([]float64, error) {
	need := n * deviceRate / m.SampleRate
	raw := m.carry
	for len(raw) < need {
		if err := ctx.Err(); err != nil {
			m.carry = raw
			return nil, err
		}
		if err := m.stream.Read(); err != nil {
			return nil, fmt.Errorf("failed to read from microphone: %w", err)
		}
		for _, s := range m.buffer {
			raw = append(raw, float64(s))
		}
	}
	m.carry = append([]float64(nil), raw[need:]...)
	return audio.Resample(raw[:need], deviceRate, m.SampleRate), nil
}

func (m *Microphone) Close() error {
	var err error
	if m.stream != nil {
		m.stream.Stop()
		err = m.stream.Close()
	}
	portaudio.Terminate()
	return err
}
