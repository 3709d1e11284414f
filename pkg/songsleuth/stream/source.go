package stream

import (
	"context"
	"encoding/binary"
	"errors"
	"io"

	"github.com/himanishpuri/SongSleuth/pkg/songsleuth/audio"
)

// ChunkSource yields live audio one chunk at a time. ReadChunk blocks until n
// samples are available and returns io.EOF once the source is exhausted; a
// final short chunk may precede it.
type ChunkSource interface {
	ReadChunk(ctx context.Context, n int) ([]float64, error)
}

// SliceSource replays an in-memory waveform.
type SliceSource struct {
	samples []float64
	pos     int
	// OnRead, when set, is called after every chunk is served.
	OnRead func(n int)
}

func NewSliceSource(samples []float64) *SliceSource {
	return &SliceSource{samples: samples}
}

func (s *SliceSource) ReadChunk(ctx context.Context, n int) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.samples) {
		return nil, io.EOF
	}
	end := s.pos + n
	if end > len(s.samples) {
		end = len(s.samples)
	}
	chunk := s.samples[s.pos:end]
	s.pos = end
	if s.OnRead != nil {
		s.OnRead(len(chunk))
	}
	return chunk, nil
}

// PCMSource reads signed 16-bit little-endian mono PCM from r, such as an
// HTTP request body or stdin.
type PCMSource struct {
	r   io.Reader
	buf []byte
}

func NewPCMSource(r io.Reader) *PCMSource {
	return &PCMSource{r: r}
}

func (p *PCMSource) ReadChunk(ctx context.Context, n int) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cap(p.buf) < 2*n {
		p.buf = make([]byte, 2*n)
	}
	buf := p.buf[:2*n]

	read, err := io.ReadFull(p.r, buf)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = nil
	}
	if read < 2 {
		if err == nil {
			err = io.EOF
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	out := make([]float64, read/2)
	for i := range out {
		out[i] = float64(int16(binary.LittleEndian.Uint16(buf[2*i:]))) / 32768
	}
	return out, nil
}

type resampled struct {
	src      ChunkSource
	from, to int
}

// Resampled converts a source captured at from Hz into chunks at to Hz.
func Resampled(src ChunkSource, from, to int) ChunkSource {
	if from == to || from <= 0 || to <= 0 {
		return src
	}
	return &resampled{src: src, from: from, to: to}
}

func (r *resampled) ReadChunk(ctx context.Context, n int) ([]float64, error) {
	chunk, err := r.src.ReadChunk(ctx, n*r.from/r.to)
	if len(chunk) == 0 {
		return nil, err
	}
	return audio.Resample(chunk, r.from, r.to), err
}
