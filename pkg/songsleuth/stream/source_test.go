package stream

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"
)

func TestSliceSource(t *testing.T) {
	src := NewSliceSource([]float64{1, 2, 3, 4, 5})
	ctx := context.Background()

	var got []int
	for {
		chunk, err := src.ReadChunk(ctx, 2)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("ReadChunk failed: %v", err)
		}
		got = append(got, len(chunk))
	}
	if len(got) != 3 || got[0] != 2 || got[1] != 2 || got[2] != 1 {
		t.Errorf("Unexpected chunk sizes: %v", got)
	}
}

func TestPCMSource(t *testing.T) {
	var buf bytes.Buffer
	for _, v := range []int16{0, 16384, -32768, math.MaxInt16, 100} {
		binary.Write(&buf, binary.LittleEndian, v)
	}
	buf.WriteByte(0x01) // dangling half sample

	src := NewPCMSource(&buf)
	ctx := context.Background()

	first, err := src.ReadChunk(ctx, 3)
	if err != nil {
		t.Fatalf("ReadChunk failed: %v", err)
	}
	want := []float64{0, 0.5, -1}
	for i := range want {
		if first[i] != want[i] {
			t.Errorf("sample %d: got %v, want %v", i, first[i], want[i])
		}
	}

	second, err := src.ReadChunk(ctx, 3)
	if err != nil {
		t.Fatalf("Short final chunk should not fail: %v", err)
	}
	if len(second) != 2 {
		t.Errorf("Expected 2 samples in the final chunk, got %d", len(second))
	}

	if _, err := src.ReadChunk(ctx, 3); !errors.Is(err, io.EOF) {
		t.Errorf("Expected io.EOF, got %v", err)
	}
}

func TestSourcesRespectContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewSliceSource([]float64{1}).ReadChunk(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("SliceSource: expected context.Canceled, got %v", err)
	}
	if _, err := NewPCMSource(bytes.NewReader([]byte{0, 0})).ReadChunk(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("PCMSource: expected context.Canceled, got %v", err)
	}
}

func TestResampled(t *testing.T) {
	src := Resampled(NewSliceSource(make([]float64, 4410)), 44100, 11025)
	chunk, err := src.ReadChunk(context.Background(), 100)
	if err != nil {
		t.Fatalf("ReadChunk failed: %v", err)
	}
	if len(chunk) != 100 {
		t.Errorf("Expected 100 samples at the target rate, got %d", len(chunk))
	}

	plain := NewSliceSource(nil)
	if Resampled(plain, 11025, 11025) != ChunkSource(plain) {
		t.Error("Equal rates should return the source unchanged")
	}
}
