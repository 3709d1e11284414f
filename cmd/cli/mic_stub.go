//go:build !portaudio

package main

import (
	"errors"

	"github.com/himanishpuri/SongSleuth/pkg/songsleuth/stream"
)

type microphone interface {
	stream.ChunkSource
	Close() error
}

func openMicrophone(int) (microphone, error) {
	return nil, errors.New("built without microphone support; rebuild with -tags portaudio or use -stdin")
}
