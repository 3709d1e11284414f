//go:build portaudio

package main

import (
	"github.com/himanishpuri/SongSleuth/pkg/songsleuth/capture"
	"github.com/himanishpuri/SongSleuth/pkg/songsleuth/stream"
)

type microphone interface {
	stream.ChunkSource
	Close() error
}

func openMicrophone(sampleRate int) (microphone, error) {
	mic, err := capture.OpenMicrophone(sampleRate)
	if err != nil {
		return nil, err
	}
	return mic, nil
}
