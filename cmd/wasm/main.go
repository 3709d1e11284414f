//go:build js && wasm

package main

import (
	"errors"
	"fmt"
	"syscall/js"

	"github.com/himanishpuri/SongSleuth/pkg/models"
	"github.com/himanishpuri/SongSleuth/pkg/songsleuth/audio"
	"github.com/himanishpuri/SongSleuth/pkg/songsleuth/fingerprint"
)

// Error codes returned to JavaScript
const (
	ErrorNone = iota
	ErrorInvalidArgs
	ErrorTooShort
	ErrorNoFingerprints
	ErrorProcessing
)

// generateFingerprint(audioArray, sampleRate, channels) fingerprints a
// recording in the browser. The data array is ready to be sent as the
// "fingerprints" field of POST /api/match/fingerprints.
// Returns: {error: number, data: array | string, sampleRate: number}
func generateFingerprint(this js.Value, args []js.Value) any {
	if len(args) < 3 {
		return errorResponse(ErrorInvalidArgs, "Expected 3 arguments: audioArray, sampleRate, channels")
	}
	audioJS, rateJS, chansJS := args[0], args[1], args[2]

	if audioJS.Type() != js.TypeObject {
		return errorResponse(ErrorInvalidArgs, "audioArray must be an Array, Float32Array or Float64Array")
	}
	if rateJS.Type() != js.TypeNumber || chansJS.Type() != js.TypeNumber {
		return errorResponse(ErrorInvalidArgs, "sampleRate and channels must be numbers")
	}

	n := audioJS.Length()
	if n == 0 {
		return errorResponse(ErrorInvalidArgs, "audioArray is empty")
	}
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = audioJS.Index(i).Float()
	}

	fps, err := fingerprintSamples(samples, rateJS.Int(), chansJS.Int())
	switch {
	case errors.Is(err, fingerprint.ErrInsufficientSamples):
		return errorResponse(ErrorTooShort, "Recording is too short to analyze")
	case errors.Is(err, errBadInput):
		return errorResponse(ErrorInvalidArgs, err.Error())
	case err != nil:
		return errorResponse(ErrorProcessing, err.Error())
	case len(fps) == 0:
		return errorResponse(ErrorNoFingerprints, "No fingerprints found (audio may be silent)")
	}

	data := js.Global().Get("Array").New(len(fps))
	for i, fp := range fps {
		obj := js.Global().Get("Object").New()
		obj.Set("hash", fp.Hash)
		obj.Set("offset", fp.AnchorFrame)
		data.SetIndex(i, obj)
	}

	result := js.Global().Get("Object").New()
	result.Set("error", ErrorNone)
	result.Set("data", data)
	result.Set("sampleRate", fingerprint.DefaultSampleRate)
	return result
}

var errBadInput = errors.New("invalid input")

// fingerprintSamples mixes interleaved input down to mono, resamples it to
// the analysis rate and generates fingerprints.
func fingerprintSamples(samples []float64, sampleRate, channels int) ([]models.Fingerprint, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", errBadInput, sampleRate)
	}
	if channels < 1 || channels > 2 {
		return nil, fmt.Errorf("%w: channels must be 1 or 2, got %d", errBadInput, channels)
	}
	if channels == 2 {
		samples = stereoToMono(samples)
	}

	cfg := fingerprint.DefaultConfig()
	fps, _, err := fingerprint.Generate(audio.Resample(samples, sampleRate, cfg.SampleRate), cfg)
	return fps, err
}

func stereoToMono(stereo []float64) []float64 {
	mono := make([]float64, len(stereo)/2)
	for i := range mono {
		mono[i] = (stereo[2*i] + stereo[2*i+1]) / 2
	}
	return mono
}

func errorResponse(code int, message string) js.Value {
	result := js.Global().Get("Object").New()
	result.Set("error", code)
	result.Set("data", message)
	return result
}

func main() {
	console := js.Global().Get("console")
	logf := func(method, format string, a ...any) {
		if !console.IsUndefined() {
			console.Call(method, fmt.Sprintf(format, a...))
		}
	}

	js.Global().Set("generateFingerprint", js.FuncOf(generateFingerprint))
	logf("log", "📝 generateFingerprint registered (analysis rate %d Hz)", fingerprint.DefaultSampleRate)

	window := js.Global().Get("window")
	if window.IsUndefined() {
		logf("error", "❌ window object is undefined!")
	} else {
		event := js.Global().Get("CustomEvent").New("wasmReady", js.Global().Get("Object").New())
		window.Call("dispatchEvent", event)
		logf("log", "✅ SongSleuth WASM module ready")
	}

	select {}
}
