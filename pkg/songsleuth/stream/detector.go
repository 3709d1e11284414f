// Package stream identifies songs from live audio by sliding a fixed analysis
// window over incoming chunks until a confident match or a timeout.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/himanishpuri/SongSleuth/pkg/models"
	"github.com/himanishpuri/SongSleuth/pkg/songsleuth/fingerprint"
)

// SilencePolicy decides what happens to a full window whose peak amplitude is
// below the silence floor.
type SilencePolicy int

const (
	// SilenceDropOldest discards the oldest chunk without analyzing. The
	// window must refill by one chunk before the next analysis.
	SilenceDropOldest SilencePolicy = iota
	// SilenceKeepBuffer keeps the silent audio and lets the window grow, up
	// to twice its size, so the next analysis covers the silence boundary.
	SilenceKeepBuffer
)

func (p SilencePolicy) String() string {
	switch p {
	case SilenceDropOldest:
		return "drop-oldest"
	case SilenceKeepBuffer:
		return "keep-buffer"
	default:
		return fmt.Sprintf("SilencePolicy(%d)", int(p))
	}
}

// State is a detector state. Detected, TimedOut and SourceClosed are terminal.
type State int

const (
	Buffering State = iota
	Analyzing
	Detected
	TimedOut
	SourceClosed
)

func (s State) String() string {
	switch s {
	case Buffering:
		return "buffering"
	case Analyzing:
		return "analyzing"
	case Detected:
		return "detected"
	case TimedOut:
		return "timed_out"
	case SourceClosed:
		return "source_closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type Config struct {
	SampleRate    int
	Chunk         time.Duration
	Window        time.Duration
	SilenceFloor  float64
	MinStrength   int
	Timeout       time.Duration
	SilencePolicy SilencePolicy
}

func DefaultConfig() Config {
	return Config{
		SampleRate:    fingerprint.DefaultSampleRate,
		Chunk:         time.Second,
		Window:        5 * time.Second,
		SilenceFloor:  0.01,
		MinStrength:   5,
		Timeout:       20 * time.Second,
		SilencePolicy: SilenceDropOldest,
	}
}

func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	case c.Chunk <= 0:
		return fmt.Errorf("chunk duration must be positive, got %s", c.Chunk)
	case c.Window < c.Chunk:
		return fmt.Errorf("window %s is shorter than chunk %s", c.Window, c.Chunk)
	case c.Timeout <= 0:
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	return nil
}

func (c Config) samples(d time.Duration) int {
	return int(d.Seconds() * float64(c.SampleRate))
}

// Recognizer runs one-shot identification on a buffered window.
type Recognizer interface {
	Recognize(ctx context.Context, samples []float64) (models.MatchResult, error)
}

// RecognizerFunc adapts a function to Recognizer.
type RecognizerFunc func(ctx context.Context, samples []float64) (models.MatchResult, error)

func (f RecognizerFunc) Recognize(ctx context.Context, samples []float64) (models.MatchResult, error) {
	return f(ctx, samples)
}

type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}

// Outcome is the terminal result of Listen. Result names a song only when
// State is Detected; weaker candidates are never reported.
type Outcome struct {
	State   State
	Result  models.MatchResult
	Elapsed time.Duration
	Windows int
}

type Detector struct {
	cfg   Config
	rec   Recognizer
	now   func() time.Time
	log   Logger
	state State
}

type Option func(*Detector)

// WithClock replaces time.Now, so tests can drive the timeout deterministically.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) {
		d.now = now
	}
}

func WithLogger(log Logger) Option {
	return func(d *Detector) {
		if log != nil {
			d.log = log
		}
	}
}

func NewDetector(cfg Config, rec Recognizer, opts ...Option) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errors.New("recognizer is nil")
	}
	d := &Detector{
		cfg: cfg,
		rec: rec,
		now: time.Now,
		log: nopLogger{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func (d *Detector) Config() Config { return d.cfg }

func (d *Detector) transition(s State) {
	if d.state != s {
		d.log.Debugf("stream: %s -> %s", d.state, s)
	}
	d.state = s
}

// Listen pulls chunks from src until a window matches with a score above
// MinStrength, the timeout elapses, or the source is exhausted. Analysis errors
// are returned as-is; a timeout is reported through Outcome, not as an error.
func (d *Detector) Listen(ctx context.Context, src ChunkSource) (Outcome, error) {
	var (
		chunkN  = d.cfg.samples(d.cfg.Chunk)
		windowN = d.cfg.samples(d.cfg.Window)
		maxN    = windowN
		start   = d.now()
		buf     = make([]float64, 0, 2*windowN)
		out     Outcome
		fresh   bool
	)
	if d.cfg.SilencePolicy == SilenceKeepBuffer {
		maxN = 2 * windowN
	}
	d.state = Buffering

	finish := func(s State) Outcome {
		d.transition(s)
		if s != Detected {
			out.Result = models.MatchResult{}
		}
		out.State = s
		out.Elapsed = d.now().Sub(start)
		return out
	}
	expired := func() bool {
		return d.now().Sub(start) > d.cfg.Timeout
	}

	for {
		if err := ctx.Err(); err != nil {
			return finish(d.state), err
		}
		if expired() {
			return finish(TimedOut), nil
		}

		chunk, err := src.ReadChunk(ctx, chunkN)
		if len(chunk) > 0 {
			buf = append(buf, chunk...)
			if len(buf) > maxN {
				buf = append(buf[:0], buf[len(buf)-maxN:]...)
			}
			fresh = true
		}
		if errors.Is(err, io.EOF) {
			return d.drain(ctx, buf, fresh, &out, finish)
		}
		if err != nil {
			return finish(d.state), fmt.Errorf("failed to read chunk: %w", err)
		}
		if expired() {
			return finish(TimedOut), nil
		}

		if len(buf) < windowN {
			d.transition(Buffering)
			continue
		}

		if floats.Norm(buf, math.Inf(1)) < d.cfg.SilenceFloor {
			d.transition(Buffering)
			if d.cfg.SilencePolicy == SilenceDropOldest {
				buf = dropOldest(buf, chunkN)
			}
			continue
		}

		d.transition(Analyzing)
		res, err := d.rec.Recognize(ctx, buf)
		out.Windows++
		fresh = false
		if err != nil {
			return finish(Analyzing), fmt.Errorf("failed to analyze window %d: %w", out.Windows, err)
		}
		if res.Score > d.cfg.MinStrength {
			out.Result = res
			d.log.Infof("stream: detected %s (score %d) after %d windows", res.SongID, res.Score, out.Windows)
			return finish(Detected), nil
		}
		if expired() {
			return finish(TimedOut), nil
		}

		buf = dropOldest(buf, chunkN)
		d.transition(Buffering)
	}
}

// drain gives a short or partly-analyzed tail one last chance once the source
// is exhausted.
func (d *Detector) drain(ctx context.Context, buf []float64, fresh bool, out *Outcome, finish func(State) Outcome) (Outcome, error) {
	if !fresh || len(buf) == 0 || floats.Norm(buf, math.Inf(1)) < d.cfg.SilenceFloor {
		return finish(SourceClosed), nil
	}
	d.transition(Analyzing)
	res, err := d.rec.Recognize(ctx, buf)
	if errors.Is(err, fingerprint.ErrInsufficientSamples) {
		return finish(SourceClosed), nil
	}
	out.Windows++
	if err != nil {
		return finish(Analyzing), fmt.Errorf("failed to analyze final window: %w", err)
	}
	if res.Score > d.cfg.MinStrength {
		out.Result = res
		return finish(Detected), nil
	}
	return finish(SourceClosed), nil
}

func dropOldest(buf []float64, n int) []float64 {
	if n >= len(buf) {
		return buf[:0]
	}
	return append(buf[:0], buf[n:]...)
}
