// Package playback clocks a track like an audio device: one block of samples
// per block period, rendered on a single real-time goroutine.
package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"clip-automation/internal/unit"
)

// ErrInvalidPosition is returned by Seek for negative or non-finite positions.
var ErrInvalidPosition = errors.New("invalid playback position")

// Source is what the player renders, typically a *timeline.Track.
type Source interface {
	SampleRate() float64
	Render(position int64, buf unit.Buffer) (rendered, skipped int)
}

// Recorder receives per-block render statistics.
type Recorder interface {
	AddRender(skipped int)
}

// Status is a snapshot of the transport.
type Status struct {
	Playing  bool    `json:"playing"`
	Position int64   `json:"position"`
	Seconds  float64 `json:"seconds"`
	Blocks   uint64  `json:"blocks"`
	Skipped  uint64  `json:"skipped"`
}

// Player renders blocks of its source while playing. Transport methods are
// safe to call from any goroutine; Run must be called from exactly one.
type Player struct {
	src       Source
	rec       Recorder
	log       *slog.Logger
	blockSize int
	buf       unit.Buffer

	playing  atomic.Bool
	position atomic.Int64
	blocks   atomic.Uint64
	skipped  atomic.Uint64
}

// New returns a stopped player at position zero rendering channels x
// blockSize blocks. rec may be nil.
func New(src Source, channels, blockSize int, rec Recorder, log *slog.Logger) *Player {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Player{
		src:       src,
		rec:       rec,
		log:       log,
		blockSize: blockSize,
		buf:       unit.NewBuffer(channels, blockSize),
	}
}

// Play starts rendering from the current position.
func (p *Player) Play() { p.playing.Store(true) }

// Pause stops rendering and keeps the position.
func (p *Player) Pause() { p.playing.Store(false) }

// Seek moves the play head to seconds on the source's timeline.
func (p *Player) Seek(seconds float64) error {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidPosition, seconds)
	}
	p.position.Store(int64(math.Round(seconds * p.src.SampleRate())))
	return nil
}

// Status returns the current transport state.
func (p *Player) Status() Status {
	pos := p.position.Load()
	return Status{
		Playing:  p.playing.Load(),
		Position: pos,
		Seconds:  float64(pos) / p.src.SampleRate(),
		Blocks:   p.blocks.Load(),
		Skipped:  p.skipped.Load(),
	}
}

// Tick renders one block at the play head and advances it. It does nothing
// while paused.
func (p *Player) Tick() {
	if !p.playing.Load() {
		return
	}
	pos := p.position.Load()
	p.buf.Clear()
	_, skipped := p.src.Render(pos, p.buf)
	// A concurrent Seek wins over the advance.
	p.position.CompareAndSwap(pos, pos+int64(p.blockSize))

	p.blocks.Add(1)
	p.skipped.Add(uint64(skipped))
	if p.rec != nil {
		p.rec.AddRender(skipped)
	}
}

// Run ticks once per block period until ctx is cancelled.
func (p *Player) Run(ctx context.Context) {
	rate := p.src.SampleRate()
	ticker := time.NewTicker(p.period(rate))
	defer ticker.Stop()

	p.log.Info("player started",
		slog.Float64("sample_rate", rate),
		slog.Int("block_size", p.blockSize))

	for {
		select {
		case <-ctx.Done():
			p.log.Info("player stopped", slog.Uint64("blocks", p.blocks.Load()))
			return
		case <-ticker.C:
			if r := p.src.SampleRate(); r != rate {
				rate = r
				ticker.Reset(p.period(rate))
			}
			p.Tick()
		}
	}
}

func (p *Player) period(rate float64) time.Duration {
	d := time.Duration(float64(p.blockSize) / rate * float64(time.Second))
	if d <= 0 {
		d = time.Millisecond
	}
	return d
}
