// Package sequencer delivers chain heights to a single consumer one at
// a time, strictly in order, gated on explicit acknowledgment of the
// previous height.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/blockfeed/blockfeed/pkg/logger"
)

var (
	// ErrNegativeStart is returned when the starting height is negative.
	ErrNegativeStart = errors.New("starting height must not be negative")

	// ErrWatchTerminated is returned by Run when the watermark stream
	// ends. The sequencer does not resubscribe; callers decide whether
	// to rebuild the pipeline.
	ErrWatchTerminated = errors.New("watermark stream terminated")
)

// Observer receives sequencer state-change notifications. All methods
// are called from the sequencer's own goroutine and must not block.
type Observer interface {
	WatermarkUpdated(height int64)
	WatermarkRegressed(from, to int64)
	HeightReleased(height int64)
	HeightAcked(height int64)
}

type noopObserver struct{}

func (noopObserver) WatermarkUpdated(int64)          {}
func (noopObserver) WatermarkRegressed(int64, int64) {}
func (noopObserver) HeightReleased(int64)            {}
func (noopObserver) HeightAcked(int64)               {}

// Snapshot is a point-in-time view of the sequencer's cursors.
// Watermark is -1 until the first source query succeeds.
type Snapshot struct {
	Current   int64  `json:"current"`
	Next      int64  `json:"next"`
	Watermark int64  `json:"watermark"`
	InFlight  bool   `json:"in_flight"`
	Released  uint64 `json:"released_total"`
	Acked     uint64 `json:"acked_total"`
}

// Sequencer owns three cursors over the height axis: current (the
// height released and awaiting acknowledgment, or about to be
// released), next (what current becomes after acknowledgment; always
// current or current+1), and watermark (the highest height the source
// believes exists; advisory only).
//
// A height is released only when current == next (nothing in flight)
// and current <= watermark. Releasing bumps next, so no further height
// goes out until the consumer acknowledges. This is single-credit flow
// control: one outstanding credit, replenished only by acknowledgment.
// The watermark is an admission bound, never a batch trigger.
//
// All three cursors are mutated exclusively by the goroutine running
// Run; watermark updates and acknowledgments arrive as messages into
// its loop, so no locks are involved.
type Sequencer struct {
	watcher  *Watcher
	logger   *logger.Logger
	observer Observer

	current   int64
	next      int64
	watermark int64
	released  uint64
	acked     uint64

	events chan *Event
	acks   chan int64
	done   chan struct{}

	snapshot atomic.Pointer[Snapshot]
}

// New creates a sequencer that will deliver heights beginning at start
// from the given watcher. The observer may be nil.
func New(w *Watcher, start int64, log *logger.Logger, obs Observer) (*Sequencer, error) {
	if start < 0 {
		return nil, ErrNegativeStart
	}
	if w == nil {
		return nil, errors.New("watcher must not be nil")
	}
	if obs == nil {
		obs = noopObserver{}
	}

	s := &Sequencer{
		watcher:   w,
		logger:    log,
		observer:  obs,
		current:   start,
		next:      start,
		watermark: -1,
		events:    make(chan *Event, 1),
		acks:      make(chan int64, 1),
		done:      make(chan struct{}),
	}
	s.publish()

	return s, nil
}

// Events returns the output stream of released heights. The channel is
// closed when Run returns; a closed channel is the terminal signal to
// the consumer.
func (s *Sequencer) Events() <-chan *Event {
	return s.events
}

// Snapshot returns the most recently published cursor state. Safe to
// call from any goroutine.
func (s *Sequencer) Snapshot() Snapshot {
	return *s.snapshot.Load()
}

// Run owns the cursor state until the context is cancelled or the
// watermark stream terminates. It must be called exactly once.
//
// Run returns nil on cancellation, ErrWatchTerminated when the source
// stream ends, and the underlying error when the initial watermark
// query fails. In every case the event channel is closed and any
// in-flight acknowledgment becomes a no-op.
func (s *Sequencer) Run(ctx context.Context) error {
	defer close(s.done)
	defer close(s.events)

	watermark, err := s.watcher.RecentHeight(ctx)
	if err != nil {
		return fmt.Errorf("initial watermark: %w", err)
	}
	s.watermark = watermark
	s.observer.WatermarkUpdated(watermark)

	heights, err := s.watcher.Heights(ctx)
	if err != nil {
		return err
	}

	s.logger.Info("sequencer started",
		zap.Int64("start", s.current),
		zap.Int64("watermark", watermark))

	s.evaluate()
	s.publish()

	for {
		select {
		case <-ctx.Done():
			return nil

		case watermark, ok := <-heights:
			if !ok {
				s.logger.Warn("watermark stream ended",
					zap.Int64("current", s.current),
					zap.Int64("watermark", s.watermark))
				return ErrWatchTerminated
			}
			s.applyWatermark(watermark)

		case height := <-s.acks:
			s.applyAck(height)
		}

		s.evaluate()
		s.publish()
	}
}

// applyWatermark records a raw watermark report. Regressions are kept
// as-is: a watermark below current stalls releases until the source
// reports a recovered value. They are logged and counted, not clamped.
func (s *Sequencer) applyWatermark(watermark int64) {
	if watermark < s.watermark {
		s.logger.Warn("watermark regressed",
			zap.Int64("from", s.watermark),
			zap.Int64("to", watermark))
		s.observer.WatermarkRegressed(s.watermark, watermark)
	}
	s.watermark = watermark
	s.observer.WatermarkUpdated(watermark)
}

// applyAck advances current to next. When nothing is in flight the ack
// is redundant (duplicate, or stale after a restart) and ignored.
func (s *Sequencer) applyAck(height int64) {
	if s.next == s.current {
		s.logger.Debug("redundant acknowledgment ignored", zap.Int64("height", height))
		return
	}
	s.current = s.next
	s.acked++
	s.observer.HeightAcked(height)
}

// evaluate applies the release rule. It is level-triggered but
// idempotent: re-running it on unchanged state does nothing, because a
// release immediately bumps next past current.
func (s *Sequencer) evaluate() {
	if s.current != s.next || s.current > s.watermark {
		return
	}

	event := &Event{height: s.current, seq: s}
	s.next = s.current + 1
	s.released++

	// The buffer slot is always free here: releasing a second event
	// requires an acknowledgment, which requires the consumer to have
	// received the first one.
	s.events <- event

	s.observer.HeightReleased(event.height)
	s.logger.Debug("height released",
		zap.Int64("height", event.height),
		zap.Int64("watermark", s.watermark))
}

func (s *Sequencer) publish() {
	s.snapshot.Store(&Snapshot{
		Current:   s.current,
		Next:      s.next,
		Watermark: s.watermark,
		InFlight:  s.next != s.current,
		Released:  s.released,
		Acked:     s.acked,
	})
}
