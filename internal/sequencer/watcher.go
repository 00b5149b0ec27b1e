package sequencer

import (
	"context"
	"errors"
	"sync"

	"github.com/blockfeed/blockfeed/internal/source"
)

// ErrWatcherConsumed is returned when Heights is called more than once.
var ErrWatcherConsumed = errors.New("watcher already consumed")

// Watcher adapts one Source into the sequencer's input stream.
//
// It is a pure pass-through with two properties the sequencer relies
// on: it is lazy (no subscription or polling starts until Heights is
// consumed) and single-use (the stream does not resume after ending;
// bind a fresh source to watch again).
type Watcher struct {
	src source.Source

	mu       sync.Mutex
	consumed bool
}

// NewWatcher binds a watcher to the given source.
func NewWatcher(src source.Source) *Watcher {
	return &Watcher{src: src}
}

// RecentHeight returns the source's latest known watermark.
func (w *Watcher) RecentHeight(ctx context.Context) (int64, error) {
	return w.src.RecentHeight(ctx)
}

// Heights starts the source's notification stream and returns it.
// Calling Heights a second time returns ErrWatcherConsumed instead of
// silently resubscribing.
func (w *Watcher) Heights(ctx context.Context) (<-chan int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.consumed {
		return nil, ErrWatcherConsumed
	}
	w.consumed = true

	return w.src.Watch(ctx)
}
