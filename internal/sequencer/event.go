package sequencer

import "sync"

// Event is one released height paired with the capability to
// acknowledge it back to the sequencer that released it.
//
// The back-reference is a non-owning handle: the sequencer's lifetime
// is independent of any outstanding Event.
type Event struct {
	height int64
	seq    *Sequencer
	once   sync.Once
}

// Height returns the released height.
func (e *Event) Height() int64 {
	return e.height
}

// Ack signals that the consumer has finished processing this height,
// unblocking the next release.
//
// Ack is idempotent: repeated calls, and calls after the sequencer has
// been torn down, have no effect.
func (e *Event) Ack() {
	e.once.Do(func() {
		select {
		case e.seq.acks <- e.height:
		case <-e.seq.done:
		}
	})
}
