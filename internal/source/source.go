// Package source defines the contract between the chain boundary and
// the sequencer, plus the concrete source implementations.
package source

import "context"

// Source reports watermark heights from one remote chain endpoint.
//
// A watermark is the highest height the endpoint currently believes is
// reachable. It is advisory: values may repeat, arrive late, or in
// degenerate cases regress. The sequencer tolerates all of that.
//
// Implementations do not retry failed calls; error handling policy
// belongs to the caller.
type Source interface {
	// RecentHeight returns the latest known watermark.
	RecentHeight(ctx context.Context) (int64, error)

	// Watch starts delivering watermark updates on the returned
	// channel. The channel is closed when the underlying notification
	// mechanism terminates or the context is cancelled. Delivery is
	// eventual: no strict monotonicity, uniqueness, or latency
	// guarantee.
	Watch(ctx context.Context) (<-chan int64, error)
}
