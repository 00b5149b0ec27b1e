package source

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/blockfeed/blockfeed/pkg/logger"
)

// pollHeights samples query on the given cadence and forwards each
// changed value. Failed samples are logged and skipped: a poll stream
// has no persistent connection to lose, so a transient failure is not
// stream death. The returned channel closes when the context is
// cancelled.
func pollHeights(ctx context.Context, interval time.Duration, query func(context.Context) (int64, error), log *logger.Logger) <-chan int64 {
	out := make(chan int64)
	go func() {
		defer close(out)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var last int64 = -1
		for {
			select {
			case <-ctx.Done():
				return

			case <-ticker.C:
				height, err := query(ctx)
				if err != nil {
					log.Warn("height poll failed", zap.Error(err))
					continue
				}
				if height == last {
					continue
				}
				last = height

				select {
				case out <- height:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}
