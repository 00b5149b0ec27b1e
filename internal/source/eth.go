package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/blockfeed/blockfeed/pkg/logger"
)

// EthSource reports heights from an Ethereum-compatible node via the
// go-ethereum client.
//
// Over a websocket endpoint Watch subscribes to new heads and pushes
// every header's number as it arrives. Over plain HTTP, where
// subscriptions are unavailable, Watch falls back to polling
// BlockNumber at the configured interval and emits on change.
type EthSource struct {
	client       *ethclient.Client
	endpoint     string
	pollInterval time.Duration
	logger       *logger.Logger
}

// NewEthSource dials the given endpoint and returns a source bound to
// it. The poll interval is only used for non-subscribing endpoints.
func NewEthSource(ctx context.Context, endpoint string, pollInterval time.Duration, log *logger.Logger) (*EthSource, error) {
	client, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	return &EthSource{
		client:       client,
		endpoint:     endpoint,
		pollInterval: pollInterval,
		logger:       log,
	}, nil
}

// RecentHeight returns the node's current block number.
func (s *EthSource) RecentHeight(ctx context.Context) (int64, error) {
	number, err := s.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("block number: %w", err)
	}
	return int64(number), nil
}

// Watch implements Source. Subscription errors terminate the stream;
// there is no resubscription here.
func (s *EthSource) Watch(ctx context.Context) (<-chan int64, error) {
	if s.subscribable() {
		return s.watchHeads(ctx)
	}
	return s.watchPolling(ctx)
}

// Close releases the underlying client connection.
func (s *EthSource) Close() {
	s.client.Close()
}

func (s *EthSource) subscribable() bool {
	return strings.HasPrefix(s.endpoint, "ws://") || strings.HasPrefix(s.endpoint, "wss://")
}

func (s *EthSource) watchHeads(ctx context.Context) (<-chan int64, error) {
	heads := make(chan *types.Header)
	sub, err := s.client.SubscribeNewHead(ctx, heads)
	if err != nil {
		return nil, fmt.Errorf("subscribe new heads: %w", err)
	}

	out := make(chan int64)
	go func() {
		defer close(out)
		defer sub.Unsubscribe()

		for {
			select {
			case <-ctx.Done():
				return

			case err := <-sub.Err():
				if err != nil {
					s.logger.Error("head subscription terminated", zap.Error(err))
				}
				return

			case head := <-heads:
				select {
				case out <- head.Number.Int64():
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (s *EthSource) watchPolling(ctx context.Context) (<-chan int64, error) {
	return pollHeights(ctx, s.pollInterval, s.RecentHeight, s.logger), nil
}
