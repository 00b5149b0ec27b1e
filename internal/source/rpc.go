package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/blockfeed/blockfeed/pkg/logger"
)

const rpcRequestTimeout = 10 * time.Second

// RPCSource polls a JSON-RPC endpoint for the chain height.
//
// It speaks raw JSON-RPC 2.0 over HTTP and parses only the result
// field, so it works against any chain whose height query returns a
// number (decimal or 0x-prefixed hex). The poll cadence is fixed per
// source; pick it to match the chain's finality characteristics.
type RPCSource struct {
	endpoint     string
	method       string
	pollInterval time.Duration
	client       *http.Client
	logger       *logger.Logger
}

// NewRPCSource creates a poll-driven source for the given endpoint.
// method defaults to eth_blockNumber when empty.
func NewRPCSource(endpoint, method string, pollInterval time.Duration, log *logger.Logger) *RPCSource {
	if method == "" {
		method = "eth_blockNumber"
	}

	return &RPCSource{
		endpoint:     endpoint,
		method:       method,
		pollInterval: pollInterval,
		client:       &http.Client{Timeout: rpcRequestTimeout},
		logger:       log,
	}
}

// RecentHeight performs one height query against the endpoint.
func (s *RPCSource) RecentHeight(ctx context.Context) (int64, error) {
	body := fmt.Sprintf(`{"jsonrpc":"2.0","method":%q,"params":[],"id":1}`, s.method)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewBufferString(body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", s.method, s.endpoint, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%s %s: status %d", s.method, s.endpoint, resp.StatusCode)
	}

	if msg := gjson.GetBytes(payload, "error.message"); msg.Exists() {
		return 0, fmt.Errorf("%s: rpc error: %s", s.method, msg.String())
	}

	result := gjson.GetBytes(payload, "result")
	if !result.Exists() {
		return 0, fmt.Errorf("%s: no result in response", s.method)
	}

	return parseHeight(result)
}

// Watch implements Source by sampling RecentHeight on the poll
// interval and emitting on change. Transient query failures are logged
// and skipped; the stream only terminates with the context.
func (s *RPCSource) Watch(ctx context.Context) (<-chan int64, error) {
	return pollHeights(ctx, s.pollInterval, s.RecentHeight, s.logger), nil
}

func parseHeight(result gjson.Result) (int64, error) {
	switch result.Type {
	case gjson.Number:
		return result.Int(), nil
	case gjson.String:
		str := result.String()
		if strings.HasPrefix(str, "0x") || strings.HasPrefix(str, "0X") {
			height, err := strconv.ParseInt(str[2:], 16, 64)
			if err != nil {
				return 0, fmt.Errorf("parse hex height %q: %w", str, err)
			}
			return height, nil
		}
		height, err := strconv.ParseInt(str, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse height %q: %w", str, err)
		}
		return height, nil
	default:
		return 0, fmt.Errorf("unexpected result type %s", result.Type)
	}
}
