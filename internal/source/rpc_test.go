package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockfeed/blockfeed/pkg/logger"
)

// rpcStub serves canned JSON-RPC responses and lets tests swap the
// result between requests.
type rpcStub struct {
	mu     sync.Mutex
	result string
	status int
}

func newRPCStub(result string) *rpcStub {
	return &rpcStub{result: result, status: http.StatusOK}
}

func (s *rpcStub) SetResult(result string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = result
}

func (s *rpcStub) SetStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

func (s *rpcStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	result, status := s.result, s.status
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":` + result + `}`))
}

func TestRPCSource_RecentHeight_Hex(t *testing.T) {
	stub := newRPCStub(`"0x10"`)
	server := httptest.NewServer(stub)
	defer server.Close()

	src := NewRPCSource(server.URL, "", 100*time.Millisecond, logger.NewNop())

	height, err := src.RecentHeight(context.Background())
	require.NoError(t, err, "hex result should parse")
	assert.Equal(t, int64(16), height, "0x10 should decode to 16")
}

func TestRPCSource_RecentHeight_Decimal(t *testing.T) {
	tests := []struct {
		name   string
		result string
		want   int64
	}{
		{name: "json number", result: `12345`, want: 12345},
		{name: "decimal string", result: `"6789"`, want: 6789},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := newRPCStub(tt.result)
			server := httptest.NewServer(stub)
			defer server.Close()

			src := NewRPCSource(server.URL, "chain_getHeight", 100*time.Millisecond, logger.NewNop())

			height, err := src.RecentHeight(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, height)
		})
	}
}

func TestRPCSource_RecentHeight_RPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"method not found"}}`))
	}))
	defer server.Close()

	src := NewRPCSource(server.URL, "", 100*time.Millisecond, logger.NewNop())

	_, err := src.RecentHeight(context.Background())
	require.Error(t, err, "rpc error object should surface as an error")
	assert.Contains(t, err.Error(), "method not found")
}

func TestRPCSource_RecentHeight_HTTPError(t *testing.T) {
	stub := newRPCStub(`"0x1"`)
	stub.SetStatus(http.StatusBadGateway)
	server := httptest.NewServer(stub)
	defer server.Close()

	src := NewRPCSource(server.URL, "", 100*time.Millisecond, logger.NewNop())

	_, err := src.RecentHeight(context.Background())
	assert.Error(t, err, "non-200 status should surface as an error")
}

func TestRPCSource_RecentHeight_Unreachable(t *testing.T) {
	src := NewRPCSource("http://127.0.0.1:1", "", 100*time.Millisecond, logger.NewNop())

	_, err := src.RecentHeight(context.Background())
	assert.Error(t, err, "unreachable endpoint should surface a transport error")
}

func TestRPCSource_Watch_EmitsOnChange(t *testing.T) {
	stub := newRPCStub(`"0x64"`) // 100
	server := httptest.NewServer(stub)
	defer server.Close()

	src := NewRPCSource(server.URL, "", 20*time.Millisecond, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	heights, err := src.Watch(ctx)
	require.NoError(t, err, "Watch should start")

	// First observed value is emitted.
	select {
	case h := <-heights:
		assert.Equal(t, int64(100), h)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for first watermark")
	}

	// Unchanged polls are deduplicated.
	select {
	case h := <-heights:
		t.Fatalf("unexpected emission for unchanged height: %d", h)
	case <-time.After(100 * time.Millisecond):
	}

	stub.SetResult(`"0x65"`) // 101

	select {
	case h := <-heights:
		assert.Equal(t, int64(101), h, "raised height should be emitted")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for raised watermark")
	}
}

func TestRPCSource_Watch_SkipsFailedPolls(t *testing.T) {
	stub := newRPCStub(`"0x64"`)
	server := httptest.NewServer(stub)
	defer server.Close()

	src := NewRPCSource(server.URL, "", 20*time.Millisecond, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	heights, err := src.Watch(ctx)
	require.NoError(t, err)

	select {
	case <-heights:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for first watermark")
	}

	// Fail a few polls, then recover with a higher height.
	stub.SetStatus(http.StatusInternalServerError)
	time.Sleep(100 * time.Millisecond)
	stub.SetResult(`"0x6e"`) // 110
	stub.SetStatus(http.StatusOK)

	select {
	case h := <-heights:
		assert.Equal(t, int64(110), h, "stream should continue after transient failures")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for recovery watermark")
	}
}

func TestRPCSource_Watch_ClosesOnCancel(t *testing.T) {
	stub := newRPCStub(`"0x64"`)
	server := httptest.NewServer(stub)
	defer server.Close()

	src := NewRPCSource(server.URL, "", 20*time.Millisecond, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	heights, err := src.Watch(ctx)
	require.NoError(t, err)

	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-heights:
			if !ok {
				return // closed as expected
			}
		case <-deadline:
			t.Fatal("watch channel did not close after cancel")
		}
	}
}
