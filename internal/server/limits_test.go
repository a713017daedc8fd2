package server_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/go-dspstream/internal/convert"
	"github.com/example/go-dspstream/internal/server"
)

// ---------------------------------------------------------------------------
// request limits
// ---------------------------------------------------------------------------

func TestEncode_OversizedBodyRejectedAs413(t *testing.T) {
	h := server.NewHandler(&stubEncoder{}, server.WithMaxBodyBytes(10))

	rec := postEncode(h, "", bytes.Repeat([]byte("x"), 11))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("want 413, got %d", rec.Code)
	}
	if decodeError(t, rec) == "" {
		t.Error("want non-empty error field")
	}
}

func TestEncode_BodyAtExactLimitIsAccepted(t *testing.T) {
	h := server.NewHandler(&stubEncoder{out: []byte("RSTM")}, server.WithMaxBodyBytes(5))

	rec := postEncode(h, "", []byte("12345"))
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	if rec.Body.String() != "RSTM" {
		t.Errorf("body = %q; want %q", rec.Body.String(), "RSTM")
	}
}

func TestEncode_RequestTimeoutCancelsInFlight(t *testing.T) {
	enc := &blockingEncoder{blocked: make(chan struct{})}
	h := server.NewHandler(enc, server.WithRequestTimeout(20*time.Millisecond))

	rec := postEncode(h, "", []byte("RIFF"))
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("want 504 on timeout, got %d", rec.Code)
	}
	if decodeError(t, rec) == "" {
		t.Error("want non-empty error field")
	}
}

// ---------------------------------------------------------------------------
// worker pool
// ---------------------------------------------------------------------------

func TestEncode_ConcurrencyThrottling(t *testing.T) {
	const workers = 2
	const totalRequests = 5

	var (
		mu         sync.Mutex
		peak       int
		current    int32
		releaseAll = make(chan struct{})
	)
	enc := &countingEncoder{
		onEnter: func() {
			n := int(atomic.AddInt32(&current, 1))

			mu.Lock()
			if n > peak {
				peak = n
			}
			mu.Unlock()
			<-releaseAll
		},
		onExit: func() { atomic.AddInt32(&current, -1) },
		out:    []byte("CSTM"),
	}

	h := server.NewHandler(enc, server.WithWorkers(workers))

	var wg sync.WaitGroup
	codes := make([]int, totalRequests)
	for i := range totalRequests {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			codes[idx] = postEncode(h, "", []byte("RIFF")).Code
		}(i)
	}

	// Give goroutines time to enter the encoder.
	time.Sleep(50 * time.Millisecond)
	close(releaseAll)
	wg.Wait()

	mu.Lock()
	got := peak
	mu.Unlock()

	if got > workers {
		t.Errorf("peak concurrency %d exceeded worker limit %d", got, workers)
	}
	for i, code := range codes {
		if code != http.StatusOK {
			t.Errorf("request %d: want 200, got %d", i, code)
		}
	}
}

func TestEncode_BusyPoolReturns503(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	enc := &blockingEncoder{blocked: release}

	h := server.NewHandler(enc, server.WithWorkers(1))

	// First request occupies the single worker slot.
	go func() {
		postEncode(h, "", []byte("first"))
	}()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/encode", bytes.NewReader([]byte("second"))).WithContext(ctx)
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("want 503 while the pool is busy, got %d", rec.Code)
	}
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// blockingEncoder blocks until blocked is closed or the request ends.
type blockingEncoder struct {
	blocked chan struct{}
	out     []byte
}

func (b *blockingEncoder) Encode(ctx context.Context, _ []byte, _ convert.Options) ([]byte, error) {
	select {
	case <-b.blocked:
		return b.out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// countingEncoder calls onEnter/onExit around the encode call.
type countingEncoder struct {
	onEnter func()
	onExit  func()
	out     []byte
}

func (c *countingEncoder) Encode(_ context.Context, _ []byte, _ convert.Options) ([]byte, error) {
	c.onEnter()
	defer c.onExit()

	return c.out, nil
}
