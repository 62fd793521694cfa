package httpcache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, ttl time.Duration) *Client {
	t.Helper()
	c := NewClient(newTestCache(t, ttl), NewHostThrottle(4), zerolog.Nop())
	c.Backoff = time.Millisecond
	return c
}

func TestClientServesFromCacheOnSecondCall(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := newTestClient(t, time.Hour)
	params := map[string]string{"count": "25"}

	for i := 0; i < 3; i++ {
		body, err := client.Get(context.Background(), srv.URL, params)
		require.NoError(t, err)
		assert.JSONEq(t, `{"ok":true}`, string(body))
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestClientRetriesRetryableStatuses(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := newTestClient(t, time.Hour)
	body, err := client.Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := newTestClient(t, time.Hour)
	_, err := client.Get(context.Background(), srv.URL, nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestClientHonorsRetryAfter(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := newTestClient(t, time.Hour)
	start := time.Now()
	_, err := client.Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
}

func TestClientFailedFetchesAreNotCached(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := newTestClient(t, time.Hour)
	_, err := client.Get(context.Background(), srv.URL, nil)
	require.Error(t, err)
	_, err = client.Get(context.Background(), srv.URL, nil)
	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestHostThrottleCapsConcurrency(t *testing.T) {
	throttle := NewHostThrottle(2)

	var mu sync.Mutex
	inFlight, peak := 0, 0

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := throttle.Acquire(context.Background(), "query1.finance.yahoo.com")
			if !assert.NoError(t, err) {
				return
			}
			defer release()

			mu.Lock()
			inFlight++
			if inFlight > peak {
				peak = inFlight
			}
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)

			mu.Lock()
			inFlight--
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, peak, 2)
}

func TestHostThrottleIsPerHost(t *testing.T) {
	throttle := NewHostThrottle(1)

	releaseA, err := throttle.Acquire(context.Background(), "a.example.com")
	require.NoError(t, err)
	defer releaseA()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	releaseB, err := throttle.Acquire(ctx, "b.example.com")
	require.NoError(t, err, "a saturated host must not block other hosts")
	releaseB()
}

func TestHostThrottleAcquireRespectsContext(t *testing.T) {
	throttle := NewHostThrottle(1)
	release, err := throttle.Acquire(context.Background(), "h")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = throttle.Acquire(ctx, "h")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHostThrottleReleaseIsIdempotent(t *testing.T) {
	throttle := NewHostThrottle(1)
	release, err := throttle.Acquire(context.Background(), "h")
	require.NoError(t, err)
	release()
	assert.NotPanics(t, release)
}
