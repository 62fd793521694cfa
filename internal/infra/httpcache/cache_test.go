package httpcache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, ttl time.Duration) *DiskCache {
	t.Helper()
	return NewDiskCache(t.TempDir(), ttl, zerolog.Nop())
}

func TestFingerprintIgnoresParamOrder(t *testing.T) {
	a := Fingerprint("GET", "https://example.com/api", map[string]string{
		"region": "US", "count": "25", "start": "0",
	})
	b := Fingerprint("get", "https://example.com/api", map[string]string{
		"start": "0", "count": "25", "region": "US",
	})
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestFingerprintDiffersOnAnyInput(t *testing.T) {
	base := Fingerprint("GET", "https://example.com/api", map[string]string{"q": "a"})
	assert.NotEqual(t, base, Fingerprint("POST", "https://example.com/api", map[string]string{"q": "a"}))
	assert.NotEqual(t, base, Fingerprint("GET", "https://example.com/other", map[string]string{"q": "a"}))
	assert.NotEqual(t, base, Fingerprint("GET", "https://example.com/api", map[string]string{"q": "b"}))
}

func TestDiskCacheRoundTrip(t *testing.T) {
	cache := newTestCache(t, time.Hour)
	cache.Put("abc", Entry{Status: 200, ContentType: "application/json", Body: []byte(`{"rows":[1,2,3]}`)})

	got, ok := cache.Get("abc")
	require.True(t, ok)
	assert.Equal(t, 200, got.Status)
	assert.Equal(t, "application/json", got.ContentType)
	assert.JSONEq(t, `{"rows":[1,2,3]}`, string(got.Body))
}

func TestDiskCacheMiss(t *testing.T) {
	cache := newTestCache(t, time.Hour)
	_, ok := cache.Get("missing")
	assert.False(t, ok)
}

func TestDiskCacheTTLBoundary(t *testing.T) {
	cache := newTestCache(t, 10*time.Minute)
	stored := time.Now()
	cache.now = func() time.Time { return stored }
	cache.Put("key", Entry{Status: 200, Body: []byte(`{"v":1}`)})

	cache.now = func() time.Time { return stored.Add(10*time.Minute - time.Second) }
	_, ok := cache.Get("key")
	assert.True(t, ok, "entry within TTL must be served")

	cache.now = func() time.Time { return stored.Add(10*time.Minute + time.Second) }
	_, ok = cache.Get("key")
	assert.False(t, ok, "entry past TTL must be treated as absent")
}

func TestDiskCacheCorruptEntryIsMiss(t *testing.T) {
	cache := newTestCache(t, time.Hour)
	require.NoError(t, os.WriteFile(filepath.Join(cache.dir, "bad.json"), []byte("{{{"), 0o644))
	_, ok := cache.Get("bad")
	assert.False(t, ok)
}

func TestDiskCachePutSwallowsWriteFailure(t *testing.T) {
	cache := NewDiskCache(filepath.Join(string(os.PathSeparator), "dev", "null", "nested"), time.Hour, zerolog.Nop())
	assert.NotPanics(t, func() { cache.Put("x", Entry{Body: []byte(`{}`)}) })
}

func TestNilCacheBehavesAsMiss(t *testing.T) {
	var cache *DiskCache
	_, ok := cache.Get("x")
	assert.False(t, ok)
	assert.NotPanics(t, func() { cache.Put("x", Entry{Body: []byte(`{}`)}) })
}
