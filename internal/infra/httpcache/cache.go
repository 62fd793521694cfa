package httpcache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Entry is a cached response: status and content type travel with the body
// so replays look like the original fetch.
type Entry struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// entry is the on-disk record. StoredAt drives expiry; the payload is kept
// verbatim.
type entry struct {
	StoredAt time.Time `json:"stored_at"`
	Entry
}

// DiskCache stores HTTP response bodies as JSON files under a directory, one
// file per fingerprint. Every operation is best effort: a cache that cannot
// read or write behaves exactly like a cache miss, and the pipeline proceeds
// to the network.
type DiskCache struct {
	dir string
	ttl time.Duration
	now func() time.Time
	log zerolog.Logger
}

func NewDiskCache(dir string, ttl time.Duration, log zerolog.Logger) *DiskCache {
	return &DiskCache{dir: dir, ttl: ttl, now: time.Now, log: log}
}

// Get returns the cached response for the fingerprint, or ok=false when
// absent, expired, or unreadable.
func (c *DiskCache) Get(fingerprint string) (Entry, bool) {
	if c == nil || c.dir == "" {
		return Entry{}, false
	}
	raw, err := os.ReadFile(c.path(fingerprint))
	if err != nil {
		return Entry{}, false
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		c.log.Debug().Str("fingerprint", fingerprint).Msg("dropping unreadable cache entry")
		return Entry{}, false
	}
	if c.now().Sub(e.StoredAt) > c.ttl {
		return Entry{}, false
	}
	return e.Entry, true
}

// Put stores the response under the fingerprint. Write failures are logged
// and swallowed; a failed Put never propagates to the caller.
func (c *DiskCache) Put(fingerprint string, resp Entry) {
	if c == nil || c.dir == "" {
		return
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		c.log.Debug().Err(err).Msg("cache dir unavailable")
		return
	}
	raw, err := json.Marshal(entry{StoredAt: c.now(), Entry: resp})
	if err != nil {
		return
	}
	tmp, err := os.CreateTemp(c.dir, "entry-*.tmp")
	if err != nil {
		c.log.Debug().Err(err).Msg("cache write skipped")
		return
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return
	}
	if err := os.Rename(tmp.Name(), c.path(fingerprint)); err != nil {
		os.Remove(tmp.Name())
		c.log.Debug().Err(err).Msg("cache rename failed")
	}
}

func (c *DiskCache) path(fingerprint string) string {
	return filepath.Join(c.dir, fingerprint+".json")
}
