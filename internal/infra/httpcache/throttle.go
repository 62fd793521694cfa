package httpcache

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// HostThrottle caps concurrent in-flight requests per host. Each host gets
// its own semaphore of the configured size; unrelated hosts never contend.
type HostThrottle struct {
	perHost int64

	mu    sync.Mutex
	hosts map[string]*semaphore.Weighted
}

func NewHostThrottle(perHost int) *HostThrottle {
	if perHost < 1 {
		perHost = 1
	}
	return &HostThrottle{
		perHost: int64(perHost),
		hosts:   make(map[string]*semaphore.Weighted),
	}
}

// Acquire blocks until a slot for the host is free or the context ends. The
// returned release function must be called exactly once; it is safe to defer.
func (t *HostThrottle) Acquire(ctx context.Context, host string) (func(), error) {
	sem := t.hostSem(host)
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	var once sync.Once
	return func() { once.Do(func() { sem.Release(1) }) }, nil
}

func (t *HostThrottle) hostSem(host string) *semaphore.Weighted {
	t.mu.Lock()
	defer t.mu.Unlock()
	sem, ok := t.hosts[host]
	if !ok {
		sem = semaphore.NewWeighted(t.perHost)
		t.hosts[host] = sem
	}
	return sem
}
