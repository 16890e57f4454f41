package watch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"studentsphere/pkg/store"
)

// DefaultInterval matches the original portal's chat refresh cadence.
const DefaultInterval = 2 * time.Second

// Feed tracks store changes for long-polling clients. It merges the
// store's native change notifications with a periodic re-fetch of every
// watched key, so backends whose events are process-local (or lossy under
// load) still converge within one tick.
type Feed struct {
	kv       store.KV
	interval time.Duration

	mu      sync.Mutex
	cond    *sync.Cond
	rev     uint64
	keyRev  map[string]uint64
	seen    map[string]string
	watched map[string]struct{}
}

// New constructs a feed. interval <= 0 applies DefaultInterval.
func New(kv store.KV, interval time.Duration) *Feed {
	if interval <= 0 {
		interval = DefaultInterval
	}
	f := &Feed{
		kv:       kv,
		interval: interval,
		keyRev:   make(map[string]uint64),
		seen:     make(map[string]string),
		watched:  make(map[string]struct{}),
	}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Run consumes store events and re-fetches watched keys until ctx ends.
func (f *Feed) Run(ctx context.Context) error {
	events, cancel, err := f.kv.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case ev, ok := <-events:
				if !ok {
					return nil
				}
				f.observe(ev.Key, ev.Value, ev.Removed, true)
			}
		}
	})
	g.Go(func() error {
		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				f.refetch(ctx)
			}
		}
	})
	return g.Wait()
}

// Revision returns the current change counter.
func (f *Feed) Revision() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rev
}

// Wait blocks until one of keys has changed since the given revision, or
// ctx expires. It returns the changed keys (nil on timeout) and the
// revision to pass to the next call.
func (f *Feed) Wait(ctx context.Context, keys []string, since uint64) ([]string, uint64, error) {
	f.watch(keys)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			// Broadcast under the lock: a waiter between its ctx.Err()
			// check and cond.Wait would otherwise miss the only wakeup
			// and sleep past the deadline.
			f.mu.Lock()
			f.cond.Broadcast()
			f.mu.Unlock()
		case <-done:
		}
	}()

	f.mu.Lock()
	defer f.mu.Unlock()
	for {
		var changed []string
		for _, key := range keys {
			if f.keyRev[key] > since {
				changed = append(changed, key)
			}
		}
		if len(changed) > 0 {
			return changed, f.rev, nil
		}
		if ctx.Err() != nil {
			return nil, f.rev, nil
		}
		f.cond.Wait()
	}
}

func (f *Feed) watch(keys []string) {
	f.mu.Lock()
	for _, key := range keys {
		f.watched[key] = struct{}{}
	}
	f.mu.Unlock()
}

// observe records a key's current value. Native events always count as a
// change; re-fetched values only count once a baseline exists, so a key
// first seen by the poller does not wake clients retroactively.
func (f *Feed) observe(key, value string, removed, native bool) {
	if removed {
		value = ""
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, known := f.seen[key]
	f.seen[key] = value
	if !native && !known {
		return
	}
	if known && prev == value {
		return
	}
	f.rev++
	f.keyRev[key] = f.rev
	f.cond.Broadcast()
}

func (f *Feed) refetch(ctx context.Context) {
	f.mu.Lock()
	keys := make([]string, 0, len(f.watched))
	for key := range f.watched {
		keys = append(keys, key)
	}
	f.mu.Unlock()

	for _, key := range keys {
		value, ok, err := f.kv.Get(ctx, key)
		if err != nil {
			slog.Warn("feed refetch failed", "key", key, "err", err)
			continue
		}
		f.observe(key, value, !ok, false)
	}
}
