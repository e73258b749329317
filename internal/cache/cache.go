// Package cache provides small in-process caches for derived views such as
// dashboard summaries. Entries expire on a TTL and the whole cache is purged
// whenever the underlying ledger changes, so staleness is bounded by the TTL
// only for data written outside this process.
package cache

import (
	"log/slog"
	"time"
)

// Cache is the read/write surface handlers use.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	Purge()
	Size() int
}

// Cleaner is implemented by caches the Manager sweeps and purges.
type Cleaner interface {
	CleanExpired() int
	Purge()
}

// Manager owns the periodic expiry sweep for every registered cache and
// drops them all at once after a write.
type Manager struct {
	caches  []Cleaner
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
}

func NewManager() *Manager {
	return &Manager{
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Register adds a cache to the sweep. Not safe to call after StartCleanup.
func (m *Manager) Register(c Cleaner) {
	m.caches = append(m.caches, c)
}

// StartCleanup begins the background expiry sweep.
func (m *Manager) StartCleanup(interval time.Duration) {
	m.started = true
	go m.sweep(interval)
}

func (m *Manager) sweep(interval time.Duration) {
	defer close(m.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed := 0
			for _, c := range m.caches {
				removed += c.CleanExpired()
			}
			if removed > 0 {
				slog.Debug("Cache sweep removed expired entries", "removed", removed)
			}
		case <-m.stopCh:
			return
		}
	}
}

// PurgeAll empties every registered cache. Called after any write so reads
// never serve a view computed before the change.
func (m *Manager) PurgeAll() {
	for _, c := range m.caches {
		c.Purge()
	}
}

// Stop ends the sweep and waits for it to exit.
func (m *Manager) Stop() {
	if !m.started {
		return
	}
	close(m.stopCh)
	<-m.doneCh
}
