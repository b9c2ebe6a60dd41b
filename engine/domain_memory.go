package engine

import (
	"sync"
	"time"
)

type hostEntry struct {
	engineName string
	expiresAt  time.Time
}

// DomainMemory remembers which engine last rendered a host without being
// blocked, so the next fetch for that host tries it first. Entries expire
// after the TTL; a background loop prunes them.
type DomainMemory struct {
	store sync.Map // host (string) -> *hostEntry
	ttl   time.Duration
	now   func() time.Time
	done  chan struct{}
	stop  sync.Once
}

// NewDomainMemory creates a DomainMemory and starts its prune loop.
func NewDomainMemory(ttl time.Duration) *DomainMemory {
	dm := &DomainMemory{
		ttl:  ttl,
		now:  time.Now,
		done: make(chan struct{}),
	}
	go dm.pruneLoop(time.Hour)
	return dm
}

// Get returns the remembered engine for host, or "" if none or expired.
func (dm *DomainMemory) Get(host string) string {
	val, ok := dm.store.Load(host)
	if !ok {
		return ""
	}
	entry := val.(*hostEntry)
	if dm.now().After(entry.expiresAt) {
		dm.store.Delete(host)
		return ""
	}
	return entry.engineName
}

// Set records the engine that won for host.
func (dm *DomainMemory) Set(host, engineName string) {
	dm.store.Store(host, &hostEntry{
		engineName: engineName,
		expiresAt:  dm.now().Add(dm.ttl),
	})
}

// Delete forgets host.
func (dm *DomainMemory) Delete(host string) {
	dm.store.Delete(host)
}

// Stop terminates the prune loop. It is safe to call more than once.
func (dm *DomainMemory) Stop() {
	dm.stop.Do(func() { close(dm.done) })
}

func (dm *DomainMemory) pruneLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-dm.done:
			return
		case <-ticker.C:
			dm.prune()
		}
	}
}

func (dm *DomainMemory) prune() {
	now := dm.now()
	dm.store.Range(func(key, value any) bool {
		if now.After(value.(*hostEntry).expiresAt) {
			dm.store.Delete(key)
		}
		return true
	})
}
