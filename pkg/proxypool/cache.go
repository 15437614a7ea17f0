package proxypool

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cagr1tekin/MyVisa-Bot/internal/logger"
)

// Snapshot is a materialized "valid proxy set as of LastUpdated". Snapshots
// are immutable once published; readers never see partial state.
type Snapshot struct {
	LastUpdated  time.Time `json:"last_updated"`
	ValidProxies []string  `json:"valid_proxies"`
	TestedCount  int       `json:"tested_count"`
	TotalCount   int       `json:"total_pool_count"`
}

// HealthCache holds the latest snapshot in memory and mirrors it to a JSON
// file so a restart does not begin from a cold pool. Publish and Invalidate
// are mutually exclusive; reads go through an atomic pointer swap and take
// no lock.
type HealthCache struct {
	path    string
	ttl     time.Duration
	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
	logger  *logger.Logger
}

func NewHealthCache(path string, ttl time.Duration) *HealthCache {
	return &HealthCache{
		path:   path,
		ttl:    ttl,
		logger: logger.New("cache"),
	}
}

// Snapshot returns the current snapshot and whether it is still within its
// TTL. A nil snapshot or false freshness means the caller must recompute
// and Publish.
func (c *HealthCache) Snapshot() (*Snapshot, bool) {
	snap := c.current.Load()
	if snap == nil {
		snap = c.loadFromDisk()
		if snap != nil {
			c.current.Store(snap)
		}
	}
	if snap == nil {
		return nil, false
	}
	return snap, time.Since(snap.LastUpdated) < c.ttl
}

// Publish persists a new snapshot. The write is all-or-nothing: the JSON is
// staged to a temp file and renamed over the old snapshot, so a crash leaves
// the previous snapshot authoritative.
func (c *HealthCache) Publish(validProxies []string, testedCount int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := &Snapshot{
		LastUpdated:  time.Now(),
		ValidProxies: append([]string(nil), validProxies...),
		TestedCount:  testedCount,
		TotalCount:   len(validProxies),
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to stage snapshot: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}

	c.current.Store(snap)
	c.logger.InfoBg("Cache published: %d valid proxies, %d tested", len(snap.ValidProxies), testedCount)
	return nil
}

// Invalidate drops the snapshot unconditionally; the next Snapshot call
// forces a recompute. Must be called after every blacklist mutation.
func (c *HealthCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current.Store(nil)
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		c.logger.DebugBg("Cache invalidate: %v", err)
	} else {
		c.logger.DebugBg("Cache invalidated")
	}
}

func (c *HealthCache) loadFromDisk() *Snapshot {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.WarnBg("Failed to read cache file %s: %v", c.path, err)
		}
		return nil
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		c.logger.WarnBg("Discarding unreadable cache file %s: %v", c.path, err)
		return nil
	}
	return &snap
}
