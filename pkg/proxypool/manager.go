package proxypool

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/cagr1tekin/MyVisa-Bot/internal/database"
	"github.com/cagr1tekin/MyVisa-Bot/internal/logger"
)

// ErrNoProxies signals pool exhaustion. It is a recoverable condition, not a
// hard failure; callers are expected to back off or fall back to a direct
// connection.
var ErrNoProxies = errors.New("no valid proxies available")

// Config carries every tunable of the pool subsystem. All values are set at
// construction time; there are no hidden globals.
type Config struct {
	PoolFile      string
	BlacklistFile string
	CacheFile     string

	TestURL          string
	ProbeTimeout     time.Duration
	LatencyThreshold time.Duration
	Cooldown         time.Duration
	UpdateInterval   time.Duration
	MaxFailures      int
	BatchSize        int
	CacheTTL         time.Duration
	StopJoinTimeout  time.Duration
	UserAgent        string
}

func (c Config) validate() error {
	if c.PoolFile == "" || c.BlacklistFile == "" || c.CacheFile == "" {
		return fmt.Errorf("pool, blacklist and cache file paths are required")
	}
	if c.TestURL == "" {
		return fmt.Errorf("test URL is required")
	}
	if c.ProbeTimeout <= 0 || c.Cooldown <= 0 || c.UpdateInterval <= 0 || c.CacheTTL <= 0 {
		return fmt.Errorf("timeouts and intervals must be positive")
	}
	if c.MaxFailures < 1 {
		return fmt.Errorf("max failures must be at least 1")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1")
	}
	return nil
}

// Stats is the operator-facing view of the pool.
type Stats struct {
	PoolTotal         int    `json:"pool_total"`
	Blacklisted       int    `json:"blacklisted"`
	Valid             int    `json:"valid"`
	SuccessRate       string `json:"success_rate"`
	BackgroundRunning bool   `json:"background_running"`
}

// Manager is the façade every external collaborator talks to: acquire a
// proxy, report how it went, read statistics. It owns the source store, the
// health cache, the prober and the background scheduler, and it is the only
// component allowed to mutate the blacklist.
type Manager struct {
	cfg     Config
	store   *Store
	cache   *HealthCache
	prober  *Prober
	history *database.Service

	mu        sync.Mutex
	failCount map[string]int
	evicted   map[string]bool

	bgMu    sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	logger *logger.Logger
}

// NewManager validates the configuration and wires the pool subsystem
// together. history may be nil when no audit store is configured.
func NewManager(cfg Config, history *database.Service) (*Manager, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid pool config: %w", err)
	}

	return &Manager{
		cfg:    cfg,
		store:  NewStore(cfg.PoolFile, cfg.BlacklistFile),
		cache:  NewHealthCache(cfg.CacheFile, cfg.CacheTTL),
		prober: NewProber(ProberConfig{
			TestURL:    cfg.TestURL,
			Timeout:    cfg.ProbeTimeout,
			Cooldown:   cfg.Cooldown,
			MaxWorkers: cfg.BatchSize,
			UserAgent:  cfg.UserAgent,
		}),
		history:   history,
		failCount: make(map[string]int),
		evicted:   make(map[string]bool),
		logger:    logger.New("manager"),
	}, nil
}

// Store exposes the source store for pool maintenance (scraper appends,
// manual un-blacklisting).
func (m *Manager) Store() *Store {
	return m.store
}

// LatencyThreshold is the duration past which a nominally successful request
// counts as a slow-response failure.
func (m *Manager) LatencyThreshold() time.Duration {
	return m.cfg.LatencyThreshold
}

// Acquire returns a uniformly random endpoint from the current valid set,
// excluding endpoints evicted during this session. ErrNoProxies means the
// pool is exhausted.
func (m *Manager) Acquire() (Endpoint, error) {
	valid := m.ValidProxies()

	m.mu.Lock()
	available := make([]string, 0, len(valid))
	for _, raw := range valid {
		if !m.evicted[raw] {
			available = append(available, raw)
		}
	}
	m.mu.Unlock()

	for len(available) > 0 {
		i := rand.Intn(len(available))
		ep, err := Normalize(available[i])
		if err == nil {
			m.logger.DebugBg("Acquired proxy: %s", ep.Redacted())
			return ep, nil
		}
		// A malformed cache entry never reaches a caller.
		m.logger.WarnBg("Dropping malformed cached proxy %q: %v", available[i], err)
		available = append(available[:i], available[i+1:]...)
	}

	return Endpoint{}, ErrNoProxies
}

// ReportFailure applies the eviction policy for one failed use. Reaching the
// max-failures threshold appends the endpoint to the durable blacklist,
// removes it from this session and invalidates the health cache.
func (m *Manager) ReportFailure(ep Endpoint, cause FailureCause) {
	key := ep.URL()

	m.mu.Lock()
	if m.evicted[key] {
		m.mu.Unlock()
		return
	}
	m.failCount[key]++
	count := m.failCount[key]
	evict := count >= m.cfg.MaxFailures
	if evict {
		// Counter increment and blacklist append stay under one lock so the
		// threshold trigger is monotonic across concurrent reporters.
		m.store.AppendBlacklist(key, cause.String())
		m.evicted[key] = true
		delete(m.failCount, key)
	}
	m.mu.Unlock()

	m.logger.WarnBg("Proxy failure recorded: %s (%s, %d/%d)", ep.Redacted(), cause, count, m.cfg.MaxFailures)

	if evict {
		m.cache.Invalidate()
		m.recordBlacklist(key, cause.String())
	}
	m.recordOutcome(key, false, cause.String(), 0, "caller")
}

// ReportSuccess resets the endpoint's consecutive-failure count.
func (m *Manager) ReportSuccess(ep Endpoint) {
	key := ep.URL()

	m.mu.Lock()
	delete(m.failCount, key)
	m.mu.Unlock()

	m.recordOutcome(key, true, "", 0, "caller")
}

// ValidProxies returns the current valid set, serving the cached snapshot
// while it is fresh and recomputing pool minus blacklist otherwise. The
// recompute publishes a new snapshot before returning.
func (m *Manager) ValidProxies() []string {
	if snap, fresh := m.cache.Snapshot(); fresh {
		return snap.ValidProxies
	}

	valid := m.computeValidSet()
	if err := m.cache.Publish(valid, 0); err != nil {
		m.logger.WarnBg("Failed to publish recomputed snapshot: %v", err)
	}
	return valid
}

// computeValidSet loads pool minus blacklist from the source store.
func (m *Manager) computeValidSet() []string {
	pool, rejected := m.store.LoadPool()
	blacklist := m.store.LoadBlacklist()

	valid := make([]string, 0, len(pool))
	for _, ep := range pool {
		if _, banned := blacklist[ep.URL()]; !banned {
			valid = append(valid, ep.URL())
		}
	}

	m.logger.InfoBg("Pool stats: pool=%d, blacklist=%d, valid=%d, rejected_lines=%d",
		len(pool), len(blacklist), len(valid), rejected)
	return valid
}

// Stats returns the operator-facing pool statistics.
func (m *Manager) Stats() Stats {
	pool, _ := m.store.LoadPool()
	blacklist := m.store.LoadBlacklist()
	valid := len(m.ValidProxies())

	rate := "0%"
	if len(pool) > 0 {
		rate = fmt.Sprintf("%.1f%%", float64(valid)/float64(len(pool))*100)
	}

	m.bgMu.Lock()
	running := m.running
	m.bgMu.Unlock()

	return Stats{
		PoolTotal:         len(pool),
		Blacklisted:       len(blacklist),
		Valid:             valid,
		SuccessRate:       rate,
		BackgroundRunning: running,
	}
}

// StartBackgroundProber launches the background scheduler. Returns false and
// logs a warning when it is already running.
func (m *Manager) StartBackgroundProber() bool {
	m.bgMu.Lock()
	defer m.bgMu.Unlock()

	if m.running {
		m.logger.WarnBg("Background prober already running")
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true

	go m.backgroundLoop(ctx, m.done)

	m.logger.InfoBg("Background prober started (every %v)", m.cfg.UpdateInterval)
	return true
}

// StopBackgroundProber signals the scheduler to stop and waits up to the
// join timeout. Returns false if the loop did not exit in time; the stop
// signal stays set so the loop still exits at its next check.
func (m *Manager) StopBackgroundProber() bool {
	m.bgMu.Lock()
	if !m.running {
		m.bgMu.Unlock()
		m.logger.WarnBg("Background prober not running")
		return false
	}
	cancel := m.cancel
	done := m.done
	m.bgMu.Unlock()

	cancel()

	select {
	case <-done:
		m.logger.InfoBg("Background prober stopped")
		return true
	case <-time.After(m.cfg.StopJoinTimeout):
		m.logger.WarnBg("Background prober did not stop within %v", m.cfg.StopJoinTimeout)
		return false
	}
}

// backgroundLoop recomputes the valid set, probes a cooldown-gated batch and
// republishes the cache on a fixed interval, independent of caller activity.
// A failed cycle never terminates the loop.
func (m *Manager) backgroundLoop(ctx context.Context, done chan struct{}) {
	defer func() {
		m.bgMu.Lock()
		m.running = false
		m.bgMu.Unlock()
		close(done)
	}()

	for {
		start := time.Now()
		ok := m.runCycle(ctx)

		sleep := m.cfg.UpdateInterval - time.Since(start)
		if !ok {
			// Full interval after a failed cycle before retrying.
			sleep = m.cfg.UpdateInterval
		}
		if !m.sleepInterruptible(ctx, sleep) {
			return
		}
	}
}

// runCycle executes one scheduler cycle. Returns false when the cycle
// panicked; the scheduler then backs off a full interval.
func (m *Manager) runCycle(ctx context.Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.ErrorBg("Background cycle failed: %v", r)
			ok = false
		}
	}()

	valid := m.computeValidSet()
	if len(valid) == 0 {
		m.logger.WarnBg("Background update: proxy pool is empty")
	}

	endpoints := make([]Endpoint, 0, len(valid))
	for _, raw := range valid {
		if ep, err := Normalize(raw); err == nil {
			endpoints = append(endpoints, ep)
		}
	}

	results := m.prober.ProbeBatch(ctx, endpoints, m.cfg.BatchSize, true)
	for _, result := range results {
		cause := ""
		if !result.Live {
			cause = result.Cause.String()
		}
		m.recordOutcome(result.Endpoint.URL(), result.Live, cause, result.Latency, "prober")
	}

	// An empty live set is still a meaningful result and must be published.
	live := FilterLive(results)
	if err := m.cache.Publish(valid, len(live)); err != nil {
		m.logger.ErrorBg("Background update: failed to publish cache: %v", err)
	} else {
		m.logger.InfoBg("Background update: %d/%d probed proxies live, %d valid", len(live), len(results), len(valid))
	}

	return true
}

// sleepInterruptible sleeps for d, checking for cancellation at one second
// granularity. Returns false when the scheduler should stop.
func (m *Manager) sleepInterruptible(ctx context.Context, d time.Duration) bool {
	deadline := time.Now().Add(d)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return true
		}
		tick := time.Second
		if remaining < tick {
			tick = remaining
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(tick):
		}
	}
}

func (m *Manager) recordOutcome(endpoint string, live bool, cause string, latency time.Duration, source string) {
	if m.history == nil {
		return
	}
	ctx, cancelFn := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelFn()
	if err := m.history.RecordOutcome(ctx, database.Outcome{
		Endpoint: endpoint,
		Live:     live,
		Cause:    cause,
		Latency:  latency,
		Source:   source,
	}); err != nil {
		m.logger.DebugBg("Failed to record outcome: %v", err)
	}
}

func (m *Manager) recordBlacklist(endpoint, reason string) {
	if m.history == nil {
		return
	}
	ctx, cancelFn := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelFn()
	if err := m.history.RecordBlacklistEvent(ctx, endpoint, reason); err != nil {
		m.logger.DebugBg("Failed to record blacklist event: %v", err)
	}
}
