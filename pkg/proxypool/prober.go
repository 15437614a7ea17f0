package proxypool

import (
	"context"
	"crypto/tls"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cagr1tekin/MyVisa-Bot/internal/logger"
	netproxy "golang.org/x/net/proxy"
)

// ProbeResult is the outcome of a single liveness test.
type ProbeResult struct {
	Endpoint Endpoint
	Live     bool
	Cause    FailureCause
	Latency  time.Duration
	TestedAt time.Time
}

// ProberConfig carries the probe tunables; all values are required.
type ProberConfig struct {
	TestURL    string
	Timeout    time.Duration
	Cooldown   time.Duration
	MaxWorkers int
	UserAgent  string
}

// Prober tests candidate proxies against a fixed reachability endpoint. It
// keeps a per-endpoint cooldown ledger so the same proxy is not retested
// more often than the configured interval.
type Prober struct {
	testURL    string
	timeout    time.Duration
	cooldown   time.Duration
	maxWorkers int
	userAgent  string

	mu         sync.Mutex
	lastTested map[string]time.Time

	logger *logger.Logger
}

func NewProber(config ProberConfig) *Prober {
	workers := config.MaxWorkers
	if workers < 1 {
		workers = 1
	}
	return &Prober{
		testURL:    config.TestURL,
		timeout:    config.Timeout,
		cooldown:   config.Cooldown,
		maxWorkers: workers,
		userAgent:  config.UserAgent,
		lastTested: make(map[string]time.Time),
		logger:     logger.New("prober"),
	}
}

// ProbeBatch selects up to maxCount candidates and tests them. With
// respectCooldown the selection keeps encountered order and skips endpoints
// tested within the cooldown interval; without it a uniform random sample is
// taken. Selected endpoints are stamped as tested before any probe is
// dispatched, so a slow or hanging probe cannot cause immediate re-selection.
func (p *Prober) ProbeBatch(ctx context.Context, candidates []Endpoint, maxCount int, respectCooldown bool) []ProbeResult {
	selected := p.selectCandidates(candidates, maxCount, respectCooldown)
	if len(selected) == 0 {
		p.logger.DebugBg("No candidates eligible for probing")
		return nil
	}

	p.logger.InfoBg("Probing %d/%d candidates", len(selected), len(candidates))

	workers := p.maxWorkers
	if workers > len(selected) {
		workers = len(selected)
	}

	jobs := make(chan Endpoint, len(selected))
	out := make(chan ProbeResult, len(selected))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ep := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
					out <- p.probe(ctx, ep)
				}
			}
		}()
	}

	for _, ep := range selected {
		jobs <- ep
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(out)
	}()

	var results []ProbeResult
	live := 0
	for result := range out {
		results = append(results, result)
		if result.Live {
			live++
		}
	}

	p.logger.InfoBg("Probe batch finished: %d/%d live", live, len(results))
	return results
}

// selectCandidates picks the batch and stamps the cooldown ledger under one
// lock, so concurrent batches never double-select the same endpoint.
func (p *Prober) selectCandidates(candidates []Endpoint, maxCount int, respectCooldown bool) []Endpoint {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	var selected []Endpoint

	if respectCooldown {
		for _, ep := range candidates {
			if len(selected) >= maxCount {
				break
			}
			if now.Sub(p.lastTested[ep.URL()]) >= p.cooldown {
				p.lastTested[ep.URL()] = now
				selected = append(selected, ep)
			}
		}
		return selected
	}

	shuffled := append([]Endpoint(nil), candidates...)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	if maxCount > len(shuffled) {
		maxCount = len(shuffled)
	}
	selected = shuffled[:maxCount]
	for _, ep := range selected {
		p.lastTested[ep.URL()] = now
	}
	return selected
}

// LastTested reports when the endpoint was last probed, if ever.
func (p *Prober) LastTested(ep Endpoint) (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.lastTested[ep.URL()]
	return t, ok
}

// probe issues one GET through the candidate proxy. The endpoint is live iff
// the response status is exactly 200.
func (p *Prober) probe(ctx context.Context, ep Endpoint) ProbeResult {
	result := ProbeResult{Endpoint: ep, TestedAt: time.Now()}

	transport, err := NewTransport(ep, p.timeout)
	if err != nil {
		result.Cause = CauseProxyError
		return result
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   p.timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	req, err := http.NewRequestWithContext(ctx, "GET", p.testURL, nil)
	if err != nil {
		result.Cause = CauseUnexpected
		return result
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "text/plain, application/json")
	req.Header.Set("Connection", "close")

	start := time.Now()
	resp, err := client.Do(req)
	result.Latency = time.Since(start)
	if err != nil {
		result.Cause = Classify(err)
		p.logger.DebugBg("Probe failed for %s: %s (%v)", ep.Redacted(), result.Cause, err)
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		result.Cause = CauseBadStatus
		p.logger.DebugBg("Probe got HTTP %d from %s", resp.StatusCode, ep.Redacted())
		return result
	}

	result.Live = true
	return result
}

// NewTransport wires the endpoint in as the outbound proxy. SOCKS endpoints
// are dialed through x/net/proxy; everything else uses the standard HTTP
// CONNECT path.
func NewTransport(ep Endpoint, timeout time.Duration) (*http.Transport, error) {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true,
		},
		DisableKeepAlives:     true,
		DisableCompression:    true,
		MaxIdleConns:          0,
		IdleConnTimeout:       1 * time.Second,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	switch ep.Scheme {
	case "socks4", "socks5":
		var auth *netproxy.Auth
		if ep.Username != "" {
			auth = &netproxy.Auth{User: ep.Username, Password: ep.Password}
		}
		dialer, err := netproxy.SOCKS5("tcp", ep.Address(), auth, netproxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS dialer: %w", err)
		}
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		}
	default:
		proxyURL, err := url.Parse(ep.URL())
		if err != nil {
			return nil, fmt.Errorf("failed to build proxy URL: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
		transport.DialContext = (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 0,
		}).DialContext
	}

	return transport, nil
}

// FilterLive returns the endpoints confirmed live in a batch of results.
func FilterLive(results []ProbeResult) []Endpoint {
	var live []Endpoint
	for _, result := range results {
		if result.Live {
			live = append(live, result.Endpoint)
		}
	}
	return live
}
