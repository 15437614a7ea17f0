package sites

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cagr1tekin/MyVisa-Bot/internal/logger"
	"github.com/cagr1tekin/MyVisa-Bot/pkg/proxypool"
)

// Client issues site requests through pool proxies and feeds every outcome
// back to the pool manager: errors and slow responses count against the
// proxy, a fast success clears its failure count. With the pool exhausted it
// falls back to a direct connection rather than stalling the poll loop.
type Client struct {
	manager   *proxypool.Manager
	timeout   time.Duration
	userAgent string
	transport func(proxypool.Endpoint, time.Duration) (*http.Transport, error)
	logger    *logger.Logger
}

func NewClient(manager *proxypool.Manager, timeout time.Duration, userAgent string) *Client {
	return &Client{
		manager:   manager,
		timeout:   timeout,
		userAgent: userAgent,
		transport: proxypool.NewTransport,
		logger:    logger.New("siteclient"),
	}
}

// Get fetches the URL through a pool proxy with anti-bot headers. extra
// headers override the generated set.
func (c *Client) Get(ctx context.Context, rawURL, language string, extra http.Header) (*http.Response, error) {
	id := logger.GenerateID()

	proxy, err := c.manager.Acquire()
	direct := false
	if err != nil {
		direct = true
		c.logger.Warn(id, "No proxies available, continuing without proxy")
	}

	httpClient, err := c.buildClient(proxy, direct)
	if err != nil {
		if !direct {
			// An endpoint whose transport cannot be built counts as a proxy
			// failure so it does not escape the eviction policy.
			c.logger.Warn(id, "Unusable transport for %s: %v", proxy.Redacted(), err)
			c.manager.ReportFailure(proxy, proxypool.CauseProxyError)
		}
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header = antiBotHeaders(language, "")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for key, values := range extra {
		req.Header.Del(key)
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	start := time.Now()
	resp, err := httpClient.Do(req)
	latency := time.Since(start)

	if err != nil {
		if !direct {
			cause := proxypool.Classify(err)
			c.logger.Warn(id, "Request through %s failed: %s", proxy.Redacted(), cause)
			c.manager.ReportFailure(proxy, cause)
		}
		return nil, err
	}

	if !direct {
		if latency > c.manager.LatencyThreshold() {
			c.logger.Warn(id, "Slow proxy %s: %.2fs", proxy.Redacted(), latency.Seconds())
			c.manager.ReportFailure(proxy, proxypool.CauseSlowResponse)
		} else {
			c.logger.Debug(id, "Request via %s finished in %.2fs", proxy.Redacted(), latency.Seconds())
			c.manager.ReportSuccess(proxy)
		}
	}

	return resp, nil
}

// GetJSON fetches the URL and decodes the JSON body into v. Non-200
// responses are an error.
func (c *Client) GetJSON(ctx context.Context, rawURL, language string, extra http.Header, v any) error {
	if extra == nil {
		extra = http.Header{}
	}
	if extra.Get("Accept") == "" {
		extra.Set("Accept", "application/json, text/plain, */*")
	}

	resp, err := c.Get(ctx, rawURL, language, extra)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, rawURL)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", rawURL, err)
	}
	return nil
}

func (c *Client) buildClient(proxy proxypool.Endpoint, direct bool) (*http.Client, error) {
	if direct {
		return &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: true,
				},
				DisableKeepAlives: true,
			},
			Timeout: c.timeout,
		}, nil
	}

	transport, err := c.transport(proxy, c.timeout)
	if err != nil {
		return nil, err
	}
	return &http.Client{
		Transport: transport,
		Timeout:   c.timeout,
	}, nil
}
