package scraper

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cagr1tekin/MyVisa-Bot/internal/logger"
)

// ProxyScrapeAPI pulls the free-proxy list from the proxyscrape.com API,
// which serves plain text lines in protocol://ip:port form.
type ProxyScrapeAPI struct {
	client    *http.Client
	userAgent string
	logger    *logger.Logger
}

func NewProxyScrapeAPI(config Config) *ProxyScrapeAPI {
	return &ProxyScrapeAPI{
		client: &http.Client{
			Timeout: config.Timeout,
		},
		userAgent: config.UserAgent,
		logger:    logger.New("proxyscrape"),
	}
}

func (p *ProxyScrapeAPI) Name() string {
	return "proxyscrape"
}

func (p *ProxyScrapeAPI) Scrape(ctx context.Context) ([]Proxy, error) {
	apiURL := "https://api.proxyscrape.com/v4/free-proxy-list/get?request=get_proxies&proxy_format=protocolipport&format=text"

	proxies, err := p.scrapeTextURL(ctx, apiURL)
	if err != nil {
		return nil, err
	}

	httpCount := 0
	socksCount := 0
	for _, proxy := range proxies {
		switch proxy.Type {
		case "http", "https":
			httpCount++
		case "socks4", "socks5":
			socksCount++
		}
	}
	p.logger.InfoBg("ProxyScrape collected: %d HTTP/HTTPS, %d SOCKS", httpCount, socksCount)

	return proxies, nil
}

func (p *ProxyScrapeAPI) scrapeTextURL(ctx context.Context, apiURL string) ([]Proxy, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", apiURL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	return parseProtocolProxies(resp.Body)
}

func parseProtocolProxies(reader io.Reader) ([]Proxy, error) {
	var proxies []Proxy
	scanner := bufio.NewScanner(reader)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Split(line, "://")
		if len(parts) != 2 {
			continue
		}

		protocol := parts[0]
		hostPortParts := strings.Split(parts[1], ":")
		if len(hostPortParts) != 2 {
			continue
		}

		port, err := strconv.Atoi(hostPortParts[1])
		if err != nil {
			continue
		}

		proxies = append(proxies, Proxy{
			Host:     hostPortParts[0],
			Port:     port,
			Type:     protocol,
			LastSeen: time.Now(),
		})
	}

	return proxies, scanner.Err()
}
