package scraper

import (
	"context"
	"net/http"

	"github.com/cagr1tekin/MyVisa-Bot/internal/logger"
)

// SSLProxiesScraper scrapes sslproxies.org, which publishes the same table
// layout as free-proxy-list.net but lists HTTPS-capable proxies only.
type SSLProxiesScraper struct {
	client    *http.Client
	userAgent string
	logger    *logger.Logger
}

func NewSSLProxiesScraper(config Config) *SSLProxiesScraper {
	return &SSLProxiesScraper{
		client: &http.Client{
			Timeout: config.Timeout,
		},
		userAgent: config.UserAgent,
		logger:    logger.New("sslproxies"),
	}
}

func (s *SSLProxiesScraper) Name() string {
	return "sslproxies"
}

func (s *SSLProxiesScraper) Scrape(ctx context.Context) ([]Proxy, error) {
	proxies, err := scrapeProxyTable(ctx, s.client, "https://www.sslproxies.org/", s.userAgent)
	if err != nil {
		return nil, err
	}
	s.logger.InfoBg("sslproxies.org: %d anonymous HTTPS proxies", len(proxies))
	return proxies, nil
}
