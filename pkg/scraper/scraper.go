package scraper

import (
	"context"

	"github.com/cagr1tekin/MyVisa-Bot/internal/logger"
	"github.com/cagr1tekin/MyVisa-Bot/pkg/proxypool"
)

// MultiScraper fans out to every configured source and merges the results.
// A failing source is logged and skipped; one dead list never empties the
// pool refresh.
type MultiScraper struct {
	scrapers []Scraper
	logger   *logger.Logger
}

func NewMultiScraper(config Config) *MultiScraper {
	var scrapers []Scraper

	for _, source := range config.Sources {
		switch source {
		case "proxyscrape":
			scrapers = append(scrapers, NewProxyScrapeAPI(config))
		case "freeproxylist":
			scrapers = append(scrapers, NewFreeProxyListScraper(config))
		case "sslproxies":
			scrapers = append(scrapers, NewSSLProxiesScraper(config))
		}
	}

	if len(scrapers) == 0 {
		scrapers = []Scraper{
			NewProxyScrapeAPI(config),
			NewFreeProxyListScraper(config),
			NewSSLProxiesScraper(config),
		}
	}

	return &MultiScraper{
		scrapers: scrapers,
		logger:   logger.New("multiscraper"),
	}
}

// ScrapeAll runs every source and returns the unique proxies, keyed by
// host:port across sources.
func (m *MultiScraper) ScrapeAll(ctx context.Context) ([]Proxy, error) {
	var allProxies []Proxy
	seen := make(map[string]bool)

	for _, scraper := range m.scrapers {
		proxies, err := scraper.Scrape(ctx)
		if err != nil {
			m.logger.WarnBg("Scraper %s failed: %v", scraper.Name(), err)
			continue
		}

		uniqueCount := 0
		for _, proxy := range proxies {
			key := proxy.Address()
			if !seen[key] {
				seen[key] = true
				allProxies = append(allProxies, proxy)
				uniqueCount++
			}
		}

		m.logger.InfoBg("Scraper %s: %d total, %d unique", scraper.Name(), len(proxies), uniqueCount)
	}

	m.logger.InfoBg("Total unique proxies collected: %d", len(allProxies))
	return allProxies, nil
}

// RefreshPool scrapes all sources and merges the results into the pool file.
// Returns the number of endpoints added.
func (m *MultiScraper) RefreshPool(ctx context.Context, store *proxypool.Store) (int, error) {
	proxies, err := m.ScrapeAll(ctx)
	if err != nil {
		return 0, err
	}

	entries := make([]string, 0, len(proxies))
	for _, proxy := range proxies {
		entries = append(entries, proxy.URL())
	}

	added, total, err := store.MergePool(entries)
	if err != nil {
		return 0, err
	}

	m.logger.InfoBg("Pool refresh: %d scraped, %d added, %d total", len(proxies), added, total)
	return added, nil
}
