package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/cagr1tekin/MyVisa-Bot/internal/logger"
)

// FreeProxyListScraper scrapes the HTML proxy table on free-proxy-list.net.
// Only elite or anonymous proxies that support HTTPS are kept; transparent
// proxies leak the client address and are useless against bot detection.
type FreeProxyListScraper struct {
	client    *http.Client
	userAgent string
	logger    *logger.Logger
}

func NewFreeProxyListScraper(config Config) *FreeProxyListScraper {
	return &FreeProxyListScraper{
		client: &http.Client{
			Timeout: config.Timeout,
		},
		userAgent: config.UserAgent,
		logger:    logger.New("freeproxylist"),
	}
}

func (f *FreeProxyListScraper) Name() string {
	return "freeproxylist"
}

func (f *FreeProxyListScraper) Scrape(ctx context.Context) ([]Proxy, error) {
	proxies, err := scrapeProxyTable(ctx, f.client, "https://free-proxy-list.net/", f.userAgent)
	if err != nil {
		return nil, err
	}
	f.logger.InfoBg("free-proxy-list.net: %d anonymous HTTPS proxies", len(proxies))
	return proxies, nil
}

// scrapeProxyTable fetches and parses the proxy table shared by the
// free-proxy-list.net family of sites.
func scrapeProxyTable(ctx context.Context, client *http.Client, pageURL, userAgent string) ([]Proxy, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	return parseProxyTable(resp.Body)
}

// parseProxyTable reads the eight-column table used by free-proxy-list.net
// and sslproxies.org: IP, Port, Code, Country, Anonymity, Google, Https,
// Last Checked. Rows that are transparent or lack HTTPS support are dropped.
func parseProxyTable(reader io.Reader) ([]Proxy, error) {
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var proxies []Proxy
	doc.Find("table tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 8 {
			return
		}

		host := strings.TrimSpace(cells.Eq(0).Text())
		portStr := strings.TrimSpace(cells.Eq(1).Text())
		country := strings.TrimSpace(cells.Eq(3).Text())
		anonymity := strings.ToLower(strings.TrimSpace(cells.Eq(4).Text()))
		https := strings.EqualFold(strings.TrimSpace(cells.Eq(6).Text()), "yes")

		if host == "" || portStr == "" {
			return
		}
		if anonymity != "elite proxy" && anonymity != "anonymous" {
			return
		}
		if !https {
			return
		}

		port, err := strconv.Atoi(portStr)
		if err != nil {
			return
		}

		proxies = append(proxies, Proxy{
			Host:      host,
			Port:      port,
			Type:      "http",
			Anonymity: anonymity,
			HTTPS:     true,
			Country:   country,
			LastSeen:  time.Now(),
		})
	})

	return proxies, nil
}
