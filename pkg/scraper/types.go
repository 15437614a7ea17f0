package scraper

import (
	"context"
	"fmt"
	"time"
)

// Proxy is one scraped candidate before it enters the pool.
type Proxy struct {
	Host      string
	Port      int
	Type      string
	Anonymity string
	HTTPS     bool
	Country   string
	LastSeen  time.Time
}

func (p Proxy) Address() string {
	return fmt.Sprintf("%s:%d", p.Host, p.Port)
}

// URL renders the proxy as a pool file entry.
func (p Proxy) URL() string {
	scheme := p.Type
	if scheme == "" || scheme == "https" {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, p.Host, p.Port)
}

type Scraper interface {
	Name() string
	Scrape(ctx context.Context) ([]Proxy, error)
}

type Config struct {
	Timeout   time.Duration
	UserAgent string
	Sources   []string
}
