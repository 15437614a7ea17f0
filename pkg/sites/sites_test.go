package sites

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cagr1tekin/MyVisa-Bot/pkg/proxypool"
)

func newTestManager(t *testing.T, pool []string) *proxypool.Manager {
	t.Helper()
	dir := t.TempDir()

	poolFile := filepath.Join(dir, "proxies.txt")
	content := ""
	for _, line := range pool {
		content += line + "\n"
	}
	require.NoError(t, os.WriteFile(poolFile, []byte(content), 0o644))

	m, err := proxypool.NewManager(proxypool.Config{
		PoolFile:         poolFile,
		BlacklistFile:    filepath.Join(dir, "blacklist.txt"),
		CacheFile:        filepath.Join(dir, "cache.json"),
		TestURL:          "http://reachability.test/ip",
		ProbeTimeout:     time.Second,
		LatencyThreshold: 2 * time.Second,
		Cooldown:         time.Hour,
		UpdateInterval:   time.Hour,
		MaxFailures:      1,
		BatchSize:        5,
		CacheTTL:         time.Minute,
		StopJoinTimeout:  5 * time.Second,
	}, nil)
	require.NoError(t, err)
	return m
}

func newDirectClient(t *testing.T) *Client {
	t.Helper()
	return NewClient(newTestManager(t, nil), 5*time.Second, "test-agent/1.0")
}

func TestClientDirectFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	client := newDirectClient(t)
	resp, err := client.Get(context.Background(), server.URL, "en", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestClientReportsDeadProxy(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	deadAddr := listener.Addr().String()
	require.NoError(t, listener.Close())

	manager := newTestManager(t, []string{deadAddr})
	client := NewClient(manager, time.Second, "test-agent/1.0")

	_, err = client.Get(context.Background(), "http://unreachable.test/", "en", nil)
	require.Error(t, err)

	// MaxFailures is 1, so the first failure evicts the proxy.
	require.Len(t, manager.Store().LoadBlacklist(), 1)
}

func TestClientReportsUnbuildableTransport(t *testing.T) {
	manager := newTestManager(t, []string{"1.2.3.4:8080"})
	client := NewClient(manager, time.Second, "test-agent/1.0")
	client.transport = func(proxypool.Endpoint, time.Duration) (*http.Transport, error) {
		return nil, errors.New("no dialer for scheme")
	}

	_, err := client.Get(context.Background(), "http://unreachable.test/", "en", nil)
	require.Error(t, err)

	// A proxy whose transport cannot be built is evicted like any other
	// proxy failure.
	blacklist := manager.Store().LoadBlacklist()
	require.Len(t, blacklist, 1)
	_, banned := blacklist["http://1.2.3.4:8080"]
	assert.True(t, banned)
}

func TestClientGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Accept"), "application/json")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"value": 42}`))
	}))
	t.Cleanup(server.Close)

	client := newDirectClient(t)

	var payload struct {
		Value int `json:"value"`
	}
	require.NoError(t, client.GetJSON(context.Background(), server.URL, "en", nil, &payload))
	assert.Equal(t, 42, payload.Value)
}

func TestClientGetJSONNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(server.Close)

	client := newDirectClient(t)

	var payload map[string]any
	err := client.GetJSON(context.Background(), server.URL, "en", nil, &payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestUSVisaCheckerFindsDates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		near := time.Now().AddDate(0, 1, 0).Format("2006-01-02")
		far := time.Now().AddDate(1, 0, 0).Format("2006-01-02")
		w.Write([]byte(`[{"date": "` + near + `"}, {"date": "` + far + `"}, {"date": ""}]`))
	}))
	t.Cleanup(server.Close)

	checker := NewUSVisaChecker(newDirectClient(t))
	checker.baseURL = server.URL
	checker.locations = map[string]int{"ankara": 122}

	appointments, err := checker.Check(context.Background())
	require.NoError(t, err)

	// Dates beyond the six month horizon are dropped.
	require.Len(t, appointments, 1)
	assert.Equal(t, "US Embassy Ankara", appointments[0].Location)
}

func TestUSVisaCheckerEmptyFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	t.Cleanup(server.Close)

	checker := NewUSVisaChecker(newDirectClient(t))
	checker.baseURL = server.URL

	appointments, err := checker.Check(context.Background())
	require.NoError(t, err)
	assert.Empty(t, appointments)
}

func TestVFSGlobalCheckerListResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "XMLHttpRequest", r.Header.Get("X-Requested-With"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"date": "2026-09-15", "available": true}, {"date": "2026-09-16", "available": false}]`))
	}))
	t.Cleanup(server.Close)

	checker := NewVFSGlobalChecker(newDirectClient(t))
	checker.baseURL = server.URL
	checker.centers = map[string]string{"ank": "VFS Global Ankara"}

	appointments, err := checker.Check(context.Background())
	require.NoError(t, err)
	require.Len(t, appointments, 1)
	assert.Equal(t, "2026-09-15", appointments[0].Detail)
}

func TestParseAvailableDatesWrapperShape(t *testing.T) {
	dates := parseAvailableDates([]byte(`{"availableDates": ["2026-09-15", "2026-09-20"]}`))
	assert.Equal(t, []string{"2026-09-15", "2026-09-20"}, dates)

	assert.Empty(t, parseAvailableDates([]byte(`"unexpected"`)))
}

func TestCanadaVisaCheckerDetectsBookingSystem(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><h1>Visa Application Centre</h1>
			<p>You can book an appointment for biometrics here.</p></body></html>`))
	}))
	t.Cleanup(server.Close)

	checker := NewCanadaVisaChecker(newDirectClient(t))
	checker.locations = map[string]Location{
		"ankara": {URL: server.URL, Name: "Canada VAC Ankara"},
	}

	appointments, err := checker.Check(context.Background())
	require.NoError(t, err)
	require.Len(t, appointments, 1)
	assert.Equal(t, "booking system available", appointments[0].Detail)
}

func TestCanadaVisaCheckerIRCCReferral(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p>Please visit the IRCC portal for more information.</p></body></html>`))
	}))
	t.Cleanup(server.Close)

	checker := NewCanadaVisaChecker(newDirectClient(t))
	checker.locations = map[string]Location{
		"ankara": {URL: server.URL, Name: "Canada VAC Ankara"},
	}

	appointments, err := checker.Check(context.Background())
	require.NoError(t, err)
	require.Len(t, appointments, 1)
	assert.Equal(t, "IRCC portal referral", appointments[0].Detail)
}

func TestCanadaVisaCheckerNoSignal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p>Nothing to see here.</p></body></html>`))
	}))
	t.Cleanup(server.Close)

	checker := NewCanadaVisaChecker(newDirectClient(t))
	checker.locations = map[string]Location{
		"ankara": {URL: server.URL, Name: "Canada VAC Ankara"},
	}

	appointments, err := checker.Check(context.Background())
	require.NoError(t, err)
	assert.Empty(t, appointments)
}

func TestAntiBotHeaders(t *testing.T) {
	h := antiBotHeaders("tr", "https://example.com/")
	assert.NotEmpty(t, h.Get("User-Agent"))
	assert.Contains(t, h.Get("Accept-Language"), "tr-TR")
	assert.Equal(t, "https://example.com/", h.Get("Referer"))
	assert.Equal(t, "same-origin", h.Get("Sec-Fetch-Site"))

	h = antiBotHeaders("unknown", "")
	assert.Contains(t, h.Get("Accept-Language"), "en-US")
	assert.Empty(t, h.Get("Referer"))
}
