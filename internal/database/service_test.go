package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewService(db)
}

func TestRecordOutcomeAndStats(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	outcomes := []Outcome{
		{Endpoint: "http://1.2.3.4:8080", Live: true, Latency: 150 * time.Millisecond, Source: "prober"},
		{Endpoint: "http://1.2.3.4:8080", Live: false, Cause: "Timeout", Source: "caller"},
		{Endpoint: "http://5.6.7.8:3128", Live: false, Cause: "Timeout", Source: "prober"},
		{Endpoint: "http://5.6.7.8:3128", Live: false, Cause: "ConnectError", Source: "caller"},
	}
	for _, o := range outcomes {
		require.NoError(t, svc.RecordOutcome(ctx, o))
	}

	stats, err := svc.GetHistoryStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 1, stats.Live)
	assert.Equal(t, 2, stats.ByCause["Timeout"])
	assert.Equal(t, 1, stats.ByCause["ConnectError"])
}

func TestConsecutiveFailures(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	endpoint := "http://1.2.3.4:8080"

	require.NoError(t, svc.RecordOutcome(ctx, Outcome{Endpoint: endpoint, Live: false, Cause: "Timeout", Source: "caller"}))
	require.NoError(t, svc.RecordOutcome(ctx, Outcome{Endpoint: endpoint, Live: true, Source: "caller"}))
	require.NoError(t, svc.RecordOutcome(ctx, Outcome{Endpoint: endpoint, Live: false, Cause: "Timeout", Source: "caller"}))
	require.NoError(t, svc.RecordOutcome(ctx, Outcome{Endpoint: endpoint, Live: false, Cause: "ProxyError", Source: "caller"}))

	// Only failures since the last success count.
	count, err := svc.ConsecutiveFailures(ctx, endpoint, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = svc.ConsecutiveFailures(ctx, "http://unknown:80", 10)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestCleanupOldRecords(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.RecordOutcome(ctx, Outcome{
		Endpoint:   "http://1.2.3.4:8080",
		Live:       false,
		Cause:      "Timeout",
		Source:     "prober",
		RecordedAt: time.Now().Add(-48 * time.Hour),
	}))
	require.NoError(t, svc.RecordOutcome(ctx, Outcome{
		Endpoint: "http://5.6.7.8:3128",
		Live:     true,
		Source:   "prober",
	}))

	removed, err := svc.CleanupOldRecords(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	stats, err := svc.GetHistoryStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
}

func TestRecordBlacklistEvent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.RecordBlacklistEvent(ctx, "http://1.2.3.4:8080", "Timeout"))

	var count int
	require.NoError(t, svc.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM blacklist_events WHERE endpoint = ?", "http://1.2.3.4:8080").Scan(&count))
	assert.Equal(t, 1, count)
}
