package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendFansOutToAllChats(t *testing.T) {
	var received atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "HTML", payload["parse_mode"])
		assert.Equal(t, "appointments found", payload["text"])
		received.Add(1)
		w.Write([]byte(`{"ok": true}`))
	}))
	t.Cleanup(server.Close)

	n := NewTelegramNotifier(Config{
		Enabled:       true,
		BotToken:      "token",
		ChatIDs:       []string{"111111", "222222"},
		RetryAttempts: 1,
		Timeout:       5 * time.Second,
	})
	n.apiURL = server.URL

	results := n.Send(context.Background(), "appointments found")
	require.Len(t, results, 2)
	assert.True(t, results["111111"])
	assert.True(t, results["222222"])
	assert.Equal(t, int32(2), received.Load())
}

func TestSendRetriesFailedChat(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok": true}`))
	}))
	t.Cleanup(server.Close)

	n := NewTelegramNotifier(Config{
		Enabled:       true,
		BotToken:      "token",
		ChatIDs:       []string{"111111"},
		RetryAttempts: 3,
		Timeout:       5 * time.Second,
	})
	n.apiURL = server.URL

	results := n.Send(context.Background(), "hello")
	assert.True(t, results["111111"])
	assert.Equal(t, int32(2), calls.Load())
}

func TestSendReportsExhaustedRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	n := NewTelegramNotifier(Config{
		Enabled:       true,
		BotToken:      "token",
		ChatIDs:       []string{"111111"},
		RetryAttempts: 2,
		Timeout:       5 * time.Second,
	})
	n.apiURL = server.URL

	results := n.Send(context.Background(), "hello")
	assert.False(t, results["111111"])
}

func TestSendDisabled(t *testing.T) {
	n := NewTelegramNotifier(Config{Enabled: false, BotToken: "token", ChatIDs: []string{"111111"}})
	assert.Nil(t, n.Send(context.Background(), "hello"))
}

func TestSendNoChats(t *testing.T) {
	n := NewTelegramNotifier(Config{Enabled: true, BotToken: "token"})
	assert.Nil(t, n.Send(context.Background(), "hello"))
}

func TestStats(t *testing.T) {
	n := NewTelegramNotifier(Config{
		Enabled:       true,
		BotToken:      "token",
		ChatIDs:       []string{"111111", "222222"},
		RetryAttempts: 2,
	})

	stats := n.Stats()
	assert.Equal(t, true, stats["enabled"])
	assert.Equal(t, 2, stats["chat_count"])
	assert.Equal(t, true, stats["token_set"])
	assert.Equal(t, 2, stats["retry_attempts"])
}

func TestRedactChatID(t *testing.T) {
	assert.Equal(t, "...6789", redactChatID("123456789"))
	assert.Equal(t, "123", redactChatID("123"))
}
