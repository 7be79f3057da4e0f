package devserver

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/biblecomputer/bible/internal/metrics"
)

func readUntil(t *testing.T, r *bufio.Reader, want string, timeout time.Duration) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		line, err := r.ReadString('\n')
		if err != nil {
			return false
		}
		if strings.Contains(line, want) {
			return true
		}
	}
	return false
}

func connectSSE(t *testing.T, url string) *bufio.Reader {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return bufio.NewReader(resp.Body)
}

func TestReloadHubInitialSignatureSent(t *testing.T) {
	hub := NewReloadHub(metrics.NoopRecorder{})
	defer hub.Shutdown()
	hub.Broadcast("sig-first")

	server := httptest.NewServer(hub)
	defer server.Close()

	reader := connectSSE(t, server.URL)
	require.True(t, readUntil(t, reader, "sig-first", 500*time.Millisecond),
		"initial signature event not received")
}

func TestReloadHubBroadcastReachesClient(t *testing.T) {
	hub := NewReloadHub(metrics.NoopRecorder{})
	defer hub.Shutdown()

	server := httptest.NewServer(hub)
	defer server.Close()

	reader := connectSSE(t, server.URL)
	require.True(t, readUntil(t, reader, ": connected", 500*time.Millisecond))

	hub.Broadcast("sig-new")
	require.True(t, readUntil(t, reader, "sig-new", 500*time.Millisecond),
		"broadcast signature not received")
}

func TestReloadHubDuplicateSignatureSuppressed(t *testing.T) {
	hub := NewReloadHub(metrics.NoopRecorder{})
	defer hub.Shutdown()

	hub.Broadcast("sig-same")
	hub.Broadcast("sig-same")
	require.Equal(t, "sig-same", hub.lastSig)
}

func TestReloadHubShutdownRejectsClients(t *testing.T) {
	hub := NewReloadHub(metrics.NoopRecorder{})
	hub.Shutdown()

	server := httptest.NewServer(hub)
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
