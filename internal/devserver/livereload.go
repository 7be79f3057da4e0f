package devserver

import (
	"bufio"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/biblecomputer/bible/internal/metrics"
)

// ReloadHub manages SSE clients for signature-change broadcasts. Each
// published build carries the source set digest; a client reloads when the
// digest it last saw changes.
type ReloadHub struct {
	mu       sync.RWMutex
	nextID   int
	clients  map[int]*reloadClient
	recorder metrics.Recorder
	closed   bool
	lastSig  string
}

type reloadClient struct {
	id   int
	ch   chan string
	done chan struct{}
}

// NewReloadHub returns a hub reporting client counts to rec.
func NewReloadHub(rec metrics.Recorder) *ReloadHub {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &ReloadHub{clients: map[int]*reloadClient{}, recorder: rec}
}

// ServeHTTP implements the SSE endpoint at /livereload.
func (h *ReloadHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "livereload shutting down", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	client := &reloadClient{ch: make(chan string, 8), done: make(chan struct{})}
	h.mu.Lock()
	client.id = h.nextID
	h.nextID++
	h.clients[client.id] = client
	current := h.lastSig
	count := len(h.clients)
	h.mu.Unlock()
	h.recorder.SetLiveReloadClients(count)

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(": connected\n\n"); err != nil {
		slog.Debug("livereload write", "error", err)
		return
	}
	if current != "" {
		if _, err := bw.WriteString("data: {\"signature\":\"" + current + "\"}\n\n"); err != nil {
			slog.Debug("livereload write", "error", err)
			return
		}
	}
	if err := bw.Flush(); err == nil {
		flusher.Flush()
	}

	hb := time.NewTicker(30 * time.Second)
	defer hb.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			h.removeClient(client.id)
			return
		case <-client.done:
			return
		case <-hb.C:
			if _, err := bw.WriteString(": ping\n\n"); err == nil {
				bw.Flush()
				flusher.Flush()
			} else {
				slog.Debug("livereload ping write", "error", err)
				h.removeClient(client.id)
				return
			}
		case sig := <-client.ch:
			if _, err := bw.WriteString("data: {\"signature\":\"" + sig + "\"}\n\n"); err == nil {
				bw.Flush()
				flusher.Flush()
			} else {
				slog.Debug("livereload broadcast write", "error", err)
				h.removeClient(client.id)
				return
			}
		}
	}
}

func (h *ReloadHub) removeClient(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(c.done)
		h.recorder.SetLiveReloadClients(len(h.clients))
	}
}

// Broadcast notifies all clients of a new build signature. Clients with a
// full channel are dropped rather than blocking the broadcaster.
func (h *ReloadHub) Broadcast(signature string) {
	h.mu.Lock()
	if h.closed || signature == "" || signature == h.lastSig {
		h.mu.Unlock()
		return
	}
	h.lastSig = signature
	snapshot := make([]*reloadClient, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.Unlock()

	dropped := 0
	for _, c := range snapshot {
		select {
		case c.ch <- signature:
		default:
			dropped++
			h.removeClient(c.id)
		}
	}
	slog.Debug("livereload broadcast", "signature", signature, "clients", len(snapshot), "dropped", dropped)
}

// Shutdown closes all clients and disables future broadcasts.
func (h *ReloadHub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = map[int]*reloadClient{}
	h.mu.Unlock()
	for _, c := range clients {
		close(c.done)
	}
	h.recorder.SetLiveReloadClients(0)
}

// reloadScript is the JS snippet served at /livereload.js. It reloads the
// page whenever the published signature changes.
const reloadScript = `(() => {
  if (window.__BIBLEBUILD_LR__) return;
  window.__BIBLEBUILD_LR__=true;
  function connect(){
    const es = new EventSource('/livereload');
    let first=true; let current=null;
    es.onmessage = (e)=>{ try { const p=JSON.parse(e.data); if(first){ current=p.signature; first=false; return;} if(p.signature && p.signature!==current){ console.log('[biblebuild] change detected, reloading'); location.reload(); } } catch(_){} };
    es.onerror = ()=>{ es.close(); setTimeout(connect,2000); };
  }
  connect();
})();`
