package server

import (
	"bufio"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// ReloadHub manages SSE clients for build-change broadcasts. Every finished
// build is announced with its build ID; clients reload when the ID they see
// differs from the one their page was served under.
type ReloadHub struct {
	mu        sync.RWMutex
	nextID    int
	clients   map[int]*reloadClient
	logger    *slog.Logger
	closed    bool
	lastBuild string
}

type reloadClient struct {
	id   int
	ch   chan string
	done chan struct{}
}

func NewReloadHub(logger *slog.Logger) *ReloadHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReloadHub{clients: map[int]*reloadClient{}, logger: logger}
}

// ServeHTTP implements the SSE endpoint at /__reload.
func (h *ReloadHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "reload hub shutting down", http.StatusServiceUnavailable)
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
	current := h.lastBuild
	h.mu.Unlock()

	// Initial comment plus the current build so late joiners have a baseline.
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(": connected\n\n"); err != nil {
		h.logger.Debug("reload client write failed", slog.Any("error", err))
		h.removeClient(client.id)
		return
	}
	if current != "" {
		if _, err := bw.WriteString("data: {\"build\":\"" + current + "\"}\n\n"); err != nil {
			h.logger.Debug("reload client write failed", slog.Any("error", err))
			h.removeClient(client.id)
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
				h.logger.Debug("reload ping failed", slog.Any("error", err))
				h.removeClient(client.id)
				return
			}
		case build := <-client.ch:
			if _, err := bw.WriteString("data: {\"build\":\"" + build + "\"}\n\n"); err == nil {
				bw.Flush()
				flusher.Flush()
			} else {
				h.logger.Debug("reload broadcast write failed", slog.Any("error", err))
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
	}
}

// Broadcast announces a finished build. Clients whose channels are full are
// dropped rather than allowed to stall the broadcaster.
func (h *ReloadHub) Broadcast(buildID string) {
	h.mu.Lock()
	if h.closed || buildID == "" || buildID == h.lastBuild {
		h.mu.Unlock()
		return
	}
	h.lastBuild = buildID
	snapshot := make([]*reloadClient, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.Unlock()

	dropped := 0
	for _, c := range snapshot {
		select {
		case c.ch <- buildID:
		default:
			dropped++
			h.removeClient(c.id)
		}
	}
	h.logger.Debug("reload broadcast",
		slog.String("build", buildID),
		slog.Int("clients", len(snapshot)),
		slog.Int("dropped", dropped))
}

// ClientCount reports the number of connected clients.
func (h *ReloadHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown closes all clients and rejects future connections.
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
}

// ReloadScript is served at /__reload.js and injected into every HTML
// document the dev server delivers.
const ReloadScript = `(() => {
  if (window.__SITEBUILDER_RELOAD__) return;
  window.__SITEBUILDER_RELOAD__ = true;
  function connect() {
    const es = new EventSource('/__reload');
    let first = true;
    let current = null;
    es.onmessage = (e) => {
      try {
        const p = JSON.parse(e.data);
        if (first) { current = p.build; first = false; return; }
        if (p.build && p.build !== current) { location.reload(); }
      } catch (_) {}
    };
    es.onerror = () => { es.close(); setTimeout(connect, 2000); };
  }
  connect();
})();`
