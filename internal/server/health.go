package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/54b3r/semdex/internal/logging"
)

// probeTimeout bounds each dependency probe so /api/ready stays responsive
// when a dependency hangs rather than refuses.
const probeTimeout = 5 * time.Second

// Pinger is a dependency that can report its own reachability. Ping returns
// nil when healthy. Implementations must be safe for concurrent use; Name is
// the label used in readiness responses (e.g. "vectordb", "ollama").
type Pinger interface {
	Ping(ctx context.Context) error
	Name() string
}

// readyCheck is the per-dependency entry in a readiness response.
type readyCheck struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// readyResponse is the JSON body of GET /api/ready. Ready is true only when
// every configured probe succeeded.
type readyResponse struct {
	Ready  bool         `json:"ready"`
	Checks []readyCheck `json:"checks"`
}

// handleReady handles GET /api/ready. Each configured Pinger runs under its
// own short timeout; any failure flips the response to 503. With no pingers
// configured this degrades to a liveness check that always passes.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	resp := readyResponse{Ready: true}
	for _, p := range s.pingers {
		probeCtx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		err := p.Ping(probeCtx)
		cancel()

		check := readyCheck{Name: p.Name(), OK: err == nil}
		if err != nil {
			check.Error = err.Error()
			resp.Ready = false
			log.Warn("readiness probe failed",
				slog.String("dependency", p.Name()),
				slog.Any("error", err),
			)
		}
		resp.Checks = append(resp.Checks, check)
	}

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
