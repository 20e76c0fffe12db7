package handlers

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const probeTimeout = 5 * time.Second

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ModelStatus reports the active model.
type ModelStatus interface {
	Ready() bool
	Version() int64
}

type HealthHandler struct {
	db    HealthChecker
	model ModelStatus
	now   func() time.Time
}

func NewHealthHandler(db HealthChecker, model ModelStatus) *HealthHandler {
	return &HealthHandler{db: db, model: model, now: time.Now}
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

type probeResult struct {
	detail string
	// blocking results fail Health; all failures fail Ready.
	blocking bool
	ok       bool
}

// probe runs the datastore ping and reads the model state concurrently.
func (h *HealthHandler) probe(ctx context.Context) map[string]probeResult {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	results := make(map[string]probeResult, 2)
	var mu sync.Mutex
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		r := probeResult{blocking: true, ok: true, detail: "healthy"}
		if err := h.db.HealthCheck(ctx); err != nil {
			r.ok, r.detail = false, "unhealthy: "+err.Error()
		}
		mu.Lock()
		results["database"] = r
		mu.Unlock()
	}()

	if h.model != nil {
		r := probeResult{ok: h.model.Ready(), detail: "not trained"}
		if r.ok {
			r.detail = fmt.Sprintf("version %d loaded", h.model.Version())
		}
		mu.Lock()
		results["model"] = r
		mu.Unlock()
	}

	wg.Wait()
	return results
}

// Health reports "ok" while the datastore is reachable. A missing model is
// reported but does not make the service unhealthy.
func (h *HealthHandler) Health(c *gin.Context) {
	results := h.probe(c.Request.Context())

	status, code := "ok", http.StatusOK
	checks := make(map[string]string, len(results))
	for name, r := range results {
		checks[name] = r.detail
		if r.blocking && !r.ok {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
	}
	h.respond(c, code, status, checks)
}

// Ready requires every probe to pass.
func (h *HealthHandler) Ready(c *gin.Context) {
	status, code := "ready", http.StatusOK
	for _, r := range h.probe(c.Request.Context()) {
		if !r.ok {
			status, code = "not ready", http.StatusServiceUnavailable
			break
		}
	}
	h.respond(c, code, status, nil)
}

func (h *HealthHandler) Live(c *gin.Context) {
	h.respond(c, http.StatusOK, "alive", nil)
}

func (h *HealthHandler) respond(c *gin.Context, code int, status string, checks map[string]string) {
	c.JSON(code, HealthResponse{
		Status:    status,
		Timestamp: h.now().UTC().Format(time.RFC3339),
		Checks:    checks,
	})
}
