package gateway

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Uptime  int64  `json:"uptime_seconds"`
	Running bool   `json:"run_in_progress"`
}

// handleHealth returns an http.HandlerFunc for GET /health. It reveals
// nothing about the relay configuration.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{
			Status: "ok",
			Uptime: int64(time.Since(g.startedAt).Seconds()),
		}
		if g.status != nil {
			resp.Running = g.status.Snapshot().Running
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
