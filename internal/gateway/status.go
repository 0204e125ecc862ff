package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/flemzord/relayctl/internal/relay"
	"github.com/flemzord/relayctl/pkg/message"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Uptime int64        `json:"uptime_seconds"`
	Relay  *RelayStatus `json:"relay,omitempty"`
}

// RelayStatus mirrors relay.Snapshot.
type RelayStatus struct {
	Source          *message.ChatRef `json:"source,omitempty"`
	Destination     *message.ChatRef `json:"destination,omitempty"`
	Filters         []string         `json:"filters"`
	Live            bool             `json:"live"`
	Running         bool             `json:"run_in_progress"`
	CancelRequested bool             `json:"cancel_requested"`
	AuthorizedUsers int              `json:"authorized_users"`
	LastRun         *RunStatus       `json:"last_run,omitempty"`
}

// RunStatus summarizes a finished bulk run.
type RunStatus struct {
	ID          string  `json:"id"`
	Range       string  `json:"range"`
	Processed   int     `json:"processed"`
	Forwarded   int     `json:"forwarded"`
	Errors      int     `json:"errors"`
	RateLimited int     `json:"rate_limited"`
	Aborted     bool    `json:"aborted"`
	Duration    float64 `json:"duration_seconds"`
}

func newRelayStatus(snap relay.Snapshot) *RelayStatus {
	rs := &RelayStatus{
		Filters:         []string{},
		Live:            snap.Live,
		Running:         snap.Running,
		CancelRequested: snap.CancelRequested,
		AuthorizedUsers: snap.Authorized,
	}
	if !snap.Source.IsZero() {
		src := snap.Source
		rs.Source = &src
	}
	if !snap.Destination.IsZero() {
		dst := snap.Destination
		rs.Destination = &dst
	}
	for _, c := range snap.Filters.EnabledCategories() {
		rs.Filters = append(rs.Filters, string(c))
	}
	if r := snap.LastRun; r != nil {
		rs.LastRun = &RunStatus{
			ID:          r.RunID,
			Range:       r.Range.String(),
			Processed:   r.Processed,
			Forwarded:   r.Forwarded,
			Errors:      r.Errors,
			RateLimited: r.RateLimited,
			Aborted:     r.Aborted,
			Duration:    r.Duration.Seconds(),
		}
	}
	return rs
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			Uptime: int64(time.Since(g.startedAt).Seconds()),
		}
		if g.status != nil {
			resp.Relay = newRelayStatus(g.status.Snapshot())
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
