package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrUnauthorized is wrapped by webhook handlers that reject the caller's
// credentials. The dispatcher answers 401 instead of 500.
var ErrUnauthorized = errors.New("gateway: unauthorized")

// WebhookHandler processes a validated webhook payload.
type WebhookHandler interface {
	HandleWebhook(ctx context.Context, source string, body []byte, headers http.Header) error
}

type webhookEntry struct {
	handler WebhookHandler
	secret  string
}

// WebhookDispatcher routes incoming webhooks to registered handlers with HMAC validation.
type WebhookDispatcher struct {
	mu       sync.RWMutex
	handlers map[string]webhookEntry
	logger   *slog.Logger
	maxBody  int64
	requests *prometheus.CounterVec
}

// NewWebhookDispatcher creates a ready-to-use dispatcher.
func NewWebhookDispatcher(logger *slog.Logger) *WebhookDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookDispatcher{
		handlers: make(map[string]webhookEntry),
		logger:   logger,
		maxBody:  1 << 20,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relayctl",
			Subsystem: "gateway",
			Name:      "webhook_requests_total",
			Help:      "Webhook deliveries by source and outcome.",
		}, []string{"source", "outcome"}),
	}
}

// Collector exposes the dispatcher's request counter for registration.
func (d *WebhookDispatcher) Collector() prometheus.Collector { return d.requests }

// Register adds a handler for the given source with an optional HMAC secret.
func (d *WebhookDispatcher) Register(source string, h WebhookHandler, secret string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[source] = webhookEntry{handler: h, secret: secret}
}

// ServeHTTP implements http.Handler. It extracts the source from the chi URL param,
// validates HMAC if configured, and dispatches to the registered handler.
func (d *WebhookDispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	source := chi.URLParam(r, "source")
	if source == "" {
		http.Error(w, "missing source", http.StatusBadRequest)
		return
	}

	d.mu.RLock()
	entry, ok := d.handlers[source]
	d.mu.RUnlock()

	if !ok {
		d.logger.Warn("webhook received for unregistered source", "source", source)
		d.requests.WithLabelValues("unknown", "unregistered").Inc()
		http.Error(w, "unknown source", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, d.maxBody))
	if err != nil {
		d.requests.WithLabelValues(source, "bad_request").Inc()
		http.Error(w, "failed to read body", http.StatusRequestEntityTooLarge)
		return
	}

	if entry.secret != "" && !validateHMAC(body, r.Header.Get("X-Signature-256"), entry.secret) {
		d.requests.WithLabelValues(source, "unauthorized").Inc()
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	if err := entry.handler.HandleWebhook(r.Context(), source, body, r.Header); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			d.logger.Warn("webhook rejected", "source", source, "error", err)
			d.requests.WithLabelValues(source, "unauthorized").Inc()
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		d.logger.Error("webhook handler failed", "source", source, "error", err)
		d.requests.WithLabelValues(source, "error").Inc()
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	d.requests.WithLabelValues(source, "ok").Inc()
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok":true}`))
}

// validateHMAC checks HMAC-SHA256 signature in constant time.
func validateHMAC(body []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
