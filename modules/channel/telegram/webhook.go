package telegram

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/flemzord/relayctl/internal/gateway"
)

// secretHeader carries the secret_token registered with setWebhook.
const secretHeader = "X-Telegram-Bot-Api-Secret-Token"

// ErrInvalidSecret is returned for webhook calls without the expected
// secret token. The gateway answers it with 401.
var ErrInvalidSecret = fmt.Errorf("telegram: invalid webhook secret token: %w", gateway.ErrUnauthorized)

// WebhookReceiver processes incoming Telegram webhook payloads.
// It implements gateway.WebhookHandler.
type WebhookReceiver struct {
	dispatch func(context.Context, *Update)
	secret   string
}

// NewWebhookReceiver creates a new WebhookReceiver.
func NewWebhookReceiver(dispatch func(context.Context, *Update), secret string) *WebhookReceiver {
	return &WebhookReceiver{dispatch: dispatch, secret: secret}
}

// HandleWebhook validates the secret token header, decodes the update, and
// dispatches it under a context detached from the request.
func (w *WebhookReceiver) HandleWebhook(ctx context.Context, _ string, body []byte, headers http.Header) error {
	if w.secret != "" {
		token := headers.Get(secretHeader)
		if subtle.ConstantTimeCompare([]byte(w.secret), []byte(token)) != 1 {
			return ErrInvalidSecret
		}
	}

	var update Update
	if err := json.Unmarshal(body, &update); err != nil {
		return fmt.Errorf("telegram: invalid update JSON: %w", err)
	}

	w.dispatch(context.WithoutCancel(ctx), &update)
	return nil
}
