package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/charmbracelet/huh"
	"gopkg.in/yaml.v3"
)

// Answers holds the choices collected by the setup wizard.
type Answers struct {
	Mode        string
	WebhookURL  string
	IndexPath   string
	PacingDelay string
	Gateway     bool
	GatewayBind string
	OTLP        string
}

// DefaultAnswers are the values the wizard pre-fills.
func DefaultAnswers() Answers {
	return Answers{
		Mode:        "polling",
		PacingDelay: DefaultPacingDelay.String(),
		GatewayBind: "127.0.0.1:8080",
	}
}

// RunWizard asks the operator for the starter settings.
func RunWizard(a *Answers) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("How should the bot receive updates?").
				Options(
					huh.NewOption("Long polling", "polling"),
					huh.NewOption("Webhook (needs a public HTTPS URL)", "webhook"),
				).
				Value(&a.Mode),
			huh.NewInput().
				Title("Pacing delay between messages").
				Description("Go duration, e.g. 1500ms").
				Value(&a.PacingDelay).
				Validate(validateDuration),
			huh.NewInput().
				Title("Message index file").
				Description("Leave empty to keep the index in memory").
				Value(&a.IndexPath),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Public webhook URL").
				Value(&a.WebhookURL).
				Validate(validateWebhookURL),
		).WithHideFunc(func() bool { return a.Mode != "webhook" }),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Expose the HTTP gateway (/health, /status, /metrics)?").
				Value(&a.Gateway),
			huh.NewInput().
				Title("OTLP/HTTP trace endpoint").
				Description("host:port, empty to disable tracing").
				Value(&a.OTLP),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("config: wizard: %w", err)
	}
	if a.Mode == "webhook" {
		a.Gateway = true
	}
	return nil
}

func validateDuration(s string) error {
	d, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	if d < 0 {
		return errors.New("must not be negative")
	}
	return nil
}

func validateWebhookURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Scheme != "https" || u.Host == "" {
		return errors.New("must be an https URL")
	}
	return nil
}

type renderedModule = map[string]any

// Render produces a configuration file from the wizard answers. Credentials
// stay in the environment and are never written.
func Render(a Answers) ([]byte, error) {
	if err := validateDuration(a.PacingDelay); err != nil {
		return nil, fmt.Errorf("config: pacing delay: %w", err)
	}

	telegram := renderedModule{"mode": a.Mode}
	switch a.Mode {
	case "polling":
		telegram["polling_timeout"] = 30
	case "webhook":
		if err := validateWebhookURL(a.WebhookURL); err != nil {
			return nil, fmt.Errorf("config: webhook url: %w", err)
		}
		telegram["webhook_url"] = a.WebhookURL
		telegram["webhook_secret"] = "${RELAY_WEBHOOK_SECRET:-}"
	default:
		return nil, fmt.Errorf("config: unknown mode %q", a.Mode)
	}

	modules := map[string]renderedModule{
		"channel.telegram": telegram,
		"index.sqlite": {
			"path":           a.IndexPath,
			"retention":      "720h",
			"prune_schedule": "0 * * * *",
		},
	}
	if a.Gateway {
		modules["gateway.http"] = renderedModule{
			"bind": a.GatewayBind,
			"auth": renderedModule{"bearer_token": "${RELAY_GATEWAY_TOKEN:-}"},
		}
	}

	doc := map[string]any{
		"version": "1",
		"relay": map[string]any{
			"pacing_delay": a.PacingDelay,
			"flood_buffer": DefaultFloodBuffer.String(),
		},
		"modules": modules,
	}
	if a.OTLP != "" {
		doc["telemetry"] = map[string]any{"endpoint": a.OTLP, "service_name": "relayctl"}
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("config: rendering: %w", err)
	}
	return out, nil
}
