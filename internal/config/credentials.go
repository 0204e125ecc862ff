package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Credentials are read from the environment once at startup. They never
// appear in the YAML file.
type Credentials struct {
	BotToken      string `env:"RELAY_BOT_TOKEN,required,notEmpty"`
	OwnerID       int64  `env:"RELAY_OWNER_ID,required"`
	WebhookSecret string `env:"RELAY_WEBHOOK_SECRET"`
	GatewayToken  string `env:"RELAY_GATEWAY_TOKEN"`
	APIURL        string `env:"RELAY_API_URL" envDefault:"https://api.telegram.org"`
}

// ServiceCredentials is the service name the loaded Credentials are
// published under for modules to read.
const ServiceCredentials = "config.credentials"

// ErrInvalidOwner is returned when RELAY_OWNER_ID is not a positive user id.
var ErrInvalidOwner = errors.New("config: RELAY_OWNER_ID must be a positive user id")

// LoadCredentials reads Credentials from the process environment.
func LoadCredentials() (*Credentials, error) {
	return parseCredentials(env.Options{})
}

// LoadCredentialsFrom reads Credentials from vars instead of the process
// environment.
func LoadCredentialsFrom(vars map[string]string) (*Credentials, error) {
	return parseCredentials(env.Options{Environment: vars})
}

func parseCredentials(opts env.Options) (*Credentials, error) {
	var c Credentials
	if err := env.ParseWithOptions(&c, opts); err != nil {
		return nil, fmt.Errorf("config: credentials: %w", err)
	}
	if c.OwnerID <= 0 {
		return nil, ErrInvalidOwner
	}
	return &c, nil
}

// Secrets returns the values that must never reach log output.
func (c *Credentials) Secrets() []string {
	return []string{c.BotToken, c.WebhookSecret, c.GatewayToken}
}
