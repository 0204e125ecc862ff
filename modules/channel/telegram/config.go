package telegram

import (
	"fmt"
	"net/url"
	"regexp"
)

// tokenPattern matches the Telegram bot token format: <digits>:<alphanum+dash>.
var tokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

const (
	modePolling   = "polling"
	modeWebhook   = "webhook"
	defaultAPIURL = "https://api.telegram.org"
)

// Config holds the Telegram channel configuration.
//
// Token and APIURL normally come from the RELAY_BOT_TOKEN and RELAY_API_URL
// credentials; the YAML fields override them.
type Config struct {
	Token          string   `yaml:"token"`
	Mode           string   `yaml:"mode"`
	PollingTimeout int      `yaml:"polling_timeout"`
	WebhookURL     string   `yaml:"webhook_url"`
	WebhookSecret  string   `yaml:"webhook_secret"`
	AllowedUpdates []string `yaml:"allowed_updates"`
	APIURL         string   `yaml:"api_url"`

	// ProbeChat receives the throwaway forwards used to inspect messages
	// missing from the index. Defaults to the owner's private chat.
	ProbeChat int64 `yaml:"probe_chat"`
	// DisableProbe limits replays to indexed messages. Probed messages
	// carry no thread, so a whole-chat source would also take thread replies.
	DisableProbe bool `yaml:"disable_probe"`
}

// defaults applies default values to unset fields.
func (c *Config) defaults() {
	if c.Mode == "" {
		c.Mode = modePolling
	}
	if c.PollingTimeout == 0 {
		c.PollingTimeout = 30
	}
	if c.AllowedUpdates == nil {
		c.AllowedUpdates = []string{"message", "edited_message", "channel_post", "callback_query"}
	}
	if c.APIURL == "" {
		c.APIURL = defaultAPIURL
	}
}

// validate checks configuration field constraints beyond basic presence checks.
// It is called from Telegram.Validate after defaults have been applied.
func (c *Config) validate() error {
	if c.Token != "" && !tokenPattern.MatchString(c.Token) {
		return fmt.Errorf("telegram: token format invalid (expected <bot_id>:<hash>)")
	}

	if c.APIURL != "" {
		u, err := url.Parse(c.APIURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("telegram: api_url must be a valid http/https URL, got %q", c.APIURL)
		}
	}

	switch c.Mode {
	case modePolling, modeWebhook:
	default:
		return fmt.Errorf("telegram: invalid mode %q (must be \"polling\" or \"webhook\")", c.Mode)
	}
	if c.Mode == modeWebhook && c.WebhookURL == "" {
		return fmt.Errorf("telegram: webhook_url is required when mode is \"webhook\"")
	}

	if c.PollingTimeout < 0 || c.PollingTimeout > 50 {
		return fmt.Errorf("telegram: polling_timeout must be 0-50, got %d", c.PollingTimeout)
	}

	return nil
}
