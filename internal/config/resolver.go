package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
)

// FileName is the configuration file name looked up in each search directory.
const FileName = "relayctl.yaml"

// Resolve returns a sorted list of module IDs from the configuration.
// The deterministic order ensures consistent module loading.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// SearchPaths lists the candidate config locations in lookup order:
// $XDG_CONFIG_HOME/relayctl, ~/.config/relayctl, then the working directory.
func SearchPaths() []string {
	var paths []string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "relayctl", FileName))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "relayctl", FileName))
	}
	return append(paths, FileName)
}

// FindFile returns the config path to use. An explicit path always wins,
// even if it does not exist. Otherwise the first existing SearchPaths entry
// is returned, or "" when there is none.
func FindFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, p := range SearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		} else if !errors.Is(err, os.ErrNotExist) {
			// Unreadable candidates surface later as a Load error.
			return p
		}
	}
	return ""
}

// LoadOrDefault loads the file FindFile picks, falling back to DefaultYAML.
// It returns the path actually used, "" for the embedded default.
func LoadOrDefault(explicit string) (*Config, string, error) {
	path := FindFile(explicit)
	if path == "" {
		cfg, err := Parse(DefaultYAML)
		return cfg, "", err
	}
	cfg, err := Load(path)
	return cfg, path, err
}
