// Package settings loads the orchestrator's own optional YAML tuning file,
// layering it over built-in defaults. It is distinct from the dotenv
// configuration record the downstream services own.
package settings

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SubRepo pins the location and ref of the acquired sub-stack checkout.
type SubRepo struct {
	URL     string `yaml:"url"`
	Ref     string `yaml:"ref"`
	Subtree string `yaml:"subtree"`
}

// Logging tunes the structured logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Settings is the full set of orchestrator tunables.
type Settings struct {
	Project                   string  `yaml:"project"`
	PauseBetweenStacksSeconds int     `yaml:"pause_between_stacks_seconds"`
	SubRepo                   SubRepo `yaml:"subrepo"`
	CertValidityDays          int     `yaml:"cert_validity_days"`
	Logging                   Logging `yaml:"logging"`
	Runtime                   string  `yaml:"runtime"`
}

// ValidationError names the offending field path and why it failed.
type ValidationError struct {
	Path    string
	Message string
}

func (e ValidationError) Error() string {
	return e.Path + ": " + e.Message
}

// DefaultSettings returns the built-in defaults, used when no settings file
// is configured and as the base every overlay is merged onto.
func DefaultSettings() Settings {
	return Settings{
		Project:                   "localai",
		PauseBetweenStacksSeconds: 10,
		SubRepo: SubRepo{
			URL:     "https://github.com/supabase/supabase.git",
			Ref:     "master",
			Subtree: "docker",
		},
		CertValidityDays: 365,
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
		Runtime: "auto",
	}
}

// Load returns the defaults overlaid with path's YAML content. An empty
// path is not an error and returns the defaults unchanged.
func Load(path string) (Settings, error) {
	cfg := DefaultSettings()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path comes from ORCHESTRATOR_CONFIG, an operator-controlled env var
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("settings: read %s: %w", path, err)
	}

	var overlay Settings
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return cfg, fmt.Errorf("settings: parse %s: %w", path, err)
	}

	merge(&cfg, &overlay)

	if errs := cfg.Validate(); len(errs) > 0 {
		return cfg, fmt.Errorf("settings: invalid: %v", errs)
	}

	return cfg, nil
}

func merge(dst, src *Settings) {
	if src.Project != "" {
		dst.Project = src.Project
	}
	if src.PauseBetweenStacksSeconds != 0 {
		dst.PauseBetweenStacksSeconds = src.PauseBetweenStacksSeconds
	}
	if src.SubRepo.URL != "" {
		dst.SubRepo.URL = src.SubRepo.URL
	}
	if src.SubRepo.Ref != "" {
		dst.SubRepo.Ref = src.SubRepo.Ref
	}
	if src.SubRepo.Subtree != "" {
		dst.SubRepo.Subtree = src.SubRepo.Subtree
	}
	if src.CertValidityDays != 0 {
		dst.CertValidityDays = src.CertValidityDays
	}
	if src.Logging.Level != "" {
		dst.Logging.Level = src.Logging.Level
	}
	if src.Logging.Format != "" {
		dst.Logging.Format = src.Logging.Format
	}
	if src.Runtime != "" {
		dst.Runtime = src.Runtime
	}
}
