package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists the LLM provider names the CLI knows how to build.
var ValidProviderNames = []string{
	"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	if cfg.Provider.Name != "" && !isValidProviderName(cfg.Provider.Name) {
		slog.Warn("unrecognised provider name; known providers: "+strings.Join(ValidProviderNames, ", "),
			"name", cfg.Provider.Name,
		)
	}

	// Roster coherence.
	dmCount := 0
	seen := map[string]struct{}{}
	for i, p := range cfg.Players {
		if p.PlayerName == "" {
			errs = append(errs, fmt.Errorf("players[%d]: player_name must not be empty", i))
			continue
		}
		key := strings.ToLower(p.PlayerName)
		if _, dup := seen[key]; dup {
			errs = append(errs, fmt.Errorf("players[%d]: duplicate player_name %q", i, p.PlayerName))
		}
		seen[key] = struct{}{}

		if p.Role != "" && !p.Role.IsValid() {
			errs = append(errs, fmt.Errorf("players[%d]: role %q is invalid; valid values: dm, player", i, p.Role))
		}
		if p.Role == RoleDM {
			dmCount++
		}
	}
	if len(cfg.Players) > 0 && dmCount != 1 {
		slog.Warn("roster should contain exactly one DM entry for best recap quality", "dm_count", dmCount)
	}

	for i, n := range cfg.NPCs {
		if n.Name == "" {
			errs = append(errs, fmt.Errorf("npcs[%d]: name must not be empty", i))
		}
	}

	return errors.Join(errs...)
}

func isValidProviderName(name string) bool {
	for _, v := range ValidProviderNames {
		if strings.EqualFold(name, v) {
			return true
		}
	}
	return false
}
