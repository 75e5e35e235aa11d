// Package config provides the configuration schema and loader for Lorequill.
//
// Configuration is a single YAML file holding the LLM provider credentials,
// campaign context, the player roster, and the known-NPC list used for
// transcript normalisation.
package config

// LogLevel controls log verbosity for the Lorequill CLI.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Role identifies a roster member's function at the table.
type Role string

const (
	// RoleDM marks the Dungeon Master. A generation-ready roster has exactly
	// one DM entry.
	RoleDM Role = "dm"

	// RolePlayer marks a regular player.
	RolePlayer Role = "player"
)

// IsValid reports whether r is a recognised role.
func (r Role) IsValid() bool {
	return r == RoleDM || r == RolePlayer
}

// Config is the root configuration structure for Lorequill.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	// LogLevel controls verbosity. Defaults to "info" when empty.
	LogLevel LogLevel `yaml:"log_level"`

	Provider ProviderEntry `yaml:"provider"`
	Campaign CampaignInfo  `yaml:"campaign"`
	Players  []Player      `yaml:"players"`
	NPCs     []NPC         `yaml:"npcs"`
	Archive  ArchiveConfig `yaml:"archive"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

// ProviderEntry configures the LLM backend used for all three passes.
type ProviderEntry struct {
	// Name selects the backend implementation. "openai" uses the official
	// OpenAI SDK; any other supported name ("anthropic", "gemini", "ollama",
	// ...) goes through the any-llm universal provider. Defaults to "openai".
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model (e.g., "gpt-4o"). When empty the
	// pipeline falls back to the default model id.
	Model string `yaml:"model"`
}

// CampaignInfo carries optional campaign context appended to the system
// prompt so the model can anchor names and places.
type CampaignInfo struct {
	// Name is the campaign name (e.g., "Curse of Strahd").
	Name string `yaml:"name"`

	// BookAct describes the party's current position in the campaign
	// (e.g., "Book 2, Act 3").
	BookAct string `yaml:"book_act"`
}

// Player maps one person at the table onto their in-fiction identity.
type Player struct {
	// PlayerName is the canonical speaker name as it should appear in the
	// normalised transcript. Unique within the roster.
	PlayerName string `yaml:"player_name"`

	// CharacterName is the player's character, or empty for a DM without a
	// fixed persona.
	CharacterName string `yaml:"character_name"`

	// Role is "dm" or "player".
	Role Role `yaml:"role"`

	// Aliases are alternative spellings of the player's name as the
	// transcription service may emit them (e.g., "Mike", "Mikael" for
	// "Michael"). Matched case-insensitively against speaker labels.
	Aliases []string `yaml:"aliases"`
}

// NPC is a known non-player character whose name should be spelled
// consistently throughout the transcript. Used only for in-text substitution,
// never for speaker identity.
type NPC struct {
	// Name is the canonical spelling.
	Name string `yaml:"name"`

	// Aliases are misheard or shortened variants to rewrite to Name.
	Aliases []string `yaml:"aliases"`
}

// ArchiveConfig enables the optional PostgreSQL recap archive.
type ArchiveConfig struct {
	// PostgresDSN is the connection string. Empty disables archiving.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// MetricsConfig enables the optional Prometheus metrics endpoint.
type MetricsConfig struct {
	// ListenAddr is the TCP address to serve /metrics on (e.g., ":9090").
	// Empty disables the endpoint; metrics are still recorded in-process.
	ListenAddr string `yaml:"listen_addr"`
}
