package config_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/lorequill/internal/config"
)

const validYAML = `
log_level: debug
provider:
  name: openai
  api_key: sk-test
  model: gpt-4o
campaign:
  name: Curse of Strahd
  book_act: Book 2, Act 3
players:
  - player_name: Micco Fay
    character_name: Dungeon Master
    role: dm
  - player_name: Michael
    character_name: Aurelion
    role: player
    aliases: [Mike, Mikael]
npcs:
  - name: Princess Priyanella
    aliases: [Preanella, Pritenella]
archive:
  postgres_dsn: ""
metrics:
  listen_addr: ""
`

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.LogLevel != config.LogDebug {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.Provider.Name != "openai" || cfg.Provider.Model != "gpt-4o" {
		t.Errorf("Provider = %+v", cfg.Provider)
	}
	if cfg.Campaign.Name != "Curse of Strahd" {
		t.Errorf("Campaign.Name = %q", cfg.Campaign.Name)
	}
	if len(cfg.Players) != 2 {
		t.Fatalf("len(Players) = %d, want 2", len(cfg.Players))
	}
	if cfg.Players[0].Role != config.RoleDM {
		t.Errorf("Players[0].Role = %q, want dm", cfg.Players[0].Role)
	}
	if got := cfg.Players[1].Aliases; len(got) != 2 || got[0] != "Mike" {
		t.Errorf("Players[1].Aliases = %v", got)
	}
	if len(cfg.NPCs) != 1 || cfg.NPCs[0].Name != "Princess Priyanella" {
		t.Errorf("NPCs = %+v", cfg.NPCs)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader("log_level: info\nunknown_key: true\n"))
	if err == nil {
		t.Fatal("LoadFromReader = nil error, want unknown-field failure")
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "invalid log level",
			yaml: "log_level: verbose\n",
			want: "log_level",
		},
		{
			name: "duplicate player names",
			yaml: "players:\n  - player_name: Sam\n    role: dm\n  - player_name: sam\n    role: player\n",
			want: "duplicate player_name",
		},
		{
			name: "empty player name",
			yaml: "players:\n  - player_name: \"\"\n    role: player\n",
			want: "player_name must not be empty",
		},
		{
			name: "invalid role",
			yaml: "players:\n  - player_name: Sam\n    role: wizard\n",
			want: "role",
		},
		{
			name: "empty npc name",
			yaml: "npcs:\n  - name: \"\"\n",
			want: "name must not be empty",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tc.yaml))
			if err == nil {
				t.Fatal("LoadFromReader = nil error, want validation failure")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("err = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestValidate_UnknownProviderIsWarningOnly(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader("provider:\n  name: homebrew\n"))
	if err != nil {
		t.Fatalf("LoadFromReader: %v (unknown provider should warn, not fail)", err)
	}
	if cfg.Provider.Name != "homebrew" {
		t.Errorf("Provider.Name = %q", cfg.Provider.Name)
	}
}

func TestRoleIsValid(t *testing.T) {
	t.Parallel()

	if !config.RoleDM.IsValid() || !config.RolePlayer.IsValid() {
		t.Error("built-in roles must be valid")
	}
	if config.Role("wizard").IsValid() {
		t.Error(`Role("wizard").IsValid() = true, want false`)
	}
}
