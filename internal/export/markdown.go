// Package export renders a generated session recap as a shareable document.
package export

import (
	"fmt"
	"strings"

	"github.com/MrWong99/lorequill/internal/config"
	"github.com/MrWong99/lorequill/internal/dicelog"
	"github.com/MrWong99/lorequill/internal/recap"
)

var categoryEmoji = map[recap.HighlightCategory]string{
	recap.CategoryCombat:    "⚔️",
	recap.CategoryRoleplay:  "🎭",
	recap.CategoryDiscovery: "🔍",
	recap.CategoryDecision:  "🤔",
	recap.CategoryHumor:     "😂",
}

// Markdown renders the recap as a markdown document.
func Markdown(doc *recap.SessionRecap) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", doc.Header.SessionTitle)
	if !doc.Header.Date.IsZero() {
		fmt.Fprintf(&sb, "**Date:** %s\n\n", doc.Header.Date.Format("2 January 2006"))
	}

	writeAttendance(&sb, doc.Attendance.Players)

	if doc.OpeningContext.StartingState != "" {
		sb.WriteString("## Where We Left Off\n\n")
		sb.WriteString(doc.OpeningContext.StartingState)
		sb.WriteString("\n")
		if len(doc.OpeningContext.Objectives) > 0 {
			sb.WriteString("\n**Objectives:**\n")
			for _, o := range doc.OpeningContext.Objectives {
				fmt.Fprintf(&sb, "- %s\n", o)
			}
		}
		sb.WriteString("\n")
	}

	if len(doc.SceneHighlights) > 0 {
		sb.WriteString("## Session Events\n\n")
		for _, section := range doc.SceneHighlights {
			fmt.Fprintf(&sb, "### %s\n\n", section.SceneName)
			if len(section.CharactersPresent) > 0 {
				fmt.Fprintf(&sb, "*Present: %s*", strings.Join(section.CharactersPresent, ", "))
				if section.TimeOfDay != nil {
					fmt.Fprintf(&sb, " · *%s*", *section.TimeOfDay)
				}
				sb.WriteString("\n\n")
			}
			for _, h := range section.Highlights {
				fmt.Fprintf(&sb, "- %s\n", h.Text)
				for _, sub := range h.SubBullets {
					fmt.Fprintf(&sb, "  - %s\n", sub)
				}
			}
			sb.WriteString("\n")
		}
	}

	if len(doc.Highlights) > 0 {
		sb.WriteString("## Key Highlights\n\n")
		for _, h := range doc.Highlights {
			emoji, ok := categoryEmoji[h.Category]
			if !ok {
				emoji = "📌"
			}
			fmt.Fprintf(&sb, "- %s **%s:** %s", emoji, capitalize(string(h.Category)), h.Description)
			if len(h.Participants) > 0 {
				fmt.Fprintf(&sb, " *(%s)*", strings.Join(h.Participants, ", "))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	if len(doc.Quotes) > 0 {
		sb.WriteString("## Memorable Quotes\n\n")
		for _, q := range doc.Quotes {
			fmt.Fprintf(&sb, "> %q\n> — *%s*", q.Text, q.Speaker)
			if q.Context != nil {
				fmt.Fprintf(&sb, " (%s)", *q.Context)
			}
			sb.WriteString("\n\n")
		}
	}

	sb.WriteString("## Session Narrative\n\n")
	sb.WriteString(doc.Narrative)
	sb.WriteString("\n")

	return sb.String()
}

// MarkdownWithDiceStats renders the recap plus a roll-statistics appendix
// from a parsed dice log. With no rolls present the appendix is omitted.
func MarkdownWithDiceStats(doc *recap.SessionRecap, dice dicelog.Data) string {
	out := Markdown(doc)

	stats := dice.Stats()
	if len(stats) == 0 {
		return out
	}

	var sb strings.Builder
	sb.WriteString(out)
	sb.WriteString("\n## Dice Statistics\n\n")
	sb.WriteString("| Character | Rolls | Highest | Lowest | Average |\n")
	sb.WriteString("|---|---|---|---|---|\n")
	for _, s := range stats {
		fmt.Fprintf(&sb, "| %s | %d | %d | %d | %.1f |\n", s.Character, s.Rolls, s.Highest, s.Lowest, s.Average)
	}
	return sb.String()
}

func writeAttendance(sb *strings.Builder, players []config.Player) {
	if len(players) == 0 {
		return
	}
	sb.WriteString("## Attendance\n\n")
	for _, p := range players {
		if p.Role == config.RoleDM {
			fmt.Fprintf(sb, "- **DM:** %s\n", p.PlayerName)
		}
	}
	for _, p := range players {
		if p.Role != config.RolePlayer {
			continue
		}
		character := p.CharacterName
		if character == "" {
			character = "Unknown"
		}
		fmt.Fprintf(sb, "- %s as %s\n", p.PlayerName, character)
	}
	sb.WriteString("\n")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
