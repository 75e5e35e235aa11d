// Package dicelog parses Roll20-style dice log exports.
//
// A dice log is an optional companion to the session transcript. It is
// parsed for display and for the roll-statistics appendix of the exported
// recap; it does not feed recap generation.
package dicelog

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Roll is a single parsed dice roll.
type Roll struct {
	// Character is the roller, e.g. "Liam" or "Storyteller (GM)".
	Character string

	// RollType classifies the roll, e.g. "Perception Check". "GM Roll" for
	// storyteller rolls, "Unknown" when no type line was present.
	RollType string

	// Result is the roll total.
	Result int
}

// TurnMarker records a combat turn boundary.
type TurnMarker struct {
	// Character whose turn starts or ends.
	Character string
}

// EntryKind discriminates Entry payloads.
type EntryKind string

const (
	KindRoll EntryKind = "roll"
	KindTurn EntryKind = "turn"
)

// Entry is one parsed element of the dice log, in input order.
type Entry struct {
	Kind EntryKind

	// Roll is set when Kind is KindRoll.
	Roll *Roll

	// Turn is set when Kind is KindTurn.
	Turn *TurnMarker

	// Raw is the original block text.
	Raw string
}

// Data is a fully parsed dice log.
type Data struct {
	Entries []Entry

	// Characters lists everyone who rolled, in order of first appearance.
	Characters []string

	// RollCount is the number of parsed rolls.
	RollCount int
}

var (
	turnStartRe = regexp.MustCompile(`(?i)^(.+?),\s*it's now your turn!$`)
	turnEndRe   = regexp.MustCompile(`(?i)^(.+?)'s turn is done\.$`)
	gmResultRe  = regexp.MustCompile(`=(\d+)`)
)

// ParseTurnMarker matches "Character, it's now your turn!" and
// "Character's turn is done." lines. Returns nil for anything else.
func ParseTurnMarker(line string) *TurnMarker {
	if m := turnStartRe.FindStringSubmatch(line); m != nil {
		return &TurnMarker{Character: strings.TrimSpace(m[1])}
	}
	if m := turnEndRe.FindStringSubmatch(line); m != nil {
		return &TurnMarker{Character: strings.TrimSpace(m[1])}
	}
	return nil
}

// ParseRollBlock parses one roll block. Player blocks open with a header line
// ending in ":" (e.g. "Liam AC:15 PP:15 DC:13:"), followed by the character
// name, a roll-type line and the numeric result. GM blocks open with
// "Storyteller (GM):" and carry the result as "=NN". Returns nil when the
// block is not a recognisable roll.
func ParseRollBlock(block string) *Roll {
	var lines []string
	for _, l := range strings.Split(block, "\n") {
		if t := strings.TrimSpace(l); t != "" {
			lines = append(lines, t)
		}
	}
	if len(lines) < 3 {
		return nil
	}

	if strings.HasPrefix(lines[0], "Storyteller (GM):") {
		if m := gmResultRe.FindStringSubmatch(block); m != nil {
			result, _ := strconv.Atoi(m[1])
			return &Roll{Character: "Storyteller (GM)", RollType: "GM Roll", Result: result}
		}
		return nil
	}

	if !strings.HasSuffix(lines[0], ":") {
		return nil
	}

	var (
		character string
		rollType  string
		result    int
	)
	for _, line := range lines[1:] {
		if line == "Details" || line == "Damage" {
			continue
		}
		if strings.Contains(line, "Check") ||
			strings.Contains(line, "Saving Throw") ||
			strings.Contains(line, "Attack") ||
			strings.Contains(line, "Tool") {
			rollType = line
			continue
		}
		if n, err := strconv.Atoi(line); err == nil {
			if result == 0 {
				result = n
			}
			continue
		}
		if character == "" && !strings.Contains(line, "AC:") && !strings.Contains(line, "PP:") {
			character = line
		}
	}

	if character == "" || result == 0 {
		return nil
	}
	if rollType == "" {
		rollType = "Unknown"
	}
	return &Roll{Character: character, RollType: rollType, Result: result}
}

// isBlockHeader reports whether line opens a new roll block.
func isBlockHeader(line string) bool {
	if !strings.HasSuffix(line, ":") {
		return false
	}
	return strings.TrimSpace(strings.TrimSuffix(line, ":")) != ""
}

// Parse converts a Roll20 dice log export into structured [Data].
// Unrecognised blocks are dropped silently — chat messages and UI artefacts
// are expected noise in these exports.
func Parse(content string) Data {
	if strings.TrimSpace(content) == "" {
		return Data{}
	}

	var (
		data    Data
		seen    = map[string]struct{}{}
		current []string
	)

	flush := func() {
		if len(current) == 0 {
			return
		}
		block := strings.Join(current, "\n")
		current = current[:0]
		roll := ParseRollBlock(block)
		if roll == nil {
			return
		}
		data.Entries = append(data.Entries, Entry{Kind: KindRoll, Roll: roll, Raw: block})
		data.RollCount++
		if _, ok := seen[roll.Character]; !ok {
			seen[roll.Character] = struct{}{}
			data.Characters = append(data.Characters, roll.Character)
		}
	}

	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if tm := ParseTurnMarker(line); tm != nil {
			flush()
			data.Entries = append(data.Entries, Entry{Kind: KindTurn, Turn: tm, Raw: line})
			continue
		}

		// UI artefacts that terminate the current block.
		if line == "⏪ POTEOT ⏩" || strings.HasPrefix(line, "Round ") || line == "Reset ↺" || line == ":" {
			flush()
			continue
		}

		if len(current) > 0 && isBlockHeader(line) {
			flush()
		}
		current = append(current, line)
	}
	flush()

	return data
}

// CharacterStats summarises one character's rolls.
type CharacterStats struct {
	Character string
	Rolls     int
	Highest   int
	Lowest    int
	Average   float64
}

// Stats aggregates per-character roll statistics, ordered by roll count
// descending (ties by name).
func (d Data) Stats() []CharacterStats {
	byChar := map[string]*CharacterStats{}
	for _, e := range d.Entries {
		if e.Kind != KindRoll {
			continue
		}
		s, ok := byChar[e.Roll.Character]
		if !ok {
			s = &CharacterStats{Character: e.Roll.Character, Lowest: e.Roll.Result}
			byChar[e.Roll.Character] = s
		}
		s.Rolls++
		s.Average += float64(e.Roll.Result)
		if e.Roll.Result > s.Highest {
			s.Highest = e.Roll.Result
		}
		if e.Roll.Result < s.Lowest {
			s.Lowest = e.Roll.Result
		}
	}

	stats := make([]CharacterStats, 0, len(byChar))
	for _, s := range byChar {
		s.Average /= float64(s.Rolls)
		stats = append(stats, *s)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Rolls != stats[j].Rolls {
			return stats[i].Rolls > stats[j].Rolls
		}
		return stats[i].Character < stats[j].Character
	})
	return stats
}
