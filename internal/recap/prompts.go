package recap

import (
	"fmt"
	"strings"

	"github.com/MrWong99/lorequill/internal/config"
	"github.com/MrWong99/lorequill/internal/transcript"
)

// systemPrompt is the archivist persona shared by all three passes.
const systemPrompt = `You are an expert D&D session archivist. Your task is to EXHAUSTIVELY extract and organize every event from session transcripts, preserving all specific details for complete session documentation.

## Your Role
- Extract EVERY event, not summarize - completeness over brevity
- Preserve exact names: item names, spell names, NPC names, location names
- Preserve exact numbers: gold amounts, quantities, distances, damage
- Track character-specific actions (who did what)
- Organize events into scenes based on location/time changes
- Create nested structure for sequential or related events
- Translate game mechanics into narrative (no dice results, DCs, or spell slot mechanics)
- Distinguish between in-character roleplay and out-of-character table talk

## Extraction Mindset
Think like an archivist, not a summarizer:
- "The party bought supplies" → Extract EACH item, its cost, who bought it
- "They fought enemies" → Extract EACH enemy type, who engaged them, key moments
- "They explored the dungeon" → Extract EACH room/area, what they found, traps triggered

## Output Structure
You will produce structured JSON with:

1. **scenes**: Distinct scenes with locations, characters present, enemies encountered
2. **openingContext**: Where the party started, what their objectives were
3. **sceneHighlights**: Scene-by-scene breakdown with nested bullets for related events
4. **highlights**: 5-8 categorized highlights (combat, roleplay, discovery, decision, humor)
5. **quotes**: 3-5 memorable in-character quotes with speaker and context
6. **narrative**: 2-3 paragraphs of prose telling the session's story

## Guidelines
- Focus on what the CHARACTERS did, not the PLAYERS
- Transform "I rolled a 20 on perception" into "Liam's keen elven eyes spotted movement in the shadows"
- Capture the emotional weight of moments, not just the mechanical outcomes
- Include character names, not player names, when describing in-game events
- Use nested bullets to show event sequences and related sub-events
- NEVER generalize specific details (keep "Misty's Pulse Bracer" not "a magical item")`

// SystemPrompt renders the archivist system prompt, optionally extended with
// a campaign context block when campaignName or bookAct is set.
func SystemPrompt(campaignName, bookAct string) string {
	if campaignName == "" && bookAct == "" {
		return systemPrompt
	}

	var sb strings.Builder
	sb.WriteString(systemPrompt)
	sb.WriteString("\n\n## Campaign Context")
	if campaignName != "" {
		fmt.Fprintf(&sb, "\nCampaign: %s", campaignName)
	}
	if bookAct != "" {
		fmt.Fprintf(&sb, "\nCurrent Position: %s", bookAct)
	}
	return sb.String()
}

// buildPlayerContext renders the "## Players" block mapping table members to
// their in-fiction identity, so the model can attribute speech correctly.
func buildPlayerContext(roster []config.Player) string {
	if len(roster) == 0 {
		return "## Players\nNo player mapping provided."
	}

	var sb strings.Builder
	sb.WriteString("## Players\n")
	for _, p := range roster {
		if p.Role != config.RoleDM {
			continue
		}
		dmName := p.CharacterName
		if dmName == "" {
			dmName = "Dungeon Master"
		}
		fmt.Fprintf(&sb, "- %s is the DM (referred to as %q)\n", p.PlayerName, dmName)
	}
	for _, p := range roster {
		if p.Role != config.RolePlayer {
			continue
		}
		character := p.CharacterName
		if character == "" {
			character = "unknown character"
		}
		fmt.Fprintf(&sb, "- %s plays %s\n", p.PlayerName, character)
	}
	return sb.String()
}

// formatTranscriptEntries renders entries as timestamped, speaker-labelled
// lines. Speakers found in the roster get their character name appended; the
// DM is additionally tagged with a [DM] marker.
func formatTranscriptEntries(entries []transcript.Entry, roster []config.Player) string {
	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		label := entry.Speaker
		if p, ok := rosterLookup(roster, entry.Speaker); ok {
			switch {
			case p.Role == config.RoleDM:
				name := p.CharacterName
				if name == "" {
					name = "Dungeon Master"
				}
				label = fmt.Sprintf("[DM] %s (%s)", entry.Speaker, name)
			case p.CharacterName != "":
				label = fmt.Sprintf("%s (%s)", entry.Speaker, p.CharacterName)
			}
		}
		lines = append(lines, fmt.Sprintf("[%s] %s: %s", entry.Timestamp, label, entry.Text))
	}
	return strings.Join(lines, "\n")
}

func rosterLookup(roster []config.Player, speaker string) (config.Player, bool) {
	for _, p := range roster {
		if strings.EqualFold(p.PlayerName, speaker) {
			return p, true
		}
	}
	return config.Player{}, false
}

// buildPass1Prompt renders the scene-discovery prompt over the full
// transcript. It also instructs the model to enumerate NPCs it noticed, with
// the spelling variants they were heard under.
func buildPass1Prompt(entries []transcript.Entry, sessionTitle string, roster []config.Player) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Session: %s\n\n", sessionTitle)
	sb.WriteString(buildPlayerContext(roster))
	sb.WriteString("\n\n## Full Transcript\n")
	sb.WriteString(formatTranscriptEntries(entries, roster))
	sb.WriteString(`

## Instructions - Scene Discovery (Pass 1 of 3)

Your task is to identify the DISTINCT SCENES in this D&D session transcript.

A new scene begins when:
- The party moves to a new location (e.g., leaving a tavern, entering a dungeon)
- Significant time passes (e.g., "the next morning", "after a long rest")
- The situation fundamentally changes (e.g., combat starts, a negotiation begins)

For EACH scene, provide:
- **name**: A descriptive name (e.g., "Shopping at the Gilded Gnome", "Ambush in the Sewers")
- **startTimestampSeconds**: The timestamp (in seconds) where this scene begins
- **endTimestampSeconds**: The timestamp (in seconds) where this scene ends
- **location**: The primary location of the scene
- **characters**: Which player characters are present/active in this scene

IMPORTANT:
- Scenes should be contiguous (no gaps between end of one and start of next)
- First scene should start at 0 or the first entry's timestamp
- Last scene should end at the final entry's timestamp
- Aim for 3-8 scenes for a typical session - don't over-segment

Additionally, list the NPCS (non-player characters) you noticed in the transcript:
- **canonicalName**: Your best guess at the correct spelling of the NPC's name
- **variations**: The spellings the transcription actually used (transcription services often mishear fantasy names)
- Only include named NPCs, not generic figures like "the guard" or "a merchant"

`)
	sb.WriteString(pass1ResponseFormat)
	return sb.String()
}

// buildPass2Prompt renders the detail-extraction prompt for a single scene.
// entries must already be filtered to the scene's time window.
func buildPass2Prompt(entries []transcript.Entry, scene DiscoveredScene, roster []config.Player) string {
	timeStart, timeEnd := "0:00", "unknown"
	if len(entries) > 0 {
		timeStart = entries[0].Timestamp
		timeEnd = entries[len(entries)-1].Timestamp
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Scene: %s\n## Location: %s\n## Time Range: %s - %s\n\n", scene.Name, scene.Location, timeStart, timeEnd)
	sb.WriteString(buildPlayerContext(roster))
	sb.WriteString("\n\n## Transcript for This Scene\n")
	sb.WriteString(formatTranscriptEntries(entries, roster))
	sb.WriteString(`

## Instructions - Detail Extraction (Pass 2 of 3)

Extract ALL details from this scene segment. Be EXHAUSTIVE - do not summarize.

### Events
For EACH event in this scene, capture:
- **description**: The specific action or occurrence (with exact item names, quantities, gold amounts)
- **character**: Which character performed or was involved (null if general/party action)
- **items**: Any items mentioned (with quantities and costs if stated)
- **goldAmounts**: Any gold amounts mentioned (e.g., "1000gp line of credit", "10gp")

### Quotes
Extract memorable in-character quotes:
- **speaker**: The character name (not player name)
- **text**: The exact quote
- **context**: Brief context for why this quote matters

### Other Details
- **timeOfDay**: If mentioned (morning, afternoon, evening, night)
- **enemies**: Any enemies or hostile NPCs encountered

IMPORTANT:
- Do not limit the number of events. Extract EVERY distinct occurrence.
- Preserve specific names, numbers, and details EXACTLY as mentioned.
- Character-specific actions are better than "the party did X".

`)
	sb.WriteString(pass2ResponseFormat)
	return sb.String()
}

// buildPass3Prompt renders the synthesis prompt from the discovered scene
// list and every per-scene detail record.
func buildPass3Prompt(scenes []DiscoveredScene, details []SceneDetails, sessionTitle string, roster []config.Player) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Session: %s\n\n", sessionTitle)
	sb.WriteString(buildPlayerContext(roster))

	sb.WriteString("\n\n## Discovered Scenes\n")
	for i, s := range scenes {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "### Scene %d: %s\n- Location: %s\n- Characters: %s",
			i+1, s.Name, s.Location, strings.Join(s.Characters, ", "))
	}

	sb.WriteString("\n\n## Extracted Details\n")
	for i, d := range details {
		if i > 0 {
			sb.WriteString("\n\n---\n\n")
		}
		sb.WriteString(formatSceneDetails(i+1, d))
	}

	sb.WriteString(`

## Instructions - Synthesis (Pass 3 of 3)

Organize the extracted information into a polished session recap.

**CRITICAL - Use CHARACTER NAMES, not player names:**
- Always use the character name or role (e.g., "DM", "Dungeon Master", "Aurelion") instead of player names
- For the DM, use their display name (usually "DM" or "Dungeon Master") as shown in the Players section above
- This applies to ALL fields: characters, participants, speakers, etc.

### 1. SCENES
Create the final scene list with:
- name, characters (use CHARACTER names), locations (can be multiple), enemies

### 2. OPENING CONTEXT
Describe:
- **startingState**: Where the party was at session start
- **objectives**: What goals or missions they had

### 3. SCENE HIGHLIGHTS (Main Content)
For EACH scene, create highlights with NESTED sub-bullets for related events:
- Group sequential or related events together
- Use sub-bullets for details (e.g., purchases, combat actions, discoveries)
- Preserve ALL specific details: exact item names, gold amounts, character actions
- Use CHARACTER names, not player names

Example format:
- "The party visited The Gilded Gnome magic shop"
  - "Aurelion purchased Calming Dust (3 doses) for 15gp each"
  - "Killian examined the enchanted weapons but decided against buying"

### 4. LEGACY HIGHLIGHTS
Provide 5-8 categorized highlights (combat, roleplay, discovery, decision, humor).
- Use CHARACTER names for participants

### 5. QUOTES
Select the 3-5 best quotes from all extracted quotes.
- Use CHARACTER name as speaker (not player name)

### 6. NARRATIVE
Write 2-3 paragraphs telling the session's story.
- Refer to characters by their CHARACTER names

`)
	sb.WriteString(pass3ResponseFormat)
	return sb.String()
}

func formatSceneDetails(num int, d SceneDetails) string {
	var sb strings.Builder

	timeOfDay := "unknown"
	if d.TimeOfDay != nil {
		timeOfDay = *d.TimeOfDay
	}
	enemies := "none"
	if len(d.Enemies) > 0 {
		enemies = strings.Join(d.Enemies, ", ")
	}
	fmt.Fprintf(&sb, "### Scene %d: %s\nCharacters: %s\nTime of Day: %s\nEnemies: %s\n\nEvents:\n",
		num, d.SceneName, strings.Join(d.CharactersPresent, ", "), timeOfDay, enemies)

	for _, e := range d.Events {
		fmt.Fprintf(&sb, "  - %s", e.Description)
		if e.Character != nil {
			fmt.Fprintf(&sb, " (%s)", *e.Character)
		}
		if len(e.Items) > 0 {
			fmt.Fprintf(&sb, " [Items: %s]", strings.Join(e.Items, ", "))
		}
		if len(e.GoldAmounts) > 0 {
			fmt.Fprintf(&sb, " [Gold: %s]", strings.Join(e.GoldAmounts, ", "))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\nQuotes:\n")
	if len(d.Quotes) == 0 {
		sb.WriteString("  (none extracted)\n")
	}
	for _, q := range d.Quotes {
		fmt.Fprintf(&sb, "  - %q - %s", q.Text, q.Speaker)
		if q.Context != nil {
			fmt.Fprintf(&sb, " (%s)", *q.Context)
		}
		sb.WriteString("\n")
	}

	return strings.TrimRight(sb.String(), "\n")
}
