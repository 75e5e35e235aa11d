package transcript

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/MrWong99/lorequill/internal/config"
)

// NormalizationResult is the output of [Normalize]: a rewritten transcript and
// a record of which substitutions were applied. The mapping records exist for
// diagnostics and progress messages only — nothing downstream depends on them.
type NormalizationResult struct {
	// Transcript is the rewritten transcript. The input is never mutated.
	Transcript Data

	// SpeakerMappings maps each original speaker label that was rewritten to
	// its canonical player name.
	SpeakerMappings map[string]string

	// NPCMappings maps each NPC alias that matched somewhere in the entry
	// text to its canonical NPC name.
	NPCMappings map[string]string
}

// npcReplacer performs single-pass, case-insensitive NPC alias replacement
// with Unicode-aware word-boundary guards.
type npcReplacer struct {
	re        *regexp.Regexp
	canonical map[string]string // lowercased alias -> canonical name
}

// newNPCReplacer builds one alternation over all aliases, longest alias
// first. Go's regexp prefers earlier alternatives at the same start position,
// so the ordering gives longer aliases precedence over shorter ones that
// could match the same span. Returns nil when no NPC has any alias.
func newNPCReplacer(npcs []config.NPC) *npcReplacer {
	type pair struct{ alias, canonical string }
	var pairs []pair
	for _, npc := range npcs {
		for _, alias := range npc.Aliases {
			if strings.TrimSpace(alias) == "" {
				continue
			}
			pairs = append(pairs, pair{alias: alias, canonical: npc.Name})
		}
	}
	if len(pairs) == 0 {
		return nil
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		return len(pairs[i].alias) > len(pairs[j].alias)
	})

	canonical := make(map[string]string, len(pairs))
	quoted := make([]string, 0, len(pairs))
	for _, p := range pairs {
		key := strings.ToLower(p.alias)
		if _, ok := canonical[key]; !ok {
			canonical[key] = p.canonical
		}
		quoted = append(quoted, regexp.QuoteMeta(p.alias))
	}

	return &npcReplacer{
		re:        regexp.MustCompile(`(?i)(` + strings.Join(quoted, "|") + `)`),
		canonical: canonical,
	}
}

// boundedAt reports whether the match at [start,end) in text sits on letter
// boundaries: the adjacent runes on both sides must not be letters. This is
// the RE2-compatible stand-in for lookaround word guards, so an alias "Tom"
// never matches inside "Tomás" or "Tommy".
func boundedAt(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if unicode.IsLetter(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// alreadyCanonical reports whether the alias match at [start,end) is in fact
// part of an existing occurrence of canonical (e.g. the alias "Priyanella"
// inside an already-normalised "Princess Priyanella"). Replacing such a match
// would duplicate the canonical prefix/suffix on every run; skipping it keeps
// normalisation idempotent.
func alreadyCanonical(text string, start, end int, canonical string) bool {
	match := text[start:end]
	if match == canonical {
		// Replacement would be a no-op.
		return true
	}
	if strings.EqualFold(match, canonical) {
		// Same name, different casing — replacing is a pure case fix and
		// stays idempotent.
		return false
	}

	k := indexFold(canonical, match)
	if k < 0 {
		return false
	}
	from := start - k
	to := from + len(canonical)
	if from < 0 || to > len(text) {
		return false
	}
	return strings.EqualFold(text[from:to], canonical) && boundedAt(text, from, to)
}

// indexFold returns the byte index of the first case-insensitive occurrence
// of substr in s, or -1. Both arguments are expected to be plain name text;
// the fold is the simple ToLower fold, matching how alias keys are built.
func indexFold(s, substr string) int {
	return strings.Index(strings.ToLower(s), strings.ToLower(substr))
}

// replace rewrites all bounded alias occurrences in text to their canonical
// names in a single left-to-right pass and records applied mappings into
// applied. Replaced text is never rescanned, so a canonical name containing
// another alias cannot cascade within one call.
func (r *npcReplacer) replace(text string, applied map[string]string) string {
	matches := r.re.FindAllStringIndex(text, -1)
	if matches == nil {
		return text
	}

	var sb strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		match := text[start:end]
		canonical, ok := r.canonical[strings.ToLower(match)]
		if !ok || !boundedAt(text, start, end) || alreadyCanonical(text, start, end, canonical) {
			continue
		}
		sb.WriteString(text[last:start])
		sb.WriteString(canonical)
		last = end
		applied[strings.ToLower(match)] = canonical
	}
	if last == 0 {
		return text
	}
	sb.WriteString(text[last:])
	return sb.String()
}

// buildSpeakerAliasMap maps each lowercased player alias to the canonical
// player name.
func buildSpeakerAliasMap(players []config.Player) map[string]string {
	m := map[string]string{}
	for _, p := range players {
		for _, alias := range p.Aliases {
			if strings.TrimSpace(alias) == "" {
				continue
			}
			m[strings.ToLower(alias)] = p.PlayerName
		}
	}
	return m
}

// Normalize rewrites transcript speaker labels and in-text NPC mentions to
// their canonical names:
//
//  1. A speaker whose label matches a player alias (case-insensitive) is
//     relabelled with the canonical player name.
//  2. Every bounded occurrence of an NPC alias inside entry text is replaced
//     with the canonical NPC name.
//
// Normalize is pure and synchronous: the input Data is not modified, and the
// returned transcript carries a speaker list recomputed from the rewritten
// entries. Running Normalize on its own output with the same configs yields
// no further changes.
func Normalize(data Data, players []config.Player, npcs []config.NPC) NormalizationResult {
	speakerAliases := buildSpeakerAliasMap(players)
	replacer := newNPCReplacer(npcs)

	speakerMappings := map[string]string{}
	npcMappings := map[string]string{}

	entries := make([]Entry, len(data.Entries))
	for i, entry := range data.Entries {
		normalized := entry

		if canonical, ok := speakerAliases[strings.ToLower(entry.Speaker)]; ok && canonical != entry.Speaker {
			speakerMappings[entry.Speaker] = canonical
			normalized.Speaker = canonical
		}

		if replacer != nil {
			normalized.Text = replacer.replace(entry.Text, npcMappings)
		}

		entries[i] = normalized
	}

	speakers := make([]string, 0, len(data.Speakers))
	seen := map[string]struct{}{}
	for _, e := range entries {
		if _, ok := seen[e.Speaker]; ok {
			continue
		}
		seen[e.Speaker] = struct{}{}
		speakers = append(speakers, e.Speaker)
	}

	out := data
	out.Entries = entries
	out.Speakers = speakers

	return NormalizationResult{
		Transcript:      out,
		SpeakerMappings: speakerMappings,
		NPCMappings:     npcMappings,
	}
}
