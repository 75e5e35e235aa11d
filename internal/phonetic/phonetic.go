// Package phonetic matches NPC names detected in a session transcript
// against the configured NPC list, so that misheard spellings can be folded
// into an existing entry's aliases instead of creating a duplicate NPC.
//
// Matching is two-staged: Double Metaphone codes pre-filter candidates that
// sound alike, and Jaro-Winkler similarity on the written forms ranks them.
// A candidate that sounds alike is accepted at a lower similarity threshold
// than one that merely looks alike.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/lorequill/internal/config"
	"github.com/MrWong99/lorequill/internal/recap"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for accepting a
// phonetically-aligned candidate. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for accepting a
// candidate with no phonetic alignment. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Matcher scores name similarity. Read-only after construction and safe for
// concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a [Matcher] with the default thresholds.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match returns the entry from known most similar to name, with its
// similarity score. matched is false when no entry clears its threshold;
// name is then returned unchanged with score 0.
func (m *Matcher) Match(name string, known []string) (best string, score float64, matched bool) {
	name = strings.TrimSpace(name)
	if name == "" || len(known) == 0 {
		return name, 0, false
	}

	nameLower := strings.ToLower(name)
	nameCodes := metaphoneCodes(nameLower)

	var bestPhonetic bool
	for _, candidate := range known {
		candLower := strings.ToLower(strings.TrimSpace(candidate))
		if candLower == "" {
			continue
		}
		if strings.EqualFold(nameLower, candLower) {
			return candidate, 1, true
		}

		soundsAlike := codesOverlap(nameCodes, metaphoneCodes(candLower))
		jw := similarity(nameLower, candLower)

		switch {
		case soundsAlike && jw >= m.phoneticThreshold:
			if !bestPhonetic || jw > score {
				best, score, bestPhonetic, matched = candidate, jw, true, true
			}
		case !soundsAlike && !bestPhonetic && jw >= m.fuzzyThreshold && jw > score:
			best, score, matched = candidate, jw, true
		}
	}

	if !matched {
		return name, 0, false
	}
	return best, score, true
}

// Suggestion proposes folding a detected NPC into a configured one.
type Suggestion struct {
	// Detected is the name the model reported.
	Detected recap.DetectedNPC

	// ConfiguredName is the existing NPC entry it likely refers to.
	ConfiguredName string

	// Score is the Jaro-Winkler similarity that produced the match.
	Score float64
}

// Suggest compares every detected NPC (canonical name and its variations)
// against the configured NPC list and returns one suggestion per detected
// NPC that resembles an existing entry. Detected NPCs that already match an
// entry exactly, case-insensitively, are skipped — there is nothing to fold.
func (m *Matcher) Suggest(detected []recap.DetectedNPC, known []config.NPC) []Suggestion {
	names := make([]string, 0, len(known))
	for _, npc := range known {
		names = append(names, npc.Name)
	}

	var out []Suggestion
	for _, d := range detected {
		if exactKnown(d.CanonicalName, known) {
			continue
		}

		var best Suggestion
		for _, form := range append([]string{d.CanonicalName}, d.Variations...) {
			if name, score, ok := m.Match(form, names); ok && score > best.Score {
				best = Suggestion{Detected: d, ConfiguredName: name, Score: score}
			}
		}
		if best.ConfiguredName != "" {
			out = append(out, best)
		}
	}
	return out
}

func exactKnown(name string, known []config.NPC) bool {
	for _, npc := range known {
		if strings.EqualFold(npc.Name, name) {
			return true
		}
		for _, alias := range npc.Aliases {
			if strings.EqualFold(alias, name) {
				return true
			}
		}
	}
	return false
}

// metaphoneCodes returns the union of Double Metaphone codes over the words
// of s. Empty codes are excluded.
func metaphoneCodes(s string) map[string]struct{} {
	codes := make(map[string]struct{}, 4)
	for _, word := range strings.Fields(s) {
		primary, secondary := matchr.DoubleMetaphone(word)
		if primary != "" {
			codes[primary] = struct{}{}
		}
		if secondary != "" {
			codes[secondary] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// similarity is the best Jaro-Winkler score across the full strings, the
// space-stripped strings, and every cross-pair of words. The variants catch
// transcriptions that split or join name parts ("elder nacks" / "Eldrinax").
func similarity(a, b string) float64 {
	score := matchr.JaroWinkler(a, b, false)

	aw, bw := strings.Fields(a), strings.Fields(b)
	if len(aw) > 1 || len(bw) > 1 {
		if s := matchr.JaroWinkler(strings.Join(aw, ""), strings.Join(bw, ""), false); s > score {
			score = s
		}
	}
	for _, x := range aw {
		for _, y := range bw {
			if s := matchr.JaroWinkler(x, y, false); s > score {
				score = s
			}
		}
	}
	return score
}
