package transcript

import (
	"regexp"
	"strings"
	"time"
)

var (
	// "Speaker Name   M:SS" — speaker label separated from the timestamp by
	// two or more spaces, timestamp at end of line.
	speakerLineRe = regexp.MustCompile(`^(.+?)\s{2,}(\d+:\d+(?::\d+)?)\s*$`)

	// DOCX export variant: timestamp immediately followed by the first text
	// sentence on the same line.
	speakerInlineRe = regexp.MustCompile(`^(.+?)\s{2,}(\d+:\d+(?::\d+)?)([A-Z].*)$`)

	durationHoursRe   = regexp.MustCompile(`(\d+)h`)
	durationMinutesRe = regexp.MustCompile(`(\d+)m`)
	durationSecondsRe = regexp.MustCompile(`(\d+)s`)

	// Trailing time-of-day on the header date line, e.g. ", 1:58AM".
	headerTimeRe = regexp.MustCompile(`(?i),\s*\d+:\d+[AP]M$`)
)

// dateLayouts are the header date formats seen in Teams transcript exports.
var dateLayouts = []string{
	"January 2, 2006",
	"Jan 2, 2006",
	"2006-01-02",
	"02.01.2006",
}

// speakerLine is one matched "Speaker   M:SS" header line.
type speakerLine struct {
	speaker    string
	timestamp  string
	inlineText string
}

// parseSpeakerLine matches line against the two supported entry-header
// grammars. Returns nil when the line is ordinary text.
func parseSpeakerLine(line string) *speakerLine {
	if m := speakerLineRe.FindStringSubmatch(line); m != nil {
		return &speakerLine{speaker: strings.TrimSpace(m[1]), timestamp: m[2]}
	}
	if m := speakerInlineRe.FindStringSubmatch(line); m != nil {
		return &speakerLine{speaker: strings.TrimSpace(m[1]), timestamp: m[2], inlineText: m[3]}
	}
	return nil
}

// parseHeaderDate parses a header date line like "January 12, 2026, 1:58AM".
// The trailing time portion is stripped before parsing. Returns the zero time
// when no layout matches.
func parseHeaderDate(s string) time.Time {
	cleaned := strings.TrimSpace(headerTimeRe.ReplaceAllString(strings.TrimSpace(s), ""))
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Parse converts a Teams transcript export into structured [Data].
//
// The expected layout is three header lines (title, date, duration) followed
// by entries, each introduced by a speaker line and continued by any number
// of plain text lines. "... started transcription" notices are skipped.
// Entries whose accumulated text is empty are dropped.
func Parse(content string) Data {
	if strings.TrimSpace(content) == "" {
		return Data{}
	}

	lines := strings.Split(content, "\n")

	var meta Metadata
	meta.Title = headerLine(lines, 0)
	meta.Date = parseHeaderDate(headerLine(lines, 1))
	meta.Duration = headerLine(lines, 2)
	meta.DurationSeconds = ParseDuration(meta.Duration)

	var (
		entries  []Entry
		speakers []string
		seen     = map[string]struct{}{}
		current  *Entry
		text     []string
	)

	flush := func() {
		if current == nil {
			return
		}
		current.Text = strings.TrimSpace(strings.Join(text, "\n"))
		if current.Text != "" {
			entries = append(entries, *current)
		}
		current = nil
	}

	for i := 3; i < len(lines); i++ {
		line := lines[i]

		if strings.Contains(line, "started transcription") {
			continue
		}

		if sl := parseSpeakerLine(line); sl != nil {
			flush()
			current = &Entry{
				Speaker:          sl.speaker,
				Timestamp:        sl.timestamp,
				TimestampSeconds: ParseTimestamp(sl.timestamp),
			}
			if _, ok := seen[sl.speaker]; !ok {
				seen[sl.speaker] = struct{}{}
				speakers = append(speakers, sl.speaker)
			}
			text = text[:0]
			if sl.inlineText != "" {
				text = append(text, sl.inlineText)
			}
			continue
		}

		if current != nil && strings.TrimSpace(line) != "" {
			text = append(text, strings.TrimSpace(line))
		}
	}
	flush()

	return Data{Metadata: meta, Entries: entries, Speakers: speakers}
}

func headerLine(lines []string, i int) string {
	if i < len(lines) {
		return strings.TrimSpace(lines[i])
	}
	return ""
}
