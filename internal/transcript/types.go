// Package transcript models parsed session transcripts and provides the
// Teams-export text parser and the pre-generation name normaliser.
package transcript

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Entry is a single speaker turn in the transcript. Entries are ordered;
// insertion order equals chronological order. Entries are treated as
// immutable once parsed — the normaliser produces a new sequence rather than
// mutating in place.
type Entry struct {
	// Speaker is the speaker label as transcribed (or canonicalised).
	Speaker string

	// Timestamp is the display timestamp, e.g. "2:03" or "1:30:00".
	Timestamp string

	// TimestampSeconds is Timestamp parsed to seconds from session start.
	TimestampSeconds int

	// Text is the spoken text. May span multiple lines.
	Text string
}

// Metadata holds the transcript header fields.
type Metadata struct {
	// Title is the session title from the transcript header.
	Title string

	// Date is the session date. Zero when the header date could not be parsed.
	Date time.Time

	// Duration is the raw duration string, e.g. "2h 14m 58s".
	Duration string

	// DurationSeconds is Duration parsed to seconds.
	DurationSeconds int
}

// Data is a fully parsed transcript.
type Data struct {
	Metadata Metadata

	// Entries is the ordered sequence of speaker turns.
	Entries []Entry

	// Speakers is the deduplicated list of speaker labels, in order of first
	// appearance.
	Speakers []string
}

// ParseTimestamp converts a display timestamp like "0:04", "2:03" or
// "1:30:00" to seconds. Malformed input yields 0.
func ParseTimestamp(ts string) int {
	parts := strings.Split(ts, ":")
	nums := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0
		}
		nums = append(nums, n)
	}
	switch len(nums) {
	case 2: // mm:ss
		return nums[0]*60 + nums[1]
	case 3: // hh:mm:ss
		return nums[0]*3600 + nums[1]*60 + nums[2]
	}
	return 0
}

// ParseDuration converts a duration string like "2h 14m 58s" to seconds.
// Missing components contribute zero.
func ParseDuration(d string) int {
	total := 0
	if m := durationHoursRe.FindStringSubmatch(d); m != nil {
		n, _ := strconv.Atoi(m[1])
		total += n * 3600
	}
	if m := durationMinutesRe.FindStringSubmatch(d); m != nil {
		n, _ := strconv.Atoi(m[1])
		total += n * 60
	}
	if m := durationSecondsRe.FindStringSubmatch(d); m != nil {
		n, _ := strconv.Atoi(m[1])
		total += n
	}
	return total
}

// FormatTimestamp renders seconds as "m:ss" or "h:mm:ss" for display.
func FormatTimestamp(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
