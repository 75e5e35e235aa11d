package recap

import "github.com/MrWong99/lorequill/internal/transcript"

// entriesInScene filters entries to those whose timestamp falls inside the
// scene's window. Both boundaries are inclusive, so a boundary entry shared
// by two contiguous scenes contributes to both.
func entriesInScene(entries []transcript.Entry, scene DiscoveredScene) []transcript.Entry {
	var out []transcript.Entry
	for _, e := range entries {
		if e.TimestampSeconds >= scene.StartTimestampSeconds && e.TimestampSeconds <= scene.EndTimestampSeconds {
			out = append(out, e)
		}
	}
	return out
}
