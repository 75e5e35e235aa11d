package dicelog_test

import (
	"testing"

	"github.com/MrWong99/lorequill/internal/dicelog"
)

const sampleLog = `Round 1
Liam, it's now your turn!
Liam AC:15 PP:15 DC:13:
Liam
Perception Check
18
Details
Liam's turn is done.
Storyteller (GM):
rolling 1d20+4
(14)+4=18
Kira AC:17 PP:12 DC:14:
Kira
Athletics Check
7
Liam AC:15 PP:15 DC:13:
Liam
Longbow Attack
22
Reset ↺
`

func TestParse_RollsAndTurns(t *testing.T) {
	t.Parallel()

	data := dicelog.Parse(sampleLog)

	if data.RollCount != 4 {
		t.Fatalf("RollCount = %d, want 4", data.RollCount)
	}

	var turns, rolls int
	for _, e := range data.Entries {
		switch e.Kind {
		case dicelog.KindTurn:
			turns++
		case dicelog.KindRoll:
			rolls++
		}
	}
	if turns != 2 {
		t.Errorf("turn markers = %d, want 2", turns)
	}
	if rolls != 4 {
		t.Errorf("roll entries = %d, want 4", rolls)
	}

	wantChars := []string{"Liam", "Storyteller (GM)", "Kira"}
	if len(data.Characters) != len(wantChars) {
		t.Fatalf("Characters = %v, want %v", data.Characters, wantChars)
	}
	for i := range wantChars {
		if data.Characters[i] != wantChars[i] {
			t.Errorf("Characters[%d] = %q, want %q", i, data.Characters[i], wantChars[i])
		}
	}
}

func TestParse_PlayerRoll(t *testing.T) {
	t.Parallel()

	data := dicelog.Parse(sampleLog)

	var first *dicelog.Roll
	for _, e := range data.Entries {
		if e.Kind == dicelog.KindRoll {
			first = e.Roll
			break
		}
	}
	if first == nil {
		t.Fatal("no roll entries parsed")
	}
	if first.Character != "Liam" || first.RollType != "Perception Check" || first.Result != 18 {
		t.Errorf("first roll = %+v, want Liam/Perception Check/18", first)
	}
}

func TestParse_GMRoll(t *testing.T) {
	t.Parallel()

	data := dicelog.Parse(sampleLog)

	var gm *dicelog.Roll
	for _, e := range data.Entries {
		if e.Kind == dicelog.KindRoll && e.Roll.Character == "Storyteller (GM)" {
			gm = e.Roll
			break
		}
	}
	if gm == nil {
		t.Fatal("GM roll not parsed")
	}
	if gm.RollType != "GM Roll" || gm.Result != 18 {
		t.Errorf("GM roll = %+v, want GM Roll/18", gm)
	}
}

func TestParseTurnMarker(t *testing.T) {
	t.Parallel()

	cases := []struct {
		line string
		want string
	}{
		{"Liam, it's now your turn!", "Liam"},
		{"Kira's turn is done.", "Kira"},
		{"rolling 1d20+4", ""},
	}
	for _, tc := range cases {
		tm := dicelog.ParseTurnMarker(tc.line)
		if tc.want == "" {
			if tm != nil {
				t.Errorf("ParseTurnMarker(%q) = %+v, want nil", tc.line, tm)
			}
			continue
		}
		if tm == nil || tm.Character != tc.want {
			t.Errorf("ParseTurnMarker(%q) = %+v, want character %q", tc.line, tm, tc.want)
		}
	}
}

func TestParseRollBlock_Unrecognised(t *testing.T) {
	t.Parallel()

	blocks := []string{
		"just a chat message\nsaying hello\nand more",
		"Liam AC:15:\nLiam",
		"",
	}
	for _, b := range blocks {
		if roll := dicelog.ParseRollBlock(b); roll != nil {
			t.Errorf("ParseRollBlock(%q) = %+v, want nil", b, roll)
		}
	}
}

func TestStats(t *testing.T) {
	t.Parallel()

	data := dicelog.Parse(sampleLog)
	stats := data.Stats()

	if len(stats) != 3 {
		t.Fatalf("len(stats) = %d, want 3", len(stats))
	}

	// Liam rolled twice (18, 22) and sorts first by roll count.
	liam := stats[0]
	if liam.Character != "Liam" {
		t.Fatalf("stats[0].Character = %q, want Liam", liam.Character)
	}
	if liam.Rolls != 2 || liam.Highest != 22 || liam.Lowest != 18 {
		t.Errorf("Liam stats = %+v, want Rolls=2 Highest=22 Lowest=18", liam)
	}
	if liam.Average != 20 {
		t.Errorf("Liam average = %f, want 20", liam.Average)
	}
}

func TestParse_Empty(t *testing.T) {
	t.Parallel()

	data := dicelog.Parse("  \n ")
	if len(data.Entries) != 0 || data.RollCount != 0 {
		t.Errorf("Parse(blank) = %+v, want empty", data)
	}
}
