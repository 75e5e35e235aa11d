package recap_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/lorequill/internal/config"
	"github.com/MrWong99/lorequill/internal/recap"
	"github.com/MrWong99/lorequill/internal/transcript"
	"github.com/MrWong99/lorequill/pkg/provider/llm"
	"github.com/MrWong99/lorequill/pkg/provider/llm/mock"
)

var roster = []config.Player{
	{PlayerName: "Micco Fay", CharacterName: "Dungeon Master", Role: config.RoleDM},
	{PlayerName: "Samuel Frost", CharacterName: "Aurelion", Role: config.RolePlayer},
}

// passOf classifies a prompt by the pass marker embedded in its instructions.
func passOf(req llm.CompletionRequest) int {
	prompt := req.Messages[0].Content
	switch {
	case strings.Contains(prompt, "(Pass 1 of 3)"):
		return 1
	case strings.Contains(prompt, "(Pass 2 of 3)"):
		return 2
	case strings.Contains(prompt, "(Pass 3 of 3)"):
		return 3
	}
	return 0
}

var sceneHeaderRe = regexp.MustCompile(`## Scene: (.+)`)

// scenePayload answers a pass-2 prompt with details echoing the scene name
// from the prompt header.
func scenePayload(prompt string) string {
	name := "unknown"
	if m := sceneHeaderRe.FindStringSubmatch(prompt); m != nil {
		name = strings.TrimSpace(m[1])
	}
	payload, _ := json.Marshal(recap.SceneDetails{
		SceneName:         name,
		CharactersPresent: []string{"Aurelion"},
		Events:            []recap.SceneEvent{{Description: "something happened in " + name}},
	})
	return string(payload)
}

const pass3Payload = `{
  "scenes": [{"name": "Final Scene", "characters": ["Aurelion"], "locations": ["Daggerford"], "enemies": []}],
  "openingContext": {"startingState": "At the gates of Daggerford", "objectives": ["Find the smith"]},
  "sceneHighlights": [],
  "highlights": [{"category": "combat", "description": "A fight broke out"}],
  "quotes": [],
  "narrative": "The party arrived and things happened."
}`

func pass1Payload(scenes []recap.DiscoveredScene, npcs []recap.DetectedNPC) string {
	payload, _ := json.Marshal(struct {
		Scenes []recap.DiscoveredScene `json:"scenes"`
		NPCs   []recap.DetectedNPC     `json:"npcs"`
	}{Scenes: scenes, NPCs: npcs})
	return string(payload)
}

// scriptedProvider wires a mock that answers each pass appropriately.
func scriptedProvider(pass1 string) *mock.Provider {
	p := &mock.Provider{}
	p.CompleteFunc = func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		switch passOf(req) {
		case 1:
			return &llm.CompletionResponse{Content: pass1}, nil
		case 2:
			return &llm.CompletionResponse{Content: scenePayload(req.Messages[0].Content)}, nil
		case 3:
			return &llm.CompletionResponse{Content: pass3Payload}, nil
		}
		return nil, fmt.Errorf("unexpected prompt")
	}
	return p
}

func testTranscript() transcript.Data {
	return transcript.Data{
		Metadata: transcript.Metadata{
			Title: "Session 42",
			Date:  time.Date(2026, time.January, 12, 0, 0, 0, 0, time.UTC),
		},
		Entries: []transcript.Entry{
			{Speaker: "Micco Fay", Timestamp: "0:04", TimestampSeconds: 4, Text: "You arrive at Daggerford."},
			{Speaker: "Samuel Frost", Timestamp: "0:12", TimestampSeconds: 12, Text: "I find the smith."},
		},
		Speakers: []string{"Micco Fay", "Samuel Frost"},
	}
}

// sessionWithScenes builds a transcript with one entry per scene and the
// matching discovered-scene list, each scene covering its own 100 s window.
func sessionWithScenes(title string, n int) (transcript.Data, []recap.DiscoveredScene) {
	data := transcript.Data{Metadata: transcript.Metadata{Title: title}}
	var scenes []recap.DiscoveredScene
	for i := 0; i < n; i++ {
		start := i * 100
		data.Entries = append(data.Entries, transcript.Entry{
			Speaker:          "Micco Fay",
			Timestamp:        transcript.FormatTimestamp(start),
			TimestampSeconds: start,
			Text:             fmt.Sprintf("narration %d", i),
		})
		scenes = append(scenes, recap.DiscoveredScene{
			Name:                  fmt.Sprintf("Scene %02d", i),
			StartTimestampSeconds: start,
			EndTimestampSeconds:   start + 99,
		})
	}
	return data, scenes
}

// eventLog is a progress sink safe for concurrent emission.
type eventLog struct {
	mu     sync.Mutex
	events []recap.Event
}

func (l *eventLog) sink(ev recap.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) all() []recap.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]recap.Event(nil), l.events...)
}

func TestGenerate_EndToEnd(t *testing.T) {
	t.Parallel()

	scenes := []recap.DiscoveredScene{
		{Name: "Arrival", StartTimestampSeconds: 0, EndTimestampSeconds: 60, Location: "Daggerford", Characters: []string{"Aurelion"}},
	}
	npcs := []recap.DetectedNPC{{CanonicalName: "Eldrinax", Variations: []string{"elder nacks"}}}
	p := scriptedProvider(pass1Payload(scenes, npcs))

	var log eventLog
	gen := recap.New(p)
	result, err := gen.Generate(context.Background(), recap.Request{
		Transcript: testTranscript(),
		Roster:     roster,
		OnProgress: log.sink,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	doc := result.Recap
	if doc.Header.SessionTitle != "Session 42" {
		t.Errorf("SessionTitle = %q, want Session 42", doc.Header.SessionTitle)
	}
	// Header date must come from transcript metadata, not from the model.
	wantDate := time.Date(2026, time.January, 12, 0, 0, 0, 0, time.UTC)
	if !doc.Header.Date.Equal(wantDate) {
		t.Errorf("Header.Date = %v, want %v", doc.Header.Date, wantDate)
	}
	if doc.Narrative != "The party arrived and things happened." {
		t.Errorf("Narrative = %q", doc.Narrative)
	}
	if len(doc.Scenes) != 1 || doc.Scenes[0].Name != "Final Scene" {
		t.Errorf("Scenes = %+v", doc.Scenes)
	}
	if len(doc.Metadata.PlayersPresent) != 1 || doc.Metadata.PlayersPresent[0] != "Samuel Frost" {
		t.Errorf("PlayersPresent = %v, want [Samuel Frost]", doc.Metadata.PlayersPresent)
	}
	if len(doc.Metadata.CharactersPresent) != 1 || doc.Metadata.CharactersPresent[0] != "Aurelion" {
		t.Errorf("CharactersPresent = %v, want [Aurelion]", doc.Metadata.CharactersPresent)
	}
	if len(result.DetectedNPCs) != 1 || result.DetectedNPCs[0].CanonicalName != "Eldrinax" {
		t.Errorf("DetectedNPCs = %+v", result.DetectedNPCs)
	}

	// One call per pass: discovery, one scene extraction, synthesis.
	if got := p.CallCount(); got != 3 {
		t.Errorf("CallCount = %d, want 3", got)
	}

	events := log.all()
	if len(events) == 0 {
		t.Fatal("no progress events emitted")
	}
	if _, ok := events[len(events)-1].(recap.Completed); !ok {
		t.Errorf("last event = %T, want recap.Completed", events[len(events)-1])
	}
}

func TestGenerate_NoScenesIsFatal(t *testing.T) {
	t.Parallel()

	p := scriptedProvider(pass1Payload(nil, nil))
	gen := recap.New(p)

	_, err := gen.Generate(context.Background(), recap.Request{Transcript: testTranscript(), Roster: roster})
	if !errors.Is(err, recap.ErrNoScenes) {
		t.Fatalf("Generate err = %v, want ErrNoScenes", err)
	}
	// Passes 2 and 3 must not run.
	if got := p.CallCount(); got != 1 {
		t.Errorf("CallCount = %d, want 1", got)
	}
}

func TestGenerate_EmptySceneSkipsModelCall(t *testing.T) {
	t.Parallel()

	// Scene "Void" covers a window with no entries.
	scenes := []recap.DiscoveredScene{
		{Name: "Arrival", StartTimestampSeconds: 0, EndTimestampSeconds: 60, Characters: []string{"Aurelion"}},
		{Name: "Void", StartTimestampSeconds: 1000, EndTimestampSeconds: 2000, Characters: []string{"Aurelion"}},
	}
	p := scriptedProvider(pass1Payload(scenes, nil))

	var log eventLog
	gen := recap.New(p)
	_, err := gen.Generate(context.Background(), recap.Request{
		Transcript: testTranscript(),
		Roster:     roster,
		OnProgress: log.sink,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	// Discovery + one non-empty scene + synthesis.
	if got := p.CallCount(); got != 3 {
		t.Errorf("CallCount = %d, want 3 (empty scene must not call the model)", got)
	}

	var skipped, completed int
	for _, ev := range log.all() {
		if sc, ok := ev.(recap.SceneCompleted); ok {
			completed++
			if sc.Skipped {
				skipped++
				if sc.SceneName != "Void" {
					t.Errorf("skipped scene = %q, want Void", sc.SceneName)
				}
				if !strings.Contains(sc.Message(), "skipped - no entries") {
					t.Errorf("skipped message = %q", sc.Message())
				}
			}
		}
	}
	if completed != 2 || skipped != 1 {
		t.Errorf("scene completions = %d (skipped %d), want 2 (skipped 1)", completed, skipped)
	}
}

// runWithSceneLatency generates over the given session, delaying each pass-2
// extraction by delay(sceneIndex), and returns the captured pass-3 prompt.
func runWithSceneLatency(t *testing.T, data transcript.Data, scenes []recap.DiscoveredScene, delay func(int) time.Duration) string {
	t.Helper()

	var (
		mu          sync.Mutex
		pass3Prompt string
	)
	p := &mock.Provider{}
	p.CompleteFunc = func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		prompt := req.Messages[0].Content
		switch passOf(req) {
		case 1:
			return &llm.CompletionResponse{Content: pass1Payload(scenes, nil)}, nil
		case 2:
			for i, s := range scenes {
				if strings.Contains(prompt, "## Scene: "+s.Name) {
					time.Sleep(delay(i))
					break
				}
			}
			return &llm.CompletionResponse{Content: scenePayload(prompt)}, nil
		case 3:
			mu.Lock()
			pass3Prompt = prompt
			mu.Unlock()
			return &llm.CompletionResponse{Content: pass3Payload}, nil
		}
		return nil, fmt.Errorf("unexpected prompt")
	}

	gen := recap.New(p)
	if _, err := gen.Generate(context.Background(), recap.Request{Transcript: data}); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	return pass3Prompt
}

// requireSceneOrder fails unless the pass-3 prompt lists scene detail
// sections in discovery order.
func requireSceneOrder(t *testing.T, pass3Prompt string, scenes []recap.DiscoveredScene) {
	t.Helper()
	last := -1
	for i, s := range scenes {
		marker := fmt.Sprintf("### Scene %d: %s", i+1, s.Name)
		idx := strings.Index(pass3Prompt, marker)
		if idx < 0 {
			t.Fatalf("pass-3 prompt missing %q", marker)
		}
		if idx < last {
			t.Errorf("detail section %q out of order", marker)
		}
		last = idx
	}
}

func TestGenerate_OrderPreservedUnderLatency(t *testing.T) {
	t.Parallel()

	// Earlier scenes finish last on the full-parallel path.
	data, scenes := sessionWithScenes("Long Session", 4)
	prompt := runWithSceneLatency(t, data, scenes, func(i int) time.Duration {
		return time.Duration(len(scenes)-i) * 20 * time.Millisecond
	})
	requireSceneOrder(t, prompt, scenes)
}

func TestGenerate_OrderPreservedAcrossBatches(t *testing.T) {
	t.Parallel()

	// Eleven scenes force the batched path; reverse the finish order within
	// every batch of three.
	data, scenes := sessionWithScenes("Marathon", 11)
	prompt := runWithSceneLatency(t, data, scenes, func(i int) time.Duration {
		return time.Duration(3-i%3) * 20 * time.Millisecond
	})
	requireSceneOrder(t, prompt, scenes)
}

func TestGenerate_BatchedAboveThreshold(t *testing.T) {
	t.Parallel()

	// 11 scenes exceeds the full-parallel threshold and forces batches of 3.
	const sceneCount = 11
	data, scenes := sessionWithScenes("Marathon", sceneCount)
	p := scriptedProvider(pass1Payload(scenes, nil))

	var log eventLog
	gen := recap.New(p)
	if _, err := gen.Generate(context.Background(), recap.Request{Transcript: data, OnProgress: log.sink}); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	var batches, extractionStarts, completions int
	for _, ev := range log.all() {
		switch e := ev.(type) {
		case recap.BatchStarted:
			batches++
			if e.TotalBatches != 4 {
				t.Errorf("TotalBatches = %d, want 4", e.TotalBatches)
			}
		case recap.ExtractionStarted:
			extractionStarts++
		case recap.SceneCompleted:
			completions++
			if e.Completed < 1 || e.Completed > sceneCount {
				t.Errorf("Completed = %d out of range", e.Completed)
			}
		}
	}
	if batches != 4 {
		t.Errorf("BatchStarted events = %d, want 4", batches)
	}
	if extractionStarts != 0 {
		t.Errorf("ExtractionStarted events = %d, want 0 on the batched path", extractionStarts)
	}
	if completions != sceneCount {
		t.Errorf("SceneCompleted events = %d, want %d", completions, sceneCount)
	}
}

func TestGenerate_FullParallelAtThreshold(t *testing.T) {
	t.Parallel()

	// Exactly 10 scenes still takes the full-parallel path.
	const sceneCount = 10
	data, scenes := sessionWithScenes("Boundary Session", sceneCount)
	p := scriptedProvider(pass1Payload(scenes, nil))

	var log eventLog
	gen := recap.New(p)
	if _, err := gen.Generate(context.Background(), recap.Request{Transcript: data, OnProgress: log.sink}); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	var batches, extractionStarts, completions int
	for _, ev := range log.all() {
		switch e := ev.(type) {
		case recap.BatchStarted:
			batches++
		case recap.ExtractionStarted:
			extractionStarts++
			if e.TotalScenes != sceneCount {
				t.Errorf("TotalScenes = %d, want %d", e.TotalScenes, sceneCount)
			}
		case recap.SceneCompleted:
			completions++
		}
	}
	if extractionStarts != 1 {
		t.Errorf("ExtractionStarted events = %d, want 1", extractionStarts)
	}
	if batches != 0 {
		t.Errorf("BatchStarted events = %d, want 0 at the threshold", batches)
	}
	if completions != sceneCount {
		t.Errorf("SceneCompleted events = %d, want %d", completions, sceneCount)
	}
}

func TestGenerate_ExtractionErrorIsFatal(t *testing.T) {
	t.Parallel()

	scenes := []recap.DiscoveredScene{
		{Name: "Arrival", StartTimestampSeconds: 0, EndTimestampSeconds: 60},
	}
	wantErr := errors.New("rate limited")
	p := &mock.Provider{}
	p.CompleteFunc = func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		if passOf(req) == 1 {
			return &llm.CompletionResponse{Content: pass1Payload(scenes, nil)}, nil
		}
		return nil, wantErr
	}

	gen := recap.New(p)
	_, err := gen.Generate(context.Background(), recap.Request{Transcript: testTranscript()})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Generate err = %v, want wrapped %v", err, wantErr)
	}
}

func TestGenerate_NormalizationEvent(t *testing.T) {
	t.Parallel()

	data := testTranscript()
	data.Entries[0].Speaker = "Mike"
	data.Entries[0].Text = "Preanella greets you."
	data.Speakers = []string{"Mike", "Samuel Frost"}

	scenes := []recap.DiscoveredScene{
		{Name: "Arrival", StartTimestampSeconds: 0, EndTimestampSeconds: 60},
	}

	var pass1Prompt string
	var mu sync.Mutex
	p := &mock.Provider{}
	p.CompleteFunc = func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		prompt := req.Messages[0].Content
		switch passOf(req) {
		case 1:
			mu.Lock()
			pass1Prompt = prompt
			mu.Unlock()
			return &llm.CompletionResponse{Content: pass1Payload(scenes, nil)}, nil
		case 2:
			return &llm.CompletionResponse{Content: scenePayload(prompt)}, nil
		default:
			return &llm.CompletionResponse{Content: pass3Payload}, nil
		}
	}

	players := []config.Player{
		{PlayerName: "Michael", CharacterName: "Aurelion", Role: config.RolePlayer, Aliases: []string{"Mike"}},
		{PlayerName: "Micco Fay", Role: config.RoleDM},
	}
	npcs := []config.NPC{{Name: "Princess Priyanella", Aliases: []string{"Preanella"}}}

	var log eventLog
	gen := recap.New(p)
	if _, err := gen.Generate(context.Background(), recap.Request{
		Transcript: data,
		Roster:     players,
		NPCs:       npcs,
		OnProgress: log.sink,
	}); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	var norm *recap.NormalizationApplied
	for _, ev := range log.all() {
		if n, ok := ev.(recap.NormalizationApplied); ok {
			norm = &n
			break
		}
	}
	if norm == nil {
		t.Fatal("NormalizationApplied event not emitted")
	}
	if norm.SpeakerCount != 1 || norm.NPCCount != 1 {
		t.Errorf("NormalizationApplied = %+v, want 1 speaker and 1 NPC", norm)
	}

	// The model sees canonical names only.
	mu.Lock()
	defer mu.Unlock()
	if strings.Contains(pass1Prompt, "Preanella greets") {
		t.Error("pass-1 prompt contains unnormalised NPC alias")
	}
	if !strings.Contains(pass1Prompt, "Princess Priyanella greets you.") {
		t.Error("pass-1 prompt missing canonical NPC name")
	}
	if !strings.Contains(pass1Prompt, "Michael (Aurelion)") {
		t.Error("pass-1 prompt missing canonical speaker label")
	}
}
