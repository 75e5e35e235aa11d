package recap

import (
	"fmt"
	"time"
)

// Stage is the coarse phase of a generation run a progress event belongs to.
type Stage string

const (
	// StageSummarizing covers normalisation, pass 1 and pass 2.
	StageSummarizing Stage = "summarizing"

	// StageSynthesizing covers pass 3.
	StageSynthesizing Stage = "synthesizing"

	// StageComplete is emitted once, after the recap is assembled.
	StageComplete Stage = "complete"
)

// Event is a point-in-time progress report. Events are transient: they are
// handed to the sink and never retained. Each concrete event type carries
// only the fields relevant to its stage.
type Event interface {
	// Stage returns the coarse phase this event belongs to.
	Stage() Stage

	// Message returns a human-readable one-line description.
	Message() string
}

// ProgressFunc receives progress events. It is invoked synchronously from
// the generation control flow (and from pass-2 worker goroutines, serialised
// by the scheduler), must not block for long, and must not panic — a
// panicking sink aborts the generation.
type ProgressFunc func(Event)

// NormalizationApplied reports how many canonicalisation substitutions the
// normaliser performed. Not emitted when both counts are zero.
type NormalizationApplied struct {
	// SpeakerCount is the number of distinct speaker labels rewritten.
	SpeakerCount int

	// NPCCount is the number of distinct NPC aliases rewritten.
	NPCCount int
}

func (NormalizationApplied) Stage() Stage { return StageSummarizing }

func (e NormalizationApplied) Message() string {
	return fmt.Sprintf("Normalized %d speaker name(s) and %d NPC name(s)", e.SpeakerCount, e.NPCCount)
}

// GenerationStarted is emitted once at the beginning of a run.
type GenerationStarted struct {
	// EntryCount is the number of transcript entries being processed.
	EntryCount int
}

func (GenerationStarted) Stage() Stage { return StageSummarizing }

func (e GenerationStarted) Message() string {
	return fmt.Sprintf("Starting multi-pass generation with %d entries...", e.EntryCount)
}

// DiscoveryStarted is emitted when pass 1 begins.
type DiscoveryStarted struct{}

func (DiscoveryStarted) Stage() Stage { return StageSummarizing }

func (DiscoveryStarted) Message() string {
	return "Pass 1: Discovering scenes and NPCs..."
}

// ExtractionStarted is emitted when pass 2 begins on the full-parallel path.
type ExtractionStarted struct {
	// TotalScenes is the number of scenes to extract.
	TotalScenes int
}

func (ExtractionStarted) Stage() Stage { return StageSummarizing }

func (e ExtractionStarted) Message() string {
	return fmt.Sprintf("Pass 2: Extracting %d scenes in parallel...", e.TotalScenes)
}

// BatchStarted is emitted before each batch on the batched pass-2 path.
type BatchStarted struct {
	// Batch is the 1-based batch number.
	Batch int

	// TotalBatches is the total batch count.
	TotalBatches int

	// BatchSize is the number of scenes dispatched in this batch.
	BatchSize int

	// Completed is the number of scenes finished before this batch.
	Completed int

	// TotalScenes is the overall scene count.
	TotalScenes int
}

func (BatchStarted) Stage() Stage { return StageSummarizing }

func (e BatchStarted) Message() string {
	return fmt.Sprintf("Pass 2: Batch %d/%d (%d scenes in parallel)...", e.Batch, e.TotalBatches, e.BatchSize)
}

// SceneCompleted is emitted after every pass-2 scene, on both scheduling
// paths. Completed counts completions in finish order, not scene order.
type SceneCompleted struct {
	// Completed is the number of scenes finished so far, this one included.
	Completed int

	// TotalScenes is the overall scene count.
	TotalScenes int

	// SceneName is the scene's pass-1 name.
	SceneName string

	// Elapsed is the extraction wall-clock time. Meaningless when Skipped.
	Elapsed time.Duration

	// Skipped is true when the scene window held no entries and the details
	// record was synthesised locally without a model call.
	Skipped bool
}

func (SceneCompleted) Stage() Stage { return StageSummarizing }

func (e SceneCompleted) Message() string {
	timing := fmt.Sprintf("%.1fs", e.Elapsed.Seconds())
	if e.Skipped {
		timing = "skipped - no entries"
	}
	return fmt.Sprintf("Pass 2: [%d/%d] %q (%s)", e.Completed, e.TotalScenes, e.SceneName, timing)
}

// SynthesisStarted is emitted when pass 3 begins.
type SynthesisStarted struct{}

func (SynthesisStarted) Stage() Stage { return StageSynthesizing }

func (SynthesisStarted) Message() string {
	return "Pass 3: Synthesizing final recap..."
}

// Completed is emitted once, after the recap has been assembled.
type Completed struct{}

func (Completed) Stage() Stage { return StageComplete }

func (Completed) Message() string {
	return "Recap generated successfully!"
}
