package recap

import (
	"context"
	"errors"
	"fmt"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/lorequill/internal/config"
	"github.com/MrWong99/lorequill/internal/models"
	"github.com/MrWong99/lorequill/internal/observe"
	"github.com/MrWong99/lorequill/internal/structured"
	"github.com/MrWong99/lorequill/internal/transcript"
	"github.com/MrWong99/lorequill/pkg/provider/llm"
	"github.com/MrWong99/lorequill/pkg/provider/llm/anyllm"
	"github.com/MrWong99/lorequill/pkg/provider/llm/openai"
)

// ErrNoScenes is returned when pass 1 completes without discovering a single
// scene. The transcript is most likely too short or not a session recording.
var ErrNoScenes = errors.New("recap: no scenes discovered in transcript")

// Option configures a [Generator].
type Option func(*Generator)

// WithMetrics supplies a custom metrics instance. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(g *Generator) {
		g.metrics = m
	}
}

// WithCallerOptions forwards options to the underlying structured caller,
// e.g. [structured.WithTemperature].
func WithCallerOptions(opts ...structured.Option) Option {
	return func(g *Generator) {
		g.callerOpts = append(g.callerOpts, opts...)
	}
}

// Generator runs the three-pass recap pipeline. A Generator is stateless
// between runs and safe for concurrent use.
type Generator struct {
	caller     *structured.Caller
	callerOpts []structured.Option
	metrics    *observe.Metrics
}

// New returns a [Generator] backed by the given provider.
func New(provider llm.Provider, opts ...Option) *Generator {
	g := &Generator{}
	for _, o := range opts {
		o(g)
	}
	if g.metrics == nil {
		g.metrics = observe.DefaultMetrics()
	}
	g.caller = structured.New(provider, g.callerOpts...)
	return g
}

// Request carries everything one generation run needs.
type Request struct {
	// Transcript is the parsed session transcript. It is normalised at the
	// start of the run; the input value is not mutated.
	Transcript transcript.Data

	// Roster is the player/DM configuration for the session. An empty roster
	// is allowed; prompts then carry a placeholder player block.
	Roster []config.Player

	// NPCs are known NPCs whose names are canonicalised before generation.
	NPCs []config.NPC

	// CampaignName and BookAct optionally extend the system prompt with
	// campaign context.
	CampaignName string
	BookAct      string

	// OnProgress receives progress events. May be nil.
	OnProgress ProgressFunc
}

// Generate runs normalisation and all three passes and assembles the final
// recap. The first failed model call aborts the run; nothing is retried.
// Returns [ErrNoScenes] when pass 1 discovers no scenes.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	ctx, span := observe.StartSpan(ctx, "recap.Generate")
	defer span.End()
	log := observe.Logger(ctx)

	emit := func(ev Event) {
		if req.OnProgress != nil {
			req.OnProgress(ev)
		}
	}

	norm := transcript.Normalize(req.Transcript, req.Roster, req.NPCs)
	if len(norm.SpeakerMappings) > 0 || len(norm.NPCMappings) > 0 {
		log.Debug("transcript normalised",
			"speakers", len(norm.SpeakerMappings), "npcs", len(norm.NPCMappings))
		emit(NormalizationApplied{
			SpeakerCount: len(norm.SpeakerMappings),
			NPCCount:     len(norm.NPCMappings),
		})
	}

	entries := norm.Transcript.Entries
	title := norm.Transcript.Metadata.Title
	sys := SystemPrompt(req.CampaignName, req.BookAct)

	emit(GenerationStarted{EntryCount: len(entries)})

	pass1, err := g.runPass1(ctx, sys, entries, title, req.Roster, emit)
	if err != nil {
		return nil, g.fail(ctx, err)
	}
	if len(pass1.Scenes) == 0 {
		return nil, g.fail(ctx, ErrNoScenes)
	}
	g.metrics.ScenesDiscovered.Record(ctx, int64(len(pass1.Scenes)))
	log.Info("scene discovery complete", "scenes", len(pass1.Scenes), "npcs", len(pass1.NPCs))

	details, err := g.runPass2(ctx, sys, entries, pass1.Scenes, req.Roster, emit)
	if err != nil {
		return nil, g.fail(ctx, err)
	}

	doc, err := g.runPass3(ctx, sys, pass1.Scenes, details, title, req.Roster, emit)
	if err != nil {
		return nil, g.fail(ctx, err)
	}

	// The header date comes from the original transcript metadata, never
	// from model output.
	doc.Header.Date = req.Transcript.Metadata.Date

	emit(Completed{})
	g.metrics.Generations.Add(ctx, 1, metric.WithAttributes(observe.Attr("status", "ok")))
	return &Result{Recap: doc, DetectedNPCs: pass1.NPCs}, nil
}

func (g *Generator) fail(ctx context.Context, err error) error {
	g.metrics.Generations.Add(ctx, 1, metric.WithAttributes(observe.Attr("status", "error")))
	return err
}

// ResolveProvider builds an [llm.Provider] from the configuration. The
// "openai" backend uses the official SDK; every other supported name goes
// through any-llm. An empty model falls back to [models.DefaultModelID].
func ResolveProvider(entry config.ProviderEntry) (llm.Provider, error) {
	model := entry.Model
	if model == "" {
		model = models.DefaultModelID
	}

	name := entry.Name
	if name == "" {
		name = "openai"
	}

	if name == "openai" {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		p, err := openai.New(entry.APIKey, model, opts...)
		if err != nil {
			return nil, fmt.Errorf("recap: resolve provider: %w", err)
		}
		return p, nil
	}

	var opts []anyllmlib.Option
	if entry.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
	}
	if entry.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
	}
	p, err := anyllm.New(name, model, opts...)
	if err != nil {
		return nil, fmt.Errorf("recap: resolve provider: %w", err)
	}
	return p, nil
}
