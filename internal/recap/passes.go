package recap

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/lorequill/internal/config"
	"github.com/MrWong99/lorequill/internal/observe"
	"github.com/MrWong99/lorequill/internal/transcript"
)

// runPass1 discovers scene boundaries and NPCs over the full transcript.
func (g *Generator) runPass1(ctx context.Context, sys string, entries []transcript.Entry, title string, roster []config.Player, emit ProgressFunc) (Pass1Result, error) {
	emit(DiscoveryStarted{})

	ctx, span := observe.StartSpan(ctx, "recap.pass1")
	defer span.End()

	prompt := buildPass1Prompt(entries, title, roster)

	start := time.Now()
	var out Pass1Result
	err := g.caller.Generate(ctx, sys, prompt, &out)
	g.recordPass(ctx, "discovery", time.Since(start), err)
	if err != nil {
		return Pass1Result{}, fmt.Errorf("recap: pass 1: %w", err)
	}
	return out, nil
}

// extractSceneDetails runs pass 2 for one scene. A scene whose window holds
// no entries yields a locally synthesised empty record without a model call;
// skipped reports that case.
func (g *Generator) extractSceneDetails(ctx context.Context, sys string, entries []transcript.Entry, scene DiscoveredScene, roster []config.Player) (details SceneDetails, skipped bool, err error) {
	sceneEntries := entriesInScene(entries, scene)
	if len(sceneEntries) == 0 {
		g.metrics.EmptyScenes.Add(ctx, 1)
		return SceneDetails{
			SceneName:         scene.Name,
			CharactersPresent: scene.Characters,
			TimeOfDay:         nil,
			Events:            []SceneEvent{},
			Quotes:            []Quote{},
			Enemies:           []string{},
		}, true, nil
	}

	prompt := buildPass2Prompt(sceneEntries, scene, roster)

	start := time.Now()
	err = g.caller.Generate(ctx, sys, prompt, &details)
	elapsed := time.Since(start)
	g.metrics.SceneExtractionDuration.Record(ctx, elapsed.Seconds())
	g.metrics.ModelCalls.Add(ctx, 1, metric.WithAttributes(
		observe.Attr("pass", "extraction"),
		observe.Attr("status", callStatus(err)),
	))
	if err != nil {
		return SceneDetails{}, false, fmt.Errorf("recap: pass 2 scene %q: %w", scene.Name, err)
	}
	return details, false, nil
}

// runPass3 synthesises the final recap document from the scene list and all
// per-scene detail records. The header date is left zero; the orchestrator
// overwrites it with the original transcript metadata.
func (g *Generator) runPass3(ctx context.Context, sys string, scenes []DiscoveredScene, details []SceneDetails, title string, roster []config.Player, emit ProgressFunc) (*SessionRecap, error) {
	emit(SynthesisStarted{})

	ctx, span := observe.StartSpan(ctx, "recap.pass3")
	defer span.End()

	prompt := buildPass3Prompt(scenes, details, title, roster)

	start := time.Now()
	var out Pass3Result
	err := g.caller.Generate(ctx, sys, prompt, &out)
	g.recordPass(ctx, "synthesis", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("recap: pass 3: %w", err)
	}

	var characters, playerNames []string
	for _, p := range roster {
		if p.Role != config.RolePlayer {
			continue
		}
		playerNames = append(playerNames, p.PlayerName)
		if p.CharacterName != "" {
			characters = append(characters, p.CharacterName)
		}
	}

	return &SessionRecap{
		Header: RecapHeader{SessionTitle: title},
		Attendance: Attendance{
			Players: roster,
		},
		Metadata: RecapMetadata{
			CharactersPresent: characters,
			PlayersPresent:    playerNames,
		},
		Scenes:          out.Scenes,
		OpeningContext:  out.OpeningContext,
		SceneHighlights: out.SceneHighlights,
		Highlights:      out.Highlights,
		Quotes:          out.Quotes,
		Narrative:       out.Narrative,
	}, nil
}

// recordPass records whole-pass latency and call outcome for pass 1 and 3.
// Pass-2 calls are recorded per scene in extractSceneDetails instead.
func (g *Generator) recordPass(ctx context.Context, pass string, elapsed time.Duration, err error) {
	g.metrics.PassDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(observe.Attr("pass", pass)))
	g.metrics.ModelCalls.Add(ctx, 1, metric.WithAttributes(
		observe.Attr("pass", pass),
		observe.Attr("status", callStatus(err)),
	))
}

func callStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
