package recap

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/lorequill/internal/config"
	"github.com/MrWong99/lorequill/internal/observe"
	"github.com/MrWong99/lorequill/internal/transcript"
)

const (
	// pass2Concurrency is the number of scenes extracted in parallel per
	// batch when the scene count exceeds parallelThreshold.
	pass2Concurrency = 3

	// parallelThreshold is the largest scene count still extracted with
	// unbounded parallelism. Above it, batching keeps provider rate limits
	// happy.
	parallelThreshold = 10

	// emptySceneYield is slept after a locally synthesised empty scene so
	// that its completion event does not land in the same instant as its
	// neighbours'.
	emptySceneYield = 50 * time.Millisecond
)

// pass2Tracker serialises completion accounting and sink invocations across
// pass-2 worker goroutines. Events are emitted under the lock so the sink
// observes strictly increasing completion counts.
type pass2Tracker struct {
	mu        sync.Mutex
	completed int
	total     int
	emit      ProgressFunc
}

func (t *pass2Tracker) done(sceneName string, elapsed time.Duration, skipped bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completed++
	t.emit(SceneCompleted{
		Completed:   t.completed,
		TotalScenes: t.total,
		SceneName:   sceneName,
		Elapsed:     elapsed,
		Skipped:     skipped,
	})
}

// runPass2 extracts details for every scene, preserving scene order in the
// result regardless of completion order. Scene counts up to
// parallelThreshold run fully parallel; larger counts run in batches of
// pass2Concurrency. The first failed extraction cancels the remaining
// in-flight scenes and fails the pass.
func (g *Generator) runPass2(ctx context.Context, sys string, entries []transcript.Entry, scenes []DiscoveredScene, roster []config.Player, emit ProgressFunc) ([]SceneDetails, error) {
	ctx, span := observe.StartSpan(ctx, "recap.pass2")
	defer span.End()

	results := make([]SceneDetails, len(scenes))
	tracker := &pass2Tracker{total: len(scenes), emit: emit}

	extract := func(ctx context.Context, i int, scene DiscoveredScene) error {
		start := time.Now()
		details, skipped, err := g.extractSceneDetails(ctx, sys, entries, scene, roster)
		if err != nil {
			return err
		}
		if skipped {
			time.Sleep(emptySceneYield)
		}
		results[i] = details
		tracker.done(scene.Name, time.Since(start), skipped)
		return nil
	}

	if len(scenes) <= parallelThreshold {
		emit(ExtractionStarted{TotalScenes: len(scenes)})

		eg, ctx := errgroup.WithContext(ctx)
		for i, scene := range scenes {
			eg.Go(func() error {
				return extract(ctx, i, scene)
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}
		return results, nil
	}

	totalBatches := (len(scenes) + pass2Concurrency - 1) / pass2Concurrency
	for start := 0; start < len(scenes); start += pass2Concurrency {
		end := min(start+pass2Concurrency, len(scenes))
		batch := scenes[start:end]

		emit(BatchStarted{
			Batch:        start/pass2Concurrency + 1,
			TotalBatches: totalBatches,
			BatchSize:    len(batch),
			Completed:    tracker.completed,
			TotalScenes:  len(scenes),
		})

		eg, batchCtx := errgroup.WithContext(ctx)
		for off, scene := range batch {
			eg.Go(func() error {
				return extract(batchCtx, start+off, scene)
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}
	}
	return results, nil
}
