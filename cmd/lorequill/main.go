// Command lorequill turns a D&D session transcript into a structured recap
// document using a three-pass LLM pipeline.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/lorequill/internal/archive"
	"github.com/MrWong99/lorequill/internal/config"
	"github.com/MrWong99/lorequill/internal/dicelog"
	"github.com/MrWong99/lorequill/internal/export"
	"github.com/MrWong99/lorequill/internal/models"
	"github.com/MrWong99/lorequill/internal/observe"
	"github.com/MrWong99/lorequill/internal/phonetic"
	"github.com/MrWong99/lorequill/internal/recap"
	"github.com/MrWong99/lorequill/internal/transcript"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	transcriptPath := flag.String("transcript", "", "path to the session transcript (Teams text export)")
	diceLogPath := flag.String("dice-log", "", "optional path to a dice log for the statistics appendix")
	outPath := flag.String("out", "", "output file (default: stdout)")
	format := flag.String("format", "markdown", "output format: markdown or json")
	modelOverride := flag.String("model", "", "model id override (default: from config)")
	listModels := flag.Bool("list-models", false, "list available models and exit")
	listRecaps := flag.Bool("list-recaps", false, "list archived recaps and exit")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "lorequill: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "lorequill: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.LogLevel))

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *listModels {
		return runListModels(ctx)
	}
	if *listRecaps {
		return runListRecaps(ctx, cfg)
	}

	if *transcriptPath == "" {
		fmt.Fprintln(os.Stderr, "lorequill: -transcript is required")
		return 2
	}
	if *format != "markdown" && *format != "json" {
		fmt.Fprintf(os.Stderr, "lorequill: unknown format %q\n", *format)
		return 2
	}

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "lorequill"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	if cfg.Metrics.ListenAddr != "" {
		go serveMetrics(cfg.Metrics.ListenAddr)
	}

	// ── Parse transcript ──────────────────────────────────────────────────────
	raw, err := os.ReadFile(*transcriptPath)
	if err != nil {
		slog.Error("failed to read transcript", "err", err)
		return 1
	}
	data := transcript.Parse(string(raw))
	if len(data.Entries) == 0 {
		slog.Error("transcript contains no entries", "path", *transcriptPath)
		return 1
	}
	slog.Info("transcript parsed",
		"title", data.Metadata.Title,
		"entries", len(data.Entries),
		"speakers", len(data.Speakers),
	)

	// ── Resolve provider ──────────────────────────────────────────────────────
	providerCfg := cfg.Provider
	if *modelOverride != "" {
		providerCfg.Model = *modelOverride
	}
	provider, err := recap.ResolveProvider(providerCfg)
	if err != nil {
		slog.Error("failed to create LLM provider", "err", err)
		return 1
	}

	// ── Generate ──────────────────────────────────────────────────────────────
	generator := recap.New(provider)
	result, err := generator.Generate(ctx, recap.Request{
		Transcript:   data,
		Roster:       cfg.Players,
		NPCs:         cfg.NPCs,
		CampaignName: cfg.Campaign.Name,
		BookAct:      cfg.Campaign.BookAct,
		OnProgress: func(ev recap.Event) {
			fmt.Fprintln(os.Stderr, ev.Message())
		},
	})
	if err != nil {
		if errors.Is(err, recap.ErrNoScenes) {
			slog.Error("no scenes discovered — is this a session transcript?")
		} else {
			slog.Error("generation failed", "err", err)
		}
		return 1
	}

	// ── NPC suggestions ───────────────────────────────────────────────────────
	printNPCSuggestions(result.DetectedNPCs, cfg.NPCs)

	// ── Render ────────────────────────────────────────────────────────────────
	output, err := renderOutput(result.Recap, *format, *diceLogPath)
	if err != nil {
		slog.Error("failed to render recap", "err", err)
		return 1
	}

	if *outPath == "" {
		fmt.Print(output)
	} else if err := os.WriteFile(*outPath, []byte(output), 0o644); err != nil {
		slog.Error("failed to write output", "path", *outPath, "err", err)
		return 1
	} else {
		slog.Info("recap written", "path", *outPath)
	}

	// ── Archive (optional) ────────────────────────────────────────────────────
	if cfg.Archive.PostgresDSN != "" {
		if err := archiveRecap(ctx, cfg.Archive.PostgresDSN, cfg.Campaign.Name, result.Recap); err != nil {
			slog.Error("failed to archive recap", "err", err)
			return 1
		}
	}

	return 0
}

// renderOutput serialises the recap in the requested format, appending dice
// statistics to markdown output when a dice log is given.
func renderOutput(doc *recap.SessionRecap, format, diceLogPath string) (string, error) {
	if format == "json" {
		raw, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return "", err
		}
		return string(raw) + "\n", nil
	}

	if diceLogPath != "" {
		raw, err := os.ReadFile(diceLogPath)
		if err != nil {
			return "", fmt.Errorf("read dice log: %w", err)
		}
		return export.MarkdownWithDiceStats(doc, dicelog.Parse(string(raw))), nil
	}
	return export.Markdown(doc), nil
}

// printNPCSuggestions reports detected NPCs that look like misheard variants
// of configured ones, so their spellings can be added as aliases.
func printNPCSuggestions(detected []recap.DetectedNPC, known []config.NPC) {
	if len(detected) == 0 {
		return
	}
	matcher := phonetic.New()
	for _, s := range matcher.Suggest(detected, known) {
		fmt.Fprintf(os.Stderr, "hint: detected NPC %q may be %q (similarity %.2f) — consider adding an alias\n",
			s.Detected.CanonicalName, s.ConfiguredName, s.Score)
	}
}

func archiveRecap(ctx context.Context, dsn, campaign string, doc *recap.SessionRecap) error {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer pool.Close()

	store := archive.NewStore(pool)
	if err := store.Migrate(ctx); err != nil {
		return err
	}
	id, err := store.Save(ctx, campaign, doc)
	if err != nil {
		return err
	}
	slog.Info("recap archived", "id", id, "campaign", campaign)
	return nil
}

func runListRecaps(ctx context.Context, cfg *config.Config) int {
	if cfg.Archive.PostgresDSN == "" {
		fmt.Fprintln(os.Stderr, "lorequill: archive.postgres_dsn is not configured")
		return 2
	}

	pool, err := pgxpool.New(ctx, cfg.Archive.PostgresDSN)
	if err != nil {
		slog.Error("failed to connect to archive", "err", err)
		return 1
	}
	defer pool.Close()

	entries, err := archive.NewStore(pool).List(ctx, cfg.Campaign.Name, 50)
	if err != nil {
		slog.Error("failed to list recaps", "err", err)
		return 1
	}
	for _, e := range entries {
		date := "unknown date"
		if e.SessionDate.Unix() != 0 && !e.SessionDate.IsZero() {
			date = e.SessionDate.Format("2006-01-02")
		}
		fmt.Printf("%6d  %-12s  %s (%s)\n", e.ID, date, e.SessionTitle, e.Campaign)
	}
	return 0
}

func runListModels(ctx context.Context) int {
	catalog := models.NewCatalog()
	for _, m := range catalog.Fetch(ctx) {
		fmt.Printf("%-28s %-34s ctx %-6s in %s / out %s per 1M tokens\n",
			m.ModelID, m.Name,
			models.FormatContextLength(m.ContextLength),
			models.FormatPrice(m.PromptPrice),
			models.FormatPrice(m.CompletionPrice),
		)
	}
	return 0
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	slog.Info("metrics endpoint listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Warn("metrics server stopped", "err", err)
	}
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
