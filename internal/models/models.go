// Package models fetches the OpenAI model catalogue from the OpenRouter
// listing API, with a 24h on-disk cache and a static fallback list for
// offline use.
package models

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DefaultModelID is the model used when the configuration names none.
const DefaultModelID = "gpt-4o"

const (
	defaultCatalogURL = "https://openrouter.ai/api/v1/models"
	cacheFileName     = "openrouter-models.json"
	cacheMaxAge       = 24 * time.Hour
)

// Model is one catalogue entry, pared down to what the CLI displays.
type Model struct {
	// ID is the full OpenRouter id, e.g. "openai/gpt-4o".
	ID string `json:"id"`

	// ModelID is the provider-local id, e.g. "gpt-4o".
	ModelID string `json:"modelId"`

	// Name is the display name.
	Name string `json:"name"`

	// ContextLength is the context window in tokens.
	ContextLength int `json:"contextLength"`

	// PromptPrice and CompletionPrice are USD per million tokens.
	PromptPrice     float64 `json:"promptPrice"`
	CompletionPrice float64 `json:"completionPrice"`
}

// FallbackModels is served when the catalogue cannot be fetched.
var FallbackModels = []Model{
	{ID: "openai/gpt-4o", ModelID: "gpt-4o", Name: "GPT-4o", ContextLength: 128000, PromptPrice: 2.5, CompletionPrice: 10},
	{ID: "openai/gpt-4o-mini", ModelID: "gpt-4o-mini", Name: "GPT-4o Mini", ContextLength: 128000, PromptPrice: 0.15, CompletionPrice: 0.6},
	{ID: "openai/gpt-4-turbo", ModelID: "gpt-4-turbo", Name: "GPT-4 Turbo", ContextLength: 128000, PromptPrice: 10, CompletionPrice: 30},
}

// Option configures a [Catalog].
type Option func(*Catalog)

// WithBaseURL overrides the OpenRouter listing endpoint.
func WithBaseURL(url string) Option {
	return func(c *Catalog) {
		c.baseURL = url
	}
}

// WithCacheDir overrides the cache directory. An empty string disables the
// on-disk cache.
func WithCacheDir(dir string) Option {
	return func(c *Catalog) {
		c.cacheDir = dir
	}
}

// WithHTTPClient overrides the HTTP client used for catalogue fetches.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Catalog) {
		c.client = client
	}
}

// Catalog fetches and caches the model list.
type Catalog struct {
	baseURL  string
	cacheDir string
	client   *http.Client
}

// NewCatalog returns a catalogue with a 30s request timeout and the user
// cache directory as cache location.
func NewCatalog(opts ...Option) *Catalog {
	c := &Catalog{
		baseURL: defaultCatalogURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	if dir, err := os.UserCacheDir(); err == nil {
		c.cacheDir = filepath.Join(dir, "lorequill")
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Fetch returns the OpenAI models from the catalogue, sorted by context
// length descending. Results are served from the on-disk cache when it is
// fresher than 24h. On any fetch or decode failure the static
// [FallbackModels] list is returned with a nil error; the failure is logged.
func (c *Catalog) Fetch(ctx context.Context) []Model {
	if cached, ok := c.readCache(); ok {
		return cached
	}

	models, err := c.fetchRemote(ctx)
	if err != nil {
		slog.Warn("model catalogue fetch failed, using fallback list", "error", err)
		return FallbackModels
	}
	if len(models) == 0 {
		return FallbackModels
	}

	c.writeCache(models)
	return models
}

type catalogResponse struct {
	Data []rawModel `json:"data"`
}

type rawModel struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ContextLength int    `json:"context_length"`
	Pricing       struct {
		Prompt     string `json:"prompt"`
		Completion string `json:"completion"`
	} `json:"pricing"`
}

func (c *Catalog) fetchRemote(ctx context.Context) ([]Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("models: build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("models: fetch catalogue: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("models: fetch catalogue: HTTP %d", resp.StatusCode)
	}

	var payload catalogResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("models: decode catalogue: %w", err)
	}

	return parseModels(payload.Data), nil
}

// parseModels keeps OpenAI chat models only: the "openai/" prefix selects the
// provider, and realtime/audio variants are dropped because they cannot serve
// text completion calls.
func parseModels(raw []rawModel) []Model {
	var out []Model
	for _, m := range raw {
		modelID, ok := strings.CutPrefix(m.ID, "openai/")
		if !ok {
			continue
		}
		if strings.Contains(modelID, "realtime") || strings.Contains(modelID, "audio") {
			continue
		}
		prompt, _ := strconv.ParseFloat(m.Pricing.Prompt, 64)
		completion, _ := strconv.ParseFloat(m.Pricing.Completion, 64)
		out = append(out, Model{
			ID:              m.ID,
			ModelID:         modelID,
			Name:            m.Name,
			ContextLength:   m.ContextLength,
			PromptPrice:     prompt * 1_000_000,
			CompletionPrice: completion * 1_000_000,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ContextLength > out[j].ContextLength
	})
	return out
}

type cacheFile struct {
	Models    []Model   `json:"models"`
	Timestamp time.Time `json:"timestamp"`
}

func (c *Catalog) readCache() ([]Model, bool) {
	if c.cacheDir == "" {
		return nil, false
	}
	raw, err := os.ReadFile(filepath.Join(c.cacheDir, cacheFileName))
	if err != nil {
		return nil, false
	}
	var cached cacheFile
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, false
	}
	if time.Since(cached.Timestamp) > cacheMaxAge || len(cached.Models) == 0 {
		return nil, false
	}
	return cached.Models, true
}

func (c *Catalog) writeCache(models []Model) {
	if c.cacheDir == "" {
		return
	}
	if err := os.MkdirAll(c.cacheDir, 0o755); err != nil {
		return
	}
	raw, err := json.Marshal(cacheFile{Models: models, Timestamp: time.Now()})
	if err != nil {
		return
	}
	// Cache write failures are not worth failing a fetch over.
	_ = os.WriteFile(filepath.Join(c.cacheDir, cacheFileName), raw, 0o644)
}

// FormatContextLength renders a context window as "128K" or "1.0M".
func FormatContextLength(length int) string {
	if length >= 1_000_000 {
		return fmt.Sprintf("%.1fM", float64(length)/1_000_000)
	}
	return fmt.Sprintf("%.0fK", float64(length)/1000)
}

// FormatPrice renders a USD-per-million-tokens price.
func FormatPrice(price float64) string {
	if price < 1 {
		return fmt.Sprintf("$%.2f", price)
	}
	return fmt.Sprintf("$%.0f", price)
}
