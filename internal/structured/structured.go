// Package structured implements schema-validated object generation over a
// plain LLM completion: send a system prompt and a user prompt, demand raw
// JSON back, decode it into a caller-supplied struct and validate the result
// structurally.
//
// This is the one boundary where model output re-enters typed code, so a
// failure at any step — transport error, unparseable JSON, or a decoded value
// failing validation — is returned as an error. The recap pipeline treats all
// of these as fatal; there is no graceful-degradation path here.
package structured

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/MrWong99/lorequill/pkg/provider/llm"
)

const defaultTemperature = 0.2

// Option is a functional option for configuring a [Caller].
type Option func(*Caller)

// WithTemperature sets the LLM sampling temperature for all calls.
// Lower values produce more deterministic extractions. Default: 0.2.
func WithTemperature(temp float64) Option {
	return func(c *Caller) {
		c.temperature = temp
	}
}

// WithMaxTokens caps completion length on all calls. Default: provider limit.
func WithMaxTokens(n int) Option {
	return func(c *Caller) {
		c.maxTokens = n
	}
}

// Caller generates schema-conforming values through an [llm.Provider].
// It is safe for concurrent use.
type Caller struct {
	llm         llm.Provider
	validate    *validator.Validate
	temperature float64
	maxTokens   int
}

// New returns a new [Caller] backed by the given provider.
func New(provider llm.Provider, opts ...Option) *Caller {
	c := &Caller{
		llm:         provider,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		temperature: defaultTemperature,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Generate sends systemPrompt and userPrompt to the model and decodes the
// reply into out, which must be a non-nil pointer to a struct carrying
// `json` and `validate` tags. Markdown code fences around the reply are
// tolerated and stripped. Unknown fields in the reply are ignored, matching
// how structural schemas treat extra properties.
//
// Any transport error, JSON syntax error, or validation failure is returned
// as an error; out is left in an unspecified state on failure.
func (c *Caller) Generate(ctx context.Context, systemPrompt, userPrompt string, out any) error {
	resp, err := c.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Temperature:  c.temperature,
		MaxTokens:    c.maxTokens,
		Messages: []llm.Message{
			{Role: "user", Content: userPrompt},
		},
	})
	if err != nil {
		return fmt.Errorf("structured: complete: %w", err)
	}

	cleaned := stripMarkdown(resp.Content)
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return fmt.Errorf("structured: decode model output: %w", err)
	}

	if err := c.validate.Struct(out); err != nil {
		return fmt.Errorf("structured: model output failed schema validation: %w", err)
	}
	return nil
}

// stripMarkdown removes optional markdown code fences (```json ... ```) that
// some models prepend and append to JSON output.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}
