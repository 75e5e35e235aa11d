package structured_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/lorequill/internal/structured"
	"github.com/MrWong99/lorequill/pkg/provider/llm"
	"github.com/MrWong99/lorequill/pkg/provider/llm/mock"
)

type sceneList struct {
	Scenes []scene `json:"scenes" validate:"required,dive"`
}

type scene struct {
	Name  string `json:"name" validate:"required"`
	Start int    `json:"start" validate:"min=0"`
}

func TestGenerate_DecodesValidJSON(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: `{"scenes":[{"name":"Tavern","start":0}]}`},
	}
	c := structured.New(p)

	var out sceneList
	if err := c.Generate(context.Background(), "sys", "user", &out); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(out.Scenes) != 1 || out.Scenes[0].Name != "Tavern" {
		t.Errorf("out = %+v, want one scene named Tavern", out)
	}
}

func TestGenerate_StripsMarkdownFences(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: "```json\n{\"scenes\":[{\"name\":\"Tavern\",\"start\":5}]}\n```",
		},
	}
	c := structured.New(p)

	var out sceneList
	if err := c.Generate(context.Background(), "sys", "user", &out); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out.Scenes[0].Start != 5 {
		t.Errorf("Start = %d, want 5", out.Scenes[0].Start)
	}
}

func TestGenerate_TransportErrorIsFatal(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("boom")
	p := &mock.Provider{CompleteErr: wantErr}
	c := structured.New(p)

	var out sceneList
	err := c.Generate(context.Background(), "sys", "user", &out)
	if !errors.Is(err, wantErr) {
		t.Fatalf("Generate err = %v, want wrapped %v", err, wantErr)
	}
}

func TestGenerate_InvalidJSONIsFatal(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "I could not produce JSON, sorry!"},
	}
	c := structured.New(p)

	var out sceneList
	if err := c.Generate(context.Background(), "sys", "user", &out); err == nil {
		t.Fatal("Generate = nil error, want decode failure")
	}
}

func TestGenerate_ValidationFailureIsFatal(t *testing.T) {
	t.Parallel()

	// Scene missing the required name.
	p := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: `{"scenes":[{"start":0}]}`},
	}
	c := structured.New(p)

	var out sceneList
	if err := c.Generate(context.Background(), "sys", "user", &out); err == nil {
		t.Fatal("Generate = nil error, want validation failure")
	}
}

func TestGenerate_SendsPromptsAndTemperature(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: `{"scenes":[{"name":"x","start":0}]}`},
	}
	c := structured.New(p, structured.WithTemperature(0.7), structured.WithMaxTokens(512))

	var out sceneList
	if err := c.Generate(context.Background(), "the system prompt", "the user prompt", &out); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if len(p.CompleteCalls) != 1 {
		t.Fatalf("CompleteCalls = %d, want 1", len(p.CompleteCalls))
	}
	req := p.CompleteCalls[0].Req
	if req.SystemPrompt != "the system prompt" {
		t.Errorf("SystemPrompt = %q", req.SystemPrompt)
	}
	if len(req.Messages) != 1 || req.Messages[0].Content != "the user prompt" {
		t.Errorf("Messages = %+v, want single user prompt", req.Messages)
	}
	if req.Temperature != 0.7 {
		t.Errorf("Temperature = %f, want 0.7", req.Temperature)
	}
	if req.MaxTokens != 512 {
		t.Errorf("MaxTokens = %d, want 512", req.MaxTokens)
	}
}
