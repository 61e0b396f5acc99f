package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is used when no model name is configured.
const DefaultGeminiModel = "gemini-1.5-flash"

// Gemini is a Responder backed by the Gemini API.
type Gemini struct {
	client      *genai.Client
	model       string
	temperature float32
	topP        float32
	maxTokens   int32
}

// GeminiOption configures Gemini.
type GeminiOption func(*Gemini)

// WithModel sets the model name.
func WithModel(name string) GeminiOption {
	return func(g *Gemini) {
		if name != "" {
			g.model = name
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) GeminiOption {
	return func(g *Gemini) { g.temperature = t }
}

// WithMaxTokens caps the reply length.
func WithMaxTokens(n int32) GeminiOption {
	return func(g *Gemini) { g.maxTokens = n }
}

// NewGemini creates a Gemini responder authenticated with apiKey.
func NewGemini(ctx context.Context, apiKey string, opts ...GeminiOption) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: api key required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	g := &Gemini{
		client:      client,
		model:       DefaultGeminiModel,
		temperature: 0.5,
		topP:        0.9,
		maxTokens:   2048,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Respond sends one message under the given system prompt.
// A model handle is built per call since the system instruction varies by agent.
func (g *Gemini) Respond(ctx context.Context, req Request) (string, error) {
	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(g.temperature)
	model.SetTopP(g.topP)
	model.SetMaxOutputTokens(g.maxTokens)
	if req.SystemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.SystemPrompt)}}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Message))
	if err != nil {
		return "", fmt.Errorf("gemini: generate: %w", err)
	}
	text := replyText(resp)
	if text == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}

// Close releases the underlying client.
func (g *Gemini) Close() error {
	return g.client.Close()
}

func replyText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}

var _ Responder = (*Gemini)(nil)
