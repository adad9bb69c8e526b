// Package summarize produces structured AI summaries of transcripts.
package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/yonatanl/tamlil/internal/task"
)

// Noop is used when no Gemini API key is configured. Summarize reports the
// capability as absent so the task completes without a summary.
type Noop struct{}

// Summarize returns no summary and no error.
func (Noop) Summarize(ctx context.Context, text string) (*task.Summary, error) {
	return nil, nil
}

const summaryPrompt = `Analyze this Hebrew lecture transcript. Return only a valid JSON object with this exact structure:
{"title": "...", "summary": "...", "key_points": ["..."], "tags": ["..."]}

- title: one short sentence naming the topic, in Hebrew
- summary: a concise 2-3 paragraph summary, in Hebrew
- key_points: the 3-5 main points, in Hebrew
- tags: up to 5 short topic tags

Transcript:
%s`

// Gemini implements summarization and free-form generation over the Google
// Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// NewGemini creates a Gemini client. model defaults to gemini-2.5-flash.
func NewGemini(ctx context.Context, apiKey, model string, logger *slog.Logger) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Gemini{client: client, model: model, logger: logger}, nil
}

// Summarize asks the model for a structured digest of the transcript text.
// The caller is responsible for bounding the input size.
func (g *Gemini) Summarize(ctx context.Context, text string) (*task.Summary, error) {
	raw, err := g.Generate(ctx, fmt.Sprintf(summaryPrompt, text))
	if err != nil {
		return nil, err
	}

	var summary task.Summary
	if err := json.Unmarshal([]byte(stripFences(raw)), &summary); err != nil {
		return nil, fmt.Errorf("parse summary response: %w", err)
	}
	return &summary, nil
}

// Generate sends a prompt and returns the concatenated text parts of the
// first candidate. Shared by the summarizer and the Q&A endpoints.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", errors.New("empty response from gemini")
	}

	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	if sb.Len() == 0 {
		return "", errors.New("gemini response contained no text")
	}
	return sb.String(), nil
}

// stripFences removes a surrounding markdown code fence, which the model
// emits even when asked for bare JSON.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
