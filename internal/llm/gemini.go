// Package llm generates recommendation reasoning with the Gemini API.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"voltsite/internal/types"
)

const (
	defaultModel   = "gemini-2.0-flash"
	requestTimeout = 20 * time.Second
)

// GeminiReasoner produces one short narrative per recommendation. It is safe
// for concurrent use.
type GeminiReasoner struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// NewGeminiReasoner creates a reasoner. An empty API key is an error; callers
// run without a reasoner in that case.
func NewGeminiReasoner(ctx context.Context, apiKey, model string, logger *slog.Logger) (*GeminiReasoner, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = defaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, &types.AppError{
			Code:    types.ErrCodeUpstreamLLM,
			Message: "failed to create gemini client",
			Err:     err,
		}
	}

	return &GeminiReasoner{client: client, model: model, logger: logger}, nil
}

// SiteReasoning implements synth.Reasoner. The response is flattened to a
// single paragraph.
func (r *GeminiReasoner) SiteReasoning(ctx context.Context, loc types.LocationInfo, scores types.SiteScores) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	prompt := reasoningPrompt(loc, scores)
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	result, err := r.client.Models.GenerateContent(ctx, r.model, contents, nil)
	if err != nil {
		return "", &types.AppError{
			Code:    types.ErrCodeUpstreamLLM,
			Message: "gemini generation failed",
			Err:     err,
		}
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", &types.AppError{
			Code:    types.ErrCodeUpstreamLLM,
			Message: "gemini returned empty response",
		}
	}
	return strings.Join(strings.Fields(text), " "), nil
}

func reasoningPrompt(loc types.LocationInfo, scores types.SiteScores) string {
	return fmt.Sprintf(`You are an EV charging infrastructure analyst. In two sentences, justify recommending %s (%s) as an EV charging station site given these 0-10 scores: traffic %.1f, grid capacity %.1f, competition gap %.1f, demographics %.1f, ROI potential %.1f, overall %.1f. Be concrete and avoid hedging.`,
		loc.Name, loc.Region,
		scores.Traffic, scores.GridCapacity, scores.CompetitionGap,
		scores.Demographics, scores.ROIPotential, scores.Overall)
}
