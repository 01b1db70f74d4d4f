package furnish

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"roomDesignAi/internal/design"
	"roomDesignAi/internal/llm"
	"roomDesignAi/internal/prompts"
)

const defaultLimit = 6

// Suggester recommends furniture for a finished redesign.
type Suggester interface {
	Suggest(ctx context.Context, photo design.ImageAnalysisResult, styleName string, rooms []string) ([]design.FurnitureSuggestion, error)
}

// LLMSuggester asks a chat model for a JSON list of furniture pieces.
type LLMSuggester struct {
	client llm.Client
	limit  int
}

// NewLLMSuggester constructs a suggester backed by the given chat client.
func NewLLMSuggester(client llm.Client) *LLMSuggester {
	return &LLMSuggester{client: client, limit: defaultLimit}
}

// Suggest returns at most limit pieces, sorted as the model returned them.
func (s *LLMSuggester) Suggest(ctx context.Context, photo design.ImageAnalysisResult, styleName string, rooms []string) ([]design.FurnitureSuggestion, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("furnish: suggester unavailable")
	}
	if strings.TrimSpace(styleName) == "" {
		return nil, fmt.Errorf("furnish: style name required")
	}

	system, user := prompts.FurniturePrompts(photo.Description, styleName, rooms, photo.StyleTags, s.limit)
	content, err := s.client.ChatCompletion(llm.WithJSONResponse(ctx), []llm.ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}, 0.3)
	if err != nil {
		return nil, fmt.Errorf("furnish: %w", err)
	}

	items, err := parseSuggestions(content)
	if err != nil {
		return nil, err
	}
	if len(items) > s.limit {
		items = items[:s.limit]
	}
	return items, nil
}

func parseSuggestions(content string) ([]design.FurnitureSuggestion, error) {
	var payload struct {
		Items []design.FurnitureSuggestion `json:"items"`
	}
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		start := strings.Index(content, "{")
		end := strings.LastIndex(content, "}")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("furnish: could not parse suggestions")
		}
		if err := json.Unmarshal([]byte(content[start:end+1]), &payload); err != nil {
			return nil, fmt.Errorf("furnish: could not parse suggestions")
		}
	}

	out := make([]design.FurnitureSuggestion, 0, len(payload.Items))
	for _, item := range payload.Items {
		item.Type = strings.TrimSpace(item.Type)
		if item.Type == "" {
			continue
		}
		item.Description = strings.TrimSpace(item.Description)
		if math.IsNaN(item.EstimatedPrice) || item.EstimatedPrice < 0 {
			item.EstimatedPrice = 0
		}
		item.MatchScore = math.Max(0, math.Min(1, item.MatchScore))
		if math.IsNaN(item.MatchScore) {
			item.MatchScore = 0
		}
		out = append(out, item)
	}
	return out, nil
}
