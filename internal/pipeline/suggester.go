package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiSuggester asks a Gemini model to map columns when keyword detection
// fails.
type GeminiSuggester struct {
	model string
}

// NewGeminiSuggester creates a suggester for the given model. An empty name
// uses DefaultModelName.
func NewGeminiSuggester(model string) *GeminiSuggester {
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiSuggester{model: model}
}

// SuggestMapping returns role -> column name as proposed by the model. Names
// are not validated against the table here; DetectColumns does that.
func (s *GeminiSuggester) SuggestMapping(ctx context.Context, t Table) (map[Role]string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("SuggestMapping: create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: buildColumnMappingPrompt(t)}},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, s.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("SuggestMapping: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("SuggestMapping: empty response from model")
	}

	return parseMappingResponse(rawText)
}

// parseMappingResponse decodes the model's JSON object into a mapping. Null
// or missing keys are left out.
func parseMappingResponse(rawText string) (map[Role]string, error) {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(cleanModelJSON(rawText)), &obj); err != nil {
		return nil, fmt.Errorf("parseMappingResponse: unmarshal JSON: %w\nraw response: %s", err, rawText)
	}

	mapping := make(map[Role]string)
	for _, role := range []Role{RoleDate, RoleBillingDate, RoleAmount, RoleDescription, RoleCategory} {
		name, err := getOptionalStringField(obj, string(role))
		if err != nil {
			return nil, fmt.Errorf("parseMappingResponse: %w", err)
		}
		if name != nil {
			mapping[role] = *name
		}
	}
	return mapping, nil
}

// cleanModelJSON strips Markdown fences and any text around the outermost
// JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}

func getOptionalStringField(m map[string]interface{}, key string) (*string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return nil, nil
		}
		return &s, nil
	default:
		return nil, fmt.Errorf("field %q has type %T, want string or null", key, v)
	}
}
