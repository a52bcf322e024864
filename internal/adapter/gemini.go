package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/modelforge/modelforge/internal/domain"
)

// geminiPrompt joins system-then-user messages with blank lines into the
// single prompt string gemini's contents.parts[0].text expects (spec §4.2).
func geminiPrompt(messages []Message) string {
	var parts []string
	for _, m := range messages {
		if m.Content == "" {
			continue
		}
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, "\n\n")
}

func (c *Client) geminiBody(m *domain.Model, messages []Message) map[string]any {
	return map[string]any{
		"contents": []map[string]any{
			{
				"role": "user",
				"parts": []map[string]any{
					{"text": geminiPrompt(messages)},
				},
			},
		},
		"generationConfig": projectParams(domain.AdapterGemini, m.Params),
	}
}

type geminiCompletionResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (c *Client) completeGemini(ctx context.Context, p *domain.Provider, m *domain.Model, messages []Message) (string, error) {
	u := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", p.BaseURL, m.VendorID, url.QueryEscape(p.Credential))
	resp, err := c.doJSON(ctx, "POST", u, nil, c.geminiBody(m, messages))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var parsed geminiCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode gemini response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini response had no candidate text")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}
