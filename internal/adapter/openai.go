package adapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelforge/modelforge/internal/domain"
)

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func toOpenAIMessages(messages []Message) []openaiMessage {
	out := make([]openaiMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openaiMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

func (c *Client) openAIBody(m *domain.Model, messages []Message, stream bool) map[string]any {
	body := map[string]any{
		"model":    m.VendorID,
		"messages": toOpenAIMessages(messages),
	}
	if stream {
		body["stream"] = true
	}
	for k, v := range projectParams(domain.AdapterOpenAICompat, m.Params) {
		body[k] = v
	}
	return body
}

func (c *Client) openAIHeaders(p *domain.Provider) map[string]string {
	headers := map[string]string{}
	if p.Credential != "" {
		headers["Authorization"] = "Bearer " + p.Credential
	}
	return headers
}

type openAICompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) completeOpenAICompat(ctx context.Context, p *domain.Provider, m *domain.Model, messages []Message) (string, error) {
	resp, err := c.doJSON(ctx, "POST", p.BaseURL+"/chat/completions", c.openAIHeaders(p), c.openAIBody(m, messages, false))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var parsed openAICompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode openai-compat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openai-compat response had no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

type openAIStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (c *Client) streamOpenAICompat(ctx context.Context, p *domain.Provider, m *domain.Model, messages []Message, onToken OnToken) (string, error) {
	resp, err := c.doJSON(ctx, "POST", p.BaseURL+"/chat/completions", c.openAIHeaders(p), c.openAIBody(m, messages, true))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var full string
	err = scanSSE(resp.Body, func(line sseLine) {
		if line.done || line.raw == nil {
			return
		}
		var chunk openAIStreamChunk
		if jsonErr := json.Unmarshal(line.raw, &chunk); jsonErr != nil {
			return
		}
		if len(chunk.Choices) == 0 {
			return
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			return
		}
		full += delta
		if onToken != nil {
			onToken(delta)
		}
	})
	if err != nil {
		return "", fmt.Errorf("failed reading openai-compat stream: %w", err)
	}
	return full, nil
}
