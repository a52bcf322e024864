package adapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelforge/modelforge/internal/domain"
)

const anthropicVersion = "2023-06-01"

func (c *Client) anthropicBody(m *domain.Model, messages []Message, stream bool) map[string]any {
	var system string
	var turns []openaiMessage
	for _, msg := range messages {
		if msg.Role == "system" {
			system = msg.Content
			continue
		}
		turns = append(turns, openaiMessage{Role: msg.Role, Content: msg.Content})
	}

	body := map[string]any{
		"model":    m.VendorID,
		"messages": turns,
	}
	if system != "" {
		body["system"] = system
	}
	if stream {
		body["stream"] = true
	}

	params := projectParams(domain.AdapterAnthropic, m.Params)
	for k, v := range params {
		body[k] = v
	}
	if _, ok := params["max_tokens"]; !ok {
		body["max_tokens"] = 1024
	}
	return body
}

func (c *Client) anthropicHeaders(p *domain.Provider) map[string]string {
	headers := map[string]string{"anthropic-version": anthropicVersion}
	if p.Credential != "" {
		headers["x-api-key"] = p.Credential
	}
	return headers
}

type anthropicCompletionResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

func (c *Client) completeAnthropic(ctx context.Context, p *domain.Provider, m *domain.Model, messages []Message) (string, error) {
	resp, err := c.doJSON(ctx, "POST", p.BaseURL+"/v1/messages", c.anthropicHeaders(p), c.anthropicBody(m, messages, false))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var parsed anthropicCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode anthropic response: %w", err)
	}
	if len(parsed.Content) == 0 {
		return "", fmt.Errorf("anthropic response had no content blocks")
	}
	return parsed.Content[0].Text, nil
}

type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Text string `json:"text"`
	} `json:"delta"`
}

func (c *Client) streamAnthropic(ctx context.Context, p *domain.Provider, m *domain.Model, messages []Message, onToken OnToken) (string, error) {
	resp, err := c.doJSON(ctx, "POST", p.BaseURL+"/v1/messages", c.anthropicHeaders(p), c.anthropicBody(m, messages, true))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var full string
	err = scanSSE(resp.Body, func(line sseLine) {
		if line.done || line.raw == nil {
			return
		}
		var event anthropicStreamEvent
		if jsonErr := json.Unmarshal(line.raw, &event); jsonErr != nil {
			return
		}
		if event.Type != "content_block_delta" || event.Delta.Text == "" {
			return
		}
		full += event.Delta.Text
		if onToken != nil {
			onToken(event.Delta.Text)
		}
	})
	if err != nil {
		return "", fmt.Errorf("failed reading anthropic stream: %w", err)
	}
	return full, nil
}
