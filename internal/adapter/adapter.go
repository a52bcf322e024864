// Package adapter normalizes the three provider wire protocols (openai-
// compat, anthropic, gemini) behind one complete/stream interface (C2).
package adapter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/modelforge/modelforge/internal/domain"
	"github.com/modelforge/modelforge/internal/retry"
)

// Message is one chat turn; Role is "system", "user" or "assistant".
type Message struct {
	Role    string
	Content string
}

// OnToken is invoked once per streamed text delta.
type OnToken func(delta string)

// Client completes or streams a chat exchange against one Provider/Model
// pair, retrying transient failures per C3.
type Client struct {
	httpClient *http.Client
	logger     *logrus.Entry
}

// New builds a Client. A nil logger falls back to an entry on a default
// logrus logger, which writes to stderr.
func New(httpClient *http.Client, logger *logrus.Entry) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	return &Client{httpClient: httpClient, logger: logger}
}

// Complete performs a non-streaming chat completion (spec §4.2).
func (c *Client) Complete(ctx context.Context, p *domain.Provider, m *domain.Model, messages []Message) (string, error) {
	var text string
	_, err := retry.Do(ctx, c.logger, func(ctx context.Context) error {
		var err error
		text, err = c.complete(ctx, p, m, messages)
		return err
	})
	return text, err
}

// Stream performs a streaming chat completion, invoking onToken per delta,
// and returns the full accumulated text. Gemini has no streaming wire
// format, so it falls back to Complete and emits one synthetic token
// carrying the whole response (spec §4.2).
func (c *Client) Stream(ctx context.Context, p *domain.Provider, m *domain.Model, messages []Message, onToken OnToken) (string, error) {
	if p.AdapterKind == domain.AdapterGemini {
		text, err := c.Complete(ctx, p, m, messages)
		if err == nil && onToken != nil {
			onToken(text)
		}
		return text, err
	}

	var text string
	_, err := retry.Do(ctx, c.logger, func(ctx context.Context) error {
		var err error
		text, err = c.stream(ctx, p, m, messages, onToken)
		return err
	})
	return text, err
}

func (c *Client) complete(ctx context.Context, p *domain.Provider, m *domain.Model, messages []Message) (string, error) {
	switch p.AdapterKind {
	case domain.AdapterAnthropic:
		return c.completeAnthropic(ctx, p, m, messages)
	case domain.AdapterGemini:
		return c.completeGemini(ctx, p, m, messages)
	default:
		return c.completeOpenAICompat(ctx, p, m, messages)
	}
}

func (c *Client) stream(ctx context.Context, p *domain.Provider, m *domain.Model, messages []Message, onToken OnToken) (string, error) {
	switch p.AdapterKind {
	case domain.AdapterAnthropic:
		return c.streamAnthropic(ctx, p, m, messages, onToken)
	default:
		return c.streamOpenAICompat(ctx, p, m, messages, onToken)
	}
}

func (c *Client) doJSON(ctx context.Context, method, url string, headers map[string]string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", url, err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("HTTP %d from %s: %s", resp.StatusCode, url, strings.TrimSpace(string(snippet)))
	}
	return resp, nil
}

// sseLine is one parsed `data:` payload from an SSE stream.
type sseLine struct {
	done bool
	raw  json.RawMessage
}

// scanSSE reads r line by line per spec §4.2's SSE parsing rules: split on
// \r?\n, skip blank lines and comment (`:`) lines, `data:` lines carry a
// JSON payload or the literal [DONE] sentinel. Malformed individual lines
// are ignored rather than aborting the whole stream.
func scanSSE(r io.Reader, onLine func(sseLine)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			onLine(sseLine{done: true})
			return nil
		}
		onLine(sseLine{raw: json.RawMessage(payload)})
	}
	return scanner.Err()
}
