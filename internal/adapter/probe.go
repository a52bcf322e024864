package adapter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/modelforge/modelforge/internal/domain"
)

// ProbeAttempt records the outcome of one connectivity probe GET.
type ProbeAttempt struct {
	URL        string
	StatusCode int
	Error      string
	Headers    map[string]string
}

// ProbeResult is the outcome of TestProvider: Success is true as soon as one
// attempt returns a 2xx, and Attempts records every attempt made so far.
type ProbeResult struct {
	Success  bool
	Attempts []ProbeAttempt
}

// probedHeaders is the small set of response headers worth surfacing to an
// operator diagnosing a failed probe.
var probedHeaders = []string{"Content-Type", "Server", "X-Request-Id", "Retry-After"}

// normalizeBaseURL trims trailing slashes, and for probes additionally
// strips a trailing /v1 segment before candidate URLs are built (spec §6.4).
func normalizeBaseURL(raw string, stripV1 bool) string {
	trimmed := strings.TrimRight(raw, "/")
	if stripV1 {
		trimmed = strings.TrimSuffix(trimmed, "/v1")
	}
	return trimmed
}

// TestProvider attempts GET {base}/v1/models, then {base}/models, then
// {base} itself, stopping at the first 2xx (spec §6.4).
func (c *Client) TestProvider(ctx context.Context, p *domain.Provider) ProbeResult {
	base := normalizeBaseURL(p.BaseURL, true)
	candidates := []string{base + "/v1/models", base + "/models", base}

	result := ProbeResult{}
	for _, candidate := range candidates {
		attempt := c.probeOnce(ctx, p, candidate)
		result.Attempts = append(result.Attempts, attempt)
		if attempt.Error == "" && attempt.StatusCode >= 200 && attempt.StatusCode < 300 {
			result.Success = true
			return result
		}
	}
	return result
}

func (c *Client) probeOnce(ctx context.Context, p *domain.Provider, target string) ProbeAttempt {
	u := target
	headers := map[string]string{}

	switch p.AdapterKind {
	case domain.AdapterAnthropic:
		headers["x-api-key"] = p.Credential
	case domain.AdapterGemini:
		if p.Credential != "" {
			parsed, err := url.Parse(target)
			if err == nil {
				q := parsed.Query()
				q.Set("key", p.Credential)
				parsed.RawQuery = q.Encode()
				u = parsed.String()
			}
		}
	default:
		if p.Credential != "" {
			headers["Authorization"] = "Bearer " + p.Credential
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return ProbeAttempt{URL: u, Error: fmt.Sprintf("failed to build probe request: %v", err)}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ProbeAttempt{URL: u, Error: err.Error()}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	collected := map[string]string{}
	for _, h := range probedHeaders {
		if v := resp.Header.Get(h); v != "" {
			collected[h] = v
		}
	}

	attempt := ProbeAttempt{URL: u, StatusCode: resp.StatusCode, Headers: collected}
	if resp.StatusCode >= 400 {
		attempt.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return attempt
}
