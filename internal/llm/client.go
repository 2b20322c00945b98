// Package llm contains the client for the external generation service. The
// core treats generation as an opaque collaborator: an ordered list of
// {role, content} goes in, text comes out, or the call fails with a
// classified error.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Message is one turn handed to the generation service.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generator is the narrow interface the services layer depends on. Both
// conversational replies and single-shot title generation go through it.
type Generator interface {
	// Generate produces text from an ordered message sequence.
	Generate(ctx context.Context, messages []Message) (string, error)

	// GenerateTitle produces one concise title from a seed text.
	GenerateTitle(ctx context.Context, seed string) (string, error)
}

// Classified generation failures. All are retryable from the caller's point
// of view; the distinction exists for logging and metrics.
var (
	ErrTimeout     = errors.New("generation request timed out")
	ErrRateLimited = errors.New("generation service rate limited")
	ErrMalformed   = errors.New("generation response malformed")
	ErrUpstream    = errors.New("generation service error")
)

// Config carries the endpoint settings for an OpenAI-compatible completion
// API.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
}

// Client talks to an OpenAI-compatible /chat/completions endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient constructs a Client with a bounded transport timeout. The
// per-request context deadline set by callers is the effective bound; the
// transport timeout is a backstop.
func NewClient(cfg Config, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// titlePrompt instructs the model to emit exactly one title line.
const titlePrompt = "Based on the chat content, provide one single, clear, and concise title. " +
	"Do not offer multiple options or any extra explanation - just output one title in one sentence: "

// Generate implements Generator.
func (c *Client) Generate(ctx context.Context, messages []Message) (string, error) {
	return c.complete(ctx, messages)
}

// GenerateTitle implements Generator.
func (c *Client) GenerateTitle(ctx context.Context, seed string) (string, error) {
	out, err := c.complete(ctx, []Message{{Role: "user", Content: titlePrompt + seed}})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (c *Client) complete(ctx context.Context, messages []Message) (string, error) {
	reqBody := map[string]any{
		"model":    c.cfg.Model,
		"messages": messages,
		"stream":   false,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal generation request failed: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("build generation request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrUpstream, err)
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	case resp.StatusCode >= 300:
		return "", fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, truncateBody(raw))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", ErrMalformed)
	}
	return parsed.Choices[0].Message.Content, nil
}

// truncateBody keeps error messages readable when upstream returns a large
// error payload.
func truncateBody(b []byte) string {
	const max = 512
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}
