// Package generator turns an assembled context into a prose answer using an
// OpenAI-compatible chat completions endpoint.
package generator

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

	"golang.org/x/time/rate"
)

// Default configuration values
const (
	DefaultBaseURL           = "https://api.openai.com/v1"
	DefaultModel             = "gpt-4o-mini"
	DefaultTimeout           = 120 * time.Second
	DefaultRequestsPerSecond = 1.0
	DefaultMaxTokens         = 800
)

var (
	// ErrNoAPIKey is returned when the generator is configured without a key
	ErrNoAPIKey = errors.New("generator API key not set")
	// ErrEmptyAnswer is returned when the service replies without choices
	ErrEmptyAnswer = errors.New("generator returned no answer")
)

const systemPrompt = `You answer questions about a codebase using only the numbered context passages provided.
Cite passages inline as [n]. If the context does not contain the answer, say so plainly.`

// Generator produces an answer for a question from an assembled context
type Generator interface {
	Generate(ctx context.Context, question, contextText string) (string, error)
}

// Config holds configuration for the chat client
type Config struct {
	APIKey            string
	BaseURL           string // Can point at any OpenAI-compatible API
	Model             string
	MaxTokens         int
	Temperature       float64
	RequestsPerSecond float64
	Timeout           time.Duration
}

// Ensure Client implements the interface.
var _ Generator = (*Client)(nil)

// Client calls /chat/completions
type Client struct {
	httpClient  *http.Client
	limiter     *rate.Limiter
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// New creates a chat client. An empty APIKey is an error.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	return &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		limiter:     rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// BuildPrompt formats the user message sent alongside the system prompt
func BuildPrompt(question, contextText string) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	if strings.TrimSpace(contextText) == "" {
		b.WriteString("(no passages found)\n")
	} else {
		b.WriteString(contextText)
		b.WriteString("\n")
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(strings.TrimSpace(question))
	return b.String()
}

// Generate implements Generator
func (c *Client) Generate(ctx context.Context, question, contextText string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: BuildPrompt(question, contextText)},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var chat chatResponse
	if err := json.Unmarshal(raw, &chat); err != nil {
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("chat error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		}
		return "", fmt.Errorf("decode response: %w", err)
	}
	if chat.Error != nil {
		return "", fmt.Errorf("chat error: %s", chat.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat error (status %d)", resp.StatusCode)
	}
	if len(chat.Choices) == 0 {
		return "", ErrEmptyAnswer
	}

	return strings.TrimSpace(chat.Choices[0].Message.Content), nil
}
