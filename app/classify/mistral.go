package classify

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/constituant/constituant/app/fetch"
)

const (
	DefaultEndpoint = "https://api.mistral.ai/v1/chat/completions"
	DefaultModel    = "mistral-small-latest"
	DefaultTimeout  = 30 * time.Second
	DefaultAttempts = 3
	DefaultBackoff  = 2 * time.Second
)

type Options struct {
	APIKey      string
	Endpoint    string
	Model       string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
	Attempts    int
	Backoff     time.Duration
	// Client carries the shared user agent. A private client is built when nil.
	Client *fetch.Client
}

// MistralClassifier talks to an OpenAI-compatible chat-completions endpoint.
type MistralClassifier struct {
	apiKey      string
	endpoint    string
	model       string
	temperature float64
	maxTokens   int
	attempts    int
	backoff     time.Duration
	timeout     time.Duration
	client      *fetch.Client
}

var _ Classifier = (*MistralClassifier)(nil)

func NewMistralClassifier(opts Options) *MistralClassifier {
	timeout := cmp.Or(opts.Timeout, DefaultTimeout)
	client := opts.Client
	if client == nil {
		client = fetch.NewClient(fetch.Options{Timeout: timeout})
	}

	return &MistralClassifier{
		apiKey:      opts.APIKey,
		endpoint:    cmp.Or(opts.Endpoint, DefaultEndpoint),
		model:       cmp.Or(opts.Model, DefaultModel),
		temperature: cmp.Or(opts.Temperature, 0.3),
		maxTokens:   cmp.Or(opts.MaxTokens, 500),
		attempts:    cmp.Or(opts.Attempts, DefaultAttempts),
		backoff:     opts.Backoff,
		timeout:     timeout,
		client:      client,
	}
}

// Classify never fails hard: on error it returns FallbackResult together with the cause.
func (c *MistralClassifier) Classify(ctx context.Context, in Input) (Result, error) {
	if c.apiKey == "" {
		return FallbackResult(in), ErrDisabled
	}
	if strings.TrimSpace(in.Title) == "" {
		return FallbackResult(in), fmt.Errorf("title is required for classification")
	}

	prompt := buildPrompt(in)

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		result, err := c.complete(ctx, prompt)
		if err == nil {
			slog.Debug("Bill classified", "title", in.Title, "theme", result.Theme, "attempt", attempt)
			return result, nil
		}
		lastErr = err

		slog.Warn("Classification attempt failed", "title", in.Title, "attempt", attempt, "error", err)

		if attempt < c.attempts {
			if err := fetch.Sleep(ctx, c.backoff); err != nil {
				lastErr = err
				break
			}
		}
	}

	return FallbackResult(in), fmt.Errorf("classification failed after %d attempts: %w", c.attempts, lastErr)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *MistralClassifier) complete(ctx context.Context, prompt string) (Result, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	resp, err := c.client.Post(ctx, c.endpoint, body, fetch.RequestOptions{
		Timeout: c.timeout,
		Headers: map[string]string{"Authorization": "Bearer " + c.apiKey},
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to call model: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("model returned status %d", resp.StatusCode)
	}

	var chat chatResponse
	if err := json.Unmarshal(resp.Body, &chat); err != nil {
		return Result{}, fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(chat.Choices) == 0 || chat.Choices[0].Message.Content == "" {
		return Result{}, fmt.Errorf("chat response has no content")
	}

	return parseReply(chat.Choices[0].Message.Content)
}
