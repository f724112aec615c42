package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	OpenAIName         = "openai"
	openAIDefaultModel = "gpt-4o-mini"

	// Pricing fallback when the model is not in the configured table.
	// Values represent USD per 1M tokens (gpt-4o-mini).
	openAIDefaultPromptCostPer1M     = 0.15
	openAIDefaultCompletionCostPer1M = 0.60
)

// OpenAIConfig holds configuration for the OpenAI completion client.
type OpenAIConfig struct {
	APIKey              string
	Model               string  // "gpt-4o-mini" (default)
	Temperature         float64 // 0 uses the API default
	MaxTokens           int     // 0 leaves output unbounded
	RateLimit           int     // Requests per minute
	Timeout             time.Duration
	PromptCostPer1M     float64 // USD per 1M prompt tokens
	CompletionCostPer1M float64 // USD per 1M completion tokens
	BaseURL             string  // Optional (tests, proxies)
	HTTPClient          *http.Client
}

// OpenAIClient implements CompletionClient using the official OpenAI SDK.
type OpenAIClient struct {
	model               string
	temperature         float64
	maxTokens           int
	rateLimit           int
	promptCostPer1M     float64
	completionCostPer1M float64
	client              openai.Client
}

// NewOpenAIClient creates a new OpenAI completion client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = openAIDefaultModel
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 150
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second
	}
	if cfg.PromptCostPer1M <= 0 {
		cfg.PromptCostPer1M = openAIDefaultPromptCostPer1M
	}
	if cfg.CompletionCostPer1M <= 0 {
		cfg.CompletionCostPer1M = openAIDefaultCompletionCostPer1M
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		// The retry budget belongs to the orchestrator, not the SDK;
		// SDK-internal retries would make attempt accounting wrong.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		model:               cfg.Model,
		temperature:         cfg.Temperature,
		maxTokens:           cfg.MaxTokens,
		rateLimit:           cfg.RateLimit,
		promptCostPer1M:     cfg.PromptCostPer1M,
		completionCostPer1M: cfg.CompletionCostPer1M,
		client:              openai.NewClient(opts...),
	}
}

// Name returns the provider identifier.
func (c *OpenAIClient) Name() string {
	return OpenAIName
}

// RequestsPerMinute returns the configured rate limit.
func (c *OpenAIClient) RequestsPerMinute() int {
	return c.rateLimit
}

// Model returns the configured model.
func (c *OpenAIClient) Model() string {
	return c.model
}

// Translate sends one chunk for translation.
func (c *OpenAIClient) Translate(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()

	if req == nil || strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("request text is required")
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt(req.SourceLang, req.TargetLang)),
			openai.UserMessage(userPrompt(req)),
		},
	}
	if c.temperature > 0 {
		params.Temperature = openai.Float(c.temperature)
	}
	if c.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(c.maxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, mapOpenAIError(ctx, err)
	}

	if len(resp.Choices) == 0 {
		// Occasionally returned with a 200 status; treat as transport.
		return nil, &TransportError{Message: "completion returned no choices"}
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	result := &Result{
		Text:             text,
		Provider:         OpenAIName,
		Model:            resp.Model,
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
		Latency:          time.Since(start),
	}
	result.CostUSD = float64(result.PromptTokens)*(c.promptCostPer1M/1_000_000.0) +
		float64(result.CompletionTokens)*(c.completionCostPer1M/1_000_000.0)

	return result, nil
}

func systemPrompt(sourceLang, targetLang string) string {
	var b strings.Builder
	b.WriteString("You are a literary translator")
	if sourceLang != "" && targetLang != "" {
		fmt.Fprintf(&b, " translating from %s to %s", sourceLang, targetLang)
	} else if targetLang != "" {
		fmt.Fprintf(&b, " translating into %s", targetLang)
	}
	b.WriteString(". Translate the passage faithfully, preserving paragraph breaks, ")
	b.WriteString("dialogue formatting, and narrative voice. Output only the translation, ")
	b.WriteString("with no commentary.")
	return b.String()
}

func userPrompt(req *Request) string {
	if req.Context == "" {
		return req.Text
	}
	var b strings.Builder
	b.WriteString("The translation so far ends with:\n\n")
	b.WriteString(req.Context)
	b.WriteString("\n\nContinue by translating the next passage:\n\n")
	b.WriteString(req.Text)
	return b.String()
}

func mapOpenAIError(ctx context.Context, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			retryAfter := time.Duration(0)
			if apiErr.Response != nil {
				retryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
			}
			return &RateLimitError{
				Message:    fmt.Sprintf("OpenAI rate limited: %s", apiErr.Message),
				RetryAfter: retryAfter,
				StatusCode: apiErr.StatusCode,
			}
		}
		if apiErr.StatusCode >= 500 {
			return &TransportError{
				StatusCode: apiErr.StatusCode,
				Message:    apiErr.Message,
			}
		}
		if apiErr.Message != "" {
			return fmt.Errorf("OpenAI error (status %d): %s", apiErr.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("OpenAI error (status %d)", apiErr.StatusCode)
	}
	// Only the run context decides cancellation. A per-attempt HTTP client
	// timeout also reports context.DeadlineExceeded, but with a live run
	// context it is a transport failure and must stay retryable.
	if ctx.Err() != nil {
		return ctx.Err()
	}
	// Connection resets, DNS failures, client timeouts and friends arrive
	// as plain errors.
	return &TransportError{Message: err.Error()}
}

var _ CompletionClient = (*OpenAIClient)(nil)
