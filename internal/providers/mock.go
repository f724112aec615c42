package providers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const MockClientName = "mock"

// MockClient is a CompletionClient for testing.
type MockClient struct {
	// Configurable behavior
	Latency      time.Duration
	ShouldFail   bool
	FailTimes    int  // Fail the first N requests with a transport error
	RateLimitAll bool // Every request returns a RateLimitError
	EmptyText    bool // Succeed but return an empty translation
	ResponseText string
	Translate429 time.Duration // RetryAfter attached to rate limit errors

	// Rate limiting
	RPM int

	// State
	requestCount atomic.Int64
	mu           sync.Mutex
	callTimes    []time.Time
}

// NewMockClient creates a new mock client with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{
		Latency: time.Millisecond,
		RPM:     6000,
	}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// RequestsPerMinute returns the RPM limit for rate limiting.
func (c *MockClient) RequestsPerMinute() int {
	return c.RPM
}

// Translate returns a canned translation, or the configured failure.
func (c *MockClient) Translate(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()
	count := c.requestCount.Add(1)
	c.mu.Lock()
	c.callTimes = append(c.callTimes, start)
	c.mu.Unlock()

	if c.ShouldFail {
		return nil, &TransportError{Message: "mock client configured to fail"}
	}
	if c.FailTimes > 0 && int(count) <= c.FailTimes {
		return nil, &TransportError{
			StatusCode: 502,
			Message:    fmt.Sprintf("mock transport failure %d of %d", count, c.FailTimes),
		}
	}
	if c.RateLimitAll {
		return nil, &RateLimitError{
			Message:    "mock rate limited",
			RetryAfter: c.Translate429,
			StatusCode: 429,
		}
	}

	// Simulate latency
	select {
	case <-time.After(c.Latency):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	text := c.ResponseText
	if text == "" && !c.EmptyText {
		text = "[translated] " + req.Text
	}

	promptTokens := len(req.Text)/4 + len(req.Context)/4
	completionTokens := len(text) / 4

	return &Result{
		Text:             text,
		Provider:         MockClientName,
		Model:            "mock-model",
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		CostUSD:          0.001,
		Latency:          time.Since(start),
	}, nil
}

// RequestCount returns the number of requests made.
func (c *MockClient) RequestCount() int64 {
	return c.requestCount.Load()
}

// CallTimes returns when each request arrived, in order.
func (c *MockClient) CallTimes() []time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Time(nil), c.callTimes...)
}

// Reset resets the request counter and call history.
func (c *MockClient) Reset() {
	c.requestCount.Store(0)
	c.mu.Lock()
	c.callTimes = nil
	c.mu.Unlock()
}

// Verify interface
var _ CompletionClient = (*MockClient)(nil)
