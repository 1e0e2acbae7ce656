package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// CompleteFunc is the signature of the downstream handler middleware wraps.
type CompleteFunc func(ctx context.Context, req *Request) (*Response, error)

// Middleware wraps a provider call. The first middleware registered is the
// outermost layer of the onion.
type Middleware func(next CompleteFunc) CompleteFunc

// Client routes requests to registered provider adapters, applies middleware,
// and retries transient failures.
type Client struct {
	mu           sync.RWMutex
	adapters     map[string]Adapter
	order        []string // registration order, for fallback resolution
	defaultModel string
	middleware   []Middleware
	retry        RetryPolicy
	logger       zerolog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAdapter registers a provider adapter.
func WithAdapter(a Adapter) ClientOption {
	return func(c *Client) {
		c.register(a)
	}
}

// WithDefaultModel sets the model used when a request leaves Model empty.
func WithDefaultModel(model string) ClientOption {
	return func(c *Client) {
		c.defaultModel = model
	}
}

// WithMiddleware appends middleware to the chain.
func WithMiddleware(mw ...Middleware) ClientOption {
	return func(c *Client) {
		c.middleware = append(c.middleware, mw...)
	}
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p RetryPolicy) ClientOption {
	return func(c *Client) {
		c.retry = p
	}
}

// WithLogger sets the logger used for retry and routing diagnostics.
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Client with the given options.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		adapters: make(map[string]Adapter),
		retry:    DefaultRetryPolicy(),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegisterAdapter adds a provider adapter after construction.
func (c *Client) RegisterAdapter(a Adapter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.register(a)
}

func (c *Client) register(a Adapter) {
	name := a.Name()
	if _, exists := c.adapters[name]; !exists {
		c.order = append(c.order, name)
	}
	c.adapters[name] = a
}

// resolveAdapter picks the adapter for a request's model. Unknown providers
// fall back to the first registered adapter.
func (c *Client) resolveAdapter(model string) (Adapter, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.adapters) == 0 {
		return nil, &ConfigurationError{ClientError: ClientError{
			Message: "no provider adapters registered",
		}}
	}
	if provider := ResolveProvider(model); provider != "" {
		if a, ok := c.adapters[provider]; ok {
			return a, nil
		}
	}
	return c.adapters[c.order[0]], nil
}

// Complete sends a request through middleware to the resolved provider,
// retrying transient failures per the client's retry policy.
func (c *Client) Complete(ctx context.Context, req *Request) (*Response, error) {
	if req.Model == "" {
		req.Model = c.defaultModel
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	adapter, err := c.resolveAdapter(req.Model)
	if err != nil {
		return nil, err
	}

	handler := adapter.Complete
	for i := len(c.middleware) - 1; i >= 0; i-- {
		handler = c.middleware[i](handler)
	}

	policy := c.retry
	if policy.OnRetry == nil {
		policy.OnRetry = func(err error, attempt int, delay time.Duration) {
			c.logger.Warn().
				Str("provider", adapter.Name()).
				Str("model", req.Model).
				Int("attempt", attempt).
				Dur("delay", delay).
				Err(err).
				Msg("retrying model request")
		}
	}

	return Retry(ctx, policy, func(ctx context.Context) (*Response, error) {
		return handler(ctx, req)
	})
}

// Close releases resources held by registered adapters.
func (c *Client) Close() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var firstErr error
	for _, a := range c.adapters {
		if closer, ok := a.(Closer); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("closing adapter %s: %w", a.Name(), err)
			}
		}
	}
	return firstErr
}
