// Package openai adapts the OpenAI SDK to the provider contract.
package openai

import (
	"context"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/relayforge/relay"
	"github.com/relayforge/relay/provider"
	"github.com/relayforge/relay/retry"
)

// DefaultModel is used when a request does not name a model.
const DefaultModel = "gpt-4o"

// Client wraps the OpenAI SDK to implement provider.Provider.
type Client struct {
	client   *openai.Client
	model    string
	retryCfg retry.Config
	logger   *slog.Logger
}

// New creates a new OpenAI client with the given API key.
func New(apiKey string, opts ...ClientOption) *Client {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	c := &Client{
		client:   &client,
		model:    DefaultModel,
		retryCfg: retry.DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClientOption configures the OpenAI client.
type ClientOption func(*Client)

// WithModel sets the default model for requests.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		c.model = model
	}
}

// WithRetryConfig overrides the retry policy for transient upstream errors.
func WithRetryConfig(cfg retry.Config) ClientOption {
	return func(c *Client) {
		c.retryCfg = cfg
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// GenerateResponse runs one inference turn without tool schemas.
func (c *Client) GenerateResponse(ctx context.Context, req relay.Request, runID string) (*relay.Response, error) {
	return c.generate(ctx, req, runID, false)
}

// GenerateWithTools runs one inference turn forwarding the declared tools.
func (c *Client) GenerateWithTools(ctx context.Context, req relay.Request, runID string) (*relay.Response, error) {
	return c.generate(ctx, req, runID, true)
}

func (c *Client) generate(ctx context.Context, req relay.Request, runID string, withTools bool) (*relay.Response, error) {
	model := c.model
	if req.Model != "" {
		model = req.Model
	}

	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: convertMessages(req.Messages),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if withTools && len(req.Tools) > 0 {
		tools, err := convertTools(req.Tools)
		if err != nil {
			return nil, err
		}
		params.Tools = tools
	}

	resp, err := retry.Do(ctx, c.retryCfg, func() (*openai.ChatCompletion, error) {
		resp, err := c.client.Chat.Completions.New(ctx, params)
		return resp, wrapError(err)
	})
	if err != nil {
		c.logger.Error("openai request failed", "run_id", runID, "model", model, "error", err)
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, relay.NewProviderError("openai returned no choices", 0, nil)
	}

	choices := make([]relay.Choice, len(resp.Choices))
	for i, ch := range resp.Choices {
		choices[i] = relay.Choice{
			Message: relay.ResponseMessage{
				Content:   ch.Message.Content,
				ToolCalls: extractToolCalls(ch.Message),
			},
			FinishReason: string(ch.FinishReason),
		}
	}

	return &relay.Response{
		Choices: choices,
		Usage: relay.Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
	}, nil
}

// HealthCheck probes the OpenAI API by fetching the configured model.
func (c *Client) HealthCheck(ctx context.Context) provider.Health {
	if _, err := c.client.Models.Get(ctx, c.model); err != nil {
		return provider.Health{Error: wrapError(err).Error()}
	}
	return provider.Health{Healthy: true}
}

var _ provider.Provider = (*Client)(nil)
