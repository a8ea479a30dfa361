// Package anthropic adapts the Anthropic SDK to the provider contract.
package anthropic

import (
	"context"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/relayforge/relay"
	"github.com/relayforge/relay/provider"
	"github.com/relayforge/relay/retry"
)

// DefaultModel is used when a request does not name a model.
const DefaultModel = "claude-sonnet-4-5"

const defaultMaxTokens = 4096

// Client wraps the Anthropic SDK to implement provider.Provider.
type Client struct {
	client   *anthropic.Client
	model    string
	retryCfg retry.Config
	logger   *slog.Logger
}

// New creates a new Anthropic client with the given API key.
func New(apiKey string, opts ...ClientOption) *Client {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
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

// ClientOption configures the Anthropic client.
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

	maxTokens := int64(defaultMaxTokens)
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}

	msgs, system := convertMessages(req.Messages)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages:  msgs,
	}
	if len(system) > 0 {
		params.System = system
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	if withTools && len(req.Tools) > 0 {
		tools, err := convertTools(req.Tools)
		if err != nil {
			return nil, err
		}
		params.Tools = tools
	}

	resp, err := retry.Do(ctx, c.retryCfg, func() (*anthropic.Message, error) {
		resp, err := c.client.Messages.New(ctx, params)
		return resp, wrapError(err)
	})
	if err != nil {
		c.logger.Error("anthropic request failed", "run_id", runID, "model", model, "error", err)
		return nil, err
	}

	content := ""
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	return &relay.Response{
		Choices: []relay.Choice{{
			Message: relay.ResponseMessage{
				Content:   content,
				ToolCalls: extractToolCalls(resp.Content),
			},
			FinishReason: string(resp.StopReason),
		}},
		Usage: relay.Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
	}, nil
}

// HealthCheck probes the Anthropic API by fetching the configured model.
func (c *Client) HealthCheck(ctx context.Context) provider.Health {
	if _, err := c.client.Models.Get(ctx, c.model, anthropic.ModelGetParams{}); err != nil {
		return provider.Health{Error: wrapError(err).Error()}
	}
	return provider.Health{Healthy: true}
}

var _ provider.Provider = (*Client)(nil)
