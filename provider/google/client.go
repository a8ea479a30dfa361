// Package google adapts the Google GenAI SDK to the provider contract.
package google

import (
	"context"
	"log/slog"

	"google.golang.org/genai"

	"github.com/relayforge/relay"
	"github.com/relayforge/relay/provider"
	"github.com/relayforge/relay/retry"
)

// DefaultModel is used when a request does not name a model.
const DefaultModel = "gemini-2.5-flash"

// Client wraps the Google GenAI SDK to implement provider.Provider.
type Client struct {
	client   *genai.Client
	model    string
	retryCfg retry.Config
	logger   *slog.Logger
}

// New creates a new Google GenAI client with the given API key.
func New(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	c := &Client{
		client:   client,
		model:    DefaultModel,
		retryCfg: retry.DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ClientOption configures the Google client.
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

	contents := convertMessages(req.Messages)
	config := &genai.GenerateContentConfig{}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature != nil {
		temp := float32(*req.Temperature)
		config.Temperature = &temp
	}
	if withTools && len(req.Tools) > 0 {
		config.Tools = convertTools(req.Tools)
	}

	resp, err := retry.Do(ctx, c.retryCfg, func() (*genai.GenerateContentResponse, error) {
		resp, err := c.client.Models.GenerateContent(ctx, model, contents, config)
		return resp, wrapError(err)
	})
	if err != nil {
		c.logger.Error("google request failed", "run_id", runID, "model", model, "error", err)
		return nil, err
	}

	content := ""
	var toolCalls []relay.ToolCall
	finishReason := ""
	if len(resp.Candidates) > 0 {
		if resp.Candidates[0].Content != nil {
			for _, part := range resp.Candidates[0].Content.Parts {
				if part.Text != "" {
					content += part.Text
				}
			}
			toolCalls = extractToolCalls(resp.Candidates[0].Content.Parts)
		}
		finishReason = string(resp.Candidates[0].FinishReason)
	}

	usage := relay.Usage{}
	if resp.UsageMetadata != nil {
		usage.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	return &relay.Response{
		Choices: []relay.Choice{{
			Message: relay.ResponseMessage{
				Content:   content,
				ToolCalls: toolCalls,
			},
			FinishReason: finishReason,
		}},
		Usage: usage,
	}, nil
}

// HealthCheck probes the Gemini API by fetching the configured model.
func (c *Client) HealthCheck(ctx context.Context) provider.Health {
	if _, err := c.client.Models.Get(ctx, c.model, nil); err != nil {
		return provider.Health{Error: wrapError(err).Error()}
	}
	return provider.Health{Healthy: true}
}

var _ provider.Provider = (*Client)(nil)
