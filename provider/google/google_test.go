package google

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/relayforge/relay"
)

func TestConvertMessages(t *testing.T) {
	contents := convertMessages([]relay.Message{
		{Role: relay.RoleUser, Content: "Hello"},
		{Role: relay.RoleAssistant, ToolCalls: []relay.ToolCall{
			{ID: "c1", Name: "get_weather", Arguments: `{"location":"Paris"}`},
		}},
		{Role: relay.RoleTool, ToolResults: []relay.ToolResult{
			{ToolCallID: "c1", Content: "plain text result"},
		}},
	})

	require.Len(t, contents, 3)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
	require.NotNil(t, contents[1].Parts[0].FunctionCall)
	assert.Equal(t, "get_weather", contents[1].Parts[0].FunctionCall.Name)

	// Non-JSON tool output is wrapped
	fr := contents[2].Parts[0].FunctionResponse
	require.NotNil(t, fr)
	assert.Equal(t, map[string]any{"result": "plain text result"}, fr.Response)
}

func TestConvertTools(t *testing.T) {
	tools := convertTools([]relay.Tool{
		{
			Name:        "get_weather",
			Description: "Get current weather",
			Parameters:  []byte(`{"type":"object","properties":{"location":{"type":"string","description":"City"}},"required":["location"]}`),
		},
	})

	require.Len(t, tools, 1)
	require.Len(t, tools[0].FunctionDeclarations, 1)

	decl := tools[0].FunctionDeclarations[0]
	assert.Equal(t, "get_weather", decl.Name)
	require.NotNil(t, decl.Parameters)
	assert.Equal(t, genai.TypeObject, decl.Parameters.Type)
	assert.Equal(t, []string{"location"}, decl.Parameters.Required)
	assert.Equal(t, genai.TypeString, decl.Parameters.Properties["location"].Type)
}

func TestExtractToolCalls(t *testing.T) {
	parts := []*genai.Part{
		{Text: "checking"},
		{FunctionCall: &genai.FunctionCall{Name: "get_weather", Args: map[string]any{"location": "Paris"}}},
		{FunctionCall: &genai.FunctionCall{ID: "call_abc", Name: "lookup", Args: map[string]any{}}},
	}

	calls := extractToolCalls(parts)
	require.Len(t, calls, 2)

	// Missing ids are synthesized deterministically
	assert.Equal(t, "call_1_get_weather", calls[0].ID)
	assert.JSONEq(t, `{"location":"Paris"}`, calls[0].Arguments)
	assert.Equal(t, "call_abc", calls[1].ID)
}

func TestWrapError(t *testing.T) {
	t.Run("nil passes through", func(t *testing.T) {
		assert.NoError(t, wrapError(nil))
	})

	t.Run("rate limit is transient", func(t *testing.T) {
		err := wrapError(genai.APIError{Code: 429, Message: "rate limited"})
		assert.True(t, relay.IsTransient(err))
	})

	t.Run("bad request is permanent", func(t *testing.T) {
		err := wrapError(genai.APIError{Code: 400, Message: "bad request"})
		assert.False(t, relay.IsTransient(err))
		assert.Equal(t, relay.KindProvider, relay.KindOf(err))
	})

	t.Run("non-api error passes through", func(t *testing.T) {
		err := wrapError(assert.AnError)
		assert.Equal(t, assert.AnError, err)
	})
}
