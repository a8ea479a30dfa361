package relay

// Request is the unified inference request handed to a provider adapter.
// Adapters translate it into their SDK's native shape.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Tools       []Tool    `json:"tools,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// ResponseMessage is the assistant message inside a response choice.
type ResponseMessage struct {
	Content   string     `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// Choice is one completion alternative in a unified response.
type Choice struct {
	Message      ResponseMessage `json:"message"`
	FinishReason string          `json:"finish_reason,omitempty"`
}

// Response is the normalized inference response returned by every provider
// adapter, regardless of backend.
type Response struct {
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// FirstMessage returns the first choice's message, or a zero message when
// the response carries no choices.
func (r *Response) FirstMessage() ResponseMessage {
	if r == nil || len(r.Choices) == 0 {
		return ResponseMessage{}
	}
	return r.Choices[0].Message
}

// ToolCalls returns the tool calls of the first choice, in response order.
func (r *Response) ToolCalls() []ToolCall {
	return r.FirstMessage().ToolCalls
}

// HasToolCalls returns true iff the response carries one or more tool calls.
func (r *Response) HasToolCalls() bool {
	return len(r.ToolCalls()) > 0
}
