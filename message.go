package relay

// Role represents the role of a message sender in a conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// ContentPartType represents the type of content in a message part.
type ContentPartType string

const (
	ContentPartTypeText       ContentPartType = "text"
	ContentPartTypeToolCall   ContentPartType = "tool_call"
	ContentPartTypeToolResult ContentPartType = "tool_result"
)

// ContentPart represents a single part of message content. Exactly one of
// Text, ToolCall, or ToolResult is populated, matching Type.
type ContentPart struct {
	// Type indicates the content type: "text", "tool_call", or "tool_result".
	Type ContentPartType `json:"type"`
	// Text contains the text content. Only used when Type is "text".
	Text string `json:"text,omitempty"`
	// ToolCall contains a tool invocation. Only used when Type is "tool_call".
	ToolCall *ToolCall `json:"toolCall,omitempty"`
	// ToolResult contains an execution result. Only used when Type is "tool_result".
	ToolResult *ToolResult `json:"toolResult,omitempty"`
}

// NewTextPart creates a text content part.
func NewTextPart(text string) ContentPart {
	return ContentPart{
		Type: ContentPartTypeText,
		Text: text,
	}
}

// NewToolCallPart creates a tool-call content part.
func NewToolCallPart(call ToolCall) ContentPart {
	return ContentPart{
		Type:     ContentPartTypeToolCall,
		ToolCall: &call,
	}
}

// NewToolResultPart creates a tool-result content part.
func NewToolResultPart(result ToolResult) ContentPart {
	return ContentPart{
		Type:       ContentPartTypeToolResult,
		ToolResult: &result,
	}
}

// Message represents a single message in a thread's conversation history.
// Threads are ordered and append-only; the message list is the conversation
// history fed to the provider.
type Message struct {
	// ID is an optional unique identifier for the message.
	ID      string `json:"id,omitempty"`
	Role    Role   `json:"role"`
	Content string `json:"content,omitempty"`
	// Parts contains structured content parts (text, tool calls, tool results).
	// If populated, Content holds a flattened text rendering for providers
	// that do not consume structured parts.
	Parts []ContentPart `json:"parts,omitempty"`
	// ToolCalls contains tool invocation requests from an assistant message.
	// Only populated when Role is RoleAssistant and the model wants to use tools.
	ToolCalls []ToolCall `json:"toolCalls,omitempty"`
	// ToolResults contains results from tool executions.
	// Only populated when Role is RoleTool.
	ToolResults []ToolResult `json:"toolResults,omitempty"`
}

// HasParts returns true if the message has structured content parts.
func (m Message) HasParts() bool {
	return len(m.Parts) > 0
}

// Usage contains token usage information for a request.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}
