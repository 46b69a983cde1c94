package domain

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is the provider-agnostic chat message shape used by the handler
// and LLM integrations. Messages live in the visitor's browser; the server
// only relays them.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is a single streamed completion call to the provider.
type CompletionRequest struct {
	Model       string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float32
}

// Usage reports provider token accounting, when the provider sends it.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
}

// Chunk is one increment of a streamed completion.
type Chunk struct {
	Text         string
	FinishReason string
	Usage        *Usage
}

// CompletionStream yields chunks in provider order until io.EOF.
type CompletionStream interface {
	Recv() (Chunk, error)
	Close() error
}
