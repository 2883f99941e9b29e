package domain

import "time"

// ChatMessageRole type
type ChatMessageRole string

const (
	// ChatMessageRoleSystem const
	ChatMessageRoleSystem ChatMessageRole = "system"
	// ChatMessageRoleUser const
	ChatMessageRoleUser ChatMessageRole = "user"
	// ChatMessageRoleAssistant const
	ChatMessageRoleAssistant ChatMessageRole = "assistant"
)

// Valid reports whether r is one of the three supported roles
func (r ChatMessageRole) Valid() bool {
	switch r {
	case ChatMessageRoleSystem, ChatMessageRoleUser, ChatMessageRoleAssistant:
		return true
	}
	return false
}

// ChatMessage struct - one entry of an ordered conversation history
type ChatMessage struct {
	Role    ChatMessageRole `json:"role"`
	Content string          `json:"content"`
}

// RemoteSettings struct - caller-supplied settings for the remote backend.
// An empty APIURL means the configured default endpoint.
type RemoteSettings struct {
	APIKey string `json:"api_key,omitempty"`
	APIURL string `json:"api_url,omitempty"`
}

// Backend names reported on handles and results
const (
	BackendRemote = "remote"
	BackendLocal  = "local"
)

// CompletionTimings struct - optional backend diagnostics
type CompletionTimings struct {
	PromptTokens    int           `json:"prompt_tokens,omitempty"`
	PredictedTokens int           `json:"predicted_tokens,omitempty"`
	PromptTime      time.Duration `json:"prompt_time,omitempty"`
	PredictedTime   time.Duration `json:"predicted_time,omitempty"`
	TotalTokens     int           `json:"total_tokens,omitempty"`
}

// CompletionResult struct - final assembled output of one completion
type CompletionResult struct {
	Text         string             `json:"text"`
	Model        string             `json:"model,omitempty"`
	Backend      string             `json:"backend,omitempty"`
	FinishReason string             `json:"finish_reason,omitempty"`
	Timings      *CompletionTimings `json:"timings,omitempty"`
}

// StreamCallbacks struct - the callback triple shared by every backend.
// OnToken receives incremental text in generation order. Exactly one of
// OnComplete or OnError is invoked, and always last.
type StreamCallbacks struct {
	OnToken    func(token string)
	OnComplete func(result CompletionResult)
	OnError    func(err error)
}
