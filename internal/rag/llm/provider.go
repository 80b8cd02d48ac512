package llm

import "context"

// Message roles follow the chat-completion convention.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

// Provider generates a completion for a system prompt plus an ordered message
// list. model selects the provider's model per call so one client can serve
// baseline, fine-tuned and distilled variants.
type Provider interface {
	Name() string
	Generate(ctx context.Context, model string, systemPrompt string, messages []Message) (string, error)
}
