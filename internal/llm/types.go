package llm

import "context"

type Config struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
}

// ImageContent is raw image bytes attached to a message. Providers encode it
// base64 on the wire.
type ImageContent struct {
	Data      []byte
	MediaType string
}

type Message struct {
	Role    string
	Content string
	Images  []ImageContent
}

// LLM is a single-shot chat completion. Providers do not retry internally;
// callers own the retry policy.
type LLM interface {
	Chat(ctx context.Context, systemPrompt string, messages []Message) (string, error)
}
