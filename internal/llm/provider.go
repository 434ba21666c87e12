package llm

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"

	EmbeddingDimensions = 1536
)

// Message es un turno de chat para el proveedor.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider es la caja negra del modelo de lenguaje: embed(text) y complete(messages).
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Prompt arma el caso comun system + user.
func Prompt(system, user string) []Message {
	msgs := make([]Message, 0, 2)
	if system != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: system})
	}
	return append(msgs, Message{Role: RoleUser, Content: user})
}
