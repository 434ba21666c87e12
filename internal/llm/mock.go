package llm

import (
	"context"
	"sync"
)

// MockProvider permite tests sin llamar a un LLM real.
type MockProvider struct {
	Response  string
	Err       error
	Embedding []float32
	EmbedErr  error
	// CompleteFunc, si existe, tiene prioridad sobre Response/Err.
	CompleteFunc func(ctx context.Context, messages []Message) (string, error)

	mu       sync.Mutex
	Requests [][]Message
}

func (m *MockProvider) Complete(ctx context.Context, messages []Message) (string, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, messages)
	m.mu.Unlock()
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, messages)
	}
	return m.Response, m.Err
}

func (m *MockProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.EmbedErr != nil {
		return nil, m.EmbedErr
	}
	return m.Embedding, nil
}

func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}
