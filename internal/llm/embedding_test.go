package llm

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestEmbeddingChainPrefersPrimary(t *testing.T) {
	primary := &MockProvider{Embedding: []float32{1, 0}}
	chain := NewEmbeddingChain(primary, nil, nil)

	got := chain.Resolve(context.Background(), "zero gravity")
	if got.Source != EmbeddingSourcePrimary || got.Degraded {
		t.Fatalf("expected primary embedding, got %+v", got)
	}
}

func TestEmbeddingChainFallsBackToCache(t *testing.T) {
	primary := &MockProvider{Embedding: []float32{0.5, 0.5}}
	chain := NewEmbeddingChain(primary, nil, nil)
	chain.Resolve(context.Background(), "Zero   Gravity")

	primary.EmbedErr = errors.New("provider down")
	got := chain.Resolve(context.Background(), "zero gravity")
	if got.Source != EmbeddingSourceCache {
		t.Fatalf("expected cache source, got %s", got.Source)
	}
}

func TestEmbeddingChainUsesAlternative(t *testing.T) {
	primary := &MockProvider{EmbedErr: errors.New("down")}
	alt := &MockProvider{Embedding: []float32{0, 1}}
	chain := NewEmbeddingChain(primary, alt, nil)

	got := chain.Resolve(context.Background(), "orbital mechanics")
	if got.Source != EmbeddingSourceAlternative || got.Degraded {
		t.Fatalf("expected alternative embedding, got %+v", got)
	}
}

func TestEmbeddingChainDegradesToHash(t *testing.T) {
	chain := NewEmbeddingChain(&MockProvider{EmbedErr: errors.New("down")}, nil, nil)

	got := chain.Resolve(context.Background(), "orbital mechanics")
	if !got.Degraded || got.Source != EmbeddingSourceHashed {
		t.Fatalf("expected degraded hashed embedding, got %+v", got)
	}
	if len(got.Vector) != EmbeddingDimensions {
		t.Fatalf("expected %d dims, got %d", EmbeddingDimensions, len(got.Vector))
	}
}

func TestHashEmbeddingDeterministicAndNormalized(t *testing.T) {
	a := HashEmbedding("docking procedure checklist", 64)
	b := HashEmbedding("docking procedure checklist", 64)
	var norm float64
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("hash embedding not deterministic at %d", i)
		}
		norm += float64(a[i]) * float64(a[i])
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Fatalf("expected unit norm, got %f", norm)
	}

	empty := HashEmbedding("   ", 8)
	if empty[0] != 1 {
		t.Fatalf("expected fallback unit vector for empty text")
	}
}
