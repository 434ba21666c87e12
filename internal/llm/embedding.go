package llm

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const (
	EmbeddingSourcePrimary     = "primary"
	EmbeddingSourceCache       = "cache"
	EmbeddingSourceAlternative = "alternative"
	EmbeddingSourceHashed      = "hashed"

	embeddingCacheTTL = 30 * time.Minute
)

// Embedding es el resultado de la cadena; Degraded indica que el vector no viene de un modelo.
type Embedding struct {
	Vector   []float32
	Source   string
	Degraded bool
}

// EmbeddingChain resuelve embeddings degradando: primario -> cache -> alternativo -> hash determinista.
// Nunca devuelve error.
type EmbeddingChain struct {
	primary     Provider
	alternative Provider
	cache       *cache.Cache
	logger      *zap.Logger
}

func NewEmbeddingChain(primary, alternative Provider, logger *zap.Logger) *EmbeddingChain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmbeddingChain{
		primary:     primary,
		alternative: alternative,
		cache:       cache.New(embeddingCacheTTL, 10*time.Minute),
		logger:      logger,
	}
}

func (c *EmbeddingChain) Resolve(ctx context.Context, text string) Embedding {
	key := normalizeEmbeddingKey(text)

	if c.primary != nil {
		vec, err := c.primary.Embed(ctx, text)
		if err == nil && len(vec) > 0 {
			c.cache.Set(key, vec, cache.DefaultExpiration)
			return Embedding{Vector: vec, Source: EmbeddingSourcePrimary}
		}
		c.logger.Warn("primary embedding failed", zap.Error(err))
	}

	if cached, ok := c.cache.Get(key); ok {
		if vec, ok := cached.([]float32); ok {
			return Embedding{Vector: vec, Source: EmbeddingSourceCache}
		}
	}

	if c.alternative != nil {
		vec, err := c.alternative.Embed(ctx, text)
		if err == nil && len(vec) > 0 {
			c.cache.Set(key, vec, cache.DefaultExpiration)
			return Embedding{Vector: vec, Source: EmbeddingSourceAlternative}
		}
		c.logger.Warn("alternative embedding failed", zap.Error(err))
	}

	c.logger.Warn("using hashed pseudo-embedding, search quality degraded")
	return Embedding{Vector: HashEmbedding(text, EmbeddingDimensions), Source: EmbeddingSourceHashed, Degraded: true}
}

// HashEmbedding genera un vector por feature hashing de tokens y bigramas, normalizado L2.
func HashEmbedding(text string, dims int) []float32 {
	if dims <= 0 {
		dims = EmbeddingDimensions
	}
	vec := make([]float32, dims)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	add := func(feature string, weight float32) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(feature))
		sum := h.Sum64()
		idx := int(sum % uint64(dims))
		if sum&(1<<63) != 0 {
			vec[idx] -= weight
		} else {
			vec[idx] += weight
		}
	}
	for i, tok := range tokens {
		add(tok, 1)
		if i > 0 {
			add(tokens[i-1]+" "+tok, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

func normalizeEmbeddingKey(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
