package model

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/googleai"
)

// EmbedderInterface определяет интерфейс для создания эмбеддингов.
// It matches langchaingo's embeddings.Embedder so either can be passed.
type EmbedderInterface interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Name returns the embedding configuration identifier recorded next to a
// persisted index. Unnamed embedders report "unknown".
func Name(e EmbedderInterface) string {
	if n, ok := e.(interface{ Name() string }); ok {
		return n.Name()
	}
	return "unknown"
}

// Gemini batch embedding accepts at most 100 texts per request.
const googleEmbeddingBatch = 100

// Embedder wraps a langchaingo embedder and caches query vectors.
type Embedder struct {
	name    string
	impl    embeddings.Embedder
	cacheMu sync.Mutex
	cache   *lru.Cache[string, []float32]
}

func NewGoogleEmbedder(client *googleai.GoogleAI, modelName string, cacheSize int) (*Embedder, error) {
	impl, err := embeddings.NewEmbedder(client,
		embeddings.WithBatchSize(googleEmbeddingBatch),
		embeddings.WithStripNewLines(false),
	)
	if err != nil {
		return nil, fmt.Errorf("construct googleai embedder: %w", err)
	}
	return Wrap("googleai/"+modelName, impl, cacheSize)
}

// Wrap builds an Embedder around any langchaingo embedder. A cacheSize of
// zero disables the query cache.
func Wrap(name string, impl embeddings.Embedder, cacheSize int) (*Embedder, error) {
	e := &Embedder{name: name, impl: impl}
	if cacheSize > 0 {
		cache, err := lru.New[string, []float32](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("embedder %s: init cache: %w", name, err)
		}
		e.cache = cache
	}
	return e, nil
}

func (e *Embedder) Name() string {
	return e.name
}

func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := e.impl.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedder %s: embed %d documents: %w", e.name, len(texts), err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedder %s: got %d vectors for %d texts", e.name, len(vectors), len(texts))
	}
	return vectors, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.lookup(text); ok {
		return v, nil
	}
	vector, err := e.impl.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedder %s: embed query: %w", e.name, err)
	}
	e.store(text, vector)
	return vector, nil
}

func (e *Embedder) lookup(text string) ([]float32, bool) {
	if e.cache == nil {
		return nil, false
	}
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	v, ok := e.cache.Get(text)
	if !ok {
		return nil, false
	}
	return append([]float32(nil), v...), true
}

func (e *Embedder) store(text string, vector []float32) {
	if e.cache == nil {
		return
	}
	e.cacheMu.Lock()
	e.cache.Add(text, append([]float32(nil), vector...))
	e.cacheMu.Unlock()
}
