package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"umkmrag/model"
	"umkmrag/types"
)

// ErrIndexAbsent is returned by Backend.Open when nothing has been persisted.
var ErrIndexAbsent = errors.New("index absent")

// Backend persists one vector index at a fixed location.
type Backend interface {
	Open(ctx context.Context) (Index, error)
	Create(ctx context.Context, chunks []types.Chunk) (Index, error)
}

// Index is an opened vector index. Chunks passed to Append carry embeddings.
type Index interface {
	Append(ctx context.Context, chunks []types.Chunk) error
	Search(ctx context.Context, query []float32, k int) ([]types.Chunk, error)
	Len(ctx context.Context) (int, error)
}

type ReopenPolicy int

const (
	// ReuseHandle keeps the first opened index for the process lifetime.
	ReuseHandle ReopenPolicy = iota
	// ReopenEachQuery reads the persisted index again before every search,
	// so writes from another process become visible.
	ReopenEachQuery
)

type ManagerOptions struct {
	Policy   ReopenPolicy
	MinScore float64
	Logger   *log.Logger
}

// Manager owns the index handle and the embedder. The same embedder is used
// for documents and queries; an index built with one embedding model must
// not be queried with another.
type Manager struct {
	backend  Backend
	embedder model.EmbedderInterface
	policy   ReopenPolicy
	minScore float64
	log      *log.Logger

	mu      sync.RWMutex
	current Index
}

func NewManager(backend Backend, embedder model.EmbedderInterface, opts ManagerOptions) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		backend:  backend,
		embedder: embedder,
		policy:   opts.Policy,
		minScore: opts.MinScore,
		log:      logger.WithPrefix("index"),
	}
}

// OpenOrNone loads the persisted index. Any load failure yields nil.
func (m *Manager) OpenOrNone(ctx context.Context) Index {
	idx, err := m.backend.Open(ctx)
	if err != nil {
		if !errors.Is(err, ErrIndexAbsent) {
			m.log.Warn("persisted index could not be loaded, treating as absent", "err", err)
		}
		return nil
	}
	m.mu.Lock()
	m.current = idx
	m.mu.Unlock()
	return idx
}

// Current returns the index according to the reopen policy, or nil.
func (m *Manager) Current(ctx context.Context) Index {
	if m.policy == ReuseHandle {
		m.mu.RLock()
		idx := m.current
		m.mu.RUnlock()
		if idx != nil {
			return idx
		}
	}
	return m.OpenOrNone(ctx)
}

// Add embeds the chunks and creates or extends the index. It returns only
// after the index has been persisted.
func (m *Manager) Add(ctx context.Context, chunks []types.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := m.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	embedded := make([]types.Chunk, len(chunks))
	for i, c := range chunks {
		c.Embedding = vectors[i]
		embedded[i] = c
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// под ReopenEachQuery держатель может быть устаревшим
	idx := m.current
	if idx == nil || m.policy == ReopenEachQuery {
		if idx, err = m.backend.Open(ctx); err != nil {
			if !errors.Is(err, ErrIndexAbsent) {
				m.log.Warn("replacing unreadable index", "err", err)
			}
			idx = nil
		}
	}

	if idx == nil {
		created, err := m.backend.Create(ctx, embedded)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", types.ErrPersistence, err)
		}
		m.current = created
		m.log.Info("index created", "chunks", len(embedded), "embedding", model.Name(m.embedder))
		return len(embedded), nil
	}

	if err := idx.Append(ctx, embedded); err != nil {
		return 0, fmt.Errorf("%w: %w", types.ErrPersistence, err)
	}
	m.current = idx
	m.log.Info("index extended", "chunks", len(embedded))
	return len(embedded), nil
}

// Search embeds the query and returns up to k chunks, best first. An absent
// index yields an empty result.
func (m *Manager) Search(ctx context.Context, query string, k int) ([]types.Chunk, error) {
	idx := m.Current(ctx)
	if idx == nil {
		return nil, nil
	}
	return m.SearchIndex(ctx, idx, query, k)
}

// SearchIndex searches an index already obtained from Current.
func (m *Manager) SearchIndex(ctx context.Context, idx Index, query string, k int) ([]types.Chunk, error) {
	if idx == nil || k <= 0 {
		return nil, nil
	}
	vec, err := m.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	found, err := idx.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	if m.minScore <= 0 {
		return found, nil
	}
	kept := found[:0]
	for _, c := range found {
		if c.Score >= m.minScore {
			kept = append(kept, c)
		}
	}
	return kept, nil
}

func (m *Manager) Status(ctx context.Context) (types.IndexState, int, error) {
	idx := m.Current(ctx)
	if idx == nil {
		return types.IndexMissing, 0, nil
	}
	n, err := idx.Len(ctx)
	if err != nil {
		return types.IndexMissing, 0, err
	}
	if n == 0 {
		return types.IndexEmpty, 0, nil
	}
	return types.IndexReady, n, nil
}
