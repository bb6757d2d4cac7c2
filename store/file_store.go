package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/charmbracelet/log"

	"umkmrag/types"
)

const (
	fileIndexVersion = 1
	indexFileName    = "index.json"
)

type snapshot struct {
	Version        int           `json:"version"`
	EmbeddingModel string        `json:"embedding_model"`
	Dimension      int           `json:"dimension"`
	Entries        []types.Chunk `json:"entries"`
}

// FileBackend keeps the whole index as one JSON snapshot in a directory.
// Every mutation rewrites the snapshot through a temp file and rename.
type FileBackend struct {
	dir            string
	embeddingModel string
	log            *log.Logger
}

func NewFileBackend(dir, embeddingModel string, logger *log.Logger) *FileBackend {
	if logger == nil {
		logger = log.Default()
	}
	return &FileBackend{dir: dir, embeddingModel: embeddingModel, log: logger}
}

func (b *FileBackend) path() string {
	return filepath.Join(b.dir, indexFileName)
}

func (b *FileBackend) Open(ctx context.Context) (Index, error) {
	raw, err := os.ReadFile(b.path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrIndexAbsent
		}
		return nil, fmt.Errorf("read index: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	if snap.Version != fileIndexVersion {
		return nil, fmt.Errorf("index version %d, want %d", snap.Version, fileIndexVersion)
	}
	if snap.EmbeddingModel != b.embeddingModel {
		b.log.Warn("index was built with a different embedding model",
			"index", snap.EmbeddingModel, "configured", b.embeddingModel)
	}
	return &fileIndex{backend: b, snap: snap}, nil
}

func (b *FileBackend) Create(ctx context.Context, chunks []types.Chunk) (Index, error) {
	idx := &fileIndex{
		backend: b,
		snap: snapshot{
			Version:        fileIndexVersion,
			EmbeddingModel: b.embeddingModel,
		},
	}
	if err := idx.Append(ctx, chunks); err != nil {
		return nil, err
	}
	return idx, nil
}

func (b *FileBackend) write(snap snapshot) error {
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp, err := os.CreateTemp(b.dir, indexFileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := json.NewEncoder(tmp).Encode(snap); err != nil {
		tmp.Close()
		return fmt.Errorf("encode index: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	if err := os.Rename(tmp.Name(), b.path()); err != nil {
		return fmt.Errorf("replace index: %w", err)
	}
	return nil
}

type fileIndex struct {
	backend *FileBackend

	mu   sync.RWMutex
	snap snapshot
}

func (f *fileIndex) Append(ctx context.Context, chunks []types.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	next := f.snap
	next.Entries = make([]types.Chunk, 0, len(f.snap.Entries)+len(chunks))
	next.Entries = append(next.Entries, f.snap.Entries...)
	for _, c := range chunks {
		if next.Dimension == 0 {
			next.Dimension = len(c.Embedding)
		}
		if len(c.Embedding) != next.Dimension {
			return fmt.Errorf("chunk %s: embedding dimension %d, index has %d", c.ID, len(c.Embedding), next.Dimension)
		}
		next.Entries = append(next.Entries, c)
	}

	if err := f.backend.write(next); err != nil {
		return err
	}
	f.snap = next
	return nil
}

func (f *fileIndex) Search(ctx context.Context, query []float32, k int) ([]types.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	if k <= 0 || len(f.snap.Entries) == 0 {
		return nil, nil
	}
	if len(query) != f.snap.Dimension {
		return nil, fmt.Errorf("query dimension %d, index has %d", len(query), f.snap.Dimension)
	}

	scored := make([]types.Chunk, len(f.snap.Entries))
	for i, c := range f.snap.Entries {
		c.Score = cosine(query, c.Embedding)
		c.Embedding = nil
		scored[i] = c
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k < len(scored) {
		scored = scored[:k]
	}
	return scored, nil
}

func (f *fileIndex) Len(context.Context) (int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.snap.Entries), nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
