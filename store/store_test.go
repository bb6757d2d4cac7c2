package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"umkmrag/model"
	"umkmrag/types"
)

func quietLogger() *log.Logger {
	return log.New(&strings.Builder{})
}

func chunk(index int, content string) types.Chunk {
	return types.Chunk{
		ID:      uuid.New(),
		DocID:   uuid.New(),
		Index:   index,
		Source:  "catalog.pdf",
		Page:    1,
		Content: content,
	}
}

func newFileManager(t *testing.T, dir string, policy ReopenPolicy) *Manager {
	t.Helper()
	emb := model.NewHashEmbedder(256)
	backend := NewFileBackend(dir, emb.Name(), quietLogger())
	return NewManager(backend, emb, ManagerOptions{Policy: policy, Logger: quietLogger()})
}

func contents(chunks []types.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Content
	}
	sort.Strings(out)
	return out
}

var catalog = []types.Chunk{
	chunk(0, "Toko Kopi Mawar sells Es Kopi Susu and Kopi Tubruk"),
	chunk(1, "Warung Sate Pak Budi sells Sate Ayam and Sate Kambing"),
	chunk(2, "Bakery Roti Manis sells Roti Sobek and Donat Gula"),
}

func TestManager_OpenOrNoneWithoutIndex(t *testing.T) {
	m := newFileManager(t, t.TempDir(), ReopenEachQuery)
	ctx := context.Background()

	assert.Nil(t, m.OpenOrNone(ctx))

	found, err := m.Search(ctx, "kopi", 8)
	require.NoError(t, err)
	assert.Empty(t, found)

	state, n, err := m.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.IndexMissing, state)
	assert.Zero(t, n)
}

func TestManager_CorruptIndexIsAbsent(t *testing.T) {
	tests := map[string]string{
		"garbage":          "{not json",
		"version mismatch": `{"version":99,"entries":[]}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, indexFileName), []byte(body), 0o644))

			m := newFileManager(t, dir, ReopenEachQuery)
			assert.Nil(t, m.OpenOrNone(context.Background()))

			// a later add replaces the unreadable snapshot
			n, err := m.Add(context.Background(), catalog[:1])
			require.NoError(t, err)
			assert.Equal(t, 1, n)
			assert.NotNil(t, m.OpenOrNone(context.Background()))
		})
	}
}

func TestManager_SearchFindsVerbatimPhrase(t *testing.T) {
	m := newFileManager(t, t.TempDir(), ReuseHandle)
	ctx := context.Background()

	_, err := m.Add(ctx, catalog)
	require.NoError(t, err)

	found, err := m.Search(ctx, "Sate Ayam", 1)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Contains(t, found[0].Content, "Sate Ayam")
	assert.Nil(t, found[0].Embedding)
	assert.Greater(t, found[0].Score, 0.0)
}

func TestManager_AddIsAssociative(t *testing.T) {
	ctx := context.Background()

	split := newFileManager(t, t.TempDir(), ReuseHandle)
	_, err := split.Add(ctx, catalog[:2])
	require.NoError(t, err)
	_, err = split.Add(ctx, catalog[2:])
	require.NoError(t, err)

	whole := newFileManager(t, t.TempDir(), ReuseHandle)
	_, err = whole.Add(ctx, catalog)
	require.NoError(t, err)

	for _, q := range []string{"kopi", "roti", "sate", "menu"} {
		a, err := split.Search(ctx, q, len(catalog))
		require.NoError(t, err)
		b, err := whole.Search(ctx, q, len(catalog))
		require.NoError(t, err)
		assert.Equal(t, contents(b), contents(a), q)
	}

	state, n, err := split.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.IndexReady, state)
	assert.Equal(t, 3, n)
}

func TestManager_RoundTripAfterRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first := newFileManager(t, dir, ReuseHandle)
	_, err := first.Add(ctx, catalog)
	require.NoError(t, err)
	before, err := first.Search(ctx, "es kopi susu", 2)
	require.NoError(t, err)

	restarted := newFileManager(t, dir, ReuseHandle)
	after, err := restarted.Search(ctx, "es kopi susu", 2)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestManager_ReopenSeesOtherWriters(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	reader := newFileManager(t, dir, ReopenEachQuery)
	writer := newFileManager(t, dir, ReuseHandle)

	_, err := writer.Add(ctx, catalog[:1])
	require.NoError(t, err)
	_, _, err = reader.Status(ctx)
	require.NoError(t, err)

	_, err = writer.Add(ctx, catalog[1:])
	require.NoError(t, err)

	_, n, err := reader.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestManager_MinScore(t *testing.T) {
	emb := model.NewHashEmbedder(256)
	m := NewManager(NewFileBackend(t.TempDir(), emb.Name(), quietLogger()), emb,
		ManagerOptions{MinScore: 0.3, Logger: quietLogger()})
	ctx := context.Background()
	_, err := m.Add(ctx, catalog)
	require.NoError(t, err)

	found, err := m.Search(ctx, "roti sobek donat", 3)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Contains(t, found[0].Content, "Roti Sobek")
}

type failingBackend struct{ Backend }

func (failingBackend) Open(context.Context) (Index, error) { return nil, ErrIndexAbsent }

func (failingBackend) Create(context.Context, []types.Chunk) (Index, error) {
	return nil, errors.New("disk full")
}

func TestManager_PersistenceFailurePropagates(t *testing.T) {
	m := NewManager(failingBackend{}, model.NewHashEmbedder(16), ManagerOptions{Logger: quietLogger()})

	_, err := m.Add(context.Background(), catalog)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrPersistence)
	assert.ErrorContains(t, err, "disk full")
	assert.Nil(t, m.Current(context.Background()))
}

func TestFileIndex_DimensionMismatch(t *testing.T) {
	b := NewFileBackend(t.TempDir(), "test", quietLogger())
	c := chunk(0, "a")
	c.Embedding = []float32{1, 0}
	idx, err := b.Create(context.Background(), []types.Chunk{c})
	require.NoError(t, err)

	d := chunk(1, "b")
	d.Embedding = []float32{1, 0, 0}
	assert.Error(t, idx.Append(context.Background(), []types.Chunk{d}))

	n, err := idx.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
