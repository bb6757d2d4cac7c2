package loader

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"umkmrag/types"
)

type fakeBackend struct {
	name  string
	pages []types.Page
	err   error
	calls int
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Extract(_ context.Context, _ string) ([]types.Page, error) {
	f.calls++
	return f.pages, f.err
}

type mockRunner struct {
	output []byte
	err    error
	args   []string
}

func (m *mockRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	m.args = append([]string{name}, args...)
	return m.output, m.err
}

const fakePDF = "%PDF-1.4\n%fake body\n"

func newTestLoader(t *testing.T, backends ...Backend) (*PDFLoader, string) {
	t.Helper()
	dir := t.TempDir()
	logger := log.New(&strings.Builder{})
	return New(Options{UploadDir: dir, Logger: logger}, backends...), dir
}

func TestIngest_InvalidHeaderLeavesNoTrace(t *testing.T) {
	backend := &fakeBackend{name: "fake"}
	l, dir := newTestLoader(t, backend)

	_, _, err := l.Ingest(context.Background(), "menu.pdf", strings.NewReader("<html>not a pdf</html>"))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrInvalidFormat)
	assert.Contains(t, err.Error(), "text/html")
	assert.Equal(t, 0, backend.calls)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestIngest_RejectsNonPDFName(t *testing.T) {
	l, dir := newTestLoader(t, &fakeBackend{name: "fake"})

	_, _, err := l.Ingest(context.Background(), "menu.docx", strings.NewReader(fakePDF))
	assert.ErrorIs(t, err, types.ErrInvalidFormat)

	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
}

func TestIngest_FallsBackToNextBackend(t *testing.T) {
	broken := &fakeBackend{name: "broken", err: errors.New("xref table corrupt")}
	good := &fakeBackend{name: "good", pages: []types.Page{
		{Number: 1, Text: "Toko Kopi Mawar sells Es Kopi Susu"},
		{Number: 2, Text: "Warung Sate Pak Budi sells Sate Ayam"},
	}}
	l, dir := newTestLoader(t, broken, good)

	doc, chunks, err := l.Ingest(context.Background(), "../../catalog_2024.pdf", strings.NewReader(fakePDF))
	require.NoError(t, err)
	assert.Equal(t, 1, broken.calls)
	assert.Equal(t, "good", doc.Backend)
	assert.Equal(t, "catalog_2024.pdf", doc.Source)
	assert.Equal(t, "catalog 2024", doc.Title)
	assert.Equal(t, 2, doc.Pages)

	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 1, chunks[0].Page)
	assert.Equal(t, 1, chunks[1].Index)
	assert.Equal(t, 2, chunks[1].Page)
	for _, c := range chunks {
		assert.Equal(t, doc.ID, c.DocID)
		assert.Equal(t, "catalog_2024.pdf", c.Source)
	}

	// staged upload stays on success
	_, err = os.Stat(filepath.Join(dir, "catalog_2024.pdf"))
	assert.NoError(t, err)
}

func TestIngest_FailedReuploadKeepsEarlierFile(t *testing.T) {
	good := &fakeBackend{name: "good", pages: []types.Page{{Number: 1, Text: "Toko Kopi Mawar sells Es Kopi Susu"}}}
	l, dir := newTestLoader(t, good)
	ctx := context.Background()

	doc, _, err := l.Ingest(ctx, "katalog.pdf", strings.NewReader(fakePDF))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "katalog.pdf"), doc.SourcePath)

	_, _, err = l.Ingest(ctx, "katalog.pdf", strings.NewReader("GIF89a not a catalog"))
	require.ErrorIs(t, err, types.ErrInvalidFormat)

	good.pages = nil
	_, _, err = l.Ingest(ctx, "katalog.pdf", strings.NewReader(fakePDF))
	require.ErrorIs(t, err, types.ErrUnreadableDocument)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "katalog.pdf", entries[0].Name())

	raw, err := os.ReadFile(filepath.Join(dir, "katalog.pdf"))
	require.NoError(t, err)
	assert.Equal(t, fakePDF, string(raw))
}

func TestIngest_ScannedWithoutPdftotextIsImageOnly(t *testing.T) {
	missing := &mockRunner{err: &exec.Error{Name: "pdftotext", Err: exec.ErrNotFound}}
	l, _ := newTestLoader(t,
		&fakeBackend{name: "langchain-pdf", pages: []types.Page{{Number: 1, Text: ""}}},
		&fakeBackend{name: "pdfcpu"},
		NewPdftotext(missing),
	)

	_, _, err := l.Ingest(context.Background(), "scan.pdf", strings.NewReader(fakePDF))
	var unreadable *types.UnreadableError
	require.ErrorAs(t, err, &unreadable)
	require.Len(t, unreadable.Attempts, 3)
	assert.ErrorIs(t, unreadable.Attempts[2].Err, types.ErrBackendUnavailable)
	assert.True(t, unreadable.ImageOnly())
	assert.Contains(t, types.Describe(err).Message, "OCR")
}

func TestIngest_AllBackendsFail(t *testing.T) {
	tests := []struct {
		name      string
		backends  []Backend
		imageOnly bool
	}{
		{
			name: "parse errors",
			backends: []Backend{
				&fakeBackend{name: "a", err: errors.New("boom")},
				&fakeBackend{name: "b", err: errors.New("encrypted")},
			},
		},
		{
			name: "scanned document",
			backends: []Backend{
				&fakeBackend{name: "a", pages: []types.Page{{Number: 1, Text: "  \n"}}},
				&fakeBackend{name: "b"},
			},
			imageOnly: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, dir := newTestLoader(t, tt.backends...)

			_, _, err := l.Ingest(context.Background(), "scan.pdf", strings.NewReader(fakePDF))
			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrUnreadableDocument)

			var unreadable *types.UnreadableError
			require.True(t, errors.As(err, &unreadable))
			assert.Len(t, unreadable.Attempts, 2)
			assert.Equal(t, tt.imageOnly, unreadable.ImageOnly())

			entries, _ := os.ReadDir(dir)
			assert.Empty(t, entries)
		})
	}
}

func TestSplitPages_OverlapAndOrder(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 300; i++ {
		sb.WriteString("kopi susu gula aren ")
	}
	doc := &types.Document{Source: "long.pdf"}
	chunks, err := NewSplitter(types.ChunkSize, types.ChunkOverlap).SplitPages(doc, []types.Page{
		{Number: 1, Text: sb.String()},
		{Number: 2, Text: ""},
		{Number: 3, Text: "penutup"},
	})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 2)

	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.LessOrEqual(t, len(c.Content), types.ChunkSize)
	}
	last := chunks[len(chunks)-1]
	assert.Equal(t, 3, last.Page)
	assert.Equal(t, "penutup", last.Content)
}

func TestPdftotext(t *testing.T) {
	runner := &mockRunner{output: []byte("Toko Kopi Mawar\n\fWarung Sate\n\f")}
	pages, err := NewPdftotext(runner).Extract(context.Background(), "/tmp/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, []string{"pdftotext", "-layout", "-enc", "UTF-8", "/tmp/a.pdf", "-"}, runner.args)
	require.Len(t, pages, 2)
	assert.Equal(t, types.Page{Number: 2, Text: "Warung Sate\n"}, pages[1])

	_, err = NewPdftotext(&mockRunner{err: errors.New("executable file not found")}).
		Extract(context.Background(), "/tmp/a.pdf")
	assert.ErrorContains(t, err, "pdftotext")
}

func TestContentText(t *testing.T) {
	stream := `q 1 0 0 1 0 0 cm
BT /F1 12 Tf 72 720 Td (Toko Kopi \(Mawar\)) Tj
0 -14 Td [(Es ) -250 (Kopi) 120 ( Susu)] TJ
T* (Harga\040Rp15.000) Tj ET
Q`
	assert.Equal(t, "Toko Kopi (Mawar)\nEs Kopi Susu\nHarga Rp15.000\n", contentText(stream))
}

func TestDefaultBackendsOrder(t *testing.T) {
	l := New(Options{UploadDir: t.TempDir()})
	assert.Equal(t, []string{"langchain-pdf", "pdfcpu", "pdftotext"}, l.Backends())
}
