package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"umkmrag/types"
)

var pdfMagic = []byte("%PDF-")

// Backend извлекает текст из PDF постранично.
type Backend interface {
	Name() string
	Extract(ctx context.Context, path string) ([]types.Page, error)
}

type Options struct {
	UploadDir string
	Logger    *log.Logger
}

type PDFLoader struct {
	uploadDir string
	backends  []Backend
	splitter  *Splitter
	log       *log.Logger
}

// New builds a loader. Without explicit backends the default chain is used:
// langchain-pdf, pdfcpu, pdftotext.
func New(opts Options, backends ...Backend) *PDFLoader {
	if len(backends) == 0 {
		backends = DefaultBackends()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &PDFLoader{
		uploadDir: opts.UploadDir,
		backends:  backends,
		splitter:  NewSplitter(types.ChunkSize, types.ChunkOverlap),
		log:       logger.WithPrefix("loader"),
	}
}

func (l *PDFLoader) Backends() []string {
	names := make([]string, len(l.backends))
	for i, b := range l.backends {
		names[i] = b.Name()
	}
	return names
}

// Ingest stages the upload, checks the header, extracts and splits it.
// The upload is written to a temp file first and only replaces
// UploadDir/<name> once loading succeeded, so a failed re-upload never
// touches a document staged earlier under the same name.
func (l *PDFLoader) Ingest(ctx context.Context, name string, r io.Reader) (*types.Document, []types.Chunk, error) {
	base := filepath.Base(name)
	if !strings.EqualFold(filepath.Ext(base), ".pdf") {
		return nil, nil, fmt.Errorf("%w: %q does not have a .pdf extension", types.ErrInvalidFormat, base)
	}

	tmp, err := l.stage(r)
	if err != nil {
		return nil, nil, err
	}

	doc, chunks, err := l.load(ctx, tmp, base)
	if err != nil {
		l.discard(tmp)
		return nil, nil, err
	}

	final := filepath.Join(l.uploadDir, base)
	if err := os.Rename(tmp, final); err != nil {
		l.discard(tmp)
		return nil, nil, fmt.Errorf("stage upload: %w", err)
	}
	doc.SourcePath = final
	return doc, chunks, nil
}

// LoadFile runs header check, extraction and splitting on a file that is
// already on disk. Nothing is removed on failure.
func (l *PDFLoader) LoadFile(ctx context.Context, path string) (*types.Document, []types.Chunk, error) {
	return l.load(ctx, path, filepath.Base(path))
}

// stage copies the upload into a temp file inside the upload directory.
// The temp name has no .pdf extension so it is not counted as an upload.
func (l *PDFLoader) stage(r io.Reader) (string, error) {
	if err := os.MkdirAll(l.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	out, err := os.CreateTemp(l.uploadDir, ".staging-*")
	if err != nil {
		return "", fmt.Errorf("stage upload: %w", err)
	}
	path := out.Name()
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		os.Remove(path)
		return "", fmt.Errorf("stage upload: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("stage upload: %w", err)
	}
	return path, nil
}

func (l *PDFLoader) discard(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		l.log.Warn("failed to remove staged upload", "path", path, "err", err)
	}
}

func (l *PDFLoader) load(ctx context.Context, path, source string) (*types.Document, []types.Chunk, error) {
	if err := checkHeader(path, source); err != nil {
		return nil, nil, err
	}

	pages, backend, err := l.extract(ctx, path, source)
	if err != nil {
		return nil, nil, err
	}

	doc := &types.Document{
		ID:         uuid.New(),
		Title:      generateTitle(source),
		Source:     source,
		SourcePath: path,
		Backend:    backend,
		Pages:      len(pages),
		CreatedAt:  time.Now(),
	}

	chunks, err := l.splitter.SplitPages(doc, pages)
	if err != nil {
		return nil, nil, fmt.Errorf("split %s: %w", source, err)
	}
	l.log.Info("document loaded", "source", source, "backend", backend, "pages", len(pages), "chunks", len(chunks))
	return doc, chunks, nil
}

func checkHeader(path, source string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", source, err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read %s: %w", source, err)
	}
	head = head[:n]
	if bytes.HasPrefix(head, pdfMagic) {
		return nil
	}
	return fmt.Errorf("%w: file starts as %s, not %%PDF-", types.ErrInvalidFormat, mimetype.Detect(head).String())
}

// extract tries every backend in order and returns the first non-empty result.
func (l *PDFLoader) extract(ctx context.Context, path, source string) ([]types.Page, string, error) {
	var attempts []types.ExtractAttempt
	for _, b := range l.backends {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		pages, err := b.Extract(ctx, path)
		if err == nil && !hasText(pages) {
			err = types.ErrNoText
		}
		if err != nil {
			l.log.Warn("extraction backend failed", "backend", b.Name(), "file", source, "err", err)
			attempts = append(attempts, types.ExtractAttempt{Backend: b.Name(), Err: err})
			continue
		}
		return pages, b.Name(), nil
	}
	return nil, "", &types.UnreadableError{Attempts: attempts}
}

func hasText(pages []types.Page) bool {
	for _, p := range pages {
		if strings.TrimSpace(p.Text) != "" {
			return true
		}
	}
	return false
}

func generateTitle(fileName string) string {
	// Удаляем расширение .pdf
	if strings.HasSuffix(strings.ToLower(fileName), ".pdf") {
		fileName = fileName[:len(fileName)-4]
	}
	// Заменяем подчеркивания и дефисы на пробелы
	fileName = strings.ReplaceAll(fileName, "_", " ")
	fileName = strings.ReplaceAll(fileName, "-", " ")
	return fileName
}
