package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"umkmrag/store"
	"umkmrag/types"
)

type Ingestor interface {
	Ingest(ctx context.Context, name string, r io.Reader) (*types.Document, []types.Chunk, error)
	LoadFile(ctx context.Context, path string) (*types.Document, []types.Chunk, error)
}

type Answerer interface {
	Answer(ctx context.Context, chunks []types.Chunk, question string) (*types.Answer, error)
}

// Service connects ingestion, the index and the answer synthesizer. Both
// front-ends (HTTP and terminal UI) go through it.
type Service struct {
	logger    *log.Logger
	loader    Ingestor
	index     *store.Manager
	agent     Answerer
	uploadDir string

	// один писатель: add в индекс выполняется последовательно
	writeMu sync.Mutex
}

type Options struct {
	UploadDir string
	Logger    *log.Logger
}

func New(loader Ingestor, index *store.Manager, agent Answerer, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		logger:    logger.WithPrefix("service"),
		loader:    loader,
		index:     index,
		agent:     agent,
		uploadDir: opts.UploadDir,
	}
}

// Ask answers a question from the current index.
func (s *Service) Ask(ctx context.Context, question string) (*types.Answer, error) {
	idx := s.index.Current(ctx)
	if idx == nil {
		return nil, types.ErrIndexNotReady
	}

	total, err := idx.Len(ctx)
	if err != nil {
		return nil, fmt.Errorf("count index entries: %w", err)
	}
	k := min(types.TopK, total)

	docs, err := s.index.SearchIndex(ctx, idx, question, k)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("retrieved context", "question", question, "k", k, "found", len(docs))

	if len(docs) == 0 {
		ans := types.PlainAnswer(types.NoRelevantMessage)
		ans.Debug = &types.AnswerDebug{NumDocsInIndex: total, DocsFound: 0}
		return ans, nil
	}
	return s.agent.Answer(ctx, docs, question)
}

// Ingest stages and indexes one uploaded PDF and returns the number of
// chunks added.
func (s *Service) Ingest(ctx context.Context, name string, r io.Reader) (int, error) {
	_, chunks, err := s.loader.Ingest(ctx, name, r)
	if err != nil {
		return 0, err
	}
	return s.add(ctx, name, chunks)
}

// IngestFile indexes a PDF from disk. Files outside the upload directory are
// copied into it first, like an upload.
func (s *Service) IngestFile(ctx context.Context, path string) (int, error) {
	if s.inUploadDir(path) {
		_, chunks, err := s.loader.LoadFile(ctx, path)
		if err != nil {
			return 0, err
		}
		return s.add(ctx, filepath.Base(path), chunks)
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return s.Ingest(ctx, filepath.Base(path), f)
}

func (s *Service) add(ctx context.Context, name string, chunks []types.Chunk) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	n, err := s.index.Add(ctx, chunks)
	if err != nil {
		return 0, err
	}
	s.logger.Info("document indexed", "file", name, "added_chunks", n)
	return n, nil
}

func (s *Service) Status(ctx context.Context) (types.IndexStatus, error) {
	state, vectors, err := s.index.Status(ctx)
	if err != nil {
		return types.IndexStatus{}, err
	}
	st := types.IndexStatus{
		Index:            state,
		Vectors:          vectors,
		PDFFilesUploaded: s.countUploads(),
	}
	switch state {
	case types.IndexMissing:
		st.Message = "No index yet. Upload a PDF via /admin/upload first."
	case types.IndexEmpty:
		st.Message = "The index is empty. Upload a PDF first."
	default:
		st.Message = fmt.Sprintf("Index ready with %d chunks indexed.", vectors)
	}
	return st, nil
}

func (s *Service) countUploads() int {
	entries, err := os.ReadDir(s.uploadDir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			n++
		}
	}
	return n
}

func (s *Service) inUploadDir(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	dir, err := filepath.Abs(s.uploadDir)
	if err != nil {
		return false
	}
	return filepath.Dir(abs) == dir
}
