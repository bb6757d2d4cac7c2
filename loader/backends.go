package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"

	"umkmrag/types"
)

func DefaultBackends() []Backend {
	return []Backend{
		LangchainPDF{},
		NewPdfcpuBackend(),
		NewPdftotext(nil),
	}
}

// LangchainPDF reads the text layer through langchaingo's PDF loader.
type LangchainPDF struct{}

func (LangchainPDF) Name() string { return "langchain-pdf" }

func (LangchainPDF) Extract(ctx context.Context, path string) (pages []types.Page, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	// ledongthuc/pdf panics on some malformed xref tables
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	docs, err := documentloaders.NewPDF(f, info.Size()).Load(ctx)
	if err != nil {
		return nil, err
	}
	pages = make([]types.Page, 0, len(docs))
	for i, d := range docs {
		num := i + 1
		if p, ok := d.Metadata["page"].(int); ok {
			num = p
		}
		pages = append(pages, types.Page{Number: num, Text: d.PageContent})
	}
	return pages, nil
}

// CommandRunner abstracts external command execution for testing.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Pdftotext shells out to poppler's pdftotext. Pages are separated by form
// feeds in its output.
type Pdftotext struct {
	runner CommandRunner
}

func NewPdftotext(runner CommandRunner) *Pdftotext {
	if runner == nil {
		runner = execRunner{}
	}
	return &Pdftotext{runner: runner}
}

func (p *Pdftotext) Name() string { return "pdftotext" }

func (p *Pdftotext) Extract(ctx context.Context, path string) ([]types.Page, error) {
	out, err := p.runner.Run(ctx, "pdftotext", "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: pdftotext: %w", types.ErrBackendUnavailable, err)
		}
		return nil, fmt.Errorf("pdftotext: %w", err)
	}
	raw := strings.Split(string(out), "\f")
	pages := make([]types.Page, 0, len(raw))
	for i, text := range raw {
		// trailing form feed leaves an empty tail
		if i == len(raw)-1 && strings.TrimSpace(text) == "" {
			break
		}
		pages = append(pages, types.Page{Number: i + 1, Text: text})
	}
	return pages, nil
}
