package agent

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkoukk/tiktoken-go"

	"umkmrag/model"
	"umkmrag/types"
)

// ModelCell holds the process-wide current model id. A successful fallback
// replaces it for every later request.
type ModelCell struct {
	v atomic.Value
}

func NewModelCell(initial string) *ModelCell {
	c := &ModelCell{}
	c.v.Store(initial)
	return c
}

func (c *ModelCell) Current() string {
	return c.v.Load().(string)
}

func (c *ModelCell) Set(model string) {
	c.v.Store(model)
}

type Options struct {
	Fallbacks   []string
	CountTokens bool
	Logger      *log.Logger
}

type Agent struct {
	gen         model.Generator
	cell        *ModelCell
	fallbacks   []string
	countTokens bool
	log         *log.Logger
}

func New(gen model.Generator, cell *ModelCell, opts Options) *Agent {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Agent{
		gen:         gen,
		cell:        cell,
		fallbacks:   append([]string(nil), opts.Fallbacks...),
		countTokens: opts.CountTokens,
		log:         logger.WithPrefix("agent"),
	}
}

func (a *Agent) Models() types.ModelInfo {
	return types.ModelInfo{
		Current:   a.cell.Current(),
		Fallbacks: append([]string(nil), a.fallbacks...),
	}
}

func (a *Agent) SetModel(model string) {
	a.log.Info("model set by operator", "from", a.cell.Current(), "to", model)
	a.cell.Set(model)
}

// Answer asks the model to classify and answer the question from the given
// chunks. Unparseable output degrades to a plain qa answer.
func (a *Agent) Answer(ctx context.Context, chunks []types.Chunk, question string) (*types.Answer, error) {
	start := time.Now()
	prompt := BuildPrompt(chunks, question)

	if a.countTokens {
		if n, err := CountTokens(prompt); err == nil {
			a.log.Debug("prompt size", "tokens", n, "symbols", len(prompt))
		} else {
			a.log.Debug("token count unavailable", "err", err)
		}
	}

	raw, used, err := a.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	a.log.Info("model answered", "model", used, "chunks", len(chunks), "took", time.Since(start))

	answer, err := parseAnswer(raw)
	if err != nil {
		a.log.Warn("model output is not a valid answer, returning raw text", "err", err)
		return types.PlainAnswer(raw), nil
	}
	return answer, nil
}

// generate tries the current model and, only on "not found", the fallback
// list in order. The first fallback that works becomes the current model.
func (a *Agent) generate(ctx context.Context, prompt string) (string, string, error) {
	current := a.cell.Current()
	tried := map[string]bool{current: true}

	out, err := a.gen.Generate(ctx, current, prompt)
	if err == nil {
		return out, current, nil
	}
	if !model.IsNotFound(err) {
		return "", "", err
	}
	a.log.Warn("model not found, trying fallbacks", "model", current, "err", err)

	last := err
	for _, candidate := range a.fallbacks {
		if tried[candidate] {
			continue
		}
		tried[candidate] = true

		out, err := a.gen.Generate(ctx, candidate, prompt)
		if err == nil {
			a.cell.Set(candidate)
			a.log.Warn("switched model", "from", current, "to", candidate)
			return out, candidate, nil
		}
		if !model.IsNotFound(err) {
			return "", "", err
		}
		a.log.Warn("fallback model not found", "model", candidate)
		last = err
	}
	return "", "", fmt.Errorf("%w: last error: %w", types.ErrNoModelAvailable, last)
}

// CountTokens оценивает размер промпта. tiktoken-go скачивает словарь BPE
// при первом вызове, поэтому подсчёт включается отдельно.
func CountTokens(prompt string) (int, error) {
	enc, err := tiktoken.EncodingForModel("gpt-3.5-turbo")
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(prompt, nil, nil)), nil
}
