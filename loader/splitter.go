package loader

import (
	"strings"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"

	"umkmrag/types"
)

type Splitter struct {
	impl textsplitter.RecursiveCharacter
}

func NewSplitter(size, overlap int) *Splitter {
	return &Splitter{
		impl: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
		),
	}
}

// SplitPages chunks page by page so every chunk keeps its page number.
// Index runs across the whole document in source order.
func (s *Splitter) SplitPages(doc *types.Document, pages []types.Page) ([]types.Chunk, error) {
	var chunks []types.Chunk
	pos := 0
	for _, p := range pages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		parts, err := s.impl.SplitText(p.Text)
		if err != nil {
			return nil, err
		}
		for _, content := range parts {
			content = strings.TrimSpace(content)
			if content == "" {
				continue
			}
			chunks = append(chunks, types.Chunk{
				ID:      uuid.New(),
				DocID:   doc.ID,
				Index:   pos,
				Source:  doc.Source,
				Page:    p.Number,
				Content: content,
			})
			pos++
		}
	}
	return chunks, nil
}
