package model

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

// Generator runs one prompt against a named model.
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// NewGoogleClient builds the shared Gemini client used for both embeddings
// and generation.
func NewGoogleClient(ctx context.Context, apiKey, chatModel, embeddingModel string) (*googleai.GoogleAI, error) {
	client, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(chatModel),
		googleai.WithDefaultEmbeddingModel(embeddingModel),
	)
	if err != nil {
		return nil, fmt.Errorf("init googleai client: %w", err)
	}
	return client, nil
}

type GoogleGenerator struct {
	llm         llms.Model
	temperature float64
}

func NewGoogleGenerator(llm llms.Model) *GoogleGenerator {
	return &GoogleGenerator{llm: llm, temperature: 0.2}
}

func (g *GoogleGenerator) Generate(ctx context.Context, model, prompt string) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt,
		llms.WithModel(model),
		llms.WithTemperature(g.temperature),
	)
	if err != nil {
		return "", fmt.Errorf("generate with %s: %w", model, err)
	}
	return out, nil
}
