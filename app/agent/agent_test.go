package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"umkmrag/model"
	"umkmrag/types"
)

type call struct {
	model  string
	prompt string
}

// scriptedGenerator answers per model id; missing ids are "not found".
type scriptedGenerator struct {
	replies map[string]string
	errs    map[string]error
	calls   []call
}

func (g *scriptedGenerator) Generate(_ context.Context, m, prompt string) (string, error) {
	g.calls = append(g.calls, call{model: m, prompt: prompt})
	if err, ok := g.errs[m]; ok {
		return "", err
	}
	if out, ok := g.replies[m]; ok {
		return out, nil
	}
	return "", status.Error(codes.NotFound, fmt.Sprintf("models/%s is not found", m))
}

func (g *scriptedGenerator) models() []string {
	out := make([]string, len(g.calls))
	for i, c := range g.calls {
		out[i] = c.model
	}
	return out
}

func newAgent(gen model.Generator, current string, fallbacks ...string) (*Agent, *ModelCell) {
	cell := NewModelCell(current)
	return New(gen, cell, Options{Fallbacks: fallbacks, Logger: log.New(&strings.Builder{})}), cell
}

var kopi = []types.Chunk{
	{Content: "Toko Kopi Mawar sells Es Kopi Susu"},
	{Content: "Warung Sate Pak Budi sells Sate Ayam"},
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(kopi, "what UMKM have joined?")
	assert.Contains(t, p, "<context>\nToko Kopi Mawar sells Es Kopi Susu\n\nWarung Sate Pak Budi sells Sate Ayam\n</context>")
	assert.Contains(t, p, "Question: what UMKM have joined?")
	assert.Contains(t, p, `{"intent":"list_umkm|recommend|qa"`)
	assert.NotContains(t, p, "{context}")
}

func TestAnswer_UsesCurrentModel(t *testing.T) {
	gen := &scriptedGenerator{replies: map[string]string{
		"gemini-2.5-flash": "```json\n{\"intent\":\"list_umkm\",\"answer\":\"Two UMKM.\",\"umkm_list\":[\"Toko Kopi Mawar\",\"Warung Sate Pak Budi\",\"Toko Kopi Mawar\"],\"recommendations\":[]}\n```",
	}}
	a, cell := newAgent(gen, "gemini-2.5-flash", "gemini-2.5-pro")

	ans, err := a.Answer(context.Background(), kopi, "what UMKM have joined?")
	require.NoError(t, err)
	assert.Equal(t, types.IntentListUMKM, ans.Intent)
	assert.Equal(t, []string{"Toko Kopi Mawar", "Warung Sate Pak Budi"}, ans.UMKMList)
	assert.Equal(t, []string{"gemini-2.5-flash"}, gen.models())
	assert.Equal(t, "gemini-2.5-flash", cell.Current())
}

func TestAnswer_FallbackUpdatesCurrentModel(t *testing.T) {
	reply := `{"intent":"recommend","answer":"Try the coffee.","umkm_list":[],"recommendations":[{"umkm":"Toko Kopi Mawar","menu":"Es Kopi Susu","reason":"signature drink"}]}`
	gen := &scriptedGenerator{replies: map[string]string{"gemini-2.0-flash": reply}}
	a, cell := newAgent(gen, "gemini-1.5-flash", "gemini-1.5-flash", "gemini-2.5-pro", "gemini-2.0-flash", "gemini-2.0-pro")

	ans, err := a.Answer(context.Background(), kopi, "recommend a drink")
	require.NoError(t, err)
	assert.Equal(t, types.IntentRecommend, ans.Intent)
	require.Len(t, ans.Recommendations, 1)
	assert.Equal(t, "Es Kopi Susu", ans.Recommendations[0].Menu)

	assert.Equal(t, []string{"gemini-1.5-flash", "gemini-2.5-pro", "gemini-2.0-flash"}, gen.models())
	assert.Equal(t, "gemini-2.0-flash", cell.Current())

	// the remembered model is used first next time
	_, err = a.Answer(context.Background(), kopi, "again")
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.0-flash", gen.calls[len(gen.calls)-1].model)
	assert.Len(t, gen.calls, 4)
}

func TestAnswer_AllModelsNotFound(t *testing.T) {
	gen := &scriptedGenerator{}
	a, cell := newAgent(gen, "old", "older", "oldest")

	_, err := a.Answer(context.Background(), kopi, "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrNoModelAvailable)
	assert.Equal(t, []string{"old", "older", "oldest"}, gen.models())
	assert.Equal(t, "old", cell.Current())
}

func TestAnswer_OtherErrorsDoNotFallBack(t *testing.T) {
	quota := status.Error(codes.ResourceExhausted, "quota exceeded")
	gen := &scriptedGenerator{
		errs:    map[string]error{"primary": quota},
		replies: map[string]string{"backup": `{"intent":"qa","answer":"x","umkm_list":[],"recommendations":[]}`},
	}
	a, cell := newAgent(gen, "primary", "backup")

	_, err := a.Answer(context.Background(), kopi, "hi")
	require.Error(t, err)
	assert.True(t, errors.Is(err, quota))
	assert.NotErrorIs(t, err, types.ErrNoModelAvailable)
	assert.Equal(t, []string{"primary"}, gen.models())
	assert.Equal(t, "primary", cell.Current())
}

func TestAnswer_DegradesOnInvalidOutput(t *testing.T) {
	tests := map[string]string{
		"prose":            "Toko Kopi Mawar is the only UMKM I know.",
		"truncated":        `{"intent":"qa","answer":"cut`,
		"unknown intent":   `{"intent":"chitchat","answer":"hello","umkm_list":[],"recommendations":[]}`,
		"missing answer":   `{"intent":"qa","umkm_list":[],"recommendations":[]}`,
		"extra field":      `{"intent":"qa","answer":"a","umkm_list":[],"recommendations":[],"confidence":0.9}`,
		"nameless rec":     `{"intent":"recommend","answer":"a","umkm_list":[],"recommendations":[{"menu":"Es Kopi"}]}`,
		"wrong list shape": `{"intent":"list_umkm","answer":"a","umkm_list":"Toko Kopi Mawar","recommendations":[]}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			gen := &scriptedGenerator{replies: map[string]string{"m": raw}}
			a, _ := newAgent(gen, "m")

			ans, err := a.Answer(context.Background(), kopi, "q")
			require.NoError(t, err)
			assert.Equal(t, types.IntentQA, ans.Intent)
			assert.Equal(t, raw, ans.Answer)
			assert.Empty(t, ans.UMKMList)
			assert.NotNil(t, ans.UMKMList)
			assert.Empty(t, ans.Recommendations)
		})
	}
}

func TestAnswer_EmptyListIsNotFabricated(t *testing.T) {
	gen := &scriptedGenerator{replies: map[string]string{
		"m": `{"intent":"list_umkm","answer":"I don't know.","umkm_list":[],"recommendations":[]}`,
	}}
	a, _ := newAgent(gen, "m")

	ans, err := a.Answer(context.Background(), []types.Chunk{{Content: "Opening hours are 8 to 5."}}, "which UMKM have joined?")
	require.NoError(t, err)
	assert.Equal(t, types.IntentListUMKM, ans.Intent)
	assert.Empty(t, ans.UMKMList)
}

func TestParseAnswer_CapsRecommendations(t *testing.T) {
	var recs []string
	for i := 0; i < 7; i++ {
		recs = append(recs, fmt.Sprintf(`{"umkm":"U%d","menu":"M%d","reason":"r"}`, i, i))
	}
	raw := `{"intent":"recommend","answer":"a","umkm_list":null,"recommendations":[` + strings.Join(recs, ",") + `]}`

	ans, err := parseAnswer(raw)
	require.NoError(t, err)
	assert.Len(t, ans.Recommendations, maxRecommendations)
	assert.NotNil(t, ans.UMKMList)
}

func TestModelCell(t *testing.T) {
	gen := &scriptedGenerator{}
	a, cell := newAgent(gen, "a", "b", "c")
	a.SetModel("z")
	assert.Equal(t, "z", cell.Current())
	assert.Equal(t, types.ModelInfo{Current: "z", Fallbacks: []string{"b", "c"}}, a.Models())
}
