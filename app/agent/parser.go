package agent

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"umkmrag/types"
)

const maxRecommendations = 5

var errNoJSON = errors.New("no JSON object in model output")

// wireAnswer mirrors the answer schema; pointers tell "missing" from "empty".
type wireAnswer struct {
	Intent          *string                `json:"intent"`
	Answer          *string                `json:"answer"`
	UMKMList        []string               `json:"umkm_list"`
	Recommendations []types.Recommendation `json:"recommendations"`
}

type checkedAnswer struct {
	Intent          string                 `validate:"oneof=list_umkm recommend qa"`
	Recommendations []types.Recommendation `validate:"dive"`
}

// extractJSON вырезает JSON-объект из ответа модели (код-блоки, пояснения).
func extractJSON(s string) (string, error) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return "", errNoJSON
	}
	return s[start : end+1], nil
}

// parseAnswer decodes model output against the answer schema. Unknown
// fields, missing intent or answer, and invalid recommendations are errors.
func parseAnswer(raw string) (*types.Answer, error) {
	body, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.DisallowUnknownFields()
	var w wireAnswer
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("decode answer: %w", err)
	}
	if w.Intent == nil {
		return nil, errors.New("answer has no intent")
	}
	if w.Answer == nil {
		return nil, errors.New("answer has no answer text")
	}
	if err := types.ValidateStruct(&checkedAnswer{Intent: *w.Intent, Recommendations: w.Recommendations}); err != nil {
		return nil, fmt.Errorf("validate answer: %w", err)
	}

	recs := w.Recommendations
	if recs == nil {
		recs = []types.Recommendation{}
	}
	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	return &types.Answer{
		Intent:          types.Intent(*w.Intent),
		Answer:          *w.Answer,
		UMKMList:        dedupe(w.UMKMList),
		Recommendations: recs,
	}, nil
}

func dedupe(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
