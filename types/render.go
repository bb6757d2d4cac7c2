package types

import (
	"fmt"
	"sort"
	"strings"
)

const maxRenderedRecommendations = 5

// RenderAnswer formats an answer for terminal output, by intent.
func RenderAnswer(a *Answer) string {
	if a == nil {
		return ""
	}
	var b strings.Builder
	switch a.Intent {
	case IntentListUMKM:
		b.WriteString("UMKM that have joined:\n")
		names := uniqueSorted(a.UMKMList)
		if len(names) == 0 {
			b.WriteString("(No UMKM detected in the documents yet.)\n")
		}
		for _, name := range names {
			fmt.Fprintf(&b, "• %s\n", name)
		}
	case IntentRecommend:
		b.WriteString("Recommendations:\n")
		recs := a.Recommendations
		if len(recs) == 0 {
			b.WriteString("(Cannot recommend anything from the available data yet.)\n")
		}
		if len(recs) > maxRenderedRecommendations {
			recs = recs[:maxRenderedRecommendations]
		}
		for _, r := range recs {
			fmt.Fprintf(&b, "• %s - by %s. Reason: %s\n", orUnknown(r.Menu), orUnknown(r.UMKM), r.Reason)
		}
		if a.Answer != "" {
			b.WriteString("\n")
			b.WriteString(a.Answer)
			b.WriteString("\n")
		}
	default:
		b.WriteString("Answer:\n")
		b.WriteString(a.Answer)
		b.WriteString("\n")
	}
	return b.String()
}

func uniqueSorted(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "?"
	}
	return s
}
