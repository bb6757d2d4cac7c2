package agent

import (
	"strings"

	"umkmrag/types"
)

const ragTemplate = `
You are a helpful assistant for an UMKM catalog (small businesses and their menus/products).

Always do two things:
1) Decide the user's intent as one of:
   - list_umkm : user asks which UMKM have joined / daftar UMKM
   - recommend : user asks for recommendations / saran menu atau tempat
   - qa        : other questions
2) Produce a JSON object with this shape (and nothing else):
{"intent":"list_umkm|recommend|qa","answer":"string","umkm_list":["<UMKM name>"],"recommendations":[{"umkm":"<UMKM>","menu":"<menu/item>","reason":"short why"}]}

Rules:
- Use ONLY the provided <context> to extract UMKM names and menus; if unsure, leave arrays empty and say you don't know.
- For intent = recommend: every recommended menu MUST include the UMKM name that provides it. Prefer 3–5 items maximum.
- For intent = list_umkm: fill umkm_list with UNIQUE names you find.
- For intent = qa: keep umkm_list empty unless explicitly asked; you may still cite UMKM in the natural-language answer if relevant.
- Keep JSON valid and minified.

<context>
{context}
</context>

Question: {question}
`

// BuildPrompt joins chunk texts in ranked order, separated by a blank line.
func BuildPrompt(chunks []types.Chunk, question string) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Content
	}
	return strings.NewReplacer(
		"{context}", strings.Join(parts, "\n\n"),
		"{question}", question,
	).Replace(ragTemplate)
}
