package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"umkmrag/types"
)

// PdfcpuBackend dumps page content streams with pdfcpu and reads the
// literal strings shown by Tj/TJ/'/" operators. Hex strings and custom
// font encodings are not decoded.
type PdfcpuBackend struct {
	conf *model.Configuration
}

func NewPdfcpuBackend() *PdfcpuBackend {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PdfcpuBackend{conf: conf}
}

func (b *PdfcpuBackend) Name() string { return "pdfcpu" }

var contentPageRe = regexp.MustCompile(`_Content_page_(\d+)\.txt$`)

func (b *PdfcpuBackend) Extract(ctx context.Context, path string) ([]types.Page, error) {
	outDir, err := os.MkdirTemp("", "pdfcpu-content-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(outDir)

	if err := api.ExtractContentFile(path, outDir, nil, b.conf); err != nil {
		return nil, fmt.Errorf("extract content: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, err
	}

	var pages []types.Page
	for _, e := range entries {
		m := contentPageRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		raw, err := os.ReadFile(filepath.Join(outDir, e.Name()))
		if err != nil {
			return nil, err
		}
		pages = append(pages, types.Page{Number: num, Text: contentText(string(raw))})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Number < pages[j].Number })
	return pages, nil
}

// contentText walks a content stream and collects literal strings passed to
// text showing operators. Td/TD/T*/'/" start a new line.
func contentText(stream string) string {
	var (
		out     strings.Builder
		pending strings.Builder
		inText  bool
	)
	flushLine := func() {
		line := strings.TrimSpace(pending.String())
		pending.Reset()
		if line == "" {
			return
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}

	for i := 0; i < len(stream); {
		c := stream[i]
		switch {
		case c == '(':
			s, next := readLiteral(stream, i)
			if inText {
				pending.WriteString(s)
			}
			i = next
		case c == '[' || c == ']' || c == ' ' || c == '\n' || c == '\r' || c == '\t':
			i++
		case c == '%':
			for i < len(stream) && stream[i] != '\n' {
				i++
			}
		default:
			j := i
			for j < len(stream) && !isDelim(stream[j]) {
				j++
			}
			if j == i {
				j++
			}
			switch stream[i:j] {
			case "BT":
				inText = true
			case "ET":
				flushLine()
				inText = false
			case "Td", "TD", "T*", "'", "\"":
				flushLine()
			case "TJ", "Tj":
				pending.WriteByte(' ')
			}
			i = j
		}
	}
	flushLine()
	return out.String()
}

func isDelim(c byte) bool {
	switch c {
	case ' ', '\n', '\r', '\t', '(', ')', '[', ']', '<', '>', '/', '%':
		return true
	}
	return false
}

// readLiteral reads a PDF literal string starting at stream[start] == '('.
func readLiteral(stream string, start int) (string, int) {
	var b strings.Builder
	depth := 0
	i := start
	for i < len(stream) {
		c := stream[i]
		switch c {
		case '\\':
			if i+1 >= len(stream) {
				return b.String(), len(stream)
			}
			i++
			switch e := stream[i]; e {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'b', 'f':
			case '\n', '\r':
			default:
				if e >= '0' && e <= '7' {
					n := 0
					k := 0
					for k < 3 && i < len(stream) && stream[i] >= '0' && stream[i] <= '7' {
						n = n*8 + int(stream[i]-'0')
						i++
						k++
					}
					b.WriteByte(byte(n))
					continue
				}
				b.WriteByte(e)
			}
		case '(':
			if depth > 0 {
				b.WriteByte(c)
			}
			depth++
		case ')':
			depth--
			if depth == 0 {
				return b.String(), i + 1
			}
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
		i++
	}
	return b.String(), i
}
