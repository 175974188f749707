package indexer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// WordsPerChunk is the number of whitespace-delimited words grouped into one chunk.
const WordsPerChunk = 50

// maxTitleRunes bounds an inferred title.
const maxTitleRunes = 120

// ChunkWords splits content into chunks of at most size words. Each chunk's
// Content is its words joined by single spaces, and content[StartPos:EndPos]
// is the original span from its first word through its last. Content with
// no words yields no chunks. A non-positive size falls back to WordsPerChunk.
func ChunkWords(content string, size int) []Chunk {
	if size <= 0 {
		size = WordsPerChunk
	}

	chunks := []Chunk{}
	words := make([]string, 0, size)
	start, end := 0, 0

	flush := func() {
		if len(words) == 0 {
			return
		}
		chunks = append(chunks, Chunk{
			Index:    len(chunks),
			Content:  strings.Join(words, " "),
			StartPos: start,
			EndPos:   end,
		})
		words = words[:0]
	}

	i := 0
	for i < len(content) {
		r, width := utf8.DecodeRuneInString(content[i:])
		if unicode.IsSpace(r) {
			i += width
			continue
		}

		wordStart := i
		for i < len(content) {
			r, width = utf8.DecodeRuneInString(content[i:])
			if unicode.IsSpace(r) {
				break
			}
			i += width
		}

		if len(words) == 0 {
			start = wordStart
		}
		words = append(words, content[wordStart:i])
		end = i

		if len(words) == size {
			flush()
		}
	}
	flush()

	return chunks
}

// TitleExtractor infers a memory title from markdown content.
type TitleExtractor struct {
	parser goldmark.Markdown
}

// NewTitleExtractor creates a new goldmark-backed title extractor.
func NewTitleExtractor() *TitleExtractor {
	return &TitleExtractor{parser: goldmark.New()}
}

// InferTitle returns the text of the first level 1 heading, or the first
// level 2 heading when there is none. It returns "" when the content has
// neither.
func (e *TitleExtractor) InferTitle(content string) string {
	source := []byte(content)
	doc := e.parser.Parser().Parse(text.NewReader(source))

	var firstH1, firstH2 string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		heading, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}

		headingText := extractTextFromNode(heading, source)
		switch {
		case heading.Level == 1 && firstH1 == "":
			firstH1 = headingText
			return ast.WalkStop, nil
		case heading.Level == 2 && firstH2 == "":
			firstH2 = headingText
		}
		return ast.WalkSkipChildren, nil
	})

	if firstH1 != "" {
		return truncateRunes(firstH1, maxTitleRunes)
	}
	return truncateRunes(firstH2, maxTitleRunes)
}

// extractTextFromNode extracts text content from a node and its children.
func extractTextFromNode(n ast.Node, source []byte) string {
	var b strings.Builder

	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch v := node.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(source))
			if v.SoftLineBreak() || v.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(b.String())
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n]))
}
