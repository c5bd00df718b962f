package parser

import (
	goast "go/ast"
	goparser "go/parser"
	"go/token"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	mdast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Parser finds structural boundaries in source text. Boundaries are byte
// offsets at the start of a line where a new top-level unit begins.
type Parser struct {
	markdown goldmark.Markdown
}

// New creates a new Parser instance
func New() *Parser {
	return &Parser{
		markdown: goldmark.New(),
	}
}

// Boundaries returns the sorted structural boundaries of src, chosen by the
// file extension of path. Unknown languages yield no boundaries.
func (p *Parser) Boundaries(path, src string) []int {
	var offsets []int
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		offsets = goBoundaries(path, src)
	case ".md", ".markdown":
		offsets = p.markdownBoundaries(src)
	default:
		return nil
	}
	return normalize(offsets, src)
}

// goBoundaries returns the start of every top-level declaration, including
// its doc comment. Syntax errors are tolerated: whatever partial AST the
// parser recovers is used.
func goBoundaries(path, src string) []int {
	fset := token.NewFileSet()
	file, _ := goparser.ParseFile(fset, path, src, goparser.ParseComments|goparser.SkipObjectResolution)
	if file == nil {
		return nil
	}

	offsets := make([]int, 0, len(file.Decls))
	for _, decl := range file.Decls {
		pos := decl.Pos()
		switch d := decl.(type) {
		case *goast.FuncDecl:
			if d.Doc != nil {
				pos = d.Doc.Pos()
			}
		case *goast.GenDecl:
			if d.Doc != nil {
				pos = d.Doc.Pos()
			}
		}
		if !pos.IsValid() {
			continue
		}
		offsets = append(offsets, fset.Position(pos).Offset)
	}
	return offsets
}

// markdownBoundaries returns the start of every top-level block
func (p *Parser) markdownBoundaries(src string) []int {
	source := []byte(src)
	doc := p.markdown.Parser().Parse(text.NewReader(source))

	var offsets []int
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		off := firstLineOffset(n)
		if off < 0 {
			continue
		}
		if n.Kind() == mdast.KindFencedCodeBlock {
			// Lines hold the code; the opening fence sits on the line above
			off = lineStart(src, off)
			if off > 0 {
				off--
			}
		}
		offsets = append(offsets, off)
	}
	return offsets
}

func firstLineOffset(n mdast.Node) int {
	if n.Type() == mdast.TypeBlock && n.Lines().Len() > 0 {
		return n.Lines().At(0).Start
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if off := firstLineOffset(c); off >= 0 {
			return off
		}
	}
	return -1
}

// normalize snaps offsets to line starts, drops zero and out-of-range
// values, and returns them sorted without duplicates.
func normalize(offsets []int, src string) []int {
	seen := make(map[int]bool, len(offsets))
	out := make([]int, 0, len(offsets))
	for _, off := range offsets {
		if off <= 0 || off >= len(src) {
			continue
		}
		off = lineStart(src, off)
		if off == 0 || seen[off] {
			continue
		}
		seen[off] = true
		out = append(out, off)
	}
	sort.Ints(out)
	return out
}

// lineStart returns the offset of the first byte of the line containing off
func lineStart(src string, off int) int {
	if off > len(src) {
		off = len(src)
	}
	return strings.LastIndexByte(src[:off], '\n') + 1
}
