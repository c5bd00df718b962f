// Package parser locates structural boundaries in source files so the
// chunker can prefer cutting between declarations or document blocks.
//
// Go files are parsed with go/parser and yield the start of each top-level
// declaration (doc comments included). Markdown files are parsed with
// goldmark and yield the start of each top-level block. Other files yield
// no boundaries and fall back to the chunker's line heuristics.
//
//	p := parser.New()
//	offsets := p.Boundaries("server.go", src)
package parser
