// Package chunker converts decoded file text into token-bounded segments
// sized to the generation service's context window.
//
// # Basic Usage
//
//	c := chunker.New()
//	segments, err := c.Split("internal/app/server.go", text, 3072)
//	if err != nil {
//	    return err
//	}
//
// # Budget
//
// Each segment's estimated token count is at most the request budget minus a
// margin reserved for prompt scaffolding. Tokens are estimated as
// ceil(bytes / 4).
//
// # Cut Selection
//
// When text exceeds the limit, the chunker looks back from the budget boundary
// across a slack window and cuts at the best line start it finds:
//   - a structural boundary (Go declaration, Markdown block) or the line after a blank line
//   - the line after one ending in a statement delimiter such as ; { } )
//   - any other line start
//
// If the window holds no line start, the text is cut at the budget boundary
// (on a UTF-8 rune boundary) and the segment is flagged LossySplit.
//
// Segments are contiguous: concatenating their texts reproduces the input.
package chunker
