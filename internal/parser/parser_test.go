package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const goSrc = `package demo

import "fmt"

// Hello greets.
func Hello() {
	fmt.Println("hi")
}

type T struct{}
`

func TestBoundaries_Go(t *testing.T) {
	p := New()
	got := p.Boundaries("demo.go", goSrc)

	want := []int{
		strings.Index(goSrc, "import"),
		strings.Index(goSrc, "// Hello"),
		strings.Index(goSrc, "type T"),
	}
	assert.Equal(t, want, got)
}

func TestBoundaries_GoSyntaxError(t *testing.T) {
	src := "package demo\n\nfunc A() {}\n\nfunc B( {\n"
	got := New().Boundaries("broken.go", src)
	assert.Contains(t, got, strings.Index(src, "func A"))
}

func TestBoundaries_Markdown(t *testing.T) {
	src := "# Title\n\nFirst paragraph.\n\n## Section\n\n```go\ncode()\n```\n"
	got := New().Boundaries("README.md", src)

	assert.Equal(t, []int{
		strings.Index(src, "First"),
		strings.Index(src, "## Section"),
		strings.Index(src, "```go"),
	}, got)
}

func TestBoundaries_Unknown(t *testing.T) {
	assert.Nil(t, New().Boundaries("data.csv", "a,b\nc,d\n"))
}

func TestNormalize(t *testing.T) {
	src := "aa\nbb\ncc\n"
	got := normalize([]int{0, 4, 3, 7, 100}, src)
	assert.Equal(t, []int{3, 6}, got)
}
