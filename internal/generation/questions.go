package generation

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// QuestionFilter bounds accepted question lengths, in characters
type QuestionFilter struct {
	MinLength int
	MaxLength int
}

// DefaultQuestionFilter accepts questions of 20 to 300 characters
func DefaultQuestionFilter() QuestionFilter {
	return QuestionFilter{MinLength: 20, MaxLength: 300}
}

// listMarker matches numbering and bullets such as "1.", "2)", "-", "*", "Q3:"
var listMarker = regexp.MustCompile(`^\s*(?:(?:[-*•]+|\(?\d+[.)]|[Qq]\d+[:.)])\s*)+`)

// ParseQuestions extracts up to limit questions from free-form model output.
// Each non-empty line that contains a question mark is stripped of list
// markers and trailing text after its last question mark, filtered by length
// and deduplicated. Order is preserved.
func ParseQuestions(text string, limit int, filter QuestionFilter) []string {
	seen := make(map[string]bool)
	questions := make([]string, 0, limit)

	for _, line := range strings.Split(text, "\n") {
		if limit > 0 && len(questions) >= limit {
			break
		}
		line = strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
		idx := strings.LastIndex(line, "?")
		if idx < 0 {
			continue
		}
		q := strings.Trim(strings.TrimSpace(line[:idx+1]), `"'*`)
		if !strings.HasSuffix(q, "?") {
			q += "?"
		}

		n := utf8.RuneCountInString(q)
		if (filter.MinLength > 0 && n < filter.MinLength) || (filter.MaxLength > 0 && n > filter.MaxLength) {
			continue
		}
		key := strings.ToLower(q)
		if seen[key] {
			continue
		}
		seen[key] = true
		questions = append(questions, q)
	}
	return questions
}
