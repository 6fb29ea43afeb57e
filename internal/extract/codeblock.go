package extract

import (
	"regexp"
	"strings"
)

// DefaultLanguage is the fence tag used for scoring and ground truth
const DefaultLanguage = "python"

const fence = "```"

// CodeBlockExtractor finds fenced code regions tagged with one language
type CodeBlockExtractor struct {
	language string
	pattern  *regexp.Regexp
}

// NewCodeBlockExtractor creates an extractor for the given fence tag.
// The tag is matched literally and case-sensitively right after the opening
// fence, so "python" also opens "```python3" (leaving "3" in the block).
func NewCodeBlockExtractor(language string) *CodeBlockExtractor {
	if language == "" {
		language = DefaultLanguage
	}
	return &CodeBlockExtractor{
		language: language,
		pattern:  regexp.MustCompile(`(?s)` + regexp.QuoteMeta(fence+language) + `(.*?)` + regexp.QuoteMeta(fence)),
	}
}

// Language returns the fence tag
func (e *CodeBlockExtractor) Language() string {
	return e.language
}

// Extract returns the trimmed, non-empty block contents in source order
func (e *CodeBlockExtractor) Extract(text string) []string {
	matches := e.pattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	blocks := make([]string, 0, len(matches))
	for _, m := range matches {
		block := strings.TrimSpace(m[1])
		if block == "" {
			continue
		}
		blocks = append(blocks, block)
	}
	return blocks
}

var defaultBlocks = NewCodeBlockExtractor(DefaultLanguage)

// ExtractCodeBlocks extracts python-tagged fenced blocks from text
func ExtractCodeBlocks(text string) []string {
	return defaultBlocks.Extract(text)
}
