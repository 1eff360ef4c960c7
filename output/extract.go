package output

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rickchristie/gentflow"
)

var fencedBlock = regexp.MustCompile("(?s)^```(?:json)?\\s*\\n?(.*?)\\n?```")

// StripMarkdown trims content and, when it starts with a fenced code block (optionally
// tagged json), returns the trimmed block body.
func StripMarkdown(content string) string {
	trimmed := strings.TrimSpace(content)
	if m := fencedBlock.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1])
	}
	return trimmed
}

// Extract returns the first JSON object or array embedded in content. Whichever of '{' and
// '[' occurs first is matched against its closing bracket by depth counting; a backslash
// skips the following character. Trailing prose after the closing bracket is ignored.
func Extract(content string, stripMarkdown bool) (string, error) {
	text := strings.TrimSpace(content)
	if stripMarkdown {
		text = StripMarkdown(content)
	}
	if text == "" {
		return "", gentflow.ErrEmptyContent
	}

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return "", gentflow.ErrNoJSONFound
	}
	opener, closer := byte('{'), byte('}')
	if text[start] == '[' {
		opener, closer = '[', ']'
	}

	end := matchingBracket(text, start, opener, closer)
	if end < 0 {
		return "", fmt.Errorf("%w at offset %d", gentflow.ErrUnclosedBracket, start)
	}
	return text[start : end+1], nil
}

func matchingBracket(s string, start int, opener, closer byte) int {
	depth := 0
	for i := start; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\\' && i+1 < len(s):
			i++
		case c == opener:
			depth++
		case c == closer:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
