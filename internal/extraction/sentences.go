package extraction

import (
	"strings"
	"unicode"
)

type sentence struct {
	text  string
	start int // byte offset of the first non-space character in the chunk
}

// splitSentences segments chunk text into sentences. Sentence terminators
// followed by whitespace end a sentence, as do blank lines, page breaks and
// the ends of heading or table lines. Line wraps inside prose are folded.
func splitSentences(text string) []sentence {
	var out []sentence
	begin := 0

	flush := func(end int) {
		seg := text[begin:end]
		trimmed := strings.TrimLeftFunc(seg, unicode.IsSpace)
		if body := strings.Join(strings.Fields(trimmed), " "); body != "" {
			out = append(out, sentence{text: body, start: begin + len(seg) - len(trimmed)})
		}
		begin = end
	}

	for i := 0; i < len(text); i++ {
		switch c := text[i]; c {
		case '.', '!', '?':
			if i+1 == len(text) || isSpace(text[i+1]) {
				flush(i + 1)
			}
		case '\f':
			flush(i + 1)
		case '\n':
			if i+1 < len(text) && text[i+1] == '\n' {
				flush(i + 1)
			} else if isStructuralLine(text[begin:i]) || (i+1 < len(text) && isStructuralStart(text[i+1])) {
				flush(i + 1)
			}
		}
	}
	flush(len(text))

	return out
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\t' || c == '\f' || c == '\r'
}

// isStructuralLine reports whether the pending line is a heading or table row.
func isStructuralLine(line string) bool {
	line = strings.TrimSpace(line)
	return strings.HasPrefix(line, "#") || strings.Count(line, "|") >= 2 || strings.Contains(line, "\t")
}

func isStructuralStart(c byte) bool {
	return c == '#' || c == '|'
}
