package helpers

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// FencedBlock is one fenced code block found in a markdown document.
type FencedBlock struct {
	Lang       string
	Body       string
	Terminated bool
}

// ExtractMarkdown returns the first fenced block whose language matches one
// of langFilter (case-insensitive). With no filter the first block is returned.
// Supports ``` and ~~~ fences of three or more characters; a block closes on a
// line holding only the same fence character repeated at least as many times.
// An unterminated block runs to the end of the input.
func ExtractMarkdown(s string, langFilter ...string) (FencedBlock, bool) {
	var want map[string]struct{}
	if len(langFilter) > 0 {
		want = make(map[string]struct{}, len(langFilter))
		for _, lf := range langFilter {
			lf = strings.ToLower(strings.TrimSpace(lf))
			if lf != "" {
				want[lf] = struct{}{}
			}
		}
	}
	for _, block := range FencedBlocks(s) {
		if want == nil {
			return block, true
		}
		if _, ok := want[block.Lang]; ok {
			return block, true
		}
	}
	return FencedBlock{}, false
}

// FencedBlocks returns every fenced block of s in document order.
func FencedBlocks(s string) []FencedBlock {
	lines := strings.Split(strings.ReplaceAll(trimBOM(s), "\r\n", "\n"), "\n")
	var (
		out     []FencedBlock
		inBlock bool
		fence   string
		lang    string
		body    []string
	)
	for _, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if !inBlock {
			f, info, ok := openingFence(trimmed)
			if !ok {
				continue
			}
			inBlock, fence, body = true, f, body[:0]
			lang = ""
			if fields := strings.Fields(info); len(fields) > 0 {
				lang = strings.ToLower(fields[0])
			}
			continue
		}
		if isClosingFence(strings.TrimSpace(trimmed), fence) {
			out = append(out, FencedBlock{Lang: lang, Body: strings.Join(body, "\n"), Terminated: true})
			inBlock = false
			continue
		}
		body = append(body, line)
	}
	if inBlock {
		out = append(out, FencedBlock{Lang: lang, Body: strings.Join(body, "\n")})
	}
	return out
}

func openingFence(line string) (fence, info string, ok bool) {
	if len(line) < 3 {
		return "", "", false
	}
	c := line[0]
	if c != '`' && c != '~' {
		return "", "", false
	}
	n := 0
	for n < len(line) && line[n] == c {
		n++
	}
	if n < 3 {
		return "", "", false
	}
	info = strings.TrimSpace(line[n:])
	if c == '`' && strings.ContainsRune(info, '`') {
		return "", "", false
	}
	return line[:n], info, true
}

func isClosingFence(line, fence string) bool {
	if len(line) < len(fence) {
		return false
	}
	return strings.Trim(line, fence[:1]) == ""
}

var blankRuns = regexp.MustCompile(`\n{3,}`)

// CleanMarkdown strips trailing whitespace from every line and collapses runs
// of blank lines to a single blank line.
func CleanMarkdown(s string) string {
	s = strings.ReplaceAll(trimBOM(s), "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\r\f\v")
	}
	s = strings.Join(lines, "\n")
	return blankRuns.ReplaceAllString(s, "\n\n")
}

// trimBOM removes an optional UTF-8 BOM.
func trimBOM(s string) string {
	if strings.HasPrefix(s, "\uFEFF") {
		return strings.TrimPrefix(s, "\uFEFF")
	}
	// Handle malformed BOM-like prefix (rare)
	if len(s) >= 3 {
		b0, b1, b2 := s[0], s[1], s[2]
		if b0 == 0xEF && b1 == 0xBB && b2 == 0xBF && utf8.ValidString(s[3:]) {
			return s[3:]
		}
	}
	return s
}
