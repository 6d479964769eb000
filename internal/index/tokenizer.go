package index

import "strings"

// firstInlineLink scans line for the first well-formed [title](target).
// The title may not contain ']' and the target may not contain ')'; both
// must be non-empty.
func firstInlineLink(line string) (title, target string, ok bool) {
	for i := 0; i < len(line); i++ {
		if line[i] != '[' {
			continue
		}
		closeTitle := strings.IndexByte(line[i+1:], ']')
		if closeTitle <= 0 {
			continue
		}
		closeTitle += i + 1
		if closeTitle+1 >= len(line) || line[closeTitle+1] != '(' {
			continue
		}
		start := closeTitle + 2
		closeTarget := strings.IndexByte(line[start:], ')')
		if closeTarget <= 0 {
			continue
		}
		return strings.TrimSpace(line[i+1 : closeTitle]), line[start : start+closeTarget], true
	}
	return "", "", false
}
