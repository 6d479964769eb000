package helpers

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"
)

const maxTitleRunes = 50

var (
	embeddedIDRe   = regexp.MustCompile(`(\d+[a-zA-Z]\d+)$`)
	unsafeTitleRe  = regexp.MustCompile(`[^\p{L}\p{N}_\-()\x{4e00}-\x{9fff}]+`)
	underscoreRuns = regexp.MustCompile(`_+`)
)

// SafeFileName derives a stable local file name for a fetched document.
// The prefix is the alphanumeric id embedded in the last path segment
// (e.g. "123a456.md") followed by a short address hash, or a longer hash
// when no id is present. The sanitised title follows, then ext.
func SafeFileName(title, address, ext string) string {
	sum := addressHash(address)
	prefix := sum[:16]
	if id := EmbeddedID(address, ext); id != "" {
		prefix = id + "_" + sum[:8]
	}
	return prefix + "_" + SanitizeTitle(title) + ext
}

// EmbeddedID returns the id in the final path segment of address, or "".
func EmbeddedID(address, ext string) string {
	p := address
	if u, err := url.Parse(address); err == nil {
		p = u.Path
	}
	base := path.Base(p)
	if ext != "" {
		if !strings.HasSuffix(strings.ToLower(base), strings.ToLower(ext)) {
			return ""
		}
		base = base[:len(base)-len(ext)]
	}
	m := embeddedIDRe.FindStringSubmatch(base)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// SanitizeTitle replaces characters that are neither word nor CJK characters
// with underscores, collapses runs and caps the length.
func SanitizeTitle(title string) string {
	s := unsafeTitleRe.ReplaceAllString(strings.TrimSpace(title), "_")
	s = underscoreRuns.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if utf8.RuneCountInString(s) > maxTitleRunes {
		s = strings.TrimRight(string([]rune(s)[:maxTitleRunes]), "_")
	}
	if s == "" {
		return "untitled"
	}
	return s
}

func addressHash(address string) string {
	if fp, err := URLFingerprint(address); err == nil {
		return fp
	}
	sum := sha256.Sum256([]byte(address))
	return hex.EncodeToString(sum[:])
}
