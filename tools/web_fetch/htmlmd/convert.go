// Package htmlmd normalises HTML documentation pages to Markdown so fenced
// code blocks survive for extraction.
package htmlmd

import (
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/go-shiori/go-readability"
)

var excessiveLinesRe = regexp.MustCompile(`\n{4,}`)

// Converter converts HTML to markdown with main-content extraction.
type Converter struct {
	converter *md.Converter
}

// NewConverter creates a new HTML to markdown converter.
func NewConverter() *Converter {
	converter := md.NewConverter("", true, &md.Options{CodeBlockStyle: "fenced", Fence: "```"})
	converter.Use(plugin.GitHubFlavored())
	return &Converter{converter: converter}
}

// Convert extracts the readable part of page and returns its title and
// markdown. When readability finds nothing the whole page is converted.
func (c *Converter) Convert(page, pageURL string) (title, markdown string, err error) {
	content := page
	parser := readability.NewParser()
	parser.KeepClasses = true // code fence languages live in class attributes
	if article, rerr := parser.Parse(strings.NewReader(page), mustParseURL(pageURL)); rerr == nil && strings.TrimSpace(article.Content) != "" {
		content = article.Content
		title = strings.TrimSpace(article.Title)
	}
	markdown, err = c.converter.ConvertString(content)
	if err != nil {
		return "", "", err
	}
	markdown = excessiveLinesRe.ReplaceAllString(strings.TrimSpace(markdown), "\n\n\n")
	return title, markdown, nil
}

// IsHTML reports whether a response with contentType and body looks like HTML.
func IsHTML(contentType, body string) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml") {
		return true
	}
	if strings.Contains(ct, "markdown") || strings.Contains(ct, "text/plain") {
		return false
	}
	head := strings.ToLower(strings.TrimSpace(body))
	if len(head) > 64 {
		head = head[:64]
	}
	return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html")
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
