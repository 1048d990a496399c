// Package content turns markdown into safe HTML with a table of contents.
package content

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// Heading is one entry of a rendered document's table of contents.
type Heading struct {
	Level int
	ID    string
	Title string
}

// Rendered is the output of the markdown pipeline.
type Rendered struct {
	HTML string
	TOC  []Heading
}

var allowedElements = []string{
	"p", "br", "hr", "strong", "em", "u", "i", "b", "del", "span", "div",
	"h1", "h2", "h3", "h4", "h5", "h6",
	"ul", "ol", "li", "blockquote", "pre", "code",
	"a", "img",
	"table", "thead", "tbody", "tr", "th", "td",
}

var headingElements = []string{"h1", "h2", "h3", "h4", "h5", "h6"}

// Renderer converts markdown to sanitized HTML.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewRenderer builds the goldmark and bluemonday pipeline.
func NewRenderer() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		// raw HTML passes through goldmark and is cleaned by the policy below
		goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
	)
	return &Renderer{md: md, policy: newPolicy()}
}

func newPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(allowedElements...)
	p.AllowAttrs("class").Globally()
	p.AllowAttrs("id").OnElements(headingElements...)
	p.AllowAttrs("href", "title", "target").OnElements("a")
	p.AllowAttrs("src", "alt", "title", "width", "height").OnElements("img")
	p.AllowAttrs("cite").OnElements("blockquote")
	p.AllowAttrs("align").Matching(regexp.MustCompile(`^(left|right|center)$`)).OnElements("th", "td")
	// GFM task lists
	p.AllowElements("input")
	p.AllowAttrs("type").Matching(regexp.MustCompile(`^checkbox$`)).OnElements("input")
	p.AllowAttrs("checked", "disabled").OnElements("input")
	p.AllowURLSchemes("http", "https", "mailto")
	p.AllowRelativeURLs(true)
	// rel is set by the policy, never taken from input
	p.RequireNoReferrerOnLinks(true)
	return p
}

// Render converts markdown source to sanitized HTML and extracts headings.
func (r *Renderer) Render(src string) (Rendered, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return Rendered{}, fmt.Errorf("render markdown: %w", err)
	}
	clean := r.policy.Sanitize(buf.String())
	html, toc := AssignHeadingIDs(clean)
	return Rendered{HTML: html, TOC: toc}, nil
}

// Sanitize strips tags and attributes outside the allow-list.
func (r *Renderer) Sanitize(html string) string {
	return r.policy.Sanitize(html)
}

var defaultRenderer = NewRenderer()

// Render runs the default pipeline.
func Render(src string) (Rendered, error) {
	return defaultRenderer.Render(src)
}

// Sanitize runs the default policy.
func Sanitize(html string) string {
	return defaultRenderer.Sanitize(html)
}
