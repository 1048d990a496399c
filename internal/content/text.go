package content

import (
	"html"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/gosimple/slug"
	"github.com/microcosm-cc/bluemonday"
)

const (
	wordsPerMinute   = 200
	previewLimit     = 500
	previewMinLength = 200
)

// Slugify derives a URL slug from a title. fallback is used when the title
// has no transliterable characters.
func Slugify(title, fallback string) string {
	s := slug.Make(title)
	if s == "" {
		return fallback
	}
	return s
}

// WordCount is the character count of the markdown source.
func WordCount(src string) int {
	return utf8.RuneCountInString(src)
}

// ReadTime estimates reading minutes, never less than one.
func ReadTime(src string) int {
	minutes := int(math.Round(float64(WordCount(src)) / wordsPerMinute))
	if minutes < 1 {
		return 1
	}
	return minutes
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

var stripPolicy = bluemonday.StrictPolicy()

// PlainText removes all markup, leaving readable text.
func PlainText(markup string) string {
	text := html.UnescapeString(stripPolicy.Sanitize(markup))
	return strings.Join(strings.Fields(text), " ")
}

// Summary is the excerpt if present, else the first n runes of the body
// followed by an ellipsis.
func Summary(excerpt, body string, n int) string {
	if strings.TrimSpace(excerpt) != "" {
		return excerpt
	}
	if utf8.RuneCountInString(body) <= n {
		return body
	}
	return Truncate(body, n) + "..."
}

// Preview returns the teaser shown for locked content: the first 500
// characters of the rendered HTML, cut back to the last closing paragraph or
// div when that leaves more than 200 characters.
func Preview(rendered string) string {
	if rendered == "" {
		return ""
	}
	preview := Truncate(rendered, previewLimit)
	lastP := strings.LastIndex(preview, "</p>")
	lastDiv := strings.LastIndex(preview, "</div>")

	cut, tagLen := lastP, len("</p>")
	if lastDiv > lastP {
		cut, tagLen = lastDiv, len("</div>")
	}
	if cut > 0 && utf8.RuneCountInString(preview[:cut]) > previewMinLength {
		preview = preview[:cut+tagLen]
	}
	return preview
}
