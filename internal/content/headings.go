package content

import (
	"fmt"
	"io"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// AssignHeadingIDs gives every h1-h6 without an id a unique slug id and
// returns the document's headings in order. Headings that already carry an
// id keep it, and every other byte of the input is copied unchanged, so
// running the pass on its own output is a no-op.
func AssignHeadingIDs(src string) (string, []Heading) {
	used := existingIDs(src)

	var out strings.Builder
	out.Grow(len(src) + 64)
	var toc []Heading

	z := html.NewTokenizer(strings.NewReader(src))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() != io.EOF {
				// unparseable tail; keep it verbatim
				out.Write(z.Raw())
			}
			break
		}
		if tt != html.StartTagToken {
			out.Write(z.Raw())
			continue
		}

		raw := append([]byte(nil), z.Raw()...)
		tok := z.Token()
		level := headingLevel(tok.Data)
		if level == 0 {
			out.Write(raw)
			continue
		}

		inner, text := collectUntilClose(z, tok.Data)
		title := strings.Join(strings.Fields(text), " ")

		id := attrValue(tok, "id")
		if id == "" {
			id = uniqueID(slugifyHeading(title), used)
			tok.Attr = append(tok.Attr, html.Attribute{Key: "id", Val: id})
			out.WriteString(tok.String())
		} else {
			out.Write(raw)
		}
		out.WriteString(inner)
		toc = append(toc, Heading{Level: level, ID: id, Title: title})
	}

	return out.String(), toc
}

// collectUntilClose copies raw tokens up to and including the closing tag
// named name and returns them with the concatenated text content.
func collectUntilClose(z *html.Tokenizer, name string) (string, string) {
	var raw, text strings.Builder
	depth := 1
	for depth > 0 {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		raw.Write(z.Raw())
		switch tt {
		case html.TextToken:
			text.WriteString(html.UnescapeString(string(z.Raw())))
		case html.StartTagToken:
			if tn, _ := z.TagName(); string(tn) == name {
				depth++
			}
		case html.EndTagToken:
			if tn, _ := z.TagName(); string(tn) == name {
				depth--
			}
		}
	}
	return raw.String(), text.String()
}

func existingIDs(src string) map[string]bool {
	used := make(map[string]bool)
	z := html.NewTokenizer(strings.NewReader(src))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return used
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		for {
			key, val, more := z.TagAttr()
			if string(key) == "id" && len(val) > 0 {
				used[string(val)] = true
			}
			if !more {
				break
			}
		}
	}
}

func headingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}

func attrValue(tok html.Token, key string) string {
	for _, a := range tok.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func uniqueID(base string, used map[string]bool) string {
	id := base
	for n := 1; used[id]; n++ {
		id = fmt.Sprintf("%s-%d", base, n)
	}
	used[id] = true
	return id
}

// slugifyHeading keeps letters and digits from any script so non-latin
// headings still get readable anchors.
func slugifyHeading(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case r == '-' || r == '_' || unicode.IsSpace(r):
			if b.Len() > 0 && !dash {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	s := strings.TrimRight(b.String(), "-")
	if s == "" {
		return "section"
	}
	return s
}
