package textutil

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MaxCommentLength caps a stored progress comment, in runes.
const MaxCommentLength = 2000

var (
	spaceRe = regexp.MustCompile(`\s+`)
	tagRe   = regexp.MustCompile(`<[^>]+>`)
)

// SanitizeComment turns a rich-text progress comment into plain text.
// Scripts, styles and embedded media are dropped, block elements become
// line breaks, and runs of whitespace collapse to a single space per line.
func SanitizeComment(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	if !strings.Contains(raw, "<") {
		return truncate(normalize(raw))
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return truncate(normalize(tagRe.ReplaceAllString(raw, " ")))
	}

	doc.Find("script, style, noscript, iframe, object, embed, svg, img, form").Each(func(_ int, s *goquery.Selection) {
		s.Remove()
	})
	doc.Find("br").Each(func(_ int, s *goquery.Selection) {
		s.ReplaceWithHtml("\n")
	})
	doc.Find("p, div, li, h1, h2, h3, h4, h5, h6, tr, blockquote").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	return truncate(normalize(doc.Text()))
}

func normalize(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(spaceRe.ReplaceAllString(line, " "))
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= MaxCommentLength {
		return text
	}
	return string(runes[:MaxCommentLength])
}
