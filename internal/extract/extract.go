package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// Matches ending in an asset extension are file names like logo@2x.png.
var assetSuffixes = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg"}

// Elements that break rendered text into separate runs. Inline elements such
// as <em> join their text with the neighbours, the way result snippets
// highlight the matched part of an address.
var blockElements = map[string]struct{}{
	"address": {}, "article": {}, "aside": {}, "blockquote": {}, "br": {}, "dd": {},
	"div": {}, "dl": {}, "dt": {}, "footer": {}, "form": {}, "h1": {}, "h2": {},
	"h3": {}, "h4": {}, "h5": {}, "h6": {}, "header": {}, "hr": {}, "li": {},
	"main": {}, "nav": {}, "ol": {}, "p": {}, "section": {}, "table": {}, "td": {},
	"th": {}, "tr": {}, "ul": {},
}

// Text renders the visible text of an HTML document. Script, style and
// noscript content is dropped.
func Text(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript, template").Remove()

	var b strings.Builder
	var walk func(*goquery.Selection)
	walk = func(sel *goquery.Selection) {
		sel.Contents().Each(func(_ int, child *goquery.Selection) {
			name := goquery.NodeName(child)
			switch {
			case name == "#text":
				b.WriteString(child.Text())
			case strings.HasPrefix(name, "#"):
			default:
				_, block := blockElements[name]
				if block {
					b.WriteByte('\n')
				}
				walk(child)
				if block {
					b.WriteByte('\n')
				}
			}
		})
	}
	walk(doc.Selection)
	return b.String(), nil
}

// Normalize is the canonical form of an address: trimmed and lowercased.
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FromText returns the distinct normalized addresses in text, in order of
// first appearance.
func FromText(text string) []string {
	matches := emailRegex.FindAllString(text, -1)
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		email := Normalize(strings.TrimRight(m, "."))
		if len(email) <= 5 || !strings.Contains(email, ".") || isAsset(email) {
			continue
		}
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}
		out = append(out, email)
	}
	return out
}

func isAsset(email string) bool {
	for _, suffix := range assetSuffixes {
		if strings.HasSuffix(email, suffix) {
			return true
		}
	}
	return false
}

// Emails renders html and returns the addresses found in its visible text.
func Emails(html string) ([]string, error) {
	text, err := Text(html)
	if err != nil {
		return nil, err
	}
	return FromText(text), nil
}
