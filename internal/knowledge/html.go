package knowledge

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// stripHTMLTags removes script/style/nav/footer/aside elements and
// returns the remaining visible text; goquery handles entity decoding and
// DOM-aware node removal.
func stripHTMLTags(html string) (title, text string, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", "", err
	}

	title = strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find("script, style, nav, footer, aside, noscript").Remove()

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}

	var parts []string
	body.Find("p, h1, h2, h3, h4, h5, h6, li, td, th, blockquote").Each(func(_ int, sel *goquery.Selection) {
		t := strings.TrimSpace(sel.Text())
		if t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) == 0 {
		parts = append(parts, strings.TrimSpace(body.Text()))
	}
	return title, strings.Join(parts, "\n\n"), nil
}
