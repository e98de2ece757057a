package search

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// parseOrganicHTML scrapes organic results out of a raw search result page.
// The selectors cover the result containers of the supported engines; items
// without an absolute link or a title are dropped.
func parseOrganicHTML(r io.Reader) ([]Result, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	var results []Result
	doc.Find("div.g, li.b_algo, li.serp-item").Each(func(_ int, sel *goquery.Selection) {
		link := sel.Find("a[href]").First()
		href, ok := link.Attr("href")
		if !ok || !strings.HasPrefix(href, "http") {
			return
		}

		title := strings.TrimSpace(sel.Find("h3, h2").First().Text())
		if title == "" {
			title = strings.TrimSpace(link.Text())
		}
		if title == "" {
			return
		}

		snippet := strings.TrimSpace(sel.Find("p, div.VwiC3b, div.b_caption").First().Text())

		results = append(results, Result{
			Title:   title,
			URL:     href,
			Snippet: snippet,
		})
	})
	return results, nil
}
