package browser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const truncationMarker = "\n\n[Content truncated...]"

var blankRuns = regexp.MustCompile(`\n{3,}`)
var spaceRuns = regexp.MustCompile(`[ \t]+`)

// Compress bounds extracted page text to maxChars while preserving
// paragraph and heading boundaries. Whole paragraphs are kept until the
// next one would overflow; a truncation marker flags the cut.
func Compress(text string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = 6000
	}
	text = strings.TrimSpace(text)
	text = spaceRuns.ReplaceAllString(text, " ")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	if len(text) <= maxChars {
		return text
	}
	// Bounds too small to fit the marker get a flat cut.
	if maxChars <= len(truncationMarker) {
		return text[:maxChars]
	}

	budget := maxChars - len(truncationMarker)
	var b strings.Builder
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		needed := len(para)
		if b.Len() > 0 {
			needed += 2
		}
		if b.Len()+needed > budget {
			break
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(para)
	}

	// A single oversized paragraph still has to fit the bound.
	if b.Len() == 0 {
		return text[:budget] + truncationMarker
	}
	return b.String() + truncationMarker
}

// FragmentType classifies one extracted semantic fragment.
const (
	FragmentHeadline  = "headline"
	FragmentParagraph = "paragraph"
	FragmentQuote     = "quote"
	FragmentList      = "list"
)

// Fragment is one semantic slice of a fetched page.
type Fragment struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

const maxFragments = 40

// ExtractFragments pulls typed semantic fragments from page HTML: headings,
// paragraphs, block quotes and lists. Boilerplate containers are stripped
// first.
func ExtractFragments(html string) ([]Fragment, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	doc.Find("script, style, nav, footer, aside, .ad, .advertisement, .sidebar").Remove()

	var fragments []Fragment
	add := func(kind, text string) {
		text = strings.TrimSpace(spaceRuns.ReplaceAllString(text, " "))
		if text == "" || len(fragments) >= maxFragments {
			return
		}
		fragments = append(fragments, Fragment{Type: kind, Text: text})
	}

	doc.Find("h1, h2, h3, p, blockquote, ul, ol").Each(func(i int, s *goquery.Selection) {
		if len(fragments) >= maxFragments {
			return
		}
		switch goquery.NodeName(s) {
		case "h1", "h2", "h3":
			add(FragmentHeadline, s.Text())
		case "p":
			// Paragraphs inside blockquotes surface as quotes.
			if s.ParentsFiltered("blockquote").Length() > 0 {
				return
			}
			add(FragmentParagraph, s.Text())
		case "blockquote":
			add(FragmentQuote, s.Text())
		case "ul", "ol":
			var items []string
			s.ChildrenFiltered("li").Each(func(j int, li *goquery.Selection) {
				item := strings.TrimSpace(li.Text())
				if item != "" {
					items = append(items, item)
				}
			})
			if len(items) > 0 {
				add(FragmentList, strings.Join(items, "; "))
			}
		}
	})
	return fragments, nil
}
