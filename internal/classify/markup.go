package classify

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/citawatch/internal/browser"
	"github.com/nao1215/citawatch/internal/textfold"
)

// dayHeading matches a calendar day heading such as "Lunes 3 de marzo de 2025".
var dayHeading = regexp.MustCompile(`(?i)(lunes|martes|mi[eé]rcoles|jueves|viernes|s[aá]bado|domingo)[^\n]{0,60}?\b\d{4}\b`)

// headingSelector selects the elements a calendar day heading is rendered in.
const headingSelector = "h1, h2, h3, h4, h5, .date, .fecha, .calendar-title, caption"

// markupCandidates parses raw markup and returns the elements matching
// selector, in document order, as slot candidates.
func markupCandidates(markup, selector string, limit int) []browser.Candidate {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil
	}

	var out []browser.Candidate
	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(out) >= limit {
			return false
		}
		if hiddenInMarkup(s) {
			return true
		}
		out = append(out, browser.Candidate{
			Text:    textfold.CollapseSpace(s.Text()),
			Context: textfold.CollapseSpace(s.Parent().Text()),
			Title:   s.AttrOr("title", s.AttrOr("aria-label", "")),
		})
		return true
	})
	return out
}

// hiddenInMarkup reports whether the element is hidden by an attribute or
// an inline style. Stylesheets are not evaluated.
func hiddenInMarkup(s *goquery.Selection) bool {
	if _, ok := s.Attr("hidden"); ok {
		return true
	}
	if v, ok := s.Attr("aria-hidden"); ok && v == "true" {
		return true
	}
	style := strings.ReplaceAll(strings.ToLower(s.AttrOr("style", "")), " ", "")
	return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden")
}

// dateLabel returns the first calendar day heading found in the visible
// text of the documents, falling back to heading elements in the markup.
func dateLabel(snap Snapshot) string {
	for _, d := range snap.Documents {
		if m := dayHeading.FindString(d.Text); m != "" {
			return textfold.CollapseSpace(m)
		}
	}
	for _, d := range snap.Documents {
		if d.Markup == "" {
			continue
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(d.Markup))
		if err != nil {
			continue
		}
		var label string
		doc.Find(headingSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			label = dayHeading.FindString(textfold.CollapseSpace(s.Text()))
			return label == ""
		})
		if label != "" {
			return label
		}
	}
	return ""
}
