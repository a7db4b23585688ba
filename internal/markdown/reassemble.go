// Package markdown turns provider OCR output into clean markdown and performs
// the text surgery around translation calls. Everything here is pure.
package markdown

import (
	"fmt"
	"strings"

	"github.com/datamade/la-metro-translations/internal/models"
)

// PageMarker returns the boundary line written after page n (1-based).
func PageMarker(n int) string {
	return fmt.Sprintf("End of Page %d", n)
}

// EscapeDollars escapes every "$" so renderers do not start math mode.
func EscapeDollars(s string) string {
	return strings.ReplaceAll(s, "$", `\$`)
}

// Reassemble rebuilds one markdown document from per-page OCR records.
// Pages are written in the order given.
func Reassemble(pages []models.Page) string {
	var b strings.Builder
	for _, page := range pages {
		b.WriteString(ReassemblePage(page))
		b.WriteString("\n\n")
		b.WriteString(PageMarker(page.Index + 1))
		b.WriteString("\n\n")
	}
	return b.String()
}

// ReassemblePage applies dollar escaping, table and image substitution and
// the hyperlink appendix to a single page.
func ReassemblePage(page models.Page) string {
	md := EscapeDollars(page.Markdown)

	for _, table := range page.Tables {
		md = strings.ReplaceAll(md, "["+table.ID+"]", EscapeDollars(table.Content))
		// The provider also emits a link-style "(id)" next to the bracketed one.
		md = strings.ReplaceAll(md, "("+table.ID+")", "")
	}

	for _, image := range page.Images {
		md = strings.ReplaceAll(md, "("+image.ID+")", "("+image.ImageBase64+")")
	}

	if links := page.Hyperlinks; len(links) > 0 && !anyInlined(md, links) {
		md += "\n\n" + hyperlinkSection(links)
	}
	return md
}

func anyInlined(md string, links []string) bool {
	for _, link := range links {
		if link != "" && strings.Contains(md, link) {
			return true
		}
	}
	return false
}

func hyperlinkSection(links []string) string {
	var b strings.Builder
	b.WriteString("Relevant hyperlinks:\n")
	for i, link := range links {
		fmt.Fprintf(&b, "\n%d. %s", i+1, link)
	}
	return b.String()
}
