package markdown

import (
	"fmt"
	"regexp"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

var pageMarker = regexp.MustCompile(`End of Page \d+`)

var parser = goldmark.New(goldmark.WithExtensions(extension.Table)).Parser()

// Structure counts the non-prose elements of a markdown document.
type Structure struct {
	Images      int
	Links       []string
	Tables      int
	TableCells  int
	PageMarkers int
}

// Inspect parses source and counts its structural elements.
func Inspect(source string) Structure {
	src := []byte(source)
	doc := parser.Parse(text.NewReader(src))

	var s Structure
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Image:
			s.Images++
		case *ast.Link:
			s.Links = append(s.Links, string(node.Destination))
		case *ast.AutoLink:
			s.Links = append(s.Links, string(node.URL(src)))
		case *east.Table:
			s.Tables++
		case *east.TableCell:
			s.TableCells++
		}
		return ast.WalkContinue, nil
	})
	s.PageMarkers = len(pageMarker.FindAllString(source, -1))
	return s
}

// CompareStructure lists the ways translated lost structure present in
// source. Extra elements in translated are not reported.
func CompareStructure(source, translated string) []string {
	want, got := Inspect(source), Inspect(translated)

	var problems []string
	if got.Images < want.Images {
		problems = append(problems, fmt.Sprintf("images: source has %d, translation has %d", want.Images, got.Images))
	}
	if got.Tables < want.Tables {
		problems = append(problems, fmt.Sprintf("tables: source has %d, translation has %d", want.Tables, got.Tables))
	}
	if got.TableCells != want.TableCells {
		problems = append(problems, fmt.Sprintf("table cells: source has %d, translation has %d", want.TableCells, got.TableCells))
	}
	if got.PageMarkers < want.PageMarkers {
		problems = append(problems, fmt.Sprintf("page markers: source has %d, translation has %d", want.PageMarkers, got.PageMarkers))
	}

	have := make(map[string]int, len(got.Links))
	for _, link := range got.Links {
		have[link]++
	}
	for _, link := range want.Links {
		if have[link] == 0 {
			problems = append(problems, fmt.Sprintf("link target %q missing from translation", link))
			continue
		}
		have[link]--
	}
	return problems
}
