package ingest

import (
	"fmt"
	"io"
	"os"
	"strings"

	"timetable-import/internal/schedule"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
)

// HTMLParser handles timetable pages saved from a school portal. The first
// table with a row of day headings is flattened into the tab-separated
// layout the structural parser reads.
type HTMLParser struct {
	engine *Engine
}

func NewHTMLParser(e *Engine) *HTMLParser { return &HTMLParser{engine: e} }

func (p *HTMLParser) CanParse(ext string) bool {
	return ext == ".html" || ext == ".htm"
}

func (p *HTMLParser) Parse(filePath string) (*Result, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open html file: %w", err)
	}
	defer f.Close()

	text, err := FlattenHTML(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}

	res, err := p.engine.ParseStructural(text)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	res.Source = filePath
	res.Format = "html"
	return res, nil
}

// FlattenHTML renders the timetable table of an HTML page as text. The day
// heading row becomes a tab-separated header. In every later row the cells
// left of the first day column (period name, times) are written one line
// each, followed by the class cells joined with tabs and padded to the
// heading's width, so a spanned cell still reads as a class line. Pages
// without such a table fall back to their visible text.
func FlattenHTML(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parsing HTML: %w", err)
	}
	doc.Find("br").ReplaceWithHtml("\n")

	var out []string
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		out = flattenTable(table)
		return out == nil
	})

	if out == nil {
		log.Debug().Msg("No day heading row in HTML tables, using page text")
		return doc.Find("body").Text(), nil
	}
	return strings.Join(out, "\n"), nil
}

func flattenTable(table *goquery.Selection) []string {
	var out []string
	offset, width := -1, 0

	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		var cells []string
		row.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, cell.Text())
		})

		if offset < 0 {
			if first, n := dayColumns(cells); n >= 2 {
				offset, width = first, len(cells)-first
				out = append(out, strings.Join(cellLines(cells[offset:]), "\t"))
			}
			return
		}

		lead, classes := cells, []string(nil)
		if len(cells) > offset {
			lead, classes = cells[:offset], cells[offset:]
		}
		for _, c := range lead {
			for _, line := range strings.Split(c, "\n") {
				if line = collapse(line); line != "" {
					out = append(out, line)
				}
			}
		}

		joined := cellLines(classes)
		for len(joined) < width {
			joined = append(joined, "")
		}
		if strings.TrimSpace(strings.Join(joined, "")) != "" {
			out = append(out, strings.Join(joined, "\t"))
		}
	})

	if offset < 0 {
		return nil
	}
	return out
}

// dayColumns returns the index of the first "Day N" cell and the number of
// such cells in a row.
func dayColumns(cells []string) (first, n int) {
	first = -1
	for i, c := range cells {
		if _, ok := schedule.DayNumber(collapse(c)); ok {
			if first < 0 {
				first = i
			}
			n++
		}
	}
	return first, n
}

func cellLines(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = collapse(c)
	}
	return out
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
