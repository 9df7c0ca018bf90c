package filefmt

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/rampotla586/ut-de-framework/internal/config"
)

// htmlTableReader extracts rows from the first table an HTML document
// matches. Sources here are report exports that only exist as web pages.
//
// Options:
//   - selector (string, default "table"): CSS selector for the table.
//   - header_row (bool, default true): first non-empty row names the
//     columns; otherwise cells are taken positionally.
//   - header_map (map): source header -> mapping column overrides.
//   - null_if (list of strings): cell values treated as SQL NULL.
type htmlTableReader struct {
	name string
	opt  config.Options
}

func newHTMLTable(name string, opt config.Options) *htmlTableReader {
	return &htmlTableReader{name: name, opt: opt}
}

func (h *htmlTableReader) ReadRows(ctx context.Context, src io.Reader, fields []Field, emit func([]any) error, onErr func(int, error)) error {
	doc, err := goquery.NewDocumentFromReader(src)
	if err != nil {
		return fmt.Errorf("file format %s: parse html: %w", h.name, err)
	}

	table := doc.Find(h.opt.String("selector", "table")).First()
	if table.Length() == 0 {
		// No table on the page is an empty source; zero-row policy is
		// the strategy's call.
		return nil
	}

	hasHeader := h.opt.Bool("header_row", true)
	hm := h.opt.StringMap("header_map")
	nullIf := h.opt.Strings("null_if")

	colIx := make([]int, len(fields))
	for t, f := range fields {
		if !hasHeader && f.Position > 0 {
			colIx[t] = f.Position - 1
		} else if !hasHeader {
			colIx[t] = t
		} else {
			colIx[t] = -1
		}
	}

	headerPending := hasHeader
	var stopErr error

	table.Find("tr").EachWithBreak(func(i int, tr *goquery.Selection) bool {
		if err := ctx.Err(); err != nil {
			stopErr = err
			return false
		}

		cells := cellTexts(tr)
		if len(cells) == 0 {
			return true
		}

		if headerPending {
			headerPending = false
			srcToIdx := make(map[string]int, len(cells))
			for ci, cell := range cells {
				if mapped, ok := hm[cell]; ok {
					cell = mapped
				}
				srcToIdx[normalizeHeader(cell)] = ci
			}
			for t, f := range fields {
				if si, ok := srcToIdx[normalizeHeader(f.Name)]; ok {
					colIx[t] = si
				}
			}
			return true
		}

		vals := make([]any, len(fields))
		for t := range fields {
			si := colIx[t]
			if si < 0 || si >= len(cells) {
				continue
			}
			if v := cells[si]; v != "" && !isNullLiteral(v, nullIf) {
				vals[t] = v
			}
		}
		if err := emit(vals); err != nil {
			stopErr = err
			return false
		}
		return true
	})

	return stopErr
}

// cellTexts collects the trimmed text of every th/td cell in DOM order.
func cellTexts(tr *goquery.Selection) []string {
	var out []string
	tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
		out = append(out, strings.TrimSpace(cell.Text()))
	})
	return out
}

var _ Reader = (*htmlTableReader)(nil)
