package filefmt

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rampotla586/ut-de-framework/internal/config"
)

// csvReader streams delimiter-separated files.
//
// Options:
//   - has_header (bool, default true): first record names the source
//     columns; mapping columns are matched by normalized name.
//   - comma (string, default ","): field delimiter, first rune used.
//   - trim_space (bool, default true): trim cell whitespace.
//   - lazy_quotes (bool, default false): passed through to encoding/csv.
//   - skip_rows (int, default 0): records discarded before the header.
//   - encoding (string, default utf-8): source character set.
//   - null_if (list of strings): cell values treated as SQL NULL after
//     trimming; the empty string is always NULL.
//   - header_map (map): source header -> mapping column overrides for
//     files whose headers cannot be renamed.
type csvReader struct {
	name string
	opt  config.Options
}

func newCSV(name string, opt config.Options) (*csvReader, error) {
	if _, err := lookupEncoding(opt.String("encoding", "")); err != nil {
		return nil, fmt.Errorf("file format %s: %w", name, err)
	}
	return &csvReader{name: name, opt: opt}, nil
}

func (c *csvReader) ReadRows(ctx context.Context, src io.Reader, fields []Field, emit func([]any) error, onErr func(int, error)) error {
	hasHeader := c.opt.Bool("has_header", true)
	trim := c.opt.Bool("trim_space", true)
	hm := c.opt.StringMap("header_map")
	nullIf := c.opt.Strings("null_if")

	r, err := decodingReader(c.opt.String("encoding", ""), src)
	if err != nil {
		return fmt.Errorf("file format %s: %w", c.name, err)
	}

	cr := csv.NewReader(r)
	cr.Comma = c.opt.Rune("comma", ',')
	cr.ReuseRecord = true
	cr.LazyQuotes = c.opt.Bool("lazy_quotes", false)
	cr.FieldsPerRecord = -1

	var line int
	readRec := func() ([]string, error) {
		line++
		return cr.Read()
	}

	for i := c.opt.Int("skip_rows", 0); i > 0; i-- {
		if _, err := readRec(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("file format %s: skip rows: %w", c.name, err)
		}
	}

	colIx := make([]int, len(fields))
	for i := range colIx {
		colIx[i] = -1
	}

	if hasHeader {
		hdr, err := readRec()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if onErr != nil {
				onErr(line, fmt.Errorf("read header: %w", err))
			}
			return fmt.Errorf("file format %s: read header: %w", c.name, err)
		}

		srcToIdx := make(map[string]int, len(hdr))
		for i, h := range hdr {
			if i == 0 {
				h = strings.TrimPrefix(h, "\uFEFF")
			}
			if mapped, ok := hm[strings.TrimSpace(h)]; ok {
				h = mapped
			} else {
				h = normalizeHeader(h)
			}
			srcToIdx[h] = i
		}
		for t, f := range fields {
			if si, ok := srcToIdx[normalizeHeader(f.Name)]; ok {
				colIx[t] = si
			}
		}
	} else {
		for t, f := range fields {
			if f.Position > 0 {
				colIx[t] = f.Position - 1
			} else {
				colIx[t] = t
			}
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec, err := readRec()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if onErr != nil {
				onErr(line, fmt.Errorf("csv read: %w", err))
			}
			continue
		}

		vals := make([]any, len(fields))
		for t := range fields {
			si := colIx[t]
			if si < 0 || si >= len(rec) {
				continue
			}
			v := rec[si]
			if trim {
				v = strings.TrimSpace(v)
			}
			if v == "" || isNullLiteral(v, nullIf) {
				continue
			}
			vals[t] = v
		}
		if err := emit(vals); err != nil {
			return err
		}
	}
}

func isNullLiteral(v string, nullIf []string) bool {
	for _, n := range nullIf {
		if v == n {
			return true
		}
	}
	return false
}

var _ Reader = (*csvReader)(nil)
