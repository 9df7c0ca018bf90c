package filefmt

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rampotla586/ut-de-framework/internal/config"
)

// jsonlReader streams newline-delimited JSON objects. Each line is
// decoded independently, so one malformed line never poisons the rest of
// the file.
//
// Options:
//   - header_map (map): source key -> mapping column overrides.
//   - array_join_separator (string, default ","): arrays of scalars are
//     flattened into one string with this separator.
//   - null_if (list of strings): string values treated as SQL NULL.
type jsonlReader struct {
	name string
	opt  config.Options
}

func newJSONL(name string, opt config.Options) *jsonlReader {
	return &jsonlReader{name: name, opt: opt}
}

// maxLineBytes bounds a single JSONL record.
const maxLineBytes = 16 << 20

func (j *jsonlReader) ReadRows(ctx context.Context, src io.Reader, fields []Field, emit func([]any) error, onErr func(int, error)) error {
	hm := j.opt.StringMap("header_map")
	nullIf := j.opt.Strings("null_if")
	sep := j.opt.String("array_join_separator", ",")

	// Normalized source key -> value, rebuilt per record.
	lookup := make(map[string]any)

	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 64<<10), maxLineBytes)

	line := 0
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++

		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}

		var obj map[string]any
		dec := json.NewDecoder(strings.NewReader(text))
		dec.UseNumber()
		if err := dec.Decode(&obj); err != nil {
			if onErr != nil {
				onErr(line, fmt.Errorf("jsonl decode: %w", err))
			}
			continue
		}

		clear(lookup)
		for k, v := range obj {
			if mapped, ok := hm[k]; ok {
				k = mapped
			}
			lookup[normalizeHeader(k)] = v
		}

		vals := make([]any, len(fields))
		for t, f := range fields {
			v, ok := lookup[normalizeHeader(f.Name)]
			if !ok {
				continue
			}
			vals[t] = flattenJSON(v, sep, nullIf)
		}
		if err := emit(vals); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("file format %s: %w", j.name, err)
	}
	return nil
}

// flattenJSON converts a decoded JSON value into a bindable scalar.
// Numbers keep integer precision where they have it; arrays of scalars
// join with sep; nested objects round-trip as compact JSON text.
func flattenJSON(v any, sep string, nullIf []string) any {
	switch t := v.(type) {
	case nil:
		return nil
	case bool:
		return t
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case string:
		if t == "" || isNullLiteral(t, nullIf) {
			return nil
		}
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if flat := flattenJSON(e, sep, nullIf); flat != nil {
				parts = append(parts, fmt.Sprint(flat))
			}
		}
		if len(parts) == 0 {
			return nil
		}
		return strings.Join(parts, sep)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

var _ Reader = (*jsonlReader)(nil)
