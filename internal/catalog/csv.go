// Package catalog loads per-country page catalogs and keeps immutable snapshots of them.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/Pablo751/dentcb/internal/domain"
)

// Column names of the catalog file. Matching is exact.
const (
	ColumnURL        = "url"
	ColumnTitle      = "title"
	ColumnMeta       = "meta"
	ColumnTopQueries = "top_queries"
	ColumnPageDetail = "Page Detail"
)

// RequiredColumns lists the headers every catalog file must carry.
var RequiredColumns = []string{ColumnURL, ColumnTitle, ColumnMeta, ColumnTopQueries, ColumnPageDetail}

const utf8BOM = "\ufeff"

// ReadRows parses a catalog CSV. Extra columns are ignored; short records
// leave the missing fields empty.
func ReadRows(r io.Reader) ([]domain.CatalogRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, domain.ValidationError("catalog file is empty", nil)
	}
	if err != nil {
		return nil, domain.IOError("read catalog header", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		if _, dup := cols[h]; !dup {
			cols[h] = i
		}
	}

	var missing []string
	for _, name := range RequiredColumns {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, domain.ValidationError(fmt.Sprintf("catalog is missing required column(s): %s", strings.Join(missing, ", ")), nil)
	}

	field := func(rec []string, name string) string {
		i := cols[name]
		if i < len(rec) {
			return rec[i]
		}
		return ""
	}

	var rows []domain.CatalogRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, domain.IOError("read catalog record", err)
		}
		for _, v := range rec {
			if !utf8.ValidString(v) {
				line, _ := cr.FieldPos(0)
				return nil, domain.ValidationError(fmt.Sprintf("catalog line %d is not valid UTF-8", line), nil)
			}
		}
		rows = append(rows, domain.NewCatalogRow(
			field(rec, ColumnURL),
			field(rec, ColumnTitle),
			field(rec, ColumnMeta),
			field(rec, ColumnTopQueries),
			field(rec, ColumnPageDetail),
		))
	}

	return rows, nil
}
