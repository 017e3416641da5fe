package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/Pablo751/dentcb/internal/domain"
)

// Snapshot is an immutable set of catalog rows for one country.
type Snapshot struct {
	country domain.Country
	version string
	rows    []domain.CatalogRow
	index   map[string]int
}

// NewSnapshot indexes rows by normalized url. When urls repeat the first row wins.
func NewSnapshot(country domain.Country, version string, rows []domain.CatalogRow) *Snapshot {
	s := &Snapshot{
		country: country,
		version: version,
		rows:    append([]domain.CatalogRow(nil), rows...),
		index:   make(map[string]int, len(rows)),
	}
	for i, r := range s.rows {
		key := r.Key()
		if _, seen := s.index[key]; !seen {
			s.index[key] = i
		}
	}
	return s
}

// Country returns the market this snapshot belongs to.
func (s *Snapshot) Country() domain.Country { return s.country }

// Version identifies the file revision the rows were read from.
func (s *Snapshot) Version() string { return s.version }

// Len returns the number of rows.
func (s *Snapshot) Len() int { return len(s.rows) }

// Rows returns the rows in file order. The slice is a copy.
func (s *Snapshot) Rows() []domain.CatalogRow {
	return append([]domain.CatalogRow(nil), s.rows...)
}

// Lookup finds the first row whose normalized url equals the normalized u.
func (s *Snapshot) Lookup(u string) (domain.CatalogRow, bool) {
	i, ok := s.index[domain.NormalizeURL(u)]
	if !ok {
		return domain.CatalogRow{}, false
	}
	return s.rows[i], true
}

type snapshotJSON struct {
	Country domain.Country      `json:"country"`
	Version string              `json:"version"`
	Rows    []domain.CatalogRow `json:"rows"`
}

// MarshalJSON encodes the snapshot for the cache.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshotJSON{Country: s.country, Version: s.version, Rows: s.rows})
}

// UnmarshalSnapshot decodes a cached snapshot and rebuilds its index.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var sj snapshotJSON
	if err := json.Unmarshal(data, &sj); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	for i, r := range sj.Rows {
		sj.Rows[i].TopQueries = domain.SplitTopQueries(r.TopQueriesRaw)
	}
	return NewSnapshot(sj.Country, sj.Version, sj.Rows), nil
}
