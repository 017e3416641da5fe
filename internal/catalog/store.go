package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Pablo751/dentcb/internal/cache"
	"github.com/Pablo751/dentcb/internal/domain"
	"github.com/Pablo751/dentcb/internal/observability"
)

// PathResolver maps a country to its catalog file. *config.Config implements it.
type PathResolver interface {
	CatalogPath(country domain.Country) string
}

// Loader returns the catalog snapshot for a locale.
type Loader interface {
	Load(ctx context.Context, loc domain.Locale) (*Snapshot, error)
}

// Store reads catalog files and caches their snapshots.
type Store struct {
	paths  PathResolver
	cache  cache.Client
	ttl    time.Duration
	logger *observability.Logger
	group  singleflight.Group
}

// NewStore creates a store. A nil cache client disables caching.
func NewStore(paths PathResolver, c cache.Client, ttl time.Duration, logger *observability.Logger) *Store {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Store{
		paths:  paths,
		cache:  c,
		ttl:    ttl,
		logger: logger.WithComponent("catalog"),
	}
}

// Load returns the snapshot for loc.Country. A missing file yields a
// data_not_found error; a file without the required columns a validation error.
func (s *Store) Load(ctx context.Context, loc domain.Locale) (*Snapshot, error) {
	country := loc.Country
	log := s.logger.WithContext(ctx)

	path := s.paths.CatalogPath(country)
	if path == "" {
		log.Warn().Str("country", string(country)).Msg("No catalog configured")
		return nil, domain.DataNotFoundError(fmt.Sprintf("no catalog configured for %s", country), nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn().Str("country", string(country)).Str("path", path).Msg("Catalog file not found")
			return nil, domain.DataNotFoundError(fmt.Sprintf("catalog file not found: %s", path), err)
		}
		return nil, domain.IOError("stat catalog file", err)
	}

	version := fmt.Sprintf("%d-%d", info.Size(), info.ModTime().UnixNano())
	key := cache.CatalogKey(string(country), version)

	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		if snap := s.fromCache(ctx, key); snap != nil {
			log.Debug().Str("country", string(country)).Str("version", version).Msg("Catalog served from cache")
			return snap, nil
		}
		return s.read(ctx, country, version, path, key)
	})
	if err != nil {
		return nil, err
	}

	if shared {
		log.Debug().Str("country", string(country)).Msg("Catalog load shared with concurrent caller")
	}
	return v.(*Snapshot), nil
}

// Invalidate drops every cached version of a country's catalog.
func (s *Store) Invalidate(ctx context.Context, country domain.Country) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.DeleteByPrefix(ctx, cache.CatalogPrefix(string(country))); err != nil {
		return fmt.Errorf("invalidate catalog %s: %w", country, err)
	}
	s.logger.Info().Str("country", string(country)).Msg("Catalog cache invalidated")
	return nil
}

func (s *Store) read(ctx context.Context, country domain.Country, version, path, key string) (*Snapshot, error) {
	start := time.Now()

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.DataNotFoundError(fmt.Sprintf("catalog file not found: %s", path), err)
		}
		return nil, domain.IOError("open catalog file", err)
	}
	defer f.Close()

	rows, err := ReadRows(f)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("Catalog file rejected")
		return nil, err
	}

	snap := NewSnapshot(country, version, rows)
	s.logger.WithContext(ctx).Info().
		Str("country", string(country)).
		Str("path", path).
		Int("rows", snap.Len()).
		Dur("duration", time.Since(start)).
		Msg("Catalog loaded")

	s.toCache(ctx, key, snap)
	return snap, nil
}

func (s *Store) fromCache(ctx context.Context, key string) *Snapshot {
	if s.cache == nil {
		return nil
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn().Err(err).Str("key", key).Msg("Catalog cache read failed")
		}
		return nil
	}
	snap, err := UnmarshalSnapshot(data)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Discarding undecodable cached catalog")
		_ = s.cache.Delete(ctx, key)
		return nil
	}
	return snap
}

func (s *Store) toCache(ctx context.Context, key string, snap *Snapshot) {
	if s.cache == nil {
		return
	}
	data, err := snap.MarshalJSON()
	if err != nil {
		s.logger.Warn().Err(err).Msg("Catalog snapshot not cacheable")
		return
	}
	if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Catalog cache write failed")
	}
}
