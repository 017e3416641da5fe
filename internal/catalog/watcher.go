package catalog

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Pablo751/dentcb/internal/domain"
	"github.com/Pablo751/dentcb/internal/observability"
)

const debounceInterval = 50 * time.Millisecond

// Invalidator drops cached snapshots of one country.
type Invalidator interface {
	Invalidate(ctx context.Context, country domain.Country) error
}

// Watcher invalidates a country's cached catalog when its file changes on disk.
type Watcher struct {
	fw      *fsnotify.Watcher
	target  Invalidator
	files   map[string]domain.Country // cleaned path -> country
	logger  *observability.Logger
	onEvent func(domain.Country)

	done    chan struct{}
	stopped bool
	mu      sync.Mutex
}

// NewWatcher watches the directories holding the catalog files of every country.
func NewWatcher(paths PathResolver, target Invalidator, logger *observability.Logger) (*Watcher, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fw:     fw,
		target: target,
		files:  make(map[string]domain.Country),
		logger: logger.WithComponent("catalog_watcher"),
		done:   make(chan struct{}),
	}

	dirs := make(map[string]bool)
	for _, c := range domain.Countries {
		p := paths.CatalogPath(c)
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		w.files[filepath.Clean(abs)] = c
		dirs[filepath.Dir(abs)] = true
	}

	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			_ = fw.Close()
			return nil, err
		}
	}

	return w, nil
}

// OnInvalidate registers a callback fired after each invalidation.
func (w *Watcher) OnInvalidate(fn func(domain.Country)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onEvent = fn
}

// Start processes file events until Stop is called or ctx is done.
func (w *Watcher) Start(ctx context.Context) {
	debounce := make(map[string]time.Time)

	go func() {
		for {
			select {
			case event, ok := <-w.fw.Events:
				if !ok {
					return
				}
				if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
					event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) {
					continue
				}

				path := filepath.Clean(event.Name)
				country, tracked := w.files[path]
				if !tracked {
					continue
				}

				now := time.Now()
				if last, seen := debounce[path]; seen && now.Sub(last) < debounceInterval {
					continue
				}
				debounce[path] = now

				w.invalidate(ctx, country, event.Op.String())

			case err, ok := <-w.fw.Errors:
				if !ok {
					return
				}
				w.logger.Warn().Err(err).Msg("Catalog watcher error")

			case <-ctx.Done():
				_ = w.Stop()
				return

			case <-w.done:
				return
			}
		}
	}()
}

func (w *Watcher) invalidate(ctx context.Context, country domain.Country, op string) {
	if err := w.target.Invalidate(ctx, country); err != nil {
		w.logger.Error().Err(err).Str("country", string(country)).Msg("Catalog invalidation failed")
		return
	}
	w.logger.Info().Str("country", string(country)).Str("op", op).Msg("Catalog file changed")

	w.mu.Lock()
	fn := w.onEvent
	w.mu.Unlock()
	if fn != nil {
		fn(country)
	}
}

// Stop ends monitoring. Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.done)
	return w.fw.Close()
}
