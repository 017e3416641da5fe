package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pablo751/dentcb/internal/cache"
	"github.com/Pablo751/dentcb/internal/domain"
)

const sampleCSV = `url,title,meta,top_queries,Page Detail
https://www.dentaly.org/en/dental-implants/,Dental implant guide,Everything about implants,"dental implants, implant cost",Implants replace missing teeth.
https://www.dentaly.org/en/braces/,Braces explained,Types of braces,"braces, orthodontics",Braces straighten teeth.
HTTPS://WWW.DENTALY.ORG/EN/DENTAL-IMPLANTS/,Duplicate row,dup,dup,Second copy.
`

type mapPaths map[domain.Country]string

func (m mapPaths) CatalogPath(c domain.Country) string { return m[c] }

func writeCatalog(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

var uk = domain.Locale{Country: domain.CountryUK, LanguageCode: "en"}

func TestReadRows(t *testing.T) {
	rows, err := ReadRows(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "https://www.dentaly.org/en/dental-implants/", rows[0].URL)
	assert.Equal(t, "Dental implant guide", rows[0].Title)
	assert.Equal(t, "dental implants, implant cost", rows[0].TopQueriesRaw)
	assert.Equal(t, []string{"dental implants", "implant cost"}, rows[0].TopQueries)
	assert.Equal(t, "Implants replace missing teeth.", rows[0].PageDetail)
}

func TestReadRows_BOMAndExtraColumns(t *testing.T) {
	csv := "\ufeffurl,extra,title,meta,top_queries,Page Detail\nhttps://a/,x,T,M,q,D\nhttps://b/\n"
	rows, err := ReadRows(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "https://a/", rows[0].URL)
	assert.Equal(t, "D", rows[0].PageDetail)
	assert.Equal(t, "https://b/", rows[1].URL)
	assert.Empty(t, rows[1].Title)
	assert.Empty(t, rows[1].TopQueries)
}

func TestReadRows_MissingColumn(t *testing.T) {
	tests := map[string]string{
		"no detail":     "url,title,meta,top_queries\nx,y,z,q\n",
		"wrong casing":  "url,title,meta,top_queries,page detail\nx,y,z,q,d\n",
		"empty file":    "",
		"renamed url":   "URL,title,meta,top_queries,Page Detail\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadRows(strings.NewReader(content))
			require.Error(t, err)
			assert.Equal(t, domain.ErrorTypeValidation, domain.TypeOf(err))
		})
	}
}

func TestSnapshot_LookupFirstWins(t *testing.T) {
	rows, err := ReadRows(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	snap := NewSnapshot(domain.CountryUK, "v1", rows)

	row, ok := snap.Lookup("  https://www.Dentaly.org/en/Dental-Implants/ ")
	require.True(t, ok)
	assert.Equal(t, "Dental implant guide", row.Title)

	_, ok = snap.Lookup("https://www.dentaly.org/en/unknown/")
	assert.False(t, ok)
}

func TestSnapshot_RowsIsCopy(t *testing.T) {
	snap := NewSnapshot(domain.CountryUK, "v1", []domain.CatalogRow{domain.NewCatalogRow("https://a/", "A", "", "", "")})
	rows := snap.Rows()
	rows[0].Title = "mutated"
	assert.Equal(t, "A", snap.Rows()[0].Title)
}

func TestSnapshot_JSONRoundTripRebuildsIndex(t *testing.T) {
	rows, err := ReadRows(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	snap := NewSnapshot(domain.CountryUK, "v1", rows)

	data, err := snap.MarshalJSON()
	require.NoError(t, err)
	back, err := UnmarshalSnapshot(data)
	require.NoError(t, err)

	assert.Equal(t, snap.Rows(), back.Rows())
	assert.Equal(t, "v1", back.Version())
	row, ok := back.Lookup("https://www.dentaly.org/en/dental-implants/")
	require.True(t, ok)
	assert.Equal(t, "Dental implant guide", row.Title)
}

func TestStore_LoadAndCache(t *testing.T) {
	dir := t.TempDir()
	path := writeCatalog(t, dir, "uk.csv", sampleCSV)
	mc := cache.NewMemoryClient(8)
	defer mc.Close()

	store := NewStore(mapPaths{domain.CountryUK: path}, mc, time.Hour, nil)
	ctx := context.Background()

	first, err := store.Load(ctx, uk)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Len())
	assert.Equal(t, 1, mc.Len())

	second, err := store.Load(ctx, uk)
	require.NoError(t, err)
	assert.Equal(t, first.Rows(), second.Rows(), "cached load is identical to a fresh one")
	assert.Equal(t, first.Version(), second.Version())
}

func TestStore_RejectsNonUTF8Catalog(t *testing.T) {
	latin1 := "url,title,meta,top_queries,Page Detail\n" +
		"https://www.dentaly.org/fr/implants/,Implants,Guide,implants,Ok.\n" +
		"https://x/proth\xe8se,Proth\xe8se,Guide,proth\xe8se,D\xe9tail\n"
	path := writeCatalog(t, t.TempDir(), "fr.csv", latin1)
	mc := cache.NewMemoryClient(8)
	defer mc.Close()
	store := NewStore(mapPaths{domain.CountryUK: path}, mc, time.Hour, nil)

	for i := 0; i < 2; i++ {
		_, err := store.Load(context.Background(), uk)
		require.Error(t, err)
		assert.Equal(t, domain.ErrorTypeValidation, domain.TypeOf(err))
		assert.Contains(t, err.Error(), "line 3")
	}
	assert.Equal(t, 0, mc.Len(), "nothing is cached for a rejected file")
}

func TestStore_ReloadsChangedFile(t *testing.T) {
	dir := t.TempDir()
	path := writeCatalog(t, dir, "uk.csv", sampleCSV)
	mc := cache.NewMemoryClient(8)
	defer mc.Close()
	store := NewStore(mapPaths{domain.CountryUK: path}, mc, time.Hour, nil)
	ctx := context.Background()

	first, err := store.Load(ctx, uk)
	require.NoError(t, err)

	updated := sampleCSV + "https://www.dentaly.org/en/whitening/,Whitening,Teeth whitening,whitening,Bleach.\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	second, err := store.Load(ctx, uk)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Len(), "earlier snapshot is untouched")
	assert.Equal(t, 4, second.Len())
}

func TestStore_Invalidate(t *testing.T) {
	dir := t.TempDir()
	path := writeCatalog(t, dir, "uk.csv", sampleCSV)
	mc := cache.NewMemoryClient(8)
	defer mc.Close()
	store := NewStore(mapPaths{domain.CountryUK: path}, mc, time.Hour, nil)

	_, err := store.Load(context.Background(), uk)
	require.NoError(t, err)
	require.Equal(t, 1, mc.Len())

	require.NoError(t, store.Invalidate(context.Background(), domain.CountryUK))
	assert.Equal(t, 0, mc.Len())
}

func TestStore_NotFound(t *testing.T) {
	store := NewStore(mapPaths{domain.CountryUK: filepath.Join(t.TempDir(), "missing.csv")}, nil, 0, nil)

	_, err := store.Load(context.Background(), uk)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDataNotFound))

	_, err = store.Load(context.Background(), domain.Locale{Country: domain.CountryItaly})
	assert.ErrorIs(t, err, domain.ErrDataNotFound, "unconfigured country")
}

func TestStore_InvalidFile(t *testing.T) {
	path := writeCatalog(t, t.TempDir(), "bad.csv", "url,title\nx,y\n")
	store := NewStore(mapPaths{domain.CountryUK: path}, nil, 0, nil)

	_, err := store.Load(context.Background(), uk)
	require.Error(t, err)
	assert.Equal(t, domain.ErrorTypeValidation, domain.TypeOf(err))
}

type countingLoader struct {
	calls int32
	snap  *Snapshot
}

func (c *countingLoader) Load(ctx context.Context, loc domain.Locale) (*Snapshot, error) {
	atomic.AddInt32(&c.calls, 1)
	return c.snap, nil
}

func TestSession_PinsSnapshot(t *testing.T) {
	loader := &countingLoader{snap: NewSnapshot(domain.CountryUK, "v1", nil)}
	s := NewSession("", loader)
	assert.NotEmpty(t, s.ID())

	for i := 0; i < 3; i++ {
		snap, err := s.Load(context.Background(), uk)
		require.NoError(t, err)
		assert.Same(t, loader.snap, snap)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&loader.calls))

	s.Reset()
	_, err := s.Load(context.Background(), uk)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&loader.calls))
}

func TestSessions_IndependentAndSwept(t *testing.T) {
	loader := &countingLoader{snap: NewSnapshot(domain.CountryUK, "v1", nil)}
	reg := NewSessions(loader, time.Minute)

	a := reg.Get("a")
	b := reg.Get("b")
	assert.Same(t, a, reg.Get("a"))
	assert.NotSame(t, a, b)

	fresh := reg.Get("")
	assert.NotEmpty(t, fresh.ID())
	assert.Equal(t, 3, reg.Len())

	_, _ = a.Load(context.Background(), uk)
	_, _ = b.Load(context.Background(), uk)
	assert.Equal(t, int32(2), atomic.LoadInt32(&loader.calls), "sessions do not share pinned snapshots")

	assert.Equal(t, 3, reg.Sweep(time.Now().Add(2*time.Minute)))
	assert.Equal(t, 0, reg.Len())
}

func TestWatcher_InvalidatesOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeCatalog(t, dir, "uk.csv", sampleCSV)
	writeCatalog(t, dir, "notes.txt", "x")

	var mu sync.Mutex
	var got []domain.Country
	fired := make(chan struct{}, 10)

	inv := invalidatorFunc(func(ctx context.Context, c domain.Country) error {
		mu.Lock()
		got = append(got, c)
		mu.Unlock()
		fired <- struct{}{}
		return nil
	})

	w, err := NewWatcher(mapPaths{domain.CountryUK: path}, inv, nil)
	require.NoError(t, err)
	defer w.Stop()
	w.Start(context.Background())

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("y"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV+"\n"), 0o644))

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("expected invalidation after catalog write")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, domain.CountryUK, got[0])
	for _, c := range got {
		assert.Equal(t, domain.CountryUK, c, "untracked files never invalidate")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := NewWatcher(mapPaths{domain.CountryUK: filepath.Join(t.TempDir(), "uk.csv")}, invalidatorFunc(nil), nil)
	require.NoError(t, err)
	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}

type invalidatorFunc func(ctx context.Context, c domain.Country) error

func (f invalidatorFunc) Invalidate(ctx context.Context, c domain.Country) error { return f(ctx, c) }
