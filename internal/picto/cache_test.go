package picto_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-n-ai/pai-qcm/internal/picto"
)

func TestFileStore_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	store := picto.NewFileStore(dir)

	entries := map[string]picto.Entry{
		"chat": {ID: 2470, URL: "https://static.test/2470.png", Score: 13.5, Tags: []string{"animal"}, Categories: []string{"pet"}, Keyword: "chat", Plural: "chats", Mode: picto.ModeStrict},
	}
	require.NoError(t, store.Save(t.Context(), "fr", entries))
	assert.FileExists(t, filepath.Join(dir, "arasaac_cache_fr.json"))

	got, err := store.Load(t.Context(), "fr")
	require.NoError(t, err)
	assert.Equal(t, entries, got)
}

func TestFileStore_MissingFile(t *testing.T) {
	got, err := picto.NewFileStore(t.TempDir()).Load(t.Context(), "fr")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFileStore_LegacyEntries(t *testing.T) {
	dir := t.TempDir()
	legacy := `{"chat": {"picto_id": 2470, "url": "u", "score": 13.5, "tags": ["animal"], "categories": ["pet"], "keyword": "chat", "plural": null}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "arasaac_cache_fr.json"), []byte(legacy), 0o644))

	got, err := picto.NewFileStore(dir).Load(t.Context(), "fr")
	require.NoError(t, err)
	require.Contains(t, got, "chat")
	assert.Equal(t, 2470, got["chat"].ID)
	assert.Equal(t, picto.ModeFuzzy, got["chat"].Mode)
	assert.Empty(t, got["chat"].Plural)
}

func TestCache_CorruptFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "arasaac_cache_fr.json"), []byte("{not json"), 0o644))

	c := picto.NewCache(picto.NewFileStore(dir))
	assert.Equal(t, 0, c.Len(t.Context(), "fr"))

	stored, err := c.Put(t.Context(), "fr", "chat", picto.Entry{ID: 1, Tags: []string{"animal"}, Categories: []string{"pet"}, Mode: picto.ModeFuzzy})
	require.NoError(t, err)
	assert.True(t, stored)

	// The rewrite replaced the corrupt file.
	data, err := os.ReadFile(filepath.Join(dir, "arasaac_cache_fr.json"))
	require.NoError(t, err)
	var decoded map[string]picto.Entry
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "chat")
}

func TestCache_PutRewritesWholeLanguage(t *testing.T) {
	store := picto.NewMemoryStore()
	c := picto.NewCache(store)
	ctx := t.Context()

	_, err := c.Put(ctx, "fr", "chat", picto.Entry{ID: 1, Mode: picto.ModeFuzzy})
	require.NoError(t, err)
	_, err = c.Put(ctx, "fr", "chien", picto.Entry{ID: 2, Mode: picto.ModeFuzzy})
	require.NoError(t, err)

	persisted, err := store.Load(ctx, "fr")
	require.NoError(t, err)
	assert.Len(t, persisted, 2)
	assert.Equal(t, 2, store.Saves())
}

func TestCache_FuzzyNeverReplacesStrict(t *testing.T) {
	c := picto.NewCache(picto.NewMemoryStore())
	ctx := t.Context()

	_, err := c.Put(ctx, "fr", "chat", picto.Entry{ID: 1, Mode: picto.ModeStrict})
	require.NoError(t, err)

	stored, err := c.Put(ctx, "fr", "chat", picto.Entry{ID: 99, Mode: picto.ModeFuzzy})
	require.NoError(t, err)
	assert.False(t, stored)

	got, _ := c.Get(ctx, "fr", "chat")
	assert.Equal(t, 1, got.ID)

	stored, err = c.Put(ctx, "fr", "chat", picto.Entry{ID: 2, Mode: picto.ModeStrict})
	require.NoError(t, err)
	assert.True(t, stored, "strict always replaces")
	got, _ = c.Get(ctx, "fr", "chat")
	assert.Equal(t, 2, got.ID)
}

func TestCache_LanguagesAreSeparate(t *testing.T) {
	c := picto.NewCache(picto.NewMemoryStore())
	_, err := c.Put(t.Context(), "fr", "chat", picto.Entry{ID: 1})
	require.NoError(t, err)

	_, ok := c.Get(t.Context(), "es", "chat")
	assert.False(t, ok)
}

func TestRedisStore_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := picto.NewRedisStore(client)
	ctx := t.Context()

	first := map[string]picto.Entry{
		"chat":  {ID: 1, Tags: []string{"animal"}, Mode: picto.ModeStrict},
		"chien": {ID: 2, Tags: []string{"animal"}, Mode: picto.ModeFuzzy},
	}
	require.NoError(t, store.Save(ctx, "fr", first))
	assert.True(t, mr.Exists("qcm:picto:fr"))

	got, err := store.Load(ctx, "fr")
	require.NoError(t, err)
	assert.Equal(t, first, got)

	// Save replaces the hash rather than merging into it.
	require.NoError(t, store.Save(ctx, "fr", map[string]picto.Entry{"lion": {ID: 3, Mode: picto.ModeFuzzy}}))
	got, err = store.Load(ctx, "fr")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Contains(t, got, "lion")
}

func TestRedisStore_SkipsBadFields(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	mr.HSet("qcm:picto:fr", "chat", `{"id": 1, "mode": "strict"}`)
	mr.HSet("qcm:picto:fr", "broken", `{`)

	got, err := picto.NewRedisStore(client).Load(t.Context(), "fr")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, picto.ModeStrict, got["chat"].Mode)
}

func TestRedisStore_EmptySave(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	mr.HSet("qcm:picto:fr", "chat", `{"id": 1}`)
	require.NoError(t, picto.NewRedisStore(client).Save(t.Context(), "fr", map[string]picto.Entry{}))
	assert.False(t, mr.Exists("qcm:picto:fr"))
}

// flakyStore fails its first Load.
type flakyStore struct {
	*picto.MemoryStore
	failed bool
}

func (s *flakyStore) Load(ctx context.Context, lang string) (map[string]picto.Entry, error) {
	if !s.failed {
		s.failed = true
		return nil, errors.New("connection refused")
	}
	return s.MemoryStore.Load(ctx, lang)
}

func TestCache_FailedLoadIsRetried(t *testing.T) {
	mem := picto.NewMemoryStore()
	require.NoError(t, mem.Save(t.Context(), "fr", map[string]picto.Entry{
		"chat": {ID: 1, Mode: picto.ModeStrict},
	}))
	saves := mem.Saves()
	c := picto.NewCache(&flakyStore{MemoryStore: mem})

	_, err := c.Put(t.Context(), "fr", "pomme", picto.Entry{ID: 7, Mode: picto.ModeStrict})
	require.Error(t, err)
	assert.Equal(t, saves, mem.Saves(), "no rewrite from an unloaded cache")

	got, ok := c.Get(t.Context(), "fr", "chat")
	require.True(t, ok, "second use loads the store")
	assert.Equal(t, 1, got.ID)
}

func newRedisStore(t *testing.T) (*miniredis.Miniredis, *picto.RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, picto.NewRedisStore(client)
}

func TestCache_CancelledLoadKeepsRedisEntries(t *testing.T) {
	mr, store := newRedisStore(t)
	for _, term := range []string{"chat", "chien", "lapin", "vache"} {
		mr.HSet("qcm:picto:fr", term, `{"id": 1, "mode": "strict"}`)
	}
	c := picto.NewCache(store)

	cancelled, cancel := context.WithCancel(t.Context())
	cancel()
	_, _ = c.Get(cancelled, "fr", "chat")

	stored, err := c.Put(t.Context(), "fr", "pomme", picto.Entry{ID: 7, Mode: picto.ModeStrict})
	require.NoError(t, err)
	assert.True(t, stored)

	keys, err := mr.HKeys("qcm:picto:fr")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"chat", "chien", "lapin", "vache", "pomme"}, keys)
}

func TestCache_InstancesShareRedis(t *testing.T) {
	mr, store := newRedisStore(t)
	mr.HSet("qcm:picto:fr", "chat", `{"id": 1, "mode": "strict"}`)
	a, b := picto.NewCache(store), picto.NewCache(store)
	ctx := t.Context()

	assert.Equal(t, 1, a.Len(ctx, "fr"))
	assert.Equal(t, 1, b.Len(ctx, "fr"))

	_, err := b.Put(ctx, "fr", "banane", picto.Entry{ID: 2, Mode: picto.ModeFuzzy})
	require.NoError(t, err)
	_, err = a.Put(ctx, "fr", "poire", picto.Entry{ID: 3, Mode: picto.ModeFuzzy})
	require.NoError(t, err)

	keys, err := mr.HKeys("qcm:picto:fr")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"chat", "banane", "poire"}, keys)
}

func TestRedisStore_PutEntryKeepsStrict(t *testing.T) {
	mr, store := newRedisStore(t)
	ctx := t.Context()
	mr.HSet("qcm:picto:fr", "chat", `{"id": 1, "mode": "strict"}`)

	stored, err := store.PutEntry(ctx, "fr", "chat", picto.Entry{ID: 99, Mode: picto.ModeFuzzy})
	require.NoError(t, err)
	assert.False(t, stored)

	stored, err = store.PutEntry(ctx, "fr", "chat", picto.Entry{ID: 2, Mode: picto.ModeStrict})
	require.NoError(t, err)
	assert.True(t, stored)

	got, err := store.Load(ctx, "fr")
	require.NoError(t, err)
	assert.Equal(t, 2, got["chat"].ID)
}
