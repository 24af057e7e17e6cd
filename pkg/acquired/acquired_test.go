package acquired

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gpbackup/pkg/config"
	"gpbackup/pkg/logger"
	"gpbackup/pkg/photos"
)

func descriptors(ids ...string) []photos.MediaDescriptor {
	out := make([]photos.MediaDescriptor, 0, len(ids))
	for _, id := range ids {
		out = append(out, photos.MediaDescriptor{ID: id, Filename: id + ".jpg"})
	}
	return out
}

func TestNewSetDropsDuplicates(t *testing.T) {
	s := NewSet([]string{"a", "b", "a", "c", "b"})
	assert.Equal(t, []string{"a", "b", "c"}, s.IDs())
	assert.Equal(t, 3, s.Len())
	assert.True(t, s.Contains("c"))
	assert.False(t, s.Contains("d"))
}

func TestNilSet(t *testing.T) {
	var s *Set
	assert.False(t, s.Contains("a"))
	assert.Equal(t, 0, s.Len())
	assert.Nil(t, s.IDs())
}

func TestFilterUnacquired(t *testing.T) {
	set := NewSet([]string{"id1", "id3"})
	got := FilterUnacquired(descriptors("id1", "id2", "id3", "id4"), set)
	assert.Equal(t, []string{"id2", "id4"}, photos.IDs(got))

	assert.Empty(t, FilterUnacquired(descriptors("id1"), set))
	assert.Equal(t, []string{"x"}, photos.IDs(FilterUnacquired(descriptors("x"), NewSet(nil))))
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name     string
		newIDs   []string
		previous []string
		want     []string
	}{
		{"new before previous", []string{"id2"}, []string{"id1"}, []string{"id2", "id1"}},
		{"empty new", nil, []string{"id1", "id2"}, []string{"id1", "id2"}},
		{"empty previous", []string{"a", "b"}, nil, []string{"a", "b"}},
		{"duplicates dropped", []string{"a", "b", "a"}, []string{"b", "c"}, []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Merge(tt.newIDs, NewSet(tt.previous)))
		})
	}
}

func TestMergeMembership(t *testing.T) {
	newIDs := []string{"n1", "n2", "p2"}
	previous := NewSet([]string{"p1", "p2", "p3"})

	merged := NewSet(Merge(newIDs, previous))
	for _, id := range append(newIDs, previous.IDs()...) {
		assert.True(t, merged.Contains(id), "missing %s", id)
	}
	assert.Equal(t, 5, merged.Len())
}

func TestFilterAfterMergeIsIdempotent(t *testing.T) {
	remote := descriptors("id1", "id2")
	previous := NewSet([]string{"id1"})

	pending := FilterUnacquired(remote, previous)
	require.Equal(t, []string{"id2"}, photos.IDs(pending))

	next := NewSet(Merge(photos.IDs(pending), previous))
	assert.Empty(t, FilterUnacquired(remote, next))
}

func TestJSONStoreMissingFile(t *testing.T) {
	store := NewJSONStore(filepath.Join(t.TempDir(), "aquired_list.json"), logger.NewNopLogger())

	set, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
}

func TestJSONStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "aquired_list.json")
	store := NewJSONStore(path, logger.NewNopLogger())

	require.NoError(t, store.Persist(context.Background(), []string{"id2", "id1"}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk []string
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Equal(t, []string{"id2", "id1"}, onDisk)

	set, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"id2", "id1"}, set.IDs())

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temporary file must not be left behind")
}

func TestJSONStorePersistEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aquired_list.json")
	store := NewJSONStore(path, logger.NewNopLogger())

	require.NoError(t, store.Persist(context.Background(), nil))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(raw))
}

func TestJSONStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aquired_list.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := NewJSONStore(path, logger.NewNopLogger()).Load(context.Background())
	assert.Error(t, err)
}

func TestJSONStoreBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aquired_list.json")
	store := NewJSONStore(path, logger.NewNopLogger())
	store.SetBackupBeforeWrite(true)

	require.NoError(t, store.Persist(context.Background(), []string{"id1"}))
	_, err := os.Stat(path + ".backup")
	assert.True(t, os.IsNotExist(err), "no backup when nothing existed")

	require.NoError(t, store.Persist(context.Background(), []string{"id2", "id1"}))

	raw, err := os.ReadFile(path + ".backup")
	require.NoError(t, err)
	var previous []string
	require.NoError(t, json.Unmarshal(raw, &previous))
	assert.Equal(t, []string{"id1"}, previous)
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "acquired.db")
	store, err := NewSQLiteStore(path, logger.NewNopLogger())
	require.NoError(t, err)
	defer store.Close()

	set, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())

	require.NoError(t, store.Persist(context.Background(), []string{"id3", "id1", "id2"}))
	set, err = store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"id3", "id1", "id2"}, set.IDs())

	require.NoError(t, store.Persist(context.Background(), []string{"id4", "id3"}))
	set, err = store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"id4", "id3"}, set.IDs())
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "acquired.db")
	store, err := NewSQLiteStore(path, logger.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, store.Persist(context.Background(), []string{"a", "b"}))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path, logger.NewNopLogger())
	require.NoError(t, err)
	defer reopened.Close()

	set, err := reopened.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, set.IDs())
}

func TestNewStore(t *testing.T) {
	dir := t.TempDir()

	s, err := NewStore(config.AcquiredConfig{Backend: "json", File: filepath.Join(dir, "a.json")}, logger.NewNopLogger())
	require.NoError(t, err)
	assert.IsType(t, &JSONStore{}, s)

	s, err = NewStore(config.AcquiredConfig{Backend: "sqlite", File: filepath.Join(dir, "a.db")}, logger.NewNopLogger())
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	s.Close()

	_, err = NewStore(config.AcquiredConfig{Backend: "csv"}, logger.NewNopLogger())
	assert.Error(t, err)
}
