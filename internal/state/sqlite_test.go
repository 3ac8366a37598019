package state

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/cruiseqc/internal/dataset"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore()
	require.NoError(t, store.Open(MemoryPath))
	store.SetTableDir(t.TempDir())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_Migrate(t *testing.T) {
	store := setupTestStore(t)

	version, err := store.GetMigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	// running again is a no-op
	require.NoError(t, store.Migrate())

	for _, table := range []string{"documents", "moves", "source_hashes"} {
		rows, err := store.db.Query("SELECT 1 FROM " + table + " LIMIT 1")
		require.NoError(t, err, table)
		_ = rows.Close()
	}
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore()

	_, err := store.ReadJSON(KeyColumns, &struct{}{})
	assert.Error(t, err)
	assert.Error(t, store.WriteJSON(KeyColumns, 1))
	assert.Error(t, store.AppendMoves([]dataset.Move{{ID: "x"}}))
	_, err = store.ListMoves()
	assert.Error(t, err)
	_, err = store.GetSourceHash("a")
	assert.Error(t, err)
	assert.NoError(t, store.Close())
}

func TestSQLiteStore_Documents(t *testing.T) {
	store := setupTestStore(t)

	type doc struct {
		Names []string `json:"names"`
	}

	var got doc
	found, err := store.ReadJSON(KeyComputed, &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.WriteJSON(KeyComputed, doc{Names: []string{"A", "B"}}))
	found, err = store.ReadJSON(KeyComputed, &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"A", "B"}, got.Names)

	require.NoError(t, store.WriteJSON(KeyComputed, doc{Names: []string{"C"}}))
	got = doc{}
	_, err = store.ReadJSON(KeyComputed, &got)
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, got.Names)

	require.NoError(t, store.DeleteJSON(KeyComputed))
	found, err = store.ReadJSON(KeyComputed, &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLiteStore_DocumentDecodeError(t *testing.T) {
	store := setupTestStore(t)
	require.NoError(t, store.WriteJSON(KeyPlotTabs, "not an object"))

	var target map[string]int
	found, err := store.ReadJSON(KeyPlotTabs, &target)
	assert.True(t, found)
	assert.Error(t, err)
}

func TestSQLiteStore_Moves(t *testing.T) {
	store := setupTestStore(t)
	date := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	moves := []dataset.Move{
		{ID: "m1", Date: date, Action: dataset.ActionAddFlagColumn, Param: "SALNTY_FLAG_W", Value: "2", Description: "created"},
		{ID: "m2", Date: date.Add(time.Minute), Action: dataset.ActionQCUpdate, Station: "1", Cast: "1", Bottle: "3",
			Latitude: "-10.5", Longitude: "20.25", Param: "SALNTY_FLAG_W", Value: "3", Description: "updated"},
	}
	require.NoError(t, store.AppendMoves(moves))

	// the full log can be handed over again, only new entries are stored
	more := append(moves, dataset.Move{ID: "m3", Date: date.Add(2 * time.Minute), Action: dataset.ActionDelRows, Description: "rows"})
	require.NoError(t, store.AppendMoves(more))

	got, err := store.ListMoves()
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"m1", "m2", "m3"}, []string{got[0].ID, got[1].ID, got[2].ID})
	assert.True(t, got[1].Date.Equal(moves[1].Date))
	assert.Equal(t, moves[1].Station, got[1].Station)
	assert.Equal(t, moves[1].Longitude, got[1].Longitude)
	assert.Equal(t, moves[1].Description, got[1].Description)

	require.NoError(t, store.ClearMoves())
	got, err = store.ListMoves()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLiteStore_SourceHashes(t *testing.T) {
	store := setupTestStore(t)

	hash, err := store.GetSourceHash("original.csv")
	require.NoError(t, err)
	assert.Empty(t, hash)

	require.NoError(t, store.SetSourceHash("original.csv", "abc"))
	require.NoError(t, store.SetSourceHash("original.csv", "def"))
	hash, err = store.GetSourceHash("original.csv")
	require.NoError(t, err)
	assert.Equal(t, "def", hash)

	require.NoError(t, store.DeleteSourceHash("original.csv"))
	hash, err = store.GetSourceHash("original.csv")
	require.NoError(t, err)
	assert.Empty(t, hash)
}

func TestSQLiteStore_Tables(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.ReadTable("data.csv")
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	records := [][]string{
		{"STNNBR", "SALNTY", "COMMENT"},
		{"1", "34.5", "has, comma"},
		{"2", "", `quote "x"`},
	}
	require.NoError(t, store.WriteTable("data.csv", records))
	got, err := store.ReadTable("data.csv")
	require.NoError(t, err)
	assert.Equal(t, records, got)

	assert.Error(t, store.WriteTable("../escape.csv", records))
	assert.Error(t, store.WriteTable("", records))
}

func TestSQLiteStore_FileBacked(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.db")

	store := NewSQLiteStore()
	require.NoError(t, store.Open(path))
	require.NoError(t, store.WriteJSON(KeyProjectInfo, map[string]string{"name": "cruise"}))
	require.NoError(t, store.WriteTable("data.csv", [][]string{{"A"}, {"1"}}))
	require.NoError(t, store.Close())

	reopened := NewSQLiteStore()
	require.NoError(t, reopened.Open(path))
	defer func() { _ = reopened.Close() }()

	var info map[string]string
	found, err := reopened.ReadJSON(KeyProjectInfo, &info)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "cruise", info["name"])

	records, err := reopened.ReadTable("data.csv")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"A"}, {"1"}}, records)
	assert.FileExists(t, filepath.Join(dir, "data.csv"))
}
