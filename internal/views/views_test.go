package views

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/cruiseqc/internal/testutil"
)

type memStore struct {
	docs     map[string][]byte
	writeErr error
}

func newMemStore() *memStore {
	return &memStore{docs: make(map[string][]byte)}
}

func (s *memStore) ReadJSON(key string, v any) (bool, error) {
	data, ok := s.docs[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, v)
}

func (s *memStore) WriteJSON(key string, v any) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.docs[key] = data
	return nil
}

func sampleTabs() Tabs {
	return Tabs{
		"salinity": {
			{Title: "sal vs pres", X: "SALNTY", Y: "CTDPRS"},
			{Title: "sal vs ctd", X: "SALNTY", Y: "CTDSAL"},
		},
		"derived": {
			{Title: "density", X: "SIGMA0", Y: "CTDPRS"},
		},
	}
}

func TestRemoveColumnsFromViews(t *testing.T) {
	tests := []struct {
		name    string
		remove  []string
		want    Tabs
		plotted []string
	}{
		{
			name:    "nothing plotted",
			remove:  []string{"OXYGEN"},
			want:    sampleTabs(),
			plotted: []string{"CTDPRS", "CTDSAL", "SALNTY", "SIGMA0"},
		},
		{
			name:   "graph dropped tab kept",
			remove: []string{"CTDSAL"},
			want: Tabs{
				"salinity": {{Title: "sal vs pres", X: "SALNTY", Y: "CTDPRS"}},
				"derived":  {{Title: "density", X: "SIGMA0", Y: "CTDPRS"}},
			},
			plotted: []string{"CTDPRS", "SALNTY", "SIGMA0"},
		},
		{
			name:   "empty tab dropped",
			remove: []string{"SIGMA0"},
			want: Tabs{
				"salinity": sampleTabs()["salinity"],
			},
			plotted: []string{"CTDPRS", "CTDSAL", "SALNTY"},
		},
		{
			name:    "everything",
			remove:  []string{"CTDPRS", "SALNTY"},
			want:    Tabs{},
			plotted: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			require.NoError(t, store.WriteJSON(DocumentKey, sampleTabs()))

			m, err := New(store, testutil.NewTestLogger(t))
			require.NoError(t, err)
			require.NoError(t, m.RemoveColumnsFromViews(tt.remove))

			assert.Equal(t, tt.want, m.Tabs())
			assert.Equal(t, tt.plotted, m.PlottedColumns())

			reloaded, err := New(store, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, reloaded.Tabs())
		})
	}
}

func TestAddGraph(t *testing.T) {
	m, err := New(nil, nil)
	require.NoError(t, err)

	require.NoError(t, m.AddGraph("main", Graph{Title: "t", X: "SALNTY", Y: "CTDPRS"}))
	assert.Equal(t, []string{"main"}, m.Tabs().Names())
	assert.Error(t, m.AddGraph("", Graph{X: "A", Y: "B"}))
	assert.Error(t, m.AddGraph("main", Graph{X: "A"}))

	require.NoError(t, m.RemoveTab("main"))
	assert.Empty(t, m.PlottedColumns())
}

func TestWriteFailureKeepsLayout(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.WriteJSON(DocumentKey, sampleTabs()))
	m, err := New(store, nil)
	require.NoError(t, err)

	store.writeErr = errors.New("disk full")
	assert.Error(t, m.RemoveColumnsFromViews([]string{"SIGMA0"}))
	assert.Equal(t, sampleTabs(), m.Tabs())
}

func TestTabsCloneIsDeep(t *testing.T) {
	tabs := sampleTabs()
	c := tabs.Clone()
	c["salinity"][0].X = "CHANGED"
	assert.Equal(t, "SALNTY", tabs["salinity"][0].X)
}

func TestClearKeepsStoredLayout(t *testing.T) {
	store := newMemStore()
	m, err := New(store, nil)
	require.NoError(t, err)
	require.NoError(t, m.AddGraph("salinity", Graph{Title: "s", X: "SALNTY", Y: "CTDPRS"}))

	m.Clear()
	assert.Empty(t, m.PlottedColumns())

	again, err := New(store, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"CTDPRS", "SALNTY"}, again.PlottedColumns())
}
