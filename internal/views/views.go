// Package views keeps the plot layout of a project: named tabs holding graphs that
// each plot one column against another. Removing a column drops every graph that
// uses it, and tabs left without graphs disappear.
package views

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"
)

// DocumentKey is the storage key of the layout document.
const DocumentKey = "qc_plot_tabs"

// Graph plots column Y against column X.
type Graph struct {
	Title string `json:"title"`
	X     string `json:"x"`
	Y     string `json:"y"`
}

// Uses reports whether the graph plots any of columns.
func (g Graph) Uses(columns ...string) bool {
	return slices.Contains(columns, g.X) || slices.Contains(columns, g.Y)
}

// Tabs maps a tab name to its graphs.
type Tabs map[string][]Graph

// Clone returns a deep copy of t.
func (t Tabs) Clone() Tabs {
	out := make(Tabs, len(t))
	for name, graphs := range t {
		out[name] = slices.Clone(graphs)
	}
	return out
}

// Names returns the tab names, sorted.
func (t Tabs) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Store is the document storage the layout is persisted in.
type Store interface {
	ReadJSON(key string, v any) (bool, error)
	WriteJSON(key string, v any) error
}

// Manager owns the plot layout. A nil store keeps the layout in memory only.
type Manager struct {
	store  Store
	logger *slog.Logger
	tabs   Tabs
}

// New loads the layout from store.
func New(store Store, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	m := &Manager{store: store, logger: logger, tabs: Tabs{}}
	if store == nil {
		return m, nil
	}
	var tabs Tabs
	found, err := store.ReadJSON(DocumentKey, &tabs)
	if err != nil {
		return nil, fmt.Errorf("failed to load plot tabs: %w", err)
	}
	if found && tabs != nil {
		m.tabs = tabs
	}
	return m, nil
}

// Tabs returns a copy of the layout.
func (m *Manager) Tabs() Tabs {
	return m.tabs.Clone()
}

// AddGraph appends a graph to tab, creating the tab if needed.
func (m *Manager) AddGraph(tab string, g Graph) error {
	if tab == "" {
		return fmt.Errorf("tab name is required")
	}
	if g.X == "" || g.Y == "" {
		return fmt.Errorf("graph %q needs both an x and a y column", g.Title)
	}
	next := m.tabs.Clone()
	next[tab] = append(next[tab], g)
	return m.commit(next)
}

// RemoveTab deletes a tab and its graphs.
func (m *Manager) RemoveTab(tab string) error {
	if _, ok := m.tabs[tab]; !ok {
		return nil
	}
	next := m.tabs.Clone()
	delete(next, tab)
	return m.commit(next)
}

// Clear forgets the layout in memory. The stored layout is left untouched and
// is picked up again by the next Manager created on the same store.
func (m *Manager) Clear() {
	m.tabs = Tabs{}
}

// PlottedColumns returns every column used by a graph, sorted.
func (m *Manager) PlottedColumns() []string {
	seen := make(map[string]bool)
	for _, graphs := range m.tabs {
		for _, g := range graphs {
			seen[g.X] = true
			seen[g.Y] = true
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// RemoveColumnsFromViews drops every graph plotting one of columns and then every
// tab left empty.
func (m *Manager) RemoveColumnsFromViews(columns []string) error {
	if len(columns) == 0 {
		return nil
	}
	next := make(Tabs, len(m.tabs))
	dropped := 0
	for name, graphs := range m.tabs {
		kept := slices.DeleteFunc(slices.Clone(graphs), func(g Graph) bool { return g.Uses(columns...) })
		dropped += len(graphs) - len(kept)
		if len(kept) > 0 {
			next[name] = kept
		}
	}
	if dropped == 0 {
		return nil
	}
	m.logger.Info("pruned plots",
		slog.Any("columns", columns),
		slog.Int("graphs", dropped),
		slog.Int("tabs", len(m.tabs)-len(next)),
	)
	return m.commit(next)
}

func (m *Manager) commit(next Tabs) error {
	if m.store != nil {
		if err := m.store.WriteJSON(DocumentKey, next); err != nil {
			return fmt.Errorf("failed to save plot tabs: %w", err)
		}
	}
	m.tabs = next
	return nil
}
