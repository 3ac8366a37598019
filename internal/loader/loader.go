// Package loader turns a raw WHP-exchange or CSV file into a validated dataset:
// column names are normalized, required columns synthesized, cells typed, flag
// columns paired and validated, and every row keyed by its identity hash.
package loader

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/leapstack-labs/cruiseqc/internal/catalog"
	"github.com/leapstack-labs/cruiseqc/internal/dataset"
)

// Config controls column classification.
type Config struct {
	RequiredColumns []string `koanf:"required_columns"`
	NonQCParams     []string `koanf:"non_qc_params"`
	BasicParams     []string `koanf:"basic_params"`
	SynthesizeBasic bool     `koanf:"synthesize_basic"`
}

// DefaultConfig returns the standard column sets.
func DefaultConfig() Config {
	return Config{
		RequiredColumns: slices.Clone(catalog.RequiredColumns),
		NonQCParams:     slices.Clone(catalog.NonQCParams),
		BasicParams:     slices.Clone(catalog.BasicParams),
		SynthesizeBasic: true,
	}
}

// Loader reads source files into datasets.
type Loader struct {
	cfg    Config
	logger *slog.Logger
	scope  Scope
}

// New creates a loader. Empty column sets fall back to the defaults.
func New(cfg Config, logger *slog.Logger) *Loader {
	def := DefaultConfig()
	if len(cfg.RequiredColumns) == 0 {
		cfg.RequiredColumns = def.RequiredColumns
	}
	if cfg.NonQCParams == nil {
		cfg.NonQCParams = def.NonQCParams
	}
	if cfg.BasicParams == nil {
		cfg.BasicParams = def.BasicParams
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{cfg: cfg, logger: logger, scope: ScopeFreshLoad}
}

// Load reads the file at path. Validation failures carry scope as their rollback hint.
func (l *Loader) Load(path string, scope Scope) (*dataset.Dataset, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is chosen by the user
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return l.parse(string(data), path, scope)
}

// Read loads a dataset from r; name is recorded as the source path.
func (l *Loader) Read(r io.Reader, name string, scope Scope) (*dataset.Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return l.parse(string(data), name, scope)
}

// rawColumn is one column of text cells with its source details.
type rawColumn struct {
	name     string
	external string
	unit     string
	cells    []string
	created  bool
}

func (l *Loader) parse(raw, path string, scope Scope) (*dataset.Dataset, error) {
	run := *l
	run.scope = scope
	ds, err := run.build(raw, path)
	if err != nil {
		l.logger.Warn("dataset rejected", slog.String("path", path), slog.String("scope", string(scope)), slog.String("error", err.Error()))
		return nil, err
	}
	l.logger.Info("dataset loaded",
		slog.String("path", path),
		slog.String("format", string(ds.Source.Format)),
		slog.Int("rows", ds.Table.Len()),
		slog.Int("columns", ds.Catalog.Len()),
	)
	return ds, nil
}

func (l *Loader) build(raw, path string) (*dataset.Dataset, error) {
	rf, err := l.parseRaw(raw)
	if err != nil {
		return nil, err
	}
	names, err := l.normalizeNames(rf.header)
	if err != nil {
		return nil, err
	}

	n := len(rf.rows)
	cols := make([]*rawColumn, len(names))
	for j, name := range names {
		rc := &rawColumn{name: name, external: rf.header[j], cells: make([]string, n)}
		if j < len(rf.units) {
			rc.unit = rf.units[j]
		}
		for i, row := range rf.rows {
			if !dataset.IsNullSentinel(row[j]) {
				rc.cells[i] = row[j]
			}
		}
		cols[j] = rc
	}

	cols = synthesizeBottle(cols, n)
	if cols, err = l.synthesizeDate(cols, n, rf.rowLines); err != nil {
		return nil, err
	}
	if err := l.checkRequired(cols); err != nil {
		return nil, err
	}

	ds, err := l.assemble(cols, n)
	if err != nil {
		return nil, err
	}
	ds.Source = dataset.Source{
		Path:      path,
		Format:    rf.format,
		FirstLine: rf.firstLine,
		Metadata:  rf.metadata,
	}

	if l.cfg.SynthesizeBasic {
		if err := l.synthesizeBasic(ds); err != nil {
			return nil, err
		}
	}
	if _, err := ds.EnsureFlagColumns(); err != nil {
		return nil, err
	}
	if err := l.validateFlags(ds, rf.rowLines); err != nil {
		return nil, err
	}
	dups, err := AssignIDs(ds)
	if err != nil {
		return nil, err
	}
	if len(dups) > 0 {
		lines := make([]int, len(dups))
		for i, d := range dups {
			lines[i] = rf.rowLines[d]
		}
		l.logger.Warn("rows repeat an identity tuple", slog.Any("lines", lines))
	}
	ds.RefreshEmptyRoles()
	return ds, nil
}

func findColumn(cols []*rawColumn, name string) *rawColumn {
	for _, c := range cols {
		if c.name == name {
			return c
		}
	}
	return nil
}

// synthesizeBottle makes sure both BTLNBR and SAMPNO exist, copying one from the
// other or numbering rows from zero when both are absent.
func synthesizeBottle(cols []*rawColumn, n int) []*rawColumn {
	btl, samp := findColumn(cols, "BTLNBR"), findColumn(cols, "SAMPNO")
	switch {
	case btl != nil && samp != nil:
		return cols
	case btl != nil:
		return append(cols, &rawColumn{name: "SAMPNO", external: "SAMPNO", cells: slices.Clone(btl.cells), created: true})
	case samp != nil:
		return append(cols, &rawColumn{name: "BTLNBR", external: "BTLNBR", cells: slices.Clone(samp.cells), created: true})
	}
	seq := make([]string, n)
	for i := range seq {
		seq[i] = strconv.Itoa(i)
	}
	return append(cols,
		&rawColumn{name: "BTLNBR", external: "BTLNBR", cells: seq, created: true},
		&rawColumn{name: "SAMPNO", external: "SAMPNO", cells: slices.Clone(seq), created: true},
	)
}

var dateSources = [][3]string{
	{"YEAR", "MONTH", "DAY"},
	{"DATE_YY", "DATE_MM", "DATE_DD"},
}

// synthesizeDate derives DATE as YYYYMMDD when it is absent.
func (l *Loader) synthesizeDate(cols []*rawColumn, n int, lines []int) ([]*rawColumn, error) {
	if findColumn(cols, "DATE") != nil {
		return cols, nil
	}
	for _, src := range dateSources {
		y, m, d := findColumn(cols, src[0]), findColumn(cols, src[1]), findColumn(cols, src[2])
		if y == nil || m == nil || d == nil {
			continue
		}
		cells := make([]string, n)
		var bad []int
		for i := range cells {
			yy, ok1 := wholeNumber(y.cells[i])
			mm, ok2 := wholeNumber(m.cells[i])
			dd, ok3 := wholeNumber(d.cells[i])
			if !ok1 || !ok2 || !ok3 || mm < 1 || mm > 12 || dd < 1 || dd > 31 {
				bad = append(bad, lines[i])
				continue
			}
			cells[i] = fmt.Sprintf("%04d%02d%02d", yy, mm, dd)
		}
		if len(bad) > 0 {
			return nil, l.invalid([]string{"DATE"}, bad, "DATE could not be derived from %s, %s and %s", src[0], src[1], src[2])
		}
		l.logger.Debug("synthesized DATE", slog.String("from", src[0]))
		return append(cols, &rawColumn{name: "DATE", external: "DATE", cells: cells, created: true}), nil
	}
	return cols, nil
}

func wholeNumber(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int64(f)) {
		return 0, false
	}
	return int64(f), true
}

func (l *Loader) checkRequired(cols []*rawColumn) error {
	var missing []string
	for _, req := range l.cfg.RequiredColumns {
		if findColumn(cols, req) == nil {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		return l.invalid(missing, nil, "Missing required columns in the file: [%s]", strings.Join(missing, ", "))
	}
	return nil
}

func (l *Loader) roles(name string) []catalog.Role {
	switch {
	case catalog.IsFlagName(name):
		return []catalog.Role{catalog.RoleFlag}
	case slices.Contains(l.cfg.RequiredColumns, name), slices.Contains(catalog.OptionalRequired, name):
		return []catalog.Role{catalog.RoleRequired}
	case slices.Contains(l.cfg.NonQCParams, name), name == "SAMPNO":
		return []catalog.Role{catalog.RoleNonQC}
	default:
		return []catalog.Role{catalog.RoleParam}
	}
}

// assemble types every raw column and builds the table and catalog.
func (l *Loader) assemble(cols []*rawColumn, n int) (*dataset.Dataset, error) {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = strconv.Itoa(i)
	}
	tbl := dataset.NewTable()
	if err := tbl.SetIDs(ids); err != nil {
		return nil, err
	}
	cat := catalog.New(tbl)

	for _, rc := range cols {
		inf := inferColumn(rc.name, rc.cells)
		if err := tbl.AddColumn(buildColumn(rc.name, rc.cells, inf.kind)); err != nil {
			return nil, l.invalid([]string{rc.name}, nil, "%v", err)
		}
		roles := l.roles(rc.name)
		if rc.created {
			roles = append(roles, catalog.RoleCreated)
		}
		err := cat.AddColumn(rc.name, catalog.ColumnMeta{
			ExternalName: rc.external,
			Roles:        roles,
			Unit:         rc.unit,
			Precision:    inf.precision,
			DataType:     inf.dataType,
			Export:       true,
		})
		if err != nil {
			return nil, l.invalid([]string{rc.name}, nil, "%v", err)
		}
	}
	return dataset.New(tbl, cat), nil
}

// synthesizeBasic adds every missing basic parameter as an empty column, with a
// flag column of missing values for QC-able ones. Neither is exported.
func (l *Loader) synthesizeBasic(ds *dataset.Dataset) error {
	n := ds.Table.Len()
	for _, p := range l.cfg.BasicParams {
		if ds.Table.HasColumn(p) {
			continue
		}
		roles := append(l.roles(p), catalog.RoleBasic, catalog.RoleCreated, catalog.RoleEmpty)
		err := ds.AddColumn(dataset.NewColumn(p, dataset.KindFloat, n), catalog.ColumnMeta{
			ExternalName: p,
			Roles:        roles,
			DataType:     catalog.TypeFloat,
		})
		if err != nil {
			return err
		}
		flag := catalog.FlagName(p)
		if !ds.Catalog.NeedsFlag(p) || ds.Table.HasColumn(flag) {
			continue
		}
		err = ds.AddColumn(dataset.NewFilledColumn(flag, dataset.KindInt, n, dataset.Int(catalog.FlagMissing)), catalog.ColumnMeta{
			ExternalName: flag,
			Roles:        []catalog.Role{catalog.RoleFlag, catalog.RoleBasic, catalog.RoleCreated, catalog.RoleEmpty},
			Precision:    catalog.Precision(0),
			DataType:     catalog.TypeInteger,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// validateFlags forces the missing flag wherever the parameter is null and rejects
// null or out of range flags on measured values. Flag columns end up as integers.
func (l *Loader) validateFlags(ds *dataset.Dataset, lines []int) error {
	var badCols []string
	var badRows []int
	forced := 0

	for _, flag := range ds.ColumnsByRole(false, catalog.RoleFlag) {
		param, ok := ds.Table.Column(catalog.ParamName(flag))
		if !ok {
			continue
		}
		fcol, _ := ds.Table.Column(flag)
		out := dataset.NewColumn(flag, dataset.KindInt, fcol.Len())
		var bad []int
		for i := 0; i < fcol.Len(); i++ {
			if param.Get(i).IsNull() {
				if v, ok := flagValue(fcol.Get(i)); !ok || v != catalog.FlagMissing {
					forced++
				}
				out.Set(i, dataset.Int(catalog.FlagMissing))
				continue
			}
			v, ok := flagValue(fcol.Get(i))
			if !ok {
				bad = append(bad, lineOf(lines, i))
				continue
			}
			out.Set(i, dataset.Int(v))
		}
		if len(bad) > 0 {
			badCols = append(badCols, flag)
			badRows = append(badRows, bad...)
			continue
		}
		if err := ds.Table.ReplaceColumn(out); err != nil {
			return err
		}
		if meta, ok := ds.Catalog.Get(flag); ok {
			meta.DataType = catalog.TypeInteger
			meta.Precision = catalog.Precision(0)
		}
	}

	if len(badCols) > 0 {
		slices.Sort(badRows)
		return l.invalid(badCols, slices.Compact(badRows), "Invalid flag values: flags must be integers between %d and %d", catalog.FlagMin, catalog.FlagMax)
	}
	if forced > 0 {
		l.logger.Debug("forced missing flags on null parameters", slog.Int("cells", forced))
	}
	return nil
}

func lineOf(lines []int, i int) int {
	if i < len(lines) {
		return lines[i]
	}
	return i + 1
}

func flagValue(v dataset.Value) (int64, bool) {
	if v.IsNull() {
		return 0, false
	}
	var i int64
	switch v.Kind {
	case dataset.KindInt:
		i = v.Int
	default:
		f, ok := v.Float64()
		if !ok || f != float64(int64(f)) {
			return 0, false
		}
		i = int64(f)
	}
	return i, catalog.ValidFlag(i)
}

// Restore rebuilds a dataset from working-copy records and a saved catalog.
func Restore(records [][]string, cat *catalog.Catalog, scope Scope) (*dataset.Dataset, error) {
	kinds := make(map[string]dataset.Kind, cat.Len())
	for _, name := range cat.Names() {
		meta, _ := cat.Get(name)
		kinds[name] = dataset.KindForType(meta.DataType)
	}
	tbl, err := dataset.TableFromRecords(records, kinds)
	if err != nil {
		return nil, &ValidationError{Scope: scope, Msg: err.Error()}
	}
	ds := dataset.New(tbl, cat)
	if _, err := AssignIDs(ds); err != nil {
		return nil, &ValidationError{Scope: scope, Msg: err.Error()}
	}
	return ds, nil
}
