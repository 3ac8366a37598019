package computed

import (
	"fmt"

	"github.com/leapstack-labs/cruiseqc/internal/dataset"
)

// datasetEnv exposes table columns to the sandbox, hiding the column being computed.
type datasetEnv struct {
	table *dataset.Table
	hide  string
}

func (e *datasetEnv) Len() int { return e.table.Len() }

func (e *datasetEnv) HasColumn(name string) bool {
	return name != e.hide && e.table.HasColumn(name)
}

func (e *datasetEnv) Column(name string) ([]float64, error) {
	col, ok := e.table.Column(name)
	if !ok || name == e.hide {
		return nil, fmt.Errorf("%w: %s", dataset.ErrUnknownColumn, name)
	}
	values, ok := col.Float64s()
	if !ok {
		return nil, fmt.Errorf("column %s is not numeric", name)
	}
	return values, nil
}
