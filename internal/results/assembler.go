// Package results assembles the labeled variable table from sampled points.
// The assembler trusts nothing about the fetched rows: counts are re-checked
// against the input points and every retained column is derived from the
// response keys, so a misbehaving upstream surfaces as a shape error instead
// of a silently misaligned table.
package results

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"bioclim/internal/config"
	"bioclim/internal/types"
)

// Fixed coordinate rows present in every result table, ahead of the
// variable rows.
const (
	RowLatitude  = "latitude"
	RowLongitude = "longitude"
)

// Assembler builds result tables according to the extract configuration.
type Assembler struct {
	bandPrefix string
	logger     *slog.Logger
}

// NewAssembler creates an Assembler. A nil logger falls back to slog.Default.
func NewAssembler(cfg config.ExtractConfig, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		bandPrefix: strings.ToLower(cfg.BandPrefix),
		logger:     logger,
	}
}

// ValidateShape checks that the label count matches the point count. The
// handler calls this before any remote fetch so a mismatched request never
// costs an upstream call.
func ValidateShape(pointCount, labelCount int) error {
	if pointCount != labelCount {
		return types.NewShapeMismatch(
			types.ErrCodeShapeLabelMismatch,
			fmt.Sprintf("the file contains %d points but %d labels were provided", pointCount, labelCount),
			pointCount, labelCount,
		)
	}
	return nil
}

// Assemble builds the final table: one column per label, one row per
// variable, with latitude and longitude rows first. The i-th label names the
// i-th point; the returned table is already transposed for export.
func (a *Assembler) Assemble(points []types.Point, labels []string, rows []types.AttributeRow) (types.Table, error) {
	if err := ValidateShape(len(points), len(labels)); err != nil {
		return types.Table{}, err
	}
	if len(rows) != len(points) {
		return types.Table{}, types.NewShapeMismatch(
			types.ErrCodeShapeAttributeMismatch,
			fmt.Sprintf("the platform returned %d attribute rows for %d points", len(rows), len(points)),
			len(points), len(rows),
		)
	}

	variables, err := a.variableColumns(rows)
	if err != nil {
		return types.Table{}, err
	}

	columns := make([]string, 0, len(variables)+2)
	columns = append(columns, RowLatitude, RowLongitude)
	columns = append(columns, variables...)

	wide := types.NewTable(append([]string(nil), labels...), columns)
	for i, p := range points {
		wide.Cells[i][0] = p.Lat
		wide.Cells[i][1] = p.Lon
		for j, name := range variables {
			v, ok := rows[i][name]
			if !ok {
				v = math.NaN()
			}
			wide.Cells[i][j+2] = v
		}
	}

	return wide.Transpose(), nil
}

// variableColumns selects and orders the variable columns. Keys containing
// the band prefix are retained; when none match, every key is kept (all
// values are numeric by construction). Catalog bands come first in catalog
// order, unknown keys after, lexicographically.
func (a *Assembler) variableColumns(rows []types.AttributeRow) ([]string, error) {
	seen := make(map[string]struct{})
	var matched, all []string
	for _, row := range rows {
		for k := range row {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			all = append(all, k)
			if strings.Contains(strings.ToLower(k), a.bandPrefix) {
				matched = append(matched, k)
			}
		}
	}

	cols := matched
	if len(cols) == 0 {
		if len(all) == 0 {
			return nil, types.NewAppError(
				types.ErrCodeShapeNoVariables,
				"the response contains no variable columns",
				nil,
			)
		}
		a.logger.Warn("no sampled keys match the band prefix, keeping all numeric keys",
			"band_prefix", a.bandPrefix,
			"key_count", len(all),
		)
		cols = all
	}

	sort.Slice(cols, func(i, j int) bool { return variableLess(cols[i], cols[j]) })
	return cols, nil
}

func variableLess(a, b string) bool {
	ai, aok := types.CatalogIndex(a)
	bi, bok := types.CatalogIndex(b)
	switch {
	case aok && bok:
		if ai != bi {
			return ai < bi
		}
		return a < b
	case aok:
		return true
	case bok:
		return false
	default:
		return a < b
	}
}

// NoDataLabels returns the labels of points whose variable cells are all
// missing. Points in the ocean or outside the dataset's coverage sample to
// nothing; callers surface these as warnings rather than errors.
func NoDataLabels(t types.Table) []string {
	var labels []string
	for j, label := range t.Columns {
		empty := true
		for i := 2; i < len(t.Index); i++ {
			if !math.IsNaN(t.Cells[i][j]) {
				empty = false
				break
			}
		}
		if empty && len(t.Index) > 2 {
			labels = append(labels, label)
		}
	}
	return labels
}
