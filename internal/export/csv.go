// Package export renders result tables for download. The CSV dialect is
// fixed: semicolon separators with comma decimals, the convention the
// spreadsheet tools of the service's users expect. Encoding is
// deterministic: the same table always produces identical bytes.
package export

import (
	"bytes"
	"encoding/csv"
	"math"
	"strconv"
	"strings"
	"time"

	"bioclim/internal/types"
)

// ContentType is the MIME type served with encoded CSV bodies.
const ContentType = "text/csv; charset=utf-8"

const filenameTimeLayout = "20060102_150405"

// EncodeCSV encodes a table as semicolon-separated CSV with comma decimals.
// The first header cell is empty, then the column labels; every following
// record starts with the row's index label. NaN cells render as empty
// fields.
func EncodeCSV(t types.Table) ([]byte, error) {
	if len(t.Cells) != len(t.Index) {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"the result table is not rectangular",
			nil,
		)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = ';'

	header := make([]string, 0, len(t.Columns)+1)
	header = append(header, "")
	header = append(header, t.Columns...)
	if err := w.Write(header); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalEncoding, "failed to encode the result table", err)
	}

	record := make([]string, 0, len(t.Columns)+1)
	for i, label := range t.Index {
		if len(t.Cells[i]) != len(t.Columns) {
			return nil, types.NewAppError(
				types.ErrCodeInternalUnexpected,
				"the result table is not rectangular",
				nil,
			)
		}
		record = record[:0]
		record = append(record, label)
		for _, v := range t.Cells[i] {
			record = append(record, formatCell(v))
		}
		if err := w.Write(record); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalEncoding, "failed to encode the result table", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalEncoding, "failed to encode the result table", err)
	}
	return buf.Bytes(), nil
}

// formatCell renders a float with minimal digits and a comma decimal mark.
func formatCell(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strings.ReplaceAll(strconv.FormatFloat(v, 'f', -1, 64), ".", ",")
}

// SuggestedFilename names a download after the moment of extraction. The
// timestamp is the only non-deterministic part of an export and it lives
// only in the filename, never in the CSV bytes.
func SuggestedFilename(now time.Time) string {
	return "bioclim_" + now.UTC().Format(filenameTimeLayout) + ".csv"
}
