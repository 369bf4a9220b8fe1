package core

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"time"
)

// ExternalCell is a column value prepared for transmission. Original holds
// the stored value when conversion changed it.
type ExternalCell struct {
	Value    any `json:"value"`
	Original any `json:"original,omitempty"`
}

// ExternalRow is a row with state columns reduced to their public form.
type ExternalRow map[string]ExternalCell

// ToExternal converts a row into a JSON-safe representation. Only columns
// declared in meta are emitted, in declared order of meta.Columns; the ID and
// Updated at state columns are kept as plain values when includeState is set.
func ToExternal(meta *TableMeta, row *Row, includeState bool) ExternalRow {
	out := make(ExternalRow, len(meta.Columns)+2)
	if includeState {
		out[ColumnID] = ExternalCell{Value: row.ID}
		out[ColumnUpdatedAt] = ExternalCell{Value: row.UpdatedAt.UTC().Format(time.RFC3339Nano)}
	}
	for _, col := range meta.Columns {
		raw, ok := row.Values[col.ID]
		if !ok {
			continue
		}
		safe, changed := JSONSafe(raw)
		cell := ExternalCell{Value: safe}
		if changed {
			cell.Original = raw
		}
		out[col.ID] = cell
	}
	return out
}

// JSONSafe converts v into a value encoding/json accepts without loss of
// meaning. The second result reports whether the value was changed.
func JSONSafe(v any) (any, bool) {
	switch t := v.(type) {
	case nil, string, bool, int, int64, int32:
		return v, false
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil, true
		}
		return t, false
	case float32:
		f := float64(t)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, true
		}
		return f, true
	case []float32:
		out := make([]float64, len(t))
		for i, x := range t {
			out[i] = float64(x)
			if math.IsNaN(out[i]) || math.IsInf(out[i], 0) {
				out[i] = 0
			}
		}
		return out, true
	case []byte:
		return base64.StdEncoding.EncodeToString(t), true
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano), true
	default:
		return v, false
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	default:
		return fmt.Sprint(v)
	}
}
