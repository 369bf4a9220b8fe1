package search

import (
	"strings"

	"github.com/poiesic/gentable/core"
)

// textColumns returns the string columns matched lexically.
func textColumns(meta *core.TableMeta) []string {
	var cols []string
	for _, col := range meta.Columns {
		if col.DataType == core.DataString {
			cols = append(cols, col.ID)
		}
	}
	return cols
}

// document joins the non-empty text columns of a row for reranking.
func document(meta *core.TableMeta, row *core.Row) string {
	var parts []string
	for _, col := range textColumns(meta) {
		if s := strings.TrimSpace(row.Text(col)); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}
