package tables

import (
	"fmt"
	"strings"

	"github.com/poiesic/gentable/core"
)

// Knowledge is a table of document chunks.
type Knowledge struct {
	base
}

var _ Table = (*Knowledge)(nil)

// ValidateWrite rejects updates of the embedding columns, which only
// ingestion and regeneration may write.
func (k *Knowledge) ValidateWrite(op WriteOp, meta *core.TableMeta, values map[string]any) error {
	if op == OpUpdate {
		for name := range values {
			if strings.EqualFold(name, core.ColumnTextEmbed) || strings.EqualFold(name, core.ColumnTitleEmbed) {
				return fmt.Errorf("%w: cannot update %q or %q", core.ErrSchemaFixed, core.ColumnTextEmbed, core.ColumnTitleEmbed)
			}
		}
	}
	return k.base.ValidateWrite(op, meta, values)
}

// KnowledgeColumns returns the fixed schema of a knowledge table embedding
// with the given model.
func KnowledgeColumns(embeddingModel string, vectorLength int) []core.ColumnSpec {
	return []core.ColumnSpec{
		{ID: core.ColumnTitle, Kind: core.ValuePlain, DataType: core.DataString},
		{ID: core.ColumnTitleEmbed, Kind: core.ValueEmbedding, DataType: core.DataVector, VectorLength: vectorLength,
			Gen: &core.GenConfig{EmbeddingModel: embeddingModel, SourceColumn: core.ColumnTitle}},
		{ID: core.ColumnText, Kind: core.ValuePlain, DataType: core.DataString},
		{ID: core.ColumnTextEmbed, Kind: core.ValueEmbedding, DataType: core.DataVector, VectorLength: vectorLength,
			Gen: &core.GenConfig{EmbeddingModel: embeddingModel, SourceColumn: core.ColumnText}},
		{ID: core.ColumnFileID, Kind: core.ValuePlain, DataType: core.DataString},
		{ID: core.ColumnPage, Kind: core.ValuePlain, DataType: core.DataInt},
	}
}
