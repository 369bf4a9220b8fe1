package tables

import (
	"fmt"

	"github.com/poiesic/gentable/core"
)

// Chat is a table of conversation turns.
type Chat struct {
	base
}

var _ Table = (*Chat)(nil)

// ChatColumns returns the fixed schema of a chat table answered by model.
func ChatColumns(model, systemPrompt string) []core.ColumnSpec {
	return []core.ColumnSpec{
		{ID: core.ColumnUser, Kind: core.ValuePlain, DataType: core.DataString},
		{ID: core.ColumnAI, Kind: core.ValueGenerated, DataType: core.DataString, Gen: &core.GenConfig{
			Model:        model,
			SystemPrompt: systemPrompt,
			Prompt:       "${" + core.ColumnUser + "}",
			MultiTurn:    true,
		}},
	}
}

// ConversationThread rebuilds the message history of a multi-turn column from
// rows in insertion order: the column's system prompt, then one user and one
// assistant message per row. Rows whose cell failed or is empty are skipped.
func (c *Chat) ConversationThread(meta *core.TableMeta, rows []*core.Row, column string) ([]core.Message, error) {
	col, ok := meta.Column(column)
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownColumn, column)
	}
	if col.Kind != core.ValueGenerated || col.Gen == nil || !col.Gen.MultiTurn {
		return nil, fmt.Errorf("%w: %q is not a multi-turn column", core.ErrInvalidColumn, column)
	}

	var thread []core.Message
	if col.Gen.SystemPrompt != "" {
		thread = append(thread, core.Message{Role: core.RoleSystem, Content: col.Gen.SystemPrompt})
	}
	for _, row := range rows {
		if row.State[col.ID].Error != "" {
			continue
		}
		answer := row.Text(col.ID)
		if answer == "" {
			continue
		}
		thread = append(thread,
			core.Message{Role: core.RoleUser, Content: core.RenderPrompt(col.Gen.Prompt, row.Values)},
			core.Message{Role: core.RoleAssistant, Content: answer},
		)
	}
	return thread, nil
}
