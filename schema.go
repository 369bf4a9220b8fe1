package gentable

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/poiesic/gentable/core"
	"github.com/poiesic/gentable/tables"
)

// CreateTable creates a table. Knowledge and chat tables must include their
// fixed columns; CreateKnowledgeTable and CreateChatTable add them.
func (s *Service) CreateTable(ctx context.Context, id core.TableIdentity, cols []core.ColumnSpec) (*core.TableMeta, error) {
	meta, err := s.createTable(ctx, id, cols)
	return meta, s.fail("create table", id, err)
}

func (s *Service) createTable(ctx context.Context, id core.TableIdentity, cols []core.ColumnSpec) (*core.TableMeta, error) {
	session, table, err := s.session(ctx, id)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	draft := &core.TableMeta{ID: id.TableID, Kind: id.Kind, Columns: cols}
	for _, name := range table.FixedColumns() {
		if _, ok := draft.Column(name); !ok {
			return nil, fmt.Errorf("%w: %s tables need column %q", core.ErrSchemaFixed, id.Kind, name)
		}
	}
	return session.CreateTable(ctx, draft)
}

// CreateKnowledgeTable creates a knowledge table embedding its title and
// text with embeddingModel, followed by extra columns.
func (s *Service) CreateKnowledgeTable(ctx context.Context, id core.TableIdentity, embeddingModel string, vectorLength int, extra ...core.ColumnSpec) (*core.TableMeta, error) {
	id.Kind = core.KindKnowledge
	cols := append(tables.KnowledgeColumns(embeddingModel, vectorLength), extra...)
	meta, err := s.createTable(ctx, id, cols)
	return meta, s.fail("create knowledge table", id, err)
}

// CreateChatTable creates a chat table answering with model, followed by
// extra columns.
func (s *Service) CreateChatTable(ctx context.Context, id core.TableIdentity, model, systemPrompt string, extra ...core.ColumnSpec) (*core.TableMeta, error) {
	id.Kind = core.KindChat
	cols := append(tables.ChatColumns(model, systemPrompt), extra...)
	meta, err := s.createTable(ctx, id, cols)
	return meta, s.fail("create chat table", id, err)
}

// GetTable returns a table's metadata.
func (s *Service) GetTable(ctx context.Context, id core.TableIdentity) (*core.TableMeta, error) {
	session, _, err := s.session(ctx, id)
	if err != nil {
		return nil, s.fail("get table", id, err)
	}
	defer session.Close()
	meta, err := session.OpenTable(ctx, id.TableID)
	return meta, s.fail("get table", id, err)
}

// ListTables lists the tables of one kind in a project, optionally only
// those duplicated from parentID.
func (s *Service) ListTables(ctx context.Context, orgID, projectID string, kind core.TableKind, offset, limit int, parentID *string) ([]*core.TableMeta, int, error) {
	id := core.TableIdentity{OrgID: orgID, ProjectID: projectID, Kind: kind}
	loc, err := tables.KindLocator(s.root, orgID, projectID, kind)
	if err != nil {
		return nil, 0, err
	}
	if !s.opener.Exists(loc) {
		return nil, 0, nil
	}
	session, err := s.opener.Open(ctx, loc)
	if err != nil {
		return nil, 0, s.fail("list tables", id, err)
	}
	defer session.Close()
	metas, total, err := session.ListTables(ctx, offset, limit, parentID)
	return metas, total, s.fail("list tables", id, err)
}

// DuplicateTable copies a table, with its rows when includeData is set.
func (s *Service) DuplicateTable(ctx context.Context, id core.TableIdentity, newID string, includeData bool) (*core.TableMeta, error) {
	if err := core.ValidateIdentifier(newID); err != nil {
		return nil, err
	}
	session, _, err := s.session(ctx, id)
	if err != nil {
		return nil, s.fail("duplicate table", id, err)
	}
	defer session.Close()
	meta, err := session.DuplicateTable(ctx, id.TableID, newID, includeData)
	return meta, s.fail("duplicate table", id, err)
}

// RenameTable changes a table's id.
func (s *Service) RenameTable(ctx context.Context, id core.TableIdentity, newID string) (*core.TableMeta, error) {
	if err := core.ValidateIdentifier(newID); err != nil {
		return nil, err
	}
	session, _, err := s.session(ctx, id)
	if err != nil {
		return nil, s.fail("rename table", id, err)
	}
	defer session.Close()
	meta, err := session.RenameTable(ctx, id.TableID, newID)
	return meta, s.fail("rename table", id, err)
}

// DeleteTable removes a table.
func (s *Service) DeleteTable(ctx context.Context, id core.TableIdentity) error {
	session, _, err := s.session(ctx, id)
	if err != nil {
		return s.fail("delete table", id, err)
	}
	defer session.Close()
	return s.fail("delete table", id, session.DeleteTable(ctx, id.TableID))
}

// AddColumns appends columns to a table.
func (s *Service) AddColumns(ctx context.Context, id core.TableIdentity, cols ...core.ColumnSpec) (*core.TableMeta, error) {
	meta, err := s.updateColumns(ctx, id, func(meta *core.TableMeta, _ tables.Table) ([]core.ColumnSpec, map[string]string, error) {
		return append(append([]core.ColumnSpec(nil), meta.Columns...), cols...), nil, nil
	})
	return meta, s.fail("add columns", id, err)
}

// DropColumns removes columns and their values, then schedules an index
// rebuild.
func (s *Service) DropColumns(ctx context.Context, id core.TableIdentity, names ...string) (*core.TableMeta, error) {
	meta, err := s.updateColumns(ctx, id, func(meta *core.TableMeta, table tables.Table) ([]core.ColumnSpec, map[string]string, error) {
		if err := table.ValidateSchemaChange(names); err != nil {
			return nil, nil, err
		}
		drop := make(map[string]bool, len(names))
		for _, name := range names {
			col, ok := meta.Column(name)
			if !ok {
				return nil, nil, fmt.Errorf("%w: %q", core.ErrUnknownColumn, name)
			}
			drop[col.ID] = true
		}
		var kept []core.ColumnSpec
		for _, col := range meta.Columns {
			if !drop[col.ID] {
				kept = append(kept, col)
			}
		}
		return kept, nil, nil
	})
	if err != nil {
		return nil, s.fail("drop columns", id, err)
	}
	if err := s.executor.Reindex(id); err != nil {
		s.logger.Warn("failed to schedule reindex", "table", id.TableID, "err", err)
	}
	return meta, nil
}

// RenameColumns renames columns, keyed by current name. Prompt references
// and embedding sources follow the rename.
func (s *Service) RenameColumns(ctx context.Context, id core.TableIdentity, renames map[string]string) (*core.TableMeta, error) {
	meta, err := s.updateColumns(ctx, id, func(meta *core.TableMeta, table tables.Table) ([]core.ColumnSpec, map[string]string, error) {
		from := make([]string, 0, len(renames))
		for name := range renames {
			from = append(from, name)
		}
		if err := table.ValidateSchemaChange(from); err != nil {
			return nil, nil, err
		}
		canonical := make(map[string]string, len(renames))
		for name, to := range renames {
			col, ok := meta.Column(name)
			if !ok {
				return nil, nil, fmt.Errorf("%w: %q", core.ErrUnknownColumn, name)
			}
			canonical[col.ID] = to
		}

		cols := make([]core.ColumnSpec, len(meta.Columns))
		for i, col := range meta.Columns {
			if to, ok := canonical[col.ID]; ok {
				col.ID = to
			}
			if col.Gen != nil {
				gen := *col.Gen
				gen.Prompt = core.RenamePromptReferences(gen.Prompt, canonical)
				gen.SystemPrompt = core.RenamePromptReferences(gen.SystemPrompt, canonical)
				for old, to := range canonical {
					if strings.EqualFold(strings.TrimSpace(gen.SourceColumn), old) {
						gen.SourceColumn = to
					}
				}
				col.Gen = &gen
			}
			cols[i] = col
		}
		return cols, canonical, nil
	})
	return meta, s.fail("rename columns", id, err)
}

// ReorderColumns sets the column order. order must name every column once.
func (s *Service) ReorderColumns(ctx context.Context, id core.TableIdentity, order []string) (*core.TableMeta, error) {
	meta, err := s.updateColumns(ctx, id, func(meta *core.TableMeta, _ tables.Table) ([]core.ColumnSpec, map[string]string, error) {
		if len(order) != len(meta.Columns) {
			return nil, nil, fmt.Errorf("%w: order names %d of %d columns", core.ErrInvalidColumn, len(order), len(meta.Columns))
		}
		seen := make(map[string]bool, len(order))
		cols := make([]core.ColumnSpec, 0, len(order))
		for _, name := range order {
			col, ok := meta.Column(name)
			if !ok {
				return nil, nil, fmt.Errorf("%w: %q", core.ErrUnknownColumn, name)
			}
			if seen[col.ID] {
				return nil, nil, fmt.Errorf("%w: %q", core.ErrDuplicateColumn, name)
			}
			seen[col.ID] = true
			cols = append(cols, *col)
		}
		return cols, nil, nil
	})
	return meta, s.fail("reorder columns", id, err)
}

// UpdateGenConfig replaces the generation config of columns, keyed by name.
// A nil config turns a generated column back into a plain one, and a config
// on a plain string column makes it generated. Embedding columns always keep
// a config. Existing values are untouched; regenerate rows to apply it.
func (s *Service) UpdateGenConfig(ctx context.Context, id core.TableIdentity, configs map[string]*core.GenConfig) (*core.TableMeta, error) {
	meta, err := s.updateColumns(ctx, id, func(meta *core.TableMeta, table tables.Table) ([]core.ColumnSpec, map[string]string, error) {
		names := make([]string, 0, len(configs))
		for name := range configs {
			names = append(names, name)
		}
		if err := table.ValidateSchemaChange(names); err != nil {
			return nil, nil, err
		}
		canonical := make(map[string]*core.GenConfig, len(configs))
		for name, gen := range configs {
			col, ok := meta.Column(name)
			if !ok {
				return nil, nil, fmt.Errorf("%w: %q", core.ErrUnknownColumn, name)
			}
			canonical[col.ID] = gen
		}

		cols := slices.Clone(meta.Columns)
		for i := range cols {
			gen, ok := canonical[cols[i].ID]
			if !ok {
				continue
			}
			col := &cols[i]
			switch {
			case gen == nil && col.Kind == core.ValueEmbedding:
				return nil, nil, fmt.Errorf("%w: %q: embedding column needs a config", core.ErrInvalidColumn, col.ID)
			case gen == nil:
				col.Kind = core.ValuePlain
				col.Gen = nil
			default:
				if col.Kind != core.ValueEmbedding {
					if col.DataType != core.DataString {
						return nil, nil, fmt.Errorf("%w: %q: only string columns are generated", core.ErrInvalidColumn, col.ID)
					}
					col.Kind = core.ValueGenerated
				}
				updated := *gen
				col.Gen = &updated
			}
		}
		return cols, nil, nil
	})
	return meta, s.fail("update gen config", id, err)
}

type schemaChange func(meta *core.TableMeta, table tables.Table) ([]core.ColumnSpec, map[string]string, error)

func (s *Service) updateColumns(ctx context.Context, id core.TableIdentity, change schemaChange) (*core.TableMeta, error) {
	session, table, err := s.session(ctx, id)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	meta, err := session.OpenTable(ctx, id.TableID)
	if err != nil {
		return nil, err
	}
	cols, renames, err := change(meta, table)
	if err != nil {
		return nil, err
	}
	return session.UpdateColumns(ctx, id.TableID, cols, renames)
}
