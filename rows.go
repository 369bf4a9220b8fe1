package gentable

import (
	"context"
	"fmt"

	"github.com/poiesic/gentable/core"
	"github.com/poiesic/gentable/generation"
	"github.com/poiesic/gentable/storage"
	"github.com/poiesic/gentable/tables"
)

// ListRows returns rows in insertion order, converted for transmission, with
// the total row count.
func (s *Service) ListRows(ctx context.Context, id core.TableIdentity, offset, limit int) ([]core.ExternalRow, int, error) {
	session, _, err := s.session(ctx, id)
	if err != nil {
		return nil, 0, s.fail("list rows", id, err)
	}
	defer session.Close()

	meta, err := session.OpenTable(ctx, id.TableID)
	if err != nil {
		return nil, 0, s.fail("list rows", id, err)
	}
	rows, total, err := session.ListRows(ctx, id.TableID, offset, limit)
	if err != nil {
		return nil, 0, s.fail("list rows", id, err)
	}
	out := make([]core.ExternalRow, len(rows))
	for i, row := range rows {
		out[i] = core.ToExternal(meta, row, true)
	}
	return out, total, nil
}

// GetRow returns one row converted for transmission.
func (s *Service) GetRow(ctx context.Context, id core.TableIdentity, rowID string) (core.ExternalRow, error) {
	session, _, err := s.session(ctx, id)
	if err != nil {
		return nil, s.fail("get row", id, err)
	}
	defer session.Close()

	meta, err := session.OpenTable(ctx, id.TableID)
	if err != nil {
		return nil, s.fail("get row", id, err)
	}
	row, err := session.GetRow(ctx, id.TableID, rowID)
	if err != nil {
		return nil, s.fail("get row", id, err)
	}
	return core.ToExternal(meta, row, true), nil
}

// UpdateRow overwrites values of one row. Generative columns are not
// recomputed; use RegenRows for that.
func (s *Service) UpdateRow(ctx context.Context, id core.TableIdentity, rowID string, values map[string]any, reindex core.ReindexIntent) error {
	session, table, err := s.session(ctx, id)
	if err != nil {
		return s.fail("update row", id, err)
	}
	defer session.Close()

	meta, err := session.OpenTable(ctx, id.TableID)
	if err != nil {
		return s.fail("update row", id, err)
	}
	if err := table.ValidateWrite(tables.OpUpdate, meta, values); err != nil {
		return err
	}
	canonical := make(map[string]any, len(values))
	for name, v := range values {
		col, _ := meta.Column(name)
		canonical[col.ID] = v
	}
	if err := session.UpdateRows(ctx, id.TableID, &core.Row{ID: rowID, Values: canonical}); err != nil {
		return s.fail("update row", id, err)
	}
	s.applyReindex(ctx, session, id, reindex)
	return nil
}

// DeleteRows removes rows by id, or every row matching filter when rowIDs is
// empty, and returns the number removed. Deleting a single row rebuilds the
// index unless reindex says otherwise.
func (s *Service) DeleteRows(ctx context.Context, id core.TableIdentity, rowIDs []string, filter core.Filter, reindex core.ReindexIntent) (int, error) {
	if len(rowIDs) == 0 && len(filter) == 0 {
		return 0, fmt.Errorf("%w: row ids or a filter are required", core.ErrInvalidParameter)
	}
	session, _, err := s.session(ctx, id)
	if err != nil {
		return 0, s.fail("delete rows", id, err)
	}
	defer session.Close()

	n, err := session.DeleteRows(ctx, id.TableID, rowIDs, filter)
	if err != nil {
		return 0, s.fail("delete rows", id, err)
	}
	if len(rowIDs) == 1 && reindex == core.ReindexAuto {
		reindex = core.ReindexYes
	}
	if n > 0 {
		s.applyReindex(ctx, session, id, reindex)
	}
	return n, nil
}

// ConversationThread returns the message history of a chat table's
// multi-turn column.
func (s *Service) ConversationThread(ctx context.Context, id core.TableIdentity, column string) ([]core.Message, error) {
	session, table, err := s.session(ctx, id)
	if err != nil {
		return nil, s.fail("conversation thread", id, err)
	}
	defer session.Close()

	chat, ok := table.(*tables.Chat)
	if !ok {
		return nil, fmt.Errorf("%w: conversation threads need a chat table, got %q", core.ErrInvalidTableKind, id.Kind)
	}
	meta, err := session.OpenTable(ctx, id.TableID)
	if err != nil {
		return nil, s.fail("conversation thread", id, err)
	}
	rows, _, err := session.ListRows(ctx, id.TableID, 0, 0)
	if err != nil {
		return nil, s.fail("conversation thread", id, err)
	}
	thread, err := chat.ConversationThread(meta, rows, column)
	return thread, s.fail("conversation thread", id, err)
}

// applyReindex schedules a background rebuild when the policy asks for one.
// Failures are logged only.
func (s *Service) applyReindex(ctx context.Context, session storage.Session, id core.TableIdentity, intent core.ReindexIntent) {
	count, err := session.CountRows(ctx, id.TableID)
	if err != nil {
		s.logger.Warn("failed to count rows", "table", id.TableID, "err", err)
		return
	}
	if !generation.ShouldReindex(intent, count, s.threshold) {
		return
	}
	if err := s.executor.Reindex(id); err != nil {
		s.logger.Warn("failed to schedule reindex", "table", id.TableID, "err", err)
	}
}
