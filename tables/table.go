package tables

import (
	"fmt"
	"strings"

	"github.com/poiesic/gentable/core"
)

// WriteOp is the kind of row mutation being validated.
type WriteOp int

const (
	// OpAdd inserts new rows.
	OpAdd WriteOp = iota
	// OpUpdate overwrites values of existing rows.
	OpUpdate
	// OpRegen recomputes generated cells of existing rows.
	OpRegen
)

// Table is the behavior shared by every generative table kind.
type Table interface {
	// Kind returns the table kind.
	Kind() core.TableKind

	// Locator returns where the kind's tables are stored.
	Locator() core.Locator

	// FixedColumns returns columns that schema updates may not drop or rename.
	FixedColumns() []string

	// ValidateWrite checks a row payload before any row is processed.
	ValidateWrite(op WriteOp, meta *core.TableMeta, values map[string]any) error

	// ValidateSchemaChange checks that none of the named columns is fixed.
	ValidateSchemaChange(columns []string) error
}

// New returns the variant for a generative kind.
func New(kind core.TableKind, loc core.Locator) (Table, error) {
	b := base{kind: kind, loc: loc}
	switch kind {
	case core.KindAction:
		return &Action{base: b}, nil
	case core.KindKnowledge:
		b.fixed = []string{core.ColumnTitle, core.ColumnTitleEmbed, core.ColumnText, core.ColumnTextEmbed, core.ColumnFileID, core.ColumnPage}
		return &Knowledge{base: b}, nil
	case core.KindChat:
		b.fixed = []string{core.ColumnUser, core.ColumnAI}
		return &Chat{base: b}, nil
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidTableKind, kind)
	}
}

type base struct {
	kind  core.TableKind
	loc   core.Locator
	fixed []string
}

func (b *base) Kind() core.TableKind { return b.kind }

func (b *base) Locator() core.Locator { return b.loc }

func (b *base) FixedColumns() []string { return b.fixed }

func (b *base) ValidateWrite(op WriteOp, meta *core.TableMeta, values map[string]any) error {
	for name := range values {
		if core.IsStateColumn(name) {
			return fmt.Errorf("%w: column %q is managed by the table", core.ErrSchemaFixed, name)
		}
		if _, ok := meta.Column(name); !ok {
			return fmt.Errorf("%w: %q", core.ErrUnknownColumn, name)
		}
	}
	return nil
}

func (b *base) ValidateSchemaChange(columns []string) error {
	for _, name := range columns {
		if core.IsStateColumn(name) || b.isFixed(name) {
			return fmt.Errorf("%w: column %q cannot be changed", core.ErrSchemaFixed, name)
		}
	}
	return nil
}

func (b *base) isFixed(name string) bool {
	for _, f := range b.fixed {
		if strings.EqualFold(f, name) {
			return true
		}
	}
	return false
}

// Action is a free-form generative table.
type Action struct {
	base
}

var _ Table = (*Action)(nil)
