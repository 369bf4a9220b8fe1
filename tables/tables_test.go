package tables

import (
	"testing"

	"github.com/poiesic/gentable/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	loc, err := Resolve("db", core.TableIdentity{OrgID: "org", ProjectID: "proj", Kind: core.KindChat, TableID: "t"})
	require.NoError(t, err)
	assert.Equal(t, core.Locator{Root: "db", OrgID: "org", ProjectID: "proj", Kind: core.KindChat}, loc)

	_, err = Resolve("db", core.TableIdentity{OrgID: "../org", ProjectID: "proj", Kind: core.KindChat, TableID: "t"})
	assert.ErrorIs(t, err, core.ErrInvalidIdentifier)

	_, err = Resolve("db", core.TableIdentity{OrgID: "org", ProjectID: "proj", Kind: core.KindFile, TableID: "t"})
	assert.ErrorIs(t, err, core.ErrInvalidTableKind)

	file, err := FileLocator("db", "org", "proj")
	require.NoError(t, err)
	assert.Equal(t, core.KindFile, file.Kind)

	kind, err := KindLocator("db", "org", "proj", core.KindKnowledge)
	require.NoError(t, err)
	assert.Equal(t, core.Locator{Root: "db", OrgID: "org", ProjectID: "proj", Kind: core.KindKnowledge}, kind)
	_, err = KindLocator("db", "org", "proj", core.KindFile)
	assert.ErrorIs(t, err, core.ErrInvalidTableKind)
}

func TestNew(t *testing.T) {
	loc := core.Locator{Root: "db"}
	for _, kind := range core.GenerativeKinds {
		table, err := New(kind, loc)
		require.NoError(t, err)
		assert.Equal(t, kind, table.Kind())
	}
	_, err := New(core.KindFile, loc)
	assert.ErrorIs(t, err, core.ErrInvalidTableKind)

	k, _ := New(core.KindKnowledge, loc)
	assert.IsType(t, &Knowledge{}, k)
	c, _ := New(core.KindChat, loc)
	assert.IsType(t, &Chat{}, c)
}

func TestValidateWrite(t *testing.T) {
	meta := &core.TableMeta{Columns: KnowledgeColumns("openai/text-embedding-3-small", 4)}

	action, _ := New(core.KindAction, core.Locator{})
	assert.ErrorIs(t, action.ValidateWrite(OpAdd, meta, map[string]any{"ID": "x"}), core.ErrSchemaFixed)
	assert.ErrorIs(t, action.ValidateWrite(OpAdd, meta, map[string]any{"nope": 1}), core.ErrUnknownColumn)
	assert.NoError(t, action.ValidateWrite(OpUpdate, meta, map[string]any{"text embed": []float32{1}}))

	knowledge, _ := New(core.KindKnowledge, core.Locator{})
	assert.NoError(t, knowledge.ValidateWrite(OpAdd, meta, map[string]any{core.ColumnTextEmbed: []float32{1}}))
	assert.NoError(t, knowledge.ValidateWrite(OpUpdate, meta, map[string]any{core.ColumnTitle: "x"}))
	err := knowledge.ValidateWrite(OpUpdate, meta, map[string]any{"title embed": []float32{1}})
	assert.ErrorIs(t, err, core.ErrSchemaFixed)
	assert.True(t, core.IsClientError(err))
}

func TestValidateSchemaChange(t *testing.T) {
	knowledge, _ := New(core.KindKnowledge, core.Locator{})
	assert.ErrorIs(t, knowledge.ValidateSchemaChange([]string{"text"}), core.ErrSchemaFixed)
	assert.NoError(t, knowledge.ValidateSchemaChange([]string{"notes"}))

	chat, _ := New(core.KindChat, core.Locator{})
	assert.ErrorIs(t, chat.ValidateSchemaChange([]string{"AI"}), core.ErrSchemaFixed)

	action, _ := New(core.KindAction, core.Locator{})
	assert.ErrorIs(t, action.ValidateSchemaChange([]string{"Updated at"}), core.ErrSchemaFixed)
	assert.NoError(t, action.ValidateSchemaChange([]string{"anything"}))
}

func TestKnowledgeColumnsAreValid(t *testing.T) {
	require.NoError(t, core.ValidateColumns(KnowledgeColumns("openai/text-embedding-3-small", 8)))
	require.NoError(t, core.ValidateColumns(ChatColumns("openai/gpt-4o-mini", "be nice")))
}

func TestConversationThread(t *testing.T) {
	meta := &core.TableMeta{Columns: ChatColumns("openai/gpt-4o-mini", "be nice")}
	chat := &Chat{}
	rows := []*core.Row{
		{Values: map[string]any{"User": "hi", "AI": "hello"}},
		{Values: map[string]any{"User": "broken", "AI": ""}, State: map[string]core.CellState{"AI": {Error: "timeout"}}},
		{Values: map[string]any{"User": "how are you", "AI": "fine"}},
	}

	thread, err := chat.ConversationThread(meta, rows, "AI")
	require.NoError(t, err)
	assert.Equal(t, []core.Message{
		{Role: core.RoleSystem, Content: "be nice"},
		{Role: core.RoleUser, Content: "hi"},
		{Role: core.RoleAssistant, Content: "hello"},
		{Role: core.RoleUser, Content: "how are you"},
		{Role: core.RoleAssistant, Content: "fine"},
	}, thread)

	_, err = chat.ConversationThread(meta, rows, "User")
	assert.ErrorIs(t, err, core.ErrInvalidColumn)
	_, err = chat.ConversationThread(meta, rows, "missing")
	assert.ErrorIs(t, err, core.ErrUnknownColumn)
}
