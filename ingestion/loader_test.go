package ingestion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLoader_Text(t *testing.T) {
	docs, err := FileLoader{}.Load(context.Background(), "notes.md", []byte("# Notes\n\nhello"))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].Text, "hello")
	assert.Zero(t, docs[0].Page)
}

func TestFileLoader_UnsupportedFormat(t *testing.T) {
	_, err := FileLoader{}.Load(context.Background(), "image.png", []byte{0x89, 'P', 'N', 'G'})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestRecursiveSplitter(t *testing.T) {
	docs := []Document{{Text: "para one\n\npara two\n\npara three"}}
	chunks, err := RecursiveSplitter{}.Split(docs, 12, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i, want := range []string{"para one", "para two", "para three"} {
		assert.Equal(t, want, chunks[i].Text)
		assert.Equal(t, i, chunks[i].Position)
	}
}

func TestRecursiveSplitter_PagesAndBlanks(t *testing.T) {
	docs := []Document{
		{Text: "first page", Page: 1},
		{Text: "   ", Page: 2},
		{Text: "third page", Page: 3},
	}
	chunks, err := RecursiveSplitter{}.Split(docs, 100, 10)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 1, chunks[0].Page)
	assert.Equal(t, 3, chunks[1].Page)
	assert.Equal(t, 1, chunks[1].Position)
}
