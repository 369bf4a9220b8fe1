package badger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"quick", "fox", "jumps"}, tokenize("The quick, fox (jumps)!"))
	assert.Empty(t, tokenize("the a an"))
}

func TestLexicalScore(t *testing.T) {
	terms := tokenize("red apples")
	assert.InDelta(t, 1.3, lexicalScore(terms, "Red apples are tasty"), 1e-9)
	assert.InDelta(t, 0.5, lexicalScore(terms, "green apples"), 1e-9)
	assert.Zero(t, lexicalScore(terms, "bananas"))
	assert.Zero(t, lexicalScore(nil, "bananas"))
}
