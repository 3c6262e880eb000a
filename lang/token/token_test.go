package token

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenString(t *testing.T) {
	for tok := Token(0); tok < maxToken; tok++ {
		require.NotEmpty(t, tok.String(), "token %d missing a string representation", tok)
	}
}

func TestKeywords(t *testing.T) {
	for word, tok := range Keywords {
		require.Equal(t, word, tok.String())
	}
}
