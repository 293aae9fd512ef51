package tokengenerator

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomGenerator_Generate(t *testing.T) {
	g := NewRandomGenerator()

	key, err := g.Generate("user@example.com")
	require.NoError(t, err)

	assert.Len(t, key, 64)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{64}$`), key)
}

func TestRandomGenerator_Distinct(t *testing.T) {
	g := NewRandomGenerator()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key, err := g.Generate("user@example.com")
		require.NoError(t, err)
		assert.False(t, seen[key], "duplicate key generated")
		seen[key] = true
	}
}

func TestRandomGenerator_DistinctAcrossEmails(t *testing.T) {
	g := NewRandomGenerator()

	key1, err := g.Generate("a@example.com")
	require.NoError(t, err)
	key2, err := g.Generate("b@example.com")
	require.NoError(t, err)

	assert.NotEqual(t, key1, key2)
}
