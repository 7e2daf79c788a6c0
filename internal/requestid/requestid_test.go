package requestid

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUnique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := Generate()
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestGenerateIsUUID(t *testing.T) {
	_, err := uuid.Parse(Generate())
	assert.NoError(t, err)
}

func TestGenerateFallback(t *testing.T) {
	orig := newRandom
	newRandom = func() (uuid.UUID, error) { return uuid.Nil, errors.New("no entropy") }
	defer func() { newRandom = orig }()

	a := Generate()
	b := Generate()
	assert.NotEqual(t, a, b)
	assert.True(t, strings.Contains(a, "-"))
	_, err := uuid.Parse(a)
	assert.Error(t, err)
}
