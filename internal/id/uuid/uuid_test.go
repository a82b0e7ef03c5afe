package uuid

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNewRunIDIsVersion7(t *testing.T) {
	t.Parallel()

	gen := NewGenerator()
	raw, err := gen.NewRunID()
	require.NoError(t, err)

	parsed, err := uuid.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, uuid.Version(7), parsed.Version())
}

func TestNewRunIDSortsByCreation(t *testing.T) {
	t.Parallel()

	gen := NewGenerator()
	first, err := gen.NewRunID()
	require.NoError(t, err)
	second, err := gen.NewRunID()
	require.NoError(t, err)
	require.NotEqual(t, first, second)
	require.Less(t, first, second)
}
