package uuid

import (
	"testing"

	goUUID "github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestGeneratorNewID(t *testing.T) {
	t.Parallel()

	gen := NewUUIDGenerator()
	id1, err := gen.NewID()
	require.NoError(t, err)
	id2, err := gen.NewID()
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)

	parsed, err := goUUID.Parse(id1)
	require.NoError(t, err)
	require.Equal(t, goUUID.Version(7), parsed.Version())
	require.Less(t, id1, id2)
}

func TestValid(t *testing.T) {
	t.Parallel()

	require.True(t, Valid("0192b3c4-5d6e-7f80-9a1b-2c3d4e5f6a7b"))
	require.False(t, Valid("job-1"))
	require.False(t, Valid(""))
}
