package sha256

import (
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"
)

const helloDigest = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

func TestHasherHashDeterministic(t *testing.T) {
	t.Parallel()

	h := New()
	require.Equal(t, helloDigest, h.Hash([]byte("hello world")))
	require.Equal(t, h.Hash([]byte("hello world")), h.Hash([]byte("hello world")))
	require.NotEqual(t, helloDigest, h.Hash([]byte("hello world!")))
}

func TestHasherHashReaderMatchesHash(t *testing.T) {
	t.Parallel()

	digest, n, err := New().HashReader(strings.NewReader("hello world"))
	require.NoError(t, err)
	require.Equal(t, helloDigest, digest)
	require.EqualValues(t, 11, n)

	_, _, err = New().HashReader(iotest.ErrReader(errors.New("disk gone")))
	require.ErrorContains(t, err, "disk gone")
}
