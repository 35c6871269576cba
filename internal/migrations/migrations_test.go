package migrations

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSource_EmbeddedMigrationsAreOrdered(t *testing.T) {
	src, err := Source()
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	require.Equal(t, uint(1), first)

	next, err := src.Next(first)
	require.NoError(t, err)
	require.Equal(t, uint(2), next)

	_, err = src.Next(next)
	require.ErrorIs(t, err, os.ErrNotExist)

	for _, v := range []uint{1, 2} {
		up, ident, err := src.ReadUp(v)
		require.NoError(t, err)
		body, err := io.ReadAll(up)
		require.NoError(t, err)
		up.Close()
		require.Contains(t, string(body), "CREATE TABLE", ident)

		down, _, err := src.ReadDown(v)
		require.NoError(t, err)
		down.Close()
	}
}
