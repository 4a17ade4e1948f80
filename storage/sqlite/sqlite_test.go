package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "calc.db")

	s, err := Open(path)
	require.NoError(t, err)

	_, ok, err := s.Get("calc-history")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set("calc-history", "[]"))
	require.NoError(t, s.Set("calc-history", `[{"expression":"1+1","result":"2"}]`))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	v, ok, err := reopened.Get("calc-history")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"expression":"1+1","result":"2"}]`, v)

	require.NoError(t, reopened.Remove("calc-history"))
	require.NoError(t, reopened.Remove("calc-history"))
	_, ok, err = reopened.Get("calc-history")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInMemoryDatabase(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set("k", "v"))
	v, ok, err := s.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestClosedDatabase(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.Error(t, s.Set("k", "v"))
	_, _, err = s.Get("k")
	assert.Error(t, err)
}
