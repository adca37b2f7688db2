package clientkv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndLoad(t *testing.T) {
	s := newTestStore(t)
	snap := Snapshot{Account: "Alice", Nick: "alice", Channels: []string{"#general"}}
	require.NoError(t, s.Save(snap))

	loaded, ok, err := s.Load("alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "alice", loaded.Nick)
	assert.Equal(t, []string{"#general"}, loaded.Channels)
}

func TestLoadMissingReturnsNotOK(t *testing.T) {
	s := newTestStore(t)
	_, ok, err := s.Load("nobody")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(Snapshot{Account: "bob"}))
	require.NoError(t, s.Delete("bob"))

	_, ok, _ := s.Load("bob")
	assert.False(t, ok)
}

func TestAllReturnsEverySnapshot(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(Snapshot{Account: "alice"}))
	require.NoError(t, s.Save(Snapshot{Account: "bob"}))

	all, err := s.All()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
