package sqlstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadMarkerAdvancesMonotonically(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SetReadMarker("alice", "#d", 100))
	require.NoError(t, s.SetReadMarker("alice", "#d", 50))

	nt, err := s.ReadMarker("alice", "#d")
	require.NoError(t, err)
	assert.Equal(t, int64(100), nt)

	require.NoError(t, s.SetReadMarker("alice", "#d", 200))
	nt, err = s.ReadMarker("alice", "#d")
	require.NoError(t, err)
	assert.Equal(t, int64(200), nt)
}

func TestReadMarkerDefaultsToZero(t *testing.T) {
	s := newTestStore(t)
	nt, err := s.ReadMarker("bob", "#d")
	require.NoError(t, err)
	assert.Equal(t, int64(0), nt)
}
