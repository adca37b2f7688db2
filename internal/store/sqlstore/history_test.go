package sqlstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertTestHistory(t *testing.T, s *Store, target string, times ...int64) {
	t.Helper()
	for i, nt := range times {
		err := s.InsertHistory(HistoryEntry{
			MsgID:      target + "-m" + string(rune('0'+i)),
			Target:     target,
			SenderNick: "alice",
			Envelope:   []byte("hello"),
			Nanotime:   nt,
		})
		require.NoError(t, err)
	}
}

func TestInsertHistoryIdempotent(t *testing.T) {
	s := newTestStore(t)
	e := HistoryEntry{MsgID: "m1", Target: "#d", SenderNick: "alice", Envelope: []byte("hi"), Nanotime: 100}
	require.NoError(t, s.InsertHistory(e))
	require.NoError(t, s.InsertHistory(e))

	entries, err := s.Latest("#d", 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLatestReturnsChronological(t *testing.T) {
	s := newTestStore(t)
	insertTestHistory(t, s, "#d", 100, 200, 300, 400)

	entries, err := s.Latest("#d", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(300), entries[0].Nanotime)
	assert.Equal(t, int64(400), entries[1].Nanotime)
}

func TestBeforeAndAfter(t *testing.T) {
	s := newTestStore(t)
	insertTestHistory(t, s, "#d", 100, 200, 300, 400)

	before, err := s.Before("#d", 300, 10)
	require.NoError(t, err)
	assert.Len(t, before, 2)

	after, err := s.After("#d", 200, 10)
	require.NoError(t, err)
	assert.Len(t, after, 2)
	assert.Equal(t, int64(300), after[0].Nanotime)
}

func TestBetweenExclusiveEndpoints(t *testing.T) {
	s := newTestStore(t)
	insertTestHistory(t, s, "#d", 100, 200, 300, 400)

	entries, err := s.Between("#d", 100, 400, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestBetweenEmptyWhenT1GreaterEqualT2(t *testing.T) {
	s := newTestStore(t)
	insertTestHistory(t, s, "#d", 100, 200)

	entries, err := s.Between("#d", 200, 100, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 0)
}

func TestAroundSplitsLimit(t *testing.T) {
	s := newTestStore(t)
	insertTestHistory(t, s, "#d", 100, 200, 300, 400, 500)

	entries, err := s.Around("#d", 300, 4)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}
