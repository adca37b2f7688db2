package bouncer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btnmasher/ironhall/internal/matrix"
	"github.com/btnmasher/ironhall/internal/store/clientkv"
)

func newTestManager(t *testing.T, cfg Config) *ClientManager {
	t.Helper()
	kv, err := clientkv.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	mx := matrix.New(128, &matrix.Config{})
	return New(mx, kv, nil, cfg)
}

func TestAttachCreatesOnFirstSession(t *testing.T) {
	cm := newTestManager(t, Config{})
	out := cm.Attach("Alice", "uid-1", "phone", "alice")
	assert.Equal(t, Created, out.Kind)
	assert.True(t, out.FirstSession)
	assert.Equal(t, 1, cm.SessionCount("alice"))
}

func TestAttachSecondSessionWithoutMulticlientRejected(t *testing.T) {
	cm := newTestManager(t, Config{AllowMulticlient: false})
	cm.Attach("alice", "uid-1", "phone", "alice")
	out := cm.Attach("alice", "uid-2", "laptop", "alice")
	assert.Equal(t, MulticlientNotAllowed, out.Kind)
}

func TestAttachSecondSessionWithMulticlientAllowed(t *testing.T) {
	cm := newTestManager(t, Config{AllowMulticlient: true})
	cm.Attach("alice", "uid-1", "phone", "alice")
	out := cm.Attach("alice", "uid-2", "laptop", "alice")
	assert.Equal(t, Attached, out.Kind)
	assert.False(t, out.FirstSession)
	assert.Equal(t, 2, cm.SessionCount("alice"))
}

func TestAttachTooManySessions(t *testing.T) {
	cm := newTestManager(t, Config{AllowMulticlient: true, MaxSessions: 1})
	cm.Attach("alice", "uid-1", "phone", "alice")
	out := cm.Attach("alice", "uid-2", "laptop", "alice")
	assert.Equal(t, TooManySessions, out.Kind)
}

func TestDetachNotAlwaysOnDestroys(t *testing.T) {
	cm := newTestManager(t, Config{})
	cm.Attach("alice", "uid-1", "phone", "alice")
	out := cm.Detach("alice", "uid-1", false)
	assert.Equal(t, Destroyed, out.Kind)
	assert.Equal(t, 0, cm.SessionCount("alice"))
}

func TestDetachAlwaysOnPersists(t *testing.T) {
	cm := newTestManager(t, Config{})
	cm.Attach("alice", "uid-1", "phone", "alice")
	out := cm.Detach("alice", "uid-1", true)
	assert.Equal(t, Persisting, out.Kind)
	assert.Equal(t, 0, cm.SessionCount("alice"))
}

func TestDetachWithRemainingSessions(t *testing.T) {
	cm := newTestManager(t, Config{AllowMulticlient: true})
	cm.Attach("alice", "uid-1", "phone", "alice")
	cm.Attach("alice", "uid-2", "laptop", "alice")
	out := cm.Detach("alice", "uid-1", false)
	assert.Equal(t, Detached, out.Kind)
	assert.Equal(t, 1, out.Remaining)
}

func TestChannelMembershipSurvivesDetach(t *testing.T) {
	cm := newTestManager(t, Config{})
	cm.Attach("alice", "uid-1", "phone", "alice")
	cm.JoinChannel("alice", "#general")
	cm.Detach("alice", "uid-1", true)
	assert.Equal(t, []string{"#general"}, cm.Channels("alice"))
}

func TestFlushDirtyPersistsToClientKV(t *testing.T) {
	cm := newTestManager(t, Config{})
	cm.Attach("alice", "uid-1", "phone", "alice")
	cm.JoinChannel("alice", "#general")
	require.NoError(t, cm.FlushDirty())

	snap, ok, err := cm.kv.Load("alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice", snap.Nick)
	assert.Contains(t, snap.Channels, "#general")
}

func TestLoadAllRehydratesState(t *testing.T) {
	kv, err := clientkv.Open(":memory:")
	require.NoError(t, err)
	defer kv.Close()
	require.NoError(t, kv.Save(clientkv.Snapshot{Account: "bob", Nick: "bob", Channels: []string{"#x"}}))

	mx := matrix.New(128, &matrix.Config{})
	cm := New(mx, kv, nil, Config{})
	require.NoError(t, cm.LoadAll())

	assert.Equal(t, []string{"#x"}, cm.Channels("bob"))
}

func TestReadMarkerNilStoreIsNoop(t *testing.T) {
	cm := newTestManager(t, Config{})
	require.NoError(t, cm.SetReadMarker("alice", "#d", 100))
	nt, err := cm.ReadMarker("alice", "#d")
	require.NoError(t, err)
	assert.Equal(t, int64(0), nt)
}
