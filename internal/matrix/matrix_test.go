package matrix

import (
	"testing"

	"github.com/btnmasher/ironhall/internal/user"
	"github.com/stretchr/testify/assert"
)

func TestFoldNick(t *testing.T) {
	assert.Equal(t, "foo{bar}|baz^", FoldNick("FOO[BAR]\\BAZ~"))
}

func TestBindAndRenameNick(t *testing.T) {
	m := New(8, &Config{NetworkName: "TestNet"})
	u := user.New("uid-1")
	u.SetNick("alice")
	m.AddUser(u)

	assert.True(t, m.NickAvailable("alice"))
	assert.True(t, m.BindNick("alice", u.UID()))
	assert.False(t, m.NickAvailable("alice"))

	found, ok := m.UserByNick("Alice")
	assert.True(t, ok)
	assert.Equal(t, u.UID(), found.UID())

	assert.True(t, m.RenameNick(u.UID(), "alice", "alicia"))
	_, ok = m.UserByNick("alice")
	assert.False(t, ok)
	found, ok = m.UserByNick("alicia")
	assert.True(t, ok)
	assert.Equal(t, u.UID(), found.UID())
}

func TestRemoveUserClearsNick(t *testing.T) {
	m := New(8, &Config{})
	u := user.New("uid-2")
	u.SetNick("bob")
	m.AddUser(u)
	m.BindNick("bob", u.UID())

	m.RemoveUser(u.UID())
	_, ok := m.UserByUID(u.UID())
	assert.False(t, ok)
	assert.True(t, m.NickAvailable("bob"))
}

func TestMonitorAddRemove(t *testing.T) {
	m := New(8, &Config{})
	m.MonitorAdd("watcher-1", "carol")
	m.MonitorAdd("watcher-2", "carol")
	assert.ElementsMatch(t, []string{"watcher-1", "watcher-2"}, m.MonitorWatchers("Carol"))

	m.MonitorRemove("watcher-1", "carol")
	assert.Equal(t, []string{"watcher-2"}, m.MonitorWatchers("carol"))

	m.MonitorRemoveAll("watcher-2")
	assert.Empty(t, m.MonitorWatchers("carol"))
}

func TestWhowasRing(t *testing.T) {
	m := New(2, &Config{})
	m.RecordWhowas(WhowasEntry{Nick: "dave", Username: "d1"})
	m.RecordWhowas(WhowasEntry{Nick: "dave", Username: "d2"})
	m.RecordWhowas(WhowasEntry{Nick: "erin", Username: "e1"})

	entries := m.Whowas("dave", 0)
	assert.Len(t, entries, 1)
	assert.Equal(t, "d2", entries[0].Username)
}

func TestSnomaskSubscribers(t *testing.T) {
	m := New(8, &Config{})
	m.SnomaskSubscribe('c', "oper-1")
	m.SnomaskSubscribe('c', "oper-2")
	assert.ElementsMatch(t, []string{"oper-1", "oper-2"}, m.SnomaskSubscribers('c'))

	m.SnomaskUnsubscribe('c', "oper-1")
	assert.Equal(t, []string{"oper-2"}, m.SnomaskSubscribers('c'))
}

func TestConfigHotSwap(t *testing.T) {
	m := New(8, &Config{NetworkName: "Old"})
	assert.Equal(t, "Old", m.Config().NetworkName)
	m.SetConfig(&Config{NetworkName: "New"})
	assert.Equal(t, "New", m.Config().NetworkName)
}
