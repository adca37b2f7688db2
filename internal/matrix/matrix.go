// Package matrix implements the shared-state container (spec.md §4.1 "The
// Matrix"): the sharded set of concurrent indices every connection
// goroutine and channel actor reads and writes. It never serializes
// mutation through a single goroutine (unlike the per-channel actor in
// internal/channel); instead it relies on the generic ConcurrentMap from
// the teacher's shared/concurrentmap, generalized here from the
// single-purpose ChanMap/ConnMap in chan_map.go/conn_map.go into indices
// keyed by every identity the server needs to look entities up by.
//
// Lock order: callers that must hold a user's lock and touch the Matrix
// at the same time always acquire the Matrix index lock first, then the
// user lock, never the reverse -- this mirrors the teacher's Server/Conn
// convention in server.go where the ConnMap lock is always taken before
// any individual Conn's internal state.
package matrix

import (
	"strings"
	"sync"
	"time"

	"github.com/btnmasher/ironhall/internal/ircmsg"
	"github.com/btnmasher/ironhall/internal/user"
	"github.com/btnmasher/ironhall/shared/concurrentmap"
)

// Matrix is the server's central shared-state container. One instance is
// constructed at startup and threaded through every connection, channel
// actor, and dispatcher handler.
type Matrix struct {
	users concurrentmap.ConcurrentMap[string, *user.User] // keyed by UID
	nicks concurrentmap.ConcurrentMap[string, string]     // case-folded nick -> UID

	channels concurrentmap.ConcurrentMap[string, ChannelHandle] // case-folded name -> actor handle

	monitor concurrentmap.ConcurrentMap[string, map[string]struct{}] // case-folded target nick -> watcher UIDs

	whowasMu   sync.Mutex
	whowas     []WhowasEntry
	whowasNext int
	whowasCap  int

	snomaskMu   sync.RWMutex
	snomaskSubs map[byte]map[string]struct{} // snomask char -> oper UIDs subscribed

	config atomicConfig
}

// ChannelHandle is the thin, copyable reference to a channel actor that
// the Matrix stores -- it is implemented by *channel.Channel but declared
// here to avoid an import cycle between internal/matrix and
// internal/channel (the channel package imports the Matrix to resolve
// users, so the Matrix cannot import it back).
type ChannelHandle interface {
	Name() string
	Send(event any) // fire-and-forget actor mailbox send; events defined in internal/channel.
}

// WhowasEntry is one ring-buffer slot recording a departed nick's last
// known identity, per spec.md's WHOWAS history requirement.
type WhowasEntry struct {
	Nick     string
	Username string
	Host     string
	Realname string
	Server   string
	Time     time.Time
}

// Config is the hot-reloadable subset of server configuration the Matrix
// exposes to every goroutine without requiring a restart -- network name,
// server password, MOTD, length limits, and similar values reloads can
// swap atomically per spec.md's configuration requirements.
type Config struct {
	NetworkName    string
	ServerName     string
	ServerPassword string
	MOTD           []string
	MaxNickLen     int
	MaxChanLen     int
	MaxTopicLen    int
}

type atomicConfig struct {
	mu  sync.RWMutex
	cfg *Config
}

func (a *atomicConfig) load() *Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

func (a *atomicConfig) store(cfg *Config) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg = cfg
}

// New constructs an empty Matrix with the given whowas ring capacity and
// initial configuration snapshot.
func New(whowasCap int, cfg *Config) *Matrix {
	if whowasCap <= 0 {
		whowasCap = 128
	}
	m := &Matrix{
		users:       concurrentmap.New[string, *user.User](),
		nicks:       concurrentmap.New[string, string](),
		channels:    concurrentmap.New[string, ChannelHandle](),
		monitor:     concurrentmap.New[string, map[string]struct{}](),
		whowas:      make([]WhowasEntry, whowasCap),
		whowasCap:   whowasCap,
		snomaskSubs: make(map[byte]map[string]struct{}),
	}
	m.config.store(cfg)
	return m
}

// FoldNick lowercases a nick per the server's casemapping (spec.md uses
// rfc1459 casefolding: []\~ map onto {}|^).
func FoldNick(nick string) string {
	b := []byte(strings.ToLower(nick))
	for i, c := range b {
		switch c {
		case '[':
			b[i] = '{'
		case ']':
			b[i] = '}'
		case '\\':
			b[i] = '|'
		case '~':
			b[i] = '^'
		}
	}
	return string(b)
}

// FoldChannel case-folds a channel name the same way nicks are folded;
// the leading sigil (#, &, +, !) is preserved verbatim.
func FoldChannel(name string) string {
	return FoldNick(name)
}

// Config returns the current hot-reloadable configuration snapshot.
func (m *Matrix) Config() *Config { return m.config.load() }

// SetConfig atomically swaps in a newly reloaded configuration snapshot.
func (m *Matrix) SetConfig(cfg *Config) { m.config.store(cfg) }

// --- Users & nicks -----------------------------------------------------

// AddUser registers a newly connected user under its UID. The caller must
// not also hold a nick reservation for the same identity; use
// BindNick for the nick index.
func (m *Matrix) AddUser(u *user.User) {
	m.users.Set(u.UID(), u)
}

// RemoveUser removes a user and its nick binding. Safe to call more than
// once; it is a no-op if the UID is already gone.
func (m *Matrix) RemoveUser(uid string) {
	if u, ok := m.users.Get(uid); ok {
		m.nicks.Delete(FoldNick(u.Nick()))
	}
	m.users.Delete(uid)
}

// UserByUID looks a user up by its immutable server-scoped identifier.
func (m *Matrix) UserByUID(uid string) (*user.User, bool) {
	return m.users.Get(uid)
}

// UserByNick looks a user up by nickname, applying casefolding.
func (m *Matrix) UserByNick(nick string) (*user.User, bool) {
	uid, ok := m.nicks.Get(FoldNick(nick))
	if !ok {
		return nil, false
	}
	return m.users.Get(uid)
}

// NickAvailable reports whether the given nick is free to claim.
func (m *Matrix) NickAvailable(nick string) bool {
	return !m.nicks.Exists(FoldNick(nick))
}

// BindNick atomically claims a nick for a UID. Returns false without
// mutating anything if the folded nick is already taken by a different
// UID (the caller is expected to have already checked NickAvailable under
// the same external serialization point -- nick registration is
// serialized per-connection during the handshake, so this is a simple
// check-then-set rather than a CAS).
func (m *Matrix) BindNick(nick, uid string) bool {
	folded := FoldNick(nick)
	if existing, ok := m.nicks.Get(folded); ok && existing != uid {
		return false
	}
	m.nicks.Set(folded, uid)
	return true
}

// RenameNick moves the nick binding from oldNick to newNick for the given
// UID. Returns false if newNick is already bound to a different UID; the
// caller (HandleNick) is responsible for the channel NICK fan-out and
// MONITOR notifications once this succeeds.
func (m *Matrix) RenameNick(uid, oldNick, newNick string) bool {
	folded := FoldNick(newNick)
	if existing, ok := m.nicks.Get(folded); ok && existing != uid {
		return false
	}
	m.nicks.Delete(FoldNick(oldNick))
	m.nicks.Set(folded, uid)
	return true
}

// AllUsers returns a snapshot slice of every connected user. Callers must
// not assume the slice stays current.
func (m *Matrix) AllUsers() []*user.User {
	return m.users.Values()
}

// --- Channels ------------------------------------------------------------

// RegisterChannel installs a channel actor handle under its case-folded
// name. Returns false if one is already registered (the caller should
// have checked ChannelByName first under the join-creation lock the
// channel actor package serializes through).
func (m *Matrix) RegisterChannel(name string, h ChannelHandle) bool {
	folded := FoldChannel(name)
	if m.channels.Exists(folded) {
		return false
	}
	m.channels.Set(folded, h)
	return true
}

// UnregisterChannel removes a channel actor handle, called from the
// actor's onEmpty callback when the last member parts. It only drops the
// handle from the index; it does not stop the actor.
func (m *Matrix) UnregisterChannel(name string) {
	m.channels.Delete(FoldChannel(name))
}

// ChannelByName looks up a channel actor handle by name.
func (m *Matrix) ChannelByName(name string) (ChannelHandle, bool) {
	return m.channels.Get(FoldChannel(name))
}

// AllChannels returns a snapshot of every registered channel handle.
func (m *Matrix) AllChannels() []ChannelHandle {
	return m.channels.Values()
}

// --- MONITOR reverse index ----------------------------------------------

// MonitorAdd records that watcherUID wants online/offline notifications
// for targetNick.
func (m *Matrix) MonitorAdd(watcherUID, targetNick string) {
	folded := FoldNick(targetNick)
	watchers, ok := m.monitor.Get(folded)
	if !ok {
		watchers = make(map[string]struct{})
	}
	watchers[watcherUID] = struct{}{}
	m.monitor.Set(folded, watchers)
}

// MonitorRemove drops a single watch.
func (m *Matrix) MonitorRemove(watcherUID, targetNick string) {
	folded := FoldNick(targetNick)
	watchers, ok := m.monitor.Get(folded)
	if !ok {
		return
	}
	delete(watchers, watcherUID)
	if len(watchers) == 0 {
		m.monitor.Delete(folded)
	} else {
		m.monitor.Set(folded, watchers)
	}
}

// MonitorRemoveAll drops every watch the given watcher has registered,
// called on disconnect.
func (m *Matrix) MonitorRemoveAll(watcherUID string) {
	for _, nick := range m.monitor.Keys() {
		m.MonitorRemove(watcherUID, nick)
	}
}

// MonitorWatchers returns the UIDs watching a given nick.
func (m *Matrix) MonitorWatchers(nick string) []string {
	watchers, ok := m.monitor.Get(FoldNick(nick))
	if !ok {
		return nil
	}
	out := make([]string, 0, len(watchers))
	for uid := range watchers {
		out = append(out, uid)
	}
	return out
}

// NotifyMonitorOnline delivers RplMonOnline (730) to every watcher of
// nick, called once a session completes registration or claims a new
// nick via a rename (spec.md §4.3, §4.7).
func (m *Matrix) NotifyMonitorOnline(nick, hostmask string) {
	m.notifyMonitor(nick, ircmsg.RplMonOnline, hostmask)
}

// NotifyMonitorOffline delivers RplMonOffline (731) to every watcher of
// nick, called on disconnect or the losing side of a nick change.
func (m *Matrix) NotifyMonitorOffline(nick string) {
	m.notifyMonitor(nick, ircmsg.RplMonOffline, nick)
}

func (m *Matrix) notifyMonitor(nick string, code uint16, trailing string) {
	watchers := m.MonitorWatchers(nick)
	if len(watchers) == 0 {
		return
	}
	server := m.Config().ServerName
	for _, watcherUID := range watchers {
		watcher, ok := m.UserByUID(watcherUID)
		if !ok {
			continue
		}
		watcher.Deliver(&ircmsg.Message{
			Prefix: server, Code: code,
			Params: []string{watcher.Nick()}, Trailing: trailing, HasTrailing: true,
		})
	}
}

// DisconnectUser performs the bookkeeping common to every disconnect path
// -- ping timeout, socket error, KILL, or an explicit QUIT -- recording a
// WHOWAS entry, telling MONITOR watchers the nick went offline, and
// dropping the user from the user/nick/monitor indices. It does not part
// channels or broadcast QUIT itself: this package cannot import
// internal/channel to build those events without an import cycle (that
// package already imports internal/matrix to resolve members), so the
// caller -- internal/connection's cleanup -- sends the channel fan-out
// through the ChannelHandle values it already holds before calling this.
func (m *Matrix) DisconnectUser(u *user.User, reason string) {
	m.RecordWhowas(WhowasEntry{
		Nick:     u.Nick(),
		Username: u.Username(),
		Host:     u.VisibleHost(),
		Realname: u.Realname(),
		Server:   m.Config().ServerName,
	})
	m.NotifyMonitorOffline(u.Nick())
	m.RemoveUser(u.UID())
	m.MonitorRemoveAll(u.UID())
}

// --- WHOWAS ring ----------------------------------------------------------

// RecordWhowas appends an entry to the fixed-size ring buffer, overwriting
// the oldest entry once the ring fills, per spec.md's bounded-memory
// WHOWAS requirement.
func (m *Matrix) RecordWhowas(e WhowasEntry) {
	m.whowasMu.Lock()
	defer m.whowasMu.Unlock()
	e.Time = time.Now()
	m.whowas[m.whowasNext] = e
	m.whowasNext = (m.whowasNext + 1) % m.whowasCap
}

// Whowas returns up to limit most-recent entries for the given nick, most
// recent first.
func (m *Matrix) Whowas(nick string, limit int) []WhowasEntry {
	m.whowasMu.Lock()
	defer m.whowasMu.Unlock()

	folded := FoldNick(nick)
	var out []WhowasEntry
	for i := 0; i < m.whowasCap; i++ {
		idx := (m.whowasNext - 1 - i + m.whowasCap) % m.whowasCap
		e := m.whowas[idx]
		if e.Nick == "" {
			continue
		}
		if FoldNick(e.Nick) == folded {
			out = append(out, e)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out
}

// --- snomask fan-out -------------------------------------------------------

// SnomaskSubscribe adds uid to the set of operators who receive server
// notices tagged with the given snomask character.
func (m *Matrix) SnomaskSubscribe(snomask byte, uid string) {
	m.snomaskMu.Lock()
	defer m.snomaskMu.Unlock()
	set, ok := m.snomaskSubs[snomask]
	if !ok {
		set = make(map[string]struct{})
		m.snomaskSubs[snomask] = set
	}
	set[uid] = struct{}{}
}

// SnomaskUnsubscribe removes uid from a snomask's subscriber set.
func (m *Matrix) SnomaskUnsubscribe(snomask byte, uid string) {
	m.snomaskMu.Lock()
	defer m.snomaskMu.Unlock()
	if set, ok := m.snomaskSubs[snomask]; ok {
		delete(set, uid)
	}
}

// SnomaskSubscribers returns the UIDs currently subscribed to a snomask.
func (m *Matrix) SnomaskSubscribers(snomask byte) []string {
	m.snomaskMu.RLock()
	defer m.snomaskMu.RUnlock()
	set := m.snomaskSubs[snomask]
	out := make([]string, 0, len(set))
	for uid := range set {
		out = append(out, uid)
	}
	return out
}
