// Package bouncer implements the always-on client layer (spec.md §4.7
// "Always-on clients"): a ClientManager tracking per-account state
// (attached sessions, devices, channel memberships, last-seen nick)
// independent of any single live connection, so a client can detach and
// later reattach -- possibly from a different transport session, or
// several at once if multiclient is enabled -- without losing state.
// MONITOR and WHOWAS (internal/matrix) and read markers
// (internal/store/sqlstore) are surfaced through the same ClientManager
// API since all three are always-on-client concerns from the caller's
// perspective, even though their storage lives elsewhere.
//
// Grounded on the teacher's ConnMap (conn_map.go) for the
// registry-of-live-state shape, generalized from "one entry per
// connection" to "one entry per account, fanning out to N sessions."
// The dirty-bit writeback to internal/store/clientkv is grounded on
// oragono's always-on client persistence, named in SPEC_FULL.md's domain
// stack table.
package bouncer

import (
	"strings"
	"sync"
	"time"

	"github.com/btnmasher/ironhall/internal/matrix"
	"github.com/btnmasher/ironhall/internal/store/clientkv"
)

// Kind enumerates the outcomes of Attach and Detach.
type Kind int

const (
	Created Kind = iota
	Attached
	MulticlientNotAllowed
	TooManySessions
	Detached
	Persisting
	Destroyed
)

// AttachOutcome is the result of a session joining an account's
// always-on state.
type AttachOutcome struct {
	Kind         Kind
	FirstSession bool // true if this session is the only one attached
}

// DetachOutcome is the result of a session leaving an account's
// always-on state.
type DetachOutcome struct {
	Kind      Kind
	Remaining int // sessions still attached after this detach
}

// ReadMarkerStore is the narrow persistence surface ClientManager needs
// for read markers, satisfied by *sqlstore.Store without this package
// importing database/sql directly.
type ReadMarkerStore interface {
	SetReadMarker(account, target string, nanotime int64) error
	ReadMarker(account, target string) (int64, error)
}

type clientState struct {
	account  string
	nick     string
	sessions map[string]struct{} // session/UID ids currently attached
	devices  map[string]struct{}
	channels map[string]struct{}
}

func newClientState(account string) *clientState {
	return &clientState{
		account:  account,
		sessions: make(map[string]struct{}),
		devices:  make(map[string]struct{}),
		channels: make(map[string]struct{}),
	}
}

func (c *clientState) snapshot() clientkv.Snapshot {
	snap := clientkv.Snapshot{Account: c.account, Nick: c.nick, LastWriteNs: time.Now().UnixNano()}
	for ch := range c.channels {
		snap.Channels = append(snap.Channels, ch)
	}
	for d := range c.devices {
		snap.Devices = append(snap.Devices, d)
	}
	return snap
}

// Config bounds multiclient behavior (spec.md's Attach outcomes).
type Config struct {
	AllowMulticlient bool
	MaxSessions      int // 0 means unlimited
}

// ClientManager is the in-memory registry of always-on client state,
// backed by clientkv for crash recovery.
type ClientManager struct {
	mx  *matrix.Matrix
	kv  *clientkv.Store
	rms ReadMarkerStore
	cfg Config

	mu      sync.Mutex
	clients map[string]*clientState // keyed by case-folded account
	dirty   map[string]struct{}
}

// New constructs a ClientManager. mx and kv must be non-nil; rms may be
// nil if read-marker tracking is not wired (markers will then always
// report zero and writes are silently dropped).
func New(mx *matrix.Matrix, kv *clientkv.Store, rms ReadMarkerStore, cfg Config) *ClientManager {
	return &ClientManager{
		mx:      mx,
		kv:      kv,
		rms:     rms,
		cfg:     cfg,
		clients: make(map[string]*clientState),
		dirty:   make(map[string]struct{}),
	}
}

// fold matches clientkv's account key casefolding: accounts are plain
// ASCII-lowercased, unlike nicks which follow RFC 1459 casemapping
// (matrix.FoldNick).
func fold(account string) string {
	return strings.ToLower(account)
}

// LoadAll rehydrates in-memory client state from clientkv, called once at
// startup before any sessions attach.
func (cm *ClientManager) LoadAll() error {
	snaps, err := cm.kv.All()
	if err != nil {
		return err
	}
	cm.mu.Lock()
	defer cm.mu.Unlock()
	for _, snap := range snaps {
		cs := newClientState(snap.Account)
		cs.nick = snap.Nick
		for _, ch := range snap.Channels {
			cs.channels[ch] = struct{}{}
		}
		for _, d := range snap.Devices {
			cs.devices[d] = struct{}{}
		}
		cm.clients[fold(snap.Account)] = cs
	}
	return nil
}

// Attach joins a session (identified by uid, an ephemeral transport-level
// id) and an opaque device identifier to an account's always-on state,
// per spec.md's Attach outcomes.
func (cm *ClientManager) Attach(account, uid, device, nick string) AttachOutcome {
	key := fold(account)

	cm.mu.Lock()
	defer cm.mu.Unlock()

	cs, exists := cm.clients[key]
	if !exists {
		cs = newClientState(account)
		cs.nick = nick
		cm.clients[key] = cs
		cs.sessions[uid] = struct{}{}
		if device != "" {
			cs.devices[device] = struct{}{}
		}
		cm.markDirtyLocked(key)
		return AttachOutcome{Kind: Created, FirstSession: true}
	}

	if len(cs.sessions) > 0 && !cm.cfg.AllowMulticlient {
		return AttachOutcome{Kind: MulticlientNotAllowed}
	}
	if cm.cfg.MaxSessions > 0 && len(cs.sessions) >= cm.cfg.MaxSessions {
		return AttachOutcome{Kind: TooManySessions}
	}

	firstSession := len(cs.sessions) == 0
	cs.sessions[uid] = struct{}{}
	cs.nick = nick
	if device != "" {
		cs.devices[device] = struct{}{}
	}
	cm.markDirtyLocked(key)
	return AttachOutcome{Kind: Attached, FirstSession: firstSession}
}

// Detach removes a session from an account's always-on state. alwaysOn
// controls whether the account's state persists with zero sessions
// attached (true: Persisting) or is torn down immediately (false:
// Destroyed).
func (cm *ClientManager) Detach(account, uid string, alwaysOn bool) DetachOutcome {
	key := fold(account)

	cm.mu.Lock()
	defer cm.mu.Unlock()

	cs, exists := cm.clients[key]
	if !exists {
		return DetachOutcome{Kind: Destroyed, Remaining: 0}
	}

	delete(cs.sessions, uid)
	remaining := len(cs.sessions)
	cm.markDirtyLocked(key)

	if remaining > 0 {
		return DetachOutcome{Kind: Detached, Remaining: remaining}
	}
	if alwaysOn {
		return DetachOutcome{Kind: Persisting, Remaining: 0}
	}
	delete(cm.clients, key)
	delete(cm.dirty, key)
	_ = cm.kv.Delete(account)
	return DetachOutcome{Kind: Destroyed, Remaining: 0}
}

// JoinChannel and LeaveChannel track channel-membership state that
// survives detach, used to rejoin channels automatically on reattach.
func (cm *ClientManager) JoinChannel(account, channel string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	key := fold(account)
	cs, ok := cm.clients[key]
	if !ok {
		return
	}
	cs.channels[channel] = struct{}{}
	cm.markDirtyLocked(key)
}

func (cm *ClientManager) LeaveChannel(account, channel string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	key := fold(account)
	cs, ok := cm.clients[key]
	if !ok {
		return
	}
	delete(cs.channels, channel)
	cm.markDirtyLocked(key)
}

// Channels returns the channels an account's always-on state currently
// remembers, used to replay joins on reattach.
func (cm *ClientManager) Channels(account string) []string {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cs, ok := cm.clients[fold(account)]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(cs.channels))
	for ch := range cs.channels {
		out = append(out, ch)
	}
	return out
}

// SessionCount reports how many sessions are currently attached.
func (cm *ClientManager) SessionCount(account string) int {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cs, ok := cm.clients[fold(account)]
	if !ok {
		return 0
	}
	return len(cs.sessions)
}

func (cm *ClientManager) markDirtyLocked(key string) {
	cm.dirty[key] = struct{}{}
}

// FlushDirty writes every account marked dirty since the last flush to
// clientkv, called periodically (and on shutdown) by the owning server
// loop.
func (cm *ClientManager) FlushDirty() error {
	cm.mu.Lock()
	toFlush := make([]clientkv.Snapshot, 0, len(cm.dirty))
	for key := range cm.dirty {
		if cs, ok := cm.clients[key]; ok {
			toFlush = append(toFlush, cs.snapshot())
		}
	}
	cm.dirty = make(map[string]struct{})
	cm.mu.Unlock()

	var firstErr error
	for _, snap := range toFlush {
		if err := cm.kv.Save(snap); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// --- MONITOR / WHOWAS passthrough ------------------------------------------

// MonitorAdd delegates to the Matrix's MONITOR reverse index.
func (cm *ClientManager) MonitorAdd(watcherUID, targetNick string) {
	cm.mx.MonitorAdd(watcherUID, targetNick)
}

// MonitorRemove delegates to the Matrix's MONITOR reverse index.
func (cm *ClientManager) MonitorRemove(watcherUID, targetNick string) {
	cm.mx.MonitorRemove(watcherUID, targetNick)
}

// MonitorRemoveAll delegates to the Matrix's MONITOR reverse index.
func (cm *ClientManager) MonitorRemoveAll(watcherUID string) {
	cm.mx.MonitorRemoveAll(watcherUID)
}

// MonitorWatchers delegates to the Matrix's MONITOR reverse index.
func (cm *ClientManager) MonitorWatchers(nick string) []string {
	return cm.mx.MonitorWatchers(nick)
}

// Whowas delegates to the Matrix's WHOWAS ring.
func (cm *ClientManager) Whowas(nick string, limit int) []matrix.WhowasEntry {
	return cm.mx.Whowas(nick, limit)
}

// RecordWhowas delegates to the Matrix's WHOWAS ring.
func (cm *ClientManager) RecordWhowas(e matrix.WhowasEntry) {
	cm.mx.RecordWhowas(e)
}

// --- read markers -----------------------------------------------------------

// SetReadMarker advances an account's read marker for target, a no-op if
// no ReadMarkerStore was wired in.
func (cm *ClientManager) SetReadMarker(account, target string, nanotime int64) error {
	if cm.rms == nil {
		return nil
	}
	return cm.rms.SetReadMarker(account, target, nanotime)
}

// ReadMarker returns an account's read marker for target, 0 if none was
// ever set or no ReadMarkerStore was wired in.
func (cm *ClientManager) ReadMarker(account, target string) (int64, error) {
	if cm.rms == nil {
		return 0, nil
	}
	return cm.rms.ReadMarker(account, target)
}
