// Package user implements the per-user state record (spec.md §3 "User").
//
// Grounded on the teacher's user.go (btnmasher/dircd): per-field RWMutex
// accessors generalized to the richer field set spec.md requires (UID,
// account, capability set, TLS fingerprint, silence/accept lists, channel
// membership mirror).
package user

import (
	"sync"

	"github.com/btnmasher/ironhall/internal/ircmsg"
)

// Mode is a bitmask of user modes (spec §3 "user modes").
type Mode uint32

const (
	ModeInvisible Mode = 1 << iota
	ModeWallops
	ModeOper
	ModeRegistered
	ModeTLSSecure
	ModeRegisteredOnlyPM
	ModeNoCTCP
	ModeBot
)

// Sink is the delivery endpoint for a connected session -- implemented by
// internal/connection's registered Conn. Kept as a narrow interface here
// so internal/user and internal/channel never need to import
// internal/connection directly.
type Sink interface {
	Deliver(*ircmsg.Message)
	Kill(reason string)
}

// User holds all state in the context of one connected entity. A user may
// own more than one transport session if attached via the bouncer
// (internal/bouncer), but the fields below are the authoritative identity
// and policy fields the Matrix and channel actors read.
type User struct {
	mu sync.RWMutex

	uid      string
	nick     string
	username string
	realname string

	rawIP       string
	realHost    string
	visibleHost string

	sessionID string // fresh UUID per accept; guards ghost joins during reconnect races.

	channels map[string]struct{} // case-folded channel names this user has joined.

	modes   Mode
	snomask map[byte]struct{}
	operType string

	account string // empty if not identified.

	away string

	caps ircmsg.CapSet

	certFingerprint string

	silence map[string]struct{} // hostmasks this user ignores.
	accept  map[string]struct{} // hostmasks explicitly allowed through silence for DMs.

	lastModified int64 // logical clock, bumped on any mutation relevant to WHO/WHOIS caches.

	sink Sink
}

// New constructs a User in its initial (pre-registration-complete) shape.
func New(uid string) *User {
	return &User{
		uid:      uid,
		channels: make(map[string]struct{}),
		snomask:  make(map[byte]struct{}),
		caps:     ircmsg.NewCapSet(),
		silence:  make(map[string]struct{}),
		accept:   make(map[string]struct{}),
	}
}

// UID returns the immutable server-scoped identifier.
func (u *User) UID() string { return u.uid }

func (u *User) Nick() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.nick
}

func (u *User) SetNick(nick string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.nick = nick
	u.lastModified++
}

func (u *User) Username() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.username
}

func (u *User) SetUsername(name string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.username = name
}

func (u *User) Realname() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.realname
}

func (u *User) SetRealname(real string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.realname = real
}

func (u *User) RawIP() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.rawIP
}

func (u *User) SetRawIP(ip string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.rawIP = ip
}

func (u *User) RealHost() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.realHost
}

func (u *User) SetRealHost(host string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.realHost = host
}

func (u *User) VisibleHost() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.visibleHost != "" {
		return u.visibleHost
	}
	return u.realHost
}

func (u *User) SetVisibleHost(host string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.visibleHost = host
}

func (u *User) SessionID() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.sessionID
}

func (u *User) SetSessionID(id string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.sessionID = id
}

// Hostmask returns "<nick>!<username>@<visiblehost>", the teacher's
// Hostmask() generalized to use the cloaked visible host.
func (u *User) Hostmask() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	host := u.visibleHost
	if host == "" {
		host = u.realHost
	}
	return u.nick + "!" + u.username + "@" + host
}

// RealHostmask never substitutes the cloaked host; used by opers.
func (u *User) RealHostmask() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.nick + "!" + u.username + "@" + u.realHost
}

func (u *User) Modes() Mode {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.modes
}

func (u *User) HasMode(m Mode) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.modes&m == m
}

func (u *User) AddMode(m Mode) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.modes |= m
}

func (u *User) DelMode(m Mode) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.modes &^= m
}

func (u *User) Snomasks() []byte {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make([]byte, 0, len(u.snomask))
	for c := range u.snomask {
		out = append(out, c)
	}
	return out
}

func (u *User) HasSnomask(c byte) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	_, ok := u.snomask[c]
	return ok
}

func (u *User) SetSnomask(c byte, enabled bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if enabled {
		u.snomask[c] = struct{}{}
	} else {
		delete(u.snomask, c)
	}
}

func (u *User) OperType() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.operType
}

func (u *User) SetOperType(t string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.operType = t
	u.modes |= ModeOper
}

// Account returns the identified account name, or "" if unregistered.
// Invariant (spec §3): modes.registered is true iff account is non-empty.
func (u *User) Account() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.account
}

func (u *User) SetAccount(account string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.account = account
	if account != "" {
		u.modes |= ModeRegistered
	} else {
		u.modes &^= ModeRegistered
	}
}

func (u *User) Away() (string, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.away, u.away != ""
}

func (u *User) SetAway(msg string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.away = msg
}

func (u *User) Caps() ircmsg.CapSet {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make(ircmsg.CapSet, len(u.caps))
	for k := range u.caps {
		out[k] = struct{}{}
	}
	return out
}

func (u *User) HasCap(cap string) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.caps.Has(cap)
}

func (u *User) AddCap(cap string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.caps.Add(cap)
}

func (u *User) DelCap(cap string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.caps.Del(cap)
}

func (u *User) CertFingerprint() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.certFingerprint
}

func (u *User) SetCertFingerprint(fp string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.certFingerprint = fp
}

// JoinedChannel records channel membership in the per-user mirror (spec §3
// invariant: "channels membership is a mirror of the per-channel members map").
func (u *User) JoinedChannel(folded string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.channels[folded] = struct{}{}
}

func (u *User) PartedChannel(folded string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.channels, folded)
}

func (u *User) Channels() []string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make([]string, 0, len(u.channels))
	for c := range u.channels {
		out = append(out, c)
	}
	return out
}

func (u *User) InChannel(folded string) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	_, ok := u.channels[folded]
	return ok
}

// SetSink attaches the delivery endpoint for this user's active session.
func (u *User) SetSink(s Sink) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.sink = s
}

// Deliver sends a message to the user's attached session, if any. A user
// with no attached sink (e.g. an always-on bouncer identity with no live
// connection) silently drops the message; history is expected to cover
// the gap per spec.md's CHATHISTORY semantics.
func (u *User) Deliver(msg *ircmsg.Message) {
	u.mu.RLock()
	sink := u.sink
	u.mu.RUnlock()
	if sink != nil {
		sink.Deliver(msg)
	}
}

// Kill forcibly disconnects the user's attached session, if any, with
// the given reason. Used by the NickServ GHOST/RECOVER effects.
func (u *User) Kill(reason string) {
	u.mu.RLock()
	sink := u.sink
	u.mu.RUnlock()
	if sink != nil {
		sink.Kill(reason)
	}
}

func (u *User) Silenced(mask string) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	_, ok := u.silence[mask]
	return ok
}

func (u *User) SetSilence(mask string, on bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if on {
		u.silence[mask] = struct{}{}
	} else {
		delete(u.silence, mask)
	}
}
