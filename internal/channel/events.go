package channel

import (
	"strings"
	"time"

	"github.com/btnmasher/ironhall/internal/ircmsg"
	"github.com/btnmasher/ironhall/internal/matrix"
)

// event is the internal mailbox item interface every exported event type
// satisfies. Only this package implements it, so Send's type assertion in
// channel.go can never accept a foreign type.
type event interface {
	apply(c *Channel)
}

// Snapshot is the read-only view an actor hands back to callers that need
// to render NAMES, WHO, or a join/part notification after a mutation.
type Snapshot struct {
	Name    string
	Topic   string
	TopicBy string
	TopicAt time.Time
	Modes   Mode
	Key     string
	Limit   int
	Members []MemberView
}

// MemberView is one member's externally visible state.
type MemberView struct {
	UID   string
	Nick  string
	Flags Flag
}

// --- Join ----------------------------------------------------------------

// JoinEvent adds a user to the channel. Reply carries the post-join
// snapshot on success, or the rejection reason in Err. A join with
// Founder set skips every entry check and makes the joiner founder.
type JoinEvent struct {
	UID          string
	Nick         string
	Hostmask     string
	Key          string
	Invited      bool
	Founder      bool // true only for the very first join of a freshly created channel
	IsTLS        bool
	IsRegistered bool
	IsOper       bool
	IsAdmin      bool
	Reply        chan JoinResult
}

type JoinResult struct {
	OK       bool
	Err      error
	Snapshot Snapshot
}

func (e JoinEvent) apply(c *Channel) {
	var res JoinResult

	if _, already := c.members[e.UID]; already {
		res.Err = ErrAlreadyJoined
		e.reply(res)
		return
	}

	if !e.Founder {
		if c.modes&ModeLimit != 0 && c.limit > 0 && c.memberCount() >= c.limit {
			res.Err = ErrChannelFull
			e.reply(res)
			return
		}
		_, hasInvite := c.invited[e.UID]
		if c.modes&ModeInviteOnly != 0 && !e.Invited && !hasInvite && !c.invex.matches(e.Hostmask) {
			res.Err = ErrInviteOnly
			e.reply(res)
			return
		}
		if c.bans.matches(e.Hostmask) && !c.excepts.matches(e.Hostmask) {
			res.Err = ErrBanned
			e.reply(res)
			return
		}
		if c.modes&ModeKeyed != 0 && c.key != "" && c.key != e.Key {
			res.Err = ErrBadKey
			e.reply(res)
			return
		}
		if c.modes&ModeTLSOnly != 0 && !e.IsTLS {
			res.Err = ErrNotTLS
			e.reply(res)
			return
		}
		if c.modes&ModeRegisteredOnlyJoin != 0 && !e.IsRegistered {
			res.Err = ErrBlockedRegisteredOnly
			e.reply(res)
			return
		}
		if c.modes&ModeAdminOnly != 0 && !e.IsAdmin {
			res.Err = ErrNotAdmin
			e.reply(res)
			return
		} else if c.modes&ModeOperOnly != 0 && !e.IsOper {
			res.Err = ErrNotOper
			e.reply(res)
			return
		}
	}

	flags := Flag(0)
	if e.Founder {
		flags = FlagFounder
	}

	c.members[e.UID] = &member{uid: e.UID, nick: e.Nick, flags: flags, joinedAt: time.Now()}
	delete(c.invited, e.UID)

	res.OK = true
	res.Snapshot = c.snapshot()
	e.reply(res)
}

func (e JoinEvent) reply(r JoinResult) {
	if e.Reply != nil {
		e.Reply <- r
	}
}

// --- Part ------------------------------------------------------------------

// PartEvent removes a user from the channel. If the part empties the
// channel and it is not +P, the actor invokes onEmpty after replying. The
// actor goroutine does not stop itself; Run returns only once Stop sends
// it a shutdown event.
type PartEvent struct {
	UID     string
	Reason  string
	Reply   chan PartResult
}

type PartResult struct {
	OK       bool
	Err      error
	Snapshot Snapshot
	Emptied  bool
}

func (e PartEvent) apply(c *Channel) {
	var res PartResult
	if _, ok := c.members[e.UID]; !ok {
		res.Err = ErrNotOnChannel
		if e.Reply != nil {
			e.Reply <- res
		}
		return
	}
	delete(c.members, e.UID)
	res.OK = true
	res.Snapshot = c.snapshot()
	res.Emptied = c.isEmpty()
	if e.Reply != nil {
		e.Reply <- res
	}
	if res.Emptied && c.onEmpty != nil && c.modes&ModePermanent == 0 {
		c.onEmpty(c.name)
	}
}

// --- Kick --------------------------------------------------------------

// KickEvent forcibly removes a member. Unless Force is set (services/
// oper-initiated kicks), the actor itself gates the kick: the kicker must
// be op-or-above, or halfop against a target below op, and +Q forbids any
// non-services kick outright.
type KickEvent struct {
	KickerUID string
	TargetUID string
	Force     bool
	Reply     chan PartResult
}

func (e KickEvent) apply(c *Channel) {
	if !e.Force {
		if c.modes&ModeOperKickOnly != 0 {
			e.replyErr(ErrNoPrivilege)
			return
		}
		kicker, ok := c.members[e.KickerUID]
		if !ok {
			e.replyErr(ErrNotOnChannel)
			return
		}
		target := c.members[e.TargetUID]
		targetIsOp := target != nil && target.flags.IsOpOrAbove()
		switch {
		case kicker.flags.IsOpOrAbove():
			// op and above may kick anyone
		case kicker.flags&FlagHalfOp != 0 && !targetIsOp:
			// halfop may kick anyone below op
		default:
			e.replyErr(ErrNoPrivilege)
			return
		}
	}
	PartEvent{UID: e.TargetUID, Reply: e.Reply}.apply(c)
}

func (e KickEvent) replyErr(err error) {
	if e.Reply != nil {
		e.Reply <- PartResult{Err: err}
	}
}

// --- Messaging ----------------------------------------------------------

// RelayEvent fans a rendered protocol line (JOIN/PART/KICK/TOPIC/MODE/QUIT
// confirmation) out to every member, minus the sender when ExcludeUID is
// set for echo-message-less clients. It is never gated by channel modes:
// these are the actor's own authoritative notifications of a mutation it
// already applied, the Broadcast analogue from spec.md §4.2, distinct
// from the gated Message event below.
type RelayEvent struct {
	Msg        *ircmsg.Message
	ExcludeUID string
	Reply      chan RelayResult
}

type RelayResult struct {
	OK  bool
	Err error
}

func (e RelayEvent) apply(c *Channel) {
	for uid := range c.members {
		if uid == e.ExcludeUID {
			continue
		}
		if u, ok := c.mx().UserByUID(uid); ok {
			u.Deliver(e.Msg)
		}
	}
	if e.Reply != nil {
		e.Reply <- RelayResult{OK: true}
	}
}

func (c *Channel) mx() *matrix.Matrix { return c.matrixRef }

// MessageEvent delivers a PRIVMSG/NOTICE to the channel, gated by spec.md
// §4.2's full evaluation order for the Message event: external-message
// block, registered-only, TLS-only, moderated, notice-block, CTCP-block,
// then -- for non-ops -- ban and quiet, with an except taking precedence
// over either per the §3 invariant.
type MessageEvent struct {
	Msg            *ircmsg.Message
	ExcludeUID     string
	SenderUID      string
	SenderHostmask string
	IsNotice       bool
	IsRegistered   bool
	IsTLS          bool
	Reply          chan RelayResult
}

func (e MessageEvent) apply(c *Channel) {
	sender, isMember := c.members[e.SenderUID]

	if !isMember && c.modes&ModeNoExternal != 0 {
		e.reject(ErrBlockedExternal)
		return
	}
	if !e.IsRegistered && c.modes&(ModeRegisteredOnlyJoin|ModeRegisteredChannel) != 0 {
		e.reject(ErrBlockedRegisteredOnly)
		return
	}
	if !e.IsTLS && c.modes&ModeTLSOnly != 0 {
		e.reject(ErrNotTLS)
		return
	}
	if !e.IsRegistered && c.modes&ModeModeratedUnreg != 0 {
		e.reject(ErrBlockedRegisteredOnly)
		return
	}
	if c.modes&ModeModerated != 0 {
		if !isMember || sender.flags.rank() < 1 {
			e.reject(ErrNoVoice)
			return
		}
	}
	if e.IsNotice && c.modes&ModeNoNotice != 0 {
		if !isMember || sender.flags.rank() < 2 {
			e.reject(ErrBlockedNotice)
			return
		}
	}
	if c.modes&ModeNoCTCP != 0 && isCTCP(e.Msg.Trailing) && !isActionCTCP(e.Msg.Trailing) {
		e.reject(ErrBlockedCTCP)
		return
	}
	if !isMember || !sender.flags.IsOpOrAbove() {
		if c.bans.matches(e.SenderHostmask) && !c.excepts.matches(e.SenderHostmask) {
			e.reject(ErrBanned)
			return
		}
		if c.quiets.matches(e.SenderHostmask) && !c.excepts.matches(e.SenderHostmask) {
			e.reject(ErrNoVoice)
			return
		}
	}

	for uid := range c.members {
		if uid == e.ExcludeUID {
			continue
		}
		if u, ok := c.mx().UserByUID(uid); ok {
			u.Deliver(e.Msg)
		}
	}
	if e.Reply != nil {
		e.Reply <- RelayResult{OK: true}
	}
}

func (e MessageEvent) reject(err error) {
	if e.Reply != nil {
		e.Reply <- RelayResult{Err: err}
	}
}

func isCTCP(text string) bool {
	return len(text) >= 2 && text[0] == '\x01' && text[len(text)-1] == '\x01'
}

func isActionCTCP(text string) bool {
	return isCTCP(text) && strings.HasPrefix(text[1:], "ACTION")
}

// --- Nick change -----------------------------------------------------------

// NickChangeEvent updates a member's nick in the actor's own membership
// map after a rename succeeds in the Matrix's nick index, keeping the two
// in sync per spec.md §4.2. It carries no reply -- the rename itself
// already succeeded or failed in the Matrix before this event is sent,
// so there is nothing left for the caller to wait on.
type NickChangeEvent struct {
	UID     string
	NewNick string
}

func (e NickChangeEvent) apply(c *Channel) {
	if m, ok := c.members[e.UID]; ok {
		m.nick = e.NewNick
	}
}

// --- Topic ---------------------------------------------------------------

// TopicEvent reads or writes the topic. If Set is false it is a pure
// read; SetterUID/NewTopic/Force are ignored. +t requires the setter to
// be op-or-above unless Force is set (services/oper override).
type TopicEvent struct {
	Set       bool
	NewTopic  string
	SetterUID string
	Force     bool
	Reply     chan TopicResult
}

type TopicResult struct {
	Topic   string
	SetBy   string
	SetAt   time.Time
	Err     error
}

func (e TopicEvent) apply(c *Channel) {
	if e.Set {
		if c.modes&ModeTopicLock != 0 && !e.Force {
			setter, ok := c.members[e.SetterUID]
			if !ok || !setter.flags.IsOpOrAbove() {
				if e.Reply != nil {
					e.Reply <- TopicResult{Topic: c.topic, SetBy: c.topicSetBy, SetAt: c.topicSetAt, Err: ErrTopicLocked}
				}
				return
			}
		}
		c.topic = e.NewTopic
		c.topicSetBy = e.SetterUID
		c.topicSetAt = time.Now()
	}
	if e.Reply != nil {
		e.Reply <- TopicResult{Topic: c.topic, SetBy: c.topicSetBy, SetAt: c.topicSetAt}
	}
}

// --- Modes -----------------------------------------------------------------

// ModeEvent applies a parsed set of mode changes and returns the resulting
// snapshot so the handler can render a confirming MODE line. Unless Force
// is set, each change is gated by the sender's own flags: halfop may only
// set/unset voice, op up to halfop, admin up to op, and founder up to
// admin (spec.md §4.2); changes the sender lacks rank for are skipped and
// returned in Rejected rather than aborting the whole batch.
type ModeEvent struct {
	Changes   []ModeChange
	SenderUID string
	Force     bool
	Reply     chan ModeResult
}

// ModeResult carries the post-change snapshot plus any changes the
// sender's privilege level could not apply.
type ModeResult struct {
	Snapshot Snapshot
	Rejected []ModeChange
}

// ModeChange is one +/-X style change, optionally targeting a member
// (for o/h/v/a, by UID, or b/e/I/q, by mask) or carrying a parameter
// (k, l).
type ModeChange struct {
	Add    bool
	Letter byte
	Param  string
}

// minRank is the lowest member rank (see Flag.rank) required to set or
// unset each mode letter. Letters absent from the map (general channel
// modes and the b/e/I/q lists) default to op-or-above.
var minRank = map[byte]int{
	'v': 2,
	'h': 3,
	'o': 4,
	'a': 5,
}

func canSetModeLetter(senderFlags Flag, letter byte) bool {
	need, ok := minRank[letter]
	if !ok {
		need = 3 // op-or-above for every other mode/list letter
	}
	return senderFlags.rank() >= need
}

func (e ModeEvent) apply(c *Channel) {
	var senderFlags Flag
	if !e.Force {
		if m, ok := c.members[e.SenderUID]; ok {
			senderFlags = m.flags
		}
	}

	var rejected []ModeChange
	for _, ch := range e.Changes {
		if !e.Force && !canSetModeLetter(senderFlags, ch.Letter) {
			rejected = append(rejected, ch)
			continue
		}
		c.applyModeChange(ch)
	}
	if e.Reply != nil {
		e.Reply <- ModeResult{Snapshot: c.snapshot(), Rejected: rejected}
	}
}

func (c *Channel) applyModeChange(ch ModeChange) {
	switch ch.Letter {
	case 'i':
		c.setMode(ModeInviteOnly, ch.Add)
	case 'm':
		c.setMode(ModeModerated, ch.Add)
	case 'M':
		c.setMode(ModeModeratedUnreg, ch.Add)
	case 'n':
		c.setMode(ModeNoExternal, ch.Add)
	case 'N':
		c.setMode(ModeNoNickChange, ch.Add)
	case 'c':
		c.setMode(ModeNoColors, ch.Add)
	case 'z', 'S':
		c.setMode(ModeTLSOnly, ch.Add)
	case 's':
		c.setMode(ModeSecret, ch.Add)
	case 'p':
		c.setMode(ModePrivate, ch.Add)
	case 't':
		c.setMode(ModeTopicLock, ch.Add)
	case 'R':
		c.setMode(ModeRegisteredOnlyJoin, ch.Add)
	case 'r':
		c.setMode(ModeRegisteredChannel, ch.Add)
	case 'C':
		c.setMode(ModeNoCTCP, ch.Add)
	case 'O':
		c.setMode(ModeOperOnly, ch.Add)
	case 'A':
		c.setMode(ModeAdminOnly, ch.Add)
	case 'K':
		c.setMode(ModeNoKnock, ch.Add)
	case 'V':
		c.setMode(ModeNoInvite, ch.Add)
	case 'T':
		c.setMode(ModeNoNotice, ch.Add)
	case 'g':
		c.setMode(ModeFreeInvite, ch.Add)
	case 'u':
		c.setMode(ModeAuditorium, ch.Add)
	case 'Q':
		c.setMode(ModeOperKickOnly, ch.Add)
	case 'P':
		c.setMode(ModePermanent, ch.Add)
	case 'k':
		c.setMode(ModeKeyed, ch.Add)
		if ch.Add {
			c.key = ch.Param
		} else {
			c.key = ""
		}
	case 'l':
		c.setMode(ModeLimit, ch.Add)
		if ch.Add {
			var n int
			for _, r := range ch.Param {
				if r < '0' || r > '9' {
					break
				}
				n = n*10 + int(r-'0')
			}
			c.limit = n
		} else {
			c.limit = 0
		}
	case 'o':
		c.setMemberFlag(ch.Param, FlagOp, ch.Add)
	case 'h':
		c.setMemberFlag(ch.Param, FlagHalfOp, ch.Add)
	case 'v':
		c.setMemberFlag(ch.Param, FlagVoice, ch.Add)
	case 'a':
		c.setMemberFlag(ch.Param, FlagAdmin, ch.Add)
	case 'b':
		c.setListEntry(c.bans, ch.Param, ch.Add)
	case 'e':
		c.setListEntry(c.excepts, ch.Param, ch.Add)
	case 'I':
		c.setListEntry(c.invex, ch.Param, ch.Add)
	case 'q':
		c.setListEntry(c.quiets, ch.Param, ch.Add)
	}
}

func (c *Channel) setMode(m Mode, add bool) {
	if add {
		c.modes |= m
	} else {
		c.modes &^= m
	}
}

func (c *Channel) setMemberFlag(uid string, f Flag, add bool) {
	mem, ok := c.members[uid]
	if !ok {
		return
	}
	if add {
		mem.flags |= f
	} else {
		mem.flags &^= f
	}
}

func (c *Channel) setListEntry(l *maskList, mask string, add bool) {
	if add {
		l.add(mask)
	} else {
		l.remove(mask)
	}
}

// --- List queries (bans/excepts/invex/quiets) ------------------------------

// ListEvent reads back one of the four mask lists.
type ListEvent struct {
	Kind  byte // 'b', 'e', 'I', 'q'
	Reply chan []string
}

func (e ListEvent) apply(c *Channel) {
	var l *maskList
	switch e.Kind {
	case 'b':
		l = c.bans
	case 'e':
		l = c.excepts
	case 'I':
		l = c.invex
	case 'q':
		l = c.quiets
	}
	if e.Reply == nil {
		return
	}
	if l == nil {
		e.Reply <- nil
		return
	}
	e.Reply <- l.entries()
}

// --- Invite -----------------------------------------------------------

// InviteEvent records a one-shot invite bypassing +i for the given UID.
// +V forbids invites outright; otherwise the inviter must be op-or-above
// unless +g (free invite) is set or Force overrides the gate (services).
type InviteEvent struct {
	UID        string
	InviterUID string
	Force      bool
	Reply      chan InviteResult
}

// InviteResult reports whether the invite was recorded.
type InviteResult struct {
	OK  bool
	Err error
}

func (e InviteEvent) apply(c *Channel) {
	if !e.Force {
		if c.modes&ModeNoInvite != 0 {
			e.reply(InviteResult{Err: ErrNoInvite})
			return
		}
		if c.modes&ModeFreeInvite == 0 {
			inviter, ok := c.members[e.InviterUID]
			if !ok || !inviter.flags.IsOpOrAbove() {
				e.reply(InviteResult{Err: ErrNoPrivilege})
				return
			}
		}
	}
	c.invited[e.UID] = struct{}{}
	e.reply(InviteResult{OK: true})
}

func (e InviteEvent) reply(r InviteResult) {
	if e.Reply != nil {
		e.Reply <- r
	}
}

// --- Snapshot / Names ----------------------------------------------------

// SnapshotEvent returns the current state without mutating anything.
type SnapshotEvent struct {
	Reply chan Snapshot
}

func (e SnapshotEvent) apply(c *Channel) {
	if e.Reply != nil {
		e.Reply <- c.snapshot()
	}
}

func (c *Channel) snapshot() Snapshot {
	members := make([]MemberView, 0, len(c.members))
	for _, m := range c.members {
		members = append(members, MemberView{UID: m.uid, Nick: m.nick, Flags: m.flags})
	}
	return Snapshot{
		Name:    c.name,
		Topic:   c.topic,
		TopicBy: c.topicSetBy,
		TopicAt: c.topicSetAt,
		Modes:   c.modes,
		Key:     c.key,
		Limit:   c.limit,
		Members: members,
	}
}

// --- shutdown -------------------------------------------------------------

type shutdownEvent struct{}

func (shutdownEvent) apply(c *Channel) {}
