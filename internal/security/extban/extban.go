// Package extban implements the extended-ban evaluator: masks starting
// with `$` that test something other than a literal nick!user@host
// string against a connected user's context, plus the plain wildcard
// mask form for everything else.
//
// Grounded on spec.md §4.3's "extended bans and wildcard matching"
// description and original_source's matches_ban_or_except; reuses
// internal/security/bancache's wildcard-to-regex compiler for the
// plain-mask case rather than duplicating it.
package extban

import (
	"strings"

	"github.com/btnmasher/ironhall/internal/security/bancache"
)

// UserContext carries every field an extban predicate might need to
// consult. Callers (the channel actor, the registration gate) build
// one from a user.User snapshot before evaluating a ban list.
type UserContext struct {
	Hostmask      string // nick!user@host
	Account       string
	Realname      string
	Server        string
	Channels      []string
	OperType      string
	CertFP        string
	SaslMechanism string
	Registered    bool
}

// Matches evaluates a single ban/except mask against ctx. Plain masks
// (no leading `$`) are matched against Hostmask with wildcard
// semantics; `$U` takes no pattern.
func Matches(mask string, ctx UserContext) bool {
	if !strings.HasPrefix(mask, "$") {
		return bancache.MatchMask(mask, ctx.Hostmask)
	}

	if mask == "$U" {
		return !ctx.Registered
	}

	if len(mask) < 3 || mask[2] != ':' {
		return false
	}
	kind := mask[1]
	pattern := mask[3:]

	switch kind {
	case 'a':
		return ctx.Account != "" && bancache.MatchMask(pattern, ctx.Account)
	case 'r':
		return bancache.MatchMask(pattern, ctx.Realname)
	case 's':
		return bancache.MatchMask(pattern, ctx.Server)
	case 'c':
		for _, ch := range ctx.Channels {
			if bancache.MatchMask(pattern, ch) {
				return true
			}
		}
		return false
	case 'o':
		return ctx.OperType != "" && bancache.MatchMask(pattern, ctx.OperType)
	case 'x':
		return ctx.CertFP != "" && bancache.MatchMask(pattern, ctx.CertFP)
	case 'z':
		return ctx.SaslMechanism != "" && bancache.MatchMask(pattern, ctx.SaslMechanism)
	case 'j':
		nick := ctx.Hostmask
		if i := strings.IndexByte(nick, '!'); i >= 0 {
			nick = nick[:i]
		}
		return bancache.MatchMask(pattern, nick)
	default:
		return false
	}
}

// MatchesBanOrExcept reports whether ctx is blocked by any of bans
// while not covered by any of excepts, the gate every channel ban
// check (join, message, invite) funnels through.
func MatchesBanOrExcept(bans, excepts []string, ctx UserContext) bool {
	blocked := false
	for _, b := range bans {
		if Matches(b, ctx) {
			blocked = true
			break
		}
	}
	if !blocked {
		return false
	}
	for _, e := range excepts {
		if Matches(e, ctx) {
			return false
		}
	}
	return true
}
