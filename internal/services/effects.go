// Package services implements NickServ and ChanServ as pure
// effect-producers (spec.md §4.4 "Service commands"): each command
// handler takes a request and a read-only store lookup and returns a
// list of Effect values describing what should happen, without ever
// touching the Matrix or a live connection directly. A separate
// Applier (applier.go) is the only thing that mutates shared state,
// which keeps service logic deterministic and unit-testable.
//
// Grounded on spec.md §4.4's own description of this split; no pack
// repo implements IRC services, so the effect-list shape follows
// original_source's src/services/mod.rs ServiceEffect enum directly.
package services

import "github.com/btnmasher/ironhall/internal/channel"

// Kind enumerates the effect variants spec.md names explicitly:
// reply, identify, clear-account, force-kill, set-member-mode,
// clear-enforcement-timer, force-nick.
type Kind int

const (
	EffectReply Kind = iota
	EffectIdentify
	EffectClearAccount
	EffectKill
	EffectSetMemberMode
	EffectClearEnforcement
	EffectForceNick
)

// Effect is a single side effect a service command wants applied.
// Only the fields relevant to Kind are populated; the rest are zero.
type Effect struct {
	Kind Kind

	UID  string // target of Reply/Identify/ClearAccount/Kill/ForceNick/ClearEnforcement
	Text string // Reply message text, or Kill reason

	Account string // Identify: account name to bind

	Channel    string       // SetMemberMode: channel name
	MemberFlag channel.Flag // SetMemberMode: flag bit
	FlagAdd    bool         // SetMemberMode: add vs remove

	NewNick string // ForceNick: nickname to force the user onto
}

// Reply is a convenience constructor for the common case of replying
// to the user who issued the command.
func Reply(uid, text string) Effect {
	return Effect{Kind: EffectReply, UID: uid, Text: text}
}
