package services

import (
	"github.com/btnmasher/ironhall/internal/channel"
	"github.com/btnmasher/ironhall/internal/ircmsg"
	"github.com/btnmasher/ironhall/internal/matrix"
)

// Applier is the sole mutator of shared state on behalf of service
// commands; NickServ/ChanServ command handlers only ever return
// Effect values, never touch mx or a connection directly.
type Applier struct {
	mx *matrix.Matrix
}

// NewApplier constructs an Applier bound to the server's Matrix.
func NewApplier(mx *matrix.Matrix) *Applier {
	return &Applier{mx: mx}
}

// Apply runs every effect in order against the Matrix, looking up the
// target user by UID as needed. Effects whose target user has already
// disconnected are silently skipped.
func (a *Applier) Apply(from string, effects []Effect) {
	for _, e := range effects {
		a.apply(from, e)
	}
}

func (a *Applier) apply(from string, e Effect) {
	switch e.Kind {
	case EffectReply:
		a.reply(e.UID, from, e.Text)
	case EffectIdentify:
		if u, ok := a.mx.UserByUID(e.UID); ok {
			u.SetAccount(e.Account)
		}
	case EffectClearAccount:
		if u, ok := a.mx.UserByUID(e.UID); ok {
			u.SetAccount("")
		}
	case EffectKill:
		if u, ok := a.mx.UserByUID(e.UID); ok {
			u.Kill(e.Text)
		}
	case EffectSetMemberMode:
		if h, ok := a.mx.ChannelByName(e.Channel); ok {
			h.Send(channel.ModeEvent{Changes: []channel.ModeChange{{
				Add:    e.FlagAdd,
				Letter: memberFlagLetter(e.MemberFlag),
				Param:  e.UID,
			}}, Force: true})
		}
	case EffectClearEnforcement:
		// No component of this server keeps nick-enforcement timers,
		// so clearing one is a no-op.
	case EffectForceNick:
		if u, ok := a.mx.UserByUID(e.UID); ok {
			old := u.Nick()
			if a.mx.RenameNick(e.UID, old, e.NewNick) {
				u.SetNick(e.NewNick)
			}
		}
	}
}

func (a *Applier) reply(uid, from, text string) {
	u, ok := a.mx.UserByUID(uid)
	if !ok {
		return
	}
	u.Deliver(&ircmsg.Message{
		Prefix:      from + "!services@services.",
		Command:     ircmsg.CmdNotice,
		Params:      []string{u.Nick()},
		Trailing:    text,
		HasTrailing: true,
	})
}

func memberFlagLetter(f channel.Flag) byte {
	switch f {
	case channel.FlagFounder:
		return 'q'
	case channel.FlagAdmin:
		return 'a'
	case channel.FlagOp:
		return 'o'
	case channel.FlagHalfOp:
		return 'h'
	case channel.FlagVoice:
		return 'v'
	default:
		return 'o'
	}
}
