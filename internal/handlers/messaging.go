package handlers

import (
	"strings"

	"github.com/btnmasher/ironhall/internal/channel"
	"github.com/btnmasher/ironhall/internal/dispatch"
	"github.com/btnmasher/ironhall/internal/ircmsg"
	"github.com/btnmasher/ironhall/internal/user"
)

// HandlePrivmsg and HandleNotice both funnel into doChatMessage, the
// generalized form of the teacher's doChatMessage covering both nick and
// channel targets.
func HandlePrivmsg(ctx *dispatch.Context) { doChatMessage(ctx, ircmsg.CmdPrivMsg) }
func HandleNotice(ctx *dispatch.Context)  { doChatMessage(ctx, ircmsg.CmdNotice) }

func doChatMessage(ctx *dispatch.Context, command string) {
	if !enoughParams(ctx.Msg, 1) || ctx.Msg.Trailing == "" {
		replyNumeric(ctx, ircmsg.ErrNeedMoreParams, []string{command}, "Not enough parameters")
		return
	}
	target := ctx.Msg.Params[0]
	u := ctx.Conn.User

	if ctx.Deps.Spam != nil {
		if v := ctx.Deps.Spam.Check(u.UID(), ctx.Msg.Trailing); v.Flagged {
			notice(ctx, "Message withheld: "+v.Pattern)
			return
		}
	}
	if handleServiceTarget(ctx, target, ctx.Msg.Trailing) {
		return
	}

	outgoing := &ircmsg.Message{Prefix: u.Hostmask(), Command: command, Params: []string{target}, Trailing: ctx.Msg.Trailing, HasTrailing: true}

	if strings.HasPrefix(target, "#") || strings.HasPrefix(target, "&") {
		h, ok := ctx.Matrix.ChannelByName(target)
		if !ok {
			replyNumeric(ctx, ircmsg.ErrNoSuchChannel, []string{target}, "No such channel")
			return
		}
		reply := make(chan channel.RelayResult, 1)
		h.Send(channel.MessageEvent{
			Msg: outgoing, ExcludeUID: u.UID(),
			SenderUID: u.UID(), SenderHostmask: u.Hostmask(),
			IsNotice:     command == ircmsg.CmdNotice,
			IsRegistered: u.Account() != "",
			IsTLS:        u.HasMode(user.ModeTLSSecure),
			Reply:        reply,
		})
		res := <-reply
		if !res.OK {
			// NOTICE never provokes an automatic reply, per RFC 2812 §3.3.2.
			if command != ircmsg.CmdNotice {
				replyChatBlocked(ctx, target, res.Err)
			}
			return
		}
		recordHistory(ctx, target, outgoing, u.Account())
		return
	}

	targetUser, ok := ctx.Matrix.UserByNick(target)
	if !ok {
		replyNumeric(ctx, ircmsg.ErrNoSuchNick, []string{target}, "No such nick/channel")
		return
	}
	if targetUser.Silenced(u.Hostmask()) {
		return
	}
	targetUser.Deliver(outgoing)
	recordHistory(ctx, target, outgoing, u.Account())
}

// replyChatBlocked translates a MessageEvent rejection into the RFC 404
// numeric, tailoring the text to the mode that caused it.
func replyChatBlocked(ctx *dispatch.Context, target string, err error) {
	switch err {
	case channel.ErrBlockedExternal:
		replyNumeric(ctx, ircmsg.ErrCannotSendToChan, []string{target}, "Cannot send to channel (no external messages)")
	case channel.ErrBlockedRegisteredOnly:
		replyNumeric(ctx, ircmsg.ErrCannotSendToChan, []string{target}, "Cannot send to channel (registered users only)")
	case channel.ErrNotTLS:
		replyNumeric(ctx, ircmsg.ErrCannotSendToChan, []string{target}, "Cannot send to channel (TLS required)")
	case channel.ErrBlockedCTCP:
		replyNumeric(ctx, ircmsg.ErrCannotSendToChan, []string{target}, "Cannot send to channel (no CTCP)")
	case channel.ErrBanned:
		replyNumeric(ctx, ircmsg.ErrCannotSendToChan, []string{target}, "Cannot send to channel (banned)")
	case channel.ErrNoVoice:
		replyNumeric(ctx, ircmsg.ErrCannotSendToChan, []string{target}, "Cannot send to channel (no voice)")
	default:
		replyNumeric(ctx, ircmsg.ErrCannotSendToChan, []string{target}, "Cannot send to channel")
	}
}

// HandleNickServAlias and HandleChanServAlias implement the NS/CS
// shorthand commands (supplemented feature: spec.md's command surface
// never names these bare aliases, but ircmsg.CmdNickServ/CmdChanServ
// exist for them) by routing straight into the same service dispatch
// PRIVMSG NickServ/ChanServ already use.
func HandleNickServAlias(ctx *dispatch.Context) {
	handleServiceTarget(ctx, "NickServ", serviceCommandLine(ctx))
}

func HandleChanServAlias(ctx *dispatch.Context) {
	handleServiceTarget(ctx, "ChanServ", serviceCommandLine(ctx))
}

func serviceCommandLine(ctx *dispatch.Context) string {
	line := strings.Join(ctx.Msg.Params, " ")
	if ctx.Msg.Trailing != "" {
		if line != "" {
			line += " "
		}
		line += ctx.Msg.Trailing
	}
	return line
}

// notice delivers a server NOTICE to the connection's own user, used for
// flood/spam feedback that has no dedicated RFC numeric.
func notice(ctx *dispatch.Context, text string) {
	ctx.Conn.Deliver(&ircmsg.Message{
		Prefix:      serverName(ctx),
		Command:     ircmsg.CmdNotice,
		Params:      []string{ctx.Conn.User.Nick()},
		Trailing:    text,
		HasTrailing: true,
	})
}

// handleServiceTarget routes a PRIVMSG/NOTICE addressed to NickServ or
// ChanServ into the service command layer instead of normal user/channel
// delivery, reporting true if it consumed the message.
func handleServiceTarget(ctx *dispatch.Context, target, line string) bool {
	if ctx.Deps.Services == nil {
		return false
	}
	u := ctx.Conn.User
	switch {
	case strings.EqualFold(target, "NickServ") && ctx.Deps.Services.NickServ != nil:
		effects := ctx.Deps.Services.NickServ.Handle(u.UID(), u.Nick(), u.Account(), line)
		ctx.Deps.Services.Applier.Apply("NickServ", effects)
		return true
	case strings.EqualFold(target, "ChanServ") && ctx.Deps.Services.ChanServ != nil:
		effects := ctx.Deps.Services.ChanServ.Handle(u.UID(), u.Account(), line)
		ctx.Deps.Services.Applier.Apply("ChanServ", effects)
		return true
	default:
		return false
	}
}
