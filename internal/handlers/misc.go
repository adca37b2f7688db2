package handlers

import (
	"strings"

	"github.com/btnmasher/ironhall/internal/channel"
	"github.com/btnmasher/ironhall/internal/dispatch"
	"github.com/btnmasher/ironhall/internal/ircmsg"
	"github.com/btnmasher/ironhall/internal/user"
)

// HandleUserhost answers USERHOST, generalized from the teacher's
// HandleUserhost (which built the "+host" reply string the same way).
func HandleUserhost(ctx *dispatch.Context) {
	var parts []string
	for _, nick := range ctx.Msg.Params {
		u, ok := ctx.Matrix.UserByNick(nick)
		if !ok {
			continue
		}
		_, isAway := u.Away()
		sigil := "+"
		if isAway {
			sigil = "-"
		}
		parts = append(parts, nick+"="+sigil+u.Hostmask())
	}
	replyNumeric(ctx, ircmsg.RplUserhost, []string{ctx.Conn.User.Nick()}, strings.Join(parts, " "))
}

// HandleAway toggles away status.
func HandleAway(ctx *dispatch.Context) {
	u := ctx.Conn.User
	if ctx.Msg.Trailing == "" {
		u.SetAway("")
		replyNumeric(ctx, ircmsg.RplUnaway, []string{u.Nick()}, "You are no longer marked as being away")
		return
	}
	u.SetAway(ctx.Msg.Trailing)
	replyNumeric(ctx, ircmsg.RplNowAway, []string{u.Nick()}, "You have been marked as being away")
}

// HandleMonitor implements MONITOR +/-/C/L/S per spec.md's bouncer-facing
// online/offline notification requirement.
func HandleMonitor(ctx *dispatch.Context) {
	if !enoughParams(ctx.Msg, 1) {
		return
	}
	u := ctx.Conn.User
	sub := ctx.Msg.Params[0]
	switch sub {
	case "+":
		if len(ctx.Msg.Params) < 2 {
			return
		}
		for _, nick := range strings.Split(ctx.Msg.Params[1], ",") {
			ctx.Matrix.MonitorAdd(u.UID(), nick)
		}
	case "-":
		if len(ctx.Msg.Params) < 2 {
			return
		}
		for _, nick := range strings.Split(ctx.Msg.Params[1], ",") {
			ctx.Matrix.MonitorRemove(u.UID(), nick)
		}
	case "C":
		ctx.Matrix.MonitorRemoveAll(u.UID())
	case "L", "S":
		replyNumeric(ctx, ircmsg.RplEndOfMonList, nil, "End of MONITOR list")
	}
}

// HandleWho answers WHO for a channel or single nick, a condensed
// generalization of the teacher's channel GetNicks() formatting.
func HandleWho(ctx *dispatch.Context) {
	if !enoughParams(ctx.Msg, 1) {
		replyNumeric(ctx, ircmsg.RplEndOfWho, []string{"*"}, "End of WHO list")
		return
	}
	target := ctx.Msg.Params[0]
	if strings.HasPrefix(target, "#") || strings.HasPrefix(target, "&") {
		h, ok := ctx.Matrix.ChannelByName(target)
		if !ok {
			replyNumeric(ctx, ircmsg.RplEndOfWho, []string{target}, "End of WHO list")
			return
		}
		reply := make(chan channel.Snapshot, 1)
		h.Send(channel.SnapshotEvent{Reply: reply})
		snap := <-reply
		for _, m := range snap.Members {
			u, ok := ctx.Matrix.UserByUID(m.UID)
			if !ok {
				continue
			}
			replyNumeric(ctx, ircmsg.RplWhoReply, []string{target, u.Username(), u.RealHost(), "ironhall", u.Nick(), "H" + m.Flags.Prefix()}, u.Realname())
		}
	} else if u, ok := ctx.Matrix.UserByNick(target); ok {
		replyNumeric(ctx, ircmsg.RplWhoReply, []string{"*", u.Username(), u.RealHost(), "ironhall", u.Nick(), "H"}, u.Realname())
	}
	replyNumeric(ctx, ircmsg.RplEndOfWho, []string{target}, "End of WHO list")
}

// HandleWhois answers WHOIS for a nick.
func HandleWhois(ctx *dispatch.Context) {
	if !enoughParams(ctx.Msg, 1) {
		replyNumeric(ctx, ircmsg.ErrNoNicknameGiven, nil, "No nickname given")
		return
	}
	nick := ctx.Msg.Params[len(ctx.Msg.Params)-1]
	u, ok := ctx.Matrix.UserByNick(nick)
	if !ok {
		replyNumeric(ctx, ircmsg.ErrNoSuchNick, []string{nick}, "No such nick/channel")
		return
	}
	replyNumeric(ctx, ircmsg.RplWhoisUser, []string{nick, u.Username(), u.RealHost(), "*"}, u.Realname())
	if chans := u.Channels(); len(chans) > 0 {
		replyNumeric(ctx, ircmsg.RplWhoisChannels, []string{nick}, strings.Join(chans, " "))
	}
	replyNumeric(ctx, ircmsg.RplEndOfWhois, []string{nick}, "End of WHOIS list")
}

// HandleWallops answers WALLOPS, fanning a server notice out to every
// user with usermode +w set, generalized from the teacher's snomask
// broadcast shape.
func HandleWallops(ctx *dispatch.Context) {
	u := ctx.Conn.User
	if !u.HasMode(user.ModeOper) {
		replyNumeric(ctx, ircmsg.ErrNoPrivileges, nil, "Permission Denied- You're not an IRC operator")
		return
	}
	if ctx.Msg.Trailing == "" {
		return
	}
	out := &ircmsg.Message{Prefix: u.Hostmask(), Command: ircmsg.CmdWallops, Trailing: ctx.Msg.Trailing, HasTrailing: true}
	for _, target := range ctx.Matrix.AllUsers() {
		if target.HasMode(user.ModeWallops) {
			target.Deliver(out)
		}
	}
}

// HandleKill disconnects a target user with an oper-supplied reason, the
// generalized form of the way NickServ's GHOST/RECOVER effects already
// use user.Sink.Kill.
func HandleKill(ctx *dispatch.Context) {
	u := ctx.Conn.User
	if !u.HasMode(user.ModeOper) {
		replyNumeric(ctx, ircmsg.ErrNoPrivileges, nil, "Permission Denied- You're not an IRC operator")
		return
	}
	if !enoughParams(ctx.Msg, 1) {
		replyNumeric(ctx, ircmsg.ErrNeedMoreParams, []string{"KILL"}, "Not enough parameters")
		return
	}
	nick := ctx.Msg.Params[0]
	target, ok := ctx.Matrix.UserByNick(nick)
	if !ok {
		replyNumeric(ctx, ircmsg.ErrNoSuchNick, []string{nick}, "No such nick/channel")
		return
	}
	reason := ctx.Msg.Trailing
	if reason == "" {
		reason = "Killed"
	}
	target.Kill(u.Nick() + ": " + reason)
}

// HandleWhowas answers WHOWAS from the Matrix's ring buffer.
func HandleWhowas(ctx *dispatch.Context) {
	if !enoughParams(ctx.Msg, 1) {
		replyNumeric(ctx, ircmsg.ErrNoNicknameGiven, nil, "No nickname given")
		return
	}
	nick := ctx.Msg.Params[0]
	entries := ctx.Matrix.Whowas(nick, 10)
	if len(entries) == 0 {
		replyNumeric(ctx, ircmsg.ErrWasNoSuchNick, []string{nick}, "There was no such nickname")
		replyNumeric(ctx, ircmsg.RplEndOfWhowas, []string{nick}, "End of WHOWAS")
		return
	}
	for _, e := range entries {
		replyNumeric(ctx, ircmsg.RplWhowasUser, []string{nick, e.Username, e.Host}, e.Realname)
	}
	replyNumeric(ctx, ircmsg.RplEndOfWhowas, []string{nick}, "End of WHOWAS")
}
