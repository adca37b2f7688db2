// Package handlers implements the command handler functions (spec.md
// §4.6) dispatched by internal/dispatch. Handlers process all error
// conditions themselves and reply to the user per RFC2812/IRCv3 rather
// than returning an error value, the same convention the teacher's
// handlers.go used.
//
// Grounded on the teacher's handlers.go (HandleNick/HandleUser/HandleCap/
// HandleQuit/HandlePing/HandlePong) generalized onto dispatch.Context,
// internal/matrix, and a uuid-based UID instead of the teacher's
// conn-embedded *User.
package handlers

import (
	"net"
	"net/netip"
	"strings"

	"github.com/google/uuid"

	"github.com/btnmasher/ironhall/internal/channel"
	"github.com/btnmasher/ironhall/internal/connection"
	"github.com/btnmasher/ironhall/internal/dispatch"
	"github.com/btnmasher/ironhall/internal/ircmsg"
	"github.com/btnmasher/ironhall/internal/security/bancache"
	"github.com/btnmasher/ironhall/internal/user"
)

func enoughParams(msg *ircmsg.Message, n int) bool { return len(msg.Params) >= n }

func replyNumeric(ctx *dispatch.Context, code uint16, params []string, trailing string) {
	ctx.Conn.Deliver(&ircmsg.Message{
		Prefix:      serverName(ctx),
		Code:        code,
		Params:      params,
		Trailing:    trailing,
		HasTrailing: trailing != "",
	})
}

func serverName(ctx *dispatch.Context) string {
	if cfg := ctx.Matrix.Config(); cfg != nil && cfg.ServerName != "" {
		return cfg.ServerName
	}
	return "ironhall"
}

// HandleNick processes NICK for both registration and in-session rename.
func HandleNick(ctx *dispatch.Context) {
	if !enoughParams(ctx.Msg, 1) {
		replyNumeric(ctx, ircmsg.ErrNoNicknameGiven, nil, "No nickname given")
		return
	}
	newNick := ctx.Msg.Params[0]

	u := ctx.Conn.User
	if u == nil {
		// Pre-registration: reserve the UID and nick, deferring USER.
		if !ctx.Matrix.NickAvailable(newNick) {
			replyNumeric(ctx, ircmsg.ErrNicknameInUse, []string{"*", newNick}, "Nickname is already in use")
			return
		}
		u = user.New(uuid.NewString())
		u.SetNick(newNick)
		u.SetSink(ctx.Conn)
		if ip, host, ok := ctx.Conn.WebircSpoof(); ok {
			u.SetRawIP(ip)
			u.SetRealHost(host)
		}
		ctx.Matrix.AddUser(u)
		ctx.Matrix.BindNick(newNick, u.UID())
		ctx.Conn.User = u
		return
	}

	if u.Nick() == newNick {
		return
	}
	if !ctx.Matrix.NickAvailable(newNick) {
		replyNumeric(ctx, ircmsg.ErrNicknameInUse, []string{u.Nick(), newNick}, "Nickname is already in use")
		return
	}

	old := u.Hostmask()
	oldNick := u.Nick()
	if !ctx.Matrix.RenameNick(u.UID(), oldNick, newNick) {
		replyNumeric(ctx, ircmsg.ErrNicknameInUse, []string{oldNick, newNick}, "Nickname is already in use")
		return
	}
	u.SetNick(newNick)

	nickMsg := &ircmsg.Message{Prefix: old, Command: ircmsg.CmdNick, Params: []string{newNick}}
	for _, folded := range u.Channels() {
		if h, ok := ctx.Matrix.ChannelByName(folded); ok {
			h.Send(channel.RelayEvent{Msg: nickMsg})
			h.Send(channel.NickChangeEvent{UID: u.UID(), NewNick: newNick})
		}
	}
	if ctx.Conn.GetState() != connection.StateRegistered {
		ctx.Conn.Deliver(nickMsg)
	}

	ctx.Matrix.NotifyMonitorOffline(oldNick)
	ctx.Matrix.NotifyMonitorOnline(newNick, u.Hostmask())
}

// HandleUser completes registration once NICK and USER have both arrived.
func HandleUser(ctx *dispatch.Context) {
	if !enoughParams(ctx.Msg, 3) || (len(ctx.Msg.Params) < 4 && !ctx.Msg.HasTrailing) {
		replyNumeric(ctx, ircmsg.ErrNeedMoreParams, []string{"USER"}, "Not enough parameters")
		return
	}
	u := ctx.Conn.User
	if u == nil {
		replyNumeric(ctx, ircmsg.ErrNoNicknameGiven, nil, "No nickname given")
		return
	}
	if u.Username() != "" {
		replyNumeric(ctx, ircmsg.ErrAlreadyRegistrd, nil, "Unauthorized command (already registered)")
		return
	}

	u.SetUsername(ctx.Msg.Params[0])
	u.SetRealname(ctx.Msg.Trailing)
	if _, _, spoofed := ctx.Conn.WebircSpoof(); !spoofed {
		u.SetRealHost(ctx.Conn.RemoteAddr())
	}

	completeRegistration(ctx, u)
}

// HandleCap processes CAP LS/LIST/REQ/END. "CAP END" is the other trigger
// (alongside USER) for completing registration once both conditions are met.
func HandleCap(ctx *dispatch.Context) {
	if !enoughParams(ctx.Msg, 1) {
		replyNumeric(ctx, ircmsg.ErrInvalidCapCmd, nil, "Invalid CAP command")
		return
	}
	u := ctx.Conn.User
	switch ctx.Msg.Params[0] {
	case ircmsg.CapLS, ircmsg.CapLIST:
		ctx.Conn.Deliver(&ircmsg.Message{
			Prefix: serverName(ctx), Command: ircmsg.CmdCap,
			Params: []string{"*", "LS"}, Trailing: joinCaps(ircmsg.AllCapabilities), HasTrailing: true,
		})
	case ircmsg.CapREQ:
		if !enoughParams(ctx.Msg, 2) || u == nil {
			return
		}
		u.AddCap(ctx.Msg.Trailing)
		ctx.Conn.Deliver(&ircmsg.Message{
			Prefix: serverName(ctx), Command: ircmsg.CmdCap,
			Params: []string{"*", "ACK"}, Trailing: ctx.Msg.Trailing, HasTrailing: true,
		})
	case ircmsg.CapEND:
		if ctx.Conn.GetState() == connection.StateUnregistered && u != nil && u.Username() != "" {
			completeRegistration(ctx, u)
		}
	default:
		replyNumeric(ctx, ircmsg.ErrInvalidCapCmd, []string{ctx.Msg.Params[0]}, "Invalid CAP command")
	}
}

func joinCaps(caps []string) string {
	out := ""
	for i, c := range caps {
		if i > 0 {
			out += " "
		}
		out += c
	}
	return out
}

func completeRegistration(ctx *dispatch.Context, u *user.User) {
	if cfg := ctx.Matrix.Config(); cfg != nil && cfg.ServerPassword != "" && ctx.Conn.Pass() != cfg.ServerPassword {
		replyNumeric(ctx, ircmsg.ErrPasswdMismatch, nil, "Password incorrect")
		ctx.Conn.Kill("Password incorrect")
		return
	}
	if reason, banned := checkBans(ctx, u); banned {
		replyNumeric(ctx, ircmsg.ErrYoureBannedCreep, nil, reason)
		ctx.Conn.Kill(reason)
		return
	}
	applyCloak(ctx, u)
	ctx.Conn.SetState(connection.StateRegistered)
	ctx.Matrix.NotifyMonitorOnline(u.Nick(), u.Hostmask())
	replyNumeric(ctx, ircmsg.RplWelcome, []string{u.Nick()}, "Welcome to the network "+u.Hostmask())
	replyNumeric(ctx, ircmsg.RplYourHost, []string{u.Nick()}, "Your host is "+serverName(ctx))
	replyNumeric(ctx, ircmsg.RplMyInfo, []string{u.Nick(), serverName(ctx)}, "")
	if cfg := ctx.Matrix.Config(); cfg != nil && len(cfg.MOTD) > 0 {
		replyNumeric(ctx, ircmsg.RplMotdStart, []string{u.Nick()}, "Message of the day")
		for _, line := range cfg.MOTD {
			replyNumeric(ctx, ircmsg.RplMotd, []string{u.Nick()}, line)
		}
		replyNumeric(ctx, ircmsg.RplEndOfMotd, []string{u.Nick()}, "End of MOTD")
	} else {
		replyNumeric(ctx, ircmsg.ErrNoMotd, []string{u.Nick()}, "MOTD File is missing")
	}
}

// checkBans evaluates the in-memory K/G-line cache first, falling back
// to the durable ban tables for records not yet synced into it, then
// checks R-lines against the realname. The first match wins, per
// spec.md §4.5's check_all_bans ordering (Z/D already rejected the
// connection at accept time in cmd/ironhalld's acceptLoop).
func checkBans(ctx *dispatch.Context, u *user.User) (reason string, banned bool) {
	hostmask := u.RealHostmask()

	if ctx.Deps.BanCache != nil {
		if ok, reason := ctx.Deps.BanCache.Match(bancache.KLine, hostmask); ok {
			return reason, true
		}
		if ok, reason := ctx.Deps.BanCache.Match(bancache.GLine, hostmask); ok {
			return reason, true
		}
	}

	if ctx.Deps.History != nil {
		if addr, err := netip.ParseAddr(u.RawIP()); err == nil {
			if _, reason, ok := ctx.Deps.History.CheckAllBans(addr, hostmask); ok {
				return reason, true
			}
		}
		if reason, ok := ctx.Deps.History.CheckRealname(u.Realname()); ok {
			return reason, true
		}
	}

	return "", false
}

// applyCloak sets a user's visible host from their real IP or hostname
// once registration completes, using the configured cloak.Cloaker if
// one was wired in. Users already holding a vhost (set via some other
// path) are left alone.
func applyCloak(ctx *dispatch.Context, u *user.User) {
	if ctx.Deps.Cloaker == nil || u.VisibleHost() != "" {
		return
	}
	if addr, err := netip.ParseAddr(u.RawIP()); err == nil {
		u.SetVisibleHost(ctx.Deps.Cloaker.CloakIP(addr))
		return
	}
	if u.RealHost() != "" {
		u.SetVisibleHost(ctx.Deps.Cloaker.CloakHostname(u.RealHost()))
	}
}

// HandleWebirc lets a trusted gateway supply a connecting client's real
// IP/hostname ahead of registration (supplemented feature named in
// spec.md's UnregisteredState enumeration but never detailed; gated on
// a configured password/hostmask pair the same way the original
// reference's gateway trust list works).
func HandleWebirc(ctx *dispatch.Context) {
	if !enoughParams(ctx.Msg, 4) {
		return
	}
	password, _, hostname, ip := ctx.Msg.Params[0], ctx.Msg.Params[1], ctx.Msg.Params[2], ctx.Msg.Params[3]
	remote := ctx.Conn.RemoteAddr()
	if host, _, err := net.SplitHostPort(remote); err == nil {
		remote = host
	}
	for _, gw := range ctx.Deps.WebircGateways {
		if gw.Password == password && strings.EqualFold(gw.Hostmask, remote) {
			ctx.Conn.SetWebircSpoof(ip, hostname)
			return
		}
	}
}

// HandlePass records a pre-registration connection password, checked
// against the configured server password once NICK/USER/CAP END
// complete registration (§4.3's welcome-burst writer: ERR_PASSWDMISMATCH
// + ERROR on mismatch, access denied).
func HandlePass(ctx *dispatch.Context) {
	if !enoughParams(ctx.Msg, 1) {
		replyNumeric(ctx, ircmsg.ErrNeedMoreParams, []string{"PASS"}, "Not enough parameters")
		return
	}
	ctx.Conn.SetPass(ctx.Msg.Params[0])
}

// HandleQuit signals the connection to close with the client's given
// reason. The actual channel-departure announcement and WHOWAS/MONITOR
// bookkeeping happens uniformly in connection.Conn's cleanup, the same
// path every other disconnect trigger (ping timeout, socket error,
// KILL) goes through, so an explicit QUIT is handled exactly like any
// other session end instead of duplicating that fan-out here.
func HandleQuit(ctx *dispatch.Context) {
	reason := ctx.Msg.Trailing
	if reason == "" {
		reason = "Client quit"
	}
	ctx.Conn.Quit(reason)
}

// HandlePing answers a client PING with a matching PONG, per the
// teacher's HandlePing.
func HandlePing(ctx *dispatch.Context) {
	token := ctx.Msg.Trailing
	if token == "" && len(ctx.Msg.Params) > 0 {
		token = ctx.Msg.Params[0]
	}
	ctx.Conn.Deliver(&ircmsg.Message{Prefix: serverName(ctx), Command: ircmsg.CmdPong, Params: []string{serverName(ctx)}, Trailing: token, HasTrailing: true})
}

// HandlePong records the returned token against the heartbeat's last
// sent value, per the teacher's HandlePong.
func HandlePong(ctx *dispatch.Context) {
	token := ctx.Msg.Trailing
	if token == "" && len(ctx.Msg.Params) > 0 {
		token = ctx.Msg.Params[len(ctx.Msg.Params)-1]
	}
	ctx.Conn.RecordPong(token)
}
