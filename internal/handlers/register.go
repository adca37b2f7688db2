package handlers

import "github.com/btnmasher/ironhall/internal/dispatch"

// Register installs every command handler into the router's typestate
// tables, the generalized form of the teacher's registerHandlers().
func Register(r *dispatch.Router) {
	r.HandleBoth("PING", HandlePing)
	r.HandleBoth("PONG", HandlePong)
	r.HandleBoth("QUIT", HandleQuit)
	r.HandleBoth("CAP", HandleCap)

	r.HandleUnregistered("PASS", HandlePass)
	r.HandleUnregistered("NICK", HandleNick)
	r.HandleUnregistered("USER", HandleUser)
	r.HandleUnregistered("AUTHENTICATE", HandleAuthenticate)
	r.HandleUnregistered("WEBIRC", HandleWebirc)

	r.HandleRegistered("NICK", HandleNick)
	r.HandleRegistered("JOIN", HandleJoin)
	r.HandleRegistered("PART", HandlePart)
	r.HandleRegistered("KICK", HandleKick)
	r.HandleRegistered("TOPIC", HandleTopic)
	r.HandleRegistered("INVITE", HandleInvite)
	r.HandleRegistered("KNOCK", HandleKnock)
	r.HandleRegistered("NAMES", HandleNames)
	r.HandleRegistered("LIST", HandleList)
	r.HandleRegistered("MODE", HandleMode)
	r.HandleRegistered("PRIVMSG", HandlePrivmsg)
	r.HandleRegistered("NOTICE", HandleNotice)
	r.HandleRegistered("USERHOST", HandleUserhost)
	r.HandleRegistered("AWAY", HandleAway)
	r.HandleRegistered("MONITOR", HandleMonitor)
	r.HandleRegistered("WHO", HandleWho)
	r.HandleRegistered("WHOIS", HandleWhois)
	r.HandleRegistered("WHOWAS", HandleWhowas)
	r.HandleRegistered("CHATHISTORY", HandleChathistory)
	r.HandleRegistered("WALLOPS", HandleWallops)
	r.HandleRegistered("KILL", HandleKill)
	r.HandleRegistered("NS", HandleNickServAlias)
	r.HandleRegistered("CS", HandleChanServAlias)
}
