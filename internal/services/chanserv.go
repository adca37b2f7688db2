package services

import (
	"strings"

	"github.com/btnmasher/ironhall/internal/channel"
)

// ChanServ handles PRIVMSG ChanServ / CS commands.
type ChanServ struct {
	channels ChannelStore
	accounts AccountStore
}

// NewChanServ constructs a ChanServ bound to the given stores.
func NewChanServ(channels ChannelStore, accounts AccountStore) *ChanServ {
	return &ChanServ{channels: channels, accounts: accounts}
}

// Handle dispatches a single ChanServ command line. account is the
// caller's currently identified account name, empty if unidentified.
func (cs *ChanServ) Handle(uid, account, line string) []Effect {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return []Effect{Reply(uid, "Insufficient parameters. Try /msg ChanServ HELP")}
	}
	cmd := strings.ToUpper(fields[0])
	args := fields[1:]

	if account == "" && cmd != "HELP" {
		return []Effect{Reply(uid, "You must be identified to use ChanServ")}
	}

	switch cmd {
	case "REGISTER":
		return cs.register(uid, account, args)
	case "ACCESS":
		return cs.access(uid, account, args)
	case "AKICK":
		return cs.akick(uid, account, args)
	default:
		return []Effect{Reply(uid, "Unknown command. Try /msg ChanServ HELP")}
	}
}

func (cs *ChanServ) register(uid, account string, args []string) []Effect {
	if len(args) < 1 {
		return []Effect{Reply(uid, "Syntax: REGISTER <#channel>")}
	}
	name := args[0]
	if _, found, _ := cs.channels.FindChannel(name); found {
		return []Effect{Reply(uid, name+" is already registered")}
	}
	acct, found, err := cs.accounts.FindAccountByName(account)
	if !found || err != nil {
		return []Effect{Reply(uid, "Account lookup failed")}
	}
	if _, err := cs.channels.RegisterChannel(name, acct.ID); err != nil {
		return []Effect{Reply(uid, "Registration failed")}
	}
	return []Effect{
		Reply(uid, name+" is now registered to "+account),
		{Kind: EffectSetMemberMode, UID: uid, Channel: name, MemberFlag: channel.FlagFounder, FlagAdd: true},
	}
}

func (cs *ChanServ) access(uid, account string, args []string) []Effect {
	if len(args) < 2 {
		return []Effect{Reply(uid, "Syntax: ACCESS <#channel> ADD|DEL|LIST [account] [flags]")}
	}
	name := args[0]
	sub := strings.ToUpper(args[1])

	chanID, found, err := cs.channels.FindChannel(name)
	if !found || err != nil {
		return []Effect{Reply(uid, "Channel is not registered")}
	}

	switch sub {
	case "ADD":
		if len(args) < 4 {
			return []Effect{Reply(uid, "Syntax: ACCESS <#channel> ADD <account> <flags>")}
		}
		target, found, err := cs.accounts.FindAccountByName(args[2])
		if !found || err != nil {
			return []Effect{Reply(uid, "No such account")}
		}
		if err := cs.channels.SetAccess(chanID, target.ID, args[3], account); err != nil {
			return []Effect{Reply(uid, "Could not set access")}
		}
		return []Effect{Reply(uid, "Access updated for "+args[2])}
	case "DEL":
		if len(args) < 3 {
			return []Effect{Reply(uid, "Syntax: ACCESS <#channel> DEL <account>")}
		}
		target, found, err := cs.accounts.FindAccountByName(args[2])
		if !found || err != nil {
			return []Effect{Reply(uid, "No such account")}
		}
		if err := cs.channels.RemoveAccess(chanID, target.ID); err != nil {
			return []Effect{Reply(uid, "Could not remove access")}
		}
		return []Effect{Reply(uid, "Access removed for "+args[2])}
	case "LIST":
		list, err := cs.channels.AccessList(chanID)
		if err != nil || len(list) == 0 {
			return []Effect{Reply(uid, "No access entries")}
		}
		var b strings.Builder
		for i, e := range list {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(e.Flags)
		}
		return []Effect{Reply(uid, b.String())}
	default:
		return []Effect{Reply(uid, "Syntax: ACCESS <#channel> ADD|DEL|LIST [account] [flags]")}
	}
}

// akick manages the automatic-kick mask list (supplemented feature
// from original_source's src/services/chanserv/commands/akick.rs). It
// only maintains the stored list; no JOIN path consults it.
func (cs *ChanServ) akick(uid, account string, args []string) []Effect {
	if len(args) < 2 {
		return []Effect{Reply(uid, "Syntax: AKICK <#channel> ADD|DEL|LIST [mask] [reason]")}
	}
	name := args[0]
	sub := strings.ToUpper(args[1])

	chanID, found, err := cs.channels.FindChannel(name)
	if !found || err != nil {
		return []Effect{Reply(uid, "Channel is not registered")}
	}

	switch sub {
	case "ADD":
		if len(args) < 3 {
			return []Effect{Reply(uid, "Syntax: AKICK <#channel> ADD <mask> [reason]")}
		}
		mask := args[2]
		reason := ""
		if len(args) > 3 {
			reason = strings.Join(args[3:], " ")
		}
		if err := cs.channels.AddAkick(chanID, mask, reason, account); err != nil {
			return []Effect{Reply(uid, "Could not add AKICK entry")}
		}
		return []Effect{Reply(uid, "AKICK added for "+mask)}
	case "DEL":
		if len(args) < 3 {
			return []Effect{Reply(uid, "Syntax: AKICK <#channel> DEL <mask>")}
		}
		if err := cs.channels.RemoveAkick(chanID, args[2]); err != nil {
			return []Effect{Reply(uid, "Could not remove AKICK entry")}
		}
		return []Effect{Reply(uid, "AKICK removed for "+args[2])}
	case "LIST":
		list, err := cs.channels.AkickList(chanID)
		if err != nil || len(list) == 0 {
			return []Effect{Reply(uid, "No AKICK entries")}
		}
		var b strings.Builder
		for i, e := range list {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(e.Mask)
		}
		return []Effect{Reply(uid, b.String())}
	default:
		return []Effect{Reply(uid, "Syntax: AKICK <#channel> ADD|DEL|LIST [mask] [reason]")}
	}
}
