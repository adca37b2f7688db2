package handlers

import (
	"encoding/base64"
	"strings"

	"github.com/btnmasher/ironhall/internal/dispatch"
	"github.com/btnmasher/ironhall/internal/ircmsg"
	"github.com/btnmasher/ironhall/internal/services"
)

// HandleAuthenticate implements SASL's AUTHENTICATE, supporting the PLAIN
// and EXTERNAL mechanisms (supplemented feature: spec.md's handler list
// names SASL/AUTHENTICATE but the distillation never specifies mechanics
// -- this follows the account lookups NickServ's IDENTIFY/CERT commands
// already use).
func HandleAuthenticate(ctx *dispatch.Context) {
	if !enoughParams(ctx.Msg, 1) {
		return
	}
	arg := ctx.Msg.Params[0]

	if ctx.Conn.SASLMechanism() == "" {
		mech := strings.ToUpper(arg)
		if mech != "PLAIN" && mech != "EXTERNAL" {
			replyNumeric(ctx, ircmsg.RplSaslMechs, nil, "PLAIN,EXTERNAL")
			replyNumeric(ctx, ircmsg.RplSaslFail, nil, "SASL authentication failed")
			return
		}
		ctx.Conn.StartSASL(mech)
		ctx.Conn.Deliver(&ircmsg.Message{Command: ircmsg.CmdAuthenticate, Params: []string{"+"}})
		return
	}

	if arg == "+" {
		finishSASL(ctx, ctx.Conn.SASLPayload())
		return
	}
	if len(arg) == 400 {
		ctx.Conn.AppendSASL(arg)
		return
	}
	ctx.Conn.AppendSASL(arg)
	finishSASL(ctx, ctx.Conn.SASLPayload())
}

func finishSASL(ctx *dispatch.Context, payload string) {
	mech := ctx.Conn.SASLMechanism()
	ctx.Conn.EndSASL()

	if ctx.Deps.Services == nil || ctx.Deps.Services.Accounts == nil {
		replyNumeric(ctx, ircmsg.RplSaslFail, nil, "SASL authentication failed")
		return
	}

	switch mech {
	case "PLAIN":
		authenticatePlain(ctx, payload)
	case "EXTERNAL":
		authenticateExternal(ctx, payload)
	default:
		replyNumeric(ctx, ircmsg.RplSaslFail, nil, "SASL authentication failed")
	}
}

func authenticatePlain(ctx *dispatch.Context, payload string) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		replyNumeric(ctx, ircmsg.RplSaslFail, nil, "SASL authentication failed")
		return
	}
	// authzid \0 authcid \0 password
	parts := strings.SplitN(string(raw), "\x00", 3)
	if len(parts) != 3 {
		replyNumeric(ctx, ircmsg.RplSaslFail, nil, "SASL authentication failed")
		return
	}
	authcid, password := parts[1], parts[2]

	acct, ok, err := ctx.Deps.Services.Accounts.FindAccountByName(authcid)
	if err != nil || !ok {
		replyNumeric(ctx, ircmsg.RplSaslFail, nil, "SASL authentication failed")
		return
	}
	match, verr := services.VerifyPassword(password, acct.PasswordHash)
	if verr != nil || !match {
		replyNumeric(ctx, ircmsg.RplSaslFail, nil, "SASL authentication failed")
		return
	}
	completeSASL(ctx, acct.Name)
}

func authenticateExternal(ctx *dispatch.Context, _ string) {
	if ctx.Conn.User == nil {
		replyNumeric(ctx, ircmsg.RplSaslFail, nil, "SASL authentication failed")
		return
	}
	fp := ctx.Conn.User.CertFingerprint()
	if fp == "" {
		replyNumeric(ctx, ircmsg.RplSaslFail, nil, "SASL authentication failed")
		return
	}
	acct, ok, err := ctx.Deps.Services.Accounts.FindAccountByCertFP(fp)
	if err != nil || !ok {
		replyNumeric(ctx, ircmsg.RplSaslFail, nil, "SASL authentication failed")
		return
	}
	completeSASL(ctx, acct.Name)
}

func completeSASL(ctx *dispatch.Context, account string) {
	u := ctx.Conn.User
	if u == nil {
		replyNumeric(ctx, ircmsg.RplSaslFail, nil, "SASL authentication failed")
		return
	}
	u.SetAccount(account)
	replyNumeric(ctx, ircmsg.RplLoggedIn, []string{u.Hostmask(), account}, "You are now logged in as "+account)
	replyNumeric(ctx, ircmsg.RplSaslSuccess, nil, "SASL authentication successful")
}
