package handlers

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/btnmasher/ironhall/internal/dispatch"
	"github.com/btnmasher/ironhall/internal/ircmsg"
	"github.com/btnmasher/ironhall/internal/store/sqlstore"
)

// chatEnvelope is the self-describing blob stored per history entry,
// holding enough to replay the original line verbatim.
type chatEnvelope struct {
	Command  string            `json:"command"`
	Prefix   string            `json:"prefix"`
	Target   string            `json:"target"`
	Text     string            `json:"text"`
	Tags     map[string]string `json:"tags,omitempty"`
}

// recordHistory persists a rendered chat line for later CHATHISTORY
// playback, tolerating a nil History store (history is an optional
// persistence concern, not a delivery-path dependency).
func recordHistory(ctx *dispatch.Context, target string, outgoing *ircmsg.Message, senderAccount string) {
	if ctx.Deps.History == nil {
		return
	}
	env, err := json.Marshal(chatEnvelope{
		Command: outgoing.Command,
		Prefix:  outgoing.Prefix,
		Target:  target,
		Text:    outgoing.Trailing,
		Tags:    outgoing.Tags,
	})
	if err != nil {
		return
	}
	_ = ctx.Deps.History.InsertHistory(sqlstore.HistoryEntry{
		MsgID:         uuid.NewString(),
		Target:        strings.ToLower(target),
		SenderNick:    ctx.Conn.User.Nick(),
		Envelope:      env,
		Nanotime:      nowNano(),
		SenderAccount: senderAccount,
	})
}

// HandleChathistory answers CHATHISTORY's LATEST/BEFORE/AFTER/BETWEEN/
// AROUND/TARGETS subcommands by replaying envelopes out of the history
// store as a draft/chathistory BATCH.
func HandleChathistory(ctx *dispatch.Context) {
	if ctx.Deps.History == nil || !enoughParams(ctx.Msg, 1) {
		return
	}
	sub := strings.ToUpper(ctx.Msg.Params[0])

	switch sub {
	case "TARGETS":
		if !enoughParams(ctx.Msg, 3) {
			return
		}
		start := parseChathistoryTime(ctx.Msg.Params[1])
		end := parseChathistoryTime(ctx.Msg.Params[2])
		limit := 50
		if len(ctx.Msg.Params) > 3 {
			limit = atoi(ctx.Msg.Params[3])
		}
		targets, err := ctx.Deps.History.Targets(ctx.Conn.User.Account(), start, end, limit, ctx.Conn.User.Channels())
		if err != nil {
			return
		}
		for _, t := range targets {
			ctx.Conn.Deliver(&ircmsg.Message{
				Command: ircmsg.CmdChathistory, Params: []string{"TARGETS", t.Target, strconv.FormatInt(t.Nanotime, 10)},
			})
		}
		return
	}

	if !enoughParams(ctx.Msg, 2) {
		return
	}
	target := ctx.Msg.Params[1]
	limit := 50

	var entries []sqlstore.HistoryEntry
	var err error
	switch sub {
	case "LATEST":
		if len(ctx.Msg.Params) > 2 && ctx.Msg.Params[2] != "*" {
			limit = atoi(ctx.Msg.Params[2])
		}
		entries, err = ctx.Deps.History.Latest(target, limit)
	case "BEFORE":
		if !enoughParams(ctx.Msg, 3) {
			return
		}
		if len(ctx.Msg.Params) > 3 {
			limit = atoi(ctx.Msg.Params[3])
		}
		entries, err = ctx.Deps.History.Before(target, parseChathistoryTime(ctx.Msg.Params[2]), limit)
	case "AFTER":
		if !enoughParams(ctx.Msg, 3) {
			return
		}
		if len(ctx.Msg.Params) > 3 {
			limit = atoi(ctx.Msg.Params[3])
		}
		entries, err = ctx.Deps.History.After(target, parseChathistoryTime(ctx.Msg.Params[2]), limit)
	case "BETWEEN":
		if !enoughParams(ctx.Msg, 4) {
			return
		}
		if len(ctx.Msg.Params) > 4 {
			limit = atoi(ctx.Msg.Params[4])
		}
		entries, err = ctx.Deps.History.Between(target, parseChathistoryTime(ctx.Msg.Params[2]), parseChathistoryTime(ctx.Msg.Params[3]), limit)
	case "AROUND":
		if !enoughParams(ctx.Msg, 3) {
			return
		}
		if len(ctx.Msg.Params) > 3 {
			limit = atoi(ctx.Msg.Params[3])
		}
		entries, err = ctx.Deps.History.Around(target, parseChathistoryTime(ctx.Msg.Params[2]), limit)
	default:
		return
	}
	if err != nil {
		return
	}

	deliverHistoryBatch(ctx, "chathistory", target, entries)
}

// deliverHistoryBatch replays entries to the requesting connection as a
// single BATCH of type batchType ("chathistory" from HandleChathistory,
// "playback" on JOIN), shared by HandleChathistory and the
// Playback-on-JOIN hook (internal/handlers/channel.go) so both surfaces
// render history through the exact same wire framing.
func deliverHistoryBatch(ctx *dispatch.Context, batchType, target string, entries []sqlstore.HistoryEntry) {
	batchTag := uuid.NewString()
	ctx.Conn.Deliver(&ircmsg.Message{Command: ircmsg.CmdBatch, Params: []string{"+" + batchTag, batchType, target}})
	for _, e := range entries {
		var env chatEnvelope
		if jsonErr := json.Unmarshal(e.Envelope, &env); jsonErr != nil {
			continue
		}
		ctx.Conn.Deliver(&ircmsg.Message{
			Tags:        map[string]string{"batch": batchTag, "time": formatNano(e.Nanotime)},
			Prefix:      env.Prefix,
			Command:     env.Command,
			Params:      []string{env.Target},
			Trailing:    env.Text,
			HasTrailing: true,
		})
	}
	ctx.Conn.Deliver(&ircmsg.Message{Command: ircmsg.CmdBatch, Params: []string{"-" + batchTag}})
}

func parseChathistoryTime(tok string) int64 {
	tok = strings.TrimPrefix(tok, "timestamp=")
	t, err := time.Parse(time.RFC3339Nano, tok)
	if err != nil {
		return 0
	}
	return t.UnixNano()
}

func formatNano(n int64) string {
	return time.Unix(0, n).UTC().Format(time.RFC3339Nano)
}

func nowNano() int64 { return time.Now().UnixNano() }

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 50
	}
	return n
}
