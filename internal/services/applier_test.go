package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/btnmasher/ironhall/internal/ircmsg"
	"github.com/btnmasher/ironhall/internal/matrix"
	"github.com/btnmasher/ironhall/internal/user"
)

type fakeSink struct {
	delivered []*ircmsg.Message
	killed    string
}

func (f *fakeSink) Deliver(msg *ircmsg.Message) { f.delivered = append(f.delivered, msg) }
func (f *fakeSink) Kill(reason string)          { f.killed = reason }

func TestApplierReply(t *testing.T) {
	mx := matrix.New(8, &matrix.Config{})
	u := user.New("uid1")
	u.SetNick("alice")
	sink := &fakeSink{}
	u.SetSink(sink)
	mx.AddUser(u)

	a := NewApplier(mx)
	a.Apply("NickServ", []Effect{Reply("uid1", "hello")})

	assert.Len(t, sink.delivered, 1)
	assert.Equal(t, "hello", sink.delivered[0].Trailing)
}

func TestApplierIdentify(t *testing.T) {
	mx := matrix.New(8, &matrix.Config{})
	u := user.New("uid1")
	u.SetNick("alice")
	mx.AddUser(u)

	a := NewApplier(mx)
	a.Apply("NickServ", []Effect{{Kind: EffectIdentify, UID: "uid1", Account: "alice"}})

	assert.Equal(t, "alice", u.Account())
}

func TestApplierKill(t *testing.T) {
	mx := matrix.New(8, &matrix.Config{})
	u := user.New("uid1")
	u.SetNick("alice")
	sink := &fakeSink{}
	u.SetSink(sink)
	mx.AddUser(u)

	a := NewApplier(mx)
	a.Apply("NickServ", []Effect{{Kind: EffectKill, UID: "uid1", Text: "ghosted"}})

	assert.Equal(t, "ghosted", sink.killed)
}
