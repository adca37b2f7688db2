package handlers

import (
	"io"
	"net"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/btnmasher/ironhall/internal/connection"
	"github.com/btnmasher/ironhall/internal/dispatch"
	"github.com/btnmasher/ironhall/internal/ircmsg"
	"github.com/btnmasher/ironhall/internal/matrix"
)

func newTestContext(t *testing.T) (*dispatch.Context, *matrix.Matrix) {
	t.Helper()
	mx := matrix.New(8, &matrix.Config{ServerName: "ironhall.test"})
	log := logrus.New()
	log.SetOutput(io.Discard)
	server, _ := net.Pipe()
	c := connection.New(server, mx, log, nil, nil)
	return &dispatch.Context{Matrix: mx, Conn: c}, mx
}

func TestHandleNickReservesFirstNick(t *testing.T) {
	ctx, mx := newTestContext(t)
	ctx.Msg, _ = ircmsg.Parse("NICK alice")
	HandleNick(ctx)

	assert.NotNil(t, ctx.Conn.User)
	assert.Equal(t, "alice", ctx.Conn.User.Nick())
	_, ok := mx.UserByNick("alice")
	assert.True(t, ok)
}

func TestHandleNickRejectsCollision(t *testing.T) {
	ctx1, mx := newTestContext(t)
	ctx1.Msg, _ = ircmsg.Parse("NICK alice")
	HandleNick(ctx1)

	server2, _ := net.Pipe()
	log := logrus.New()
	log.SetOutput(io.Discard)
	c2 := connection.New(server2, mx, log, nil, nil)
	ctx2 := &dispatch.Context{Matrix: mx, Conn: c2}
	ctx2.Msg, _ = ircmsg.Parse("NICK alice")
	HandleNick(ctx2)

	assert.Nil(t, ctx2.Conn.User)
}

func TestCompleteRegistrationFlow(t *testing.T) {
	ctx, _ := newTestContext(t)
	ctx.Msg, _ = ircmsg.Parse("NICK bob")
	HandleNick(ctx)

	ctx.Msg, _ = ircmsg.Parse("USER bob 0 * :Bob Real Name")
	HandleUser(ctx)

	assert.Equal(t, connection.StateRegistered, ctx.Conn.GetState())
}

func TestHandlePassMismatchDeniesRegistration(t *testing.T) {
	mx := matrix.New(8, &matrix.Config{ServerName: "ironhall.test", ServerPassword: "letmein"})
	log := logrus.New()
	log.SetOutput(io.Discard)
	server, _ := net.Pipe()
	c := connection.New(server, mx, log, nil, nil)
	ctx := &dispatch.Context{Matrix: mx, Conn: c}

	ctx.Msg, _ = ircmsg.Parse("PASS wrongpass")
	HandlePass(ctx)
	assert.Equal(t, "wrongpass", ctx.Conn.Pass())

	ctx.Msg, _ = ircmsg.Parse("NICK carol")
	HandleNick(ctx)
	ctx.Msg, _ = ircmsg.Parse("USER carol 0 * :Carol Real Name")
	HandleUser(ctx)

	assert.NotEqual(t, connection.StateRegistered, ctx.Conn.GetState())
}

func TestHandlePassMatchAllowsRegistration(t *testing.T) {
	mx := matrix.New(8, &matrix.Config{ServerName: "ironhall.test", ServerPassword: "letmein"})
	log := logrus.New()
	log.SetOutput(io.Discard)
	server, _ := net.Pipe()
	c := connection.New(server, mx, log, nil, nil)
	ctx := &dispatch.Context{Matrix: mx, Conn: c}

	ctx.Msg, _ = ircmsg.Parse("PASS letmein")
	HandlePass(ctx)

	ctx.Msg, _ = ircmsg.Parse("NICK dave")
	HandleNick(ctx)
	ctx.Msg, _ = ircmsg.Parse("USER dave 0 * :Dave Real Name")
	HandleUser(ctx)

	assert.Equal(t, connection.StateRegistered, ctx.Conn.GetState())
}

func TestModeParsingWithParams(t *testing.T) {
	changes := parseModeChanges([]string{"+nt-l"})
	assert.Len(t, changes, 3)
	assert.Equal(t, byte('n'), changes[0].Letter)
	assert.True(t, changes[0].Add)
	assert.Equal(t, byte('l'), changes[2].Letter)
	assert.False(t, changes[2].Add)
}

func TestModeParsingKeyedChannel(t *testing.T) {
	changes := parseModeChanges([]string{"+k", "secret"})
	assert.Len(t, changes, 1)
	assert.Equal(t, "secret", changes[0].Param)
}
