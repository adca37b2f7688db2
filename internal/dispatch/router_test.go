package dispatch

import (
	"io"
	"net"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/btnmasher/ironhall/internal/connection"
	"github.com/btnmasher/ironhall/internal/ircmsg"
	"github.com/btnmasher/ironhall/internal/matrix"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestRouteSelectsTableByState(t *testing.T) {
	r := New(testLogger())

	var sawUnregistered, sawRegistered bool
	r.HandleUnregistered("NICK", func(ctx *Context) { sawUnregistered = true })
	r.HandleRegistered("PRIVMSG", func(ctx *Context) { sawRegistered = true })

	mx := matrix.New(8, &matrix.Config{})
	server, _ := net.Pipe()
	c := connection.New(server, mx, testLogger().Logger, nil, nil)

	msg, _ := ircmsg.Parse("NICK alice")
	r.Route(c, msg)
	assert.True(t, sawUnregistered)

	c.SetState(connection.StateRegistered)
	msg2, _ := ircmsg.Parse("PRIVMSG #chan :hi")
	r.Route(c, msg2)
	assert.True(t, sawRegistered)
}

func TestRouteUnknownCommandDoesNotPanic(t *testing.T) {
	r := New(testLogger())
	mx := matrix.New(8, &matrix.Config{})
	server, _ := net.Pipe()
	c := connection.New(server, mx, testLogger().Logger, nil, nil)

	msg, _ := ircmsg.Parse("BOGUS foo")
	r.Route(c, msg) // must not panic
}

func TestAbortStopsChain(t *testing.T) {
	r := New(testLogger())
	var secondCalled bool
	r.HandleRegistered("PING",
		func(ctx *Context) { ctx.AbortWithError(assert.AnError) },
		func(ctx *Context) { secondCalled = true },
	)

	mx := matrix.New(8, &matrix.Config{})
	server, _ := net.Pipe()
	c := connection.New(server, mx, testLogger().Logger, nil, nil)
	c.SetState(connection.StateRegistered)

	msg, _ := ircmsg.Parse("PING abc")
	r.Route(c, msg)
	assert.False(t, secondCalled)
}
