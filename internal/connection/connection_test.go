package connection

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/btnmasher/ironhall/internal/ircmsg"
	"github.com/btnmasher/ironhall/internal/matrix"
)

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestDispatchRoutesParsedMessage(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	var gotCommand string
	route := func(c *Conn, msg *ircmsg.Message) {
		gotCommand = msg.Command
		c.signalKill()
	}

	mx := matrix.New(8, &matrix.Config{})
	c := New(server, mx, discardLogger(), route, nil)

	go func() {
		client.Write([]byte("PING abc\r\n"))
	}()

	go c.Serve()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, "PING", gotCommand)
}

func TestLabelCaptureSetDuringDispatch(t *testing.T) {
	var sawLabel string
	route := func(c *Conn, msg *ircmsg.Message) {
		if l, ok := c.Label(); ok {
			sawLabel = l
		}
	}

	server, _ := net.Pipe()
	mx := matrix.New(8, &matrix.Config{})
	c := New(server, mx, discardLogger(), route, nil)

	msg, err := ircmsg.Parse("@label=abc123 PRIVMSG #chan :hi")
	assert.NoError(t, err)
	c.dispatch(msg)

	assert.Equal(t, "abc123", sawLabel)
	_, ok := c.Label()
	assert.False(t, ok)
}

func TestRandomTokenLength(t *testing.T) {
	tok := randomToken(10)
	assert.Len(t, tok, 20) // hex-encoded
}

func TestAbsorbBatchTracksReference(t *testing.T) {
	server, _ := net.Pipe()
	mx := matrix.New(8, &matrix.Config{})
	c := New(server, mx, discardLogger(), nil, nil)

	start, _ := ircmsg.Parse("BATCH +ref1 draft/chathistory")
	assert.True(t, c.absorbBatch(start))
	_, ok := c.batches["ref1"]
	assert.True(t, ok)

	end, _ := ircmsg.Parse("BATCH -ref1")
	assert.True(t, c.absorbBatch(end))
	_, ok = c.batches["ref1"]
	assert.False(t, ok)
}
