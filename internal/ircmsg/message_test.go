package ircmsg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageRender(t *testing.T) {
	tests := []struct {
		name     string
		msg      Message
		expected string
	}{
		{
			name: "simple privmsg",
			msg: Message{
				Prefix:      "nick1!someuser@irc.somehost.org",
				Command:     CmdPrivMsg,
				Params:      []string{"#chan"},
				Trailing:    "hello there",
				HasTrailing: true,
			},
			expected: ":nick1!someuser@irc.somehost.org PRIVMSG #chan :hello there\r\n",
		},
		{
			name: "numeric reply",
			msg: Message{
				Prefix:      "irc.server.net",
				Code:        RplWelcome,
				Params:      []string{"alice"},
				Trailing:    "Welcome",
				HasTrailing: true,
			},
			expected: ":irc.server.net 001 alice :Welcome\r\n",
		},
		{
			name: "no trailing",
			msg: Message{
				Command: CmdPing,
				Params:  []string{"abc"},
			},
			expected: "PING abc\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.msg.Render())
		})
	}
}

func TestTagEscapeRoundTrip(t *testing.T) {
	values := []string{"a b", "a;b", "a\\b", "a\rb", "a\nb", "plain"}
	for _, v := range values {
		escaped := EscapeTagValue(v)
		assert.Equal(t, v, UnescapeTagValue(escaped))
	}
}
