package ircmsg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{
			name:  "simple command",
			input: "PRIVMSG #chan :hello world",
		},
		{
			name:  "with tags and prefix",
			input: "@label=foo;+draft/reply=123 :alice!a@b PRIVMSG #chan :hi",
		},
		{
			name:    "empty",
			input:   "",
			wantErr: ErrNotEnoughData,
		},
		{
			name:    "whitespace only",
			input:   "   \r\n",
			wantErr: ErrWhitespace,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Parse(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.NotNil(t, msg)
		})
	}
}

func TestParseTagsAndTrailing(t *testing.T) {
	msg, err := Parse(`@label=foo :alice!a@b PRIVMSG #chan :hi there\svalue`)
	assert.NoError(t, err)
	v, ok := msg.Tag("label")
	assert.True(t, ok)
	assert.Equal(t, "foo", v)
	assert.Equal(t, "alice!a@b", msg.Prefix)
	assert.Equal(t, CmdPrivMsg, msg.Command)
	assert.Equal(t, []string{"#chan"}, msg.Params)
	assert.True(t, msg.HasTrailing)
}

func TestParseRoundTrip(t *testing.T) {
	original := &Message{
		Prefix:      "irc.server.net",
		Command:     CmdNotice,
		Params:      []string{"alice"},
		Trailing:    "a message with : colon",
		HasTrailing: true,
	}
	rendered := original.Render()
	parsed, err := Parse(rendered)
	assert.NoError(t, err)
	assert.Equal(t, original.Prefix, parsed.Prefix)
	assert.Equal(t, original.Command, parsed.Command)
	assert.Equal(t, original.Params, parsed.Params)
	assert.Equal(t, original.Trailing, parsed.Trailing)
}
