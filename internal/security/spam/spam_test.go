package spam

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeywordDetection(t *testing.T) {
	d := New(DefaultConfig())
	v := d.Check("uid1", "act now, FREE MONEY waiting for you")
	assert.True(t, v.Flagged)
	assert.Equal(t, "keyword", v.Pattern)
}

func TestLowEntropyDetection(t *testing.T) {
	d := New(DefaultConfig())
	v := d.Check("uid2", strings.Repeat("a", 9)+"b")
	assert.True(t, v.Flagged)
	assert.Equal(t, "low-entropy", v.Pattern)
}

func TestCharRunDetection(t *testing.T) {
	d := New(DefaultConfig())
	v := d.Check("uid3", "hellooooooooooooo there friend how are you")
	assert.True(t, v.Flagged)
	assert.Equal(t, "char-run", v.Pattern)
}

func TestShortenerDetection(t *testing.T) {
	d := New(DefaultConfig())
	v := d.Check("uid4", "check this out http://bit.ly/xyz123abc totally normal message here")
	assert.True(t, v.Flagged)
}

func TestCTCPFloodDetection(t *testing.T) {
	d := New(DefaultConfig())
	v := d.Check("uid5", "\x01ACTION\x01\x01VERSION\x01\x01PING\x01 hello there friend")
	assert.True(t, v.Flagged)
	assert.Equal(t, "ctcp-flood", v.Pattern)
}

func TestRepeatDetection(t *testing.T) {
	d := New(DefaultConfig())
	msg := "hello there good friend, how is your day"
	v1 := d.Check("uid6", msg)
	assert.False(t, v1.Flagged)
	v2 := d.Check("uid6", msg)
	assert.False(t, v2.Flagged)
	v3 := d.Check("uid6", msg)
	assert.True(t, v3.Flagged)
	assert.Equal(t, "repeat", v3.Pattern)
}

func TestCleanMessagePasses(t *testing.T) {
	d := New(DefaultConfig())
	v := d.Check("uid7", "hey, are we still meeting for lunch tomorrow afternoon")
	assert.False(t, v.Flagged)
}
