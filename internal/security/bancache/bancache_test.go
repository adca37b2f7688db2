package bancache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAddAndMatch(t *testing.T) {
	c := New()
	c.Add(KLine, Entry{Mask: "*!*@badhost.example", Reason: "spam", SetBy: "oper"})

	ok, reason := c.Match(KLine, "evil!user@badhost.example")
	assert.True(t, ok)
	assert.Equal(t, "spam", reason)

	ok, _ = c.Match(KLine, "good!user@goodhost.example")
	assert.False(t, ok)
}

func TestRemove(t *testing.T) {
	c := New()
	c.Add(GLine, Entry{Mask: "*!baduser@*", Reason: "abuse"})
	ok, _ := c.Match(GLine, "anyone!baduser@anywhere")
	assert.True(t, ok)

	c.Remove(GLine, "*!baduser@*")
	ok, _ = c.Match(GLine, "anyone!baduser@anywhere")
	assert.False(t, ok)
}

func TestExpiredEntryDoesNotMatch(t *testing.T) {
	c := New()
	past := time.Now().Add(-time.Hour)
	c.Add(KLine, Entry{Mask: "*!*@expired.example", ExpiresAt: &past})

	ok, _ := c.Match(KLine, "x!y@expired.example")
	assert.False(t, ok)
}

func TestPruneRemovesExpired(t *testing.T) {
	c := New()
	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)
	c.Add(KLine, Entry{Mask: "*!*@gone.example", ExpiresAt: &past})
	c.Add(KLine, Entry{Mask: "*!*@stays.example", ExpiresAt: &future})

	removed := c.Prune()
	assert.Equal(t, 1, removed)
	assert.Len(t, c.List(KLine), 1)
}

func TestMatchMaskWildcards(t *testing.T) {
	assert.True(t, MatchMask("nick!*@*.example.com", "nick!user@host.example.com"))
	assert.False(t, MatchMask("nick!*@*.example.com", "other!user@host.example.com"))
	assert.True(t, MatchMask("a?c", "abc"))
}
