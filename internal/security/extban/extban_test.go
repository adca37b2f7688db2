package extban

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlainMask(t *testing.T) {
	ctx := UserContext{Hostmask: "alice!alice@host.example"}
	assert.True(t, Matches("*!*@host.example", ctx))
	assert.False(t, Matches("*!*@other.example", ctx))
}

func TestAccountExtban(t *testing.T) {
	ctx := UserContext{Hostmask: "alice!a@h", Account: "alice-acct"}
	assert.True(t, Matches("$a:alice*", ctx))
	assert.False(t, Matches("$a:bob*", ctx))
	assert.False(t, Matches("$a:*", UserContext{}))
}

func TestChannelExtban(t *testing.T) {
	ctx := UserContext{Channels: []string{"#general", "#staff"}}
	assert.True(t, Matches("$c:#staff", ctx))
	assert.False(t, Matches("$c:#random", ctx))
}

func TestUnregisteredExtban(t *testing.T) {
	assert.True(t, Matches("$U", UserContext{Registered: false}))
	assert.False(t, Matches("$U", UserContext{Registered: true}))
}

func TestJoinPatternExtban(t *testing.T) {
	ctx := UserContext{Hostmask: "badnick!u@h"}
	assert.True(t, Matches("$j:bad*", ctx))
}

func TestMatchesBanOrExceptSuppressedByExcept(t *testing.T) {
	ctx := UserContext{Hostmask: "alice!a@evil.example"}
	bans := []string{"*!*@evil.example"}
	excepts := []string{"alice!*@*"}
	assert.False(t, MatchesBanOrExcept(bans, excepts, ctx))
}

func TestMatchesBanOrExceptNoExcept(t *testing.T) {
	ctx := UserContext{Hostmask: "mallory!m@evil.example"}
	bans := []string{"*!*@evil.example"}
	assert.True(t, MatchesBanOrExcept(bans, nil, ctx))
}
