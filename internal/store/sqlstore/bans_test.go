package sqlstore

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAndListBans(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddBan(KLine, BanRecord{Mask: "*!*@bad.example", Reason: "spam", SetBy: "oper"}))

	list, err := s.ListBans(KLine)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestExpiredBanExcludedFromList(t *testing.T) {
	s := newTestStore(t)
	past := time.Now().Add(-time.Hour)
	require.NoError(t, s.AddBan(GLine, BanRecord{Mask: "*!*@gone.example", ExpiresAt: &past}))

	list, err := s.ListBans(GLine)
	require.NoError(t, err)
	assert.Len(t, list, 0)
}

func TestCheckAllBansOrderZDGK(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddBan(KLine, BanRecord{Mask: "*!*@host.example", Reason: "kline-reason", SetBy: "oper"}))
	require.NoError(t, s.AddBan(ZLine, BanRecord{Mask: "198.51.100.0/24", Reason: "zline-reason", SetBy: "oper"}))

	ip := netip.MustParseAddr("198.51.100.5")
	kind, reason, ok := s.CheckAllBans(ip, "nick!user@host.example")
	assert.True(t, ok)
	assert.Equal(t, ZLine, kind)
	assert.Equal(t, "zline-reason", reason)
}

func TestCheckAllBansFallsThroughToKLine(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddBan(KLine, BanRecord{Mask: "*!*@host.example", Reason: "kline-reason", SetBy: "oper"}))

	ip := netip.MustParseAddr("203.0.113.5")
	kind, reason, ok := s.CheckAllBans(ip, "nick!user@host.example")
	assert.True(t, ok)
	assert.Equal(t, KLine, kind)
	assert.Equal(t, "kline-reason", reason)
}

func TestCheckRealname(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddBan(RLine, BanRecord{Mask: "*spammer*", Reason: "realname ban", SetBy: "oper"}))

	reason, matched := s.CheckRealname("Totally A Spammer Bot")
	assert.True(t, matched)
	assert.Equal(t, "realname ban", reason)
}

func TestRemoveBan(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddBan(Shun, BanRecord{Mask: "*!*@noisy.example", SetBy: "oper"}))
	require.NoError(t, s.RemoveBan(Shun, "*!*@noisy.example"))

	list, _ := s.ListBans(Shun)
	assert.Len(t, list, 0)
}
