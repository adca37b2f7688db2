package ipdeny

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDenyExact(t *testing.T) {
	l := New()
	addr := netip.MustParseAddr("192.0.2.1")

	denied, _ := l.Denied(addr)
	assert.False(t, denied)

	l.DenyExact(addr)
	denied, reason := l.Denied(addr)
	assert.True(t, denied)
	assert.NotEmpty(t, reason)

	l.UndenyExact(addr)
	denied, _ = l.Denied(addr)
	assert.False(t, denied)
}

func TestDenyRange(t *testing.T) {
	l := New()
	prefix := netip.MustParsePrefix("203.0.113.0/24")
	l.DenyRange(prefix, "abuse", "oper")

	inside := netip.MustParseAddr("203.0.113.42")
	outside := netip.MustParseAddr("198.51.100.1")

	denied, reason := l.Denied(inside)
	assert.True(t, denied)
	assert.Equal(t, "abuse", reason)

	denied, _ = l.Denied(outside)
	assert.False(t, denied)

	l.UndenyRange(prefix)
	denied, _ = l.Denied(inside)
	assert.False(t, denied)
}

func TestRangesSnapshot(t *testing.T) {
	l := New()
	p1 := netip.MustParsePrefix("10.0.0.0/8")
	p2 := netip.MustParsePrefix("172.16.0.0/12")
	l.DenyRange(p1, "r1", "a")
	l.DenyRange(p2, "r2", "b")

	snap := l.Ranges()
	assert.Len(t, snap, 2)
}

func TestIPv6AddressesIgnoredByExactBan(t *testing.T) {
	l := New()
	addr := netip.MustParseAddr("2001:db8::1")
	l.DenyExact(addr)
	denied, _ := l.Denied(addr)
	assert.False(t, denied)
}
