package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowWithinBurst(t *testing.T) {
	l := New(PerSecond(1, 3), time.Minute)
	assert.True(t, l.Allow("uid1"))
	assert.True(t, l.Allow("uid1"))
	assert.True(t, l.Allow("uid1"))
	assert.False(t, l.Allow("uid1"))
}

func TestSeparateKeysHaveIndependentBuckets(t *testing.T) {
	l := New(PerSecond(1, 1), time.Minute)
	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))
	assert.False(t, l.Allow("a"))
}

func TestReserveReturnsCooldown(t *testing.T) {
	l := New(PerSecond(1, 1), time.Minute)
	assert.True(t, l.Allow("uid"))
	d := l.Reserve("uid")
	assert.Greater(t, d, time.Duration(0))
}

func TestRemove(t *testing.T) {
	l := New(PerSecond(1, 1), time.Minute)
	l.Allow("uid")
	l.Remove("uid")
	assert.True(t, l.Allow("uid"))
}

func TestGCReclaimsIdleBuckets(t *testing.T) {
	l := New(PerSecond(1, 1), time.Millisecond)
	l.Allow("uid")
	time.Sleep(5 * time.Millisecond)
	removed := l.GC()
	assert.Equal(t, 1, removed)
}

func TestNewSet(t *testing.T) {
	set := NewSet(10, 2, 4, 1, 2)
	assert.True(t, set.Connections.Allow("1.2.3.4"))
	assert.True(t, set.Messages.Allow("uid"))
	assert.True(t, set.Joins.Allow("uid"))
}
