package cloak

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

const testSecret = "this-is-a-sufficiently-long-secret-value"

func TestValidateSecretRejectsWeak(t *testing.T) {
	assert.Error(t, ValidateSecret(""))
	assert.Error(t, ValidateSecret("short"))
	assert.Error(t, ValidateSecret("changeme-but-long-enough-to-pass-length"))
	assert.NoError(t, ValidateSecret(testSecret))
}

func TestCloakIPDeterministic(t *testing.T) {
	c, err := New(testSecret, "", "")
	assert.NoError(t, err)

	ip := netip.MustParseAddr("198.51.100.7")
	a := c.CloakIP(ip)
	b := c.CloakIP(ip)
	assert.Equal(t, a, b)
	assert.True(t, len(a) > 0)
}

func TestCloakIPDiffersAcrossSubnets(t *testing.T) {
	c, _ := New(testSecret, "", "")
	ip1 := netip.MustParseAddr("198.51.100.7")
	ip2 := netip.MustParseAddr("203.0.113.9")
	assert.NotEqual(t, c.CloakIP(ip1), c.CloakIP(ip2))
}

func TestCloakIPSameWithinSubnet(t *testing.T) {
	c, _ := New(testSecret, "", "")
	ip1 := netip.MustParseAddr("198.51.100.1")
	ip2 := netip.MustParseAddr("198.51.100.254")
	assert.Equal(t, c.CloakIP(ip1), c.CloakIP(ip2))
}

func TestCloakHostnamePreservesTLD(t *testing.T) {
	c, _ := New(testSecret, "", "")
	cloaked := c.CloakHostname("user.example.com")
	assert.Contains(t, cloaked, ".com")
}

func TestCloakHostnameNoTLDUsesHiddenSuffix(t *testing.T) {
	c, _ := New(testSecret, "", "")
	cloaked := c.CloakHostname("localhost")
	assert.Contains(t, cloaked, ".hidden")
}

func TestCloakIPv6(t *testing.T) {
	c, _ := New(testSecret, "", "")
	ip1 := netip.MustParseAddr("2001:db8:1234::1")
	ip2 := netip.MustParseAddr("2001:db8:1234::ffff")
	assert.Equal(t, c.CloakIP(ip1), c.CloakIP(ip2))

	ip3 := netip.MustParseAddr("2001:db8:9999::1")
	assert.NotEqual(t, c.CloakIP(ip1), c.CloakIP(ip3))
}
