package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSnapshotAppliesOptions(t *testing.T) {
	s := NewSnapshot(
		WithServerName("hall.test"),
		WithNetworkName("HallNet"),
		WithHostname("irc.hall.test"),
		WithListenAddrs(":6667", ":6697"),
		WithMOTD([]string{"welcome"}),
	)
	assert.Equal(t, "hall.test", s.ServerName)
	assert.Equal(t, "HallNet", s.NetworkName)
	assert.Equal(t, "irc.hall.test", s.Hostname)
	assert.Equal(t, []string{":6667", ":6697"}, s.ListenAddrs)
	assert.Equal(t, []string{"welcome"}, s.MOTD)
}

func TestNewSnapshotDefaults(t *testing.T) {
	s := NewSnapshot()
	assert.Equal(t, "ironhall", s.ServerName)
	assert.Equal(t, 32, s.MaxNickLength)
	assert.Greater(t, s.RateLimits.MsgPerSecond, 0.0)
}

func TestLoadDecodesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlBody := `
server_name: forge
network_name: ForgeNet
hostname: irc.forge.test
listen_addrs:
  - ":6667"
motd:
  - "line one"
  - "line two"
cloak:
  secret: "this-is-a-long-enough-secret-value"
  ip_suffix: ".ip"
rate_limits:
  conn_per_minute: 20
  msg_per_second: 8
  msg_burst: 16
  join_per_second: 3
  join_burst: 6
`
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "forge", s.ServerName)
	assert.Equal(t, "ForgeNet", s.NetworkName)
	assert.Equal(t, []string{"line one", "line two"}, s.MOTD)
	assert.Equal(t, "this-is-a-long-enough-secret-value", s.CloakSecret)
	assert.Equal(t, 8.0, s.RateLimits.MsgPerSecond)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}
