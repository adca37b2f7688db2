package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, path, serverName string) {
	t.Helper()
	body := "server_name: " + serverName + "\nmotd:\n  - \"hello\"\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestManagerLoadsInitialSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "hall-a")

	mgr, err := NewManager(path, logrus.New())
	require.NoError(t, err)
	assert.Equal(t, "hall-a", mgr.Snapshot().ServerName)
	assert.Equal(t, []string{"hello"}, mgr.Hot().MOTD())
}

func TestManagerWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "hall-a")

	mgr, err := NewManager(path, logrus.New())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mgr.Watch(ctx)

	time.Sleep(50 * time.Millisecond)
	writeConfig(t, path, "hall-b")

	require.Eventually(t, func() bool {
		return mgr.Snapshot().ServerName == "hall-b"
	}, 2*time.Second, 20*time.Millisecond)
}
