package channel

import (
	"path"
	"sync"
)

// maskList stores a channel's ban/except/invex/quiet entries, generalized
// from the teacher's BanList/InviteList/OpList/HalfOpList/VoiceList
// (each a bare util.ConcurrentMapString) into one reusable type shared by
// all four list-modes. Matching against nick!user@host hostmasks uses
// path.Match's glob semantics (*, ?) -- the IRC mask wildcard alphabet is
// a strict subset of shell glob, and no richer glob library appears
// anywhere in the retrieved pack, so this one stays on the standard
// library.
type maskList struct {
	mu   sync.RWMutex
	data map[string]struct{}
}

func newMaskList() *maskList {
	return &maskList{data: make(map[string]struct{})}
}

func (l *maskList) add(mask string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.data[foldMask(mask)] = struct{}{}
}

func (l *maskList) remove(mask string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.data, foldMask(mask))
}

func (l *maskList) entries() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.data))
	for m := range l.data {
		out = append(out, m)
	}
	return out
}

func (l *maskList) matches(hostmask string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	folded := foldMask(hostmask)
	for pattern := range l.data {
		if ok, err := path.Match(pattern, folded); err == nil && ok {
			return true
		}
	}
	return false
}
