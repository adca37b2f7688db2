package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeAccountStore struct {
	byName map[string]Account
	byNick map[string]string // nick -> account name
	certs  map[int64][]string
	nextID int64
}

func newFakeAccountStore() *fakeAccountStore {
	return &fakeAccountStore{
		byName: make(map[string]Account),
		byNick: make(map[string]string),
		certs:  make(map[int64][]string),
	}
}

func (f *fakeAccountStore) FindAccountByName(name string) (Account, bool, error) {
	a, ok := f.byName[name]
	return a, ok, nil
}

func (f *fakeAccountStore) FindAccountByNick(nick string) (Account, bool, error) {
	name, ok := f.byNick[nick]
	if !ok {
		return Account{}, false, nil
	}
	return f.FindAccountByName(name)
}

func (f *fakeAccountStore) FindAccountByCertFP(fp string) (Account, bool, error) {
	for _, a := range f.byName {
		for _, c := range f.certs[a.ID] {
			if c == fp {
				return a, true, nil
			}
		}
	}
	return Account{}, false, nil
}

func (f *fakeAccountStore) CreateAccount(name, passwordHash string) (Account, error) {
	if _, ok := f.byName[name]; ok {
		return Account{}, errors.New("exists")
	}
	f.nextID++
	a := Account{ID: f.nextID, Name: name, PasswordHash: passwordHash}
	f.byName[name] = a
	return a, nil
}

func (f *fakeAccountStore) AddNickname(accountID int64, nick string) error {
	if _, ok := f.byNick[nick]; ok {
		return errors.New("nick taken")
	}
	for _, a := range f.byName {
		if a.ID == accountID {
			f.byNick[nick] = a.Name
			return nil
		}
	}
	return errors.New("no such account")
}

func (f *fakeAccountStore) RemoveNickname(accountID int64, nick string) error {
	delete(f.byNick, nick)
	return nil
}

func (f *fakeAccountStore) PrimaryNick(accountID int64) (string, error) { return "", nil }

func (f *fakeAccountStore) NicknamesForAccount(accountID int64) ([]string, error) {
	var out []string
	for nick, name := range f.byNick {
		if a, ok := f.byName[name]; ok && a.ID == accountID {
			out = append(out, nick)
		}
	}
	return out, nil
}

func (f *fakeAccountStore) TouchLastSeen(accountID int64) error { return nil }

func (f *fakeAccountStore) AddCertFingerprint(accountID int64, fp string) error {
	f.certs[accountID] = append(f.certs[accountID], fp)
	return nil
}

func (f *fakeAccountStore) RemoveCertFingerprint(accountID int64, fp string) error {
	fps := f.certs[accountID]
	for i, c := range fps {
		if c == fp {
			f.certs[accountID] = append(fps[:i], fps[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeAccountStore) CertFingerprints(accountID int64) ([]string, error) {
	return f.certs[accountID], nil
}

func (f *fakeAccountStore) SetPlayback(accountID int64, enabled bool) error {
	for name, a := range f.byName {
		if a.ID == accountID {
			a.Playback = enabled
			f.byName[name] = a
			return nil
		}
	}
	return errors.New("no such account")
}

func TestRegisterAndIdentify(t *testing.T) {
	store := newFakeAccountStore()
	ns := NewNickServ(store)

	effects := ns.Handle("u1", "alice", "", "REGISTER hunter2")
	assert.Len(t, effects, 2)
	assert.Equal(t, EffectIdentify, effects[1].Kind)
	assert.Equal(t, "alice", effects[1].Account)

	effects = ns.Handle("u2", "alice", "", "IDENTIFY hunter2")
	assert.Equal(t, EffectIdentify, effects[1].Kind)
}

func TestIdentifyWrongPasswordFails(t *testing.T) {
	store := newFakeAccountStore()
	ns := NewNickServ(store)
	ns.Handle("u1", "alice", "", "REGISTER hunter2")

	effects := ns.Handle("u1", "alice", "", "IDENTIFY wrongpass")
	assert.Len(t, effects, 1)
	assert.Equal(t, EffectReply, effects[0].Kind)
	assert.Contains(t, effects[0].Text, "Invalid")
}

func TestIdentifyUnknownAccountFails(t *testing.T) {
	store := newFakeAccountStore()
	ns := NewNickServ(store)
	effects := ns.Handle("u1", "ghost", "", "IDENTIFY anything")
	assert.Len(t, effects, 1)
	assert.Contains(t, effects[0].Text, "Invalid")
}

func TestGhostProducesKillEffect(t *testing.T) {
	ns := NewNickServ(newFakeAccountStore())
	effects := ns.Handle("u1", "alice", "alice", "GHOST alice")
	assert.Equal(t, EffectKill, effects[0].Kind)
	assert.Equal(t, "alice", effects[0].UID)
}

func TestRecoverKillsAndForcesNick(t *testing.T) {
	ns := NewNickServ(newFakeAccountStore())
	effects := ns.Handle("u1", "bob", "alice", "RECOVER alice")
	assert.Equal(t, EffectKill, effects[0].Kind)
	assert.Equal(t, EffectForceNick, effects[1].Kind)
	assert.Equal(t, "alice", effects[1].NewNick)
}

func TestCertRequiresIdentifiedSession(t *testing.T) {
	ns := NewNickServ(newFakeAccountStore())
	effects := ns.Handle("u1", "alice", "", "CERT ADD abc123")
	assert.Contains(t, effects[0].Text, "identified")
}

func TestGroupThenUngroupRoundTrip(t *testing.T) {
	store := newFakeAccountStore()
	ns := NewNickServ(store)
	ns.Handle("u1", "alice", "", "REGISTER hunter2")

	effects := ns.Handle("u2", "alice2", "", "GROUP alice hunter2")
	assert.Contains(t, effects[0].Text, "grouped")

	effects = ns.Handle("u1", "alice", "", "UNGROUP alice2")
	assert.Contains(t, effects[0].Text, "ungrouped")

	_, found, _ := store.FindAccountByNick("alice2")
	assert.False(t, found)
}

func TestUngroupRequiresIdentifiedSession(t *testing.T) {
	ns := NewNickServ(newFakeAccountStore())
	effects := ns.Handle("u1", "ghost", "", "UNGROUP alice2")
	assert.Contains(t, effects[0].Text, "not identified")
}

func TestSetPlaybackRequiresIdentifiedSession(t *testing.T) {
	ns := NewNickServ(newFakeAccountStore())
	effects := ns.Handle("u1", "alice", "", "SET PLAYBACK ON")
	assert.Contains(t, effects[0].Text, "identified")
}

func TestSetPlaybackOnThenOff(t *testing.T) {
	store := newFakeAccountStore()
	ns := NewNickServ(store)
	ns.Handle("u1", "alice", "", "REGISTER hunter2")

	effects := ns.Handle("u1", "alice", "alice", "SET PLAYBACK ON")
	assert.Contains(t, effects[0].Text, "now ON")
	acct, _, _ := store.FindAccountByName("alice")
	assert.True(t, acct.Playback)

	effects = ns.Handle("u1", "alice", "alice", "SET PLAYBACK OFF")
	assert.Contains(t, effects[0].Text, "now OFF")
	acct, _, _ = store.FindAccountByName("alice")
	assert.False(t, acct.Playback)
}

func TestCertAddListRoundTrip(t *testing.T) {
	store := newFakeAccountStore()
	ns := NewNickServ(store)
	ns.Handle("u1", "alice", "", "REGISTER hunter2")

	effects := ns.Handle("u1", "alice", "alice", "CERT ADD abc123")
	assert.Equal(t, "Fingerprint added", effects[0].Text)

	effects = ns.Handle("u1", "alice", "alice", "CERT LIST")
	assert.Contains(t, effects[0].Text, "abc123")
}
