package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeChannelStore struct {
	channels map[string]int64
	access   map[int64][]ChannelAccess
	akicks   map[int64][]AkickEntry
	nextID   int64
}

func newFakeChannelStore() *fakeChannelStore {
	return &fakeChannelStore{
		channels: make(map[string]int64),
		access:   make(map[int64][]ChannelAccess),
		akicks:   make(map[int64][]AkickEntry),
	}
}

func (f *fakeChannelStore) RegisterChannel(name string, founderAccountID int64) (int64, error) {
	if _, ok := f.channels[name]; ok {
		return 0, errors.New("exists")
	}
	f.nextID++
	f.channels[name] = f.nextID
	f.access[f.nextID] = []ChannelAccess{{ChannelID: f.nextID, AccountID: founderAccountID, Flags: "F"}}
	return f.nextID, nil
}

func (f *fakeChannelStore) FindChannel(name string) (int64, bool, error) {
	id, ok := f.channels[name]
	return id, ok, nil
}

func (f *fakeChannelStore) AccessList(channelID int64) ([]ChannelAccess, error) {
	return f.access[channelID], nil
}

func (f *fakeChannelStore) SetAccess(channelID, accountID int64, flags, addedBy string) error {
	f.access[channelID] = append(f.access[channelID], ChannelAccess{ChannelID: channelID, AccountID: accountID, Flags: flags, AddedBy: addedBy})
	return nil
}

func (f *fakeChannelStore) RemoveAccess(channelID, accountID int64) error {
	list := f.access[channelID]
	for i, e := range list {
		if e.AccountID == accountID {
			f.access[channelID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeChannelStore) AkickList(channelID int64) ([]AkickEntry, error) {
	return f.akicks[channelID], nil
}

func (f *fakeChannelStore) AddAkick(channelID int64, mask, reason, setBy string) error {
	f.akicks[channelID] = append(f.akicks[channelID], AkickEntry{ChannelID: channelID, Mask: mask, Reason: reason, SetBy: setBy})
	return nil
}

func (f *fakeChannelStore) RemoveAkick(channelID int64, mask string) error {
	list := f.akicks[channelID]
	for i, e := range list {
		if e.Mask == mask {
			f.akicks[channelID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return nil
}

func TestChanServRequiresIdentified(t *testing.T) {
	cs := NewChanServ(newFakeChannelStore(), newFakeAccountStore())
	effects := cs.Handle("u1", "", "REGISTER #test")
	assert.Contains(t, effects[0].Text, "identified")
}

func TestChanServRegister(t *testing.T) {
	accounts := newFakeAccountStore()
	accounts.CreateAccount("alice", "hash")
	cs := NewChanServ(newFakeChannelStore(), accounts)

	effects := cs.Handle("u1", "alice", "REGISTER #test")
	assert.Len(t, effects, 2)
	assert.Equal(t, EffectSetMemberMode, effects[1].Kind)
	assert.Equal(t, "#test", effects[1].Channel)
}

func TestChanServAkickRoundTrip(t *testing.T) {
	accounts := newFakeAccountStore()
	accounts.CreateAccount("alice", "hash")
	channels := newFakeChannelStore()
	cs := NewChanServ(channels, accounts)
	cs.Handle("u1", "alice", "REGISTER #test")

	effects := cs.Handle("u1", "alice", "AKICK #test ADD *!*@evil.example spamming")
	assert.Contains(t, effects[0].Text, "AKICK added")

	effects = cs.Handle("u1", "alice", "AKICK #test LIST")
	assert.Contains(t, effects[0].Text, "evil.example")

	effects = cs.Handle("u1", "alice", "AKICK #test DEL *!*@evil.example")
	assert.Contains(t, effects[0].Text, "removed")
}

func TestChanServAccessRoundTrip(t *testing.T) {
	accounts := newFakeAccountStore()
	accounts.CreateAccount("alice", "hash")
	accounts.CreateAccount("bob", "hash")
	channels := newFakeChannelStore()
	cs := NewChanServ(channels, accounts)
	cs.Handle("u1", "alice", "REGISTER #test")

	effects := cs.Handle("u1", "alice", "ACCESS #test ADD bob o")
	assert.Contains(t, effects[0].Text, "updated")

	effects = cs.Handle("u1", "alice", "ACCESS #test DEL bob")
	assert.Contains(t, effects[0].Text, "removed")
}
