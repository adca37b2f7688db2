package sqlstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterChannelCreatesFounderAccess(t *testing.T) {
	s := newTestStore(t)
	acct, _ := s.CreateAccount("alice", "hash")

	id, err := s.RegisterChannel("#test", acct.ID)
	require.NoError(t, err)

	list, err := s.AccessList(id)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, "F", list[0].Flags)
}

func TestRegisterChannelDuplicateFails(t *testing.T) {
	s := newTestStore(t)
	acct, _ := s.CreateAccount("alice", "hash")
	_, err := s.RegisterChannel("#test", acct.ID)
	require.NoError(t, err)
	_, err = s.RegisterChannel("#test", acct.ID)
	assert.ErrorIs(t, err, ErrChannelExists)
}

func TestAkickRoundTrip(t *testing.T) {
	s := newTestStore(t)
	acct, _ := s.CreateAccount("alice", "hash")
	id, _ := s.RegisterChannel("#test", acct.ID)

	require.NoError(t, s.AddAkick(id, "*!*@evil.example", "spam", "alice"))
	list, err := s.AkickList(id)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.RemoveAkick(id, "*!*@evil.example"))
	list, _ = s.AkickList(id)
	assert.Len(t, list, 0)
}
