package sqlstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndFindAccount(t *testing.T) {
	s := newTestStore(t)
	acct, err := s.CreateAccount("alice", "hash1")
	require.NoError(t, err)
	assert.NotZero(t, acct.ID)

	found, ok, err := s.FindAccountByName("alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, acct.ID, found.ID)
}

func TestCreateAccountDuplicateNameFails(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateAccount("alice", "hash1")
	require.NoError(t, err)
	_, err = s.CreateAccount("alice", "hash2")
	assert.ErrorIs(t, err, ErrAccountExists)
}

func TestNicknameGroupingAndRemoval(t *testing.T) {
	s := newTestStore(t)
	acct, _ := s.CreateAccount("alice", "hash")
	require.NoError(t, s.AddNickname(acct.ID, "alice"))
	require.NoError(t, s.AddNickname(acct.ID, "alice2"))

	found, ok, err := s.FindAccountByNick("alice2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, acct.ID, found.ID)

	primary, err := s.PrimaryNick(acct.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", primary)

	err = s.RemoveNickname(acct.ID, "alice")
	assert.Error(t, err, "removing the primary nick must be refused")

	require.NoError(t, s.RemoveNickname(acct.ID, "alice2"))
	err = s.RemoveNickname(acct.ID, "alice")
	assert.Error(t, err, "removing the last remaining nick must be refused")
}

func TestCertFingerprintRoundTrip(t *testing.T) {
	s := newTestStore(t)
	acct, _ := s.CreateAccount("alice", "hash")
	require.NoError(t, s.AddCertFingerprint(acct.ID, "AA:BB:CC"))

	found, ok, err := s.FindAccountByCertFP("AA:BB:CC")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, acct.ID, found.ID)

	require.NoError(t, s.RemoveCertFingerprint(acct.ID, "AA:BB:CC"))
	_, ok, _ = s.FindAccountByCertFP("AA:BB:CC")
	assert.False(t, ok)
}
