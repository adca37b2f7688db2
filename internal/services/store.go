package services

import "time"

// Account is the subset of the accounts table (internal/store/sqlstore)
// that service command logic needs to consult.
type Account struct {
	ID           int64
	Name         string
	PasswordHash string
	Email        string
	RegisteredAt time.Time
	LastSeenAt   time.Time
	Enforce      bool
	HideEmail    bool
	CertFP       string
	Playback     bool
}

// ChannelAccess is one row of a registered channel's access list.
type ChannelAccess struct {
	ChannelID int64
	AccountID int64
	Flags     string // subset of "Fov": founder, op, voice
	AddedBy   string
	AddedAt   time.Time
}

// AkickEntry is one row of a registered channel's AKICK table.
type AkickEntry struct {
	ChannelID int64
	Mask      string
	Reason    string
	SetBy     string
	SetAt     time.Time
}

// AccountStore is the persistence surface NickServ needs. It's
// satisfied by internal/store/sqlstore's account table access, kept
// as a narrow interface here so service logic can be tested against a
// fake without pulling in database/sql or modernc.org/sqlite.
type AccountStore interface {
	FindAccountByName(name string) (Account, bool, error)
	FindAccountByNick(nick string) (Account, bool, error)
	FindAccountByCertFP(fp string) (Account, bool, error)
	CreateAccount(name, passwordHash string) (Account, error)
	AddNickname(accountID int64, nick string) error
	RemoveNickname(accountID int64, nick string) error
	PrimaryNick(accountID int64) (string, error)
	NicknamesForAccount(accountID int64) ([]string, error)
	TouchLastSeen(accountID int64) error
	AddCertFingerprint(accountID int64, fp string) error
	RemoveCertFingerprint(accountID int64, fp string) error
	CertFingerprints(accountID int64) ([]string, error)
	SetPlayback(accountID int64, enabled bool) error
}

// ChannelStore is the persistence surface ChanServ needs.
type ChannelStore interface {
	RegisterChannel(name string, founderAccountID int64) (int64, error)
	FindChannel(name string) (int64, bool, error)
	AccessList(channelID int64) ([]ChannelAccess, error)
	SetAccess(channelID, accountID int64, flags, addedBy string) error
	RemoveAccess(channelID, accountID int64) error
	AkickList(channelID int64) ([]AkickEntry, error)
	AddAkick(channelID int64, mask, reason, setBy string) error
	RemoveAkick(channelID int64, mask string) error
}
