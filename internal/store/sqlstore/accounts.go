package sqlstore

import (
	"database/sql"
	"errors"
	"time"

	"github.com/btnmasher/ironhall/internal/services"
)

// ErrAccountExists is returned by CreateAccount on a unique-name
// conflict, translating SQLite's constraint error per spec.md §4.5.
var ErrAccountExists = errors.New("sqlstore: account already exists")

// ErrNicknameTaken is returned when a nickname is already grouped to
// some account.
var ErrNicknameTaken = errors.New("sqlstore: nickname already registered")

func (s *Store) FindAccountByName(name string) (services.Account, bool, error) {
	return s.scanAccount(s.db.QueryRow(
		`SELECT id, name, password_hash, email, registered_at, last_seen_at, enforce, hide_email, playback
		 FROM accounts WHERE name = ?`, name))
}

func (s *Store) FindAccountByNick(nick string) (services.Account, bool, error) {
	return s.scanAccount(s.db.QueryRow(
		`SELECT a.id, a.name, a.password_hash, a.email, a.registered_at, a.last_seen_at, a.enforce, a.hide_email, a.playback
		 FROM accounts a JOIN nicknames n ON n.account_id = a.id WHERE n.nick = ?`, nick))
}

func (s *Store) FindAccountByCertFP(fp string) (services.Account, bool, error) {
	return s.scanAccount(s.db.QueryRow(
		`SELECT a.id, a.name, a.password_hash, a.email, a.registered_at, a.last_seen_at, a.enforce, a.hide_email, a.playback
		 FROM accounts a JOIN account_certs c ON c.account_id = a.id WHERE c.fingerprint = ?`, fp))
}

func (s *Store) scanAccount(row *sql.Row) (services.Account, bool, error) {
	var a services.Account
	var registeredAt, lastSeenAt int64
	var enforce, hideEmail, playback int
	err := row.Scan(&a.ID, &a.Name, &a.PasswordHash, &a.Email, &registeredAt, &lastSeenAt, &enforce, &hideEmail, &playback)
	if errors.Is(err, sql.ErrNoRows) {
		return services.Account{}, false, nil
	}
	if err != nil {
		return services.Account{}, false, err
	}
	a.RegisteredAt = time.Unix(0, registeredAt)
	a.LastSeenAt = time.Unix(0, lastSeenAt)
	a.Enforce = enforce != 0
	a.HideEmail = hideEmail != 0
	a.Playback = playback != 0
	return a, true, nil
}

// SetPlayback persists the account's "replay channel history on JOIN"
// preference, backing NickServ's SET PLAYBACK ON|OFF.
func (s *Store) SetPlayback(accountID int64, enabled bool) error {
	val := 0
	if enabled {
		val = 1
	}
	_, err := s.db.Exec(`UPDATE accounts SET playback = ? WHERE id = ?`, val, accountID)
	return err
}

// CreateAccount inserts a new account row, hashed password already
// computed by the caller (internal/services/nickserv.go via argon2id).
func (s *Store) CreateAccount(name, passwordHash string) (services.Account, error) {
	now := time.Now().UnixNano()
	res, err := s.db.Exec(
		`INSERT INTO accounts (name, password_hash, registered_at, last_seen_at) VALUES (?, ?, ?, ?)`,
		name, passwordHash, now, now)
	if err != nil {
		return services.Account{}, ErrAccountExists
	}
	id, _ := res.LastInsertId()
	return services.Account{ID: id, Name: name, PasswordHash: passwordHash, RegisteredAt: time.Unix(0, now), LastSeenAt: time.Unix(0, now)}, nil
}

func (s *Store) AddNickname(accountID int64, nick string) error {
	_, err := s.db.Exec(`INSERT INTO nicknames (nick, account_id) VALUES (?, ?)`, nick, accountID)
	if err != nil {
		return ErrNicknameTaken
	}
	return nil
}

// RemoveNickname refuses to remove the account's primary nick (the
// first one ever registered) or the last remaining nick, per spec.md
// §4.5's "ungroup refuses..." sentence.
func (s *Store) RemoveNickname(accountID int64, nick string) error {
	names, err := s.NicknamesForAccount(accountID)
	if err != nil {
		return err
	}
	if len(names) <= 1 {
		return errors.New("sqlstore: cannot remove the last nickname on an account")
	}
	primary, err := s.PrimaryNick(accountID)
	if err == nil && primary == nick {
		return errors.New("sqlstore: cannot remove the primary nickname")
	}
	_, err = s.db.Exec(`DELETE FROM nicknames WHERE nick = ? AND account_id = ?`, nick, accountID)
	return err
}

// PrimaryNick returns the account's first-registered nick, by rowid
// insertion order.
func (s *Store) PrimaryNick(accountID int64) (string, error) {
	var nick string
	err := s.db.QueryRow(`SELECT nick FROM nicknames WHERE account_id = ? ORDER BY rowid ASC LIMIT 1`, accountID).Scan(&nick)
	return nick, err
}

func (s *Store) NicknamesForAccount(accountID int64) ([]string, error) {
	rows, err := s.db.Query(`SELECT nick FROM nicknames WHERE account_id = ? ORDER BY rowid ASC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) TouchLastSeen(accountID int64) error {
	_, err := s.db.Exec(`UPDATE accounts SET last_seen_at = ? WHERE id = ?`, time.Now().UnixNano(), accountID)
	return err
}

func (s *Store) AddCertFingerprint(accountID int64, fp string) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO account_certs (account_id, fingerprint) VALUES (?, ?)`, accountID, fp)
	return err
}

func (s *Store) RemoveCertFingerprint(accountID int64, fp string) error {
	_, err := s.db.Exec(`DELETE FROM account_certs WHERE account_id = ? AND fingerprint = ?`, accountID, fp)
	return err
}

func (s *Store) CertFingerprints(accountID int64) ([]string, error) {
	rows, err := s.db.Query(`SELECT fingerprint FROM account_certs WHERE account_id = ?`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, err
		}
		out = append(out, fp)
	}
	return out, rows.Err()
}

var _ services.AccountStore = (*Store)(nil)
