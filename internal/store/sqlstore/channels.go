package sqlstore

import (
	"database/sql"
	"errors"
	"time"

	"github.com/btnmasher/ironhall/internal/services"
)

// ErrChannelExists is returned by RegisterChannel on a name conflict.
var ErrChannelExists = errors.New("sqlstore: channel already registered")

// RegisterChannel creates a channel row and a founder access row (flag
// "F") in one transaction, per spec.md §4.5's "Channel registry".
func (s *Store) RegisterChannel(name string, founderAccountID int64) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	now := time.Now().UnixNano()
	res, err := tx.Exec(
		`INSERT INTO channels (name, founder_account_id, registered_at, last_used_at) VALUES (?, ?, ?, ?)`,
		name, founderAccountID, now, now)
	if err != nil {
		return 0, ErrChannelExists
	}
	id, _ := res.LastInsertId()

	if _, err := tx.Exec(
		`INSERT INTO channel_access (channel_id, account_id, flags, added_by, added_at) VALUES (?, ?, 'F', 'ChanServ', ?)`,
		id, founderAccountID, now); err != nil {
		return 0, err
	}

	return id, tx.Commit()
}

func (s *Store) FindChannel(name string) (int64, bool, error) {
	var id int64
	err := s.db.QueryRow(`SELECT id FROM channels WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	return id, err == nil, err
}

func (s *Store) AccessList(channelID int64) ([]services.ChannelAccess, error) {
	rows, err := s.db.Query(
		`SELECT channel_id, account_id, flags, added_by, added_at FROM channel_access WHERE channel_id = ?`, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []services.ChannelAccess
	for rows.Next() {
		var e services.ChannelAccess
		var addedAt int64
		if err := rows.Scan(&e.ChannelID, &e.AccountID, &e.Flags, &e.AddedBy, &addedAt); err != nil {
			return nil, err
		}
		e.AddedAt = time.Unix(0, addedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// SetAccess inserts or replaces an access-list entry. Flags is a
// subset of "Fov" (founder, op, voice) per spec.md §4.5.
func (s *Store) SetAccess(channelID, accountID int64, flags, addedBy string) error {
	_, err := s.db.Exec(
		`INSERT INTO channel_access (channel_id, account_id, flags, added_by, added_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(channel_id, account_id) DO UPDATE SET flags = excluded.flags, added_by = excluded.added_by, added_at = excluded.added_at`,
		channelID, accountID, flags, addedBy, time.Now().UnixNano())
	return err
}

func (s *Store) RemoveAccess(channelID, accountID int64) error {
	_, err := s.db.Exec(`DELETE FROM channel_access WHERE channel_id = ? AND account_id = ?`, channelID, accountID)
	return err
}

func (s *Store) AkickList(channelID int64) ([]services.AkickEntry, error) {
	rows, err := s.db.Query(
		`SELECT channel_id, mask, reason, set_by, set_at FROM channel_akick WHERE channel_id = ?`, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []services.AkickEntry
	for rows.Next() {
		var e services.AkickEntry
		var setAt int64
		if err := rows.Scan(&e.ChannelID, &e.Mask, &e.Reason, &e.SetBy, &setAt); err != nil {
			return nil, err
		}
		e.SetAt = time.Unix(0, setAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) AddAkick(channelID int64, mask, reason, setBy string) error {
	_, err := s.db.Exec(
		`INSERT INTO channel_akick (channel_id, mask, reason, set_by, set_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(channel_id, mask) DO UPDATE SET reason = excluded.reason, set_by = excluded.set_by, set_at = excluded.set_at`,
		channelID, mask, reason, setBy, time.Now().UnixNano())
	return err
}

func (s *Store) RemoveAkick(channelID int64, mask string) error {
	_, err := s.db.Exec(`DELETE FROM channel_akick WHERE channel_id = ? AND mask = ?`, channelID, mask)
	return err
}

var _ services.ChannelStore = (*Store)(nil)
