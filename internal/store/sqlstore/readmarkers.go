package sqlstore

import "database/sql"

// SetReadMarker advances the (account, target) read marker, updating
// it only if nanotime is newer than the stored value, per spec.md
// §4.7's "Read markers" monotonic-advance rule.
func (s *Store) SetReadMarker(account, target string, nanotime int64) error {
	_, err := s.db.Exec(
		`INSERT INTO read_markers (account, target, nanotime) VALUES (?, ?, ?)
		 ON CONFLICT(account, target) DO UPDATE SET nanotime = excluded.nanotime
		 WHERE excluded.nanotime > read_markers.nanotime`,
		account, target, nanotime)
	return err
}

// ReadMarker returns the stored marker for (account, target), or zero
// if none exists.
func (s *Store) ReadMarker(account, target string) (int64, error) {
	var nt int64
	err := s.db.QueryRow(`SELECT nanotime FROM read_markers WHERE account = ? AND target = ?`, account, target).Scan(&nt)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return nt, err
}
