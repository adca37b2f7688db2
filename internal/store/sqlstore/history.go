package sqlstore

// HistoryEntry is one stored message row, per spec.md §4.5's "History
// entry": msgid, case-folded target, sender nick, an opaque envelope
// blob, nanotime, and optional sender/target account for DM
// disambiguation across nick changes.
type HistoryEntry struct {
	MsgID         string
	Target        string // case-folded
	SenderNick    string
	Envelope      []byte
	Nanotime      int64
	SenderAccount string
	TargetAccount string
}

// InsertHistory stores a message, idempotent by msgid per spec.md:
// duplicate insertions with the same msgid leave exactly one row.
func (s *Store) InsertHistory(e HistoryEntry) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO message_history
		 (msgid, target, sender_nick, envelope, nanotime, sender_account, target_account)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.MsgID, e.Target, e.SenderNick, e.Envelope, e.Nanotime, e.SenderAccount, e.TargetAccount)
	return err
}

func scanHistoryRows(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]HistoryEntry, error) {
	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.MsgID, &e.Target, &e.SenderNick, &e.Envelope, &e.Nanotime, &e.SenderAccount, &e.TargetAccount); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func reverseHistory(entries []HistoryEntry) []HistoryEntry {
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries
}
