package sqlstore

// This file implements the CHATHISTORY selector logic (spec.md §4.5
// "History store"). Kept separate from history.go's row I/O per
// DESIGN.md's Open-Question decision, mirroring how the teacher keeps
// protocol framing (message.go) and dispatch (handlers.go) in
// different files for the same overall concern.

// Latest returns the newest `limit` messages for target, in
// chronological order.
func (s *Store) Latest(target string, limit int) ([]HistoryEntry, error) {
	rows, err := s.db.Query(
		`SELECT msgid, target, sender_nick, envelope, nanotime, sender_account, target_account
		 FROM message_history WHERE target = ? ORDER BY nanotime DESC LIMIT ?`, target, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries, err := scanHistoryRows(rows)
	if err != nil {
		return nil, err
	}
	return reverseHistory(entries), nil
}

// LatestAfter returns the newest `limit` messages after nanotime t,
// in chronological order.
func (s *Store) LatestAfter(target string, t int64, limit int) ([]HistoryEntry, error) {
	rows, err := s.db.Query(
		`SELECT msgid, target, sender_nick, envelope, nanotime, sender_account, target_account
		 FROM message_history WHERE target = ? AND nanotime > ? ORDER BY nanotime DESC LIMIT ?`, target, t, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries, err := scanHistoryRows(rows)
	if err != nil {
		return nil, err
	}
	return reverseHistory(entries), nil
}

// Before returns up to `limit` messages strictly before nanotime t,
// newest-first reversed into chronological order.
func (s *Store) Before(target string, t int64, limit int) ([]HistoryEntry, error) {
	rows, err := s.db.Query(
		`SELECT msgid, target, sender_nick, envelope, nanotime, sender_account, target_account
		 FROM message_history WHERE target = ? AND nanotime < ? ORDER BY nanotime DESC LIMIT ?`, target, t, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries, err := scanHistoryRows(rows)
	if err != nil {
		return nil, err
	}
	return reverseHistory(entries), nil
}

// After returns up to `limit` messages strictly after nanotime t, in
// chronological (oldest-first) order.
func (s *Store) After(target string, t int64, limit int) ([]HistoryEntry, error) {
	rows, err := s.db.Query(
		`SELECT msgid, target, sender_nick, envelope, nanotime, sender_account, target_account
		 FROM message_history WHERE target = ? AND nanotime > ? ORDER BY nanotime ASC LIMIT ?`, target, t, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHistoryRows(rows)
}

// Between returns messages strictly between t1 and t2 (exclusive of
// both endpoints), oldest first. Returns empty if t1 >= t2.
func (s *Store) Between(target string, t1, t2 int64, limit int) ([]HistoryEntry, error) {
	if t1 >= t2 {
		return nil, nil
	}
	rows, err := s.db.Query(
		`SELECT msgid, target, sender_nick, envelope, nanotime, sender_account, target_account
		 FROM message_history WHERE target = ? AND nanotime > ? AND nanotime < ? ORDER BY nanotime ASC LIMIT ?`,
		target, t1, t2, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHistoryRows(rows)
}

// BetweenDesc mirrors Between but returns newest first.
func (s *Store) BetweenDesc(target string, t1, t2 int64, limit int) ([]HistoryEntry, error) {
	entries, err := s.Between(target, t1, t2, limit)
	if err != nil {
		return nil, err
	}
	return reverseHistory(entries), nil
}

// Around returns up to `limit` messages centered on nanotime t: half
// (rounded down) before, half (rounded up) after, concatenated in
// chronological order.
func (s *Store) Around(target string, t int64, limit int) ([]HistoryEntry, error) {
	before := limit / 2
	after := limit - before

	beforeEntries, err := s.Before(target, t, before)
	if err != nil {
		return nil, err
	}
	afterEntries, err := s.After(target, t, after)
	if err != nil {
		return nil, err
	}
	return append(beforeEntries, afterEntries...), nil
}

// TargetActivity is one row of the TARGETS selector's result: a
// conversation target and its most recent activity time.
type TargetActivity struct {
	Target   string
	Nanotime int64
}

// Targets returns the union of DM peers and channels `asker` is a
// member of whose most recent activity falls in the open interval
// (start, end), sorted ascending by that timestamp, limit applied.
func (s *Store) Targets(asker string, start, end int64, limit int, memberOf []string) ([]TargetActivity, error) {
	targets := make(map[string]struct{}, len(memberOf))
	for _, t := range memberOf {
		targets[t] = struct{}{}
	}

	rows, err := s.db.Query(
		`SELECT target, MAX(nanotime) FROM message_history
		 WHERE (sender_account = ? OR target_account = ?) GROUP BY target`, asker, asker)
	if err != nil {
		return nil, err
	}
	dmActivity := make(map[string]int64)
	for rows.Next() {
		var target string
		var nt int64
		if err := rows.Scan(&target, &nt); err != nil {
			rows.Close()
			return nil, err
		}
		dmActivity[target] = nt
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for t := range dmActivity {
		targets[t] = struct{}{}
	}

	var out []TargetActivity
	for t := range targets {
		var nt int64
		if v, ok := dmActivity[t]; ok {
			nt = v
		} else {
			row := s.db.QueryRow(`SELECT MAX(nanotime) FROM message_history WHERE target = ?`, t)
			_ = row.Scan(&nt)
		}
		if nt > start && nt < end {
			out = append(out, TargetActivity{Target: t, Nanotime: nt})
		}
	}

	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].Nanotime > out[j].Nanotime; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
