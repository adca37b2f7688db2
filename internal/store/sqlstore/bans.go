package sqlstore

import (
	"net/netip"
	"time"

	"github.com/btnmasher/ironhall/internal/security/bancache"
)

// BanKind enumerates the five ban families plus Shun, per spec.md
// §4.5's "Ban persistence": K-line, G-line, D-line, Z-line, R-line,
// Shun, all sharing one (mask, reason, set_by, set_at, expires_at)
// shape and one generic add/remove/list/match path, decided in
// DESIGN.md as per-type tables behind this shared Go interface rather
// than a monolithic table.
type BanKind int

const (
	KLine BanKind = iota
	GLine
	DLine
	ZLine
	RLine
	Shun
)

var banTables = map[BanKind]string{
	KLine: "bans_kline",
	GLine: "bans_gline",
	DLine: "bans_dline",
	ZLine: "bans_zline",
	RLine: "bans_rline",
	Shun:  "bans_shun",
}

// BanRecord is one persisted ban/shun row.
type BanRecord struct {
	Mask      string
	Reason    string
	SetBy     string
	SetAt     time.Time
	ExpiresAt *time.Time
}

func (r BanRecord) expired(now time.Time) bool {
	return r.ExpiresAt != nil && !r.ExpiresAt.After(now)
}

// AddBan inserts or replaces a ban/shun record.
func (s *Store) AddBan(kind BanKind, rec BanRecord) error {
	table := banTables[kind]
	var expiresAt any
	if rec.ExpiresAt != nil {
		expiresAt = rec.ExpiresAt.UnixNano()
	}
	_, err := s.db.Exec(
		`INSERT INTO `+table+` (mask, reason, set_by, set_at, expires_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(mask) DO UPDATE SET reason = excluded.reason, set_by = excluded.set_by, set_at = excluded.set_at, expires_at = excluded.expires_at`,
		rec.Mask, rec.Reason, rec.SetBy, time.Now().UnixNano(), expiresAt)
	return err
}

// RemoveBan deletes a ban/shun record by mask.
func (s *Store) RemoveBan(kind BanKind, mask string) error {
	_, err := s.db.Exec(`DELETE FROM `+banTables[kind]+` WHERE mask = ?`, mask)
	return err
}

// ListBans returns every live (non-expired) record for kind.
func (s *Store) ListBans(kind BanKind) ([]BanRecord, error) {
	rows, err := s.db.Query(`SELECT mask, reason, set_by, set_at, expires_at FROM ` + banTables[kind])
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	now := time.Now()
	var out []BanRecord
	for rows.Next() {
		var rec BanRecord
		var setAt int64
		var expiresAt *int64
		if err := rows.Scan(&rec.Mask, &rec.Reason, &rec.SetBy, &setAt, &expiresAt); err != nil {
			return nil, err
		}
		rec.SetAt = time.Unix(0, setAt)
		if expiresAt != nil {
			t := time.Unix(0, *expiresAt)
			rec.ExpiresAt = &t
		}
		if !rec.expired(now) {
			out = append(out, rec)
		}
	}
	return out, rows.Err()
}

// CheckAllBans evaluates Z, D, G, K in that order over the connecting
// peer's IP and user@host hostmask, per spec.md §4.5's
// check_all_bans: the first match wins.
func (s *Store) CheckAllBans(ip netip.Addr, hostmask string) (kind BanKind, reason string, matched bool) {
	for _, k := range []BanKind{ZLine, DLine, GLine, KLine} {
		records, err := s.ListBans(k)
		if err != nil {
			continue
		}
		for _, r := range records {
			if matchesBanRecord(k, r, ip, hostmask) {
				return k, r.Reason, true
			}
		}
	}
	return 0, "", false
}

// CheckRealname evaluates R-lines, run separately after USER is seen
// since the realname is only known at that point.
func (s *Store) CheckRealname(realname string) (reason string, matched bool) {
	records, err := s.ListBans(RLine)
	if err != nil {
		return "", false
	}
	for _, r := range records {
		if bancache.MatchMask(r.Mask, realname) {
			return r.Reason, true
		}
	}
	return "", false
}

func matchesBanRecord(kind BanKind, r BanRecord, ip netip.Addr, hostmask string) bool {
	switch kind {
	case DLine, ZLine:
		prefix, err := netip.ParsePrefix(r.Mask)
		if err != nil {
			addr, err := netip.ParseAddr(r.Mask)
			return err == nil && addr == ip
		}
		return prefix.Contains(ip)
	default:
		return bancache.MatchMask(r.Mask, hostmask)
	}
}
