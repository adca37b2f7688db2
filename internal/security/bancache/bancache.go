// Package bancache implements the in-memory K-line/G-line cache
// described in spec.md's security plane: a fast mask-match layer that
// sits in front of the durable ban tables in internal/store/sqlstore,
// checked before registration completes without a database round trip.
//
// D-lines and Z-lines are handled by internal/security/ipdeny instead,
// since those ban raw addresses rather than user@host masks. R-lines
// live in sqlstore directly since they're only evaluated once, after
// USER arrives, and gain nothing from an in-memory cache.
//
// Grounded on the teacher's map-backed registries (chan_map.go's
// lock-and-scan pattern) generalized to ban masks; mask matching
// follows original_source's src/security/ban.rs wildcard-to-regex
// compilation, since no glob library in the retrieved pack handles
// case-insensitive `*`/`?` wildcards directly.
package bancache

import (
	"regexp"
	"strings"
	"sync"
	"time"
)

// Kind distinguishes the two mask families this cache holds.
type Kind int

const (
	KLine Kind = iota // local user@host ban
	GLine             // network-wide user@host ban
)

// Entry is one cached ban record.
type Entry struct {
	Mask      string
	Reason    string
	SetBy     string
	SetAt     time.Time
	ExpiresAt *time.Time // nil means permanent
}

func (e Entry) expired(now time.Time) bool {
	return e.ExpiresAt != nil && !e.ExpiresAt.After(now)
}

// Cache holds the live K-line and G-line masks.
type Cache struct {
	mu     sync.RWMutex
	klines map[string]Entry
	glines map[string]Entry
}

// New constructs an empty cache.
func New() *Cache {
	return &Cache{
		klines: make(map[string]Entry),
		glines: make(map[string]Entry),
	}
}

func (c *Cache) table(kind Kind) map[string]Entry {
	if kind == GLine {
		return c.glines
	}
	return c.klines
}

// Add inserts or replaces a ban entry, keyed by its mask.
func (c *Cache) Add(kind Kind, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.table(kind)[strings.ToLower(e.Mask)] = e
}

// Remove deletes a ban entry by mask.
func (c *Cache) Remove(kind Kind, mask string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.table(kind), strings.ToLower(mask))
}

// Match reports whether hostmask (nick!user@host) is covered by any
// live entry of the given kind, lazily skipping expired records, and
// returns the matching entry's reason.
func (c *Cache) Match(kind Kind, hostmask string) (bool, string) {
	now := time.Now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.table(kind) {
		if e.expired(now) {
			continue
		}
		if MatchMask(e.Mask, hostmask) {
			return true, e.Reason
		}
	}
	return false, ""
}

// List returns a snapshot of live (non-expired) entries of the given kind.
func (c *Cache) List(kind Kind) []Entry {
	now := time.Now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, 0, len(c.table(kind)))
	for _, e := range c.table(kind) {
		if !e.expired(now) {
			out = append(out, e)
		}
	}
	return out
}

// Prune removes every expired entry from both tables. Intended to run
// on a periodic maintenance task alongside WHOWAS and history pruning.
func (c *Cache) Prune() int {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for _, tbl := range []map[string]Entry{c.klines, c.glines} {
		for mask, e := range tbl {
			if e.expired(now) {
				delete(tbl, mask)
				removed++
			}
		}
	}
	return removed
}

// MatchMask compiles an IRC ban mask (wildcards `*` and `?`, case
// insensitive) into a regular expression and tests it against s. Used
// by both the ban cache and the extban evaluator.
func MatchMask(mask, s string) bool {
	re, err := compileMask(mask)
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

func compileMask(mask string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("(?i)^")
	for _, r := range mask {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}
