// Package spam implements the five-layer message spam detector from
// spec.md §4.3: keyword matching, Shannon entropy, character-run
// length, URL-shortener detection, and CTCP flood detection, plus a
// short per-user sliding window that flags repeated messages.
//
// Grounded on spec.md's explicit layer ordering and defaults (entropy
// threshold 3.0, run length 10, two prior repeats within 10s); the
// keyword layer is grounded on github.com/cloudflare/ahocorasick,
// named directly in SPEC_FULL.md's domain stack table for this
// purpose since no pack repo does message-content classification.
package spam

import (
	"math"
	"strings"
	"sync"
	"time"

	"github.com/cloudflare/ahocorasick"
)

// DefaultKeywords is a small starter set of common spam phrases; real
// deployments are expected to configure their own list.
var DefaultKeywords = []string{
	"buy now", "click here", "free money", "nitro generator",
	"discord.gift", "crypto giveaway", "work from home",
}

// DefaultShorteners is a starter set of known URL-shortener hostnames.
var DefaultShorteners = map[string]struct{}{
	"bit.ly": {}, "tinyurl.com": {}, "t.co": {}, "goo.gl": {},
	"ow.ly": {}, "is.gd": {}, "buff.ly": {},
}

// Verdict describes a single detection.
type Verdict struct {
	Flagged    bool
	Pattern    string
	Confidence float64
}

// Config tunes the detector's thresholds.
type Config struct {
	Keywords          []string
	Shorteners        map[string]struct{}
	EntropyThreshold  float64
	MaxCharRun        int
	CTCPMarkerLimit   int
	RepeatWindow      time.Duration
	RepeatOccurrences int
}

// DefaultConfig returns the thresholds spec.md names explicitly.
func DefaultConfig() Config {
	return Config{
		Keywords:          DefaultKeywords,
		Shorteners:        DefaultShorteners,
		EntropyThreshold:  3.0,
		MaxCharRun:        10,
		CTCPMarkerLimit:   2,
		RepeatWindow:      10 * time.Second,
		RepeatOccurrences: 2,
	}
}

// Detector evaluates message text against all five layers in order,
// short-circuiting on the first hit.
type Detector struct {
	cfg     Config
	matcher *ahocorasick.Matcher

	mu      sync.Mutex
	history map[string][]repeatEntry // keyed by UID
}

type repeatEntry struct {
	hash string
	at   time.Time
}

// New builds a Detector from cfg, lowercasing keywords for
// case-insensitive matching.
func New(cfg Config) *Detector {
	lowered := make([]string, len(cfg.Keywords))
	for i, kw := range cfg.Keywords {
		lowered[i] = strings.ToLower(kw)
	}
	return &Detector{
		cfg:     cfg,
		matcher: ahocorasick.NewStringMatcher(lowered),
		history: make(map[string][]repeatEntry),
	}
}

// Check runs all layers against text for the given uid, in spec
// order, returning the first Verdict that flags.
func (d *Detector) Check(uid, text string) Verdict {
	if v := d.checkKeywords(text); v.Flagged {
		return v
	}
	if v := d.checkEntropy(text); v.Flagged {
		return v
	}
	if v := d.checkCharRun(text); v.Flagged {
		return v
	}
	if v := d.checkShorteners(text); v.Flagged {
		return v
	}
	if v := d.checkCTCPFlood(text); v.Flagged {
		return v
	}
	return d.checkRepeat(uid, text)
}

func (d *Detector) checkKeywords(text string) Verdict {
	hits := d.matcher.Match([]byte(strings.ToLower(text)))
	if len(hits) > 0 {
		return Verdict{Flagged: true, Pattern: "keyword", Confidence: 1.0}
	}
	return Verdict{}
}

func (d *Detector) checkEntropy(text string) Verdict {
	h := shannonEntropy(text)
	if h > 0 && h < d.cfg.EntropyThreshold {
		return Verdict{Flagged: true, Pattern: "low-entropy", Confidence: 1 - h/d.cfg.EntropyThreshold}
	}
	return Verdict{}
}

func (d *Detector) checkCharRun(text string) Verdict {
	run := 1
	var prev rune = -1
	for _, r := range text {
		if r == prev {
			run++
			if run > d.cfg.MaxCharRun {
				return Verdict{Flagged: true, Pattern: "char-run", Confidence: 1.0}
			}
		} else {
			run = 1
			prev = r
		}
	}
	return Verdict{}
}

func (d *Detector) checkShorteners(text string) Verdict {
	lower := strings.ToLower(text)
	for host := range d.cfg.Shorteners {
		if strings.Contains(lower, host) {
			return Verdict{Flagged: true, Pattern: "url-shortener:" + host, Confidence: 0.8}
		}
	}
	return Verdict{}
}

func (d *Detector) checkCTCPFlood(text string) Verdict {
	count := strings.Count(text, "\x01")
	if count > d.cfg.CTCPMarkerLimit {
		return Verdict{Flagged: true, Pattern: "ctcp-flood", Confidence: 1.0}
	}
	return Verdict{}
}

// checkRepeat flags the third occurrence of the same message hash
// within the configured window for a given user.
func (d *Detector) checkRepeat(uid, text string) Verdict {
	now := time.Now()
	hash := text

	d.mu.Lock()
	defer d.mu.Unlock()

	entries := d.history[uid]
	cutoff := now.Add(-d.cfg.RepeatWindow)
	kept := entries[:0]
	count := 0
	for _, e := range entries {
		if e.at.Before(cutoff) {
			continue
		}
		kept = append(kept, e)
		if e.hash == hash {
			count++
		}
	}
	kept = append(kept, repeatEntry{hash: hash, at: now})
	d.history[uid] = kept

	if count >= d.cfg.RepeatOccurrences {
		return Verdict{Flagged: true, Pattern: "repeat", Confidence: 0.9}
	}
	return Verdict{}
}

// shannonEntropy computes the Shannon entropy (bits per rune) of s.
func shannonEntropy(s string) float64 {
	if s == "" {
		return 0
	}
	counts := make(map[rune]int)
	total := 0
	for _, r := range s {
		counts[r]++
		total++
	}
	if total == 0 {
		return 0
	}
	var h float64
	for _, c := range counts {
		p := float64(c) / float64(total)
		h -= p * math.Log2(p)
	}
	return h
}
