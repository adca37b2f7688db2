// Package config implements the server's configuration layer: an
// immutable Snapshot built with functional options or decoded from YAML,
// plus a Hot subset of fields that may change at runtime (MOTD, rate
// limit thresholds, spam detector tuning) behind a fsnotify-driven
// reload, per spec.md §4.1's "Hot config" requirement.
//
// Grounded on the teacher's functional-options server construction
// (cmd/dircd/main.go's irc.NewServer(irc.WithHostname(...), ...)),
// generalized here from "construct once" to "construct a static
// Snapshot, then atomically swap a Hot subset on file change."
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// RateLimits mirrors internal/security/ratelimit.Set's three named
// categories, kept as plain config values here so this package does not
// need to import ratelimit just to describe its thresholds.
type RateLimits struct {
	ConnPerMinute float64
	MsgPerSecond  float64
	MsgBurst      int
	JoinPerSecond float64
	JoinBurst     int
}

// SpamTuning mirrors the tunable fields of
// internal/security/spam.Config.
type SpamTuning struct {
	EntropyThreshold  float64
	MaxCharRun        int
	CTCPMarkerLimit   int
	RepeatWindow      time.Duration
	RepeatOccurrences int
}

// Snapshot is the full, immutable configuration for one server run.
type Snapshot struct {
	ServerName     string
	NetworkName    string
	ServerPassword string
	Hostname       string
	ListenAddrs []string
	WebSocketAddrs []string
	TLSCertFile string
	TLSKeyFile  string

	MOTD []string

	MaxNickLength  int
	MaxChanLength  int
	MaxTopicLength int

	DatabasePath string
	ClientKVPath string

	CloakSecret       string
	CloakIPSuffix     string
	CloakHiddenSuffix string

	AllowMulticlient bool
	MaxBouncerSessions int

	RateLimits RateLimits
	Spam       SpamTuning

	WebircGateways []WebircGateway
}

// WebircGateway is one trusted bouncer/gateway allowed to spoof a
// connecting client's IP/hostname via WEBIRC before registration,
// matched by the shared password and the gateway's own connecting
// hostmask (supplemented feature, not in spec.md's distilled command
// surface but named in its UnregisteredState enumeration).
type WebircGateway struct {
	Password string
	Hostmask string
}

func WithWebircGateways(gateways ...WebircGateway) Option {
	return func(s *Snapshot) { s.WebircGateways = gateways }
}

// Option mutates a Snapshot during construction.
type Option func(*Snapshot)

func WithServerName(name string) Option   { return func(s *Snapshot) { s.ServerName = name } }
func WithNetworkName(name string) Option  { return func(s *Snapshot) { s.NetworkName = name } }
func WithServerPassword(pass string) Option {
	return func(s *Snapshot) { s.ServerPassword = pass }
}
func WithHostname(host string) Option     { return func(s *Snapshot) { s.Hostname = host } }
func WithListenAddrs(addrs ...string) Option {
	return func(s *Snapshot) { s.ListenAddrs = addrs }
}
func WithWebSocketAddrs(addrs ...string) Option {
	return func(s *Snapshot) { s.WebSocketAddrs = addrs }
}
func WithTLS(certFile, keyFile string) Option {
	return func(s *Snapshot) { s.TLSCertFile, s.TLSKeyFile = certFile, keyFile }
}
func WithMOTD(lines []string) Option { return func(s *Snapshot) { s.MOTD = lines } }
func WithDatabasePath(path string) Option {
	return func(s *Snapshot) { s.DatabasePath = path }
}
func WithClientKVPath(path string) Option {
	return func(s *Snapshot) { s.ClientKVPath = path }
}
func WithCloakSecret(secret, ipSuffix, hiddenSuffix string) Option {
	return func(s *Snapshot) {
		s.CloakSecret, s.CloakIPSuffix, s.CloakHiddenSuffix = secret, ipSuffix, hiddenSuffix
	}
}
func WithMulticlient(allow bool, maxSessions int) Option {
	return func(s *Snapshot) { s.AllowMulticlient, s.MaxBouncerSessions = allow, maxSessions }
}
func WithRateLimits(r RateLimits) Option { return func(s *Snapshot) { s.RateLimits = r } }
func WithSpamTuning(t SpamTuning) Option { return func(s *Snapshot) { s.Spam = t } }

func defaults() *Snapshot {
	return &Snapshot{
		ServerName:     "ironhall",
		NetworkName:    "ironhall",
		MaxNickLength:  32,
		MaxChanLength:  64,
		MaxTopicLength: 400,
		DatabasePath:   "ironhall.sqlite",
		ClientKVPath:   "ironhall-clients.db",
		RateLimits: RateLimits{
			ConnPerMinute: 10,
			MsgPerSecond:  5,
			MsgBurst:      10,
			JoinPerSecond: 2,
			JoinBurst:     5,
		},
		Spam: SpamTuning{
			EntropyThreshold:  3.0,
			MaxCharRun:        10,
			CTCPMarkerLimit:   2,
			RepeatWindow:      10 * time.Second,
			RepeatOccurrences: 2,
		},
	}
}

// NewSnapshot builds a Snapshot from defaults plus the given options, the
// programmatic equivalent of the teacher's irc.NewServer(opts...).
func NewSnapshot(opts ...Option) *Snapshot {
	s := defaults()
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// yamlDoc is the on-disk shape decoded by Load; field names match the
// original irc-config.go.go reference file's keys.
type yamlDoc struct {
	ServerName     string   `yaml:"server_name"`
	NetworkName    string   `yaml:"network_name"`
	ServerPassword string   `yaml:"server_password"`
	Hostname       string   `yaml:"hostname"`
	ListenAddrs    []string `yaml:"listen_addrs"`
	WebSocketAddrs []string `yaml:"websocket_addrs"`
	TLSCertFile    string   `yaml:"tls_cert_file"`
	TLSKeyFile     string   `yaml:"tls_key_file"`
	MOTD           []string `yaml:"motd"`
	MaxNickLength  int      `yaml:"max_nick_length"`
	MaxChanLength  int      `yaml:"max_chan_length"`
	MaxTopicLength int      `yaml:"max_topic_length"`
	DatabasePath   string   `yaml:"database_path"`
	ClientKVPath   string   `yaml:"client_kv_path"`
	Cloak          struct {
		Secret       string `yaml:"secret"`
		IPSuffix     string `yaml:"ip_suffix"`
		HiddenSuffix string `yaml:"hidden_suffix"`
	} `yaml:"cloak"`
	Multiclient struct {
		Allow       bool `yaml:"allow"`
		MaxSessions int  `yaml:"max_sessions"`
	} `yaml:"multiclient"`
	RateLimits struct {
		ConnPerMinute float64 `yaml:"conn_per_minute"`
		MsgPerSecond  float64 `yaml:"msg_per_second"`
		MsgBurst      int     `yaml:"msg_burst"`
		JoinPerSecond float64 `yaml:"join_per_second"`
		JoinBurst     int     `yaml:"join_burst"`
	} `yaml:"rate_limits"`
	Spam struct {
		EntropyThreshold  float64       `yaml:"entropy_threshold"`
		MaxCharRun        int           `yaml:"max_char_run"`
		CTCPMarkerLimit   int           `yaml:"ctcp_marker_limit"`
		RepeatWindow      time.Duration `yaml:"repeat_window"`
		RepeatOccurrences int           `yaml:"repeat_occurrences"`
	} `yaml:"spam"`
	WebircGateways []struct {
		Password string `yaml:"password"`
		Hostmask string `yaml:"hostmask"`
	} `yaml:"webirc_gateways"`
}

// Load reads and decodes a YAML configuration file into a Snapshot,
// starting from the same defaults NewSnapshot uses.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var doc yamlDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return fromDoc(&doc), nil
}

func fromDoc(doc *yamlDoc) *Snapshot {
	s := defaults()
	if doc.ServerName != "" {
		s.ServerName = doc.ServerName
	}
	if doc.NetworkName != "" {
		s.NetworkName = doc.NetworkName
	}
	s.ServerPassword = doc.ServerPassword
	s.Hostname = doc.Hostname
	s.ListenAddrs = doc.ListenAddrs
	s.WebSocketAddrs = doc.WebSocketAddrs
	s.TLSCertFile = doc.TLSCertFile
	s.TLSKeyFile = doc.TLSKeyFile
	if len(doc.MOTD) > 0 {
		s.MOTD = doc.MOTD
	}
	if doc.MaxNickLength > 0 {
		s.MaxNickLength = doc.MaxNickLength
	}
	if doc.MaxChanLength > 0 {
		s.MaxChanLength = doc.MaxChanLength
	}
	if doc.MaxTopicLength > 0 {
		s.MaxTopicLength = doc.MaxTopicLength
	}
	if doc.DatabasePath != "" {
		s.DatabasePath = doc.DatabasePath
	}
	if doc.ClientKVPath != "" {
		s.ClientKVPath = doc.ClientKVPath
	}
	s.CloakSecret = doc.Cloak.Secret
	s.CloakIPSuffix = doc.Cloak.IPSuffix
	s.CloakHiddenSuffix = doc.Cloak.HiddenSuffix
	s.AllowMulticlient = doc.Multiclient.Allow
	s.MaxBouncerSessions = doc.Multiclient.MaxSessions
	if doc.RateLimits.ConnPerMinute > 0 {
		s.RateLimits = RateLimits{
			ConnPerMinute: doc.RateLimits.ConnPerMinute,
			MsgPerSecond:  doc.RateLimits.MsgPerSecond,
			MsgBurst:      doc.RateLimits.MsgBurst,
			JoinPerSecond: doc.RateLimits.JoinPerSecond,
			JoinBurst:     doc.RateLimits.JoinBurst,
		}
	}
	if doc.Spam.EntropyThreshold > 0 {
		s.Spam = SpamTuning{
			EntropyThreshold:  doc.Spam.EntropyThreshold,
			MaxCharRun:        doc.Spam.MaxCharRun,
			CTCPMarkerLimit:   doc.Spam.CTCPMarkerLimit,
			RepeatWindow:      doc.Spam.RepeatWindow,
			RepeatOccurrences: doc.Spam.RepeatOccurrences,
		}
	}
	for _, g := range doc.WebircGateways {
		s.WebircGateways = append(s.WebircGateways, WebircGateway{Password: g.Password, Hostmask: g.Hostmask})
	}
	return s
}
