// Package ircmsg implements the IRC wire line protocol: tag-prefixed
// message parsing and rendering, per RFC 1459/2812 plus the IRCv3
// message-tags extension.
//
// Grounded on the teacher's message.go/parser.go (btnmasher/dircd),
// generalized with a Tags map and prefix/trailing handling the teacher
// never needed.
package ircmsg

import (
	"bytes"
	"strings"

	"github.com/btnmasher/ironhall/shared/itempool"
)

// String constants for rendering.
const (
	space = " "
	crlf  = "\r\n"
	colon = ":"
	at    = "@"
	bang  = "!"
	hostc = "@"
)

// MaxLineLength is the wire limit of a line, tags excluded (spec §8 boundary).
const MaxLineLength = 512

// MaxTagsLength is the wire limit of the tags section (spec §6).
const MaxTagsLength = 4096

// MaxParams is the maximum number of middle parameters (trailing excluded).
const MaxParams = 15

// Message is a parsed or to-be-rendered IRC protocol message.
//
//	<message>  = ['@' <tags> <SPACE>] [':' <prefix> <SPACE>] <command> <params> <crlf>
type Message struct {
	Tags    map[string]string // IRCv3 message tags, unescaped values.
	Prefix  string            // servername or nick[!user][@host]; empty if none.
	Command string            // command name, or "" if Code is set (numeric reply).
	Code    uint16            // numeric reply code; 0 means "use Command".
	Params  []string          // middle parameters, not including the trailing one.
	Trailing string           // the final ':'-prefixed parameter, if any.
	HasTrailing bool          // true if Trailing should be rendered even if empty.
}

// Scrub resets a Message to its zero value for pool reuse.
func (m *Message) Scrub() {
	for k := range m.Tags {
		delete(m.Tags, k)
	}
	m.Prefix = ""
	m.Command = ""
	m.Code = 0
	m.Params = m.Params[:0]
	m.Trailing = ""
	m.HasTrailing = false
}

// Pool is the shared object pool of Messages, mirroring the teacher's
// MessagePool but generalized via shared/itempool.
var Pool = itempool.New[*Message](4096, func() *Message { return &Message{} })

// Tag returns a tag value and whether it was present.
func (m *Message) Tag(name string) (string, bool) {
	if m.Tags == nil {
		return "", false
	}
	v, ok := m.Tags[name]
	return v, ok
}

// SetTag sets a tag, allocating the map if necessary.
func (m *Message) SetTag(name, value string) {
	if m.Tags == nil {
		m.Tags = make(map[string]string, 4)
	}
	m.Tags[name] = value
}

// CommandName returns the command string to render: either Command,
// or the zero-padded three digit numeric if Code is set.
func (m *Message) CommandName() string {
	if m.Code > 0 {
		return padNumeric(m.Code)
	}
	return m.Command
}

func padNumeric(code uint16) string {
	var b [3]byte
	b[2] = byte('0' + code%10)
	code /= 10
	b[1] = byte('0' + code%10)
	code /= 10
	b[0] = byte('0' + code%10)
	return string(b[:])
}

// Render returns the CRLF-terminated wire form of the message.
func (m *Message) Render() string {
	buf := m.RenderBuffer()
	defer bufPool.Recycle(buf)
	return buf.String()
}

// RenderBuffer renders into a pooled buffer; caller must recycle it via
// bufPool.Recycle once written out.
func (m *Message) RenderBuffer() *bytes.Buffer {
	buf := bufPool.New()

	if len(m.Tags) > 0 {
		buf.WriteByte('@')
		first := true
		for k, v := range m.Tags {
			if !first {
				buf.WriteByte(';')
			}
			first = false
			buf.WriteString(k)
			if v != "" {
				buf.WriteByte('=')
				buf.WriteString(EscapeTagValue(v))
			}
		}
		buf.WriteString(space)
	}

	if m.Prefix != "" {
		buf.WriteString(colon)
		buf.WriteString(m.Prefix)
		buf.WriteString(space)
	}

	buf.WriteString(m.CommandName())

	for _, p := range m.Params {
		buf.WriteString(space)
		buf.WriteString(p)
	}

	if m.HasTrailing || m.Trailing != "" {
		buf.WriteString(space)
		buf.WriteString(colon)
		buf.WriteString(m.Trailing)
	}

	buf.WriteString(crlf)
	return buf
}

// EscapeTagValue escapes the standard tag-value escape set: \s \: \r \n \\.
func EscapeTagValue(v string) string {
	if !strings.ContainsAny(v, " ;\\\r\n") {
		return v
	}
	var b strings.Builder
	b.Grow(len(v) + 4)
	for _, r := range v {
		switch r {
		case ' ':
			b.WriteString(`\s`)
		case ';':
			b.WriteString(`\:`)
		case '\\':
			b.WriteString(`\\`)
		case '\r':
			b.WriteString(`\r`)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// UnescapeTagValue reverses EscapeTagValue.
func UnescapeTagValue(v string) string {
	if !strings.ContainsRune(v, '\\') {
		return v
	}
	var b strings.Builder
	b.Grow(len(v))
	runes := []rune(v)
	for i := 0; i < len(runes); i++ {
		if runes[i] == '\\' && i+1 < len(runes) {
			i++
			switch runes[i] {
			case 's':
				b.WriteByte(' ')
			case ':':
				b.WriteByte(';')
			case 'r':
				b.WriteByte('\r')
			case 'n':
				b.WriteByte('\n')
			case '\\':
				b.WriteByte('\\')
			default:
				b.WriteRune(runes[i])
			}
			continue
		}
		b.WriteRune(runes[i])
	}
	return b.String()
}
