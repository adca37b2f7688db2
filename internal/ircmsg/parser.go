package ircmsg

import (
	"strconv"
	"strings"
)

// Parse errors, mirroring the teacher's errors.go Error string type.
type ParseError string

func (e ParseError) Error() string { return string(e) }

const (
	ErrNotEnoughData ParseError = "not enough data"
	ErrLineTooLong   ParseError = "input line too long"
	ErrTagsTooLong   ParseError = "tags section too long"
	ErrWhitespace    ParseError = "line was all whitespace"
	ErrNoCommand     ParseError = "no command present"
	ErrTooManyParams ParseError = "too many parameters"
)

// Parse takes one line of wire data (CRLF already stripped by the
// transport/scanner) and returns a parsed Message pulled from Pool.
//
//	[@tags] [:prefix] command params* [:trailing]
func Parse(line string) (*Message, error) {
	if len(line) == 0 {
		return nil, ErrNotEnoughData
	}
	if len(line) > MaxLineLength+MaxTagsLength {
		return nil, ErrLineTooLong
	}

	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return nil, ErrWhitespace
	}

	msg := Pool.New()

	if line[0] == '@' {
		sp := strings.IndexByte(line, ' ')
		if sp < 0 {
			Pool.Recycle(msg)
			return nil, ErrNoCommand
		}
		tagBlob := line[1:sp]
		if len(tagBlob) > MaxTagsLength {
			Pool.Recycle(msg)
			return nil, ErrTagsTooLong
		}
		parseTags(msg, tagBlob)
		line = strings.TrimLeft(line[sp+1:], " ")
	}

	if len(line) > 0 && line[0] == ':' {
		sp := strings.IndexByte(line, ' ')
		if sp < 0 {
			Pool.Recycle(msg)
			return nil, ErrNoCommand
		}
		msg.Prefix = line[1:sp]
		line = strings.TrimLeft(line[sp+1:], " ")
	}

	if len(line) == 0 {
		Pool.Recycle(msg)
		return nil, ErrNoCommand
	}

	rest := line
	if tp := strings.Index(line, " :"); tp >= 0 {
		rest = line[:tp]
		msg.Trailing = line[tp+2:]
		msg.HasTrailing = true
	} else if strings.HasPrefix(line, ":") {
		rest = ""
		msg.Trailing = line[1:]
		msg.HasTrailing = true
	}

	fields := strings.Fields(rest)
	if len(fields) == 0 {
		Pool.Recycle(msg)
		return nil, ErrNoCommand
	}

	cmd := strings.ToUpper(fields[0])
	if n, err := strconv.Atoi(cmd); err == nil && len(cmd) == 3 {
		msg.Code = uint16(n)
	} else {
		msg.Command = cmd
	}

	msg.Params = append(msg.Params[:0], fields[1:]...)
	if len(msg.Params) > MaxParams {
		Pool.Recycle(msg)
		return nil, ErrTooManyParams
	}

	return msg, nil
}

func parseTags(msg *Message, blob string) {
	for _, pair := range strings.Split(blob, ";") {
		if pair == "" {
			continue
		}
		if eq := strings.IndexByte(pair, '='); eq >= 0 {
			msg.SetTag(pair[:eq], UnescapeTagValue(pair[eq+1:]))
		} else {
			msg.SetTag(pair, "")
		}
	}
}
