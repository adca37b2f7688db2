package channel

// Error is an immutable sentinel error string, the same pattern as the
// teacher's errors.go (an Error string type satisfying the error
// interface so comparisons can use == or errors.Is without allocation).
type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrAlreadyJoined         Error = "channel: user already joined"
	ErrNotOnChannel          Error = "channel: user not on channel"
	ErrChannelFull           Error = "channel: channel is full"
	ErrInviteOnly            Error = "channel: invite only"
	ErrBanned                Error = "channel: banned from channel"
	ErrBadKey                Error = "channel: bad channel key"
	ErrNoVoice               Error = "channel: no voice in moderated channel"
	ErrNotTLS                Error = "channel: TLS connection required"
	ErrNotOper               Error = "channel: network operator required"
	ErrNotAdmin              Error = "channel: network admin required"
	ErrBlockedRegisteredOnly Error = "channel: registered users only"
	ErrBlockedExternal       Error = "channel: no external messages"
	ErrBlockedNotice         Error = "channel: notices blocked"
	ErrBlockedCTCP           Error = "channel: CTCP blocked"
	ErrNoPrivilege           Error = "channel: insufficient privilege"
	ErrNoKnock               Error = "channel: knocking disabled"
	ErrTopicLocked           Error = "channel: topic locked to ops"
	ErrNoInvite              Error = "channel: invites disabled"
)
