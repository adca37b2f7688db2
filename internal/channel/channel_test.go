package channel

import (
	"testing"
	"time"

	"github.com/btnmasher/ironhall/internal/ircmsg"
	"github.com/btnmasher/ironhall/internal/matrix"
	"github.com/btnmasher/ironhall/internal/user"
	"github.com/stretchr/testify/assert"
)

func newTestMatrix() *matrix.Matrix {
	return matrix.New(8, &matrix.Config{NetworkName: "Test"})
}

func startChannel(t *testing.T, mx *matrix.Matrix) *Channel {
	t.Helper()
	ch := New("#test", mx, func(string) {})
	go ch.Run()
	t.Cleanup(ch.Stop)
	return ch
}

func TestJoinFounderThenSecondMember(t *testing.T) {
	mx := newTestMatrix()
	ch := startChannel(t, mx)

	u1 := user.New("uid-1")
	u1.SetNick("alice")
	mx.AddUser(u1)

	reply := make(chan JoinResult, 1)
	ch.Send(JoinEvent{UID: "uid-1", Nick: "alice", Founder: true, Reply: reply})
	res := <-reply
	assert.True(t, res.OK)
	assert.Len(t, res.Snapshot.Members, 1)
	assert.Equal(t, FlagFounder, res.Snapshot.Members[0].Flags)

	u2 := user.New("uid-2")
	u2.SetNick("bob")
	mx.AddUser(u2)

	reply2 := make(chan JoinResult, 1)
	ch.Send(JoinEvent{UID: "uid-2", Nick: "bob", Hostmask: "bob!b@host", Reply: reply2})
	res2 := <-reply2
	assert.True(t, res2.OK)
	assert.Len(t, res2.Snapshot.Members, 2)
}

func TestJoinRejectsBannedMask(t *testing.T) {
	mx := newTestMatrix()
	ch := startChannel(t, mx)

	reply := make(chan JoinResult, 1)
	ch.Send(JoinEvent{UID: "uid-1", Nick: "alice", Founder: true, Reply: reply})
	<-reply

	modeReply := make(chan ModeResult, 1)
	ch.Send(ModeEvent{Changes: []ModeChange{{Add: true, Letter: 'b', Param: "*!*@evil.host"}}, Force: true, Reply: modeReply})
	<-modeReply

	reply2 := make(chan JoinResult, 1)
	ch.Send(JoinEvent{UID: "uid-2", Nick: "mallory", Hostmask: "mallory!m@evil.host", Reply: reply2})
	res2 := <-reply2
	assert.False(t, res2.OK)
	assert.ErrorIs(t, res2.Err, ErrBanned)
}

func TestPartEmptiesChannel(t *testing.T) {
	mx := newTestMatrix()
	var emptied string
	ch := New("#gone", mx, func(name string) { emptied = name })
	go ch.Run()
	defer ch.Stop()

	reply := make(chan JoinResult, 1)
	ch.Send(JoinEvent{UID: "uid-1", Nick: "alice", Founder: true, Reply: reply})
	<-reply

	partReply := make(chan PartResult, 1)
	ch.Send(PartEvent{UID: "uid-1", Reply: partReply})
	res := <-partReply
	assert.True(t, res.OK)
	assert.True(t, res.Emptied)

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, "#gone", emptied)
}

func TestModeratedRequiresVoice(t *testing.T) {
	mx := newTestMatrix()
	ch := startChannel(t, mx)

	reply := make(chan JoinResult, 1)
	ch.Send(JoinEvent{UID: "uid-1", Nick: "alice", Founder: true, Reply: reply})
	<-reply
	reply2 := make(chan JoinResult, 1)
	ch.Send(JoinEvent{UID: "uid-2", Nick: "bob", Reply: reply2})
	<-reply2

	modeReply := make(chan ModeResult, 1)
	ch.Send(ModeEvent{Changes: []ModeChange{{Add: true, Letter: 'm'}}, Force: true, Reply: modeReply})
	<-modeReply

	msg, _ := ircmsg.Parse("PRIVMSG #test :hi")
	relayReply := make(chan RelayResult, 1)
	ch.Send(MessageEvent{Msg: msg, SenderUID: "uid-2", Reply: relayReply})
	res := <-relayReply
	assert.False(t, res.OK)
	assert.ErrorIs(t, res.Err, ErrNoVoice)
}

func TestTopicSetAndRead(t *testing.T) {
	mx := newTestMatrix()
	ch := startChannel(t, mx)

	setReply := make(chan TopicResult, 1)
	ch.Send(TopicEvent{Set: true, NewTopic: "hello world", SetterUID: "uid-1", Reply: setReply})
	res := <-setReply
	assert.Equal(t, "hello world", res.Topic)

	getReply := make(chan TopicResult, 1)
	ch.Send(TopicEvent{Reply: getReply})
	res2 := <-getReply
	assert.Equal(t, "hello world", res2.Topic)
	assert.Equal(t, "uid-1", res2.SetBy)
}

func TestBanListRoundTrip(t *testing.T) {
	mx := newTestMatrix()
	ch := startChannel(t, mx)

	modeReply := make(chan ModeResult, 1)
	ch.Send(ModeEvent{Changes: []ModeChange{{Add: true, Letter: 'b', Param: "*!*@spam.net"}}, Force: true, Reply: modeReply})
	<-modeReply

	listReply := make(chan []string, 1)
	ch.Send(ListEvent{Kind: 'b', Reply: listReply})
	entries := <-listReply
	assert.Equal(t, []string{"*!*@spam.net"}, entries)
}

func TestKickRejectsNonOp(t *testing.T) {
	mx := newTestMatrix()
	ch := startChannel(t, mx)

	founderReply := make(chan JoinResult, 1)
	ch.Send(JoinEvent{UID: "uid-1", Nick: "alice", Founder: true, Reply: founderReply})
	<-founderReply
	memberReply := make(chan JoinResult, 1)
	ch.Send(JoinEvent{UID: "uid-2", Nick: "bob", Reply: memberReply})
	<-memberReply
	targetReply := make(chan JoinResult, 1)
	ch.Send(JoinEvent{UID: "uid-3", Nick: "carol", Reply: targetReply})
	<-targetReply

	kickReply := make(chan PartResult, 1)
	ch.Send(KickEvent{KickerUID: "uid-2", TargetUID: "uid-3", Reply: kickReply})
	res := <-kickReply
	assert.False(t, res.OK)
	assert.ErrorIs(t, res.Err, ErrNoPrivilege)
}

func TestKickAllowedByOp(t *testing.T) {
	mx := newTestMatrix()
	ch := startChannel(t, mx)

	founderReply := make(chan JoinResult, 1)
	ch.Send(JoinEvent{UID: "uid-1", Nick: "alice", Founder: true, Reply: founderReply})
	<-founderReply
	targetReply := make(chan JoinResult, 1)
	ch.Send(JoinEvent{UID: "uid-2", Nick: "bob", Reply: targetReply})
	<-targetReply

	kickReply := make(chan PartResult, 1)
	ch.Send(KickEvent{KickerUID: "uid-1", TargetUID: "uid-2", Reply: kickReply})
	res := <-kickReply
	assert.True(t, res.OK)
}

func TestTopicLockRejectsNonOp(t *testing.T) {
	mx := newTestMatrix()
	ch := startChannel(t, mx)

	founderReply := make(chan JoinResult, 1)
	ch.Send(JoinEvent{UID: "uid-1", Nick: "alice", Founder: true, Reply: founderReply})
	<-founderReply
	memberReply := make(chan JoinResult, 1)
	ch.Send(JoinEvent{UID: "uid-2", Nick: "bob", Reply: memberReply})
	<-memberReply

	modeReply := make(chan ModeResult, 1)
	ch.Send(ModeEvent{Changes: []ModeChange{{Add: true, Letter: 't'}}, Force: true, Reply: modeReply})
	<-modeReply

	topicReply := make(chan TopicResult, 1)
	ch.Send(TopicEvent{Set: true, NewTopic: "nope", SetterUID: "uid-2", Reply: topicReply})
	res := <-topicReply
	assert.ErrorIs(t, res.Err, ErrTopicLocked)
}

func TestInviteRejectsNonOpWithoutFreeInvite(t *testing.T) {
	mx := newTestMatrix()
	ch := startChannel(t, mx)

	founderReply := make(chan JoinResult, 1)
	ch.Send(JoinEvent{UID: "uid-1", Nick: "alice", Founder: true, Reply: founderReply})
	<-founderReply
	memberReply := make(chan JoinResult, 1)
	ch.Send(JoinEvent{UID: "uid-2", Nick: "bob", Reply: memberReply})
	<-memberReply

	inviteReply := make(chan InviteResult, 1)
	ch.Send(InviteEvent{UID: "uid-3", InviterUID: "uid-2", Reply: inviteReply})
	res := <-inviteReply
	assert.False(t, res.OK)
	assert.ErrorIs(t, res.Err, ErrNoPrivilege)
}

func TestJoinRejectsNonTLSWhenZSet(t *testing.T) {
	mx := newTestMatrix()
	ch := startChannel(t, mx)

	founderReply := make(chan JoinResult, 1)
	ch.Send(JoinEvent{UID: "uid-1", Nick: "alice", Founder: true, Reply: founderReply})
	<-founderReply

	modeReply := make(chan ModeResult, 1)
	ch.Send(ModeEvent{Changes: []ModeChange{{Add: true, Letter: 'z'}}, Force: true, Reply: modeReply})
	<-modeReply

	joinReply := make(chan JoinResult, 1)
	ch.Send(JoinEvent{UID: "uid-2", Nick: "bob", Reply: joinReply})
	res := <-joinReply
	assert.False(t, res.OK)
	assert.ErrorIs(t, res.Err, ErrNotTLS)
}
