package irc

import (
	"bufio"
	"context"
	"fmt"
	"github.com/gempir/go-twitch-irc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"multichat/internal/app/domain"
	"multichat/pkg/logger"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestIRC() *IRC {
	return New(logger.NewDiscard(), Options{Channel: "#SomeChannel", Username: "multibot", OAuth: "abc"})
}

func TestInbound(t *testing.T) {
	i := newTestIRC()
	sent := time.Unix(1_700_000_000, 0)

	in, ok := i.Inbound(twitch.PrivateMessage{
		User: twitch.User{
			ID:          "99",
			Name:        "alice",
			DisplayName: "Alice",
			Color:       "#FF0000",
			Badges:      map[string]int{"moderator": 1},
		},
		Channel: "somechannel",
		Message: "Kappa hi Kappa",
		Emotes: []*twitch.Emote{{
			Name:      "Kappa",
			ID:        "25",
			Positions: []twitch.EmotePosition{{Start: 0, End: 4}, {Start: 9, End: 13}},
		}},
		Time: sent,
	})
	require.True(t, ok)

	assert.Equal(t, domain.SourceTwitch, in.Source)
	assert.Equal(t, "Alice", in.Chatter.Username)
	assert.Equal(t, "alice", in.Chatter.Login)
	assert.True(t, in.Chatter.IsMod)
	assert.False(t, in.Chatter.IsBroadcaster)
	assert.Equal(t, "#FF0000", in.Color)
	assert.Equal(t, map[string][]string{"25": {"0-4", "9-13"}}, in.Emotes)
	assert.Equal(t, sent, in.Timestamp)
}

func TestInbound_SkipsSelfAndOtherChannels(t *testing.T) {
	i := newTestIRC()

	_, ok := i.Inbound(twitch.PrivateMessage{User: twitch.User{Name: "MultiBot"}, Channel: "somechannel"})
	assert.False(t, ok)

	_, ok = i.Inbound(twitch.PrivateMessage{User: twitch.User{Name: "bob"}, Channel: "elsewhere"})
	assert.False(t, ok)
}

func TestInbound_BroadcasterByName(t *testing.T) {
	i := newTestIRC()

	in, ok := i.Inbound(twitch.PrivateMessage{User: twitch.User{Name: "somechannel"}, Channel: "somechannel", Message: "hi"})
	require.True(t, ok)
	assert.True(t, in.Chatter.IsBroadcaster)
	assert.Equal(t, "somechannel", in.Chatter.Username)
}

func TestLinkage(t *testing.T) {
	i := newTestIRC()

	linkage, err := i.Linkage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "somechannel", linkage)
}

// ircServer accepts one client and sends the welcome only when welcome is set.
type ircServer struct {
	ln      net.Listener
	welcome bool
	lines   chan string
	connMu  sync.Mutex
	conn    net.Conn
}

func newIRCServer(t *testing.T, welcome bool) *ircServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := &ircServer{ln: ln, welcome: welcome, lines: make(chan string, 64)}
	t.Cleanup(srv.close)
	go srv.serve()
	return srv
}

func (s *ircServer) serve() {
	conn, err := s.ln.Accept()
	if err != nil {
		return
	}
	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		line := sc.Text()
		select {
		case s.lines <- line:
		default:
		}
		if strings.HasPrefix(line, "NICK") && s.welcome {
			_, _ = fmt.Fprint(conn, ":tmi.twitch.tv 001 multibot :Welcome, GLHF!\r\n")
		}
	}
}

func (s *ircServer) send(line string) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	_, _ = fmt.Fprint(s.conn, line+"\r\n")
}

func (s *ircServer) close() {
	_ = s.ln.Close()
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn != nil {
		_ = s.conn.Close()
	}
}

func (s *ircServer) waitFor(t *testing.T, prefix string) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case line := <-s.lines:
			if strings.HasPrefix(line, prefix) {
				return
			}
		case <-timeout:
			t.Fatalf("client never sent %s", prefix)
		}
	}
}

func TestDial_ConnectedAfterWelcomeThenListen(t *testing.T) {
	srv := newIRCServer(t, true)
	i := New(logger.NewDiscard(), Options{Channel: "somechannel", Username: "multibot", OAuth: "abc", Address: srv.ln.Addr().String()})

	sess, err := i.Dial(context.Background(), "somechannel")
	require.NoError(t, err)
	assert.Equal(t, "twitch.tv/somechannel", sess.Link())
	srv.waitFor(t, "JOIN #somechannel")

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan domain.InboundMessage, 1)
	done := make(chan error, 1)
	go func() {
		done <- sess.Listen(ctx, func(m domain.InboundMessage) { got <- m })
	}()

	srv.send("@badges=moderator/1;color=#00FF00;display-name=Bob;emotes=;id=1;room-id=1;tmi-sent-ts=1700000000000;user-id=7 :bob!bob@bob.tmi.twitch.tv PRIVMSG #somechannel :hello there")

	select {
	case m := <-got:
		assert.Equal(t, "Bob", m.Chatter.Username)
		assert.True(t, m.Chatter.IsMod)
		assert.Equal(t, "hello there", m.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("no message")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Listen did not return")
	}
	_ = sess.Close()
}

func TestDial_NotConnectedWithoutWelcome(t *testing.T) {
	srv := newIRCServer(t, false)
	i := New(logger.NewDiscard(), Options{Channel: "somechannel", Username: "multibot", OAuth: "abc", Address: srv.ln.Addr().String()})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := i.Dial(ctx, "somechannel")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotPanics(t, func() { i.Say("nobody hears this") })
}

func TestSay_NotConnectedIsNoop(t *testing.T) {
	i := newTestIRC()
	assert.NotPanics(t, func() { i.Say("hello") })
}
