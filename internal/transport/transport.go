// Package transport implements the listener/accept layer (spec.md §4.3
// "Transport"). Grounded on the teacher's server.go ListenAndServe /
// ListenAndServeTLS / Serve / tcpKeepAliveListener / cloneTLSConfig, with
// a third adapter -- WebSocket, via gorilla/websocket -- added because
// spec.md requires browser-originated IRCv3 clients alongside raw TCP.
package transport

import (
	"crypto/tls"
	"net"
	"time"
)

// KeepAliveTimeout mirrors the teacher's constant of the same name.
const KeepAliveTimeout = 2 * time.Minute

// Conn is the minimal byte-stream abstraction internal/connection drives;
// both a raw TCP/TLS net.Conn and a websocketConn (wrapping
// gorilla/websocket) satisfy it.
type Conn interface {
	net.Conn
}

// Listener accepts Conns. TCP, TLS, and WebSocket listeners all implement
// this the same way net.Listener does.
type Listener interface {
	Accept() (Conn, error)
	Close() error
	Addr() net.Addr
}

// ListenTCP opens a keep-alive-enabled TCP listener, the direct
// generalization of the teacher's ListenAndServe.
func ListenTCP(addr string) (Listener, error) {
	if addr == "" {
		addr = ":6667"
	}
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	tcpListener, ok := l.(*net.TCPListener)
	if !ok {
		return tcpPassthroughListener{l}, nil
	}
	return tcpKeepAliveListener{tcpListener}, nil
}

// ListenTLS opens a TLS listener over a keep-alive TCP socket, the direct
// generalization of the teacher's ListenAndServeTLS.
func ListenTLS(addr string, cfg *tls.Config) (Listener, error) {
	if addr == "" {
		addr = ":6697"
	}
	inner, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	tcpListener, ok := inner.(*net.TCPListener)
	var base net.Listener = inner
	if ok {
		base = tcpKeepAliveListener{tcpListener}
	}
	return tlsListener{tls.NewListener(base, CloneTLSConfig(cfg))}, nil
}

// CloneTLSConfig returns a shallow clone of cfg's exported fields,
// carried over verbatim from the teacher's cloneTLSConfig (the
// unexported sync.Once inside tls.Config must never be copied).
func CloneTLSConfig(cfg *tls.Config) *tls.Config {
	if cfg == nil {
		return &tls.Config{}
	}
	return cfg.Clone()
}

// tcpKeepAliveListener mirrors the teacher's type of the same name.
type tcpKeepAliveListener struct {
	*net.TCPListener
}

func (l tcpKeepAliveListener) Accept() (Conn, error) {
	conn, err := l.AcceptTCP()
	if err != nil {
		return nil, err
	}
	conn.SetKeepAlive(true)
	conn.SetKeepAlivePeriod(KeepAliveTimeout)
	return conn, nil
}

// tcpPassthroughListener is used on platforms/listeners where the
// underlying net.Listener isn't a *net.TCPListener (e.g. tests using
// net.Pipe or a bufconn listener).
type tcpPassthroughListener struct {
	net.Listener
}

func (l tcpPassthroughListener) Accept() (Conn, error) {
	return l.Listener.Accept()
}

type tlsListener struct {
	net.Listener
}

func (l tlsListener) Accept() (Conn, error) {
	return l.Listener.Accept()
}
