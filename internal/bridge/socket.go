package bridge

import (
	"net"
	"time"
)

// UDPSocket abstracts the inbound datagram socket so tests can inject
// deterministic packet sequences without binding real ports.
type UDPSocket interface {
	ReadFromUDP(b []byte) (int, *net.UDPAddr, error)
	SetReadDeadline(t time.Time) error
	SetReadBuffer(bytes int) error
	LocalAddr() net.Addr
	Close() error
}

// UDPSender abstracts the outbound socket. The real implementation is a
// connected UDP socket on an ephemeral local port.
type UDPSender interface {
	Write(b []byte) (int, error)
	Close() error
}

// SocketFactory creates the channel's two sockets. The default factory uses
// the net package directly; tests substitute their own.
type SocketFactory interface {
	ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error)
	DialUDP(network string, raddr *net.UDPAddr) (UDPSender, error)
}

type realSocketFactory struct{}

// NewRealSocketFactory returns a SocketFactory backed by real UDP sockets.
func NewRealSocketFactory() SocketFactory {
	return realSocketFactory{}
}

func (realSocketFactory) ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error) {
	return net.ListenUDP(network, laddr)
}

func (realSocketFactory) DialUDP(network string, raddr *net.UDPAddr) (UDPSender, error) {
	return net.DialUDP(network, nil, raddr)
}
