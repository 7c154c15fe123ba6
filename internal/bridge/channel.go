// Package bridge implements the UDP link between a simulated vehicle and an
// external hardware-in-the-loop controller.
//
// The channel is deliberately loss-tolerant and latest-wins: the controller
// may emit commands faster than the simulation ticks, so the receive side
// drains everything queued and keeps only the most recent well-formed
// datagram. Nothing is retransmitted and nothing is acknowledged.
package bridge

import (
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"github.com/alexmonaco16/Mosaic2RosBridge/internal/wire"
)

// DefaultReceiveTimeout bounds how long a single ReceiveLatest call may block
// when the controller is silent or disconnected.
const DefaultReceiveTimeout = 5 * time.Millisecond

// BindError reports that the inbound port could not be bound at Open time.
// It is fatal for the channel and is not retried.
type BindError struct {
	Port int
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bridge: cannot bind inbound UDP port %d: %v", e.Port, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// TransmitError reports an I/O fault while sending a report. The tick's send
// is lost; the next tick sends fresh state anyway.
type TransmitError struct {
	Dest string
	Err  error
}

func (e *TransmitError) Error() string {
	return fmt.Sprintf("bridge: transmit to %s failed: %v", e.Dest, e.Err)
}

func (e *TransmitError) Unwrap() error { return e.Err }

// Stats counts channel traffic since Open. The channel is single-threaded by
// contract (one step coordinator drives it), so plain counters suffice.
type Stats struct {
	ReportsSent     uint64 // datagrams transmitted to the controller
	CommandsDrained uint64 // well-formed datagrams consumed by drains
	CommandsApplied uint64 // drains that returned a command (the freshest one)
	Malformed       uint64 // wrong-size datagrams skipped during drains
	EmptyDrains     uint64 // drains that timed out with nothing queued
}

// ChannelConfig carries the addressing for one channel instance.
type ChannelConfig struct {
	InboundPort     int    // local UDP port the controller sends commands to
	OutboundAddress string // controller host
	OutboundPort    int    // controller UDP port
	ReceiveTimeout  time.Duration
	ReadBuffer      int           // socket receive buffer, 0 for OS default
	SocketFactory   SocketFactory // nil for real sockets
}

// Channel owns the two UDP endpoints of the bridge for its lifetime. Open it
// at vehicle startup, drive it once per tick, close it at teardown.
type Channel struct {
	in      UDPSocket
	out     UDPSender
	dest    string
	timeout time.Duration
	stats   Stats
	closed  bool
}

// Open binds the inbound port and dials the controller. On any failure every
// already-acquired socket is released before returning.
func Open(cfg ChannelConfig) (*Channel, error) {
	factory := cfg.SocketFactory
	if factory == nil {
		factory = NewRealSocketFactory()
	}
	timeout := cfg.ReceiveTimeout
	if timeout <= 0 {
		timeout = DefaultReceiveTimeout
	}

	in, err := factory.ListenUDP("udp", &net.UDPAddr{Port: cfg.InboundPort})
	if err != nil {
		return nil, &BindError{Port: cfg.InboundPort, Err: err}
	}
	if cfg.ReadBuffer > 0 {
		if err := in.SetReadBuffer(cfg.ReadBuffer); err != nil {
			log.Printf("bridge: failed to set receive buffer to %d: %v", cfg.ReadBuffer, err)
		}
	}

	raddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(cfg.OutboundAddress, fmt.Sprint(cfg.OutboundPort)))
	if err != nil {
		in.Close()
		return nil, fmt.Errorf("bridge: cannot resolve controller address %s:%d: %w", cfg.OutboundAddress, cfg.OutboundPort, err)
	}
	out, err := factory.DialUDP("udp", raddr)
	if err != nil {
		in.Close()
		return nil, fmt.Errorf("bridge: cannot open outbound socket to %s: %w", raddr, err)
	}

	log.Printf("bridge: open, listening on %s, controller at %s", in.LocalAddr(), raddr)
	return &Channel{
		in:      in,
		out:     out,
		dest:    raddr.String(),
		timeout: timeout,
	}, nil
}

// LocalAddr returns the inbound socket's bound address, which carries the
// actual port when the channel was opened on port 0.
func (c *Channel) LocalAddr() net.Addr { return c.in.LocalAddr() }

// Send encodes one report and transmits it to the controller. Fire and
// forget: a fault loses this tick's report only.
func (c *Channel) Send(report wire.HilReport) error {
	if _, err := c.out.Write(report.Encode()); err != nil {
		return &TransmitError{Dest: c.dest, Err: err}
	}
	c.stats.ReportsSent++
	return nil
}

// ReceiveLatest drains every datagram queued on the inbound socket and
// returns the last well-formed command, or nil if none arrived before the
// timeout. The deadline is absolute for the whole drain, so the call never
// blocks longer than the configured timeout no matter how much is queued.
// Wrong-size datagrams are skipped, not fatal: an unrelated sender on the
// port must not cost us the controller's freshest command.
func (c *Channel) ReceiveLatest() (*wire.HilCommand, error) {
	deadline := time.Now().Add(c.timeout)
	if err := c.in.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("bridge: cannot arm receive deadline: %w", err)
	}

	var latest *wire.HilCommand
	buf := make([]byte, 64) // commands are 16 bytes; margin tolerates oversized strays

	for {
		n, _, err := c.in.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				break // queue flushed, or nothing arrived at all
			}
			if errors.Is(err, net.ErrClosed) {
				return latest, fmt.Errorf("bridge: inbound socket closed mid-drain: %w", err)
			}
			return latest, fmt.Errorf("bridge: receive failed: %w", err)
		}

		if n != wire.HIL_COMMAND_SIZE {
			c.stats.Malformed++
			log.Printf("bridge: skipping malformed datagram (%d bytes, want %d)", n, wire.HIL_COMMAND_SIZE)
			continue
		}
		cmd, err := wire.DecodeHilCommand(buf[:n], 0)
		if err != nil {
			c.stats.Malformed++
			log.Printf("bridge: skipping undecodable datagram: %v", err)
			continue
		}
		c.stats.CommandsDrained++
		latest = &cmd
	}

	if latest == nil {
		c.stats.EmptyDrains++
	} else {
		c.stats.CommandsApplied++
	}
	return latest, nil
}

// Stats returns a snapshot of the channel's traffic counters.
func (c *Channel) Stats() Stats { return c.stats }

// LogStats writes a one-line traffic summary, in the spirit of the periodic
// packet statistics on the sensor listeners.
func (c *Channel) LogStats() {
	s := c.stats
	log.Printf("bridge: sent=%d drained=%d applied=%d malformed=%d empty=%d",
		s.ReportsSent, s.CommandsDrained, s.CommandsApplied, s.Malformed, s.EmptyDrains)
}

// Close releases both endpoints. Safe to call more than once and safe to call
// after a partial Open failure; the channel is unusable afterwards.
func (c *Channel) Close() error {
	if c == nil || c.closed {
		return nil
	}
	c.closed = true
	var errs []error
	if c.in != nil {
		if err := c.in.Close(); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, os.ErrClosed) {
			errs = append(errs, err)
		}
		c.in = nil
	}
	if c.out != nil {
		if err := c.out.Close(); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, os.ErrClosed) {
			errs = append(errs, err)
		}
		c.out = nil
	}
	return errors.Join(errs...)
}
