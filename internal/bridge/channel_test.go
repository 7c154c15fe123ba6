package bridge

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/alexmonaco16/Mosaic2RosBridge/internal/wire"
)

// openLoopbackChannel opens a channel on an ephemeral inbound port, pointed
// at the given controller-side port, and registers cleanup.
func openLoopbackChannel(t *testing.T, controllerPort int) *Channel {
	t.Helper()
	ch, err := Open(ChannelConfig{
		InboundPort:     0,
		OutboundAddress: "127.0.0.1",
		OutboundPort:    controllerPort,
		ReceiveTimeout:  20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("failed to open channel: %v", err)
	}
	t.Cleanup(func() { ch.Close() })
	return ch
}

// inboundSender returns a UDP sender targeting the channel's inbound port.
func inboundSender(t *testing.T, ch *Channel) *net.UDPConn {
	t.Helper()
	port := ch.LocalAddr().(*net.UDPAddr).Port
	conn, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	if err != nil {
		t.Fatalf("failed to dial channel inbound port: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// TestReceiveLatestEmpty verifies a drain with nothing queued returns no
// command, without error, within the configured timeout.
func TestReceiveLatestEmpty(t *testing.T) {
	ch := openLoopbackChannel(t, 9) // discard port, never written to

	start := time.Now()
	cmd, err := ch.ReceiveLatest()
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("ReceiveLatest failed: %v", err)
	}
	if cmd != nil {
		t.Errorf("expected no command, got %+v", cmd)
	}
	// Generous slack for slow CI schedulers; the point is that it returns.
	if elapsed > 500*time.Millisecond {
		t.Errorf("empty drain took %v, should be near the 20ms timeout", elapsed)
	}
	if s := ch.Stats(); s.EmptyDrains != 1 {
		t.Errorf("EmptyDrains = %d, want 1", s.EmptyDrains)
	}
}

// TestReceiveLatestDrainsToFreshest enqueues several commands before a single
// drain and checks only the last one is reported.
func TestReceiveLatestDrainsToFreshest(t *testing.T) {
	ch := openLoopbackChannel(t, 9)
	sender := inboundSender(t, ch)

	for i := 0; i < 5; i++ {
		cmd := wire.HilCommand{Sequence: uint32(i), Speed: float64(i) * 1.5}
		if _, err := sender.Write(cmd.Encode()); err != nil {
			t.Fatalf("send %d failed: %v", i, err)
		}
	}
	time.Sleep(50 * time.Millisecond) // let loopback delivery settle

	cmd, err := ch.ReceiveLatest()
	if err != nil {
		t.Fatalf("ReceiveLatest failed: %v", err)
	}
	if cmd == nil {
		t.Fatal("expected a command, got none")
	}
	if cmd.Sequence != 4 || cmd.Speed != 6.0 {
		t.Errorf("got %+v, want sequence 4 speed 6.0", cmd)
	}
	if s := ch.Stats(); s.CommandsDrained != 5 {
		t.Errorf("CommandsDrained = %d, want 5", s.CommandsDrained)
	}
}

// TestReceiveLatestSkipsMalformed interleaves wrong-size datagrams with good
// ones; the drain must survive them and return the latest well-formed one.
func TestReceiveLatestSkipsMalformed(t *testing.T) {
	ch := openLoopbackChannel(t, 9)
	sender := inboundSender(t, ch)

	writes := [][]byte{
		wire.HilCommand{Sequence: 1, Speed: 1.0}.Encode(),
		[]byte("runt"),
		wire.HilCommand{Sequence: 2, Speed: 2.0}.Encode(),
		make([]byte, 40), // oversized stray
	}
	for i, w := range writes {
		if _, err := sender.Write(w); err != nil {
			t.Fatalf("send %d failed: %v", i, err)
		}
	}
	time.Sleep(50 * time.Millisecond)

	cmd, err := ch.ReceiveLatest()
	if err != nil {
		t.Fatalf("ReceiveLatest failed: %v", err)
	}
	if cmd == nil || cmd.Sequence != 2 || cmd.Speed != 2.0 {
		t.Fatalf("got %+v, want sequence 2 speed 2.0", cmd)
	}
	if s := ch.Stats(); s.Malformed != 2 {
		t.Errorf("Malformed = %d, want 2", s.Malformed)
	}
}

// TestBridgeEndToEnd runs the documented loopback scenario: the report
// arrives at the controller byte-identical, and a command sent back in the
// documented layout comes out of ReceiveLatest intact.
func TestBridgeEndToEnd(t *testing.T) {
	// Stand-in controller endpoint.
	controller, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatalf("failed to open controller socket: %v", err)
	}
	defer controller.Close()

	ch := openLoopbackChannel(t, controller.LocalAddr().(*net.UDPAddr).Port)

	// Simulation -> controller.
	report := wire.HilReport{LeaderDistance: 12.5, LeaderVelocity: 3.0}
	if err := ch.Send(report); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	controller.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 64)
	n, _, err := controller.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("controller read failed: %v", err)
	}
	if n != wire.HIL_REPORT_SIZE {
		t.Fatalf("controller received %d bytes, want %d", n, wire.HIL_REPORT_SIZE)
	}
	got, err := wire.DecodeHilReport(buf[:n], 0)
	if err != nil {
		t.Fatalf("controller decode failed: %v", err)
	}
	if got != report {
		t.Errorf("controller decoded %+v, want %+v", got, report)
	}

	// Controller -> simulation. The reply goes to the bridge's inbound port,
	// not back to the ephemeral socket the report came from.
	cmd := wire.HilCommand{Sequence: 7, Speed: 2.25}
	sender := inboundSender(t, ch)
	if _, err := sender.Write(cmd.Encode()); err != nil {
		t.Fatalf("controller send failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	latest, err := ch.ReceiveLatest()
	if err != nil {
		t.Fatalf("ReceiveLatest failed: %v", err)
	}
	if latest == nil || *latest != cmd {
		t.Errorf("got %+v, want %+v", latest, cmd)
	}
}

// TestOpenBindError verifies a taken port surfaces as BindError.
func TestOpenBindError(t *testing.T) {
	squatter, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatalf("failed to open squatter socket: %v", err)
	}
	defer squatter.Close()
	port := squatter.LocalAddr().(*net.UDPAddr).Port

	_, err = Open(ChannelConfig{
		InboundPort:     port,
		OutboundAddress: "127.0.0.1",
		OutboundPort:    9,
	})
	var be *BindError
	if !errors.As(err, &be) {
		t.Fatalf("error = %v (%T), want *BindError", err, err)
	}
	if be.Port != port {
		t.Errorf("BindError.Port = %d, want %d", be.Port, port)
	}
}

func TestCloseIdempotent(t *testing.T) {
	ch := openLoopbackChannel(t, 9)
	if err := ch.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := ch.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

// scriptedSocket feeds a fixed packet sequence to the drain loop, then times
// out forever. It keeps the drain tests independent of loopback scheduling.
type scriptedSocket struct {
	packets [][]byte
	closed  bool
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func (s *scriptedSocket) ReadFromUDP(b []byte) (int, *net.UDPAddr, error) {
	if len(s.packets) == 0 {
		return 0, nil, timeoutError{}
	}
	p := s.packets[0]
	s.packets = s.packets[1:]
	return copy(b, p), &net.UDPAddr{}, nil
}

func (s *scriptedSocket) SetReadDeadline(time.Time) error { return nil }
func (s *scriptedSocket) SetReadBuffer(int) error         { return nil }
func (s *scriptedSocket) LocalAddr() net.Addr             { return &net.UDPAddr{} }
func (s *scriptedSocket) Close() error                    { s.closed = true; return nil }

type discardSender struct{ writes int }

func (d *discardSender) Write(b []byte) (int, error) { d.writes++; return len(b), nil }
func (d *discardSender) Close() error                { return nil }

type scriptedFactory struct {
	socket *scriptedSocket
	sender *discardSender
}

func (f *scriptedFactory) ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error) {
	return f.socket, nil
}

func (f *scriptedFactory) DialUDP(network string, raddr *net.UDPAddr) (UDPSender, error) {
	return f.sender, nil
}

// TestDrainScripted checks the exact drain discipline against a scripted
// queue: every packet consumed, malformed ones skipped, last good one wins.
func TestDrainScripted(t *testing.T) {
	tests := []struct {
		name    string
		packets [][]byte
		want    *wire.HilCommand
		drained uint64
		malform uint64
	}{
		{
			name:    "empty queue",
			packets: nil,
			want:    nil,
		},
		{
			name: "single command",
			packets: [][]byte{
				wire.HilCommand{Sequence: 1, Speed: 0.5}.Encode(),
			},
			want:    &wire.HilCommand{Sequence: 1, Speed: 0.5},
			drained: 1,
		},
		{
			name: "latest wins",
			packets: [][]byte{
				wire.HilCommand{Sequence: 1, Speed: 0.5}.Encode(),
				wire.HilCommand{Sequence: 2, Speed: 1.5}.Encode(),
				wire.HilCommand{Sequence: 3, Speed: 2.5}.Encode(),
			},
			want:    &wire.HilCommand{Sequence: 3, Speed: 2.5},
			drained: 3,
		},
		{
			name: "trailing malformed does not erase the candidate",
			packets: [][]byte{
				wire.HilCommand{Sequence: 8, Speed: 4.0}.Encode(),
				{0x01, 0x02, 0x03},
			},
			want:    &wire.HilCommand{Sequence: 8, Speed: 4.0},
			drained: 1,
			malform: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory := &scriptedFactory{
				socket: &scriptedSocket{packets: tt.packets},
				sender: &discardSender{},
			}
			ch, err := Open(ChannelConfig{
				OutboundAddress: "127.0.0.1",
				OutboundPort:    9,
				SocketFactory:   factory,
			})
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			defer ch.Close()

			got, err := ch.ReceiveLatest()
			if err != nil {
				t.Fatalf("ReceiveLatest failed: %v", err)
			}
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("got %+v, want none", got)
			case tt.want != nil && (got == nil || *got != *tt.want):
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
			s := ch.Stats()
			if s.CommandsDrained != tt.drained {
				t.Errorf("CommandsDrained = %d, want %d", s.CommandsDrained, tt.drained)
			}
			if s.Malformed != tt.malform {
				t.Errorf("Malformed = %d, want %d", s.Malformed, tt.malform)
			}
		})
	}
}

// TestCloseReleasesScriptedSocket verifies Close propagates to the sockets.
func TestCloseReleasesScriptedSocket(t *testing.T) {
	factory := &scriptedFactory{socket: &scriptedSocket{}, sender: &discardSender{}}
	ch, err := Open(ChannelConfig{OutboundAddress: "127.0.0.1", OutboundPort: 9, SocketFactory: factory})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := ch.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !factory.socket.closed {
		t.Error("inbound socket not closed")
	}
}

// Ensure the send counter reflects fire-and-forget semantics.
func TestSendCountsReports(t *testing.T) {
	factory := &scriptedFactory{socket: &scriptedSocket{}, sender: &discardSender{}}
	ch, err := Open(ChannelConfig{OutboundAddress: "127.0.0.1", OutboundPort: 9, SocketFactory: factory})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer ch.Close()

	for i := 0; i < 3; i++ {
		if err := ch.Send(wire.HilReport{LeaderDistance: float64(i)}); err != nil {
			t.Fatalf("Send %d failed: %v", i, err)
		}
	}
	if factory.sender.writes != 3 {
		t.Errorf("sender writes = %d, want 3", factory.sender.writes)
	}
	if s := ch.Stats(); s.ReportsSent != 3 {
		t.Errorf("ReportsSent = %d, want 3", s.ReportsSent)
	}
}
