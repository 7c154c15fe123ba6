package vehicle

import (
	"time"

	"github.com/alexmonaco16/Mosaic2RosBridge/internal/bridge"
	"github.com/alexmonaco16/Mosaic2RosBridge/internal/wire"
)

// BridgeLink is the slice of the bridge channel the step coordinator needs.
// *bridge.Channel implements it.
type BridgeLink interface {
	Send(wire.HilReport) error
	ReceiveLatest() (*wire.HilCommand, error)
	Close() error
}

// HilAppConfig configures a HilVehicleApp's bridge endpoints.
type HilAppConfig struct {
	InboundPort     int
	OutboundAddress string
	OutboundPort    int
	ReceiveTimeout  time.Duration
}

// HilCollaborators bundles the host capabilities the app consumes. Link is
// optional: when nil, OnStart opens a real bridge channel from the config.
type HilCollaborators struct {
	Kinematics Kinematics
	Actuator   Actuator
	Logger     Logger
	Link       BridgeLink
}

// TickObserver receives a copy of each tick's bridge traffic. Optional; used
// by the telemetry recorder.
type TickObserver interface {
	ObserveTick(report wire.HilReport, command *wire.HilCommand)
}

var _ App = (*HilVehicleApp)(nil)

// HilVehicleApp is the step coordinator of a follower vehicle that mirrors a
// hardware-in-the-loop controller.
//
// Once per tick it snapshots its own kinematics, reports leader headway and
// speed to the controller over the bridge, drains the controller's queued
// commands down to the freshest one, and applies that command's speed to the
// simulated vehicle. Leader state arrives asynchronously via
// OnBeaconReceived between ticks.
type HilVehicleApp struct {
	cfg      HilAppConfig
	kin      Kinematics
	act      Actuator
	logf     Logger
	link     BridgeLink
	leader   LeaderTracker
	builder  BeaconBuilder
	observer TickObserver

	speedInitialised bool
	reportsSent      int
}

// NewHilVehicleApp builds the app. It acquires no resources; OnStart does.
func NewHilVehicleApp(cfg HilAppConfig, c HilCollaborators) *HilVehicleApp {
	logf := c.Logger
	if logf == nil {
		logf = StdLogger()
	}
	return &HilVehicleApp{
		cfg:  cfg,
		kin:  c.Kinematics,
		act:  c.Actuator,
		logf: logf,
		link: c.Link,
	}
}

// SetTickObserver attaches an observer for per-tick bridge traffic. Must be
// called before the first OnTick.
func (a *HilVehicleApp) SetTickObserver(o TickObserver) { a.observer = o }

// Leader exposes the tracker, mainly for host-side diagnostics.
func (a *HilVehicleApp) Leader() *LeaderTracker { return &a.leader }

// OnStart opens the bridge channel. A bind failure is fatal for the app and
// is returned to the host; no socket is left half-open.
func (a *HilVehicleApp) OnStart() error {
	a.logf.Logf("[init] hil vehicle app starting")
	if a.link == nil {
		ch, err := bridge.Open(bridge.ChannelConfig{
			InboundPort:     a.cfg.InboundPort,
			OutboundAddress: a.cfg.OutboundAddress,
			OutboundPort:    a.cfg.OutboundPort,
			ReceiveTimeout:  a.cfg.ReceiveTimeout,
		})
		if err != nil {
			return err
		}
		a.link = ch
	}
	a.logf.Logf("[init] bridge open, inbound port %d, controller %s:%d",
		a.cfg.InboundPort, a.cfg.OutboundAddress, a.cfg.OutboundPort)
	return nil
}

// OnTick runs one bridge exchange. Transmit faults are reported and skipped;
// the next tick carries fresh state anyway.
func (a *HilVehicleApp) OnTick() {
	own := a.kin.CurrentPosition()
	a.builder.Snapshot(own, a.kin.CurrentSpeed())

	distance, velocity := a.leader.DistanceTo(own)
	report := wire.HilReport{LeaderDistance: distance, LeaderVelocity: velocity}

	if err := a.link.Send(report); err != nil {
		a.logf.Logf("[mosaic2hil][%d] send failed: %v", a.reportsSent, err)
	} else {
		a.logf.Logf("[mosaic2hil][%d] sent leader_distance=%.3f leader_velocity=%.3f",
			a.reportsSent, report.LeaderDistance, report.LeaderVelocity)
	}
	a.reportsSent++

	// The HIL vehicle starts from standstill; its motion is dictated by the
	// controller from the first command onwards.
	if !a.speedInitialised {
		a.speedInitialised = true
		a.act.RequestSpeedChange(0, 0)
		a.logf.Logf("[init] initial speed forced to 0.0 m/s")
	}

	cmd, err := a.link.ReceiveLatest()
	if err != nil {
		a.logf.Logf("[hil2mosaic] receive failed: %v", err)
	}
	if cmd != nil {
		a.act.RequestSpeedChange(cmd.Speed, 0)
		a.logf.Logf("[hil2mosaic][%d] applied latest speed %.3f m/s", cmd.Sequence, cmd.Speed)
	}

	if a.observer != nil {
		a.observer.ObserveTick(report, cmd)
	}
}

// OnBeaconReceived decodes a broadcast payload and, when it is one of ours,
// feeds it to the leader tracker. Foreign message shapes are discarded with
// a log line; beacon channels legitimately carry unrelated traffic.
func (a *HilVehicleApp) OnBeaconReceived(payload []byte) {
	p, err := a.builder.OnReceived(payload)
	if err != nil {
		a.logf.Logf("[beacon] discarding payload: %v", err)
		return
	}
	a.leader.Observe(p)
	a.logf.Logf("[beacon][%d] leader at (%.2f, %.2f, %.2f) speed %.3f m/s",
		p.Sequence, p.X, p.Y, p.Z, p.Speed)
}

// OnShutdown releases the bridge unconditionally, including after mid-tick
// failures.
func (a *HilVehicleApp) OnShutdown() {
	if a.link != nil {
		if err := a.link.Close(); err != nil {
			a.logf.Logf("[shutdown] bridge close: %v", err)
		}
		a.link = nil
	}
	a.logf.Logf("[shutdown] hil vehicle app stopped")
}
