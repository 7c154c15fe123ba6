package vehicle

import (
	"time"
)

// LeadAppConfig configures the leading vehicle's beacon cadence.
type LeadAppConfig struct {
	BeaconPeriod time.Duration // interval between beacons
	StopTime     time.Duration // simulation time after which the leader halts
}

// LeadCollaborators bundles the host capabilities of the beacon sender.
type LeadCollaborators struct {
	Kinematics Kinematics
	Actuator   Actuator
	Radio      BeaconRadio
	Scheduler  Scheduler
	Logger     Logger
}

var _ App = (*LeadBeaconApp)(nil)

// LeadBeaconApp is the leading vehicle's application: it broadcasts its own
// position and speed on a fixed period so followers can track it, and stops
// the vehicle once the configured simulation time has passed.
type LeadBeaconApp struct {
	cfg     LeadAppConfig
	kin     Kinematics
	act     Actuator
	radio   BeaconRadio
	sched   Scheduler
	logf    Logger
	builder BeaconBuilder
	stopped bool
}

// NewLeadBeaconApp builds the app around the host's capabilities.
func NewLeadBeaconApp(cfg LeadAppConfig, c LeadCollaborators) *LeadBeaconApp {
	logf := c.Logger
	if logf == nil {
		logf = StdLogger()
	}
	return &LeadBeaconApp{
		cfg:   cfg,
		kin:   c.Kinematics,
		act:   c.Actuator,
		radio: c.Radio,
		sched: c.Scheduler,
		logf:  logf,
	}
}

// OnStart schedules the first beacon one period from now.
func (a *LeadBeaconApp) OnStart() error {
	a.logf.Logf("[init] lead beacon app started, period %v, stop at %v",
		a.cfg.BeaconPeriod, a.cfg.StopTime)
	a.sched.ScheduleEvent(a.cfg.BeaconPeriod, a.beaconEvent)
	return nil
}

// OnTick refreshes the builder's snapshot from the vehicle model. Beacons
// built between ticks carry the most recent snapshot.
func (a *LeadBeaconApp) OnTick() {
	a.builder.Snapshot(a.kin.CurrentPosition(), a.kin.CurrentSpeed())
}

// OnBeaconReceived is a no-op: the leader does not track anyone.
func (a *LeadBeaconApp) OnBeaconReceived(payload []byte) {}

// OnShutdown only logs; the app holds no resources.
func (a *LeadBeaconApp) OnShutdown() {
	a.logf.Logf("[shutdown] lead beacon app stopped")
}

// beaconEvent fires once per period: halt the vehicle past the stop time,
// broadcast the current snapshot, rearm.
func (a *LeadBeaconApp) beaconEvent() {
	if !a.stopped && a.sched.SimulationTime() > a.cfg.StopTime {
		a.stopped = true
		a.act.RequestSpeedChange(0, 0)
		a.logf.Logf("[lead] stop time reached, halting")
	}

	payload := a.builder.Build()
	if err := a.radio.BroadcastSend(payload.Encode()); err != nil {
		a.logf.Logf("[lead][%d] beacon send failed: %v", payload.Sequence, err)
	} else {
		a.logf.Logf("[lead][%d] beacon sent", payload.Sequence)
	}

	a.sched.ScheduleEvent(a.cfg.BeaconPeriod, a.beaconEvent)
}
