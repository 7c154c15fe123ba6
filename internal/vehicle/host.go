// Package vehicle contains the per-vehicle protocol logic: the leader state
// tracker, the beacon payload builder, and the two applications a host
// simulator drives through lifecycle hooks.
//
// Everything here is owned by exactly one simulated vehicle. Cross-vehicle
// interaction happens only through the host's broadcast medium; no state is
// shared between instances.
package vehicle

import (
	"log"
	"time"
)

// Position is a projected (x, y, z) position in metres.
type Position struct {
	X, Y, Z float64
}

// Kinematics exposes the host simulator's view of this vehicle's motion.
type Kinematics interface {
	CurrentPosition() Position
	CurrentSpeed() float64
}

// Actuator requests motion changes from the host's vehicle model.
type Actuator interface {
	// RequestSpeedChange asks the vehicle to reach speed (m/s) over the
	// given transition time.
	RequestSpeedChange(speed float64, transition time.Duration)
}

// BeaconRadio is the host's simulated wireless medium. Payload bytes are
// carried opaquely inside a beacon frame; delivery, delay and loss are the
// host's business.
type BeaconRadio interface {
	BroadcastSend(payload []byte) error
}

// Scheduler exposes the host's event clock for self-scheduled work.
type Scheduler interface {
	ScheduleEvent(delay time.Duration, fn func())
	SimulationTime() time.Duration
}

// Logger is the host's logging facility. Fire and forget: nothing in this
// package fails because of a logger.
type Logger interface {
	Logf(format string, args ...any)
}

// App is the lifecycle surface a host invokes on a vehicle application: once
// at spawn, once per simulation tick, once per delivered beacon, once at
// teardown. Plain structs implement it; there is no host base type.
type App interface {
	OnStart() error
	OnTick()
	OnBeaconReceived(payload []byte)
	OnShutdown()
}

// stdLogger routes host-less usage (tools, tests) to the process log.
type stdLogger struct{}

func (stdLogger) Logf(format string, args ...any) { log.Printf(format, args...) }

// StdLogger returns a Logger backed by the standard library log package.
func StdLogger() Logger { return stdLogger{} }
