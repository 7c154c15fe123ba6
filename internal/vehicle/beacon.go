package vehicle

import (
	"github.com/alexmonaco16/Mosaic2RosBridge/internal/wire"
)

// BeaconBuilder assembles outgoing beacon payloads from the local vehicle's
// latest kinematic snapshot and decodes incoming ones.
//
// The builder post-increments its sequence counter: the first Build emits
// sequence 0. Failed decodes never touch the counter.
type BeaconBuilder struct {
	pos   Position
	speed float64
	next  int32
}

// Snapshot records the vehicle's current kinematic state. The host calls it
// once per tick, before any broadcast opportunity.
func (b *BeaconBuilder) Snapshot(pos Position, speed float64) {
	b.pos = pos
	b.speed = speed
}

// Build produces a payload from the current snapshot and advances the
// sequence counter by one.
func (b *BeaconBuilder) Build() wire.BeaconPayload {
	p := wire.BeaconPayload{
		Sequence: b.next,
		X:        b.pos.X,
		Y:        b.pos.Y,
		Z:        b.pos.Z,
		Speed:    b.speed,
	}
	b.next++
	return p
}

// OnReceived decodes an inbound beacon payload. A decode failure means the
// beacon carried some other message type; the caller logs and discards it,
// it is not a fault.
func (b *BeaconBuilder) OnReceived(data []byte) (wire.BeaconPayload, error) {
	return wire.DecodeBeaconPayload(data, 0)
}
