package vehicle

import (
	"math"

	"github.com/alexmonaco16/Mosaic2RosBridge/internal/wire"
)

// NoLeaderDistance is reported while no leader beacon has been observed:
// the leader is treated as infinitely far away and stationary.
const NoLeaderDistance = 10000.0

// LeaderTracker holds the last known state of the leading vehicle, as
// gathered from decoded beacon payloads.
//
// Updates are last-received-last-applied: no sequence ordering is enforced,
// because the broadcast medium may reorder deliveries and the newest arrival
// is normally the freshest state. The sequence of the last applied payload is
// exposed so a host that wants a strict monotonic guard can layer one on top.
type LeaderTracker struct {
	pos      Position
	speed    float64
	sequence int32
	observed bool
}

// Observe overwrites the tracked state with the payload's values.
func (t *LeaderTracker) Observe(p wire.BeaconPayload) {
	t.pos = Position{X: p.X, Y: p.Y, Z: p.Z}
	t.speed = p.Speed
	t.sequence = p.Sequence
	t.observed = true
}

// Observed reports whether any beacon has been applied yet.
func (t *LeaderTracker) Observed() bool { return t.observed }

// LastSequence returns the sequence number of the last applied beacon.
// Meaningless before the first Observe.
func (t *LeaderTracker) LastSequence() int32 { return t.sequence }

// DistanceTo returns the horizontal-plane distance from own to the leader's
// last known position, and the leader's last known speed. Altitude is
// tracked but deliberately excluded from the distance: the controller models
// road-plane headway. Before the first observation it returns the
// NoLeaderDistance sentinel and zero speed.
func (t *LeaderTracker) DistanceTo(own Position) (distance, speed float64) {
	if !t.observed {
		return NoLeaderDistance, 0
	}
	dx := t.pos.X - own.X
	dy := t.pos.Y - own.Y
	return math.Sqrt(dx*dx + dy*dy), t.speed
}
