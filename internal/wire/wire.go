// Package wire defines the fixed binary layouts exchanged by the HIL bridge
// and the beacon channel.
//
// Two datagram shapes travel on the UDP bridge between the simulation process
// and the external controller, plus one payload shape embedded in simulated
// wireless beacons:
//
//	HilReport   (simulation -> controller), 16 bytes
//	HilCommand  (controller -> simulation), 16 bytes
//	BeaconPayload (vehicle -> vehicles),    36 bytes
//
// There is no length prefix and no checksum: the fixed size of each structure
// is the only framing, so every encoder produces exactly the structure size
// and every decoder rejects anything shorter. All multi-byte fields are
// little-endian on the wire; see the HilCommand sequence notes below for the
// one field whose layout is dictated by the existing controller builds.
package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Wire sizes and field offsets for the bridge datagrams and the beacon
// payload. These are protocol constants shared with the external controller;
// changing any of them breaks deployed peers.
const (
	HIL_REPORT_SIZE  = 16 // 2 x little-endian float64
	HIL_COMMAND_SIZE = 16 // sequence(4) + reserved(4) + speed(8)

	HIL_REPORT_DISTANCE_OFFSET = 0 // leader distance, little-endian float64
	HIL_REPORT_VELOCITY_OFFSET = 8 // leader velocity, little-endian float64

	HIL_COMMAND_SEQUENCE_OFFSET = 0 // 4-byte sequence, least-significant byte first
	HIL_COMMAND_SEQUENCE_SIZE   = 4
	HIL_COMMAND_SPEED_OFFSET    = 8 // commanded speed, little-endian float64

	// Beacon payload: sequence(4) + x(8) + y(8) + z(8) + speed(8).
	// This replaces the opaque object serialization used by earlier Java
	// deployments with a byte-stable layout that any peer language can read.
	BEACON_PAYLOAD_SIZE            = 36
	BEACON_PAYLOAD_SEQUENCE_OFFSET = 0
	BEACON_PAYLOAD_X_OFFSET        = 4
	BEACON_PAYLOAD_Y_OFFSET        = 12
	BEACON_PAYLOAD_Z_OFFSET        = 20
	BEACON_PAYLOAD_SPEED_OFFSET    = 28
)

// MalformedPayloadError reports a datagram or payload that is too short for
// the structure being decoded. Decoders return it without consuming input, so
// callers can skip the offending datagram and keep going.
type MalformedPayloadError struct {
	What string // structure being decoded
	Want int    // bytes required at the given offset
	Have int    // bytes actually available
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("malformed %s payload: need %d bytes, have %d", e.What, e.Want, e.Have)
}

// HilReport is the per-tick state pushed from the simulation to the external
// controller: how far ahead the leading vehicle is and how fast it is going.
type HilReport struct {
	LeaderDistance float64 // metres, horizontal plane
	LeaderVelocity float64 // m/s
}

// HilCommand is the state pushed back from the external controller: a
// progressive datagram number and the speed the controller wants the
// simulated vehicle to assume.
type HilCommand struct {
	Sequence uint32
	Speed    float64 // m/s
}

// BeaconPayload carries a vehicle's kinematic snapshot inside a simulated
// wireless beacon. Sequence is a progressive beacon number assigned by the
// sender, starting at 0.
type BeaconPayload struct {
	Sequence int32
	X, Y, Z  float64 // projected position, metres
	Speed    float64 // m/s
}

// Encode serialises the report into its fixed 16-byte wire form.
func (r HilReport) Encode() []byte {
	buf := make([]byte, HIL_REPORT_SIZE)
	binary.LittleEndian.PutUint64(buf[HIL_REPORT_DISTANCE_OFFSET:], math.Float64bits(r.LeaderDistance))
	binary.LittleEndian.PutUint64(buf[HIL_REPORT_VELOCITY_OFFSET:], math.Float64bits(r.LeaderVelocity))
	return buf
}

// DecodeHilReport reads a HilReport from data starting at offset.
func DecodeHilReport(data []byte, offset int) (HilReport, error) {
	if offset < 0 || len(data)-offset < HIL_REPORT_SIZE {
		return HilReport{}, &MalformedPayloadError{What: "HilReport", Want: HIL_REPORT_SIZE, Have: max(len(data)-offset, 0)}
	}
	return HilReport{
		LeaderDistance: math.Float64frombits(binary.LittleEndian.Uint64(data[offset+HIL_REPORT_DISTANCE_OFFSET:])),
		LeaderVelocity: math.Float64frombits(binary.LittleEndian.Uint64(data[offset+HIL_REPORT_VELOCITY_OFFSET:])),
	}, nil
}

// Encode serialises the command into its fixed 16-byte wire form. Bytes 4-7
// are reserved and always zero.
func (c HilCommand) Encode() []byte {
	buf := make([]byte, HIL_COMMAND_SIZE)
	putSequence(buf[HIL_COMMAND_SEQUENCE_OFFSET:], c.Sequence)
	binary.LittleEndian.PutUint64(buf[HIL_COMMAND_SPEED_OFFSET:], math.Float64bits(c.Speed))
	return buf
}

// DecodeHilCommand reads a HilCommand from data starting at offset. The
// reserved bytes 4-7 are ignored.
func DecodeHilCommand(data []byte, offset int) (HilCommand, error) {
	if offset < 0 || len(data)-offset < HIL_COMMAND_SIZE {
		return HilCommand{}, &MalformedPayloadError{What: "HilCommand", Want: HIL_COMMAND_SIZE, Have: max(len(data)-offset, 0)}
	}
	return HilCommand{
		Sequence: getSequence(data[offset+HIL_COMMAND_SEQUENCE_OFFSET:]),
		Speed:    math.Float64frombits(binary.LittleEndian.Uint64(data[offset+HIL_COMMAND_SPEED_OFFSET:])),
	}, nil
}

// The controller reconstructs the sequence with a shift loop that folds the
// highest-offset byte in as the most significant one, so the wire order is
// least-significant byte first. Spelled out explicitly here rather than via
// binary.LittleEndian to keep the controller convention visible at the one
// place where it matters.
func getSequence(b []byte) uint32 {
	var v uint32
	for i := HIL_COMMAND_SEQUENCE_SIZE - 1; i >= 0; i-- {
		v = v<<8 | uint32(b[i])
	}
	return v
}

func putSequence(b []byte, v uint32) {
	for i := 0; i < HIL_COMMAND_SEQUENCE_SIZE; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

// Encode serialises the beacon payload into its fixed 36-byte wire form.
func (p BeaconPayload) Encode() []byte {
	buf := make([]byte, BEACON_PAYLOAD_SIZE)
	binary.LittleEndian.PutUint32(buf[BEACON_PAYLOAD_SEQUENCE_OFFSET:], uint32(p.Sequence))
	binary.LittleEndian.PutUint64(buf[BEACON_PAYLOAD_X_OFFSET:], math.Float64bits(p.X))
	binary.LittleEndian.PutUint64(buf[BEACON_PAYLOAD_Y_OFFSET:], math.Float64bits(p.Y))
	binary.LittleEndian.PutUint64(buf[BEACON_PAYLOAD_Z_OFFSET:], math.Float64bits(p.Z))
	binary.LittleEndian.PutUint64(buf[BEACON_PAYLOAD_SPEED_OFFSET:], math.Float64bits(p.Speed))
	return buf
}

// DecodeBeaconPayload reads a BeaconPayload from data starting at offset.
// Beacon channels carry unrelated message types, so callers should treat a
// MalformedPayloadError here as "not for us" rather than as a fault.
func DecodeBeaconPayload(data []byte, offset int) (BeaconPayload, error) {
	if offset < 0 || len(data)-offset < BEACON_PAYLOAD_SIZE {
		return BeaconPayload{}, &MalformedPayloadError{What: "BeaconPayload", Want: BEACON_PAYLOAD_SIZE, Have: max(len(data)-offset, 0)}
	}
	return BeaconPayload{
		Sequence: int32(binary.LittleEndian.Uint32(data[offset+BEACON_PAYLOAD_SEQUENCE_OFFSET:])),
		X:        math.Float64frombits(binary.LittleEndian.Uint64(data[offset+BEACON_PAYLOAD_X_OFFSET:])),
		Y:        math.Float64frombits(binary.LittleEndian.Uint64(data[offset+BEACON_PAYLOAD_Y_OFFSET:])),
		Z:        math.Float64frombits(binary.LittleEndian.Uint64(data[offset+BEACON_PAYLOAD_Z_OFFSET:])),
		Speed:    math.Float64frombits(binary.LittleEndian.Uint64(data[offset+BEACON_PAYLOAD_SPEED_OFFSET:])),
	}, nil
}
