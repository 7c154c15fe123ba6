// hil-node is a stand-in for the external hardware-in-the-loop controller.
//
// It listens for bridge reports on one UDP port and answers speed commands on
// another, using a plain proportional follower law: track the leader's speed,
// corrected by the headway error against a target gap. Useful for exercising
// the bridge end to end on loopback without real controller hardware.
package main

import (
	"flag"
	"log"
	"math"
	"net"
	"sync/atomic"
	"time"

	"github.com/alexmonaco16/Mosaic2RosBridge/internal/wire"
)

// atomicFloat shares a float64 between the receive and command loops.
type atomicFloat struct{ bits atomic.Uint64 }

func (f *atomicFloat) Store(v float64) { f.bits.Store(math.Float64bits(v)) }
func (f *atomicFloat) Load() float64   { return math.Float64frombits(f.bits.Load()) }

var (
	listen    = flag.String("listen", ":1234", "UDP address to receive bridge reports on")
	reply     = flag.String("reply", "127.0.0.1:1235", "bridge inbound address to send commands to")
	period    = flag.Duration("period", 10*time.Millisecond, "command emission period")
	targetGap = flag.Float64("gap", 8.0, "target headway in metres")
	gain      = flag.Float64("gain", 0.4, "proportional gain on the headway error")
	maxSpeed  = flag.Float64("max-speed", 30.0, "command speed ceiling in m/s")
)

func main() {
	flag.Parse()

	addr, err := net.ResolveUDPAddr("udp", *listen)
	if err != nil {
		log.Fatalf("bad listen address: %v", err)
	}
	in, err := net.ListenUDP("udp", addr)
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}
	defer in.Close()

	raddr, err := net.ResolveUDPAddr("udp", *reply)
	if err != nil {
		log.Fatalf("bad reply address: %v", err)
	}
	out, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		log.Fatalf("failed to open reply socket: %v", err)
	}
	defer out.Close()

	log.Printf("hil-node listening on %s, replying to %s every %v", in.LocalAddr(), raddr, *period)

	var reportCount, malformedCount int64

	// Latest report state, written by the receive loop and read by the
	// command loop. Stored as bits so a torn read is impossible.
	var latestDistance, latestVelocity atomicFloat
	latestDistance.Store(*targetGap)

	go func() {
		buf := make([]byte, 64)
		for {
			n, _, err := in.ReadFromUDP(buf)
			if err != nil {
				log.Printf("read error: %v", err)
				return
			}
			report, err := wire.DecodeHilReport(buf[:n], 0)
			if err != nil || n != wire.HIL_REPORT_SIZE {
				atomic.AddInt64(&malformedCount, 1)
				continue
			}
			atomic.AddInt64(&reportCount, 1)
			latestDistance.Store(report.LeaderDistance)
			latestVelocity.Store(report.LeaderVelocity)
		}
	}()

	// Periodic statistics, one line per second when traffic flows.
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for range ticker.C {
			reports := atomic.SwapInt64(&reportCount, 0)
			malformed := atomic.SwapInt64(&malformedCount, 0)
			if reports > 0 || malformed > 0 {
				log.Printf("reports: %d/sec (malformed %d)", reports, malformed)
			}
		}
	}()

	// Command loop: follow the leader, close the gap gently.
	ticker := time.NewTicker(*period)
	defer ticker.Stop()
	var sequence uint32
	for range ticker.C {
		distance := latestDistance.Load()
		velocity := latestVelocity.Load()

		speed := velocity + *gain*(distance-*targetGap)
		if distance >= 10000.0 {
			speed = 0 // no leader observed yet, hold still
		}
		if speed < 0 {
			speed = 0
		}
		if speed > *maxSpeed {
			speed = *maxSpeed
		}

		cmd := wire.HilCommand{Sequence: sequence, Speed: speed}
		if _, err := out.Write(cmd.Encode()); err != nil {
			log.Printf("command %d send failed: %v", sequence, err)
		}
		sequence++
	}
}
