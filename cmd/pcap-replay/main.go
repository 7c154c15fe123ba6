// pcap-replay replays captured controller traffic into a live bridge port.
//
// Point it at a capture of controller->bridge datagrams and it re-sends each
// UDP payload to the bridge's inbound port, preserving inter-packet spacing
// from the capture timestamps (or at full speed with -fast). Handy for
// reproducing a controller session against the simulation without the
// controller hardware attached.
package main

import (
	"flag"
	"log"
	"net"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

var (
	pcapFile = flag.String("pcap", "", "capture file to replay (required)")
	port     = flag.Int("port", 1235, "only replay UDP packets addressed to this port")
	dest     = flag.String("dest", "127.0.0.1:1235", "bridge inbound address to replay into")
	fast     = flag.Bool("fast", false, "ignore capture timing, send back to back")
)

func main() {
	flag.Parse()
	if *pcapFile == "" {
		log.Fatal("-pcap is required")
	}

	f, err := os.Open(*pcapFile)
	if err != nil {
		log.Fatalf("failed to open capture: %v", err)
	}
	defer f.Close()

	reader, err := pcapgo.NewReader(f)
	if err != nil {
		log.Fatalf("failed to read capture header: %v", err)
	}

	raddr, err := net.ResolveUDPAddr("udp", *dest)
	if err != nil {
		log.Fatalf("bad destination: %v", err)
	}
	out, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		log.Fatalf("failed to open replay socket: %v", err)
	}
	defer out.Close()

	source := gopacket.NewPacketSource(reader, reader.LinkType())
	var sent, skipped int
	var lastCapture time.Time
	start := time.Now()

	for packet := range source.Packets() {
		if err := packet.ErrorLayer(); err != nil {
			skipped++
			continue
		}
		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			skipped++
			continue
		}
		udp, ok := udpLayer.(*layers.UDP)
		if !ok || int(udp.DstPort) != *port || len(udp.Payload) == 0 {
			skipped++
			continue
		}

		ts := packet.Metadata().Timestamp
		if !*fast && !lastCapture.IsZero() && ts.After(lastCapture) {
			time.Sleep(ts.Sub(lastCapture))
		}
		lastCapture = ts

		if _, err := out.Write(udp.Payload); err != nil {
			log.Fatalf("replay write failed after %d packets: %v", sent, err)
		}
		sent++
	}
	if sent == 0 {
		log.Printf("warning: no packets matched udp dst port %d", *port)
	}
	log.Printf("replayed %d packets to %s (%d skipped) in %v", sent, raddr, skipped, time.Since(start))
}
