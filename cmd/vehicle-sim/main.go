// vehicle-sim is a minimal host harness: a leading vehicle beaconing its
// state and a follower mirroring a HIL controller over the UDP bridge, both
// driven by a fixed-step simulation loop. Run hil-node alongside to close
// the control loop:
//
//	hil-node -listen :1234 -reply 127.0.0.1:1235 &
//	vehicle-sim -duration 40s
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/alexmonaco16/Mosaic2RosBridge/internal/config"
	"github.com/alexmonaco16/Mosaic2RosBridge/internal/telemetry"
	"github.com/alexmonaco16/Mosaic2RosBridge/internal/vehicle"
)

var (
	configPath = flag.String("config", "", "optional JSON config file")
	duration   = flag.Duration("duration", 40*time.Second, "simulated run length")
	tickPeriod = flag.Duration("tick", 100*time.Millisecond, "simulation step size")
	leaderTop  = flag.Float64("leader-speed", 13.9, "leader cruise speed in m/s")
	headstart  = flag.Float64("headstart", 25.0, "leader's initial lead in metres")
)

// simVehicle integrates a point vehicle along the x axis. It doubles as the
// host's kinematics and actuation surface for one app.
type simVehicle struct {
	pos    vehicle.Position
	speed  float64
	target float64
}

func (v *simVehicle) CurrentPosition() vehicle.Position { return v.pos }
func (v *simVehicle) CurrentSpeed() float64             { return v.speed }

func (v *simVehicle) RequestSpeedChange(speed float64, transition time.Duration) {
	v.target = speed
}

// step advances the vehicle one tick, snapping toward the target speed with
// a fixed acceleration bound.
func (v *simVehicle) step(dt time.Duration) {
	const maxAccel = 3.0 // m/s^2
	delta := v.target - v.speed
	limit := maxAccel * dt.Seconds()
	if delta > limit {
		delta = limit
	} else if delta < -limit {
		delta = -limit
	}
	v.speed += delta
	v.pos.X += v.speed * dt.Seconds()
}

// stepScheduler runs scheduled callbacks on the simulation clock.
type stepScheduler struct {
	now   time.Duration
	queue []schedEntry
}

type schedEntry struct {
	at time.Duration
	fn func()
}

func (s *stepScheduler) ScheduleEvent(delay time.Duration, fn func()) {
	s.queue = append(s.queue, schedEntry{at: s.now + delay, fn: fn})
}

func (s *stepScheduler) SimulationTime() time.Duration { return s.now }

// advance moves the clock to t, firing everything due on the way.
func (s *stepScheduler) advance(t time.Duration) {
	for {
		sort.Slice(s.queue, func(i, j int) bool { return s.queue[i].at < s.queue[j].at })
		if len(s.queue) == 0 || s.queue[0].at > t {
			break
		}
		ev := s.queue[0]
		s.queue = s.queue[1:]
		s.now = ev.at
		ev.fn()
	}
	s.now = t
}

// directRadio hands each beacon straight to the follower. A host simulator
// would model propagation and loss here; the harness does not.
type directRadio struct {
	receiver *vehicle.HilVehicleApp
}

func (r *directRadio) BroadcastSend(payload []byte) error {
	r.receiver.OnBeaconReceived(payload)
	return nil
}

func main() {
	flag.Parse()

	var cfg *config.Config
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		cfg = loaded
	}

	leader := &simVehicle{pos: vehicle.Position{X: *headstart}, target: *leaderTop}
	follower := &simVehicle{}

	hilApp := vehicle.NewHilVehicleApp(vehicle.HilAppConfig{
		InboundPort:     cfg.GetInboundPort(),
		OutboundAddress: cfg.GetOutboundAddress(),
		OutboundPort:    cfg.GetOutboundPort(),
		ReceiveTimeout:  cfg.GetReceiveTimeout(),
	}, vehicle.HilCollaborators{
		Kinematics: follower,
		Actuator:   follower,
	})

	if dbPath := cfg.GetTelemetryDB(); dbPath != "" {
		rec, err := telemetry.NewRecorder(dbPath, "follower")
		if err != nil {
			log.Fatalf("telemetry: %v", err)
		}
		defer rec.Close()
		hilApp.SetTickObserver(rec)
		log.Printf("recording run %s to %s", rec.RunID(), dbPath)
	}

	sched := &stepScheduler{}
	leadApp := vehicle.NewLeadBeaconApp(vehicle.LeadAppConfig{
		BeaconPeriod: cfg.GetBeaconPeriod(),
		StopTime:     cfg.GetStopTime(),
	}, vehicle.LeadCollaborators{
		Kinematics: leader,
		Actuator:   leader,
		Radio:      &directRadio{receiver: hilApp},
		Scheduler:  sched,
	})

	if err := hilApp.OnStart(); err != nil {
		log.Fatalf("follower start: %v", err)
	}
	defer hilApp.OnShutdown()
	if err := leadApp.OnStart(); err != nil {
		log.Fatalf("leader start: %v", err)
	}
	defer leadApp.OnShutdown()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(*tickPeriod)
	defer ticker.Stop()

	var simTime time.Duration
	for simTime < *duration {
		select {
		case <-stop:
			log.Print("interrupted, shutting down")
			return
		case <-ticker.C:
		}

		simTime += *tickPeriod
		leader.step(*tickPeriod)
		follower.step(*tickPeriod)

		leadApp.OnTick()
		hilApp.OnTick()
		sched.advance(simTime)
	}

	gap := leader.pos.X - follower.pos.X
	log.Printf("run complete at %v: leader x=%.1f follower x=%.1f gap=%.1f m",
		simTime, leader.pos.X, follower.pos.X, gap)
}
