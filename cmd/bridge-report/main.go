// bridge-report renders a recorded simulation run from the telemetry
// database as an HTML chart: headway and speeds over ticks, plus a one-line
// summary on stdout.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	_ "modernc.org/sqlite"

	"github.com/alexmonaco16/Mosaic2RosBridge/internal/telemetry"
	"github.com/alexmonaco16/Mosaic2RosBridge/internal/units"
)

var (
	dbPath    = flag.String("db", "telemetry.db", "telemetry database path")
	runID     = flag.String("run", "", "run to report (default: most recent)")
	out       = flag.String("out", "bridge-report.html", "output HTML file")
	speedUnit = flag.String("units", units.MPS, "display unit for speeds: mps, mph or kmph")
)

func main() {
	flag.Parse()
	if !units.IsValid(*speedUnit) {
		log.Fatalf("unknown speed unit %q", *speedUnit)
	}

	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		log.Fatalf("failed to open %s: %v", *dbPath, err)
	}
	defer db.Close()

	run := *runID
	if run == "" {
		runs, err := telemetry.Runs(db)
		if err != nil {
			log.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) == 0 {
			log.Fatal("no recorded runs in the database")
		}
		run = runs[0]
	}

	samples, err := telemetry.SamplesForRun(db, run)
	if err != nil {
		log.Fatalf("failed to read run %s: %v", run, err)
	}
	if len(samples) == 0 {
		log.Fatalf("run %s has no ticks", run)
	}

	summary, err := telemetry.Summarise(db, run)
	if err != nil {
		log.Fatalf("failed to summarise run %s: %v", run, err)
	}
	fmt.Printf("run %s: %d ticks, %d commanded, mean headway %.2f m (σ %.2f), mean command speed %.2f m/s, %d sentinel ticks\n",
		summary.RunID, summary.Ticks, summary.CommandedTicks,
		summary.MeanHeadway, summary.StdDevHeadway, summary.MeanCommandSpeed, summary.SentinelTicks)

	ticks := make([]string, 0, len(samples))
	headway := make([]opts.LineData, 0, len(samples))
	leaderSpeed := make([]opts.LineData, 0, len(samples))
	commandSpeed := make([]opts.LineData, 0, len(samples))
	for _, s := range samples {
		ticks = append(ticks, fmt.Sprint(s.Tick))
		headway = append(headway, opts.LineData{Value: s.LeaderDistance})
		leaderSpeed = append(leaderSpeed, opts.LineData{Value: units.FromMPS(s.LeaderVelocity, *speedUnit)})
		if s.HasCommand {
			commandSpeed = append(commandSpeed, opts.LineData{Value: units.FromMPS(s.CommandSpeed, *speedUnit)})
		} else {
			commandSpeed = append(commandSpeed, opts.LineData{Value: nil})
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Bridge run",
			Subtitle: fmt.Sprintf("run=%s ticks=%d", run, len(samples)),
		}),
	)
	label := units.Label(*speedUnit)
	line.SetXAxis(ticks).
		AddSeries("headway (m)", headway).
		AddSeries("leader speed ("+label+")", leaderSpeed).
		AddSeries("commanded speed ("+label+")", commandSpeed)

	f, err := os.Create(*out)
	if err != nil {
		log.Fatalf("failed to create %s: %v", *out, err)
	}
	defer f.Close()
	if err := line.Render(f); err != nil {
		log.Fatalf("failed to render chart: %v", err)
	}
	log.Printf("report written to %s", *out)
}
