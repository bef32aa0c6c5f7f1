// Command session-report renders a recorded planner session as an HTML
// chart: obstacle/off-route state, sample counts and displaced waypoints per
// update. With no -run it lists the runs in the database.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/AhmadShah-1/c-all-nav/internal/storage/sqlite"
)

func main() {
	var (
		dbPath = flag.String("db", "sessions.db", "Session database path.")
		runID  = flag.String("run", "", "Run ID to render; empty lists available runs.")
		out    = flag.String("out", "session-report.html", "Output HTML file.")
	)
	flag.Parse()

	store, err := sqlite.Open(*dbPath)
	if err != nil {
		log.Fatalf("open session db %q: %v", *dbPath, err)
	}
	defer store.Close()

	if *runID == "" {
		listRuns(store)
		return
	}

	recs, err := store.ListUpdates(*runID)
	if err != nil {
		log.Fatalf("list updates for %s: %v", *runID, err)
	}
	if len(recs) == 0 {
		log.Fatalf("run %s has no recorded updates", *runID)
	}

	page := components.NewPage()
	page.AddCharts(stateChart(*runID, recs), volumeChart(recs))

	f, err := os.Create(*out)
	if err != nil {
		log.Fatalf("create %q: %v", *out, err)
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		log.Fatalf("render report: %v", err)
	}
	fmt.Printf("wrote %s (%d updates)\n", *out, len(recs))
}

func listRuns(store *sqlite.SessionStore) {
	runs, err := store.ListRuns()
	if err != nil {
		log.Fatalf("list runs: %v", err)
	}
	if len(runs) == 0 {
		fmt.Println("no session runs recorded")
		return
	}
	for _, r := range runs {
		started := time.Unix(0, r.StartedAtNs).Format(time.RFC3339)
		fmt.Printf("%s  started=%s  notes=%s\n", r.RunID, started, r.Notes)
	}
}

// stateChart plots obstacle and off-route flags as step series over time.
func stateChart(runID string, recs []sqlite.UpdateRecord) *charts.Line {
	x := make([]string, len(recs))
	blocked := make([]opts.LineData, len(recs))
	offRoute := make([]opts.LineData, len(recs))
	displaced := make([]opts.LineData, len(recs))
	for i, r := range recs {
		x[i] = time.Unix(0, r.TNs).Format("15:04:05.000")
		blocked[i] = opts.LineData{Value: boolToInt(r.Blocked)}
		offRoute[i] = opts.LineData{Value: boolToInt(r.OffRoute)}
		displaced[i] = opts.LineData{Value: r.DisplacedCount}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Planner state", Subtitle: fmt.Sprintf("run=%s updates=%d", runID, len(recs))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "time"}),
	)
	line.SetXAxis(x).
		AddSeries("obstacle", blocked).
		AddSeries("off-route", offRoute).
		AddSeries("displaced waypoints", displaced)
	return line
}

// volumeChart plots sample and anchor counts per update.
func volumeChart(recs []sqlite.UpdateRecord) *charts.Line {
	x := make([]string, len(recs))
	samples := make([]opts.LineData, len(recs))
	anchorCounts := make([]opts.LineData, len(recs))
	for i, r := range recs {
		x[i] = time.Unix(0, r.TNs).Format("15:04:05.000")
		samples[i] = opts.LineData{Value: r.SampleCount}
		anchorCounts[i] = opts.LineData{Value: r.AnchorCount}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Surface samples and anchors"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "time"}),
	)
	line.SetXAxis(x).
		AddSeries("samples", samples).
		AddSeries("anchors held", anchorCounts)
	return line
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
