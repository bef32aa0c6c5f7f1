// Command plannerd runs the obstacle-avoidance planner against a live UDP
// snapshot feed, logging per-update decisions and optionally recording them
// to a session database for offline analysis.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/AhmadShah-1/c-all-nav/internal/anchors"
	"github.com/AhmadShah-1/c-all-nav/internal/config"
	"github.com/AhmadShah-1/c-all-nav/internal/corridor"
	"github.com/AhmadShah-1/c-all-nav/internal/feed"
	"github.com/AhmadShah-1/c-all-nav/internal/monitoring"
	"github.com/AhmadShah-1/c-all-nav/internal/pipeline"
	"github.com/AhmadShah-1/c-all-nav/internal/route"
	"github.com/AhmadShah-1/c-all-nav/internal/storage/sqlite"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to JSON planner config (defaults apply when empty).")
		listenAddr = flag.String("listen", "", "Override UDP feed listen address (host:port).")
		dbPath     = flag.String("db", "", "Session database path; empty disables recording.")
		notes      = flag.String("notes", "", "Free-form notes stored with the session run.")
	)
	flag.Parse()

	cfg := &config.PlannerConfig{}
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("load config %q: %v", *configPath, err)
		}
		cfg = loaded
	}

	addr := cfg.GetFeedAddr()
	if *listenAddr != "" {
		addr = *listenAddr
	}

	sink := &daemonSink{}
	if *dbPath != "" {
		store, err := sqlite.Open(*dbPath)
		if err != nil {
			log.Fatalf("open session db %q: %v", *dbPath, err)
		}
		defer store.Close()

		cfgJSON, _ := json.Marshal(cfg)
		run := sqlite.SessionRun{ConfigJSON: string(cfgJSON), Notes: *notes}
		if err := store.BeginRun(&run); err != nil {
			log.Fatalf("begin session run: %v", err)
		}
		monitoring.Logf("plannerd: recording session run %s", run.RunID)
		sink.store = store
		sink.runID = run.RunID
	}

	rt := pipeline.New(pipeline.Config{
		Corridor: corridor.Config{
			WidthM:          cfg.GetCorridorWidthM(),
			LengthM:         cfg.GetCorridorLengthM(),
			FloorToleranceM: cfg.GetFloorToleranceM(),
		},
		Route: route.Config{
			OffRouteThresholdM: cfg.GetOffRouteThresholdM(),
			ProximityRadiusM:   cfg.GetProximityRadiusM(),
			DetourDeltaDeg:     cfg.GetDetourDeltaDeg(),
		},
		FallbackAltitudeM: cfg.GetFallbackAltitudeM(),
	}, &logPlacer{}, sink)
	sink.runtime = rt

	listener, err := feed.NewListener(feed.Config{
		Addr:   addr,
		RcvBuf: cfg.GetFeedReadBuffer(),
		Target: rt,
	})
	if err != nil {
		log.Fatalf("build feed listener: %v", err)
	}
	if err := listener.Start(); err != nil {
		log.Fatalf("start feed listener: %v", err)
	}
	monitoring.Logf("plannerd: listening on %s", listener.LocalAddr())

	ticker := time.NewTicker(cfg.GetStatusLogInterval())
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			received, dropped, snapshots := listener.Stats()
			scanned, rejRange, rejWidth, rejFloor, detections := rt.Detector().Stats()
			monitoring.Logf(
				"plannerd: feed(recv=%d drop=%d snap=%d) corridor(scan=%d rej_range=%d rej_width=%d rej_floor=%d hits=%d) anchors(held=%d pending=%d)",
				received, dropped, snapshots,
				scanned, rejRange, rejWidth, rejFloor, detections,
				rt.AnchorCount(), rt.PendingAnchorCount(),
			)
		case sig := <-sigCh:
			monitoring.Logf("plannerd: %v, shutting down", sig)
			if err := listener.Close(); err != nil {
				monitoring.Logf("plannerd: close listener: %v", err)
			}
			return
		}
	}
}

// daemonSink logs display-state transitions and optionally records every
// update to the session store. Consume runs on the feed goroutine, so no
// locking is needed.
type daemonSink struct {
	store   *sqlite.SessionStore
	runID   string
	runtime *pipeline.Runtime

	lastBlocked  bool
	lastOffRoute bool
}

func (s *daemonSink) Consume(t time.Time, out pipeline.Outputs) {
	if out.ObstaclePresent != s.lastBlocked || out.OffRoute != s.lastOffRoute {
		monitoring.Logf(
			"plannerd: state change obstacle=%t off_route=%t shape=%s displaced=%d",
			out.ObstaclePresent, out.OffRoute, out.Primitive.Shape, out.DisplacedCount,
		)
		s.lastBlocked = out.ObstaclePresent
		s.lastOffRoute = out.OffRoute
	}

	if s.store == nil {
		return
	}
	rec := sqlite.UpdateRecord{
		RunID:          s.runID,
		TNs:            t.UnixNano(),
		SampleCount:    out.SampleCount,
		Blocked:        out.ObstaclePresent,
		OffRoute:       out.OffRoute,
		PathLen:        len(out.Path),
		DisplacedCount: out.DisplacedCount,
	}
	if s.runtime != nil {
		rec.AnchorCount = s.runtime.AnchorCount()
	}
	if err := s.store.RecordUpdate(&rec); err != nil {
		monitoring.Logf("plannerd: record update: %v", err)
	}
}

// logPlacer stands in for the scene collaborator when plannerd runs headless:
// it accepts every placement and logs it under a synthetic handle.
type logPlacer struct{}

func (p *logPlacer) Place(coord route.GeoPoint, altitudeM float64) (anchors.Handle, error) {
	h := anchors.Handle(uuid.New().String())
	monitoring.Logf("anchor place (%.6f, %.6f) alt=%.1f handle=%s", coord.Lat, coord.Lon, altitudeM, h)
	return h, nil
}

func (p *logPlacer) Retract(h anchors.Handle) error {
	monitoring.Logf("anchor retract handle=%s", h)
	return nil
}
