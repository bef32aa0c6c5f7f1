// Package pipeline is the composition root of the planner: it wires the
// frame geometry extractor, corridor detector, route-deviation planner, path
// synthesizer and anchor manager, and runs them synchronously for each
// sensor update. It imports the stage packages; none of them import pipeline.
package pipeline

import (
	"sync"
	"time"

	"github.com/AhmadShah-1/c-all-nav/internal/anchors"
	"github.com/AhmadShah-1/c-all-nav/internal/corridor"
	"github.com/AhmadShah-1/c-all-nav/internal/geom"
	"github.com/AhmadShah-1/c-all-nav/internal/pathviz"
	"github.com/AhmadShah-1/c-all-nav/internal/route"
)

// GeoFix is the latest geolocation reading for the observer. AltitudeM is nil
// when the geolocation collaborator does not report altitude.
type GeoFix struct {
	Point     route.GeoPoint
	AltitudeM *float64
}

// Snapshot is one complete sensor update: observer pose plus the raw surface
// patch collection, passed by value into Update. Empty patches are the
// normal "nothing observed yet" state.
type Snapshot struct {
	Time    time.Time
	Pose    geom.Pose
	Patches []geom.SurfacePatch
}

// Outputs is everything one update hands to the rendering and anchoring
// collaborators, plus the derived flags for observers of the pipeline.
type Outputs struct {
	ObstaclePresent bool
	OffRoute        bool
	ObstacleGeo     []route.GeoPoint
	Path            []route.GeoPoint
	DisplacedCount  int
	SampleCount     int
	Primitive       pathviz.Primitive
}

// Sink receives the outputs of every update, sequenced on the update context.
// The daemon uses it for logging and session recording.
type Sink interface {
	Consume(t time.Time, out Outputs)
}

// Config bundles the stage tunables for a Runtime.
type Config struct {
	Corridor          corridor.Config
	Route             route.Config
	FallbackAltitudeM float64
}

// Runtime owns the per-subscription pipeline state. Sensor updates must be
// delivered serially from a single producer; geolocation fixes and route
// replacements may arrive from other goroutines and are marshalled onto the
// update context (fixes via a mutex-guarded slot, route swaps applied at the
// start of the next update so anchor mutations stay on the scene context).
type Runtime struct {
	cfg      Config
	detector *corridor.Detector
	planner  *route.Planner
	anchors  *anchors.Manager
	sink     Sink

	mu           sync.Mutex
	geoFix       *GeoFix
	pendingRoute *[]route.GeoPoint

	mainRoute []route.GeoPoint
}

// New builds a runtime around the external anchoring collaborator. sink may
// be nil.
func New(cfg Config, placer anchors.Placer, sink Sink) *Runtime {
	return &Runtime{
		cfg:      cfg,
		detector: corridor.NewDetector(cfg.Corridor),
		planner:  route.NewPlanner(cfg.Route),
		anchors:  anchors.NewManager(placer, cfg.FallbackAltitudeM),
		sink:     sink,
	}
}

// Detector exposes the corridor detector for stats reporting.
func (rt *Runtime) Detector() *corridor.Detector {
	return rt.detector
}

// SetGeoFix records the latest geolocation reading. Safe to call from any
// goroutine; the planner only reads the fix under the same lock.
func (rt *Runtime) SetGeoFix(fix GeoFix) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	f := fix
	rt.geoFix = &f
}

// SetRoute replaces the main route subscription wholesale. The swap, along
// with the discarding of all anchors from the previous route, is applied at
// the start of the next Update so scene mutations never happen off the
// update context. Safe to call from any goroutine.
func (rt *Runtime) SetRoute(mainRoute []route.GeoPoint) {
	cp := make([]route.GeoPoint, len(mainRoute))
	copy(cp, mainRoute)
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.pendingRoute = &cp
}

// snapshotInputs takes the pending route swap and the latest geo fix under
// the lock, leaving blocking work outside it.
func (rt *Runtime) snapshotInputs() (newRoute *[]route.GeoPoint, fix *GeoFix) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	newRoute = rt.pendingRoute
	rt.pendingRoute = nil
	if rt.geoFix != nil {
		f := *rt.geoFix
		fix = &f
	}
	return newRoute, fix
}

// Update runs one pass of the pipeline over a sensor update and returns the
// outputs handed to the collaborators. Every update is idempotent: the same
// (pose, samples, route, fix) inputs produce the same outputs. Missing
// inputs are non-fatal and degrade the result: no samples means no
// obstacle, no fix means no detour and never off-route.
func (rt *Runtime) Update(snap Snapshot) Outputs {
	newRoute, fix := rt.snapshotInputs()

	var altM *float64
	if fix != nil {
		altM = fix.AltitudeM
	}

	if newRoute != nil {
		rt.anchors.Reset()
		rt.mainRoute = *newRoute
		rt.anchors.SyncRoute(rt.mainRoute, altM)
	}

	frame := geom.ExtractFrame(snap.Pose, snap.Patches)
	det := rt.detector.Scan(frame)

	out := Outputs{
		ObstaclePresent: det.Blocked,
		SampleCount:     len(frame.Samples),
	}

	// Obstacle evidence is recomputed from scratch each update; the
	// reprojected set is at most the first surviving corridor sample.
	if det.Blocked && fix != nil {
		eastM := det.Hit.Pos.X - frame.Origin.X
		northM := -(det.Hit.Pos.Z - frame.Origin.Z)
		out.ObstacleGeo = []route.GeoPoint{route.ProjectOffset(fix.Point, eastM, northM)}
	}

	if fix != nil {
		out.OffRoute = rt.planner.OffRoute(fix.Point, rt.mainRoute)
	}

	rt.anchors.RetryPending(altM)

	if len(rt.mainRoute) > 0 {
		out.Path, out.DisplacedCount = rt.planner.Detour(rt.mainRoute, out.ObstacleGeo)
		if det.Blocked && out.DisplacedCount > 0 {
			rt.anchors.ReplaceDisplayedPath(out.Path, altM)
		} else {
			// The regenerated path carries no displaced waypoints, so any
			// detour anchors from a previous update are stale.
			rt.anchors.ClearDisplayedPath()
		}
	}

	out.Primitive = pathviz.Synthesize(
		pathviz.DisplayState{OffRoute: out.OffRoute, ObstaclePresent: out.ObstaclePresent},
		rt.cfg.Corridor.WidthM,
		rt.cfg.Corridor.LengthM,
		frame.Origin,
	)

	if rt.sink != nil {
		rt.sink.Consume(snap.Time, out)
	}
	return out
}

// AnchorCount returns the number of anchors currently held for this route
// subscription.
func (rt *Runtime) AnchorCount() int {
	return rt.anchors.Placed()
}

// PendingAnchorCount returns placements awaiting retry.
func (rt *Runtime) PendingAnchorCount() int {
	return rt.anchors.PendingCount()
}
