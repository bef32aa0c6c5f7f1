// Package route implements the route-deviation planner: the on-route test
// against the main route and the detour synthesis that displaces waypoints
// blocked by nearby obstacles.
package route

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// metersPerDegree is the great-circle length of one degree of latitude
// (and of longitude at the equator), used for local metre↔degree offsets.
const metersPerDegree = 111319.49

// GeoPoint is a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Orb converts to an orb.Point (lon, lat order).
func (p GeoPoint) Orb() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// Distance returns the great-circle distance between two points in metres.
func Distance(a, b GeoPoint) float64 {
	return geo.Distance(a.Orb(), b.Orb())
}

// ProjectOffset displaces origin by the given east/north offsets in metres.
// Used to reproject obstacle world positions, observed in a
// gravity-and-heading aligned frame, onto the geographic plane.
func ProjectOffset(origin GeoPoint, eastM, northM float64) GeoPoint {
	lat := origin.Lat + northM/metersPerDegree
	lonScale := metersPerDegree * math.Cos(origin.Lat*math.Pi/180)
	lon := origin.Lon
	if lonScale > 1 {
		lon += eastM / lonScale
	}
	return GeoPoint{Lat: lat, Lon: lon}
}

// Config carries the planner tunables.
type Config struct {
	// OffRouteThresholdM: observer farther than this from every route point
	// is considered off-route.
	OffRouteThresholdM float64

	// ProximityRadiusM: waypoints within this distance of a known obstacle
	// position are displaced.
	ProximityRadiusM float64

	// DetourDeltaDeg is the fixed angular displacement applied to a blocked
	// waypoint in both latitude and longitude.
	DetourDeltaDeg float64
}

// DefaultConfig returns the planner defaults: 5 m off-route threshold, 1 m
// obstacle proximity radius, 0.0001° detour delta.
func DefaultConfig() Config {
	return Config{OffRouteThresholdM: 5, ProximityRadiusM: 1, DetourDeltaDeg: 0.0001}
}

// Planner computes on-route state and detour waypoint sequences. It owns no
// state beyond its configuration; all inputs arrive per call.
type Planner struct {
	cfg Config
}

// NewPlanner constructs a planner with the given tunables.
func NewPlanner(cfg Config) *Planner {
	return &Planner{cfg: cfg}
}

// MinDistanceM returns the minimum great-circle distance from observer to any
// point of the route. ok is false for an empty route.
func (pl *Planner) MinDistanceM(observer GeoPoint, mainRoute []GeoPoint) (m float64, ok bool) {
	if len(mainRoute) == 0 {
		return 0, false
	}
	min := math.Inf(1)
	for _, wp := range mainRoute {
		if d := Distance(observer, wp); d < min {
			min = d
		}
	}
	return min, true
}

// OffRoute reports whether the observer has strayed beyond the configured
// threshold from every point of the main route. With no route to compare
// against the observer is never off-route.
func (pl *Planner) OffRoute(observer GeoPoint, mainRoute []GeoPoint) bool {
	min, ok := pl.MinDistanceM(observer, mainRoute)
	if !ok {
		return false
	}
	return min > pl.cfg.OffRouteThresholdM
}

// Detour walks the main route in order, displacing every waypoint that lies
// within the proximity radius of a known obstacle position by the fixed
// angular delta in both axes, and emitting all other waypoints unchanged.
// The result is a full replacement sequence with the same length and order as
// the input, plus the count of displaced entries. The displacement is
// deterministic: the same inputs always yield the same sequence.
func (pl *Planner) Detour(mainRoute []GeoPoint, obstacles []GeoPoint) (path []GeoPoint, displaced int) {
	if len(mainRoute) == 0 {
		return nil, 0
	}

	path = make([]GeoPoint, len(mainRoute))
	for i, wp := range mainRoute {
		blocked := false
		for _, obs := range obstacles {
			if Distance(wp, obs) <= pl.cfg.ProximityRadiusM {
				blocked = true
				break
			}
		}
		if blocked {
			path[i] = GeoPoint{
				Lat: wp.Lat + pl.cfg.DetourDeltaDeg,
				Lon: wp.Lon + pl.cfg.DetourDeltaDeg,
			}
			displaced++
		} else {
			path[i] = wp
		}
	}
	return path, displaced
}
