// Package anchors reconciles the planner's waypoint output against the set of
// persistent world anchors already placed through the scene collaborator:
// deduplicating repeat placements, retracting stale detour-path anchors, and
// retrying placements the scene rejected.
package anchors

import (
	"fmt"

	"github.com/AhmadShah-1/c-all-nav/internal/monitoring"
	"github.com/AhmadShah-1/c-all-nav/internal/route"
)

// Handle identifies a persistent world-anchor held by the scene collaborator.
type Handle string

// Placer is the external world-anchoring collaborator. Place may fail while
// world tracking is not yet localized; such failures are retryable, not fatal.
type Placer interface {
	Place(coord route.GeoPoint, altitudeM float64) (Handle, error)
	Retract(h Handle) error
}

// PlacedAnchor is a coordinate/altitude pair mapped 1:1 to an anchor handle.
type PlacedAnchor struct {
	Coord     route.GeoPoint
	AltitudeM float64
	Handle    Handle
}

type anchorKind int

const (
	kindRoute anchorKind = iota + 1
	kindPath
)

type pendingPlacement struct {
	coord route.GeoPoint
	kind  anchorKind
}

// Manager owns all PlacedAnchor bookkeeping for one route subscription. It is
// not safe for concurrent use: the concurrency model requires every call to
// arrive on the context that owns the scene graph.
type Manager struct {
	placer       Placer
	fallbackAltM float64

	seen         map[string]struct{}
	routeAnchors map[string]PlacedAnchor
	pathAnchors  []PlacedAnchor
	pending      []pendingPlacement
}

// NewManager builds a manager backed by the given scene collaborator.
// fallbackAltM is used when no observer altitude is known.
func NewManager(placer Placer, fallbackAltM float64) *Manager {
	return &Manager{
		placer:       placer,
		fallbackAltM: fallbackAltM,
		seen:         make(map[string]struct{}),
		routeAnchors: make(map[string]PlacedAnchor),
	}
}

// coordKey renders the coordinate pair as a stable identity key so the same
// point is never anchored twice within one route subscription.
func coordKey(p route.GeoPoint) string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lon)
}

func (m *Manager) altitude(observerAltM *float64) float64 {
	if observerAltM != nil {
		return *observerAltM
	}
	return m.fallbackAltM
}

// SyncRoute performs full-route placement: every waypoint whose coordinate
// key has not been seen gets a new anchor. Keys are recorded only on
// successful placement; a rejection leaves the waypoint queued for retry so
// no coordinate is lost (the scene may simply not be localized yet).
func (m *Manager) SyncRoute(mainRoute []route.GeoPoint, observerAltM *float64) {
	alt := m.altitude(observerAltM)
	for _, wp := range mainRoute {
		key := coordKey(wp)
		if _, ok := m.seen[key]; ok {
			continue
		}
		h, err := m.placer.Place(wp, alt)
		if err != nil {
			monitoring.Logf("anchors: placement deferred for %s: %v", key, err)
			m.queuePending(wp, kindRoute)
			continue
		}
		m.seen[key] = struct{}{}
		m.routeAnchors[key] = PlacedAnchor{Coord: wp, AltitudeM: alt, Handle: h}
	}
}

// ClearDisplayedPath retracts every anchor previously placed for the
// displayed path and drops its queued placements. Called when the displayed
// path regenerates without displaced waypoints, so no detour anchor outlives
// the obstacle that caused it.
func (m *Manager) ClearDisplayedPath() {
	for _, a := range m.pathAnchors {
		if err := m.placer.Retract(a.Handle); err != nil {
			monitoring.Logf("anchors: retract %s failed: %v", coordKey(a.Coord), err)
		}
	}
	m.pathAnchors = m.pathAnchors[:0]
	m.dropPending(kindPath)
}

// ReplaceDisplayedPath retracts every anchor previously placed for the
// displayed path and re-places the full new sequence. This pathway does not
// consult the dedup set: it always operates on a freshly cleared subset.
func (m *Manager) ReplaceDisplayedPath(path []route.GeoPoint, observerAltM *float64) {
	m.ClearDisplayedPath()

	alt := m.altitude(observerAltM)
	for _, wp := range path {
		h, err := m.placer.Place(wp, alt)
		if err != nil {
			monitoring.Logf("anchors: path placement deferred for %s: %v", coordKey(wp), err)
			m.queuePending(wp, kindPath)
			continue
		}
		m.pathAnchors = append(m.pathAnchors, PlacedAnchor{Coord: wp, AltitudeM: alt, Handle: h})
	}
}

// RetryPending re-attempts placements previously rejected by the scene
// collaborator. Called once per update; entries that fail again stay queued.
func (m *Manager) RetryPending(observerAltM *float64) {
	if len(m.pending) == 0 {
		return
	}
	alt := m.altitude(observerAltM)
	still := m.pending[:0]
	for _, p := range m.pending {
		h, err := m.placer.Place(p.coord, alt)
		if err != nil {
			still = append(still, p)
			continue
		}
		placed := PlacedAnchor{Coord: p.coord, AltitudeM: alt, Handle: h}
		switch p.kind {
		case kindRoute:
			key := coordKey(p.coord)
			m.seen[key] = struct{}{}
			m.routeAnchors[key] = placed
		case kindPath:
			m.pathAnchors = append(m.pathAnchors, placed)
		}
	}
	m.pending = still
}

// Reset discards every anchor of the current route subscription: all route
// and path anchors are retracted, the seen-set is cleared, and queued
// placements are dropped. Called when the main route is replaced wholesale.
func (m *Manager) Reset() {
	for key, a := range m.routeAnchors {
		if err := m.placer.Retract(a.Handle); err != nil {
			monitoring.Logf("anchors: retract %s failed: %v", key, err)
		}
	}
	for _, a := range m.pathAnchors {
		if err := m.placer.Retract(a.Handle); err != nil {
			monitoring.Logf("anchors: retract %s failed: %v", coordKey(a.Coord), err)
		}
	}
	m.seen = make(map[string]struct{})
	m.routeAnchors = make(map[string]PlacedAnchor)
	m.pathAnchors = nil
	m.pending = nil
}

// Placed returns the number of currently held anchors (route plus path).
func (m *Manager) Placed() int {
	return len(m.routeAnchors) + len(m.pathAnchors)
}

// PendingCount returns the number of placements awaiting retry.
func (m *Manager) PendingCount() int {
	return len(m.pending)
}

func (m *Manager) queuePending(coord route.GeoPoint, kind anchorKind) {
	key := coordKey(coord)
	for _, p := range m.pending {
		if p.kind == kind && coordKey(p.coord) == key {
			return
		}
	}
	m.pending = append(m.pending, pendingPlacement{coord: coord, kind: kind})
}

func (m *Manager) dropPending(kind anchorKind) {
	still := m.pending[:0]
	for _, p := range m.pending {
		if p.kind != kind {
			still = append(still, p)
		}
	}
	m.pending = still
}
