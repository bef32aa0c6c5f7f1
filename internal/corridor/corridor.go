// Package corridor implements the forward-corridor obstacle detector: a
// bounded rectangular volume extending ahead of the observer within which
// surface samples count as obstacles.
package corridor

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/AhmadShah-1/c-all-nav/internal/geom"
)

// Config bounds the corridor volume.
type Config struct {
	// WidthM is the full corridor width (metres); samples farther than
	// WidthM/2 from the forward axis are ignored.
	WidthM float64

	// LengthM is how far ahead of the observer the corridor extends (metres).
	LengthM float64

	// FloorToleranceM drops samples at or below the observer's height (the
	// world Y axis) minus this tolerance; those are ground returns, not
	// obstacles.
	FloorToleranceM float64
}

// DefaultConfig returns the corridor bounds used by the walking planner:
// a 0.3 m wide, 1 m deep corridor with a 0.5 m floor cutoff.
func DefaultConfig() Config {
	return Config{WidthM: 0.3, LengthM: 1.0, FloorToleranceM: 0.5}
}

// Detection is the per-update obstacle evidence. It is recomputed fresh every
// update and never carried over. Hit is the first surviving sample when
// Blocked is true, so the planner can reproject it to geographic coordinates.
type Detection struct {
	Blocked bool
	Hit     geom.WorldSample
}

// Detector scans frame geometry for samples inside the corridor. The scan is
// O(samples) with early exit on the first survivor and retains nothing across
// updates. Rejection counters accumulate for tuning and validation.
type Detector struct {
	cfg Config

	samplesScanned int64
	rejectedRange  int64
	rejectedWidth  int64
	rejectedFloor  int64
	detections     int64
}

// NewDetector constructs a detector with the given corridor bounds.
func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// Config returns the corridor bounds the detector was built with.
func (d *Detector) Config() Config {
	return d.cfg
}

// Scan tests every sample against the three corridor filters and returns on
// the first survivor. The world frame is gravity-aligned with Y up: the
// width filter measures lateral offset in the horizontal plane, and the
// floor filter compares heights along Y, so a sample well below the observer
// is a ground return no matter how far ahead it lies. Degenerate forward
// geometry or an empty sample set yields "no detection this update".
func (d *Detector) Scan(frame geom.FrameGeometry) Detection {
	if !frame.ForwardOK || len(frame.Samples) == 0 {
		return Detection{}
	}

	halfWidth := d.cfg.WidthM / 2
	floorY := frame.Origin.Y - d.cfg.FloorToleranceM

	for _, s := range frame.Samples {
		d.samplesScanned++

		disp := r3.Sub(s.Pos, frame.Origin)
		fd := r3.Dot(disp, frame.Forward)
		if fd < 0 || fd > d.cfg.LengthM {
			d.rejectedRange++
			continue
		}

		perp := r3.Sub(disp, r3.Scale(fd, frame.Forward))
		if math.Hypot(perp.X, perp.Z) > halfWidth {
			d.rejectedWidth++
			continue
		}

		if s.Pos.Y <= floorY {
			d.rejectedFloor++
			continue
		}

		d.detections++
		return Detection{Blocked: true, Hit: s}
	}

	return Detection{}
}

// Stats returns accumulated filter counters.
func (d *Detector) Stats() (scanned, rejectedRange, rejectedWidth, rejectedFloor, detections int64) {
	return d.samplesScanned, d.rejectedRange, d.rejectedWidth, d.rejectedFloor, d.detections
}

// ResetStats clears accumulated counters.
func (d *Detector) ResetStats() {
	d.samplesScanned = 0
	d.rejectedRange = 0
	d.rejectedWidth = 0
	d.rejectedFloor = 0
	d.detections = 0
}
