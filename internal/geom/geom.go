// Package geom provides the frame geometry stage of the planner pipeline:
// rigid-transform validation and the per-update conversion of the observer
// pose and raw surface patches into a common world frame.
package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// MatrixValidationTolerance is the tolerance for checking rotation matrix validity.
const MatrixValidationTolerance = 0.01

// forwardEpsilon is the minimum length of a usable forward vector. Anything
// shorter is treated as degenerate geometry (no detection this update).
const forwardEpsilon = 1e-6

// Pose is the observer's rigid transform at one sensor update. It is supplied
// fresh each update and never persisted.
type Pose struct {
	// T is the local-to-world transform, [16]float64 row-major:
	// m00,m01,m02,m03, m10,...
	T [16]float64
}

// IsValidTransform checks if a 4x4 row-major matrix is a valid rigid transform:
// orthonormal rotation submatrix (det ≈ 1) and affine last row [0 0 0 1].
func IsValidTransform(T [16]float64) bool {
	r00, r01, r02 := T[0], T[1], T[2]
	r10, r11, r12 := T[4], T[5], T[6]
	r20, r21, r22 := T[8], T[9], T[10]

	det := r00*(r11*r22-r12*r21) - r01*(r10*r22-r12*r20) + r02*(r10*r21-r11*r20)
	if math.Abs(det-1.0) > MatrixValidationTolerance {
		return false
	}

	if T[12] != 0 || T[13] != 0 || T[14] != 0 || math.Abs(T[15]-1.0) > 0.001 {
		return false
	}

	return true
}

// Apply transforms point v by the 4x4 row-major matrix T.
func Apply(T [16]float64, v r3.Vec) r3.Vec {
	return r3.Vec{
		X: T[0]*v.X + T[1]*v.Y + T[2]*v.Z + T[3],
		Y: T[4]*v.X + T[5]*v.Y + T[6]*v.Z + T[7],
		Z: T[8]*v.X + T[9]*v.Y + T[10]*v.Z + T[11],
	}
}

// Position returns the world-space position of the observer.
func (p Pose) Position() r3.Vec {
	return r3.Vec{X: p.T[3], Y: p.T[7], Z: p.T[11]}
}

// Forward returns the world-space forward unit vector of the observer.
// The camera looks down its local -Z axis, so forward is the negated third
// rotation column. ok is false when the column is degenerate (zero-length or
// non-rigid transform), which downstream stages must treat as "no detection".
func (p Pose) Forward() (fwd r3.Vec, ok bool) {
	raw := r3.Vec{X: -p.T[2], Y: -p.T[6], Z: -p.T[10]}
	n := r3.Norm(raw)
	if n < forwardEpsilon || !IsValidTransform(p.T) {
		return r3.Vec{}, false
	}
	return r3.Scale(1/n, raw), true
}

// SurfacePatch is one surface-reconstruction patch: mesh vertices in
// patch-local coordinates plus the patch's own local-to-world transform.
// Patches from different anchors carry different transforms.
type SurfacePatch struct {
	AnchorID string
	T        [16]float64
	Vertices []r3.Vec
}

// WorldSample is a single surface point in world space, tagged with the
// identity of the surface patch it came from.
type WorldSample struct {
	Pos      r3.Vec
	AnchorID string
}

// FrameGeometry is the world-frame view of a single sensor update.
type FrameGeometry struct {
	Origin    r3.Vec
	Forward   r3.Vec
	ForwardOK bool
	Samples   []WorldSample
}

// ExtractFrame transforms the observer pose and the raw surface-sample
// collection into a common world frame. It is a pure transform with no side
// effects. An empty patch collection yields an empty sample set, the normal
// "nothing observed yet" state, not an error. Patches carrying a non-rigid
// transform are skipped so a single bad mesh update cannot poison the scan.
func ExtractFrame(pose Pose, patches []SurfacePatch) FrameGeometry {
	fwd, ok := pose.Forward()
	frame := FrameGeometry{
		Origin:    pose.Position(),
		Forward:   fwd,
		ForwardOK: ok,
	}

	total := 0
	for _, p := range patches {
		total += len(p.Vertices)
	}
	if total == 0 {
		return frame
	}

	frame.Samples = make([]WorldSample, 0, total)
	for _, p := range patches {
		if !IsValidTransform(p.T) {
			continue
		}
		for _, v := range p.Vertices {
			frame.Samples = append(frame.Samples, WorldSample{
				Pos:      Apply(p.T, v),
				AnchorID: p.AnchorID,
			})
		}
	}
	return frame
}

// Identity returns the identity transform, useful for patches already in
// world coordinates and for tests.
func Identity() [16]float64 {
	return [16]float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Translate returns an identity rotation with the given world translation.
func Translate(x, y, z float64) [16]float64 {
	return [16]float64{
		1, 0, 0, x,
		0, 1, 0, y,
		0, 0, 1, z,
		0, 0, 0, 1,
	}
}
