package geom

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

// facingPlusX is a rigid transform whose camera forward (-Z local) points
// along world +X.
func facingPlusX(x, y, z float64) [16]float64 {
	return [16]float64{
		0, 0, -1, x,
		0, 1, 0, y,
		1, 0, 0, z,
		0, 0, 0, 1,
	}
}

func TestIsValidTransform(t *testing.T) {
	tests := []struct {
		name string
		T    [16]float64
		want bool
	}{
		{"identity", Identity(), true},
		{"translation", Translate(1, 2, 3), true},
		{"rotation", facingPlusX(0, 0, 0), true},
		{"zero matrix", [16]float64{}, false},
		{"reflection", [16]float64{
			-1, 0, 0, 0,
			0, 1, 0, 0,
			0, 0, 1, 0,
			0, 0, 0, 1,
		}, false},
		{"bad last row", [16]float64{
			1, 0, 0, 0,
			0, 1, 0, 0,
			0, 0, 1, 0,
			0, 1, 0, 1,
		}, false},
		{"scaled rotation", [16]float64{
			2, 0, 0, 0,
			0, 2, 0, 0,
			0, 0, 2, 0,
			0, 0, 0, 1,
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidTransform(tt.T); got != tt.want {
				t.Errorf("IsValidTransform() = %t, want %t", got, tt.want)
			}
		})
	}
}

func TestPosePosition(t *testing.T) {
	p := Pose{T: Translate(1.5, -2, 0.25)}
	got := p.Position()
	want := r3.Vec{X: 1.5, Y: -2, Z: 0.25}
	if got != want {
		t.Errorf("Position() = %v, want %v", got, want)
	}
}

func TestPoseForward(t *testing.T) {
	t.Run("identity looks down -Z", func(t *testing.T) {
		fwd, ok := Pose{T: Identity()}.Forward()
		if !ok {
			t.Fatal("expected usable forward vector")
		}
		want := r3.Vec{X: 0, Y: 0, Z: -1}
		if math.Abs(fwd.X-want.X) > 1e-12 || math.Abs(fwd.Y-want.Y) > 1e-12 || math.Abs(fwd.Z-want.Z) > 1e-12 {
			t.Errorf("Forward() = %v, want %v", fwd, want)
		}
	})

	t.Run("rotated pose faces +X", func(t *testing.T) {
		fwd, ok := Pose{T: facingPlusX(3, 0, 1)}.Forward()
		if !ok {
			t.Fatal("expected usable forward vector")
		}
		if math.Abs(fwd.X-1) > 1e-12 || math.Abs(fwd.Y) > 1e-12 || math.Abs(fwd.Z) > 1e-12 {
			t.Errorf("Forward() = %v, want +X", fwd)
		}
	})

	t.Run("unit length", func(t *testing.T) {
		fwd, ok := Pose{T: facingPlusX(0, 0, 0)}.Forward()
		if !ok {
			t.Fatal("expected usable forward vector")
		}
		if math.Abs(r3.Norm(fwd)-1) > 1e-9 {
			t.Errorf("|Forward()| = %v, want 1", r3.Norm(fwd))
		}
	})

	t.Run("degenerate transform", func(t *testing.T) {
		if _, ok := (Pose{}).Forward(); ok {
			t.Error("expected degenerate pose to report not-ok")
		}
	})
}

func TestExtractFrame_EmptyPatches(t *testing.T) {
	frame := ExtractFrame(Pose{T: Identity()}, nil)
	if len(frame.Samples) != 0 {
		t.Errorf("expected empty sample set, got %d", len(frame.Samples))
	}
	if !frame.ForwardOK {
		t.Error("expected usable forward vector from identity pose")
	}
}

func TestExtractFrame_AppliesPatchTransforms(t *testing.T) {
	patches := []SurfacePatch{
		{
			AnchorID: "patch-a",
			T:        Translate(1, 2, 3),
			Vertices: []r3.Vec{{X: 1, Y: 0, Z: 0}, {X: 0, Y: 0, Z: 0}},
		},
		{
			AnchorID: "patch-b",
			T:        Identity(),
			Vertices: []r3.Vec{{X: -1, Y: -1, Z: -1}},
		},
	}

	frame := ExtractFrame(Pose{T: Identity()}, patches)
	if len(frame.Samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(frame.Samples))
	}

	want := []WorldSample{
		{Pos: r3.Vec{X: 2, Y: 2, Z: 3}, AnchorID: "patch-a"},
		{Pos: r3.Vec{X: 1, Y: 2, Z: 3}, AnchorID: "patch-a"},
		{Pos: r3.Vec{X: -1, Y: -1, Z: -1}, AnchorID: "patch-b"},
	}
	for i, w := range want {
		if frame.Samples[i] != w {
			t.Errorf("sample %d = %+v, want %+v", i, frame.Samples[i], w)
		}
	}
}

func TestExtractFrame_SkipsMalformedPatch(t *testing.T) {
	patches := []SurfacePatch{
		{AnchorID: "bad", T: [16]float64{}, Vertices: []r3.Vec{{X: 9, Y: 9, Z: 9}}},
		{AnchorID: "good", T: Identity(), Vertices: []r3.Vec{{X: 1, Y: 1, Z: 1}}},
	}

	frame := ExtractFrame(Pose{T: Identity()}, patches)
	if len(frame.Samples) != 1 {
		t.Fatalf("expected 1 sample from the valid patch, got %d", len(frame.Samples))
	}
	if frame.Samples[0].AnchorID != "good" {
		t.Errorf("kept sample from %q, want patch %q", frame.Samples[0].AnchorID, "good")
	}
}
