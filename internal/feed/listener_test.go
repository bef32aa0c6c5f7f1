package feed

import (
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AhmadShah-1/c-all-nav/internal/monitoring"
	"github.com/AhmadShah-1/c-all-nav/internal/pipeline"
	"github.com/AhmadShah-1/c-all-nav/internal/route"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

type fakeTarget struct {
	snaps  []pipeline.Snapshot
	fixes  []pipeline.GeoFix
	routes [][]route.GeoPoint
	gotCh  chan struct{}
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{gotCh: make(chan struct{}, 16)}
}

func (f *fakeTarget) Update(snap pipeline.Snapshot) pipeline.Outputs {
	f.snaps = append(f.snaps, snap)
	f.gotCh <- struct{}{}
	return pipeline.Outputs{}
}

func (f *fakeTarget) SetGeoFix(fix pipeline.GeoFix) {
	f.fixes = append(f.fixes, fix)
}

func (f *fakeTarget) SetRoute(mainRoute []route.GeoPoint) {
	f.routes = append(f.routes, mainRoute)
}

func identityPose() [16]float64 {
	return [16]float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

func mustListener(t *testing.T, target PipelineTarget) *Listener {
	t.Helper()
	l, err := NewListener(Config{Addr: "127.0.0.1:0", Target: target})
	require.NoError(t, err)
	return l
}

func TestNewListener_RequiresTarget(t *testing.T) {
	_, err := NewListener(Config{Addr: ":0"})
	assert.Error(t, err)
}

func TestDispatch_FullSnapshot(t *testing.T) {
	target := newFakeTarget()
	l := mustListener(t, target)

	pose := identityPose()
	alt := 10.5
	msg := message{
		TNs:  time.Unix(42, 0).UnixNano(),
		Pose: &pose,
		Patches: []patchPayload{{
			AnchorID:  "mesh-1",
			Transform: identityPose(),
			Vertices:  [][3]float64{{0.5, 0, 0.05}, {1, 2, 3}},
		}},
		Geo:   &geoPayload{Lat: 40.7, Lon: -74.0, AltitudeM: &alt},
		Route: []route.GeoPoint{{Lat: 40.7, Lon: -74.0}},
	}
	b, err := json.Marshal(msg)
	require.NoError(t, err)

	require.NoError(t, l.dispatch(b))

	require.Len(t, target.routes, 1)
	require.Len(t, target.fixes, 1)
	require.Len(t, target.snaps, 1)

	assert.Equal(t, route.GeoPoint{Lat: 40.7, Lon: -74.0}, target.fixes[0].Point)
	require.NotNil(t, target.fixes[0].AltitudeM)
	assert.Equal(t, 10.5, *target.fixes[0].AltitudeM)

	snap := target.snaps[0]
	assert.Equal(t, time.Unix(42, 0), snap.Time)
	require.Len(t, snap.Patches, 1)
	require.Len(t, snap.Patches[0].Vertices, 2)
	assert.Equal(t, 0.5, snap.Patches[0].Vertices[0].X)
	assert.Equal(t, "mesh-1", snap.Patches[0].AnchorID)
}

func TestDispatch_SectionsAreOptional(t *testing.T) {
	target := newFakeTarget()
	l := mustListener(t, target)

	require.NoError(t, l.dispatch([]byte(`{"geo":{"lat":1,"lon":2}}`)))
	assert.Len(t, target.fixes, 1)
	assert.Empty(t, target.snaps)

	require.NoError(t, l.dispatch([]byte(`{"route":[{"lat":1,"lon":2}]}`)))
	assert.Len(t, target.routes, 1)
}

func TestDispatch_Malformed(t *testing.T) {
	target := newFakeTarget()
	l := mustListener(t, target)

	assert.Error(t, l.dispatch([]byte("not json")))
	assert.Error(t, l.dispatch([]byte(`{}`)), "a datagram with no sections is malformed")
	assert.Empty(t, target.snaps)
	assert.Empty(t, target.fixes)
	assert.Empty(t, target.routes)
}

func TestListener_CloseEndsReadLoopSilently(t *testing.T) {
	var logged []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		logged = append(logged, fmt.Sprintf(format, v...))
	})
	defer monitoring.SetLogger(nil)

	l := mustListener(t, newFakeTarget())
	require.NoError(t, l.Start())
	require.NoError(t, l.Close())

	// A deliberate shutdown is not a feed failure; only unexpected read
	// errors are reported.
	for _, line := range logged {
		assert.NotContains(t, line, "read loop terminated")
	}
}

func TestListener_UDPRoundTrip(t *testing.T) {
	target := newFakeTarget()
	l := mustListener(t, target)
	require.NoError(t, l.Start())
	defer l.Close()

	conn, err := net.Dial("udp", l.LocalAddr().String())
	require.NoError(t, err)
	defer conn.Close()

	pose := identityPose()
	good, err := json.Marshal(message{Pose: &pose})
	require.NoError(t, err)

	_, err = conn.Write([]byte("garbage"))
	require.NoError(t, err)
	_, err = conn.Write(good)
	require.NoError(t, err)

	select {
	case <-target.gotCh:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for snapshot delivery")
	}

	received, dropped, snapshots := l.Stats()
	assert.GreaterOrEqual(t, received, int64(2))
	assert.GreaterOrEqual(t, dropped, int64(1))
	assert.Equal(t, int64(1), snapshots)
}
