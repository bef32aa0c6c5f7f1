// Package feed receives sensor updates as JSON datagrams over UDP and
// delivers them serially to the planner pipeline. A datagram may carry a
// pose + surface patches (a full sensor update), a geolocation fix, a route
// replacement, or any combination; malformed datagrams are counted and
// dropped, never fatal.
package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/AhmadShah-1/c-all-nav/internal/geom"
	"github.com/AhmadShah-1/c-all-nav/internal/monitoring"
	"github.com/AhmadShah-1/c-all-nav/internal/pipeline"
	"github.com/AhmadShah-1/c-all-nav/internal/route"

	"gonum.org/v1/gonum/spatial/r3"
)

// PipelineTarget is the consumer of decoded feed messages. All calls for
// sensor updates happen on the listener goroutine, which is the single
// update-consuming context the pipeline requires.
type PipelineTarget interface {
	Update(snap pipeline.Snapshot) pipeline.Outputs
	SetGeoFix(fix pipeline.GeoFix)
	SetRoute(mainRoute []route.GeoPoint)
}

type patchPayload struct {
	AnchorID  string       `json:"anchor_id"`
	Transform [16]float64  `json:"transform"`
	Vertices  [][3]float64 `json:"vertices"`
}

type geoPayload struct {
	Lat       float64  `json:"lat"`
	Lon       float64  `json:"lon"`
	AltitudeM *float64 `json:"alt_m,omitempty"`
}

// message is the wire schema. Route, Geo and Pose sections are each optional.
type message struct {
	TNs     int64            `json:"t_ns"`
	Pose    *[16]float64     `json:"pose,omitempty"`
	Patches []patchPayload   `json:"patches,omitempty"`
	Geo     *geoPayload      `json:"geo,omitempty"`
	Route   []route.GeoPoint `json:"route,omitempty"`
}

// Config holds listener settings.
type Config struct {
	Addr   string
	RcvBuf int
	Target PipelineTarget
}

// Listener reads datagrams from UDP and dispatches them to the pipeline.
type Listener struct {
	addr   string
	rcvBuf int
	target PipelineTarget
	conn   *net.UDPConn
	done   chan struct{}

	received  atomic.Int64
	dropped   atomic.Int64
	snapshots atomic.Int64
}

// NewListener builds a listener; Target is required.
func NewListener(cfg Config) (*Listener, error) {
	if cfg.Target == nil {
		return nil, fmt.Errorf("feed: target is required")
	}
	rcvBuf := cfg.RcvBuf
	if rcvBuf <= 0 {
		rcvBuf = 65536
	}
	return &Listener{
		addr:   cfg.Addr,
		rcvBuf: rcvBuf,
		target: cfg.Target,
		done:   make(chan struct{}),
	}, nil
}

// Start binds the UDP socket and begins consuming datagrams on a dedicated
// goroutine. All pipeline updates run on that goroutine.
func (l *Listener) Start() error {
	addr, err := net.ResolveUDPAddr("udp", l.addr)
	if err != nil {
		return fmt.Errorf("feed: resolve %q: %w", l.addr, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("feed: listen %q: %w", l.addr, err)
	}
	l.conn = conn

	go func() {
		defer close(l.done)
		buf := make([]byte, l.rcvBuf)
		for {
			n, _, err := conn.ReadFromUDP(buf)
			if err != nil {
				// Closed socket ends the loop; transient errors just skip.
				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					continue
				}
				if !errors.Is(err, net.ErrClosed) {
					monitoring.Logf("feed: read loop terminated: %v", err)
				}
				return
			}
			l.received.Add(1)
			if err := l.dispatch(buf[:n]); err != nil {
				l.dropped.Add(1)
				monitoring.Logf("feed: dropped datagram: %v", err)
			}
		}
	}()
	return nil
}

// LocalAddr returns the bound address, useful when listening on port 0.
func (l *Listener) LocalAddr() net.Addr {
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Close shuts the socket and waits for the consumer goroutine to exit.
func (l *Listener) Close() error {
	if l.conn == nil {
		return nil
	}
	err := l.conn.Close()
	<-l.done
	return err
}

// Stats returns datagram counters: total received, dropped as malformed, and
// full sensor snapshots delivered to the pipeline.
func (l *Listener) Stats() (received, dropped, snapshots int64) {
	return l.received.Load(), l.dropped.Load(), l.snapshots.Load()
}

// dispatch decodes one datagram and forwards its sections to the target in a
// fixed order: route replacement first, then geo fix, then the sensor update
// itself, so a combined datagram is applied consistently.
func (l *Listener) dispatch(b []byte) error {
	var msg message
	if err := json.Unmarshal(b, &msg); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if msg.Pose == nil && msg.Geo == nil && msg.Route == nil {
		return fmt.Errorf("decode: datagram carries no route, geo or pose section")
	}

	if msg.Route != nil {
		l.target.SetRoute(msg.Route)
	}
	if msg.Geo != nil {
		l.target.SetGeoFix(pipeline.GeoFix{
			Point:     route.GeoPoint{Lat: msg.Geo.Lat, Lon: msg.Geo.Lon},
			AltitudeM: msg.Geo.AltitudeM,
		})
	}
	if msg.Pose != nil {
		l.snapshots.Add(1)
		l.target.Update(snapshotFromMessage(&msg))
	}
	return nil
}

// snapshotFromMessage converts a decoded wire message into a pipeline
// snapshot. A zero t_ns falls back to arrival time.
func snapshotFromMessage(msg *message) pipeline.Snapshot {
	t := time.Now()
	if msg.TNs != 0 {
		t = time.Unix(0, msg.TNs)
	}

	snap := pipeline.Snapshot{
		Time: t,
		Pose: geom.Pose{T: *msg.Pose},
	}
	if len(msg.Patches) > 0 {
		snap.Patches = make([]geom.SurfacePatch, 0, len(msg.Patches))
		for _, p := range msg.Patches {
			patch := geom.SurfacePatch{AnchorID: p.AnchorID, T: p.Transform}
			patch.Vertices = make([]r3.Vec, len(p.Vertices))
			for i, v := range p.Vertices {
				patch.Vertices[i] = r3.Vec{X: v[0], Y: v[1], Z: v[2]}
			}
			snap.Patches = append(snap.Patches, patch)
		}
	}
	return snap
}
