package mapper

import (
	"context"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TYEclipse/AD-LOAM/internal/config"
	"github.com/TYEclipse/AD-LOAM/internal/featcloud"
	"github.com/TYEclipse/AD-LOAM/internal/geom"
	"github.com/TYEclipse/AD-LOAM/internal/logging"
)

func newTestMapper() *Mapper {
	return New(config.Resolve(nil), logging.Discard(), Sinks{})
}

func linePoints() featcloud.Cloud {
	pts := make(featcloud.Cloud, 0, 12)
	for i := 0; i < 12; i++ {
		pts = append(pts, featcloud.Point{
			Pos:       r3.Vector{X: float64(i) * 0.2, Y: 0, Z: 0},
			Curvature: 0.05,
		})
	}
	return pts
}

func planePoints() featcloud.Cloud {
	pts := make(featcloud.Cloud, 0, 64)
	for i := 0; i < 8; i++ {
		for j := 0; j < 8; j++ {
			pts = append(pts, featcloud.Point{
				Pos:       r3.Vector{X: float64(i) * 0.5, Y: float64(j) * 0.5, Z: 0},
				Curvature: 1.0,
			})
		}
	}
	return pts
}

func TestProcessFrameInsufficientMapFallsBackToOdometry(t *testing.T) {
	m := newTestMapper()
	odom := geom.Pose{Q: geom.Identity().Q, T: r3.Vector{X: 1, Y: 2, Z: 0}}
	in := Aligned{
		Stamp:   time.Now(),
		Corner:  linePoints(),
		Surf:    planePoints(),
		FullRes: linePoints(),
		Odom:    odom,
	}
	res, err := m.ProcessFrame(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, res.InsufficientMap)
	assert.InDelta(t, odom.T.X, res.Pose.T.X, 1e-9)
	assert.InDelta(t, odom.T.Y, res.Pose.T.Y, 1e-9)
	// Even with an empty map, the frame's points must still be inserted so
	// the map keeps growing (spec's insufficient-map error-handling policy).
	assert.Greater(t, m.cmap.PointCount(), 0)
}

func TestProcessFrameRefinesAgainstMatchingMap(t *testing.T) {
	m := newTestMapper()
	for _, p := range linePoints() {
		m.cmap.Insert(p)
	}
	for _, p := range planePoints() {
		m.cmap.Insert(p)
	}

	in := Aligned{
		Stamp:   time.Now(),
		Corner:  linePoints(),
		Surf:    planePoints(),
		FullRes: linePoints(),
		Odom:    geom.Identity(),
	}
	res, err := m.ProcessFrame(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, res.InsufficientMap)
	// The input stacks already coincide with the map, so the refined pose
	// should stay close to identity rather than drifting.
	assert.InDelta(t, 0, res.Pose.T.X, 0.5)
	assert.InDelta(t, 0, res.Pose.T.Y, 0.5)
	assert.InDelta(t, 0, res.Pose.T.Z, 0.5)
}

func TestProcessFrameWithNonIdentityOdomKeepsGroundCutInSensorFrame(t *testing.T) {
	// Regression: with a translated (non-identity) odometry pose, world and
	// sensor frames diverge, so a ground cut or dynamic-score denominator
	// that accidentally used world-frame coordinates would behave
	// differently here than under geom.Identity() odometry.
	m := newTestMapper()
	for _, p := range linePoints() {
		m.cmap.Insert(p)
	}
	for _, p := range planePoints() {
		m.cmap.Insert(p)
	}

	odom := geom.Pose{Q: geom.Identity().Q, T: r3.Vector{X: 3, Y: 1, Z: 0.5}}
	res, err := m.ProcessFrame(context.Background(), Aligned{
		Stamp:   time.Now(),
		Corner:  linePoints(),
		Surf:    planePoints(),
		FullRes: linePoints(),
		Odom:    odom,
	})
	require.NoError(t, err)
	assert.False(t, res.InsufficientMap)
	assert.Greater(t, m.cmap.PointCount(), 0)
}

func TestProcessFramePublishesSurroundCloudEveryFiveFrames(t *testing.T) {
	m := newTestMapper()
	for _, p := range linePoints() {
		m.cmap.Insert(p)
	}
	for _, p := range planePoints() {
		m.cmap.Insert(p)
	}

	var last FrameResult
	for i := 0; i < 5; i++ {
		res, err := m.ProcessFrame(context.Background(), Aligned{
			Stamp:   time.Now(),
			Corner:  linePoints(),
			Surf:    planePoints(),
			FullRes: linePoints(),
			Odom:    geom.Identity(),
		})
		require.NoError(t, err)
		last = res
	}
	assert.NotEmpty(t, last.SurroundCloud)
}

func TestHighFrequencyPoseComposesCorrection(t *testing.T) {
	m := newTestMapper()
	odom := geom.Pose{Q: geom.Identity().Q, T: r3.Vector{X: 5, Y: 0, Z: 0}}
	pose := m.HighFrequencyPose(odom)
	assert.InDelta(t, 5, pose.T.X, 1e-9)
}

func TestStagingTryAlignDropsDesyncedFrame(t *testing.T) {
	s := NewStaging()
	base := time.Now()
	s.PushCorner(CornerMsg{Stamp: base})
	s.PushSurf(SurfMsg{Stamp: base.Add(50 * time.Millisecond)})
	s.PushFullRes(FullResMsg{Stamp: base})
	s.PushOdom(OdomMsg{Stamp: base})

	_, err := s.TryAlign()
	require.Error(t, err)
	_, desynced := err.(ErrDesync)
	assert.True(t, desynced)
}

func TestStagingTryAlignLeavesQueuesUntouchedOnDesync(t *testing.T) {
	s := NewStaging()
	base := time.Now()
	s.PushCorner(CornerMsg{Stamp: base})
	s.PushSurf(SurfMsg{Stamp: base.Add(50 * time.Millisecond)})
	s.PushFullRes(FullResMsg{Stamp: base})
	s.PushOdom(OdomMsg{Stamp: base})

	_, err := s.TryAlign()
	_, desynced := err.(ErrDesync)
	require.True(t, desynced)

	// Only the corner head may be consumed on a desync rejection; surf,
	// full, and odom must remain exactly as pushed for the next attempt.
	assert.Empty(t, s.corner)
	assert.Len(t, s.surf, 1)
	assert.Len(t, s.full, 1)
	assert.Len(t, s.odom, 1)

	// The kept surf head is used once a matching corner arrives; the full and
	// odom heads at base are now stale and are skipped in favour of fresh ones.
	s.PushCorner(CornerMsg{Stamp: base.Add(50 * time.Millisecond)})
	s.PushFullRes(FullResMsg{Stamp: base.Add(50 * time.Millisecond)})
	s.PushOdom(OdomMsg{Stamp: base.Add(50 * time.Millisecond)})
	aligned, err := s.TryAlign()
	require.NoError(t, err)
	assert.Equal(t, base.Add(50*time.Millisecond), aligned.Stamp)
}

func TestStagingTryAlignReturnsEmptyWhenQueueMissing(t *testing.T) {
	s := NewStaging()
	_, err := s.TryAlign()
	assert.Equal(t, ErrEmpty, err)
}
