// Package track implements a constant-velocity tracker over cluster
// centroids, with greedy nearest-centroid gated association. The Kalman-style
// predict step (state and covariance propagation) and the numerical guards
// follow the teacher pipeline's tracker. The correct step applies no Kalman
// gain: a matched track takes the observed centroid as its position and the
// displacement from its predicted position as its velocity, and its
// covariance is left as predicted. The association rule is simplified from the
// teacher's Hungarian optimal assignment to the greedy gated nearest
// neighbor the mapping spec calls for.
package track

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
)

// State is a track's lifecycle stage.
type State string

const (
	Tentative State = "tentative"
	Confirmed State = "confirmed"
	Deleted   State = "deleted"
)

const (
	confirmHits      = 3
	maxMisses        = 5
	maxCovarianceDia = 100.0
	maxVelocity      = 20.0 // m/s, generous bound for a person/vehicle cluster
)

// Config tunes the Kalman process noise and gating behavior.
type Config struct {
	ProcessNoisePos float64
	ProcessNoiseVel float64
	GateRadius      float64 // meters; association is rejected beyond this
	MaxPredictDt    float64
}

// DefaultConfig returns reasonable defaults for a street-scale LiDAR scene.
func DefaultConfig() Config {
	return Config{
		ProcessNoisePos: 0.05,
		ProcessNoiseVel: 0.5,
		GateRadius:      1.5,
		MaxPredictDt:    0.5,
	}
}

// Track is a single tracked object: position/velocity state and a 6x6
// row-major covariance, flattened the same way the teacher flattens its 4x4.
type Track struct {
	ID       string
	State    State
	Pos      r3.Vector
	Vel      r3.Vector
	P        [36]float64
	Hits     int
	Misses   int
	Age      int
}

func newTrack(pos r3.Vector) *Track {
	t := &Track{ID: uuid.NewString(), State: Tentative, Pos: pos}
	for i := 0; i < 6; i++ {
		t.P[i*6+i] = 10
	}
	return t
}

// Tracker owns the set of live tracks.
type Tracker struct {
	Config Config
	tracks map[string]*Track
}

// New returns an empty tracker.
func New(cfg Config) *Tracker {
	return &Tracker{Config: cfg, tracks: make(map[string]*Track)}
}

// Tracks returns all tracks, live and recently deleted, in no particular
// order; callers filter by State as needed.
func (t *Tracker) Tracks() []*Track {
	out := make([]*Track, 0, len(t.tracks))
	for _, tr := range t.tracks {
		out = append(out, tr)
	}
	return out
}

// Predict advances every track's state by dt using the constant-velocity
// model, growing its covariance and resetting any track whose state becomes
// non-finite.
func (t *Tracker) Predict(dt float64) {
	if dt > t.Config.MaxPredictDt {
		dt = t.Config.MaxPredictDt
	}
	if dt < 0 {
		dt = 0
	}
	for _, tr := range t.tracks {
		tr.Pos = tr.Pos.Add(tr.Vel.Mul(dt))
		tr.Age++

		// P' = F P F^T + Q, with F the 6x6 constant-velocity transition;
		// since F only couples position_i with velocity_i, the update
		// decomposes per-axis exactly as the teacher's 4x4 does per-plane.
		axisPredict(&tr.P, 0, dt)
		axisPredict(&tr.P, 2, dt)
		axisPredict(&tr.P, 4, dt)
		for i := 0; i < 6; i++ {
			idx := i * 6
			if i%2 == 0 {
				tr.P[idx+i] += t.Config.ProcessNoisePos * dt
			} else {
				tr.P[idx+i] += t.Config.ProcessNoiseVel * dt
			}
			if tr.P[idx+i] > maxCovarianceDia {
				tr.P[idx+i] = maxCovarianceDia
			}
		}
		if !isFinite(tr) {
			resetTrack(tr)
			continue
		}
		clampVelocity(tr)
	}
}

// axisPredict applies the 2x2 constant-velocity block (position/velocity for
// one axis) to the corresponding 2x2 sub-block of the 6x6 covariance.
func axisPredict(p *[36]float64, base int, dt float64) {
	// rows base (pos) and base+1 (vel); columns likewise.
	pp := p[base*6+base]
	pv := p[base*6+base+1]
	vp := p[(base+1)*6+base]
	vv := p[(base+1)*6+base+1]
	newPP := pp + dt*vp + dt*(pv+dt*vv)
	newPV := pv + dt*vv
	newVP := vp + dt*vv
	newVV := vv
	p[base*6+base] = newPP
	p[base*6+base+1] = newPV
	p[(base+1)*6+base] = newVP
	p[(base+1)*6+base+1] = newVV
}

func isFinite(tr *Track) bool {
	vals := []float64{tr.Pos.X, tr.Pos.Y, tr.Pos.Z, tr.Vel.X, tr.Vel.Y, tr.Vel.Z}
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	for _, v := range tr.P {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func resetTrack(tr *Track) {
	tr.Pos = r3.Vector{}
	tr.Vel = r3.Vector{}
	tr.P = [36]float64{}
	for i := 0; i < 6; i++ {
		tr.P[i*6+i] = 10
	}
	tr.State = Deleted
}

func clampVelocity(tr *Track) {
	n := tr.Vel.Norm()
	if n > maxVelocity {
		tr.Vel = tr.Vel.Mul(maxVelocity / n)
	}
}

// Observation is a cluster centroid to associate against existing tracks.
type Observation struct {
	Centroid r3.Vector
}

// Association pairs an observation index with the track it was matched to.
type Association struct {
	TrackIndex int
	ObsIndex   int
}

// Correct associates obs to the current track set by greedy nearest-centroid
// matching gated at Config.GateRadius, updates matched tracks' state and
// velocity from the observed displacement, spawns a new tentative track for
// every unmatched observation, and ages out (marks Deleted) any track that
// missed too many times. It returns the accepted associations indexed into
// both the returned track slice and obs.
func (t *Tracker) Correct(obs []Observation) ([]*Track, []Association) {
	tracks := t.Tracks()
	matchedTrack := make([]bool, len(tracks))
	matchedObs := make([]bool, len(obs))
	var assoc []Association

	type candidate struct {
		ti, oi int
		dist   float64
	}
	var candidates []candidate
	for ti, tr := range tracks {
		if tr.State == Deleted {
			continue
		}
		for oi, o := range obs {
			d := tr.Pos.Sub(o.Centroid).Norm()
			if d <= t.Config.GateRadius {
				candidates = append(candidates, candidate{ti, oi, d})
			}
		}
	}
	// Greedy: repeatedly take the globally closest remaining pair.
	for {
		best := -1
		bestDist := math.Inf(1)
		for i, c := range candidates {
			if matchedTrack[c.ti] || matchedObs[c.oi] {
				continue
			}
			if c.dist < bestDist {
				bestDist = c.dist
				best = i
			}
		}
		if best < 0 {
			break
		}
		c := candidates[best]
		matchedTrack[c.ti] = true
		matchedObs[c.oi] = true
		assoc = append(assoc, Association{TrackIndex: c.ti, ObsIndex: c.oi})

		tr := tracks[c.ti]
		displacement := obs[c.oi].Centroid.Sub(tr.Pos)
		tr.Vel = displacement
		tr.Pos = obs[c.oi].Centroid
		tr.Hits++
		tr.Misses = 0
		if tr.Hits >= confirmHits {
			tr.State = Confirmed
		}
	}

	for ti, tr := range tracks {
		if tr.State == Deleted {
			continue
		}
		if !matchedTrack[ti] {
			tr.Misses++
			if tr.Misses > maxMisses {
				tr.State = Deleted
				delete(t.tracks, tr.ID)
			}
		}
	}

	for oi, o := range obs {
		if !matchedObs[oi] {
			nt := newTrack(o.Centroid)
			t.tracks[nt.ID] = nt
		}
	}

	return tracks, assoc
}

// Reset clears all tracks.
func (t *Tracker) Reset() {
	t.tracks = make(map[string]*Track)
}
