// Package dynamics implements the adaptive-threshold dynamic-object
// classification and box-removal filter described by the mapping spec: a
// cluster is declared dynamic when its tracker speed or its LOAM
// neighbor-displacement score exceeds a threshold that itself adapts every
// frame from the running population of observed speeds/displacements,
// mirroring the original pipeline's unconditional per-frame halving.
package dynamics

import (
	"github.com/golang/geo/r3"

	"github.com/TYEclipse/AD-LOAM/internal/accum"
	"github.com/TYEclipse/AD-LOAM/internal/cluster"
	"github.com/TYEclipse/AD-LOAM/internal/featcloud"
)

// Thresholds tracks the two adaptive dynamic-object thresholds plus the
// accumulators they are derived from.
type Thresholds struct {
	trackerSpeed  *accum.Accumulator
	objectSpeed   *accum.Accumulator
	MaxObjectSpeed float64
	MaxClassDist   float64
}

// NewThresholds returns a threshold tracker seeded with the original
// pipeline's startup means: tarckerSpeedMean begins at 0.2 and
// objectSpeedMean begins at 0.3, so the first few frames classify against
// those means rather than zero.
func NewThresholds() *Thresholds {
	th := &Thresholds{trackerSpeed: accum.New(), objectSpeed: accum.New()}
	th.trackerSpeed.Add(0.2)
	th.objectSpeed.Add(0.3)
	return th
}

// Observe folds one association's tracker speed and displacement score into
// the running accumulators.
func (th *Thresholds) Observe(trackerSpeed, displacementScore float64) {
	th.trackerSpeed.Add(trackerSpeed)
	th.objectSpeed.Add(displacementScore)
}

// Update recomputes MaxObjectSpeed/MaxClassDist from the accumulators,
// halving the running means per the original's low-pass design.
func (th *Thresholds) Update() {
	th.MaxObjectSpeed = th.trackerSpeed.Mean() / 2
	th.MaxClassDist = th.objectSpeed.Mean() / 2
}

// ClusterScore is one cluster's tracker-derived speed and LOAM-derived
// displacement score, computed by the caller from the tracker association
// and the residual-assembly neighbor displacements respectively.
type ClusterScore struct {
	Cluster           cluster.Cluster
	TrackerSpeed      float64
	DisplacementScore float64
}

// IsDynamic reports whether a cluster's speed or displacement score exceeds
// the current adaptive thresholds.
func (th *Thresholds) IsDynamic(cs ClusterScore) bool {
	return cs.TrackerSpeed > th.MaxObjectSpeed || cs.DisplacementScore > th.MaxClassDist
}

// Box is an axis-aligned exclusion box, expanded from a cluster's bounding
// box by a uniform margin on every face.
type Box struct {
	Min, Max r3.Vector
}

// ExpandedBox builds the removal box for a dynamic cluster: its world-frame
// AABB expanded by margin on every face, per the spec's ground-stddev
// expansion rule.
func ExpandedBox(c cluster.Cluster, margin float64) Box {
	m := r3.Vector{X: margin, Y: margin, Z: margin}
	return Box{Min: c.Min.Sub(m), Max: c.Max.Add(m)}
}

// Contains reports whether p falls inside b.
func (b Box) Contains(p r3.Vector) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Remove filters stack, keeping only points outside every box in boxes. The
// disjunction-of-coordinate-outsides form matches the original's
// pcl::ConditionalRemoval filter: a point survives iff, for every box, at
// least one coordinate lies outside that box's range.
func Remove(stack featcloud.Cloud, boxes []Box) (kept, removed featcloud.Cloud) {
	if len(boxes) == 0 {
		return append(featcloud.Cloud(nil), stack...), nil
	}
	for _, p := range stack {
		inAny := false
		for _, b := range boxes {
			if b.Contains(p.Pos) {
				inAny = true
				break
			}
		}
		if inAny {
			removed = append(removed, p)
		} else {
			kept = append(kept, p)
		}
	}
	return kept, removed
}
