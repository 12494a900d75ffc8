// Package config defines the mapper's tunable parameters as a JSON-tagged,
// pointer-field struct in the same style as the teacher pipeline's
// TuningConfig: every field is optional so a partial JSON document can
// override just the defaults the caller cares about, and Validate enforces
// the "out-of-range configuration is fatal at startup" policy.
package config

import "fmt"

// Params holds the recognized configuration options from the mapping
// spec's external-interfaces section.
type Params struct {
	MappingLineResolution  *float64 `json:"mapping_line_resolution,omitempty"`
	MappingPlaneResolution *float64 `json:"mapping_plane_resolution,omitempty"`
	MaxObjectSpeed         *float64 `json:"max_object_speed,omitempty"`
	MaxClassDist           *float64 `json:"max_class_dist,omitempty"`
	ClusterMinPts          *int     `json:"cluster_min_pts,omitempty"`
	ClusterMaxPts          *int     `json:"cluster_max_pts,omitempty"`
	ClusterMinSize         *float64 `json:"cluster_min_size,omitempty"`
	ClusterMaxSize         *float64 `json:"cluster_max_size,omitempty"`
	ClusterTolerance       *float64 `json:"cluster_tolerance,omitempty"`
	ClusterLambda          *float64 `json:"cluster_lambda,omitempty"`
	AutoMapping            *bool    `json:"auto_mapping,omitempty"`
	AutoMappingTime        *float64 `json:"auto_mapping_time,omitempty"`
	// AutoClusterNumber is parsed but, matching the original source, never
	// read by any clustering code path.
	AutoClusterNumber *int     `json:"auto_cluster_number,omitempty"`
	RemoveEnable      *bool    `json:"remove_enable,omitempty"`
	LidarMinZ         *float64 `json:"lidar_min_z,omitempty"`
	LidarMaxZ         *float64 `json:"lidar_max_z,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrBool(v bool) *bool          { return &v }

// Defaults returns the production-default parameter set.
func Defaults() *Params {
	return &Params{
		MappingLineResolution:  ptrFloat64(0.4),
		MappingPlaneResolution: ptrFloat64(0.8),
		MaxObjectSpeed:         ptrFloat64(0),
		MaxClassDist:           ptrFloat64(0),
		ClusterMinPts:          ptrInt(10),
		ClusterMaxPts:          ptrInt(5000),
		ClusterMinSize:         ptrFloat64(0.2),
		ClusterMaxSize:         ptrFloat64(5.0),
		ClusterTolerance:       ptrFloat64(2 * (0.4 + 0.8)),
		ClusterLambda:          ptrFloat64(4 * (0.4 + 0.8)),
		AutoMapping:            ptrBool(true),
		AutoMappingTime:        ptrFloat64(100),
		AutoClusterNumber:      ptrInt(0),
		RemoveEnable:           ptrBool(true),
		LidarMinZ:              ptrFloat64(-1.5),
		LidarMaxZ:              ptrFloat64(3.0),
	}
}

// Resolved is the fully materialized, non-pointer form of Params used by
// the rest of the pipeline once defaults have been merged in.
type Resolved struct {
	LineResolution   float64
	PlaneResolution  float64
	MaxObjectSpeed   float64
	MaxClassDist     float64
	ClusterMinPts    int
	ClusterMaxPts    int
	ClusterMinSize   float64
	ClusterMaxSize   float64
	ClusterTolerance float64
	ClusterLambda    float64
	AutoMapping      bool
	AutoMappingTime  float64
	RemoveEnable     bool
	LidarMinZ        float64
	LidarMaxZ        float64
}

// Resolve merges p over Defaults() and returns the fully materialized form.
func Resolve(p *Params) Resolved {
	d := Defaults()
	merged := *d
	if p != nil {
		overlay(&merged, p)
	}
	return Resolved{
		LineResolution:   *merged.MappingLineResolution,
		PlaneResolution:  *merged.MappingPlaneResolution,
		MaxObjectSpeed:   *merged.MaxObjectSpeed,
		MaxClassDist:     *merged.MaxClassDist,
		ClusterMinPts:    *merged.ClusterMinPts,
		ClusterMaxPts:    *merged.ClusterMaxPts,
		ClusterMinSize:   *merged.ClusterMinSize,
		ClusterMaxSize:   *merged.ClusterMaxSize,
		ClusterTolerance: *merged.ClusterTolerance,
		ClusterLambda:    *merged.ClusterLambda,
		AutoMapping:      *merged.AutoMapping,
		AutoMappingTime:  *merged.AutoMappingTime,
		RemoveEnable:     *merged.RemoveEnable,
		LidarMinZ:        *merged.LidarMinZ,
		LidarMaxZ:        *merged.LidarMaxZ,
	}
}

func overlay(dst, src *Params) {
	if src.MappingLineResolution != nil {
		dst.MappingLineResolution = src.MappingLineResolution
	}
	if src.MappingPlaneResolution != nil {
		dst.MappingPlaneResolution = src.MappingPlaneResolution
	}
	if src.MaxObjectSpeed != nil {
		dst.MaxObjectSpeed = src.MaxObjectSpeed
	}
	if src.MaxClassDist != nil {
		dst.MaxClassDist = src.MaxClassDist
	}
	if src.ClusterMinPts != nil {
		dst.ClusterMinPts = src.ClusterMinPts
	}
	if src.ClusterMaxPts != nil {
		dst.ClusterMaxPts = src.ClusterMaxPts
	}
	if src.ClusterMinSize != nil {
		dst.ClusterMinSize = src.ClusterMinSize
	}
	if src.ClusterMaxSize != nil {
		dst.ClusterMaxSize = src.ClusterMaxSize
	}
	if src.ClusterTolerance != nil {
		dst.ClusterTolerance = src.ClusterTolerance
	}
	if src.ClusterLambda != nil {
		dst.ClusterLambda = src.ClusterLambda
	}
	if src.AutoMapping != nil {
		dst.AutoMapping = src.AutoMapping
	}
	if src.AutoMappingTime != nil {
		dst.AutoMappingTime = src.AutoMappingTime
	}
	if src.AutoClusterNumber != nil {
		dst.AutoClusterNumber = src.AutoClusterNumber
	}
	if src.RemoveEnable != nil {
		dst.RemoveEnable = src.RemoveEnable
	}
	if src.LidarMinZ != nil {
		dst.LidarMinZ = src.LidarMinZ
	}
	if src.LidarMaxZ != nil {
		dst.LidarMaxZ = src.LidarMaxZ
	}
}

// Validate enforces range checks on the resolved parameters. A misconfigured
// resolution or inverted z-band is treated as fatal at startup, per the
// spec's error-handling policy.
func (r Resolved) Validate() error {
	if r.LineResolution <= 0 {
		return fmt.Errorf("mapping_line_resolution must be positive, got %v", r.LineResolution)
	}
	if r.PlaneResolution <= 0 {
		return fmt.Errorf("mapping_plane_resolution must be positive, got %v", r.PlaneResolution)
	}
	if r.ClusterMinPts < 0 || (r.ClusterMaxPts > 0 && r.ClusterMinPts > r.ClusterMaxPts) {
		return fmt.Errorf("cluster_min_pts/cluster_max_pts out of range: %v/%v", r.ClusterMinPts, r.ClusterMaxPts)
	}
	if r.ClusterMinSize < 0 || (r.ClusterMaxSize > 0 && r.ClusterMinSize > r.ClusterMaxSize) {
		return fmt.Errorf("cluster_min_size/cluster_max_size out of range: %v/%v", r.ClusterMinSize, r.ClusterMaxSize)
	}
	if r.ClusterTolerance <= 0 {
		return fmt.Errorf("cluster_tolerance must be positive, got %v", r.ClusterTolerance)
	}
	if r.LidarMinZ >= r.LidarMaxZ {
		return fmt.Errorf("lidar_min_z must be less than lidar_max_z: %v >= %v", r.LidarMinZ, r.LidarMaxZ)
	}
	if r.AutoMappingTime <= 0 {
		return fmt.Errorf("auto_mapping_time must be positive, got %v", r.AutoMappingTime)
	}
	return nil
}
