// Package persist implements the flat-file trajectory and timing sinks the
// spec requires: one line per frame, no header, no chunking. This is a
// deliberate simplification of the teacher's chunked binary recorder
// (internal/lidar/recorder) to the line-per-frame text format the spec's
// external-interfaces section calls for; the teacher's locking and
// once-per-process-lifetime file-handle discipline is kept.
package persist

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"github.com/TYEclipse/AD-LOAM/internal/geom"
)

// TrajectoryWriter appends one KITTI-style 12-double line per frame to an
// underlying writer, applying the spec's output-axis permutation
// (t' = (-t_y,-t_z,t_x), q' = (w,-q_y,-q_z,q_x)) without touching the
// pipeline's own native-axis math.
type TrajectoryWriter struct {
	mu sync.Mutex
	w  *bufio.Writer
	c  io.Closer
}

// NewTrajectoryWriter opens path for appending; callers must call Close
// when done to flush buffered output.
func NewTrajectoryWriter(path string) (*TrajectoryWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trajectory file: %w", err)
	}
	return &TrajectoryWriter{w: bufio.NewWriter(f), c: f}, nil
}

// WriteFrame writes one frame's re-axed pose as a 3x4 row-major matrix.
func (t *TrajectoryWriter) WriteFrame(p geom.Pose) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rq := quat.Number{Real: p.Q.Real, Imag: -p.Q.Jmag, Jmag: -p.Q.Kmag, Kmag: p.Q.Imag}
	rt := r3.Vector{X: -p.T.Y, Y: -p.T.Z, Z: p.T.X}
	rot := quatToRotationMatrix(rq)

	_, err := fmt.Fprintf(t.w,
		"%g %g %g %g %g %g %g %g %g %g %g %g\n",
		rot[0], rot[1], rot[2], rt.X,
		rot[3], rot[4], rot[5], rt.Y,
		rot[6], rot[7], rot[8], rt.Z,
	)
	if err != nil {
		return fmt.Errorf("write trajectory frame: %w", err)
	}
	return t.w.Flush()
}

// Close flushes and closes the underlying file.
func (t *TrajectoryWriter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.w.Flush(); err != nil {
		return err
	}
	return t.c.Close()
}

func quatToRotationMatrix(q quat.Number) [9]float64 {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return [9]float64{
		1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w),
		2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w),
		2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y),
	}
}

// TimingWriter appends one line per frame with the measured removal-stage
// time in milliseconds.
type TimingWriter struct {
	mu sync.Mutex
	w  *bufio.Writer
	c  io.Closer
}

// NewTimingWriter opens path for appending.
func NewTimingWriter(path string) (*TimingWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open timing file: %w", err)
	}
	return &TimingWriter{w: bufio.NewWriter(f), c: f}, nil
}

// WriteMillis records one frame's removal-stage duration.
func (t *TimingWriter) WriteMillis(ms float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := fmt.Fprintf(t.w, "%g\n", ms); err != nil {
		return fmt.Errorf("write timing frame: %w", err)
	}
	return t.w.Flush()
}

// Close flushes and closes the underlying file.
func (t *TimingWriter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.w.Flush(); err != nil {
		return err
	}
	return t.c.Close()
}
