package mapper

import (
	"sync"
	"time"

	"github.com/TYEclipse/AD-LOAM/internal/featcloud"
	"github.com/TYEclipse/AD-LOAM/internal/geom"
)

// CornerMsg, SurfMsg, FullResMsg, and OdomMsg are the four staged input
// message types, each timestamped independently as they arrive from their
// own producer callback.
type CornerMsg struct {
	Stamp time.Time
	Cloud featcloud.Cloud
}

type SurfMsg struct {
	Stamp time.Time
	Cloud featcloud.Cloud
}

type FullResMsg struct {
	Stamp time.Time
	Cloud featcloud.Cloud
}

type OdomMsg struct {
	Stamp time.Time
	Pose  geom.Pose
}

// maxDesyncMs is the maximum pairwise timestamp disagreement tolerated
// between the four aligned queue heads before a frame is dropped.
const maxDesyncMs = 10

// Staging holds the four single-producer queues the mapper drains from,
// guarded by one mutex, matching the spec's single-consumer staging
// contract. Producers only ever push; the mapper loop pops under the lock.
// The queues have no length cap: TryAlign trims the corner backlog to its
// newest message, and the surf/full/odom queues shed stale heads only when
// a frame is accepted.
type Staging struct {
	mu     sync.Mutex
	corner []CornerMsg
	surf   []SurfMsg
	full   []FullResMsg
	odom   []OdomMsg
}

// NewStaging returns an empty staging area.
func NewStaging() *Staging {
	return &Staging{}
}

// PushCorner enqueues a corner-feature message. Safe for concurrent callers.
func (s *Staging) PushCorner(m CornerMsg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corner = append(s.corner, m)
}

// PushSurf enqueues a surface-feature message.
func (s *Staging) PushSurf(m SurfMsg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.surf = append(s.surf, m)
}

// PushFullRes enqueues a full-resolution-cloud message.
func (s *Staging) PushFullRes(m FullResMsg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.full = append(s.full, m)
}

// PushOdom enqueues an odometry message.
func (s *Staging) PushOdom(m OdomMsg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.odom = append(s.odom, m)
}

// Aligned is one time-synchronized set of inputs ready for a mapping frame.
type Aligned struct {
	Stamp   time.Time
	Corner  featcloud.Cloud
	Surf    featcloud.Cloud
	FullRes featcloud.Cloud
	Odom    geom.Pose
}

// ErrEmpty is returned by TryAlign when any queue has no message to offer.
var ErrEmpty = errEmpty{}

type errEmpty struct{}

func (errEmpty) Error() string { return "staging: a queue is empty" }

// ErrDesync is returned when the aligned heads disagree by more than
// maxDesyncMs; the corner message is consumed regardless so the caller does
// not spin on the same stale head forever.
type ErrDesync struct {
	MaxSkewMs float64
}

func (e ErrDesync) Error() string { return "staging: timestamps desynchronized" }

// TryAlign pops the oldest corner message and discards any surf/full/odom
// heads strictly older than it, trading latency for recency: at most one
// in-flight corner message is ever processed, and everything else is
// resynchronized to it, per the spec's time-alignment contract.
func (s *Staging) TryAlign() (Aligned, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.corner) == 0 || len(s.surf) == 0 || len(s.full) == 0 || len(s.odom) == 0 {
		return Aligned{}, ErrEmpty
	}

	corner := s.corner[0]
	s.corner = s.corner[1:]
	// Drop any stale corner backlog: only the most recent matters.
	if len(s.corner) > 0 {
		s.corner = s.corner[len(s.corner)-1:]
	}

	surfRest, surf, ok := peekStale(s.surf, corner.Stamp, func(m SurfMsg) time.Time { return m.Stamp })
	if !ok {
		return Aligned{}, ErrEmpty
	}
	fullRest, full, ok := peekStale(s.full, corner.Stamp, func(m FullResMsg) time.Time { return m.Stamp })
	if !ok {
		return Aligned{}, ErrEmpty
	}
	odomRest, odom, ok := peekStale(s.odom, corner.Stamp, func(m OdomMsg) time.Time { return m.Stamp })
	if !ok {
		return Aligned{}, ErrEmpty
	}

	maxSkew := skewMs(corner.Stamp, surf.Stamp, full.Stamp, odom.Stamp)
	if maxSkew > maxDesyncMs {
		// Only the corner head (already consumed above) is dropped on a
		// desync rejection; surf, full, and odom — including any stale
		// heads peeked above — stay queued untouched for the next attempt.
		return Aligned{}, ErrDesync{MaxSkewMs: maxSkew}
	}

	s.surf = surfRest
	s.full = fullRest
	s.odom = odomRest

	return Aligned{
		Stamp:   corner.Stamp,
		Corner:  corner.Cloud,
		Surf:    surf.Cloud,
		FullRes: full.Cloud,
		Odom:    odom.Pose,
	}, nil
}

// peekStale returns the queue with stale entries (older than ref) and the
// head dropped, along with that head, without mutating queue itself —
// callers only commit the result once the aligned frame is accepted.
func peekStale[T any](queue []T, ref time.Time, stampOf func(T) time.Time) (rest []T, head T, ok bool) {
	q := queue
	for len(q) > 0 && stampOf(q[0]).Before(ref) {
		q = q[1:]
	}
	if len(q) == 0 {
		var zero T
		return queue, zero, false
	}
	return q[1:], q[0], true
}

func skewMs(stamps ...time.Time) float64 {
	min, max := stamps[0], stamps[0]
	for _, s := range stamps[1:] {
		if s.Before(min) {
			min = s
		}
		if s.After(max) {
			max = s
		}
	}
	return float64(max.Sub(min).Microseconds()) / 1000.0
}
