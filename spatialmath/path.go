package spatialmath

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/floats"
)

// Path is an ordered sequence of waypoints. Its length is computed once when it is built and it
// is never modified afterwards.
type Path struct {
	points []r2.Point
	// cumulative[i] is the distance travelled along the path when reaching points[i].
	cumulative  []float64
	totalLength float64
}

// NewPath builds a Path over a copy of the given waypoints.
func NewPath(points []r2.Point) *Path {
	p := &Path{points: append([]r2.Point(nil), points...)}
	if len(p.points) == 0 {
		return p
	}
	segments := make([]float64, len(p.points))
	for i := 1; i < len(p.points); i++ {
		segments[i] = Distance(p.points[i-1], p.points[i])
	}
	p.cumulative = floats.CumSum(make([]float64, len(segments)), segments)
	p.totalLength = p.cumulative[len(p.cumulative)-1]
	return p
}

// Points returns a copy of the waypoints.
func (p *Path) Points() []r2.Point {
	return append([]r2.Point(nil), p.points...)
}

// Len returns the number of waypoints.
func (p *Path) Len() int {
	return len(p.points)
}

// Point returns the i-th waypoint.
func (p *Path) Point(i int) r2.Point {
	return p.points[i]
}

// Start returns the first waypoint, or the origin for an empty path.
func (p *Path) Start() r2.Point {
	if len(p.points) == 0 {
		return r2.Point{}
	}
	return p.points[0]
}

// End returns the last waypoint, or the origin for an empty path.
func (p *Path) End() r2.Point {
	if len(p.points) == 0 {
		return r2.Point{}
	}
	return p.points[len(p.points)-1]
}

// TotalLength returns the sum of the distances between consecutive waypoints.
func (p *Path) TotalLength() float64 {
	return p.totalLength
}

// SegmentLength returns the length of the segment between waypoints i and i+1.
func (p *Path) SegmentLength(i int) float64 {
	return p.cumulative[i+1] - p.cumulative[i]
}

// DistanceAt returns the distance travelled along the path when reaching waypoint i.
func (p *Path) DistanceAt(i int) float64 {
	return p.cumulative[i]
}

// IsDegenerate is true when the path cannot be travelled: fewer than two waypoints or zero length.
func (p *Path) IsDegenerate() bool {
	return len(p.points) < 2 || p.totalLength <= 0
}

// segmentAt returns the index i of the segment (points[i], points[i+1]) that contains distance d,
// for 0 < d < TotalLength.
func (p *Path) segmentAt(d float64) int {
	// first index whose cumulative distance is >= d; the segment before it has non-zero length
	j := sort.SearchFloat64s(p.cumulative, d)
	if j <= 0 {
		return 0
	}
	if j >= len(p.points) {
		return len(p.points) - 2
	}
	return j - 1
}

// PointAtDistance returns the point reached after travelling d along the path. Distances are
// clamped to [0, TotalLength].
func (p *Path) PointAtDistance(d float64) r2.Point {
	if len(p.points) == 0 {
		return r2.Point{}
	}
	if d <= 0 {
		return p.points[0]
	}
	if d >= p.totalLength {
		return p.points[len(p.points)-1]
	}
	i := p.segmentAt(d)
	segLen := p.SegmentLength(i)
	if segLen <= 0 {
		return p.points[i+1]
	}
	return Lerp(p.points[i], p.points[i+1], (d-p.cumulative[i])/segLen)
}

// DirectionAtDistance returns the heading, in radians, of the segment containing d.
// The first and last non-degenerate segments are used outside of (0, TotalLength).
func (p *Path) DirectionAtDistance(d float64) float64 {
	if len(p.points) < 2 {
		return 0
	}
	var i int
	switch {
	case d <= 0:
		i = p.firstSegment()
	case d >= p.totalLength:
		i = p.lastSegment()
	default:
		i = p.segmentAt(d)
	}
	return Heading(p.points[i], p.points[i+1])
}

func (p *Path) firstSegment() int {
	for i := 0; i < len(p.points)-1; i++ {
		if p.SegmentLength(i) > 0 {
			return i
		}
	}
	return 0
}

func (p *Path) lastSegment() int {
	for i := len(p.points) - 2; i >= 0; i-- {
		if p.SegmentLength(i) > 0 {
			return i
		}
	}
	return len(p.points) - 2
}

// MaxSegmentLength returns the length of the longest segment, 0 for paths with fewer than two points.
func (p *Path) MaxSegmentLength() float64 {
	longest := 0.
	for i := 0; i < len(p.points)-1; i++ {
		longest = math.Max(longest, p.SegmentLength(i))
	}
	return longest
}

func (p *Path) String() string {
	var sb strings.Builder
	sb.WriteString("Path[")
	for i, pt := range p.points {
		if i > 0 {
			sb.WriteString(" ")
		}
		fmt.Fprintf(&sb, "(%.2f, %.2f)", pt.X, pt.Y)
	}
	fmt.Fprintf(&sb, "] length=%.3f", p.totalLength)
	return sb.String()
}
