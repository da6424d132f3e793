package snap

import (
	"github.com/lintang-b-s/songmap/pkg/datastructure"
)

// PointIndex returns the nearest visible point of the level that is currently shown.
type PointIndex interface {
	Nearest(x, y, radius float64) (datastructure.SongPoint, bool)
}

type PointSnapper struct {
	index  PointIndex
	radius float64
}

const (
	// number of times the radius is widened when nothing was found
	maxRetries = 2
	// radius growth per retry
	radiusGrowth = 1.5
)

func NewPointSnapper(index PointIndex, radius float64) *PointSnapper {
	return &PointSnapper{index: index, radius: radius}
}

func (ps *PointSnapper) Radius() float64 {
	return ps.radius
}

// Snap returns the point closest to the pointer position p. the search radius is widened
// twice before giving up.
func (ps *PointSnapper) Snap(p datastructure.Point) (datastructure.SongPoint, bool) {
	radius := ps.radius
	nearest, ok := ps.index.Nearest(p.X, p.Y, radius)

	counter := 0
	for counter < maxRetries && !ok {
		radius *= radiusGrowth
		counter++
		nearest, ok = ps.index.Nearest(p.X, p.Y, radius)
	}

	return nearest, ok
}

// SnapWithinRadius returns the point closest to p strictly within radius, without retries.
func (ps *PointSnapper) SnapWithinRadius(p datastructure.Point, radius float64) (datastructure.SongPoint, bool) {
	return ps.index.Nearest(p.X, p.Y, radius)
}
