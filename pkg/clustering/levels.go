package clustering

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-logr/logr"
	"github.com/lintang-b-s/songmap/pkg/datastructure"
)

const (
	// DefaultMinPoints level construction stops once a level holds fewer points.
	DefaultMinPoints = 2
	// DefaultSearchRadius on a canvas of 30000x30000.
	DefaultSearchRadius = 1000.0
)

var (
	ErrInvalidSearchRadius = errors.New("search radius must be a positive number")
	ErrInvalidMinPoints    = errors.New("min points must be at least 1")
	ErrInvalidMaxLevels    = errors.New("max levels must not be negative")
)

type Options struct {
	SearchRadius float64
	MinPoints    int
	// MaxLevels caps the number of levels built on top of level 0. 0 means no cap.
	MaxLevels int
	Strategy  Strategy
}

func DefaultOptions() Options {
	return Options{
		SearchRadius: DefaultSearchRadius,
		MinPoints:    DefaultMinPoints,
		Strategy:     Greedy,
	}
}

func (o Options) Validate() error {
	if math.IsNaN(o.SearchRadius) || o.SearchRadius <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidSearchRadius, o.SearchRadius)
	}
	if o.MinPoints < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidMinPoints, o.MinPoints)
	}
	if o.MaxLevels < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxLevels, o.MaxLevels)
	}
	return nil
}

/*
BuildLevels returns the level ladder for base: index 0 is base itself and every next level is
one clustering pass over the previous one. construction stops when a level holds fewer than
MinPoints points, when MaxLevels levels were built, or when a pass merged nothing (every
point was too far from any other). a pass without progress is not appended and its merges
are undone, so the points of the top level have no parent.
*/
func BuildLevels[T datastructure.Storable[T]](base *datastructure.QuadTree[T], opts Options, log logr.Logger) ([]*datastructure.QuadTree[T], error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	levels := []*datastructure.QuadTree[T]{base}
	if base.Count() < opts.MinPoints {
		log.V(1).Info("not enough points to cluster", "count", base.Count(), "minPoints", opts.MinPoints)
		return levels, nil
	}

	prev := base
	for opts.MaxLevels == 0 || len(levels)-1 < opts.MaxLevels {
		next := Pass(prev, opts.Strategy, opts.SearchRadius)
		if next.Count() == prev.Count() {
			discard(next)
			log.Info("clustering pass merged nothing, stopping", "level", len(levels), "count", next.Count(),
				"searchRadius", opts.SearchRadius)
			break
		}

		levels = append(levels, next)
		log.V(1).Info("built level", "level", len(levels)-1, "count", next.Count())
		if next.Count() < opts.MinPoints {
			break
		}
		prev = next
	}

	log.Info("level construction done", "levels", len(levels), "strategy", opts.Strategy.String(),
		"took", time.Since(start).String())
	return levels, nil
}

type unmerger interface {
	Unmerge()
}

// discard undoes the merges of a pass that is thrown away, newest point first.
func discard[T datastructure.Storable[T]](level *datastructure.QuadTree[T]) {
	items := level.All()
	for i := len(items) - 1; i >= 0; i-- {
		if u, ok := any(items[i]).(unmerger); ok {
			u.Unmerge()
		}
	}
	level.Clear()
}
