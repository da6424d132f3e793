package lod

import (
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/lintang-b-s/songmap/pkg/datastructure"
)

var (
	ErrNoSongs = errors.New("no songs to place")
)

// NewSongPointManagerFromCoordinates places every coordinate, scaled by scale, on level 0. the bounding
// rectangle of cfg is replaced: it starts at the origin and ends one unit past the largest scaled coordinate.
func NewSongPointManagerFromCoordinates(coords []datastructure.PcaCoordinate, scale float64, cfg Config,
	log logr.Logger) (*SongPointManager, error) {
	if len(coords) == 0 {
		return nil, ErrNoSongs
	}
	if scale <= 0 {
		return nil, fmt.Errorf("%w: scale %v", ErrInvalidBounds, scale)
	}

	positions := make([]datastructure.Point, len(coords))
	maxX, maxY := 0.0, 0.0
	for i, c := range coords {
		positions[i] = c.Scaled(scale)
		maxX = max(maxX, positions[i].X)
		maxY = max(maxY, positions[i].Y)
	}

	cfg.X, cfg.Y = 0, 0
	cfg.Width, cfg.Height = maxX+1, maxY+1
	m, err := NewSongPointManager(cfg, log)
	if err != nil {
		return nil, err
	}

	for i, c := range coords {
		if err := m.Add(positions[i].X, positions[i].Y, c.ID); err != nil {
			return nil, err
		}
	}
	log.V(1).Info("songs placed", "count", len(coords), "width", cfg.Width, "height", cfg.Height)
	return m, nil
}
