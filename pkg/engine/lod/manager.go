package lod

import (
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/lintang-b-s/songmap/pkg/clustering"
	"github.com/lintang-b-s/songmap/pkg/datastructure"
	"github.com/lintang-b-s/songmap/pkg/util"
)

var (
	ErrDuplicateID      = errors.New("song id already added")
	ErrAlreadyClustered = errors.New("levels are already built")
	ErrNotClustered     = errors.New("levels are not built yet")
	ErrInvalidBounds    = errors.New("bounding rectangle must have a positive width and height")
)

const (
	DefaultCanvasSize = 30000.0
)

type Config struct {
	// bounding rectangle of level 0
	X, Y, Width, Height float64

	SearchRadius float64
	MinPoints    int
	MaxLevels    int
	Strategy     clustering.Strategy
}

func DefaultConfig() Config {
	return Config{
		Width:        DefaultCanvasSize,
		Height:       DefaultCanvasSize,
		SearchRadius: clustering.DefaultSearchRadius,
		MinPoints:    clustering.DefaultMinPoints,
		Strategy:     clustering.Greedy,
	}
}

func (c Config) clusteringOptions() clustering.Options {
	return clustering.Options{
		SearchRadius: c.SearchRadius,
		MinPoints:    c.MinPoints,
		MaxLevels:    c.MaxLevels,
		Strategy:     c.Strategy,
	}
}

type SongTree = datastructure.QuadTree[datastructure.SongPoint]

/*
SongPointManager owns the level ladder. level 0 holds one leaf point per song, every level above
is one clustering pass over the level below. songs are added first, Cluster builds the ladder
once and afterwards only the flags of the points change.

selection, removal and visibility are always changed through the top level points, the merge
trees propagate them down to every song.
*/
type SongPointManager struct {
	config Config
	forest *datastructure.SongForest
	levels []*SongTree
	points map[int]datastructure.SongPoint

	level     int
	clustered bool

	log logr.Logger
}

func NewSongPointManager(config Config, log logr.Logger) (*SongPointManager, error) {
	if config.Width <= 0 || config.Height <= 0 {
		return nil, fmt.Errorf("%w: %vx%v", ErrInvalidBounds, config.Width, config.Height)
	}
	if err := config.clusteringOptions().Validate(); err != nil {
		return nil, err
	}

	base := datastructure.NewQuadTreeFromDimensions[datastructure.SongPoint](config.X, config.Y,
		config.Width, config.Height, log.WithName("quadtree"))
	return &SongPointManager{
		config: config,
		forest: datastructure.NewSongForest(),
		levels: []*SongTree{base},
		points: make(map[int]datastructure.SongPoint),
		log:    log,
	}, nil
}

func (m *SongPointManager) Config() Config {
	return m.config
}

func (m *SongPointManager) Bounds() datastructure.Rectangle {
	return m.levels[0].Rectangle()
}

// Add adds a song at (x, y) to level 0.
func (m *SongPointManager) Add(x, y float64, id int) error {
	if m.clustered {
		return ErrAlreadyClustered
	}
	if _, ok := m.points[id]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateID, id)
	}

	p := m.forest.NewPoint(x, y, id)
	m.levels[0].Add(p)
	m.points[id] = p
	return nil
}

// Cluster builds every level above level 0. it can only run once.
func (m *SongPointManager) Cluster() error {
	if m.clustered {
		return ErrAlreadyClustered
	}

	m.log.Info("clustering started", "points", m.levels[0].Count(), "strategy", m.config.Strategy.String())
	levels, err := clustering.BuildLevels(m.levels[0], m.config.clusteringOptions(), m.log.WithName("clustering"))
	if err != nil {
		return fmt.Errorf("build levels: %w", err)
	}

	m.levels = levels
	m.clustered = true
	m.level = 0
	m.log.Info("clustering done", "maxLevel", m.MaxLevel(), "topCount", m.top().Count())
	return nil
}

func (m *SongPointManager) IsClustered() bool {
	return m.clustered
}

// Len number of songs.
func (m *SongPointManager) Len() int {
	return len(m.points)
}

func (m *SongPointManager) MaxLevel() int {
	return len(m.levels) - 1
}

func (m *SongPointManager) Level() int {
	return m.level
}

func (m *SongPointManager) IsMaxLevel() bool {
	return m.level == m.MaxLevel()
}

func (m *SongPointManager) IsMinLevel() bool {
	return m.level == 0
}

func (m *SongPointManager) clampLevel(level int) int {
	return util.Clamp(level, 0, m.MaxLevel())
}

// SetLevel moves the level cursor. levels outside [0, MaxLevel] are clamped, the effective level is returned.
func (m *SongPointManager) SetLevel(level int) int {
	clamped := m.clampLevel(level)
	if clamped != level {
		m.log.V(1).Info("level out of range, clamped", "requested", level, "level", clamped, "maxLevel", m.MaxLevel())
	}
	m.level = clamped
	return m.level
}

func (m *SongPointManager) IncreaseLevel() int {
	return m.SetLevel(m.level + 1)
}

func (m *SongPointManager) DecreaseLevel() int {
	return m.SetLevel(m.level - 1)
}

func (m *SongPointManager) top() *SongTree {
	return m.levels[len(m.levels)-1]
}

func (m *SongPointManager) tree(level int) *SongTree {
	return m.levels[m.clampLevel(level)]
}

// Points all points of the current level.
func (m *SongPointManager) Points() []datastructure.SongPoint {
	return m.levels[m.level].All()
}

// Count number of points on level (clamped).
func (m *SongPointManager) Count(level int) int {
	return m.tree(level).Count()
}

func (m *SongPointManager) GetPoint(id int) (datastructure.SongPoint, bool) {
	p, ok := m.points[id]
	return p, ok
}

// GetPointsInWindow returns the visible points inside the window on level current+levelOffset (clamped).
// a non zero offset lets the renderer show the outgoing and incoming level during a transition.
func (m *SongPointManager) GetPointsInWindow(x, y, width, height float64, levelOffset int) []datastructure.SongPoint {
	window := datastructure.NewRectangle(x, y, width, height)
	found := m.tree(m.level + levelOffset).GetObjects(window)

	visible := make([]datastructure.SongPoint, 0, len(found))
	for _, p := range found {
		if p.IsVisible() {
			visible = append(visible, p)
		}
	}
	return visible
}

// GetWindowDimensions size of the smallest quad on level holding at least numOfPoints points.
func (m *SongPointManager) GetWindowDimensions(level, numOfPoints int) (float64, float64) {
	return m.tree(level).WindowDimensions(numOfPoints)
}

// SetDefaultLevel sets the cursor to the finest level that holds at most numOfPoints points.
func (m *SongPointManager) SetDefaultLevel(numOfPoints int) int {
	i := m.MaxLevel()
	for ; i >= 0; i-- {
		if m.levels[i].Count() > numOfPoints {
			break
		}
	}

	level := m.SetLevel(i + 1)
	m.log.V(1).Info("default level set", "level", level, "numOfPoints", numOfPoints)
	return level
}

// Nearest visible point of the current level strictly closer than radius.
func (m *SongPointManager) Nearest(x, y, radius float64) (datastructure.SongPoint, bool) {
	tree := m.levels[m.level]
	center := datastructure.NewPoint(x, y)

	p, ok := tree.NearestTo(center, radius)
	if !ok || p.IsVisible() {
		return p, ok
	}

	// the closest point is hidden or removed, fall back to the visible points in range.
	var (
		best     datastructure.SongPoint
		bestDist = radius
		found    bool
	)
	for _, candidate := range tree.GetObjectsInCircle(datastructure.NewCircle(center, radius)) {
		if !candidate.IsVisible() {
			continue
		}
		if d := candidate.Position().DistanceTo(center); d < bestDist {
			best, bestDist, found = candidate, d, true
		}
	}
	return best, found
}

// SelectInWindow selects every visible point of the current level inside the window.
func (m *SongPointManager) SelectInWindow(x, y, width, height float64) int {
	points := m.GetPointsInWindow(x, y, width, height, 0)
	for _, p := range points {
		p.MarkAsSelected()
	}
	return len(points)
}

// SelectIDs selects the songs with the given ids. unknown ids are skipped.
func (m *SongPointManager) SelectIDs(ids []int) int {
	selected := 0
	for _, id := range ids {
		p, ok := m.points[id]
		if !ok {
			continue
		}
		p.MarkAsSelected()
		selected++
	}
	return selected
}

// GetSelected returns the selected and visible songs in insertion order.
func (m *SongPointManager) GetSelected() []datastructure.SongPoint {
	selected := make([]datastructure.SongPoint, 0)
	for _, p := range m.levels[0].All() {
		if p.IsSelected() && p.IsVisible() {
			selected = append(selected, p)
		}
	}
	return selected
}

// GetSelectedIDs ids of GetSelected in ascending order.
func (m *SongPointManager) GetSelectedIDs() []int {
	selected := m.GetSelected()
	ids := make([]int, len(selected))
	for i, p := range selected {
		ids[i] = p.ID()
	}
	return util.QuickSortG(ids, util.CompareInt)
}

// RemoveSelection marks every selected song as removed.
func (m *SongPointManager) RemoveSelection() {
	for _, p := range m.top().All() {
		p.MarkRemovedIfSelected()
	}
}

func (m *SongPointManager) ClearSelection() {
	for _, p := range m.top().All() {
		p.ClearSelection()
	}
}

// ShowRemoved brings back every removed song.
func (m *SongPointManager) ShowRemoved() {
	for _, p := range m.top().All() {
		p.UnmarkRemoved()
	}
}

// MarkHidden hides every song except the ones in notHidden, which stay shown together with their clusters.
func (m *SongPointManager) MarkHidden(notHidden []int) {
	for _, p := range m.top().All() {
		p.MarkHidden()
	}

	for _, id := range notHidden {
		p, ok := m.points[id]
		if !ok {
			continue
		}
		p.MarkShown()
		p.RevealAncestors()
	}
}

// ShowAll clears every hidden flag.
func (m *SongPointManager) ShowAll() {
	for _, p := range m.top().All() {
		p.MarkShown()
	}
}
