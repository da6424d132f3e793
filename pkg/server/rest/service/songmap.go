package service

import (
	"context"
	"sync"

	"github.com/go-logr/logr"
	"github.com/lintang-b-s/songmap/pkg/datastructure"
	"github.com/lintang-b-s/songmap/pkg/server"
)

type LevelManager interface {
	IsClustered() bool
	Len() int
	MaxLevel() int
	Level() int
	SetLevel(level int) int
	IncreaseLevel() int
	DecreaseLevel() int
	SetDefaultLevel(numOfPoints int) int
	Count(level int) int

	GetPointsInWindow(x, y, width, height float64, levelOffset int) []datastructure.SongPoint
	GetWindowDimensions(level, numOfPoints int) (float64, float64)

	SelectInWindow(x, y, width, height float64) int
	SelectIDs(ids []int) int
	GetSelectedIDs() []int
	RemoveSelection()
	ClearSelection()
	ShowRemoved()
	MarkHidden(notHidden []int)
	ShowAll()
}

type PointSnapper interface {
	Snap(p datastructure.Point) (datastructure.SongPoint, bool)
	SnapWithinRadius(p datastructure.Point, radius float64) (datastructure.SongPoint, bool)
}

// PointView is a copy of the state of one point, taken while the manager is locked.
type PointView struct {
	ID       int
	IDs      []int
	X, Y     float64
	Size     int
	Selected bool
	Removed  bool
	Hidden   bool
}

func newPointView(p datastructure.SongPoint) PointView {
	return PointView{
		ID:       p.ID(),
		IDs:      p.GetAllIDs(),
		X:        p.X(),
		Y:        p.Y(),
		Size:     p.LeafCount(),
		Selected: p.IsSelected(),
		Removed:  p.IsRemoved(),
		Hidden:   p.IsHidden(),
	}
}

type LevelInfo struct {
	Level    int
	MaxLevel int
	Count    int
}

// SongMapService serialises every call into the level manager, the manager itself is not safe for concurrent use.
type SongMapService struct {
	mu      sync.Mutex
	manager LevelManager
	snapper PointSnapper
	log     logr.Logger
}

func NewSongMapService(manager LevelManager, snapper PointSnapper, log logr.Logger) *SongMapService {
	return &SongMapService{
		manager: manager,
		snapper: snapper,
		log:     log,
	}
}

// lock acquires the manager. on error the manager is left unlocked.
func (s *SongMapService) lock() error {
	s.mu.Lock()
	if !s.manager.IsClustered() {
		s.mu.Unlock()
		return server.NewErrorf(server.ErrNotReady, "levels are not built yet, try again later")
	}
	return nil
}

func (s *SongMapService) levelInfo() LevelInfo {
	return LevelInfo{
		Level:    s.manager.Level(),
		MaxLevel: s.manager.MaxLevel(),
		Count:    s.manager.Count(s.manager.Level()),
	}
}

func (s *SongMapService) PointsInWindow(ctx context.Context, x, y, width, height float64, levelOffset int) ([]PointView, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	points := s.manager.GetPointsInWindow(x, y, width, height, levelOffset)
	views := make([]PointView, 0, len(points))
	for _, p := range points {
		views = append(views, newPointView(p))
	}
	return views, nil
}

func (s *SongMapService) Level(ctx context.Context) (LevelInfo, error) {
	if err := s.lock(); err != nil {
		return LevelInfo{}, err
	}
	defer s.mu.Unlock()
	return s.levelInfo(), nil
}

func (s *SongMapService) SetLevel(ctx context.Context, level int) (LevelInfo, error) {
	if err := s.lock(); err != nil {
		return LevelInfo{}, err
	}
	defer s.mu.Unlock()
	s.manager.SetLevel(level)
	return s.levelInfo(), nil
}

func (s *SongMapService) IncreaseLevel(ctx context.Context) (LevelInfo, error) {
	if err := s.lock(); err != nil {
		return LevelInfo{}, err
	}
	defer s.mu.Unlock()
	s.manager.IncreaseLevel()
	return s.levelInfo(), nil
}

func (s *SongMapService) DecreaseLevel(ctx context.Context) (LevelInfo, error) {
	if err := s.lock(); err != nil {
		return LevelInfo{}, err
	}
	defer s.mu.Unlock()
	s.manager.DecreaseLevel()
	return s.levelInfo(), nil
}

// SetDefaultLevel moves to the finest level that shows at most numOfPoints points.
func (s *SongMapService) SetDefaultLevel(ctx context.Context, numOfPoints int) (LevelInfo, error) {
	if err := s.lock(); err != nil {
		return LevelInfo{}, err
	}
	defer s.mu.Unlock()
	if numOfPoints < 0 {
		return LevelInfo{}, server.NewErrorf(server.ErrBadParamInput, "numOfPoints must not be negative")
	}
	s.manager.SetDefaultLevel(numOfPoints)
	return s.levelInfo(), nil
}

func (s *SongMapService) WindowDimensions(ctx context.Context, level, numOfPoints int) (float64, float64, error) {
	if err := s.lock(); err != nil {
		return 0, 0, err
	}
	defer s.mu.Unlock()
	w, h := s.manager.GetWindowDimensions(level, numOfPoints)
	return w, h, nil
}

func (s *SongMapService) SelectInWindow(ctx context.Context, x, y, width, height float64) (int, error) {
	if err := s.lock(); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()
	n := s.manager.SelectInWindow(x, y, width, height)
	s.log.V(1).Info("selected points in window", "count", n, "level", s.manager.Level())
	return n, nil
}

func (s *SongMapService) SelectIDs(ctx context.Context, ids []int) (int, error) {
	if err := s.lock(); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()
	n := s.manager.SelectIDs(ids)
	if n == 0 && len(ids) > 0 {
		return 0, server.NewErrorf(server.ErrNotFound, "none of the %d songs exist", len(ids))
	}
	return n, nil
}

func (s *SongMapService) SelectedIDs(ctx context.Context) ([]int, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.manager.GetSelectedIDs(), nil
}

func (s *SongMapService) ClearSelection(ctx context.Context) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.manager.ClearSelection()
	return nil
}

// RemoveSelection removes the selected songs and returns their ids.
func (s *SongMapService) RemoveSelection(ctx context.Context) ([]int, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	removed := s.manager.GetSelectedIDs()
	s.manager.RemoveSelection()
	s.log.Info("removed selection", "count", len(removed))
	return removed, nil
}

func (s *SongMapService) ShowRemoved(ctx context.Context) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.manager.ShowRemoved()
	return nil
}

// Filter hides every song not in shown.
func (s *SongMapService) Filter(ctx context.Context, shown []int) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.manager.MarkHidden(shown)
	s.log.V(1).Info("filter applied", "shown", len(shown), "songs", s.manager.Len())
	return nil
}

func (s *SongMapService) ClearFilter(ctx context.Context) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.manager.ShowAll()
	return nil
}

// Snap returns the visible point of the current level closest to (x, y). a zero radius uses the
// snapper radius with retries.
func (s *SongMapService) Snap(ctx context.Context, x, y, radius float64) (PointView, error) {
	if err := s.lock(); err != nil {
		return PointView{}, err
	}
	defer s.mu.Unlock()

	var (
		p  datastructure.SongPoint
		ok bool
	)
	pos := datastructure.NewPoint(x, y)
	if radius > 0 {
		p, ok = s.snapper.SnapWithinRadius(pos, radius)
	} else {
		p, ok = s.snapper.Snap(pos)
	}
	if !ok {
		return PointView{}, server.NewErrorf(server.ErrNotFound, "no song near (%v, %v)", x, y)
	}
	return newPointView(p), nil
}
