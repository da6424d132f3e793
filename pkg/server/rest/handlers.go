package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-logr/logr"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/lintang-b-s/songmap/pkg/server/rest/service"
	"github.com/lintang-b-s/songmap/pkg/util"
)

type SongMapService interface {
	PointsInWindow(ctx context.Context, x, y, width, height float64, levelOffset int) ([]service.PointView, error)
	Level(ctx context.Context) (service.LevelInfo, error)
	SetLevel(ctx context.Context, level int) (service.LevelInfo, error)
	IncreaseLevel(ctx context.Context) (service.LevelInfo, error)
	DecreaseLevel(ctx context.Context) (service.LevelInfo, error)
	SetDefaultLevel(ctx context.Context, numOfPoints int) (service.LevelInfo, error)
	WindowDimensions(ctx context.Context, level, numOfPoints int) (float64, float64, error)

	SelectInWindow(ctx context.Context, x, y, width, height float64) (int, error)
	SelectIDs(ctx context.Context, ids []int) (int, error)
	SelectedIDs(ctx context.Context) ([]int, error)
	ClearSelection(ctx context.Context) error
	RemoveSelection(ctx context.Context) ([]int, error)
	ShowRemoved(ctx context.Context) error

	Filter(ctx context.Context, shown []int) error
	ClearFilter(ctx context.Context) error

	Snap(ctx context.Context, x, y, radius float64) (service.PointView, error)
}

const coordPrecision = 3

type SongMapHandler struct {
	svc      SongMapService
	metrics  *Metrics
	validate *validator.Validate
	trans    ut.Translator
	log      logr.Logger
}

func SongMapRouter(r *chi.Mux, svc SongMapService, m *Metrics, log logr.Logger) {
	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")
	validate := validator.New()
	_ = enTranslations.RegisterDefaultTranslations(validate, trans)

	handler := &SongMapHandler{
		svc:      svc,
		metrics:  m,
		validate: validate,
		trans:    trans,
		log:      log,
	}

	r.Group(func(r chi.Router) {
		r.Route("/api/songmap", func(r chi.Router) {
			r.Get("/points", handler.PointsInWindow)

			r.Get("/level", handler.Level)
			r.Put("/level", handler.SetLevel)
			r.Post("/level/increase", handler.IncreaseLevel)
			r.Post("/level/decrease", handler.DecreaseLevel)
			r.Post("/level/default", handler.SetDefaultLevel)
			r.Get("/window", handler.WindowDimensions)

			r.Post("/selection", handler.SelectInWindow)
			r.Post("/selection/ids", handler.SelectIDs)
			r.Get("/selection", handler.Selection)
			r.Delete("/selection", handler.ClearSelection)
			r.Post("/selection/remove", handler.RemoveSelection)
			r.Post("/removed/show", handler.ShowRemoved)

			r.Post("/filter", handler.Filter)
			r.Delete("/filter", handler.ClearFilter)

			r.Get("/snap", handler.Snap)
		})
	})
}

// validateRequest renders the translated validation errors and returns false when data is invalid.
func (h *SongMapHandler) validateRequest(w http.ResponseWriter, r *http.Request, data interface{}) bool {
	if err := h.validate.Struct(data); err != nil {
		vv := translateError(err, h.trans)
		render.Render(w, r, ErrValidation(err, vv))
		return false
	}
	return true
}

func (h *SongMapHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	rend := errorRenderer(err)
	if e, ok := rend.(*ErrResponse); ok && e.HTTPStatusCode == http.StatusInternalServerError {
		h.log.Error(err, "request failed", "path", r.URL.Path)
	}
	render.Render(w, r, rend)
}

func queryFloat(r *http.Request, key string, def float64) (float64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("query param %s must be a number", key)
	}
	return f, nil
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("query param %s must be an integer", key)
	}
	return i, nil
}

// PointResponse model info
//
//	@Description	one point of a level. a cluster lists the ids of every song it holds
type PointResponse struct {
	ID       int     `json:"id"`
	IDs      []int   `json:"ids"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Size     int     `json:"size"`
	Selected bool    `json:"selected"`
	Removed  bool    `json:"removed"`
	Hidden   bool    `json:"hidden"`
}

func NewPointResponse(p service.PointView) PointResponse {
	return PointResponse{
		ID:       p.ID,
		IDs:      p.IDs,
		X:        util.RoundFloat(p.X, coordPrecision),
		Y:        util.RoundFloat(p.Y, coordPrecision),
		Size:     p.Size,
		Selected: p.Selected,
		Removed:  p.Removed,
		Hidden:   p.Hidden,
	}
}

// PointsResponse model info
//
//	@Description	visible points inside a window
type PointsResponse struct {
	Count  int             `json:"count"`
	Points []PointResponse `json:"points"`
}

func RenderPointsResponse(points []service.PointView) *PointsResponse {
	resp := make([]PointResponse, 0, len(points))
	for _, p := range points {
		resp = append(resp, NewPointResponse(p))
	}
	return &PointsResponse{
		Count:  len(resp),
		Points: resp,
	}
}

// WindowQuery model info
//
//	@Description	query of the points inside a window. offset shows the level above or below the current one
type WindowQuery struct {
	X      float64
	Y      float64
	Width  float64 `validate:"gte=0"`
	Height float64 `validate:"gte=0"`
	Offset int     `validate:"gte=-1,lte=1"`
}

func parseWindowQuery(r *http.Request) (*WindowQuery, error) {
	var (
		q   WindowQuery
		err error
	)
	if q.X, err = queryFloat(r, "x", 0); err != nil {
		return nil, err
	}
	if q.Y, err = queryFloat(r, "y", 0); err != nil {
		return nil, err
	}
	if q.Width, err = queryFloat(r, "width", 0); err != nil {
		return nil, err
	}
	if q.Height, err = queryFloat(r, "height", 0); err != nil {
		return nil, err
	}
	if q.Offset, err = queryInt(r, "offset", 0); err != nil {
		return nil, err
	}
	return &q, nil
}

// PointsInWindow
//
//	@Summary		visible points of the current level inside a window
//	@Tags			songmap
//	@Param			x		query	number	true	"left edge of the window"
//	@Param			y		query	number	true	"bottom edge of the window"
//	@Param			width	query	number	true	"window width"
//	@Param			height	query	number	true	"window height"
//	@Param			offset	query	int		false	"level offset, -1, 0 or 1"
//	@Produce		application/json
//	@Router			/songmap/points [get]
//	@Success		200	{object}	PointsResponse
//	@Failure		400	{object}	ErrResponse
//	@Failure		503	{object}	ErrResponse
func (h *SongMapHandler) PointsInWindow(w http.ResponseWriter, r *http.Request) {
	q, err := parseWindowQuery(r)
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if !h.validateRequest(w, r, q) {
		return
	}

	points, err := h.svc.PointsInWindow(r.Context(), q.X, q.Y, q.Width, q.Height, q.Offset)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, RenderPointsResponse(points))
}

// LevelResponse model info
//
//	@Description	level cursor
type LevelResponse struct {
	Level    int  `json:"level"`
	MaxLevel int  `json:"max_level"`
	Count    int  `json:"count"`
	IsMin    bool `json:"is_min_level"`
	IsMax    bool `json:"is_max_level"`
}

func NewLevelResponse(info service.LevelInfo) *LevelResponse {
	return &LevelResponse{
		Level:    info.Level,
		MaxLevel: info.MaxLevel,
		Count:    info.Count,
		IsMin:    info.Level == 0,
		IsMax:    info.Level == info.MaxLevel,
	}
}

func (h *SongMapHandler) renderLevel(w http.ResponseWriter, r *http.Request, info service.LevelInfo, err error) {
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	if h.metrics != nil {
		h.metrics.SetLevel(info.Level)
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, NewLevelResponse(info))
}

// Level
//
//	@Summary		current level, the number of levels and the number of points on the current level
//	@Tags			songmap
//	@Produce		application/json
//	@Router			/songmap/level [get]
//	@Success		200	{object}	LevelResponse
//	@Failure		503	{object}	ErrResponse
func (h *SongMapHandler) Level(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.Level(r.Context())
	h.renderLevel(w, r, info, err)
}

// SetLevelRequest model info
//
//	@Description	request body to move the level cursor. out of range levels are clamped
type SetLevelRequest struct {
	Level *int `json:"level"`
}

func (s *SetLevelRequest) Bind(r *http.Request) error {
	if s.Level == nil {
		return errors.New("level is required")
	}
	return nil
}

// SetLevel
//
//	@Summary		move the level cursor
//	@Tags			songmap
//	@Param			body	body	SetLevelRequest	true	"level"
//	@Accept			application/json
//	@Produce		application/json
//	@Router			/songmap/level [put]
//	@Success		200	{object}	LevelResponse
//	@Failure		400	{object}	ErrResponse
//	@Failure		503	{object}	ErrResponse
func (h *SongMapHandler) SetLevel(w http.ResponseWriter, r *http.Request) {
	data := &SetLevelRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}

	info, err := h.svc.SetLevel(r.Context(), *data.Level)
	h.renderLevel(w, r, info, err)
}

func (h *SongMapHandler) IncreaseLevel(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.IncreaseLevel(r.Context())
	h.renderLevel(w, r, info, err)
}

func (h *SongMapHandler) DecreaseLevel(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.DecreaseLevel(r.Context())
	h.renderLevel(w, r, info, err)
}

// DefaultLevelRequest model info
//
//	@Description	request body to pick the finest level that fits numOfPoints points on screen
type DefaultLevelRequest struct {
	NumOfPoints int `json:"num_of_points" validate:"gte=0"`
}

func (s *DefaultLevelRequest) Bind(r *http.Request) error {
	return nil
}

func (h *SongMapHandler) SetDefaultLevel(w http.ResponseWriter, r *http.Request) {
	data := &DefaultLevelRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if !h.validateRequest(w, r, data) {
		return
	}

	info, err := h.svc.SetDefaultLevel(r.Context(), data.NumOfPoints)
	h.renderLevel(w, r, info, err)
}

// WindowDimensionsResponse model info
//
//	@Description	size of the smallest quad of a level that holds at least n points
type WindowDimensionsResponse struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type windowDimensionsQuery struct {
	Level       int `validate:"gte=0"`
	NumOfPoints int `validate:"gte=0"`
}

// WindowDimensions
//
//	@Summary		size of the smallest quad of a level holding at least n points
//	@Tags			songmap
//	@Param			level	query	int	false	"level, defaults to 0"
//	@Param			n		query	int	true	"number of points"
//	@Produce		application/json
//	@Router			/songmap/window [get]
//	@Success		200	{object}	WindowDimensionsResponse
//	@Failure		400	{object}	ErrResponse
func (h *SongMapHandler) WindowDimensions(w http.ResponseWriter, r *http.Request) {
	var (
		q   windowDimensionsQuery
		err error
	)
	if q.Level, err = queryInt(r, "level", 0); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if q.NumOfPoints, err = queryInt(r, "n", 0); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if !h.validateRequest(w, r, q) {
		return
	}

	width, height, err := h.svc.WindowDimensions(r.Context(), q.Level, q.NumOfPoints)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, &WindowDimensionsResponse{Width: width, Height: height})
}

// SelectWindowRequest model info
//
//	@Description	request body to select every visible point inside a window
type SelectWindowRequest struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width" validate:"gte=0"`
	Height float64 `json:"height" validate:"gte=0"`
}

func (s *SelectWindowRequest) Bind(r *http.Request) error {
	return nil
}

// SelectionCountResponse model info
//
//	@Description	number of points a request touched
type SelectionCountResponse struct {
	Count int `json:"count"`
}

// SelectInWindow
//
//	@Summary		select every visible point of the current level inside a window, a cluster selects all of its songs
//	@Tags			songmap
//	@Param			body	body	SelectWindowRequest	true	"window"
//	@Accept			application/json
//	@Produce		application/json
//	@Router			/songmap/selection [post]
//	@Success		200	{object}	SelectionCountResponse
//	@Failure		400	{object}	ErrResponse
func (h *SongMapHandler) SelectInWindow(w http.ResponseWriter, r *http.Request) {
	data := &SelectWindowRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if !h.validateRequest(w, r, data) {
		return
	}

	n, err := h.svc.SelectInWindow(r.Context(), data.X, data.Y, data.Width, data.Height)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, &SelectionCountResponse{Count: n})
}

// IDsRequest model info
//
//	@Description	request body with song ids
type IDsRequest struct {
	IDs []int `json:"ids" validate:"required"`
}

func (s *IDsRequest) Bind(r *http.Request) error {
	if s.IDs == nil {
		return errors.New("ids is required")
	}
	return nil
}

// SelectIDs
//
//	@Summary		select songs by id, unknown ids are skipped
//	@Tags			songmap
//	@Param			body	body	IDsRequest	true	"song ids"
//	@Accept			application/json
//	@Produce		application/json
//	@Router			/songmap/selection/ids [post]
//	@Success		200	{object}	SelectionCountResponse
//	@Failure		400	{object}	ErrResponse
//	@Failure		404	{object}	ErrResponse
func (h *SongMapHandler) SelectIDs(w http.ResponseWriter, r *http.Request) {
	data := &IDsRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if !h.validateRequest(w, r, data) {
		return
	}

	n, err := h.svc.SelectIDs(r.Context(), data.IDs)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, &SelectionCountResponse{Count: n})
}

// IDsResponse model info
//
//	@Description	song ids in ascending order
type IDsResponse struct {
	IDs []int `json:"ids"`
}

// Selection
//
//	@Summary		ids of the selected songs that are not removed or hidden
//	@Tags			songmap
//	@Produce		application/json
//	@Router			/songmap/selection [get]
//	@Success		200	{object}	IDsResponse
func (h *SongMapHandler) Selection(w http.ResponseWriter, r *http.Request) {
	ids, err := h.svc.SelectedIDs(r.Context())
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, &IDsResponse{IDs: ids})
}

func (h *SongMapHandler) ClearSelection(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ClearSelection(r.Context()); err != nil {
		h.renderError(w, r, err)
		return
	}
	render.NoContent(w, r)
}

// RemoveSelection
//
//	@Summary		remove the selected songs, responds with the removed ids
//	@Tags			songmap
//	@Produce		application/json
//	@Router			/songmap/selection/remove [post]
//	@Success		200	{object}	IDsResponse
func (h *SongMapHandler) RemoveSelection(w http.ResponseWriter, r *http.Request) {
	ids, err := h.svc.RemoveSelection(r.Context())
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, &IDsResponse{IDs: ids})
}

func (h *SongMapHandler) ShowRemoved(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ShowRemoved(r.Context()); err != nil {
		h.renderError(w, r, err)
		return
	}
	render.NoContent(w, r)
}

// Filter
//
//	@Summary		hide every song except the given ids. the clusters holding them stay shown
//	@Tags			songmap
//	@Param			body	body	IDsRequest	true	"ids that stay shown"
//	@Accept			application/json
//	@Router			/songmap/filter [post]
//	@Success		204
//	@Failure		400	{object}	ErrResponse
func (h *SongMapHandler) Filter(w http.ResponseWriter, r *http.Request) {
	data := &IDsRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if !h.validateRequest(w, r, data) {
		return
	}

	if err := h.svc.Filter(r.Context(), data.IDs); err != nil {
		h.renderError(w, r, err)
		return
	}
	render.NoContent(w, r)
}

func (h *SongMapHandler) ClearFilter(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ClearFilter(r.Context()); err != nil {
		h.renderError(w, r, err)
		return
	}
	render.NoContent(w, r)
}

type snapQuery struct {
	X      float64
	Y      float64
	Radius float64 `validate:"gte=0"`
}

// Snap
//
//	@Summary		visible point of the current level closest to the pointer
//	@Tags			songmap
//	@Param			x		query	number	true	"pointer x"
//	@Param			y		query	number	true	"pointer y"
//	@Param			radius	query	number	false	"search radius, the default radius is widened twice when empty"
//	@Produce		application/json
//	@Router			/songmap/snap [get]
//	@Success		200	{object}	PointResponse
//	@Failure		400	{object}	ErrResponse
//	@Failure		404	{object}	ErrResponse
func (h *SongMapHandler) Snap(w http.ResponseWriter, r *http.Request) {
	var (
		q   snapQuery
		err error
	)
	if q.X, err = queryFloat(r, "x", 0); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if q.Y, err = queryFloat(r, "y", 0); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if q.Radius, err = queryFloat(r, "radius", 0); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if !h.validateRequest(w, r, q) {
		return
	}

	p, err := h.svc.Snap(r.Context(), q.X, q.Y, q.Radius)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, NewPointResponse(p))
}
