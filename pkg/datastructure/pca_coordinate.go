package datastructure

// PcaCoordinate projected 2D position of one track. X and Y come normalized to [0, 1].
type PcaCoordinate struct {
	ID int     `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

func NewPcaCoordinate(id int, x, y float64) PcaCoordinate {
	return PcaCoordinate{ID: id, X: x, Y: y}
}

func (c PcaCoordinate) Valid() bool {
	return c.X >= 0 && c.X <= 1 && c.Y >= 0 && c.Y <= 1
}

// Scaled position of the coordinate on a canvas of the given size.
func (c PcaCoordinate) Scaled(scale float64) Point {
	return Point{X: c.X * scale, Y: c.Y * scale}
}
