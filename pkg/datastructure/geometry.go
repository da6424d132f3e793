package datastructure

import (
	"fmt"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/r2"
)

// Point is a position on the 2D canvas.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func NewPoint(x, y float64) Point {
	return Point{X: x, Y: y}
}

func (p Point) vec() r2.Point {
	return r2.Point{X: p.X, Y: p.Y}
}

func fromVec(v r2.Point) Point {
	return Point{X: v.X, Y: v.Y}
}

func (p Point) Add(q Point) Point {
	return fromVec(p.vec().Add(q.vec()))
}

func (p Point) Sub(q Point) Point {
	return fromVec(p.vec().Sub(q.vec()))
}

func (p Point) Scale(factor float64) Point {
	return fromVec(p.vec().Mul(factor))
}

// Normalize divides both coordinates by count. used to turn a sum of points into their mean.
func (p Point) Normalize(count int) Point {
	return p.Scale(1 / float64(count))
}

// DistanceTo euclidean distance between p and q.
func (p Point) DistanceTo(q Point) float64 {
	return p.vec().Sub(q.vec()).Norm()
}

func (p Point) String() string {
	return fmt.Sprintf("(%v,%v)", p.X, p.Y)
}

// Rectangle is an axis aligned rectangle given by its bottom-left and top-right corner.
// every predicate is inclusive on all four sides. a negative width or height gives an empty
// rectangle that contains and intersects nothing.
type Rectangle struct {
	BottomLeft Point `json:"bottom_left"`
	TopRight   Point `json:"top_right"`
}

// NewRectangle builds a rectangle from its bottom-left corner and its size.
func NewRectangle(x, y, width, height float64) Rectangle {
	return Rectangle{
		BottomLeft: Point{X: x, Y: y},
		TopRight:   Point{X: x + width, Y: y + height},
	}
}

func NewRectangleFromCorners(bottomLeft, topRight Point) Rectangle {
	return Rectangle{BottomLeft: bottomLeft, TopRight: topRight}
}

// bounds keeps the corners as given. a rectangle with a negative width or height is empty.
func (r Rectangle) bounds() r2.Rect {
	return r2.Rect{
		X: r1.Interval{Lo: r.BottomLeft.X, Hi: r.TopRight.X},
		Y: r1.Interval{Lo: r.BottomLeft.Y, Hi: r.TopRight.Y},
	}
}

func (r Rectangle) IsEmpty() bool {
	return r.bounds().IsEmpty()
}

func (r Rectangle) X() float64 {
	return r.BottomLeft.X
}

func (r Rectangle) Y() float64 {
	return r.BottomLeft.Y
}

func (r Rectangle) Width() float64 {
	return r.TopRight.X - r.BottomLeft.X
}

func (r Rectangle) Height() float64 {
	return r.TopRight.Y - r.BottomLeft.Y
}

func (r Rectangle) Center() Point {
	return fromVec(r.bounds().Center())
}

// Contains reports whether p lies inside r, edges included.
func (r Rectangle) Contains(p Point) bool {
	return r.bounds().ContainsPoint(p.vec())
}

// ContainsRect reports whether other lies completely inside r.
func (r Rectangle) ContainsRect(other Rectangle) bool {
	return r.bounds().Contains(other.bounds())
}

// ContainsCircle reports whether the bounding square of c lies inside r.
func (r Rectangle) ContainsCircle(c Circle) bool {
	return r.X() <= c.Center.X-c.Radius && r.TopRight.X >= c.Center.X+c.Radius &&
		r.Y() <= c.Center.Y-c.Radius && r.TopRight.Y >= c.Center.Y+c.Radius
}

func (r Rectangle) Intersects(other Rectangle) bool {
	return r.bounds().Intersects(other.bounds())
}

/*
IntersectsCircle classifies the circle center into one of nine zones around r:

	6 | 7 | 8
	---------
	3 | 4 | 5
	---------
	0 | 1 | 2

zone 4 is inside the rectangle. edge zones (1,3,5,7) compare the distance to
the closest edge with the radius, corner zones (0,2,6,8) check whether the
closest corner lies inside the circle.
*/
func (r Rectangle) IntersectsCircle(c Circle) bool {
	zx := 1
	if c.Center.X < r.X() {
		zx = 0
	} else if c.Center.X > r.TopRight.X {
		zx = 2
	}

	zy := 1
	if c.Center.Y < r.Y() {
		zy = 0
	} else if c.Center.Y > r.TopRight.Y {
		zy = 2
	}

	zone := zx + 3*zy
	switch zone {
	case 1:
		return r.Y()-c.Center.Y <= c.Radius
	case 7:
		return c.Center.Y-r.TopRight.Y <= c.Radius
	case 3:
		return r.X()-c.Center.X <= c.Radius
	case 5:
		return c.Center.X-r.TopRight.X <= c.Radius
	case 4:
		return true
	default:
		cornerX := r.TopRight.X
		if zone == 0 || zone == 6 {
			cornerX = r.X()
		}
		cornerY := r.TopRight.Y
		if zone == 0 || zone == 2 {
			cornerY = r.Y()
		}
		return c.Contains(Point{X: cornerX, Y: cornerY})
	}
}

func (r Rectangle) String() string {
	return fmt.Sprintf("rect[%s,%s]", r.BottomLeft, r.TopRight)
}

// Circle. the radius is mutable, nearest neighbour search shrinks it while it walks the tree.
type Circle struct {
	Center Point
	Radius float64
}

func NewCircle(center Point, radius float64) Circle {
	return Circle{Center: center, Radius: radius}
}

func (c Circle) Contains(p Point) bool {
	return c.Center.DistanceTo(p) <= c.Radius
}

// ContainsRect true if all four corners of r are inside the circle.
func (c Circle) ContainsRect(r Rectangle) bool {
	return c.Contains(r.BottomLeft) &&
		c.Contains(r.TopRight) &&
		c.Contains(Point{X: r.X(), Y: r.TopRight.Y}) &&
		c.Contains(Point{X: r.TopRight.X, Y: r.Y()})
}
