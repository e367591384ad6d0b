// Package cube simulates NxN Rubik's cubes well enough to check whether a
// move sequence solves a scramble.
package cube

import (
	"errors"
	"fmt"
)

const (
	MinSize = 2
	MaxSize = 7
)

var (
	ErrUnsupportedSize = errors.New("unsupported cube size")
	ErrUnsupportedMove = errors.New("move not applicable to this cube")
)

// vec holds doubled coordinates so every layer centre is an integer:
// layer i of an n-cube sits at 2i-(n-1).
type vec [3]int

type sticker struct {
	pos    vec
	normal vec
	color  int
}

// Cube is a sticker model of an n x n x n cube.
type Cube struct {
	n        int
	stickers []sticker
}

func New(n int) (*Cube, error) {
	if n < MinSize || n > MaxSize {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedSize, n)
	}
	c := &Cube{n: n}
	limit := n - 1
	for x := -limit; x <= limit; x += 2 {
		for y := -limit; y <= limit; y += 2 {
			for z := -limit; z <= limit; z += 2 {
				p := vec{x, y, z}
				for axis := 0; axis < 3; axis++ {
					if p[axis] != limit && p[axis] != -limit {
						continue
					}
					var normal vec
					if p[axis] > 0 {
						normal[axis] = 1
					} else {
						normal[axis] = -1
					}
					c.stickers = append(c.stickers, sticker{pos: p, normal: normal, color: faceIndex(normal)})
				}
			}
		}
	}
	return c, nil
}

func (c *Cube) Size() int { return c.n }

func faceIndex(normal vec) int {
	for axis := 0; axis < 3; axis++ {
		switch normal[axis] {
		case 1:
			return axis * 2
		case -1:
			return axis*2 + 1
		}
	}
	return -1
}

// IsSolved reports whether every face shows a single colour. Whole-cube
// orientation is ignored.
func (c *Cube) IsSolved() bool {
	seen := map[int]int{}
	for _, s := range c.stickers {
		face := faceIndex(s.normal)
		if color, ok := seen[face]; ok && color != s.color {
			return false
		}
		seen[face] = s.color
	}
	return true
}

// Apply performs moves in order. On error the cube is left partially turned.
func (c *Cube) Apply(moves []Move) error {
	for _, m := range moves {
		if err := c.apply(m); err != nil {
			return err
		}
	}
	return nil
}

// ApplyString parses s and applies it.
func (c *Cube) ApplyString(s string) error {
	moves, err := Parse(s)
	if err != nil {
		return err
	}
	return c.Apply(moves)
}

func (c *Cube) apply(m Move) error {
	fam, ok := families[m.Letter]
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidNotation, m)
	}
	selected, err := c.layerSelector(m, fam)
	if err != nil {
		return err
	}

	// Clockwise seen from the positive face is a negative rotation about the axis.
	quarter := ((-fam.side*m.Turns)%4 + 4) % 4
	axis := int(fam.axis)
	for i := range c.stickers {
		s := &c.stickers[i]
		if !selected(s.pos[axis]) {
			continue
		}
		for q := 0; q < quarter; q++ {
			s.pos = rotate(s.pos, fam.axis)
			s.normal = rotate(s.normal, fam.axis)
		}
	}
	return nil
}

// layerSelector returns a predicate over the move axis coordinate.
func (c *Cube) layerSelector(m Move, fam family) (func(int) bool, error) {
	n := c.n
	depth := func(coord int) int { return ((n-1)-fam.side*coord)/2 + 1 }

	switch {
	case isRotation(m.Letter):
		return func(int) bool { return true }, nil
	case isSlice(m.Letter):
		if n%2 == 0 {
			return nil, fmt.Errorf("%w: %s on %dx%d", ErrUnsupportedMove, m, n, n)
		}
		return func(coord int) bool { return coord == 0 }, nil
	case m.Wide:
		k := m.Layers
		if k == 0 {
			k = 2
		}
		if k > n {
			return nil, fmt.Errorf("%w: %s on %dx%d", ErrUnsupportedMove, m, n, n)
		}
		return func(coord int) bool { return depth(coord) <= k }, nil
	default:
		k := m.Layers
		if k == 0 {
			k = 1
		}
		if k > n {
			return nil, fmt.Errorf("%w: %s on %dx%d", ErrUnsupportedMove, m, n, n)
		}
		return func(coord int) bool { return depth(coord) == k }, nil
	}
}

// rotate turns v a quarter counter-clockwise about axis (right-hand rule).
func rotate(v vec, axis Axis) vec {
	x, y, z := v[0], v[1], v[2]
	switch axis {
	case AxisX:
		return vec{x, -z, y}
	case AxisY:
		return vec{z, y, -x}
	default:
		return vec{-y, x, z}
	}
}
