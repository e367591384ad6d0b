package cube

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidNotation = errors.New("invalid move notation")

type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// Move is one parsed turn in WCA notation.
type Move struct {
	// Letter is the face, slice or rotation letter as written (R, r, M, x...).
	Letter byte
	// Layers is the numeric prefix (3 in 3Rw, 2 in 2R), zero when absent.
	Layers int
	Wide   bool
	// Turns is the clockwise quarter-turn count seen from the face: 1, 2 or 3.
	Turns int
}

type family struct {
	axis Axis
	// side is the sign of the face the move is seen from. M follows L,
	// E follows D, S follows F; x y z follow R U F.
	side int
}

var families = map[byte]family{
	'R': {AxisX, +1}, 'L': {AxisX, -1},
	'U': {AxisY, +1}, 'D': {AxisY, -1},
	'F': {AxisZ, +1}, 'B': {AxisZ, -1},
	'r': {AxisX, +1}, 'l': {AxisX, -1},
	'u': {AxisY, +1}, 'd': {AxisY, -1},
	'f': {AxisZ, +1}, 'b': {AxisZ, -1},
	'M': {AxisX, -1}, 'E': {AxisY, -1}, 'S': {AxisZ, +1},
	'x': {AxisX, +1}, 'y': {AxisY, +1}, 'z': {AxisZ, +1},
}

func isOuterFace(c byte) bool { return strings.IndexByte("RLUDFB", c) >= 0 }
func isLowerFace(c byte) bool { return strings.IndexByte("rludfb", c) >= 0 }
func isSlice(c byte) bool     { return strings.IndexByte("MES", c) >= 0 }
func isRotation(c byte) bool  { return strings.IndexByte("xyz", c) >= 0 }

// Parse splits a scramble or reconstruction into moves. Line comments
// starting with // and grouping parentheses are ignored.
func Parse(s string) ([]Move, error) {
	replacer := strings.NewReplacer("(", " ", ")", " ", "’", "'", "`", "'")
	var moves []Move
	for _, line := range strings.Split(s, "\n") {
		if i := strings.Index(line, "//"); i >= 0 {
			line = line[:i]
		}
		for _, tok := range strings.Fields(replacer.Replace(line)) {
			m, err := parseToken(tok)
			if err != nil {
				return nil, err
			}
			moves = append(moves, m)
		}
	}
	return moves, nil
}

func parseToken(tok string) (Move, error) {
	bad := fmt.Errorf("%w: %q", ErrInvalidNotation, tok)
	rest := tok

	var m Move
	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	if digits > 0 {
		n, err := strconv.Atoi(rest[:digits])
		if err != nil || n < 1 {
			return Move{}, bad
		}
		m.Layers = n
		rest = rest[digits:]
	}
	if rest == "" {
		return Move{}, bad
	}

	m.Letter = rest[0]
	rest = rest[1:]
	switch {
	case isOuterFace(m.Letter):
		if strings.HasPrefix(rest, "w") {
			m.Wide = true
			rest = rest[1:]
		}
	case isLowerFace(m.Letter):
		m.Wide = true
	case isSlice(m.Letter), isRotation(m.Letter):
		if m.Layers > 0 {
			return Move{}, bad
		}
	default:
		return Move{}, bad
	}

	switch rest {
	case "":
		m.Turns = 1
	case "'":
		m.Turns = 3
	case "2", "2'", "'2":
		m.Turns = 2
	default:
		return Move{}, bad
	}
	return m, nil
}

// String renders the move in canonical notation.
func (m Move) String() string {
	var b strings.Builder
	if m.Layers > 0 {
		b.WriteString(strconv.Itoa(m.Layers))
	}
	b.WriteByte(m.Letter)
	if m.Wide && isOuterFace(m.Letter) {
		b.WriteByte('w')
	}
	switch m.Turns {
	case 2:
		b.WriteByte('2')
	case 3:
		b.WriteByte('\'')
	}
	return b.String()
}

// Invert returns the sequence that undoes moves.
func Invert(moves []Move) []Move {
	out := make([]Move, len(moves))
	for i, m := range moves {
		m.Turns = 4 - m.Turns
		out[len(moves)-1-i] = m
	}
	return out
}

// Format renders moves separated by single spaces.
func Format(moves []Move) string {
	parts := make([]string, len(moves))
	for i, m := range moves {
		parts[i] = m.String()
	}
	return strings.Join(parts, " ")
}
