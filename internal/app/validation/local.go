package validation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/vcontests/vscubing-back/internal/cube"
)

var ErrUnknownPuzzle = errors.New("unknown puzzle for discipline")

var puzzleSlug = regexp.MustCompile(`^(\d+)(?:by|x)(\d+)`)

// PuzzleSize extracts the cube size from a discipline slug such as 3by3,
// 4x4 or 2by2-oh.
func PuzzleSize(slug string) (int, error) {
	m := puzzleSlug.FindStringSubmatch(slug)
	if m == nil || m[1] != m[2] {
		return 0, fmt.Errorf("%w: %q", ErrUnknownPuzzle, slug)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < cube.MinSize || n > cube.MaxSize {
		return 0, fmt.Errorf("%w: %q", ErrUnknownPuzzle, slug)
	}
	return n, nil
}

// LocalValidator replays scramble and reconstruction on a simulated cube.
type LocalValidator struct{}

func NewLocalValidator() *LocalValidator {
	return &LocalValidator{}
}

func (v *LocalValidator) Validate(ctx context.Context, req Request) (Verdict, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	n, err := PuzzleSize(req.Discipline)
	if err != nil {
		return "", err
	}

	scramble, err := cube.Parse(req.Scramble)
	if err != nil {
		return "", fmt.Errorf("stored scramble is unreadable: %w", err)
	}
	if req.TimeMs <= 0 {
		return VerdictInvalid, nil
	}
	reconstruction, err := cube.Parse(req.Reconstruction)
	if err != nil || len(reconstruction) == 0 {
		return VerdictInvalid, nil
	}

	c, err := cube.New(n)
	if err != nil {
		return "", err
	}
	if err := c.Apply(scramble); err != nil {
		return "", fmt.Errorf("stored scramble does not fit %dx%d: %w", n, n, err)
	}
	if err := c.Apply(reconstruction); err != nil {
		return VerdictInvalid, nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !c.IsSolved() {
		return VerdictInvalid, nil
	}
	return VerdictValid, nil
}
