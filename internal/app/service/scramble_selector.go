package service

import (
	"context"
	"fmt"

	"github.com/vcontests/vscubing-back/internal/domain/model"
	"github.com/vcontests/vscubing-back/internal/domain/repository"
)

// RoundProgress is where a user stands in one (contest, discipline) round.
type RoundProgress struct {
	// Current is the scramble the user is entitled to solve now, nil once
	// every position is settled.
	Current *model.Scramble
	// CurrentSolve is the pending solve recorded on Current, if any.
	CurrentSolve *model.Solve
	// ExtrasLeft counts extra scrambles not yet used as replacements.
	ExtrasLeft int
	// Submitted holds the user's settled solves in round order.
	Submitted []model.Solve
	// Attempted counts every solve the user has recorded in the round.
	Attempted int
}

// ScrambleSelector decides which scramble a user is due for.
type ScrambleSelector interface {
	Progress(ctx context.Context, userID string, contest *model.Contest, discipline *model.Discipline) (*RoundProgress, error)
}

// SequentialSelector walks regular scrambles by position. A position is
// settled by a submitted solve; a solve changed to extra hands the position
// over to the next unused extra scramble, which is then judged the same way.
type SequentialSelector struct {
	scrambleRepo repository.ScrambleRepository
	solveRepo    repository.SolveRepository
}

func NewSequentialSelector(scrambleRepo repository.ScrambleRepository, solveRepo repository.SolveRepository) *SequentialSelector {
	return &SequentialSelector{scrambleRepo: scrambleRepo, solveRepo: solveRepo}
}

func (s *SequentialSelector) Progress(ctx context.Context, userID string, contest *model.Contest, discipline *model.Discipline) (*RoundProgress, error) {
	scrambles, err := s.scrambleRepo.ListForRound(ctx, contest.ID, discipline.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list round scrambles: %w", err)
	}
	solves, err := s.solveRepo.ListForUserRound(ctx, contest.ID, discipline.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user solves: %w", err)
	}
	return computeProgress(scrambles, solves), nil
}

func computeProgress(scrambles []model.Scramble, solves []model.Solve) *RoundProgress {
	var regular, extras []model.Scramble
	for _, sc := range scrambles {
		if sc.Extra {
			extras = append(extras, sc)
		} else {
			regular = append(regular, sc)
		}
	}
	byScramble := make(map[string]*model.Solve, len(solves))
	for i := range solves {
		byScramble[solves[i].ScrambleID] = &solves[i]
	}

	p := &RoundProgress{Attempted: len(solves)}
	nextExtra := 0

positions:
	for i := range regular {
		sc := &regular[i]
		for {
			solve := byScramble[sc.ID]
			switch {
			case solve == nil || solve.SubmissionState == model.StatePending:
				p.Current = sc
				p.CurrentSolve = solve
				break positions
			case solve.SubmissionState == model.StateSubmitted:
				p.Submitted = append(p.Submitted, *solve)
				continue positions
			case nextExtra < len(extras):
				sc = &extras[nextExtra]
				nextExtra++
			default:
				// Changed to extra with nothing left to hand over to.
				continue positions
			}
		}
	}
	p.ExtrasLeft = len(extras) - nextExtra
	return p
}
