package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vcontests/vscubing-back/internal/common"
	"github.com/vcontests/vscubing-back/internal/domain/model"
	"github.com/vcontests/vscubing-back/internal/domain/repository"
)

// ContestProvider answers which contest is current.
type ContestProvider interface {
	CurrentContest(ctx context.Context) (*model.Contest, error)
}

// StoreContestProvider treats the single contest flagged ongoing and not yet
// past its end time as current. None is common.ErrNoOngoingContest; several
// is a configuration fault and fails loudly with
// common.ErrMultipleOngoingContests.
type StoreContestProvider struct {
	contestRepo repository.ContestRepository
	now         Clock
	logger      *slog.Logger
}

func NewStoreContestProvider(contestRepo repository.ContestRepository, now Clock, logger *slog.Logger) *StoreContestProvider {
	if now == nil {
		now = time.Now
	}
	return &StoreContestProvider{contestRepo: contestRepo, now: now, logger: logger}
}

func (p *StoreContestProvider) CurrentContest(ctx context.Context) (*model.Contest, error) {
	contests, err := p.contestRepo.FindOngoing(ctx)
	if err != nil {
		return nil, storeError("find ongoing contest", err)
	}
	// A contest past its end stays flagged until it is closed, but admits
	// nothing once ended.
	now := p.now()
	live := contests[:0]
	for _, c := range contests {
		if !c.HasEnded(now) {
			live = append(live, c)
		}
	}
	contests = live
	switch len(contests) {
	case 0:
		return nil, common.ErrNoOngoingContest
	case 1:
		return &contests[0], nil
	default:
		numbers := make([]int, len(contests))
		for i, c := range contests {
			numbers[i] = c.ContestNumber
		}
		p.logger.ErrorContext(ctx, "More than one contest is flagged ongoing", "contest_numbers", numbers)
		return nil, common.ErrMultipleOngoingContests
	}
}

// RoundContext is everything a user needs to know to attempt a solve.
type RoundContext struct {
	Contest    *model.Contest
	Discipline *model.Discipline
	Scramble   *model.Scramble
	Progress   *RoundProgress
}

// ContextResolver resolves the discipline, the current contest and the
// scramble a user is due for. It only reads.
type ContextResolver struct {
	disciplineRepo repository.DisciplineRepository
	contests       ContestProvider
	selector       ScrambleSelector
}

func NewContextResolver(disciplineRepo repository.DisciplineRepository, contests ContestProvider, selector ScrambleSelector) *ContextResolver {
	return &ContextResolver{disciplineRepo: disciplineRepo, contests: contests, selector: selector}
}

func (r *ContextResolver) ResolveDiscipline(ctx context.Context, slug string) (*model.Discipline, error) {
	d, err := r.disciplineRepo.FindBySlug(ctx, slug)
	if err != nil {
		return nil, storeError("find discipline", err)
	}
	return d, nil
}

func (r *ContextResolver) ResolveContest(ctx context.Context) (*model.Contest, error) {
	return r.contests.CurrentContest(ctx)
}

// ResolveCurrentScramble returns the scramble userID is due for, with the
// progress it was derived from.
func (r *ContextResolver) ResolveCurrentScramble(ctx context.Context, userID string, contest *model.Contest, discipline *model.Discipline) (*model.Scramble, *RoundProgress, error) {
	progress, err := r.selector.Progress(ctx, userID, contest, discipline)
	if err != nil {
		return nil, nil, storeError("select current scramble", err)
	}
	if progress.Current == nil {
		return nil, progress, common.ErrNoScrambleAvailable
	}
	return progress.Current, progress, nil
}

func (r *ContextResolver) ResolveContext(ctx context.Context, userID, slug string) (*RoundContext, error) {
	discipline, err := r.ResolveDiscipline(ctx, slug)
	if err != nil {
		return nil, err
	}
	contest, err := r.ResolveContest(ctx)
	if err != nil {
		return nil, err
	}
	scramble, progress, err := r.ResolveCurrentScramble(ctx, userID, contest, discipline)
	if err != nil {
		return nil, err
	}
	return &RoundContext{Contest: contest, Discipline: discipline, Scramble: scramble, Progress: progress}, nil
}

// storeError passes domain errors through and marks anything else as a
// store fault.
func storeError(op string, err error) error {
	for _, kind := range []error{
		common.ErrNotFound, common.ErrForbidden, common.ErrBadRequest,
		common.ErrConflict, common.ErrServiceUnavailable, common.ErrInternalServer,
	} {
		if errors.Is(err, kind) {
			return err
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%s: %w: %v", op, common.ErrStoreUnavailable, err)
}
