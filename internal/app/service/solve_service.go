package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/vcontests/vscubing-back/internal/app/validation"
	"github.com/vcontests/vscubing-back/internal/common"
	"github.com/vcontests/vscubing-back/internal/domain/model"
	"github.com/vcontests/vscubing-back/internal/domain/repository"
	"github.com/vcontests/vscubing-back/internal/platform/database"
	"github.com/vcontests/vscubing-back/internal/platform/metrics"
)

type SolveService struct {
	db           *sql.DB
	solveRepo    repository.SolveRepository
	scrambleRepo repository.ScrambleRepository
	contestRepo  repository.ContestRepository
	resolver     *ContextResolver
	sessions     *RoundSessionService
	validator    validation.Validator
	finishQueue  FinishQueue
	now          Clock
	logger       *slog.Logger
}

func NewSolveService(
	db *sql.DB,
	solveRepo repository.SolveRepository,
	scrambleRepo repository.ScrambleRepository,
	contestRepo repository.ContestRepository,
	resolver *ContextResolver,
	sessions *RoundSessionService,
	validator validation.Validator,
	finishQueue FinishQueue,
	now Clock,
	logger *slog.Logger,
) *SolveService {
	if now == nil {
		now = time.Now
	}
	return &SolveService{
		db:           db,
		solveRepo:    solveRepo,
		scrambleRepo: scrambleRepo,
		contestRepo:  contestRepo,
		resolver:     resolver,
		sessions:     sessions,
		validator:    validator,
		finishQueue:  finishQueue,
		now:          now,
		logger:       logger,
	}
}

type CreateSolveRequest struct {
	DisciplineSlug string `json:"discipline"`
	ScrambleID     string `json:"scramble_id"`
	Reconstruction string `json:"reconstruction"`
	IsDNF          bool   `json:"is_dnf"`
	TimeMs         int    `json:"time_ms"`
}

// CreateSolve admits one solve attempt. The checks run in a fixed order and
// the first failing one decides the error. The validator runs before any
// transaction is opened; the session and the solve are written together.
func (s *SolveService) CreateSolve(ctx context.Context, userID string, req CreateSolveRequest) (solve *model.Solve, err error) {
	log := s.logger.With("user_id", userID, "discipline", req.DisciplineSlug, "scramble_id", req.ScrambleID)
	defer func() {
		outcome := admissionOutcome(solve, err)
		metrics.SolveAdmissions.WithLabelValues(outcome).Inc()
		switch outcome {
		case "accepted", "accepted_dnf":
			log.InfoContext(ctx, "Solve admitted", "outcome", outcome, "solve_id", solve.ID, "contest_id", solve.ContestID)
		case "validator_unavailable", "error":
			log.ErrorContext(ctx, "Solve admission failed", "outcome", outcome, "error", err)
		default:
			log.InfoContext(ctx, "Solve rejected", "outcome", outcome, "error", err)
		}
	}()

	if req.TimeMs < 0 {
		return nil, common.ErrInvalidTime
	}

	discipline, err := s.resolver.ResolveDiscipline(ctx, req.DisciplineSlug)
	if err != nil {
		return nil, err
	}
	contest, err := s.resolver.ResolveContest(ctx)
	if err != nil {
		return nil, err
	}

	sessionKey := model.RoundSessionKey{ContestID: contest.ID, DisciplineID: discipline.ID, UserID: userID}
	finished, err := s.sessions.IsSessionFinished(ctx, sessionKey)
	if err != nil {
		return nil, err
	}
	if finished {
		return nil, common.ErrRoundSessionFinished
	}

	current, _, err := s.resolver.ResolveCurrentScramble(ctx, userID, contest, discipline)
	if err != nil {
		return nil, err
	}
	if err := s.checkScramblePinned(ctx, req.ScrambleID, current); err != nil {
		return nil, err
	}

	solveKey := model.SolveKey{ContestID: contest.ID, DisciplineID: discipline.ID, UserID: userID, ScrambleID: current.ID}
	if _, err := s.solveRepo.FindByKey(ctx, solveKey); err == nil {
		return nil, common.ErrSolveAlreadyExists
	} else if !errors.Is(err, common.ErrSolveNotFound) {
		return nil, storeError("find solve", err)
	}

	verdict, err := s.validator.Validate(ctx, validation.Request{
		Discipline:     discipline.Slug,
		Scramble:       current.Moves,
		Reconstruction: req.Reconstruction,
		TimeMs:         req.TimeMs,
	})
	if err != nil {
		if !errors.Is(err, common.ErrValidatorUnavailable) {
			err = fmt.Errorf("%w: %v", common.ErrValidatorUnavailable, err)
		}
		return nil, err
	}

	timeMs := req.TimeMs
	solve = &model.Solve{
		ID:              uuid.NewString(),
		ContestID:       contest.ID,
		DisciplineID:    discipline.ID,
		UserID:          userID,
		ScrambleID:      current.ID,
		TimeMs:          &timeMs,
		IsDNF:           req.IsDNF || verdict != validation.VerdictValid,
		Reconstruction:  req.Reconstruction,
		SubmissionState: model.StatePending,
	}

	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		session, err := s.sessions.GetOrCreateSession(ctx, tx, sessionKey)
		if err != nil {
			return err
		}
		if session.IsFinished {
			return common.ErrRoundSessionFinished
		}
		solve.RoundSessionID = session.ID
		if err := s.solveRepo.Create(ctx, tx, solve); err != nil {
			if errors.Is(err, common.ErrConflict) {
				return common.ErrSolveAlreadyExists
			}
			return err
		}
		return nil
	})
	if err != nil {
		solve = nil
		return nil, storeError("persist solve", err)
	}
	return solve, nil
}

// checkScramblePinned requires the request to name the scramble the user is
// due for.
func (s *SolveService) checkScramblePinned(ctx context.Context, scrambleID string, current *model.Scramble) error {
	if scrambleID == current.ID {
		return nil
	}
	if scrambleID == "" {
		return common.ErrUnknownScramble
	}
	if _, err := s.scrambleRepo.FindByID(ctx, scrambleID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrUnknownScramble
		}
		return storeError("find scramble", err)
	}
	return common.ErrScrambleMismatch
}

func admissionOutcome(solve *model.Solve, err error) string {
	switch {
	case err == nil && solve != nil && solve.IsDNF:
		return "accepted_dnf"
	case err == nil:
		return "accepted"
	case errors.Is(err, common.ErrValidatorUnavailable):
		return "validator_unavailable"
	case errors.Is(err, common.ErrNotFound):
		return "not_found"
	case errors.Is(err, common.ErrForbidden):
		return "forbidden"
	case errors.Is(err, common.ErrBadRequest):
		return "invalid_input"
	default:
		return "error"
	}
}

// SubmitSolve settles the user's pending solve, either keeping it or
// trading its scramble for the next extra one.
func (s *SolveService) SubmitSolve(ctx context.Context, userID, solveID string, action model.SubmissionState) (*model.Solve, error) {
	if action != model.StateSubmitted && action != model.StateChangedToExtra {
		return nil, common.ErrInvalidAction
	}
	solve, err := s.solveRepo.FindByID(ctx, solveID)
	if err != nil {
		return nil, storeError("find solve", err)
	}
	if solve.UserID != userID {
		return nil, common.ErrNotSolveOwner
	}
	if solve.SubmissionState != model.StatePending {
		return nil, common.ErrSolveAlreadySubmitted
	}

	contest, err := s.contestRepo.FindByID(ctx, solve.ContestID)
	if err != nil {
		return nil, storeError("find contest", err)
	}
	if contest.HasEnded(s.now()) {
		return nil, common.ErrNoOngoingContest
	}

	if action == model.StateChangedToExtra {
		progress, err := s.resolver.selector.Progress(ctx, userID, contest, &model.Discipline{ID: solve.DisciplineID})
		if err != nil {
			return nil, storeError("compute round progress", err)
		}
		if progress.ExtrasLeft == 0 {
			return nil, common.ErrNoExtraScrambles
		}
	}

	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		session, err := s.sessions.sessionRepo.Lock(ctx, tx, solve.RoundSessionID)
		if err != nil {
			return err
		}
		if session.IsFinished {
			return common.ErrRoundSessionFinished
		}
		if err := s.solveRepo.UpdateState(ctx, tx, solve.ID, model.StatePending, action); err != nil {
			if errors.Is(err, common.ErrConflict) {
				return common.ErrSolveAlreadySubmitted
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, storeError("submit solve", err)
	}
	s.logger.InfoContext(ctx, "Solve settled", "solve_id", solve.ID, "user_id", userID, "state", action)

	if err := s.finishQueue.EnqueueFinishCheck(ctx, solve.RoundSessionID); err != nil {
		s.logger.ErrorContext(ctx, "Failed to schedule finish check", "session_id", solve.RoundSessionID, "error", err)
	}

	updated, err := s.solveRepo.FindByID(ctx, solve.ID)
	if err != nil {
		return nil, storeError("reload solve", err)
	}
	return updated, nil
}

// CurrentSolveState is the ongoing-contest view of one round for one user.
type CurrentSolveState struct {
	Contest          *model.Contest
	Discipline       *model.Discipline
	Scramble         *model.Scramble
	Solve            *model.Solve
	CanChangeToExtra bool
	SessionFinished  bool
}

func (s *SolveService) CurrentSolve(ctx context.Context, userID, slug string) (*CurrentSolveState, error) {
	discipline, err := s.resolver.ResolveDiscipline(ctx, slug)
	if err != nil {
		return nil, err
	}
	contest, err := s.resolver.ResolveContest(ctx)
	if err != nil {
		return nil, err
	}
	state := &CurrentSolveState{Contest: contest, Discipline: discipline}

	state.SessionFinished, err = s.sessions.IsSessionFinished(ctx, model.RoundSessionKey{ContestID: contest.ID, DisciplineID: discipline.ID, UserID: userID})
	if err != nil {
		return nil, err
	}
	if state.SessionFinished {
		return state, nil
	}

	scramble, progress, err := s.resolver.ResolveCurrentScramble(ctx, userID, contest, discipline)
	if errors.Is(err, common.ErrNoScrambleAvailable) {
		return state, nil
	}
	if err != nil {
		return nil, err
	}
	state.Scramble = scramble
	state.Solve = progress.CurrentSolve
	state.CanChangeToExtra = progress.ExtrasLeft > 0
	return state, nil
}

// SubmittedSolves lists the user's settled solves in the ongoing round.
func (s *SolveService) SubmittedSolves(ctx context.Context, userID, slug string) ([]model.Solve, error) {
	discipline, err := s.resolver.ResolveDiscipline(ctx, slug)
	if err != nil {
		return nil, err
	}
	contest, err := s.resolver.ResolveContest(ctx)
	if err != nil {
		return nil, err
	}
	progress, err := s.resolver.selector.Progress(ctx, userID, contest, discipline)
	if err != nil {
		return nil, storeError("compute round progress", err)
	}
	return progress.Submitted, nil
}

type SolveDetails struct {
	Solve    *model.Solve
	Scramble *model.Scramble
}

// GetSolve shows a solve to its owner, and to everyone once its contest has
// ended.
func (s *SolveService) GetSolve(ctx context.Context, viewerID, solveID string) (*SolveDetails, error) {
	solve, err := s.solveRepo.FindByID(ctx, solveID)
	if err != nil {
		return nil, storeError("find solve", err)
	}
	if solve.UserID != viewerID {
		contest, err := s.contestRepo.FindByID(ctx, solve.ContestID)
		if err != nil {
			return nil, storeError("find contest", err)
		}
		if !contest.HasEnded(s.now()) {
			return nil, common.ErrNotSolveOwner
		}
	}
	scramble, err := s.scrambleRepo.FindByID(ctx, solve.ScrambleID)
	if err != nil {
		return nil, storeError("find scramble", err)
	}
	return &SolveDetails{Solve: solve, Scramble: scramble}, nil
}
