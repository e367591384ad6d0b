package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/vcontests/vscubing-back/internal/common"
	"github.com/vcontests/vscubing-back/internal/domain/model"
	"github.com/vcontests/vscubing-back/internal/domain/repository"
	"github.com/vcontests/vscubing-back/internal/platform/database"
	"github.com/vcontests/vscubing-back/internal/platform/metrics"
)

// Clock returns the current time. Services take one so tests can pin it.
type Clock func() time.Time

type RoundSessionService struct {
	db             *sql.DB
	sessionRepo    repository.RoundSessionRepository
	solveRepo      repository.SolveRepository
	contestRepo    repository.ContestRepository
	disciplineRepo repository.DisciplineRepository
	selector       ScrambleSelector
	policy         FinishPolicy
	now            Clock
	logger         *slog.Logger
}

func NewRoundSessionService(
	db *sql.DB,
	sessionRepo repository.RoundSessionRepository,
	solveRepo repository.SolveRepository,
	contestRepo repository.ContestRepository,
	disciplineRepo repository.DisciplineRepository,
	selector ScrambleSelector,
	policy FinishPolicy,
	now Clock,
	logger *slog.Logger,
) *RoundSessionService {
	if now == nil {
		now = time.Now
	}
	return &RoundSessionService{
		db:             db,
		sessionRepo:    sessionRepo,
		solveRepo:      solveRepo,
		contestRepo:    contestRepo,
		disciplineRepo: disciplineRepo,
		selector:       selector,
		policy:         policy,
		now:            now,
		logger:         logger,
	}
}

// IsSessionFinished reports whether the user's session for the round is
// finished. A user without a session is not finished.
func (s *RoundSessionService) IsSessionFinished(ctx context.Context, key model.RoundSessionKey) (bool, error) {
	session, err := s.sessionRepo.FindByKey(ctx, key)
	if errors.Is(err, common.ErrRoundSessionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storeError("find round session", err)
	}
	return session.IsFinished, nil
}

// GetOrCreateSession runs inside the caller's transaction.
func (s *RoundSessionService) GetOrCreateSession(ctx context.Context, tx *sql.Tx, key model.RoundSessionKey) (*model.RoundSession, error) {
	session, created, err := s.sessionRepo.GetOrCreate(ctx, tx, key)
	if err != nil {
		return nil, storeError("get or create round session", err)
	}
	if created {
		s.logger.InfoContext(ctx, "Round session started",
			"session_id", session.ID, "contest_id", key.ContestID,
			"discipline_id", key.DisciplineID, "user_id", key.UserID)
	}
	return session, nil
}

// Finish moves a session to finished. Finishing a finished session is a
// no-op that returns it unchanged.
func (s *RoundSessionService) Finish(ctx context.Context, sessionID string, reason model.FinishReason) (*model.RoundSession, error) {
	var (
		session *model.RoundSession
		changed bool
	)
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		current, err := s.sessionRepo.FindByID(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if current.IsFinished {
			session = current
			return nil
		}
		changed, err = s.sessionRepo.MarkFinished(ctx, tx, sessionID, s.now())
		if err != nil {
			return err
		}
		session, err = s.sessionRepo.FindByID(ctx, tx, sessionID)
		return err
	})
	if err != nil {
		return nil, storeError("finish round session", err)
	}
	if changed {
		metrics.RoundSessionsFinished.WithLabelValues(string(reason)).Inc()
		s.logger.InfoContext(ctx, "Round session finished",
			"session_id", session.ID, "user_id", session.UserID, "reason", reason)
	}
	return session, nil
}

// EvaluateFinish asks the finish policy about an active session and finishes
// it when the policy agrees. It reports whether the session is finished
// afterwards.
func (s *RoundSessionService) EvaluateFinish(ctx context.Context, sessionID string) (bool, error) {
	session, err := s.sessionRepo.FindByID(ctx, nil, sessionID)
	if err != nil {
		return false, storeError("find round session", err)
	}
	if session.IsFinished {
		return true, nil
	}
	contest, err := s.contestRepo.FindByID(ctx, session.ContestID)
	if err != nil {
		return false, storeError("find contest", err)
	}
	discipline, err := s.disciplineRepo.FindByID(ctx, session.DisciplineID)
	if err != nil {
		return false, storeError("find discipline", err)
	}
	progress, err := s.selector.Progress(ctx, session.UserID, contest, discipline)
	if err != nil {
		return false, storeError("compute round progress", err)
	}

	done, reason, err := s.policy.ShouldFinish(ctx, FinishInput{
		Session:  session,
		Contest:  contest,
		Progress: progress,
		Now:      s.now(),
	})
	if err != nil || !done {
		return false, err
	}
	if _, err := s.Finish(ctx, sessionID, reason); err != nil {
		return false, err
	}
	return true, nil
}

// SessionWithSolves is a finished session together with its settled solves.
type SessionWithSolves struct {
	Session model.RoundSession
	Solves  []model.Solve
}

// ListWithSolves returns the finished sessions of a round with their
// submitted solves.
func (s *RoundSessionService) ListWithSolves(ctx context.Context, contestNumber int, slug string) (*model.Contest, *model.Discipline, []SessionWithSolves, error) {
	contest, err := s.contestRepo.FindByNumber(ctx, contestNumber)
	if err != nil {
		return nil, nil, nil, storeError("find contest", err)
	}
	discipline, err := s.disciplineRepo.FindBySlug(ctx, slug)
	if err != nil {
		return nil, nil, nil, storeError("find discipline", err)
	}
	sessions, err := s.sessionRepo.ListForRound(ctx, contest.ID, discipline.ID, true)
	if err != nil {
		return nil, nil, nil, storeError("list round sessions", err)
	}
	solves, err := s.solveRepo.ListForRound(ctx, contest.ID, discipline.ID)
	if err != nil {
		return nil, nil, nil, storeError("list round solves", err)
	}

	bySession := make(map[string][]model.Solve, len(sessions))
	for _, solve := range solves {
		if solve.SubmissionState == model.StateSubmitted {
			bySession[solve.RoundSessionID] = append(bySession[solve.RoundSessionID], solve)
		}
	}
	out := make([]SessionWithSolves, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, SessionWithSolves{Session: session, Solves: bySession[session.ID]})
	}
	return contest, discipline, out, nil
}

// UnfinishedSessionIDs lists the sessions of a contest that are still active.
func (s *RoundSessionService) UnfinishedSessionIDs(ctx context.Context, contestID string) ([]string, error) {
	sessions, err := s.sessionRepo.ListUnfinished(ctx, contestID)
	if err != nil {
		return nil, storeError("list unfinished sessions", err)
	}
	ids := make([]string, len(sessions))
	for i, session := range sessions {
		ids[i] = session.ID
	}
	return ids, nil
}
