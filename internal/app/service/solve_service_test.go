package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vcontests/vscubing-back/internal/app/validation"
	"github.com/vcontests/vscubing-back/internal/common"
	"github.com/vcontests/vscubing-back/internal/domain/model"
)

func TestCreateSolve_FirstSolveOpensSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	solve, err := env.solveSvc.CreateSolve(ctx, alice, env.request(env.regular[0]))
	require.NoError(t, err)
	assert.False(t, solve.IsDNF)
	assert.Equal(t, model.StatePending, solve.SubmissionState)
	assert.Equal(t, env.regular[0].ID, solve.ScrambleID)
	require.NotNil(t, solve.TimeMs)
	assert.Equal(t, 9500, *solve.TimeMs)

	session, err := env.sessionRepo.FindByKey(ctx, env.key(alice))
	require.NoError(t, err)
	assert.Equal(t, session.ID, solve.RoundSessionID)
	assert.False(t, session.Submitted)
	assert.False(t, session.IsFinished)

	assert.Equal(t, 1, env.countRows(t, "solves"))
	assert.Equal(t, 1, env.countRows(t, "round_sessions"))
}

func TestCreateSolve_SecondSolveReusesSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.solveSvc.CreateSolve(ctx, alice, env.request(env.regular[0]))
	require.NoError(t, err)
	_, err = env.solveSvc.SubmitSolve(ctx, alice, first.ID, model.StateSubmitted)
	require.NoError(t, err)

	second, err := env.solveSvc.CreateSolve(ctx, alice, env.request(env.regular[1]))
	require.NoError(t, err)
	assert.Equal(t, first.RoundSessionID, second.RoundSessionID)
	assert.Equal(t, 1, env.countRows(t, "round_sessions"))
}

func TestCreateSolve_Rejections(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		prepare func(t *testing.T, env *testEnv) CreateSolveRequest
		wantErr error
	}{
		{
			name: "negative time",
			prepare: func(t *testing.T, env *testEnv) CreateSolveRequest {
				req := env.request(env.regular[0])
				req.TimeMs = -1
				return req
			},
			wantErr: common.ErrInvalidTime,
		},
		{
			name: "unknown discipline",
			prepare: func(t *testing.T, env *testEnv) CreateSolveRequest {
				req := env.request(env.regular[0])
				req.DisciplineSlug = "megaminx"
				return req
			},
			wantErr: common.ErrDisciplineNotFound,
		},
		{
			name: "no ongoing contest",
			prepare: func(t *testing.T, env *testEnv) CreateSolveRequest {
				_, err := env.contests.CloseOngoing(context.Background(), nil, env.at)
				require.NoError(t, err)
				return env.request(env.regular[0])
			},
			wantErr: common.ErrNoOngoingContest,
		},
		{
			name: "contest past its end time",
			prepare: func(t *testing.T, env *testEnv) CreateSolveRequest {
				env.at = env.contest.End.Add(time.Second)
				return env.request(env.regular[0])
			},
			wantErr: common.ErrNoOngoingContest,
		},
		{
			name: "two ongoing contests",
			prepare: func(t *testing.T, env *testEnv) CreateSolveRequest {
				other := &model.Contest{ID: uuid.NewString(), ContestNumber: 2, Start: env.at, Ongoing: true}
				require.NoError(t, env.contests.Create(context.Background(), nil, other))
				return env.request(env.regular[0])
			},
			wantErr: common.ErrMultipleOngoingContests,
		},
		{
			name: "finished session",
			prepare: func(t *testing.T, env *testEnv) CreateSolveRequest {
				session, _, err := env.sessionRepo.GetOrCreate(context.Background(), nil, env.key(alice))
				require.NoError(t, err)
				_, err = env.sessions.Finish(context.Background(), session.ID, model.FinishReasonManual)
				require.NoError(t, err)
				return env.request(env.regular[0])
			},
			wantErr: common.ErrRoundSessionFinished,
		},
		{
			name: "scramble is not the current one",
			prepare: func(t *testing.T, env *testEnv) CreateSolveRequest {
				return env.request(env.regular[1])
			},
			wantErr: common.ErrScrambleMismatch,
		},
		{
			name: "extra scramble before it is due",
			prepare: func(t *testing.T, env *testEnv) CreateSolveRequest {
				return env.request(env.extras[0])
			},
			wantErr: common.ErrScrambleMismatch,
		},
		{
			name: "unknown scramble",
			prepare: func(t *testing.T, env *testEnv) CreateSolveRequest {
				req := env.request(env.regular[0])
				req.ScrambleID = uuid.NewString()
				return req
			},
			wantErr: common.ErrUnknownScramble,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			req := tt.prepare(t, env)

			solve, err := env.solveSvc.CreateSolve(ctx, alice, req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, solve)
			assert.Zero(t, env.validator.calls.Load(), "validator must not run for rejected requests")
			assert.Zero(t, env.countRows(t, "solves"))
		})
	}
}

func TestCreateSolve_DuplicateIsForbidden(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.solveSvc.CreateSolve(ctx, alice, env.request(env.regular[0]))
	require.NoError(t, err)

	_, err = env.solveSvc.CreateSolve(ctx, alice, env.request(env.regular[0]))
	assert.ErrorIs(t, err, common.ErrSolveAlreadyExists)
	assert.ErrorIs(t, err, common.ErrForbidden)
	assert.Equal(t, int32(1), env.validator.calls.Load())
	assert.Equal(t, 1, env.countRows(t, "solves"))
}

func TestCreateSolve_DNF(t *testing.T) {
	ctx := context.Background()

	for _, tt := range []struct {
		name    string
		verdict validation.Verdict
		claimed bool
		wantDNF bool
	}{
		{"valid and not claimed", validation.VerdictValid, false, false},
		{"invalid demotes to DNF", validation.VerdictInvalid, false, true},
		{"claimed DNF stays DNF when valid", validation.VerdictValid, true, true},
		{"claimed DNF stays DNF when invalid", validation.VerdictInvalid, true, true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.validator.verdict = tt.verdict
			req := env.request(env.regular[0])
			req.IsDNF = tt.claimed

			solve, err := env.solveSvc.CreateSolve(ctx, alice, req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDNF, solve.IsDNF)

			stored, err := env.solves.FindByID(ctx, solve.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDNF, stored.IsDNF)
		})
	}
}

func TestCreateSolve_ValidatorUnavailablePersistsNothing(t *testing.T) {
	env := newTestEnv(t)
	env.validator.err = errors.New("connection refused")

	solve, err := env.solveSvc.CreateSolve(context.Background(), alice, env.request(env.regular[0]))
	assert.ErrorIs(t, err, common.ErrValidatorUnavailable)
	assert.Equal(t, 503, common.HTTPStatusFromError(err))
	assert.Nil(t, solve)
	assert.Zero(t, env.countRows(t, "solves"))
	assert.Zero(t, env.countRows(t, "round_sessions"))
}

func TestCreateSolve_ValidatorTimeoutThroughGuard(t *testing.T) {
	env := newTestEnv(t)
	slow := &blockingValidator{release: make(chan struct{})}
	defer close(slow.release)
	env.solveSvc.validator = validation.NewGuard(slow, 20*time.Millisecond, env.solveSvc.logger)

	_, err := env.solveSvc.CreateSolve(context.Background(), alice, env.request(env.regular[0]))
	assert.ErrorIs(t, err, common.ErrValidatorUnavailable)
	assert.Zero(t, env.countRows(t, "solves"))
}

type blockingValidator struct{ release chan struct{} }

func (v *blockingValidator) Validate(context.Context, validation.Request) (validation.Verdict, error) {
	<-v.release
	return validation.VerdictValid, nil
}

func TestCreateSolve_ConcurrentSubmissionsAdmitOne(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const n = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		errs     []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.solveSvc.CreateSolve(ctx, alice, env.request(env.regular[0]))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				accepted++
				return
			}
			errs = append(errs, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	for _, err := range errs {
		assert.ErrorIs(t, err, common.ErrSolveAlreadyExists)
	}
	assert.Equal(t, 1, env.countRows(t, "solves"))
	assert.Equal(t, 1, env.countRows(t, "round_sessions"))
}

func TestCreateSolve_UsersGetSeparateSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, user := range []string{alice, bob} {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			_, err := env.solveSvc.CreateSolve(ctx, user, env.request(env.regular[0]))
			assert.NoError(t, err)
		}(user)
	}
	wg.Wait()

	assert.Equal(t, 2, env.countRows(t, "solves"))
	assert.Equal(t, 2, env.countRows(t, "round_sessions"))
}

func TestSubmitSolve_WalksTheRound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.solveSvc.CreateSolve(ctx, alice, env.request(env.regular[0]))
	require.NoError(t, err)
	submitted, err := env.solveSvc.SubmitSolve(ctx, alice, first.ID, model.StateSubmitted)
	require.NoError(t, err)
	assert.Equal(t, model.StateSubmitted, submitted.SubmissionState)

	second, err := env.solveSvc.CreateSolve(ctx, alice, env.request(env.regular[1]))
	require.NoError(t, err)
	_, err = env.solveSvc.SubmitSolve(ctx, alice, second.ID, model.StateChangedToExtra)
	require.NoError(t, err)

	state, err := env.solveSvc.CurrentSolve(ctx, alice, env.discipline.Slug)
	require.NoError(t, err)
	require.NotNil(t, state.Scramble)
	assert.Equal(t, env.extras[0].ID, state.Scramble.ID)
	assert.Nil(t, state.Solve)
	assert.False(t, state.CanChangeToExtra)

	extra, err := env.solveSvc.CreateSolve(ctx, alice, env.request(env.extras[0]))
	require.NoError(t, err)
	_, err = env.solveSvc.SubmitSolve(ctx, alice, extra.ID, model.StateChangedToExtra)
	assert.ErrorIs(t, err, common.ErrNoExtraScrambles)

	_, err = env.solveSvc.SubmitSolve(ctx, alice, extra.ID, model.StateSubmitted)
	require.NoError(t, err)

	finished, err := env.sessions.IsSessionFinished(ctx, env.key(alice))
	require.NoError(t, err)
	assert.True(t, finished, "last submission finishes the session")

	_, err = env.solveSvc.CreateSolve(ctx, alice, env.request(env.regular[0]))
	assert.ErrorIs(t, err, common.ErrRoundSessionFinished)

	solves, err := env.solveSvc.SubmittedSolves(ctx, alice, env.discipline.Slug)
	require.NoError(t, err)
	require.Len(t, solves, 2)
	assert.Equal(t, first.ID, solves[0].ID)
	assert.Equal(t, extra.ID, solves[1].ID)
}

func TestSubmitSolve_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	solve, err := env.solveSvc.CreateSolve(ctx, alice, env.request(env.regular[0]))
	require.NoError(t, err)

	_, err = env.solveSvc.SubmitSolve(ctx, alice, solve.ID, model.StatePending)
	assert.ErrorIs(t, err, common.ErrInvalidAction)

	_, err = env.solveSvc.SubmitSolve(ctx, bob, solve.ID, model.StateSubmitted)
	assert.ErrorIs(t, err, common.ErrNotSolveOwner)

	_, err = env.solveSvc.SubmitSolve(ctx, alice, uuid.NewString(), model.StateSubmitted)
	assert.ErrorIs(t, err, common.ErrSolveNotFound)

	_, err = env.solveSvc.SubmitSolve(ctx, alice, solve.ID, model.StateSubmitted)
	require.NoError(t, err)
	_, err = env.solveSvc.SubmitSolve(ctx, alice, solve.ID, model.StateSubmitted)
	assert.ErrorIs(t, err, common.ErrSolveAlreadySubmitted)
}

func TestSubmitSolve_ConcurrentSubmitsSettleOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	solve, err := env.solveSvc.CreateSolve(ctx, alice, env.request(env.regular[0]))
	require.NoError(t, err)

	const n = 6
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := env.solveSvc.SubmitSolve(ctx, alice, solve.ID, model.StateSubmitted)
			results <- err
		}()
	}
	ok := 0
	for i := 0; i < n; i++ {
		if err := <-results; err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, common.ErrSolveAlreadySubmitted)
		}
	}
	assert.Equal(t, 1, ok)
}

func TestCurrentSolve(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	state, err := env.solveSvc.CurrentSolve(ctx, alice, env.discipline.Slug)
	require.NoError(t, err)
	assert.Equal(t, env.regular[0].ID, state.Scramble.ID)
	assert.Nil(t, state.Solve)
	assert.True(t, state.CanChangeToExtra)
	assert.False(t, state.SessionFinished)

	solve, err := env.solveSvc.CreateSolve(ctx, alice, env.request(env.regular[0]))
	require.NoError(t, err)

	state, err = env.solveSvc.CurrentSolve(ctx, alice, env.discipline.Slug)
	require.NoError(t, err)
	assert.Equal(t, env.regular[0].ID, state.Scramble.ID)
	require.NotNil(t, state.Solve)
	assert.Equal(t, solve.ID, state.Solve.ID)

	_, err = env.sessions.Finish(ctx, solve.RoundSessionID, model.FinishReasonManual)
	require.NoError(t, err)
	state, err = env.solveSvc.CurrentSolve(ctx, alice, env.discipline.Slug)
	require.NoError(t, err)
	assert.True(t, state.SessionFinished)
	assert.Nil(t, state.Scramble)
}

func TestGetSolve_VisibleToOthersAfterContestEnds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	solve, err := env.solveSvc.CreateSolve(ctx, alice, env.request(env.regular[0]))
	require.NoError(t, err)

	details, err := env.solveSvc.GetSolve(ctx, alice, solve.ID)
	require.NoError(t, err)
	assert.Equal(t, env.regular[0].Moves, details.Scramble.Moves)

	_, err = env.solveSvc.GetSolve(ctx, bob, solve.ID)
	assert.ErrorIs(t, err, common.ErrNotSolveOwner)

	env.at = env.contest.End.Add(time.Minute)
	details, err = env.solveSvc.GetSolve(ctx, bob, solve.ID)
	require.NoError(t, err)
	assert.Equal(t, solve.ID, details.Solve.ID)
}

func TestCreateSolve_EndedContestAdmitsNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	solve, err := env.solveSvc.CreateSolve(ctx, alice, env.request(env.regular[0]))
	require.NoError(t, err)
	_, err = env.solveSvc.SubmitSolve(ctx, alice, solve.ID, model.StateSubmitted)
	require.NoError(t, err)
	pending, err := env.solveSvc.CreateSolve(ctx, alice, env.request(env.regular[1]))
	require.NoError(t, err)

	// Past the end time while the contest is still flagged ongoing.
	env.at = env.contest.End.Add(48 * time.Hour)

	details, err := env.solveSvc.GetSolve(ctx, bob, solve.ID)
	require.NoError(t, err)
	assert.Equal(t, "R U R' U'", details.Solve.Reconstruction)

	admitted, err := env.solveSvc.CreateSolve(ctx, bob, env.request(env.regular[0]))
	assert.ErrorIs(t, err, common.ErrNoOngoingContest)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Nil(t, admitted)

	_, err = env.solveSvc.SubmitSolve(ctx, alice, pending.ID, model.StateSubmitted)
	assert.ErrorIs(t, err, common.ErrNoOngoingContest)

	_, err = env.solveSvc.CurrentSolve(ctx, alice, env.discipline.Slug)
	assert.ErrorIs(t, err, common.ErrNoOngoingContest)

	assert.Equal(t, 2, env.countRows(t, "solves"))
}

func TestCreateSolve_RacingFinishNeverLeavesLateSolve(t *testing.T) {
	for i := 0; i < 10; i++ {
		env := newTestEnv(t)
		ctx := context.Background()

		first, err := env.solveSvc.CreateSolve(ctx, alice, env.request(env.regular[0]))
		require.NoError(t, err)
		_, err = env.solveSvc.SubmitSolve(ctx, alice, first.ID, model.StateSubmitted)
		require.NoError(t, err)

		var (
			wg        sync.WaitGroup
			createErr error
			finishErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, createErr = env.solveSvc.CreateSolve(ctx, alice, env.request(env.regular[1]))
		}()
		go func() {
			defer wg.Done()
			_, finishErr = env.sessions.Finish(ctx, first.RoundSessionID, model.FinishReasonManual)
		}()
		wg.Wait()

		require.NoError(t, finishErr)
		session, err := env.sessionRepo.FindByID(ctx, nil, first.RoundSessionID)
		require.NoError(t, err)
		assert.True(t, session.IsFinished)

		inSession, err := env.solves.ListForSession(ctx, nil, session.ID)
		require.NoError(t, err)
		if createErr == nil {
			assert.Len(t, inSession, 2, "admitted before the finish")
		} else {
			assert.ErrorIs(t, createErr, common.ErrRoundSessionFinished)
			assert.Len(t, inSession, 1)
		}
	}
}
