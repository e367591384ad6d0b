package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vcontests/vscubing-back/internal/common"
	"github.com/vcontests/vscubing-back/internal/domain/model"
	"github.com/vcontests/vscubing-back/internal/platform/database"
)

func TestIsSessionFinished_AbsentSessionIsNotFinished(t *testing.T) {
	env := newTestEnv(t)
	finished, err := env.sessions.IsSessionFinished(context.Background(), env.key(alice))
	require.NoError(t, err)
	assert.False(t, finished)
}

func TestGetOrCreateSession_Concurrent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const n = 8
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := database.WithTx(ctx, env.db, func(tx *sql.Tx) error {
				s, err := env.sessions.GetOrCreateSession(ctx, tx, env.key(alice))
				if err != nil {
					return err
				}
				ids[i] = s.ID
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, env.countRows(t, "round_sessions"))
}

func TestFinish_IsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	session, _, err := env.sessionRepo.GetOrCreate(ctx, nil, env.key(alice))
	require.NoError(t, err)

	first, err := env.sessions.Finish(ctx, session.ID, model.FinishReasonManual)
	require.NoError(t, err)
	assert.True(t, first.IsFinished)
	assert.True(t, first.Submitted)
	require.NotNil(t, first.FinishedAt)

	env.at = env.at.Add(time.Hour)
	second, err := env.sessions.Finish(ctx, session.ID, model.FinishReasonContestEnded)
	require.NoError(t, err)
	assert.True(t, second.IsFinished)
	assert.WithinDuration(t, *first.FinishedAt, *second.FinishedAt, time.Second)

	_, err = env.sessions.Finish(ctx, uuid.NewString(), model.FinishReasonManual)
	assert.ErrorIs(t, err, common.ErrRoundSessionNotFound)
}

func TestEvaluateFinish(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	solve, err := env.solveSvc.CreateSolve(ctx, alice, env.request(env.regular[0]))
	require.NoError(t, err)

	finished, err := env.sessions.EvaluateFinish(ctx, solve.RoundSessionID)
	require.NoError(t, err)
	assert.False(t, finished, "scrambles remain and the contest is running")

	env.at = env.contest.End.Add(time.Second)
	finished, err = env.sessions.EvaluateFinish(ctx, solve.RoundSessionID)
	require.NoError(t, err)
	assert.True(t, finished)

	session, err := env.sessionRepo.FindByID(ctx, nil, solve.RoundSessionID)
	require.NoError(t, err)
	assert.True(t, session.IsFinished)

	finished, err = env.sessions.EvaluateFinish(ctx, solve.RoundSessionID)
	require.NoError(t, err)
	assert.True(t, finished)
}

func TestEvaluateFinish_ManualPolicyLeavesSessionsOpen(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.sessions.policy = ManualPolicy{}

	session, _, err := env.sessionRepo.GetOrCreate(ctx, nil, env.key(alice))
	require.NoError(t, err)
	env.at = env.contest.End.Add(time.Hour)

	finished, err := env.sessions.EvaluateFinish(ctx, session.ID)
	require.NoError(t, err)
	assert.False(t, finished)
}

func TestListWithSolves(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, user := range []string{alice, bob} {
		solve, err := env.solveSvc.CreateSolve(ctx, user, env.request(env.regular[0]))
		require.NoError(t, err)
		_, err = env.solveSvc.SubmitSolve(ctx, user, solve.ID, model.StateSubmitted)
		require.NoError(t, err)
	}
	aliceSession, err := env.sessionRepo.FindByKey(ctx, env.key(alice))
	require.NoError(t, err)
	_, err = env.sessions.Finish(ctx, aliceSession.ID, model.FinishReasonManual)
	require.NoError(t, err)

	contest, discipline, sessions, err := env.sessions.ListWithSolves(ctx, env.contest.ContestNumber, env.discipline.Slug)
	require.NoError(t, err)
	assert.Equal(t, env.contest.ID, contest.ID)
	assert.Equal(t, env.discipline.ID, discipline.ID)
	require.Len(t, sessions, 1, "only finished sessions are listed")
	assert.Equal(t, alice, sessions[0].Session.UserID)
	require.Len(t, sessions[0].Solves, 1)
	assert.Equal(t, model.StateSubmitted, sessions[0].Solves[0].SubmissionState)

	_, _, _, err = env.sessions.ListWithSolves(ctx, 99, env.discipline.Slug)
	assert.ErrorIs(t, err, common.ErrContestNotFound)
}
