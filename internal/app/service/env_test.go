package service

import (
	"context"
	"database/sql"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/vcontests/vscubing-back/internal/app/validation"
	"github.com/vcontests/vscubing-back/internal/domain/model"
	"github.com/vcontests/vscubing-back/internal/domain/repository"
	"github.com/vcontests/vscubing-back/internal/platform/database/dbtest"
	"github.com/vcontests/vscubing-back/internal/platform/logging"
)

// fakeValidator answers with a fixed verdict and counts its calls.
type fakeValidator struct {
	verdict validation.Verdict
	err     error
	calls   atomic.Int32
}

func (v *fakeValidator) Validate(context.Context, validation.Request) (validation.Verdict, error) {
	v.calls.Add(1)
	if v.err != nil {
		return "", v.err
	}
	return v.verdict, nil
}

type testEnv struct {
	db          *sql.DB
	contests    repository.ContestRepository
	disciplines repository.DisciplineRepository
	scrambles   repository.ScrambleRepository
	sessionRepo repository.RoundSessionRepository
	solves      repository.SolveRepository

	validator *fakeValidator
	resolver  *ContextResolver
	sessions  *RoundSessionService
	solveSvc  *SolveService
	at        time.Time

	contest    *model.Contest
	discipline *model.Discipline
	regular    []*model.Scramble
	extras     []*model.Scramble
}

const (
	alice = "alice"
	bob   = "bob"
)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	db := dbtest.Open(t)
	logger := logging.Discard()

	env := &testEnv{
		db:          db,
		contests:    repository.NewSQLContestRepository(db),
		disciplines: repository.NewSQLDisciplineRepository(db),
		scrambles:   repository.NewSQLScrambleRepository(db),
		sessionRepo: repository.NewSQLRoundSessionRepository(db),
		solves:      repository.NewSQLSolveRepository(db),
		validator:   &fakeValidator{verdict: validation.VerdictValid},
		at:          time.Now().UTC(),
	}
	clock := func() time.Time { return env.at }

	selector := NewSequentialSelector(env.scrambles, env.solves)
	env.resolver = NewContextResolver(env.disciplines, NewStoreContestProvider(env.contests, clock, logger), selector)
	env.sessions = NewRoundSessionService(db, env.sessionRepo, env.solves, env.contests, env.disciplines,
		selector, AnyOf(AllSubmittedPolicy{}, ContestEndedPolicy{}), clock, logger)
	env.solveSvc = NewSolveService(db, env.solves, env.scrambles, env.contests, env.resolver, env.sessions,
		env.validator, NewInlineFinishQueue(env.sessions), clock, logger)

	dbtest.InsertUser(t, db, alice)
	dbtest.InsertUser(t, db, bob)

	end := env.at.Add(24 * time.Hour)
	env.contest = &model.Contest{ID: uuid.NewString(), ContestNumber: 1, Start: env.at.Add(-time.Hour), End: &end, Ongoing: true}
	require.NoError(t, env.contests.Create(ctx, nil, env.contest))

	d, err := env.disciplines.GetOrCreate(ctx, nil, &model.Discipline{ID: uuid.NewString(), Slug: "3by3", Name: "3by3"})
	require.NoError(t, err)
	env.discipline = d

	for i, moves := range []string{"U R U' R'", "F R F' R'"} {
		env.regular = append(env.regular, env.addScramble(t, i+1, false, moves))
	}
	env.extras = append(env.extras, env.addScramble(t, 1, true, "L U L' U'"))
	return env
}

func (env *testEnv) addScramble(t *testing.T, position int, extra bool, moves string) *model.Scramble {
	t.Helper()
	s := &model.Scramble{
		ID:           uuid.NewString(),
		ContestID:    env.contest.ID,
		DisciplineID: env.discipline.ID,
		Position:     position,
		Extra:        extra,
		Moves:        moves,
	}
	require.NoError(t, env.scrambles.Create(context.Background(), nil, s))
	return s
}

func (env *testEnv) request(scramble *model.Scramble) CreateSolveRequest {
	return CreateSolveRequest{
		DisciplineSlug: env.discipline.Slug,
		ScrambleID:     scramble.ID,
		Reconstruction: "R U R' U'",
		TimeMs:         9500,
	}
}

func (env *testEnv) key(userID string) model.RoundSessionKey {
	return model.RoundSessionKey{ContestID: env.contest.ID, DisciplineID: env.discipline.ID, UserID: userID}
}

func (env *testEnv) countRows(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, env.db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}
