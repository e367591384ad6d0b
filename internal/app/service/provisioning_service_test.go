package service

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vcontests/vscubing-back/internal/common"
	"github.com/vcontests/vscubing-back/internal/platform/logging"
)

const contestYAML = `
contest_number: 2
start: 2026-03-01T00:00:00Z
end: 2026-03-08T00:00:00Z
close_previous: true
disciplines:
  - name: 3by3
    scrambles:
      - "R U R' U'"
      - "F2 D L'"
    extras:
      - "B U2"
  - name: 2by2 OH
    scrambles:
      - "R U F"
`

func newProvisioning(env *testEnv) *ProvisioningService {
	return NewProvisioningService(env.db, env.contests, env.disciplines, env.scrambles, env.sessions,
		NewInlineFinishQueue(env.sessions), func() time.Time { return env.at }, logging.Discard())
}

func TestProvision(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// alice is mid-round in the contest that is about to be replaced.
	_, err := env.solveSvc.CreateSolve(ctx, alice, env.request(env.regular[0]))
	require.NoError(t, err)

	spec, err := ParseContestSpec(strings.NewReader(contestYAML))
	require.NoError(t, err)

	result, err := newProvisioning(env).Provision(ctx, spec)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Contest.ContestNumber)
	assert.Equal(t, int64(1), result.Closed)
	assert.Equal(t, 4, result.Scrambles)
	require.Len(t, result.Disciplines, 2)
	assert.Equal(t, "3by3", result.Disciplines[0].Slug)
	assert.Equal(t, env.discipline.ID, result.Disciplines[0].ID, "existing discipline is reused")
	assert.Equal(t, "2by2-oh", result.Disciplines[1].Slug)

	ongoing, err := env.contests.FindOngoing(ctx)
	require.NoError(t, err)
	require.Len(t, ongoing, 1)
	assert.Equal(t, result.Contest.ID, ongoing[0].ID)

	scrambles, err := env.scrambles.ListForRound(ctx, result.Contest.ID, env.discipline.ID)
	require.NoError(t, err)
	require.Len(t, scrambles, 3)
	assert.Equal(t, "R U R' U'", scrambles[0].Moves)
	assert.False(t, scrambles[1].Extra)
	assert.True(t, scrambles[2].Extra)
	assert.Equal(t, 1, scrambles[2].Position)

	finished, err := env.sessions.IsSessionFinished(ctx, env.key(alice))
	require.NoError(t, err)
	assert.True(t, finished, "sessions of the closed contest are finished")

	_, err = newProvisioning(env).Provision(ctx, spec)
	assert.ErrorIs(t, err, common.ErrConflict)
}

func TestProvision_RejectsBadSpecs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for name, spec := range map[string]*ContestSpec{
		"no number":      {Disciplines: []DisciplineSpec{{Name: "3by3", Scrambles: []string{"R"}}}},
		"no disciplines": {ContestNumber: 5},
		"no scrambles":   {ContestNumber: 5, Disciplines: []DisciplineSpec{{Name: "3by3"}}},
		"bad notation":   {ContestNumber: 5, Disciplines: []DisciplineSpec{{Name: "3by3", Scrambles: []string{"R Q"}}}},
		"slice on 4x4":   {ContestNumber: 5, Disciplines: []DisciplineSpec{{Name: "4by4", Scrambles: []string{"M"}}}},
		"duplicate":      {ContestNumber: 5, Disciplines: []DisciplineSpec{{Name: "3by3", Scrambles: []string{"R"}}, {Name: "3BY3", Scrambles: []string{"U"}}}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := newProvisioning(env).Provision(ctx, spec)
			assert.ErrorIs(t, err, common.ErrValidation)
		})
	}

	ongoing, err := env.contests.FindOngoing(ctx)
	require.NoError(t, err)
	assert.Len(t, ongoing, 1, "nothing was written")
}

func TestProvision_UnknownPuzzleSkipsNotationCheck(t *testing.T) {
	env := newTestEnv(t)
	spec := &ContestSpec{ContestNumber: 7, Disciplines: []DisciplineSpec{{Name: "Pyraminx", Scrambles: []string{"U' L R' b"}}}}
	result, err := newProvisioning(env).Provision(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, "pyraminx", result.Disciplines[0].Slug)
	assert.False(t, result.Contest.Start.IsZero())
	assert.Zero(t, result.Closed)
}

func TestParseContestSpec_UnknownField(t *testing.T) {
	_, err := ParseContestSpec(strings.NewReader("contest_number: 1\nsurprise: true\n"))
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestProvision_DisciplineSlugOverride(t *testing.T) {
	env := newTestEnv(t)
	spec := &ContestSpec{ContestNumber: 8, Disciplines: []DisciplineSpec{{Name: "Three by three", Slug: "3by3", Scrambles: []string{"R"}}}}
	result, err := newProvisioning(env).Provision(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, env.discipline.ID, result.Disciplines[0].ID)
	assert.Equal(t, "3by3", result.Disciplines[0].Name, "existing name is kept")
}

func TestProvision_ExampleContestFile(t *testing.T) {
	env := newTestEnv(t)
	f, err := os.Open("../../../contests/example.yaml")
	require.NoError(t, err)
	defer f.Close()

	spec, err := ParseContestSpec(f)
	require.NoError(t, err)
	spec.ContestNumber = 7

	result, err := newProvisioning(env).Provision(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, 13, result.Scrambles)
	require.Len(t, result.Disciplines, 2)
	assert.Equal(t, "2by2", result.Disciplines[1].Slug)
}
