package validation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vcontests/vscubing-back/internal/common"
	"github.com/vcontests/vscubing-back/internal/platform/config"
	"github.com/vcontests/vscubing-back/internal/platform/logging"
)

func TestPuzzleSize(t *testing.T) {
	for slug, want := range map[string]int{"3by3": 3, "2by2": 2, "4x4": 4, "5x5x5": 5, "3by3-oh": 3, "7by7": 7} {
		n, err := PuzzleSize(slug)
		require.NoError(t, err, slug)
		assert.Equal(t, want, n, slug)
	}
	for _, slug := range []string{"pyraminx", "3by4", "9by9", "1by1", ""} {
		_, err := PuzzleSize(slug)
		assert.ErrorIs(t, err, ErrUnknownPuzzle, slug)
	}
}

func TestLocalValidator(t *testing.T) {
	v := NewLocalValidator()
	ctx := context.Background()

	tests := []struct {
		name    string
		req     Request
		want    Verdict
		wantErr bool
	}{
		{
			name: "solves the scramble",
			req:  Request{Discipline: "3by3", Scramble: "U R U' R'", Reconstruction: "R U R' U'", TimeMs: 9500},
			want: VerdictValid,
		},
		{
			name: "solves with rotations in between",
			req:  Request{Discipline: "3by3", Scramble: "R", Reconstruction: "x R' x'", TimeMs: 1200},
			want: VerdictValid,
		},
		{
			name: "leaves the cube scrambled",
			req:  Request{Discipline: "3by3", Scramble: "U R U' R'", Reconstruction: "R U", TimeMs: 9500},
			want: VerdictInvalid,
		},
		{
			name: "garbage reconstruction",
			req:  Request{Discipline: "3by3", Scramble: "R", Reconstruction: "hello", TimeMs: 9500},
			want: VerdictInvalid,
		},
		{
			name: "empty reconstruction",
			req:  Request{Discipline: "3by3", Scramble: "R", Reconstruction: "  ", TimeMs: 9500},
			want: VerdictInvalid,
		},
		{
			name: "non-positive time",
			req:  Request{Discipline: "3by3", Scramble: "R", Reconstruction: "R'", TimeMs: 0},
			want: VerdictInvalid,
		},
		{
			name: "slice move on an even cube",
			req:  Request{Discipline: "4by4", Scramble: "R", Reconstruction: "M R'", TimeMs: 10},
			want: VerdictInvalid,
		},
		{
			name:    "unknown puzzle",
			req:     Request{Discipline: "megaminx", Scramble: "R++", Reconstruction: "R--", TimeMs: 10},
			wantErr: true,
		},
		{
			name:    "corrupt stored scramble",
			req:     Request{Discipline: "3by3", Scramble: "Q", Reconstruction: "R", TimeMs: 10},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Validate(ctx, tt.req)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocalValidator_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLocalValidator().Validate(ctx, Request{Discipline: "3by3", Scramble: "R", Reconstruction: "R'", TimeMs: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRemoteValidator(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/validate", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		switch got.Reconstruction {
		case "ok":
			w.Write([]byte(`{"valid": true}`))
		case "bad":
			w.Write([]byte(`{"valid": false}`))
		case "empty":
			w.Write([]byte(`{}`))
		default:
			http.Error(w, "exploded", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	v := NewRemoteValidator(srv.URL+"/", srv.Client())
	ctx := context.Background()

	verdict, err := v.Validate(ctx, Request{Discipline: "3by3", Scramble: "R", Reconstruction: "ok", TimeMs: 5})
	require.NoError(t, err)
	assert.Equal(t, VerdictValid, verdict)
	assert.Equal(t, 5, got.TimeMs)

	verdict, err = v.Validate(ctx, Request{Reconstruction: "bad"})
	require.NoError(t, err)
	assert.Equal(t, VerdictInvalid, verdict)

	_, err = v.Validate(ctx, Request{Reconstruction: "empty"})
	assert.Error(t, err)

	_, err = v.Validate(ctx, Request{Reconstruction: "boom"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

type validatorFunc func(ctx context.Context, req Request) (Verdict, error)

func (f validatorFunc) Validate(ctx context.Context, req Request) (Verdict, error) { return f(ctx, req) }

func TestGuard(t *testing.T) {
	logger := logging.Discard()
	ctx := context.Background()

	t.Run("passes verdicts through", func(t *testing.T) {
		g := NewGuard(validatorFunc(func(context.Context, Request) (Verdict, error) { return VerdictInvalid, nil }), time.Second, logger)
		v, err := g.Validate(ctx, Request{})
		require.NoError(t, err)
		assert.Equal(t, VerdictInvalid, v)
	})

	t.Run("errors become unavailable", func(t *testing.T) {
		g := NewGuard(validatorFunc(func(context.Context, Request) (Verdict, error) { return VerdictValid, errors.New("down") }), time.Second, logger)
		v, err := g.Validate(ctx, Request{})
		assert.ErrorIs(t, err, common.ErrValidatorUnavailable)
		assert.Empty(t, v)
	})

	t.Run("timeout becomes unavailable even if the validator ignores ctx", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)
		g := NewGuard(validatorFunc(func(context.Context, Request) (Verdict, error) {
			<-release
			return VerdictValid, nil
		}), 20*time.Millisecond, logger)

		start := time.Now()
		v, err := g.Validate(ctx, Request{})
		assert.ErrorIs(t, err, common.ErrValidatorUnavailable)
		assert.Empty(t, v)
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("panic becomes unavailable", func(t *testing.T) {
		g := NewGuard(validatorFunc(func(context.Context, Request) (Verdict, error) { panic("kaboom") }), time.Second, logger)
		_, err := g.Validate(ctx, Request{})
		assert.ErrorIs(t, err, common.ErrValidatorUnavailable)
	})

	t.Run("unknown verdict becomes unavailable", func(t *testing.T) {
		g := NewGuard(validatorFunc(func(context.Context, Request) (Verdict, error) { return "maybe", nil }), time.Second, logger)
		_, err := g.Validate(ctx, Request{})
		assert.ErrorIs(t, err, common.ErrValidatorUnavailable)
	})
}

func TestNewFromConfig(t *testing.T) {
	local := NewFromConfig(&config.Config{ValidatorMode: config.ValidatorModeLocal, ValidatorTimeout: time.Second}, logging.Discard())
	v, err := local.Validate(context.Background(), Request{Discipline: "2by2", Scramble: "R U", Reconstruction: "U' R'", TimeMs: 800})
	require.NoError(t, err)
	assert.Equal(t, VerdictValid, v)

	remote := NewFromConfig(&config.Config{ValidatorMode: config.ValidatorModeRemote, ValidatorURL: "http://127.0.0.1:1", ValidatorTimeout: 200 * time.Millisecond}, logging.Discard())
	_, err = remote.Validate(context.Background(), Request{Discipline: "2by2"})
	assert.ErrorIs(t, err, common.ErrValidatorUnavailable)
}
