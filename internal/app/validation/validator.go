package validation

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vcontests/vscubing-back/internal/common"
	"github.com/vcontests/vscubing-back/internal/platform/config"
	"github.com/vcontests/vscubing-back/internal/platform/metrics"
)

type Verdict string

const (
	VerdictValid   Verdict = "valid"
	VerdictInvalid Verdict = "invalid"
)

type Request struct {
	Discipline     string `json:"discipline"`
	Scramble       string `json:"scramble"`
	Reconstruction string `json:"reconstruction"`
	TimeMs         int    `json:"time_ms"`
}

// Validator judges whether a reconstruction solves a scramble. A non-nil
// error means no verdict was reached.
type Validator interface {
	Validate(ctx context.Context, req Request) (Verdict, error)
}

// Guard bounds a Validator with a timeout and folds every failure,
// including panics, into common.ErrValidatorUnavailable.
type Guard struct {
	inner   Validator
	timeout time.Duration
	logger  *slog.Logger
}

func NewGuard(inner Validator, timeout time.Duration, logger *slog.Logger) *Guard {
	return &Guard{inner: inner, timeout: timeout, logger: logger}
}

type outcome struct {
	verdict Verdict
	err     error
}

func (g *Guard) Validate(ctx context.Context, req Request) (Verdict, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("validator panic: %v", r)}
			}
		}()
		v, err := g.inner.Validate(ctx, req)
		done <- outcome{verdict: v, err: err}
	}()

	var res outcome
	select {
	case res = <-done:
	case <-ctx.Done():
		res = outcome{err: ctx.Err()}
	}

	if res.err == nil && res.verdict != VerdictValid && res.verdict != VerdictInvalid {
		res.err = fmt.Errorf("validator returned unknown verdict %q", res.verdict)
	}
	if res.err != nil {
		metrics.ValidatorDuration.WithLabelValues("unavailable").Observe(time.Since(start).Seconds())
		g.logger.WarnContext(ctx, "Reconstruction validator produced no verdict",
			"discipline", req.Discipline, "error", res.err)
		return "", fmt.Errorf("%w: %v", common.ErrValidatorUnavailable, res.err)
	}
	metrics.ValidatorDuration.WithLabelValues(string(res.verdict)).Observe(time.Since(start).Seconds())
	return res.verdict, nil
}

// NewFromConfig builds the guarded validator selected by VALIDATOR_MODE.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) Validator {
	var inner Validator
	switch cfg.ValidatorMode {
	case config.ValidatorModeRemote:
		inner = NewRemoteValidator(cfg.ValidatorURL, &http.Client{Timeout: cfg.ValidatorTimeout})
	default:
		inner = NewLocalValidator()
	}
	return NewGuard(inner, cfg.ValidatorTimeout, logger)
}
