package service

import (
	"context"
	"fmt"
	"time"

	"github.com/vcontests/vscubing-back/internal/domain/model"
)

// FinishInput is what a policy gets to look at when deciding whether an
// active session is done.
type FinishInput struct {
	Session  *model.RoundSession
	Contest  *model.Contest
	Progress *RoundProgress
	Now      time.Time
}

// FinishPolicy decides when a round session moves to finished.
type FinishPolicy interface {
	ShouldFinish(ctx context.Context, in FinishInput) (bool, model.FinishReason, error)
}

// AllSubmittedPolicy finishes a session once no scramble is left to attempt.
type AllSubmittedPolicy struct{}

func (AllSubmittedPolicy) ShouldFinish(_ context.Context, in FinishInput) (bool, model.FinishReason, error) {
	if in.Progress == nil || in.Progress.Current != nil {
		return false, "", nil
	}
	return true, model.FinishReasonAllSubmitted, nil
}

// ContestEndedPolicy finishes every session of a contest that is over.
type ContestEndedPolicy struct{}

func (ContestEndedPolicy) ShouldFinish(_ context.Context, in FinishInput) (bool, model.FinishReason, error) {
	if in.Contest == nil || !in.Contest.HasEnded(in.Now) {
		return false, "", nil
	}
	return true, model.FinishReasonContestEnded, nil
}

// ManualPolicy never finishes a session on its own; only an explicit
// Finish call does.
type ManualPolicy struct{}

func (ManualPolicy) ShouldFinish(context.Context, FinishInput) (bool, model.FinishReason, error) {
	return false, "", nil
}

// AnyOf finishes when the first of its policies says so.
func AnyOf(policies ...FinishPolicy) FinishPolicy {
	return anyOf(policies)
}

type anyOf []FinishPolicy

func (a anyOf) ShouldFinish(ctx context.Context, in FinishInput) (bool, model.FinishReason, error) {
	for _, p := range a {
		done, reason, err := p.ShouldFinish(ctx, in)
		if err != nil {
			return false, "", err
		}
		if done {
			return true, reason, nil
		}
	}
	return false, "", nil
}

const (
	PolicyAllSubmitted = "all_submitted"
	PolicyContestEnded = "contest_ended"
	PolicyManual       = "manual"
)

// PolicyFromNames builds the policy configured in FINISH_POLICY.
func PolicyFromNames(names []string) (FinishPolicy, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("no finish policy configured")
	}
	policies := make([]FinishPolicy, 0, len(names))
	for _, name := range names {
		switch name {
		case PolicyAllSubmitted:
			policies = append(policies, AllSubmittedPolicy{})
		case PolicyContestEnded:
			policies = append(policies, ContestEndedPolicy{})
		case PolicyManual:
			policies = append(policies, ManualPolicy{})
		default:
			return nil, fmt.Errorf("unknown finish policy %q", name)
		}
	}
	if len(policies) == 1 {
		return policies[0], nil
	}
	return AnyOf(policies...), nil
}
