package model

import "time"

// RoundSessionKey identifies the single session a user may hold per round.
type RoundSessionKey struct {
	ContestID    string
	DisciplineID string
	UserID       string
}

type RoundSession struct {
	ID           string     `json:"id"`
	ContestID    string     `json:"contest_id"`
	DisciplineID string     `json:"discipline_id"`
	UserID       string     `json:"user_id"`
	Submitted    bool       `json:"submitted"`
	IsFinished   bool       `json:"is_finished"`
	CreatedAt    time.Time  `json:"created_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

func (s *RoundSession) Key() RoundSessionKey {
	return RoundSessionKey{ContestID: s.ContestID, DisciplineID: s.DisciplineID, UserID: s.UserID}
}

type FinishReason string

const (
	FinishReasonAllSubmitted FinishReason = "all_submitted"
	FinishReasonContestEnded FinishReason = "contest_ended"
	FinishReasonManual       FinishReason = "manual"
)
