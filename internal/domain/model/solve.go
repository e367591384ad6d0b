package model

import "time"

type SubmissionState string

const (
	StatePending        SubmissionState = "pending"
	StateSubmitted      SubmissionState = "submitted"
	StateChangedToExtra SubmissionState = "changed_to_extra"
)

func (s SubmissionState) Valid() bool {
	switch s {
	case StatePending, StateSubmitted, StateChangedToExtra:
		return true
	}
	return false
}

type Solve struct {
	ID              string          `json:"id"`
	ContestID       string          `json:"contest_id"`
	DisciplineID    string          `json:"discipline_id"`
	UserID          string          `json:"user_id"`
	ScrambleID      string          `json:"scramble_id"`
	RoundSessionID  string          `json:"round_session_id"`
	TimeMs          *int            `json:"time_ms,omitempty"`
	IsDNF           bool            `json:"is_dnf"`
	Reconstruction  string          `json:"reconstruction"`
	SubmissionState SubmissionState `json:"submission_state"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// SolveKey identifies the single solve a user may record per scramble.
type SolveKey struct {
	ContestID    string
	DisciplineID string
	UserID       string
	ScrambleID   string
}
