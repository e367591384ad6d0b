// Package view holds the response bodies of every endpoint. Each endpoint
// renders a fixed struct so no field reaches a client unless it is listed
// here.
package view

import (
	"time"

	"github.com/vcontests/vscubing-back/internal/app/service"
	"github.com/vcontests/vscubing-back/internal/domain/model"
)

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type Auth struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

func NewAuth(res *service.AuthResult) Auth {
	return Auth{
		User:  User{ID: res.User.ID, Username: res.User.Username, Role: res.User.Role},
		Token: res.Token,
	}
}

type Contest struct {
	ContestNumber int        `json:"contest_number"`
	Start         time.Time  `json:"start"`
	End           *time.Time `json:"end"`
	Ongoing       bool       `json:"ongoing"`
}

func NewContest(c *model.Contest) Contest {
	return Contest{ContestNumber: c.ContestNumber, Start: c.Start, End: c.End, Ongoing: c.Ongoing}
}

func NewContests(cs []model.Contest) []Contest {
	out := make([]Contest, len(cs))
	for i := range cs {
		out[i] = NewContest(&cs[i])
	}
	return out
}

type Discipline struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

func NewDisciplines(ds []model.Discipline) []Discipline {
	out := make([]Discipline, len(ds))
	for i, d := range ds {
		out[i] = Discipline{Slug: d.Slug, Name: d.Name}
	}
	return out
}

type Scramble struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
	Extra    bool   `json:"extra"`
	Moves    string `json:"scramble"`
}

func NewScramble(s *model.Scramble) *Scramble {
	if s == nil {
		return nil
	}
	return &Scramble{ID: s.ID, Position: s.Position, Extra: s.Extra, Moves: s.Moves}
}

// Solve is the short form used in lists. It leaves the reconstruction out.
type Solve struct {
	ID              string    `json:"id"`
	ScrambleID      string    `json:"scramble_id"`
	TimeMs          *int      `json:"time_ms"`
	IsDNF           bool      `json:"is_dnf"`
	SubmissionState string    `json:"submission_state"`
	CreatedAt       time.Time `json:"created_at"`
}

func NewSolve(s *model.Solve) *Solve {
	if s == nil {
		return nil
	}
	return &Solve{
		ID:              s.ID,
		ScrambleID:      s.ScrambleID,
		TimeMs:          s.TimeMs,
		IsDNF:           s.IsDNF,
		SubmissionState: string(s.SubmissionState),
		CreatedAt:       s.CreatedAt,
	}
}

func NewSolves(ss []model.Solve) []Solve {
	out := make([]Solve, len(ss))
	for i := range ss {
		out[i] = *NewSolve(&ss[i])
	}
	return out
}

type SolveDetail struct {
	Solve
	Reconstruction string   `json:"reconstruction"`
	Scramble       Scramble `json:"scramble"`
}

func NewSolveDetail(d *service.SolveDetails) SolveDetail {
	return SolveDetail{
		Solve:          *NewSolve(d.Solve),
		Reconstruction: d.Solve.Reconstruction,
		Scramble:       *NewScramble(d.Scramble),
	}
}

type CurrentSolve struct {
	ContestNumber    int       `json:"contest_number"`
	Discipline       string    `json:"discipline"`
	Scramble         *Scramble `json:"scramble"`
	Solve            *Solve    `json:"solve"`
	CanChangeToExtra bool      `json:"can_change_to_extra"`
	SessionFinished  bool      `json:"session_finished"`
}

func NewCurrentSolve(s *service.CurrentSolveState) CurrentSolve {
	return CurrentSolve{
		ContestNumber:    s.Contest.ContestNumber,
		Discipline:       s.Discipline.Slug,
		Scramble:         NewScramble(s.Scramble),
		Solve:            NewSolve(s.Solve),
		CanChangeToExtra: s.CanChangeToExtra,
		SessionFinished:  s.SessionFinished,
	}
}

type RoundSession struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	IsFinished bool       `json:"is_finished"`
	FinishedAt *time.Time `json:"finished_at"`
}

func NewRoundSession(s *model.RoundSession) RoundSession {
	return RoundSession{ID: s.ID, UserID: s.UserID, IsFinished: s.IsFinished, FinishedAt: s.FinishedAt}
}

type RoundSessionWithSolves struct {
	RoundSession
	Solves []Solve `json:"solves"`
}

type RoundResults struct {
	ContestNumber int                      `json:"contest_number"`
	Discipline    string                   `json:"discipline"`
	Sessions      []RoundSessionWithSolves `json:"sessions"`
}

func NewRoundResults(c *model.Contest, d *model.Discipline, sessions []service.SessionWithSolves) RoundResults {
	out := RoundResults{ContestNumber: c.ContestNumber, Discipline: d.Slug, Sessions: make([]RoundSessionWithSolves, len(sessions))}
	for i := range sessions {
		out.Sessions[i] = RoundSessionWithSolves{
			RoundSession: NewRoundSession(&sessions[i].Session),
			Solves:       NewSolves(sessions[i].Solves),
		}
	}
	return out
}
