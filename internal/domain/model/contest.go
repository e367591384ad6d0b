package model

import "time"

type Contest struct {
	ID            string     `json:"id"`
	ContestNumber int        `json:"contest_number"`
	Start         time.Time  `json:"start"`
	End           *time.Time `json:"end,omitempty"`
	Ongoing       bool       `json:"ongoing"`
	CreatedAt     time.Time  `json:"created_at"`
}

// HasEnded reports whether the contest is closed at now, either by its
// end time or because it is no longer flagged ongoing.
func (c *Contest) HasEnded(now time.Time) bool {
	if !c.Ongoing {
		return true
	}
	return c.End != nil && !now.Before(*c.End)
}

type Discipline struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Scramble struct {
	ID           string `json:"id"`
	ContestID    string `json:"contest_id"`
	DisciplineID string `json:"discipline_id"`
	Position     int    `json:"position"`
	Extra        bool   `json:"extra"`
	Moves        string `json:"scramble"`
}
