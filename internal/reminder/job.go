package reminder

import (
	"time"

	"github.com/google/uuid"
)

// Job is one recurring reminder owned by a chat.
//
// Only the scheduler mutates NextFireAt, LastFiredAt and Fires, and only
// while holding its own lock.
type Job struct {
	ID         string
	Text       string
	Recurrence Recurrence
	ChatID     int64
	CreatedAt  time.Time

	NextFireAt  time.Time
	LastFiredAt time.Time
	Fires       uint64
}

// NewJob builds a job; NextFireAt is left for the scheduler to compute.
func NewJob(chatID int64, text string, r Recurrence, now time.Time) *Job {
	return &Job{
		ID:         uuid.NewString(),
		Text:       text,
		Recurrence: r,
		ChatID:     chatID,
		CreatedAt:  now,
	}
}

// State is the position of a job in its Pending -> Due -> Fired cycle.
type State int

const (
	StatePending State = iota
	StateDue
	StateFired
)

func (s State) String() string {
	switch s {
	case StateDue:
		return "due"
	case StateFired:
		return "fired"
	default:
		return "pending"
	}
}

// StateAt reports whether the job is due at now. Fired is transient: the
// scheduler moves a fired job back to Pending in the same step.
func (j *Job) StateAt(now time.Time) State {
	if !j.NextFireAt.IsZero() && !now.Before(j.NextFireAt) {
		return StateDue
	}
	return StatePending
}
