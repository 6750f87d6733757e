package verification

import (
	"time"

	"collegestar/notes-portal/notes-portal-backend/pkg/workflows"
)

type Status string

const (
	StatusIdle     Status = "idle"
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusTimeout  Status = "timeout"
	StatusError    Status = "error"
)

// Terminal reports whether a session in this status has finished.
func (s Status) Terminal() bool {
	return s == StatusVerified || s == StatusTimeout || s == StatusError
}

// Session is the observable state of one verification attempt.
type Session struct {
	Status       Status        `json:"status"`
	StartedAt    time.Time     `json:"started_at"`
	Timeout      time.Duration `json:"timeout"`
	Interval     time.Duration `json:"interval"`
	ErrorMessage string        `json:"error_message,omitempty"`
}

// Only pending can time out or be verified by a poll; every state may be
// restarted by Start.
func newStatusMachine() *workflows.StateMachine {
	return workflows.NewStateMachine(map[string][]string{
		string(StatusIdle):     {string(StatusPending), string(StatusError)},
		string(StatusPending):  {string(StatusPending), string(StatusVerified), string(StatusTimeout), string(StatusError)},
		string(StatusVerified): {string(StatusPending), string(StatusError)},
		string(StatusTimeout):  {string(StatusPending), string(StatusError)},
		string(StatusError):    {string(StatusPending), string(StatusError)},
	})
}
