package live

import (
	"time"

	"quizlive/cmd/internal/quiz"
)

// LiveStatus is the lifecycle status of a live session.
type LiveStatus string

const (
	StatusCreated   LiveStatus = "CREATED"
	StatusRunning   LiveStatus = "RUNNING"
	StatusCompleted LiveStatus = "COMPLETED"
)

// PositionNotStarted is the position sentinel before the session is RUNNING.
const PositionNotStarted = -1

// Live is one complete session snapshot as returned by commands and
// pushed on the stream. The key is immutable after creation; everything
// else is server-authoritative.
type Live struct {
	Key         string     `json:"key"`
	StartedOn   *time.Time `json:"startedOn"`
	UpdateOn    *time.Time `json:"updateOn"`
	CompletedOn *time.Time `json:"completedOn"`
	Status      LiveStatus `json:"status"`
	Engagement  Engagement `json:"engagement"`
	Evaluation  Evaluation `json:"evaluation"`
	Quiz        quiz.Quiz  `json:"quiz"`
	Teacher     Teacher    `json:"teacher"`
	Lobby       []string   `json:"lobby"`
}

// IsZero reports whether l is the empty sentinel (no session).
func (l Live) IsZero() bool { return l.Key == "" }

// CurrentPosition returns the teacher-controlled position index.
func (l Live) CurrentPosition() int { return l.Teacher.Control.CurrentPosition }

// CurrentItem returns the quiz item at the current position, or nil
// before the session has started (or on a stale out-of-bounds snapshot).
func (l Live) CurrentItem() quiz.Item {
	return l.Quiz.Items.At(l.CurrentPosition())
}

// Teacher identifies the session owner and carries the presenter control state.
type Teacher struct {
	Login   string  `json:"login"`
	Code    string  `json:"code"`
	Control Control `json:"control"`
}

// Control is the presenter-side state of the session.
type Control struct {
	CurrentPosition int `json:"currentPosition"`
}

// Engagement is the aggregate participation summary of a session.
// Counts are non-negative; the three percentuals sum to 100 modulo rounding.
type Engagement struct {
	ParticipantCount     int `json:"participantCount"`
	AnswersCorrect       int `json:"answersCorrect"`
	AnswersIncorrect     int `json:"answersIncorrect"`
	AnswersUnanswered    int `json:"answersUnanswered"`
	CorrectPercentual    int `json:"correctPercentual"`
	IncorrectPercentual  int `json:"incorrectPercentual"`
	UnansweredPercentual int `json:"unansweredPercentual"`
}

// Answer is one submitted answer of one participant at one position.
type Answer struct {
	Position int      `json:"position"`
	Answer   []string `json:"answer"`
	Hit      bool     `json:"hit"`
}

// Evaluation maps participant identifiers to their ordered answer records.
type Evaluation struct {
	Evaluation map[string][]Answer `json:"evaluation"`
}
