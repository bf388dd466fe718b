package state

import (
	"errors"
	"fmt"
)

// Step is the form field currently awaited from the user.
type Step int

const (
	// StepNone means no form field is awaited: the quiz is running or the session is idle.
	StepNone Step = iota
	StepName
	StepSurname
	StepPhone
	StepEmail
)

// ErrStepRegression is returned when a transition would move a session backwards.
var ErrStepRegression = errors.New("state: step regression")

func (s Step) String() string {
	switch s {
	case StepNone:
		return "none"
	case StepName:
		return "name"
	case StepSurname:
		return "surname"
	case StepPhone:
		return "phone"
	case StepEmail:
		return "email"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// Valid reports whether s is one of the declared steps.
func (s Step) Valid() bool {
	return s >= StepNone && s <= StepEmail
}

// Session is one user's in-progress lead.
type Session struct {
	QuizAnswers []string
	Step        Step
	Name        string
	Surname     string
	Phone       string
	Email       string
}

// Advance moves the session to step to. Staying on the current step is a no-op;
// moving backwards returns ErrStepRegression and leaves the session unchanged.
func (s *Session) Advance(to Step) error {
	if !to.Valid() {
		return fmt.Errorf("state: unknown step %d", int(to))
	}
	if to < s.Step {
		return fmt.Errorf("%w: %s -> %s", ErrStepRegression, s.Step, to)
	}
	s.Step = to
	return nil
}

// InForm reports whether the session is collecting form fields.
func (s *Session) InForm() bool {
	return s.Step != StepNone
}
