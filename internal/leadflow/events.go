package leadflow

import "github.com/m3rciful/leadbot/internal/quiz"

// Event is an inbound user action, decoded from the transport.
type Event interface {
	event()
}

// StartCommand is the /start command.
type StartCommand struct{}

// StartQuiz is a press of the pitch button.
type StartQuiz struct{}

// QuizAnswer is a press of an answer button.
type QuizAnswer struct {
	Answer quiz.Answer
}

// TextMessage is free text typed by the user.
type TextMessage struct {
	Text string
}

// ContactShared is a contact card sent by the user.
type ContactShared struct {
	Phone string
}

func (StartCommand) event()  {}
func (StartQuiz) event()     {}
func (QuizAnswer) event()    {}
func (TextMessage) event()   {}
func (ContactShared) event() {}

// CallbackEvent decodes button callback data.
// Data that is neither the pitch button nor a well-formed answer yields quiz.ErrMalformedPayload.
func CallbackEvent(data string) (Event, error) {
	if data == quiz.ActionStartQuiz {
		return StartQuiz{}, nil
	}
	a, err := quiz.DecodeAnswer(data)
	if err != nil {
		return nil, err
	}
	return QuizAnswer{Answer: a}, nil
}
