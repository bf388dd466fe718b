// Package quiz holds the qualifying questions shown before the lead form
// and the callback payloads of their answer buttons.
package quiz

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// ActionStartQuiz is the callback data of the pitch button.
	ActionStartQuiz = "start_quiz"
	// AnswerPrefix starts the callback data of every answer button.
	AnswerPrefix = "quiz_a_"
)

var (
	// ErrMalformedPayload is returned for callback data that is not quiz_a_<q>_<o>.
	ErrMalformedPayload = errors.New("quiz: malformed answer payload")
	// ErrOutOfRange is returned when an answer points outside the catalogue.
	ErrOutOfRange = errors.New("quiz: answer out of range")
)

// Question is one multiple-choice question.
type Question struct {
	Text    string
	Options []string
}

// Answer identifies the chosen option of a question by index.
type Answer struct {
	Question int
	Option   int
}

// Quiz is an ordered list of questions.
type Quiz []Question

// Default returns the qualifying questions of the GPT-invest funnel.
func Default() Quiz {
	return Quiz{
		{
			Text:    "Какой суммы в месяц Вам было бы достаточно для исполнения своих желаний?",
			Options: []string{"1000 $", "5 000 $", "10 000 $", "Больше 10 000 $"},
		},
		{
			Text:    "С какой целью Вы хотите увеличить достаток?",
			Options: []string{"Выплачу кредит/ипотеку", "Помогу родным", "Инвестирую", "Куплю авто/квартиру"},
		},
		{
			Text:    "Акции каких компаний Вас интересуют?",
			Options: []string{"Международных", "Узбекских", "Смешанных"},
		},
		{
			Text:    "Откуда Вы узнали о проекте GPT-invest?",
			Options: []string{"Наружная реклама", "Интернет реклама", "Рекомендации знакомых"},
		},
	}
}

// EncodeAnswer builds the callback data of an answer button.
func EncodeAnswer(question, option int) string {
	return AnswerPrefix + strconv.Itoa(question) + "_" + strconv.Itoa(option)
}

// DecodeAnswer parses callback data produced by EncodeAnswer.
func DecodeAnswer(data string) (Answer, error) {
	parts := strings.Split(data, "_")
	if len(parts) != 4 || parts[0] != "quiz" || parts[1] != "a" {
		return Answer{}, fmt.Errorf("%w: %q", ErrMalformedPayload, data)
	}
	q, err := parseIndex(parts[2])
	if err != nil {
		return Answer{}, fmt.Errorf("%w: %q", ErrMalformedPayload, data)
	}
	o, err := parseIndex(parts[3])
	if err != nil {
		return Answer{}, fmt.Errorf("%w: %q", ErrMalformedPayload, data)
	}
	return Answer{Question: q, Option: o}, nil
}

func parseIndex(s string) (int, error) {
	if s == "" || strings.TrimLeft(s, "0123456789") != "" {
		return 0, strconv.ErrSyntax
	}
	return strconv.Atoi(s)
}

// Len returns the number of questions.
func (q Quiz) Len() int { return len(q) }

// Question returns the question at index i.
func (q Quiz) Question(i int) (Question, error) {
	if i < 0 || i >= len(q) {
		return Question{}, fmt.Errorf("%w: question %d of %d", ErrOutOfRange, i, len(q))
	}
	return q[i], nil
}

// Resolve returns the option text chosen by a.
func (q Quiz) Resolve(a Answer) (string, error) {
	question, err := q.Question(a.Question)
	if err != nil {
		return "", err
	}
	if a.Option < 0 || a.Option >= len(question.Options) {
		return "", fmt.Errorf("%w: option %d of %d", ErrOutOfRange, a.Option, len(question.Options))
	}
	return question.Options[a.Option], nil
}

// IsLast reports whether question i is the final one.
func (q Quiz) IsLast(i int) bool {
	return i == len(q)-1
}
