// Package quiz runs a generated five-question multiple-choice quiz.
package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/abhisek/mathpad/internal/apperr"
	"github.com/abhisek/mathpad/internal/gateway"
	"github.com/abhisek/mathpad/internal/llm"
)

const (
	QuestionCount = 5
	OptionCount   = 4
)

// Topics and Difficulties are the selectable quiz parameters.
var (
	Topics       = []string{"Algebra", "Calculus", "Geometry", "Trigonometry"}
	Difficulties = []string{"Easy", "Medium", "Hard"}
)

// Phase is the quiz lifecycle state.
type Phase string

const (
	NotStarted Phase = "not_started"
	InProgress Phase = "in_progress"
	Complete   Phase = "complete"
)

// Question is one multiple-choice question. Answer equals one of Options.
type Question struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
}

// Generator is the model call the quiz needs.
type Generator interface {
	Generate(ctx context.Context, purpose, prompt string) (string, error)
}

// Quiz holds one attempt. The zero value is NotStarted.
type Quiz struct {
	Phase      Phase      `json:"phase"`
	Topic      string     `json:"topic,omitempty"`
	Difficulty string     `json:"difficulty,omitempty"`
	Questions  []Question `json:"questions,omitempty"`
	Index      int        `json:"current_index"`
	Answers    []string   `json:"user_answers,omitempty"`
}

// ReviewRow contrasts the user's answer with the correct one.
type ReviewRow struct {
	Number     int    `json:"number"`
	Question   string `json:"question"`
	UserAnswer string `json:"user_answer"`
	Answer     string `json:"answer"`
	Correct    bool   `json:"correct"`
}

// Prompt builds the generation prompt for topic and difficulty.
func Prompt(topic, difficulty string) string {
	return fmt.Sprintf("Create a %d-question multiple-choice quiz about %s at a %s level. "+
		"Return the quiz as a valid JSON list of objects. Each object should have these keys: "+
		"'question', 'options' (a list of %d strings), and 'answer' (the correct option string).",
		QuestionCount, topic, difficulty, OptionCount)
}

// State returns the phase, treating the zero value as NotStarted.
func (q *Quiz) State() Phase {
	if q.Phase == "" {
		return NotStarted
	}
	return q.Phase
}

// Start generates a new quiz. On any failure q is left unchanged.
func (q *Quiz) Start(ctx context.Context, gen Generator, topic, difficulty string) error {
	if q.State() != NotStarted {
		return apperr.Validation("finish or restart the current quiz before starting another")
	}
	if !slices.Contains(Topics, topic) {
		return apperr.Validation("unknown topic %q", topic)
	}
	if !slices.Contains(Difficulties, difficulty) {
		return apperr.Validation("unknown difficulty %q", difficulty)
	}

	raw, err := gen.Generate(ctx, llm.PurposeQuiz, Prompt(topic, difficulty))
	if err != nil {
		return fmt.Errorf("generating quiz: %w", err)
	}

	questions, err := Parse(raw)
	if err != nil {
		return err
	}

	*q = Quiz{
		Phase:      InProgress,
		Topic:      topic,
		Difficulty: difficulty,
		Questions:  questions,
	}
	return nil
}

// Parse decodes and validates a generated quiz. Any defect rejects the
// whole set with a parse error carrying raw.
func Parse(raw string) ([]Question, error) {
	body := gateway.StripFence(raw)

	if err := llm.ValidateJSON(SetSchema, []byte(body)); err != nil {
		return nil, apperr.Parse("failed to generate or parse quiz", raw, err)
	}

	var questions []Question
	if err := json.Unmarshal([]byte(body), &questions); err != nil {
		return nil, apperr.Parse("failed to generate or parse quiz", raw, err)
	}

	validators := DefaultValidators()
	for i := range questions {
		for _, v := range validators {
			if verr := v.Validate(&questions[i]); verr != nil {
				verr.Index = i
				return nil, apperr.Parse("failed to generate or parse quiz", raw, verr)
			}
		}
	}
	return questions, nil
}

// Current returns the question awaiting an answer.
func (q *Quiz) Current() (Question, bool) {
	if q.State() != InProgress || q.Index >= len(q.Questions) {
		return Question{}, false
	}
	return q.Questions[q.Index], true
}

// Submit records an answer to the current question and advances. An empty
// or unknown answer leaves the quiz untouched.
func (q *Quiz) Submit(answer string) error {
	cur, ok := q.Current()
	if !ok {
		return apperr.Validation("no quiz question is awaiting an answer")
	}
	if strings.TrimSpace(answer) == "" {
		return apperr.Validation("please select an answer")
	}
	if !slices.Contains(cur.Options, answer) {
		return apperr.Validation("%q is not one of the options", answer)
	}

	q.Answers = append(q.Answers, answer)
	q.Index++
	if q.Index == len(q.Questions) {
		q.Phase = Complete
	}
	return nil
}

// Score counts answers matching the correct option.
func (q *Quiz) Score() int {
	n := 0
	for i, a := range q.Answers {
		if i < len(q.Questions) && a == q.Questions[i].Answer {
			n++
		}
	}
	return n
}

// Review returns one row per answered question.
func (q *Quiz) Review() []ReviewRow {
	rows := make([]ReviewRow, 0, len(q.Answers))
	for i, a := range q.Answers {
		if i >= len(q.Questions) {
			break
		}
		qq := q.Questions[i]
		rows = append(rows, ReviewRow{
			Number:     i + 1,
			Question:   qq.Question,
			UserAnswer: a,
			Answer:     qq.Answer,
			Correct:    a == qq.Answer,
		})
	}
	return rows
}

// Restart discards the quiz.
func (q *Quiz) Restart() {
	*q = Quiz{Phase: NotStarted}
}
