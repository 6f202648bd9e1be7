package quiz

import (
	"fmt"
	"strings"
)

// Validator checks one generated question.
type Validator interface {
	Name() string
	Validate(q *Question) *ValidationError
}

// ValidationError describes why a generated question was rejected.
type ValidationError struct {
	Validator string
	Index     int
	Message   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("question %d: validator %q: %s", e.Index+1, e.Validator, e.Message)
}

// DefaultValidators run on every generated set, in order.
func DefaultValidators() []Validator {
	return []Validator{
		&StructuralValidator{},
		&AnswerValidator{},
	}
}

// StructuralValidator checks the question text and option list.
type StructuralValidator struct{}

func (v *StructuralValidator) Name() string { return "structural" }

func (v *StructuralValidator) Validate(q *Question) *ValidationError {
	if strings.TrimSpace(q.Question) == "" {
		return &ValidationError{Validator: v.Name(), Message: "question is empty"}
	}
	if len(q.Options) != OptionCount {
		return &ValidationError{Validator: v.Name(), Message: fmt.Sprintf("expected %d options, got %d", OptionCount, len(q.Options))}
	}
	seen := make(map[string]bool, len(q.Options))
	for _, o := range q.Options {
		key := strings.ToLower(strings.TrimSpace(o))
		if key == "" {
			return &ValidationError{Validator: v.Name(), Message: "option is empty"}
		}
		if seen[key] {
			return &ValidationError{Validator: v.Name(), Message: fmt.Sprintf("duplicate option %q", o)}
		}
		seen[key] = true
	}
	return nil
}

// AnswerValidator requires the answer to be one of the options. A match
// that differs only in case or surrounding space is rewritten to the
// option's exact text.
type AnswerValidator struct{}

func (v *AnswerValidator) Name() string { return "answer" }

func (v *AnswerValidator) Validate(q *Question) *ValidationError {
	for _, o := range q.Options {
		if o == q.Answer {
			return nil
		}
	}
	want := strings.TrimSpace(q.Answer)
	for _, o := range q.Options {
		if strings.EqualFold(strings.TrimSpace(o), want) {
			q.Answer = o
			return nil
		}
	}
	return &ValidationError{Validator: v.Name(), Message: fmt.Sprintf("answer %q is not one of the options", q.Answer)}
}
