// Package classifier estimates the difficulty of a free-text math problem
// and the concepts needed to solve it.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/abhisek/mathpad/internal/apperr"
	"github.com/abhisek/mathpad/internal/gateway"
	"github.com/abhisek/mathpad/internal/llm"
)

// Difficulties are the possible classifications, easiest first.
var Difficulties = []string{"Easy", "Medium", "Hard", "Advanced"}

// Result is the parsed analysis.
type Result struct {
	Difficulty       string   `json:"difficulty"`
	RequiredConcepts []string `json:"required_concepts"`
}

// Generator is the model call the classifier needs.
type Generator interface {
	Generate(ctx context.Context, purpose, prompt string) (string, error)
}

// AnalysisSchema is the JSON shape of a classification.
var AnalysisSchema = &llm.Schema{
	Name:        "problem-analysis",
	Description: "Difficulty and required concepts of a math problem",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"difficulty": map[string]any{"type": "string"},
			"required_concepts": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required": []any{"difficulty", "required_concepts"},
	},
}

const parseFailure = "the model returned an invalid format; could not parse the analysis"

// Prompt builds the classification prompt.
func Prompt(problem string) string {
	return fmt.Sprintf("Analyze this math problem and return JSON with: difficulty (%s), required_concepts (list of strings). Problem: %s",
		strings.Join(Difficulties, ", "), problem)
}

// Analyze classifies problem.
func Analyze(ctx context.Context, gen Generator, problem string) (*Result, error) {
	problem = strings.TrimSpace(problem)
	if problem == "" {
		return nil, apperr.Validation("please enter a math problem to analyze")
	}

	raw, err := gen.Generate(ctx, llm.PurposeClassify, Prompt(problem))
	if err != nil {
		return nil, fmt.Errorf("analyzing problem: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a classification, normalizing the difficulty's case.
func Parse(raw string) (*Result, error) {
	body := gateway.StripFence(raw)

	if err := llm.ValidateJSON(AnalysisSchema, []byte(body)); err != nil {
		return nil, apperr.Parse(parseFailure, raw, err)
	}

	var r Result
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return nil, apperr.Parse(parseFailure, raw, err)
	}

	d, ok := normalizeDifficulty(r.Difficulty)
	if !ok {
		return nil, apperr.Parse(parseFailure, raw, fmt.Errorf("unknown difficulty %q", r.Difficulty))
	}
	r.Difficulty = d

	concepts := r.RequiredConcepts[:0]
	for _, c := range r.RequiredConcepts {
		if c = strings.TrimSpace(c); c != "" {
			concepts = append(concepts, c)
		}
	}
	r.RequiredConcepts = concepts
	return &r, nil
}

func normalizeDifficulty(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, d := range Difficulties {
		if strings.EqualFold(s, d) {
			return d, true
		}
	}
	return "", false
}
