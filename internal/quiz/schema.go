package quiz

import "github.com/abhisek/mathpad/internal/llm"

// SetSchema is the JSON shape a generated quiz must have.
var SetSchema = &llm.Schema{
	Name:        "quiz-set",
	Description: "A five-question multiple-choice quiz",
	Definition: map[string]any{
		"type":     "array",
		"minItems": QuestionCount,
		"maxItems": QuestionCount,
		"items": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"question": map[string]any{
					"type":      "string",
					"minLength": 1,
				},
				"options": map[string]any{
					"type":     "array",
					"minItems": OptionCount,
					"maxItems": OptionCount,
					"items": map[string]any{
						"type":      "string",
						"minLength": 1,
					},
				},
				"answer": map[string]any{
					"type":      "string",
					"minLength": 1,
				},
			},
			"required": []any{"question", "options", "answer"},
		},
	},
}
