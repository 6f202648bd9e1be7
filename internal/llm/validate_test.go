package llm

import (
	"encoding/json"
	"errors"
	"testing"
)

func questionSchema() *Schema {
	return &Schema{
		Name:        "test-question",
		Description: "One multiple-choice question",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"question": map[string]any{"type": "string", "minLength": 1},
				"options": map[string]any{
					"type":     "array",
					"items":    map[string]any{"type": "string"},
					"minItems": 4,
					"maxItems": 4,
				},
				"answer": map[string]any{"type": "string"},
				"level":  map[string]any{"type": "string", "enum": []any{"Easy", "Medium", "Hard"}},
			},
			"required": []any{"question", "options", "answer"},
		},
	}
}

func TestValidateResponse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"valid", `{"question":"2+2?","options":["1","2","3","4"],"answer":"4","level":"Easy"}`, false},
		{"valid without optional", `{"question":"2+2?","options":["1","2","3","4"],"answer":"4"}`, false},
		{"missing required", `{"question":"2+2?","options":["1","2","3","4"]}`, true},
		{"wrong type", `{"question":"2+2?","options":"1,2,3,4","answer":"4"}`, true},
		{"too few options", `{"question":"2+2?","options":["1","2","4"],"answer":"4"}`, true},
		{"invalid enum", `{"question":"2+2?","options":["1","2","3","4"],"answer":"4","level":"Insane"}`, true},
		{"malformed JSON", `{not json}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateResponse(questionSchema(), json.RawMessage(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("validateResponse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var invErr *ErrInvalidResponse
				if !errors.As(err, &invErr) {
					t.Fatalf("expected ErrInvalidResponse, got: %T", err)
				}
				if string(invErr.Content) != tt.raw {
					t.Fatalf("error should carry the raw content, got %q", invErr.Content)
				}
			}
		})
	}
}

func TestValidateResponse_NilSchema(t *testing.T) {
	if err := validateResponse(nil, json.RawMessage(`{"anything":"goes"}`)); err != nil {
		t.Fatalf("expected no error with nil schema, got: %v", err)
	}
}

func TestValidateJSON_TopLevelArray(t *testing.T) {
	schema := &Schema{
		Name: "test-array",
		Definition: map[string]any{
			"type":     "array",
			"minItems": 2,
			"maxItems": 2,
			"items":    map[string]any{"type": "integer"},
		},
	}

	if err := ValidateJSON(schema, []byte(`[1,2]`)); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if err := ValidateJSON(schema, []byte(`[1,2,3]`)); err == nil {
		t.Fatal("expected error for too many items")
	}
}
