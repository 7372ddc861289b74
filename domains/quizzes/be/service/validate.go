package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	sqlassets "github.com/novalearn-io/novalearn/database"
)

const questionSchemaURL = "https://novalearn.io/schemas/quiz-questions.json"

// QuestionValidator checks quiz question payloads against the embedded JSON
// Schema before they reach storage. Compile once, share freely.
type QuestionValidator struct {
	schema *jsonschema.Schema
}

// NewQuestionValidator compiles the embedded question schema.
func NewQuestionValidator() (*QuestionValidator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(questionSchemaURL, strings.NewReader(sqlassets.QuizQuestionsSchema)); err != nil {
		return nil, fmt.Errorf("add question schema: %w", err)
	}
	schema, err := compiler.Compile(questionSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile question schema: %w", err)
	}
	return &QuestionValidator{schema: schema}, nil
}

// Validate returns ErrInvalidQuestions wrapping the schema violation when the
// payload does not conform.
func (v *QuestionValidator) Validate(questions json.RawMessage) error {
	var decoded any
	if err := json.Unmarshal(questions, &decoded); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidQuestions, err)
	}
	if err := v.schema.Validate(decoded); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidQuestions, err)
	}
	return nil
}
