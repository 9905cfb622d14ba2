package generator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// quizSchema is the shape every generated payload must have before it is
// decoded.
const quizSchema = `{
  "type": "object",
  "required": ["questions"],
  "properties": {
    "questions": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["question", "answer"],
        "properties": {
          "question":    {"type": "string", "minLength": 1},
          "options":     {"type": "array", "items": {"type": "string"}},
          "answer":      {"type": "string", "minLength": 1},
          "explanation": {"type": "string"},
          "concept":     {"type": "string"}
        }
      }
    }
  }
}`

var compiledSchema = mustSchema(quizSchema)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("generator: invalid quiz schema: %v", err))
	}
	return s
}

// checkSchema validates raw JSON against the quiz schema.
func checkSchema(raw []byte) error {
	result, err := compiledSchema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrMalformedOutput, strings.Join(msgs, "; "))
}

// ErrMalformedOutput is returned when the model's reply is not a usable quiz.
var ErrMalformedOutput = errors.New("model returned a malformed quiz")
