package facts

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Answer is one questionnaire answer as posted by the client. It is one of
// AnswerScalar, AnswerArray or AnswerObject.
type Answer interface {
	isAnswer()
}

// AnswerScalar is a string, number, bool or null answer.
type AnswerScalar struct {
	Value Value
}

// AnswerArray is a list answer. Items are kept raw so the mapper can reject
// lists that contain objects or nested lists.
type AnswerArray struct {
	Items []any
}

// AnswerObject is a structured answer such as an address.
type AnswerObject struct {
	Fields map[string]any
}

func (AnswerScalar) isAnswer() {}
func (AnswerArray) isAnswer()  {}
func (AnswerObject) isAnswer() {}

// ParseAnswer decodes a raw JSON answer.
func ParseAnswer(raw json.RawMessage) (Answer, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return AnswerScalar{Value: Null()}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode answer: %w", err)
	}
	return AnswerFromAny(v)
}

// AnswerFromAny classifies an already decoded value.
func AnswerFromAny(v any) (Answer, error) {
	switch x := v.(type) {
	case map[string]any:
		return AnswerObject{Fields: x}, nil
	case []any:
		return AnswerArray{Items: x}, nil
	case []string:
		items := make([]any, len(x))
		for i, s := range x {
			items[i] = s
		}
		return AnswerArray{Items: items}, nil
	}
	sv, ok := scalarFromAny(v)
	if !ok {
		return nil, fmt.Errorf("unsupported answer type %T", v)
	}
	return AnswerScalar{Value: sv}, nil
}
