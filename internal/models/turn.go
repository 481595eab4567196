package models

import (
	"encoding/json"
	"fmt"
)

// Turn is one question/answer exchange of a conversation.
type Turn struct {
	Message string `json:"message"`
	Answer  string `json:"answer"`
}

// UnmarshalJSON also accepts the two-element array form
// ["message", "answer"] written by older history files.
func (t *Turn) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err == nil {
		if len(pair) != 2 {
			return fmt.Errorf("history turn must have 2 elements, got %d", len(pair))
		}
		t.Message, t.Answer = pair[0], pair[1]
		return nil
	}

	type turn Turn
	var v turn
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*t = Turn(v)
	return nil
}
