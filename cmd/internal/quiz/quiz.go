// Package quiz defines the embedded quiz definition carried inside a live
// session snapshot: the quiz header plus its ordered, typed item list.
//
// Items are polymorphic over a closed variant set distinguished by the
// "type" discriminant on the wire. Only quiz-type variants accept answers;
// slide variants are presentation-only.
package quiz

import (
	"encoding/json"
	"fmt"
)

// Quiz is the embedded quiz definition of a live session.
type Quiz struct {
	Key        string   `json:"key"`
	Login      string   `json:"login"`
	Code       string   `json:"code"`
	Name       string   `json:"name"`
	Items      Items    `json:"quizes"`
	Categories []string `json:"categories"`
}

// Items is the ordered item list with polymorphic JSON decoding.
type Items []Item

// UnmarshalJSON decodes each element through the type discriminant.
func (it *Items) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return fmt.Errorf("quiz items: %w", err)
	}

	out := make(Items, 0, len(raws))
	for i, raw := range raws {
		item, err := DecodeItem(raw)
		if err != nil {
			return fmt.Errorf("quiz item %d: %w", i, err)
		}
		out = append(out, item)
	}
	*it = out
	return nil
}

// MarshalJSON is the inverse of UnmarshalJSON; each concrete variant
// carries its own "type" field so plain struct marshalling is enough.
func (it Items) MarshalJSON() ([]byte, error) {
	if it == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Item(it))
}

// At returns the item at position index, or nil when out of bounds.
func (it Items) At(position int) Item {
	if position < 0 || position >= len(it) {
		return nil
	}
	return it[position]
}
