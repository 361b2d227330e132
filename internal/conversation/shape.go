package conversation

import (
	"bytes"
	"encoding/json"

	"AldebaranChat/internal/backend"
)

// Shape is the form a conversation list response arrived in
type Shape int

const (
	ShapeEmpty Shape = iota
	ShapeArray
	ShapeWrapped
	ShapeSingle
)

func (s Shape) String() string {
	switch s {
	case ShapeArray:
		return "array"
	case ShapeWrapped:
		return "wrapped"
	case ShapeSingle:
		return "single"
	default:
		return "empty"
	}
}

// wrapped is the {"conversations": [...]} form
type wrapped struct {
	Conversations *[]json.RawMessage `json:"conversations"`
}

// probe detects whether an object looks like a conversation summary
type probe struct {
	ConversationID *json.RawMessage `json:"conversationId"`
}

// Decode classifies raw and flattens it. Anything that is not one of the
// three known forms yields ShapeEmpty and no conversations. Elements of a
// list that do not decode are dropped; the rest are kept.
func Decode(raw []byte) ([]backend.ConversationResponse, Shape) {
	items, shape, _ := decode(raw)
	return items, shape
}

func decode(raw []byte) ([]backend.ConversationResponse, Shape, int) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, ShapeEmpty, 0
	}

	switch raw[0] {
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil {
			return nil, ShapeEmpty, 0
		}
		list, skipped := decodeEach(elems)
		return list, ShapeArray, skipped

	case '{':
		var w wrapped
		if err := json.Unmarshal(raw, &w); err == nil && w.Conversations != nil {
			list, skipped := decodeEach(*w.Conversations)
			return list, ShapeWrapped, skipped
		}

		var p probe
		if err := json.Unmarshal(raw, &p); err != nil || p.ConversationID == nil {
			return nil, ShapeEmpty, 0
		}
		var one backend.ConversationResponse
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil, ShapeEmpty, 1
		}
		return []backend.ConversationResponse{one}, ShapeSingle, 0
	}

	return nil, ShapeEmpty, 0
}

func decodeEach(elems []json.RawMessage) ([]backend.ConversationResponse, int) {
	list := make([]backend.ConversationResponse, 0, len(elems))
	skipped := 0
	for _, e := range elems {
		var c backend.ConversationResponse
		if err := json.Unmarshal(e, &c); err != nil {
			skipped++
			continue
		}
		list = append(list, c)
	}
	return list, skipped
}
