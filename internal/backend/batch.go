package backend

import (
	"bytes"
	"encoding/json"
)

// MessageBatch is the result of sending a message. The contract promises the
// created message, but deployed backends answer with the whole conversation
// history; History is true in that case.
type MessageBatch struct {
	Messages []MessageResponse
	History  bool
}

func (b *MessageBatch) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*b = MessageBatch{}
		return nil
	}
	if data[0] == '[' {
		var msgs []MessageResponse
		if err := json.Unmarshal(data, &msgs); err != nil {
			return err
		}
		*b = MessageBatch{Messages: msgs, History: true}
		return nil
	}
	var msg MessageResponse
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	*b = MessageBatch{Messages: []MessageResponse{msg}}
	return nil
}
