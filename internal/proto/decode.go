package proto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed is returned for frames that cannot be classified.
var ErrMalformed = errors.New("malformed frame")

// Decode parses one inbound frame and classifies it by kind. Kind-specific
// fields are read from "data" when it is an object, else from the frame.
func Decode(frame []byte) (Message, error) {
	var env Inbound
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}

	body := frame
	if isJSON(env.Data, '{') {
		body = env.Data
	}

	switch env.Type {
	case TypeQueueUpdated:
		return decodeQueueUpdated(body, env.Data)
	case TypeVoteUpdated:
		var m VoteUpdated
		if err := decodeBody(env.Type, body, &m); err != nil {
			return nil, err
		}
		if m.EntryID == 0 {
			return nil, fmt.Errorf("%w: %s without queue_item_id", ErrMalformed, env.Type)
		}
		return m, nil
	case TypeQueueReordered:
		var m QueueReordered
		if err := decodeBody(env.Type, body, &m); err != nil {
			return nil, err
		}
		return m, nil
	case TypePlaybackControl, TypePlaybackSync:
		return Playback{Type: env.Type, Payload: json.RawMessage(body)}, nil
	case TypeUserJoined:
		var m UserJoined
		// Missing or mistyped optional fields only degrade the notice.
		_ = json.Unmarshal(body, &m)
		return m, nil
	case TypeSongAdded:
		var m SongAdded
		_ = json.Unmarshal(body, &m)
		return m, nil
	default:
		return Unknown{Type: env.Type}, nil
	}
}

func decodeQueueUpdated(body, data json.RawMessage) (Message, error) {
	var m QueueUpdated
	if isJSON(data, '[') {
		if err := json.Unmarshal(data, &m.Queue); err != nil {
			return nil, fmt.Errorf("%w: %s listing: %v", ErrMalformed, TypeQueueUpdated, err)
		}
		if m.Queue == nil {
			m.Queue = []Entry{}
		}
		return m, nil
	}

	if err := decodeBody(TypeQueueUpdated, body, &m); err != nil {
		return nil, err
	}
	if m.Item == nil && m.Queue == nil && m.Action != ActionRemoved {
		// The body itself may be the entry.
		var e Entry
		if err := json.Unmarshal(body, &e); err == nil && e.ID != 0 {
			m.Item = &e
		}
	}
	return m, nil
}

func decodeBody(kind string, body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrMalformed, kind, err)
	}
	return nil
}

func isJSON(raw json.RawMessage, open byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == open
}
