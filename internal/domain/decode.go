package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeEvents parses a message body holding a single event, an array of
// events, or an {"events": [...]} envelope. Anything else is ErrMalformedMessage.
func DecodeEvents(body []byte) ([]CalendarEvent, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedMessage)
	}

	switch trimmed[0] {
	case '[':
		var events []CalendarEvent
		if err := json.Unmarshal(trimmed, &events); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		return events, nil
	case '{':
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &probe); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		if _, ok := probe["events"]; ok {
			var envelope struct {
				Events []CalendarEvent `json:"events"`
			}
			if err := json.Unmarshal(trimmed, &envelope); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
			}
			return envelope.Events, nil
		}
		var event CalendarEvent
		if err := json.Unmarshal(trimmed, &event); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		return []CalendarEvent{event}, nil
	default:
		return nil, fmt.Errorf("%w: expected object or array", ErrMalformedMessage)
	}
}
