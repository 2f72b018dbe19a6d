// Package hub fans messages out to websocket subscribers through a single
// broadcaster goroutine.
package hub

import "encoding/json"

// Message is one encoded frame destined for every client.
type Message struct {
	Data []byte
}

// JSON encodes v as a Message.
func JSON(v any) (Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Message{}, err
	}
	return Message{Data: data}, nil
}
