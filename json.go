package websocket

import (
	"encoding/json"
	"errors"
)

// SendJSON writes v encoded as JSON in a text message.
func (c *Conn) SendJSON(v interface{}) (err error) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	return c.WriteMessage(OpText, b)
}

// DecodeJSON unmarshals a received message into v.
func (m Message) DecodeJSON(v interface{}) error {
	if m.Type != OpText && m.Type != OpBinary {
		return errors.New("websocket: not a data message")
	}
	return json.Unmarshal(m.Data, v)
}
