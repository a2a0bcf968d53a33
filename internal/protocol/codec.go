package protocol

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"nova/internal/errors"
)

// Encode serializes an envelope to its wire form.
func Encode(msg *Message) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("encode: nil message")
	}
	return msgpack.Marshal(msg)
}

// Decode parses wire bytes back into an envelope. Malformed input yields a
// ProtocolError; the caller drops the message and keeps the connection.
func Decode(data []byte) (*Message, error) {
	if len(data) == 0 {
		return nil, errors.NewProtocolError(nil, "empty frame")
	}
	var msg Message
	if err := msgpack.Unmarshal(data, &msg); err != nil {
		return nil, errors.NewProtocolError(err, "malformed frame")
	}
	if msg.Type == "" {
		return nil, errors.NewProtocolError(nil, "missing message type")
	}
	return &msg, nil
}
