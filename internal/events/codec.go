package events

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/vmihailenco/msgpack/v5"
)

var eventJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// EncodeJSON serializes an Envelope as JSON, the format REST and
// human-facing debug consumers read.
func EncodeJSON(e Envelope) ([]byte, error) {
	return eventJSON.Marshal(e)
}

// EncodeMsgpack serializes an Envelope as MessagePack, used by the
// websocket fan-out for its higher message rate: smaller frames and a
// decoder that doesn't re-parse field names on every tick.
func EncodeMsgpack(e Envelope) ([]byte, error) {
	return msgpack.Marshal(e)
}

// DecodeMsgpack is the reverse of EncodeMsgpack, kept for tests and for any
// consumer that round-trips through the same wire format internally.
func DecodeMsgpack(buf []byte) (Envelope, error) {
	var e Envelope
	err := msgpack.Unmarshal(buf, &e)
	return e, err
}
