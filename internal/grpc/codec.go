package grpc

import (
	"encoding/json"
)

const codecName = "json"

// jsonCodec carries the ledger messages as JSON instead of protobuf.
// Both ends force it, so no content-subtype negotiation takes place.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return codecName
}
