// Package connect provides the Connect RPC player service.
package connect

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// jsonCodec serializes plain Go structs with encoding/json. It replaces
// connect's protobuf-backed "json" codec, so no generated code is needed.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal message")
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return errors.Wrap(err, "failed to unmarshal message")
	}
	return nil
}
