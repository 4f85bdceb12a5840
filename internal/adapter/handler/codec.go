package handler

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// The order service carries JSON over gRPC instead of protobuf. Clients opt in with
// grpc.CallContentSubtype(jsonCodecName).
const jsonCodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return jsonCodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
