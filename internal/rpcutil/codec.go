// Package rpcutil carries the gRPC transport plumbing shared by the
// Controller and Host daemon servers. It picks the simplest encoding for
// the message schemas — JSON over a plain grpc.Codec — so the message
// types can stay ordinary Go structs instead of requiring a protoc
// codegen step.
package rpcutil

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName is the content-subtype negotiated for every call made through
// this package's client helpers and registered on the server.
const CodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return CodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
