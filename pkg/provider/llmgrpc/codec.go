// Package llmgrpc is the gRPC transport for the LLM and embedding provider
// collaborators: a thin wrapper over *grpc.ClientConn with a channel-based
// streaming API. The engine has no protobuf schema of its own to compile, so
// calls use a JSON codec over the same gRPC framing instead of generated
// message types — the sidecar owns the contract, not this repo.
package llmgrpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return "json" }
