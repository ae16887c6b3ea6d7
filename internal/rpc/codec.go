// Package rpc is the gRPC surface of the node: the clvault.v1.Vault service, its
// JSON wire codec and the mapping between vault errors and status codes.
package rpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
)

// CodecName is the content subtype both sides negotiate.
const CodecName = "json"

// jsonCodec carries the request and response structs as JSON. The vault types
// marshal their math and address fields to canonical strings.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	bz, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("rpc: marshal %T: %w", v, err)
	}
	return bz, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("rpc: unmarshal %T: %w", v, err)
	}
	return nil
}

func (jsonCodec) Name() string { return CodecName }

// ServerOptions are the options every vault server needs.
func ServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{grpc.ForceServerCodec(jsonCodec{})}
}

// DialOptions are the options every vault client needs.
func DialOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{})),
		grpc.WithChainUnaryInterceptor(kindClientInterceptor),
	}
}
