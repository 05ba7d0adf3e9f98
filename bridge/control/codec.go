package control

import "encoding/json"

// jsonCodec stands in for the protobuf wire codec grpc normally installs.
// Every voicepb message is marshaled as JSON instead of a protobuf binary;
// the RPC surface, streaming, and deadline propagation grpc provides are
// all real, only the wire encoding is substituted.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return "json"
}
