package eventstore

import (
	"bytes"
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/kbukum/resilkit/validation"
)

// CodecNames lists the names CodecByName accepts.
var CodecNames = []string{"json", "msgpack"}

// Codec turns event values into record payloads and back.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONCodec encodes payloads as JSON.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// MsgpackCodec encodes payloads as MessagePack. Struct fields are named by
// their json tags so both codecs agree on field names.
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string { return "msgpack" }

func (MsgpackCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (MsgpackCodec) Unmarshal(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

// CodecByName returns the codec registered under name ("json" or "msgpack").
// An empty name selects JSON.
func CodecByName(name string) (Codec, error) {
	if name == "" {
		name = "json"
	}
	if err := validation.New().OneOf("codec", name, CodecNames).Validate(); err != nil {
		return nil, err
	}
	if name == "msgpack" {
		return MsgpackCodec{}, nil
	}
	return JSONCodec{}, nil
}
