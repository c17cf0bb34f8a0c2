// Package json provides a JSON wire.Codec for interop with systems that
// exchange JSON rather than MessagePack.
package json

import (
	"encoding/json"

	"github.com/zoobzio/packrat/wire"
)

type jsonCodec struct{}

// New returns a JSON wire.Codec.
func New() wire.Codec {
	return &jsonCodec{}
}

func (c *jsonCodec) ContentType() string {
	return "application/json"
}

func (c *jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (c *jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
