// Package xml provides an XML wire.Codec for interop with systems that
// exchange XML rather than MessagePack.
package xml

import (
	"encoding/xml"

	"github.com/zoobzio/packrat/wire"
)

type xmlCodec struct{}

// New returns an XML wire.Codec.
func New() wire.Codec {
	return &xmlCodec{}
}

func (c *xmlCodec) ContentType() string {
	return "application/xml"
}

func (c *xmlCodec) Marshal(v any) ([]byte, error) {
	return xml.Marshal(v)
}

func (c *xmlCodec) Unmarshal(data []byte, v any) error {
	return xml.Unmarshal(data, v)
}
