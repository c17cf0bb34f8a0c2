// Package yaml provides a YAML wire.Codec for interop with systems that
// exchange YAML rather than MessagePack.
package yaml

import (
	"github.com/zoobzio/packrat/wire"
	"gopkg.in/yaml.v3"
)

type yamlCodec struct{}

// New returns a YAML wire.Codec.
func New() wire.Codec {
	return &yamlCodec{}
}

func (c *yamlCodec) ContentType() string {
	return "application/yaml"
}

func (c *yamlCodec) Marshal(v any) ([]byte, error) {
	return yaml.Marshal(v)
}

func (c *yamlCodec) Unmarshal(data []byte, v any) error {
	return yaml.Unmarshal(data, v)
}
