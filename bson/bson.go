// Package bson provides a BSON wire.Codec for interop with systems that
// exchange BSON rather than MessagePack.
package bson

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/zoobzio/packrat/wire"
)

type bsonCodec struct{}

// New returns a BSON wire.Codec.
func New() wire.Codec {
	return &bsonCodec{}
}

func (c *bsonCodec) ContentType() string {
	return "application/bson"
}

func (c *bsonCodec) Marshal(v any) ([]byte, error) {
	return bson.Marshal(v)
}

func (c *bsonCodec) Unmarshal(data []byte, v any) error {
	return bson.Unmarshal(data, v)
}
