package packrat

import (
	"bytes"
	"context"
	"reflect"

	"github.com/zoobzio/packrat/wire"
)

// RawBytes carries one undecoded MessagePack value (spec §3, §4.5).
// Bytes may alias a buffer this RawBytes does not own; call ToOwned
// before retaining a RawBytes beyond the lifetime of the buffer it was
// decoded from.
type RawBytes struct {
	Bytes []byte
	Owned bool
}

// ToOwned copies Bytes into a private buffer if not already owned, and
// marks the result owned. Idempotent.
func (r *RawBytes) ToOwned() {
	if r.Owned {
		return
	}
	cp := make([]byte, len(r.Bytes))
	copy(cp, r.Bytes)
	r.Bytes = cp
	r.Owned = true
}

// Equal reports byte-wise equality, ignoring ownership.
func (r RawBytes) Equal(other RawBytes) bool {
	return bytes.Equal(r.Bytes, other.Bytes)
}

var rawBytesType = reflect.TypeOf(RawBytes{})

// rawBytesConverter implements anyConverter for RawBytes: it skips the
// next wire value while recording the bytes it covered, and writes them
// back out verbatim.
type rawBytesConverter struct{}

func (rawBytesConverter) readValue(r *wire.Reader, _ *SerializationContext) (reflect.Value, error) {
	span, err := r.ReadRawSpan()
	if err != nil {
		return reflect.Value{}, newWireError(r.Position(), err)
	}
	return reflect.ValueOf(RawBytes{Bytes: span, Owned: false}), nil
}

func (rawBytesConverter) writeValue(w *wire.Writer, v reflect.Value, _ *SerializationContext) error {
	rb := v.Interface().(RawBytes)
	return w.WriteRawSpan(rb.Bytes)
}

func (c rawBytesConverter) readValueAsync(_ context.Context, r *AsyncReader, sc *SerializationContext) (reflect.Value, error) {
	return c.readValue(r.sync, sc)
}

func (c rawBytesConverter) writeValueAsync(_ context.Context, w *AsyncWriter, v reflect.Value, sc *SerializationContext) error {
	return c.writeValue(w.sync, v, sc)
}

func (rawBytesConverter) preferAsync() bool { return false }
