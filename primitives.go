package packrat

import (
	"context"
	"reflect"

	"github.com/zoobzio/packrat/wire"
)

// primKind identifies which wire primitive a scalar Go kind maps to.
// Grounded on the one-call-wrapper primitive converters spec §1 marks
// out of core scope, but still needed here as the leaves synthesis
// bottoms out on.
type primKind int

const (
	primBool primKind = iota
	primInt
	primInt8
	primInt16
	primInt32
	primInt64
	primUint
	primUint8
	primUint16
	primUint32
	primUint64
	primFloat32
	primFloat64
	primString
)

// scalarConverter implements anyConverter for one primitive Go kind,
// reading/writing through the Reader/Writer primitive calls directly.
// It never prefers async: primitives are cheap enough that suspending
// around one is never worthwhile (spec §4.3 schedule operates on runs
// of non-async properties precisely to batch leaves like these).
type scalarConverter struct {
	kind primKind
}

func (s scalarConverter) readValue(r *wire.Reader, _ *SerializationContext) (reflect.Value, error) {
	switch s.kind {
	case primBool:
		v, err := r.ReadBool()
		return reflect.ValueOf(v), err
	case primInt:
		v, err := r.ReadInt64()
		return reflect.ValueOf(int(v)), err
	case primInt8:
		v, err := r.ReadInt64()
		return reflect.ValueOf(int8(v)), err
	case primInt16:
		v, err := r.ReadInt64()
		return reflect.ValueOf(int16(v)), err
	case primInt32:
		v, err := r.ReadInt64()
		return reflect.ValueOf(int32(v)), err
	case primInt64:
		v, err := r.ReadInt64()
		return reflect.ValueOf(v), err
	case primUint:
		v, err := r.ReadUint64()
		return reflect.ValueOf(uint(v)), err
	case primUint8:
		v, err := r.ReadUint64()
		return reflect.ValueOf(uint8(v)), err
	case primUint16:
		v, err := r.ReadUint64()
		return reflect.ValueOf(uint16(v)), err
	case primUint32:
		v, err := r.ReadUint64()
		return reflect.ValueOf(uint32(v)), err
	case primUint64:
		v, err := r.ReadUint64()
		return reflect.ValueOf(v), err
	case primFloat32:
		v, err := r.ReadFloat32()
		return reflect.ValueOf(v), err
	case primFloat64:
		v, err := r.ReadFloat64()
		return reflect.ValueOf(v), err
	case primString:
		v, err := r.ReadString()
		return reflect.ValueOf(v), err
	default:
		return reflect.Value{}, ErrWireFormat
	}
}

func (s scalarConverter) writeValue(w *wire.Writer, v reflect.Value, _ *SerializationContext) error {
	switch s.kind {
	case primBool:
		return w.WriteBool(v.Bool())
	case primInt, primInt8, primInt16, primInt32, primInt64:
		return w.WriteInt64(v.Int())
	case primUint, primUint8, primUint16, primUint32, primUint64:
		return w.WriteUint64(v.Uint())
	case primFloat32:
		return w.WriteFloat32(float32(v.Float()))
	case primFloat64:
		return w.WriteFloat64(v.Float())
	case primString:
		return w.WriteString(v.String())
	default:
		return ErrWireFormat
	}
}

func (s scalarConverter) readValueAsync(_ context.Context, r *AsyncReader, sc *SerializationContext) (reflect.Value, error) {
	return s.readValue(r.sync, sc)
}

func (s scalarConverter) writeValueAsync(_ context.Context, w *AsyncWriter, v reflect.Value, sc *SerializationContext) error {
	return s.writeValue(w.sync, v, sc)
}

func (s scalarConverter) preferAsync() bool { return false }

// bytesConverter implements anyConverter for []byte, mapped to the wire
// binary family rather than the string family.
type bytesConverter struct{}

func (bytesConverter) readValue(r *wire.Reader, _ *SerializationContext) (reflect.Value, error) {
	v, err := r.ReadBytes()
	return reflect.ValueOf(v), err
}

func (bytesConverter) writeValue(w *wire.Writer, v reflect.Value, _ *SerializationContext) error {
	return w.WriteBytes(v.Bytes())
}

func (c bytesConverter) readValueAsync(_ context.Context, r *AsyncReader, sc *SerializationContext) (reflect.Value, error) {
	return c.readValue(r.sync, sc)
}

func (c bytesConverter) writeValueAsync(_ context.Context, w *AsyncWriter, v reflect.Value, sc *SerializationContext) error {
	return c.writeValue(w.sync, v, sc)
}

func (bytesConverter) preferAsync() bool { return false }

// primitiveRegistry is the static type→converter map consulted after the
// instance cache and before synthesis (spec §3, §4.1). It is built once
// at init and never mutated afterward, so it needs no locking.
var primitiveRegistry = buildPrimitiveRegistry()

func buildPrimitiveRegistry() map[reflect.Type]anyConverter {
	reg := map[reflect.Type]anyConverter{
		reflect.TypeOf(false):      scalarConverter{primBool},
		reflect.TypeOf(int(0)):     scalarConverter{primInt},
		reflect.TypeOf(int8(0)):    scalarConverter{primInt8},
		reflect.TypeOf(int16(0)):   scalarConverter{primInt16},
		reflect.TypeOf(int32(0)):   scalarConverter{primInt32},
		reflect.TypeOf(int64(0)):   scalarConverter{primInt64},
		reflect.TypeOf(uint(0)):    scalarConverter{primUint},
		reflect.TypeOf(uint8(0)):   scalarConverter{primUint8},
		reflect.TypeOf(uint16(0)):  scalarConverter{primUint16},
		reflect.TypeOf(uint32(0)):  scalarConverter{primUint32},
		reflect.TypeOf(uint64(0)):  scalarConverter{primUint64},
		reflect.TypeOf(float32(0)): scalarConverter{primFloat32},
		reflect.TypeOf(float64(0)): scalarConverter{primFloat64},
		reflect.TypeOf(""):         scalarConverter{primString},
		reflect.TypeOf(RawBytes{}): rawBytesConverter{},
	}
	reg[reflect.TypeOf([]byte(nil))] = bytesConverter{}
	return reg
}
