package packrat

import (
	"context"
	"reflect"

	"github.com/zoobzio/packrat/wire"
)

// mapSerializableProperty is one entry of the ordered write-side list
// for the map layout (spec §3, "Serializable property (map form)").
// nameHeader is the pre-encoded MessagePack string header plus UTF-8
// bytes, so encode can blit the key instead of re-encoding it per write.
type mapSerializableProperty struct {
	prop       *PropertyAccessor
	nameHeader []byte
}

// objectMapConverter implements the object-as-map converter (C7, spec
// §4.2): objects whose wire form is a name→value map.
type objectMapConverter struct {
	typ               reflect.Type
	serializable      []mapSerializableProperty
	deserializable    map[string]*PropertyAccessor
	hasBeforeSerialize bool
	hasAfterDeserialize bool
}

func (c *objectMapConverter) writeValue(w *wire.Writer, v reflect.Value, ctx *SerializationContext) error {
	if err := ctx.DepthStep(); err != nil {
		return err
	}

	if c.hasBeforeSerialize {
		if !v.CanAddr() {
			cp := reflect.New(v.Type()).Elem()
			cp.Set(v)
			v = cp
		}
		if bs, ok := v.Addr().Interface().(BeforeSerializer); ok {
			if err := bs.BeforeSerialize(); err != nil {
				return newConversionError(err, c.typ.Name(), nil)
			}
		}
	}

	count := 0
	for i := range c.serializable {
		if c.serializable[i].prop.shouldInclude(v) {
			count++
		}
	}
	if err := w.WriteMapHeader(count); err != nil {
		return err
	}

	for i := range c.serializable {
		sp := &c.serializable[i]
		if !sp.prop.shouldInclude(v) {
			continue
		}
		if err := w.WriteRawSpan(sp.nameHeader); err != nil {
			return err
		}
		fieldVal := sp.prop.GetPtr(v)
		if err := sp.prop.Conv.writeValue(w, fieldVal, ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *objectMapConverter) readValue(r *wire.Reader, ctx *SerializationContext) (reflect.Value, error) {
	if err := ctx.DepthStep(); err != nil {
		return reflect.Value{}, err
	}

	n, err := r.ReadMapHeader()
	if err != nil {
		return reflect.Value{}, newWireError(r.Position(), err)
	}

	out := reflect.New(c.typ)

	for i := 0; i < n; i++ {
		keyBytes, err := r.ReadBytes()
		if err != nil {
			return reflect.Value{}, newWireError(r.Position(), err)
		}
		prop, ok := c.deserializable[string(keyBytes)]
		if !ok {
			if err := r.Skip(); err != nil {
				return reflect.Value{}, newWireError(r.Position(), err)
			}
			continue
		}
		val, err := prop.Conv.readValue(r, ctx)
		if err != nil {
			return reflect.Value{}, err
		}
		prop.GetPtr(out.Elem()).Set(val)
	}

	if c.hasAfterDeserialize {
		if ad, ok := out.Interface().(AfterDeserializer); ok {
			if err := ad.AfterDeserialize(); err != nil {
				return reflect.Value{}, newConversionError(err, c.typ.Name(), nil)
			}
		}
	}

	return out.Elem(), nil
}

func (c *objectMapConverter) readValueAsync(_ context.Context, r *AsyncReader, sc *SerializationContext) (reflect.Value, error) {
	return c.readValue(r.sync, sc)
}

func (c *objectMapConverter) writeValueAsync(_ context.Context, w *AsyncWriter, v reflect.Value, sc *SerializationContext) error {
	return c.writeValue(w.sync, v, sc)
}

func (c *objectMapConverter) preferAsync() bool { return false }

// buildObjectMapConverter synthesizes the map-layout converter for shape,
// recursively requesting converters for each property's field type and
// pre-encoding each property name as a MessagePack string header+bytes
// span for write-side blitting.
func buildObjectMapConverter(typ reflect.Type, shape *objectShape) (anyConverter, error) {
	c := &objectMapConverter{
		typ:            typ,
		deserializable: make(map[string]*PropertyAccessor, len(shape.Properties)),
	}

	probe := reflect.New(typ).Interface()
	if _, ok := probe.(BeforeSerializer); ok {
		c.hasBeforeSerialize = true
	}
	if _, ok := probe.(AfterDeserializer); ok {
		c.hasAfterDeserialize = true
	}

	for _, ps := range shape.Properties {
		fieldIndex := ps.FieldIndex
		elemConv, err := converterFor(ps.FieldType)
		if err != nil {
			return nil, err
		}

		prop := &PropertyAccessor{
			Name:    ps.Name,
			Index:   -1,
			Conv:    elemConv,
			HasRead: true,
			HasWrite: true,
			GetPtr: func(owner reflect.Value) reflect.Value {
				return owner.FieldByIndex(fieldIndex)
			},
		}
		if ps.OmitEmpty {
			prop.ShouldSerialize = func(owner reflect.Value) bool {
				return !owner.FieldByIndex(fieldIndex).IsZero()
			}
		}

		header, err := encodeMapKeyHeader(ps.Name)
		if err != nil {
			return nil, err
		}

		c.serializable = append(c.serializable, mapSerializableProperty{prop: prop, nameHeader: header})
		c.deserializable[ps.Name] = prop
	}

	return c, nil
}

// encodeMapKeyHeader pre-encodes a property name as a standalone
// MessagePack value (string header + UTF-8 bytes), so the write path can
// blit it with WriteRawSpan instead of re-encoding the name on every
// write (spec §3, "name_utf8_with_header").
func encodeMapKeyHeader(name string) ([]byte, error) {
	return wire.EncodeStringValue(name)
}
