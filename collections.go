package packrat

import (
	"context"
	"reflect"

	"github.com/zoobzio/packrat/wire"
)

// pointerConverter implements the Nullable shape variant (spec §4.1):
// nil pointers encode as MessagePack nil; non-nil pointers encode their
// pointee via the recursively synthesized element converter.
type pointerConverter struct {
	elemType reflect.Type
	elemConv anyConverter
}

func (p *pointerConverter) readValue(r *wire.Reader, ctx *SerializationContext) (reflect.Value, error) {
	isNil, err := r.TryReadNil()
	if err != nil {
		return reflect.Value{}, newWireError(r.Position(), err)
	}
	ptr := reflect.New(p.elemType)
	if isNil {
		return reflect.Zero(reflect.PointerTo(p.elemType)), nil
	}
	elem, err := p.elemConv.readValue(r, ctx)
	if err != nil {
		return reflect.Value{}, err
	}
	ptr.Elem().Set(elem)
	return ptr, nil
}

func (p *pointerConverter) writeValue(w *wire.Writer, v reflect.Value, ctx *SerializationContext) error {
	if v.IsNil() {
		return w.WriteNil()
	}
	return p.elemConv.writeValue(w, v.Elem(), ctx)
}

func (p *pointerConverter) readValueAsync(ctx context.Context, r *AsyncReader, sc *SerializationContext) (reflect.Value, error) {
	return p.readValue(r.sync, sc)
}

func (p *pointerConverter) writeValueAsync(ctx context.Context, w *AsyncWriter, v reflect.Value, sc *SerializationContext) error {
	return p.writeValue(w.sync, v, sc)
}

func (p *pointerConverter) preferAsync() bool { return p.elemConv.preferAsync() }

// sliceConverter implements the Array collection shape variant: a
// MessagePack array of elements, each encoded via the element converter.
type sliceConverter struct {
	elemType reflect.Type
	elemConv anyConverter
}

func (s *sliceConverter) readValue(r *wire.Reader, ctx *SerializationContext) (reflect.Value, error) {
	if err := ctx.DepthStep(); err != nil {
		return reflect.Value{}, err
	}
	n, err := r.ReadArrayHeader()
	if err != nil {
		return reflect.Value{}, newWireError(r.Position(), err)
	}

	out := reflect.MakeSlice(reflect.SliceOf(s.elemType), n, n)
	for i := 0; i < n; i++ {
		elem, err := s.elemConv.readValue(r, ctx)
		if err != nil {
			return reflect.Value{}, err
		}
		out.Index(i).Set(elem)
	}
	return out, nil
}

func (s *sliceConverter) writeValue(w *wire.Writer, v reflect.Value, ctx *SerializationContext) error {
	if err := ctx.DepthStep(); err != nil {
		return err
	}
	n := v.Len()
	if err := w.WriteArrayHeader(n); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := s.elemConv.writeValue(w, v.Index(i), ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *sliceConverter) readValueAsync(ctx context.Context, r *AsyncReader, sc *SerializationContext) (reflect.Value, error) {
	return s.readValue(r.sync, sc)
}

func (s *sliceConverter) writeValueAsync(ctx context.Context, w *AsyncWriter, v reflect.Value, sc *SerializationContext) error {
	return s.writeValue(w.sync, v, sc)
}

func (s *sliceConverter) preferAsync() bool { return false }

// mapConverter implements the Dictionary collection shape variant: a
// MessagePack map from encoded key to encoded value.
type mapConverter struct {
	keyType  reflect.Type
	valType  reflect.Type
	keyConv  anyConverter
	valConv  anyConverter
}

func (m *mapConverter) readValue(r *wire.Reader, ctx *SerializationContext) (reflect.Value, error) {
	if err := ctx.DepthStep(); err != nil {
		return reflect.Value{}, err
	}
	n, err := r.ReadMapHeader()
	if err != nil {
		return reflect.Value{}, newWireError(r.Position(), err)
	}
	out := reflect.MakeMapWithSize(reflect.MapOf(m.keyType, m.valType), n)
	for i := 0; i < n; i++ {
		k, err := m.keyConv.readValue(r, ctx)
		if err != nil {
			return reflect.Value{}, err
		}
		v, err := m.valConv.readValue(r, ctx)
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetMapIndex(k, v)
	}
	return out, nil
}

func (m *mapConverter) writeValue(w *wire.Writer, v reflect.Value, ctx *SerializationContext) error {
	if err := ctx.DepthStep(); err != nil {
		return err
	}
	keys := v.MapKeys()
	if err := w.WriteMapHeader(len(keys)); err != nil {
		return err
	}
	for _, k := range keys {
		if err := m.keyConv.writeValue(w, k, ctx); err != nil {
			return err
		}
		if err := m.valConv.writeValue(w, v.MapIndex(k), ctx); err != nil {
			return err
		}
	}
	return nil
}

func (m *mapConverter) readValueAsync(ctx context.Context, r *AsyncReader, sc *SerializationContext) (reflect.Value, error) {
	return m.readValue(r.sync, sc)
}

func (m *mapConverter) writeValueAsync(ctx context.Context, w *AsyncWriter, v reflect.Value, sc *SerializationContext) error {
	return m.writeValue(w.sync, v, sc)
}

func (m *mapConverter) preferAsync() bool { return false }
