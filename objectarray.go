package packrat

import (
	"context"
	"reflect"
	"sort"

	"github.com/zoobzio/packrat/wire"
)

// objectArrayConverter implements the object-as-array converter (C8,
// spec §4.3): objects whose wire form is an array indexed by a declared
// integer property key, with nil holes for unassigned slots. It chooses
// between a map and array wire representation on encode and accepts
// either on decode.
type objectArrayConverter struct {
	typ        reflect.Type
	properties []*PropertyAccessor // index i is the declared array slot i; nil is a hole
	hasSelect  bool                // true when any property declares ShouldSerialize

	hasBeforeSerialize  bool
	hasAfterDeserialize bool
}

func (c *objectArrayConverter) readValue(r *wire.Reader, ctx *SerializationContext) (reflect.Value, error) {
	if err := ctx.DepthStep(); err != nil {
		return reflect.Value{}, err
	}

	out := reflect.New(c.typ)

	t, err := r.PeekType()
	if err != nil {
		return reflect.Value{}, newWireError(r.Position(), err)
	}

	switch t {
	case wire.TypeMap:
		n, err := r.ReadMapHeader()
		if err != nil {
			return reflect.Value{}, newWireError(r.Position(), err)
		}
		for i := 0; i < n; i++ {
			idx, err := r.ReadInt64()
			if err != nil {
				return reflect.Value{}, newWireError(r.Position(), err)
			}
			if err := c.readSlot(r, ctx, out.Elem(), int(idx)); err != nil {
				return reflect.Value{}, err
			}
		}
	case wire.TypeArray:
		n, err := r.ReadArrayHeader()
		if err != nil {
			return reflect.Value{}, newWireError(r.Position(), err)
		}
		for i := 0; i < n; i++ {
			if err := c.readSlot(r, ctx, out.Elem(), i); err != nil {
				return reflect.Value{}, err
			}
		}
	default:
		return reflect.Value{}, newWireError(r.Position(), ErrWireFormat)
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

// readSlot reads one value destined for array index idx: invokes the
// slot's reader if idx is in bounds and non-nil, else skips the value
// (spec §4.3 read, both shapes).
func (c *objectArrayConverter) readSlot(r *wire.Reader, ctx *SerializationContext, owner reflect.Value, idx int) error {
	if idx < 0 || idx >= len(c.properties) || c.properties[idx] == nil {
		if err := r.Skip(); err != nil {
			return newWireError(r.Position(), err)
		}
		return nil
	}
	prop := c.properties[idx]
	val, err := prop.Conv.readValue(r, ctx)
	if err != nil {
		return err
	}
	prop.GetPtr(owner).Set(val)
	return nil
}

func (c *objectArrayConverter) writeValue(w *wire.Writer, v reflect.Value, ctx *SerializationContext) error {
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

	if !c.hasSelect {
		return c.writeFullArray(w, v, ctx)
	}

	indexes := scratchIndexPool.Get().(*[]int)
	*indexes = (*indexes)[:0]
	defer scratchIndexPool.Put(indexes)

	for i, prop := range c.properties {
		if prop != nil && prop.shouldInclude(v) {
			*indexes = append(*indexes, i)
		}
	}
	sort.Ints(*indexes)

	if len(*indexes) == 0 {
		return w.WriteArrayHeader(0)
	}

	k := (*indexes)[len(*indexes)-1]
	n := len(*indexes)
	mapOverhead := encodedIntLen(k) * n
	arrayOverhead := (k + 1) - n

	if mapOverhead < arrayOverhead {
		emitLayoutSelected(layoutCtx(ctx), c.typ.String(), "map")
		if err := w.WriteMapHeader(n); err != nil {
			return err
		}
		for _, i := range *indexes {
			if err := w.WriteInt64(int64(i)); err != nil {
				return err
			}
			if err := c.properties[i].Conv.writeValue(w, c.properties[i].GetPtr(v), ctx); err != nil {
				return err
			}
		}
		return nil
	}

	emitLayoutSelected(layoutCtx(ctx), c.typ.String(), "array")
	if err := w.WriteArrayHeader(k + 1); err != nil {
		return err
	}
	for i := 0; i <= k; i++ {
		prop := c.properties[i]
		if prop == nil || !contains(*indexes, i) {
			if err := w.WriteNil(); err != nil {
				return err
			}
			continue
		}
		if err := prop.Conv.writeValue(w, prop.GetPtr(v), ctx); err != nil {
			return err
		}
	}
	return nil
}

// writeFullArray emits every declared slot, nil for holes, with no
// should_serialize filtering (spec §4.3, "disabled" path).
func (c *objectArrayConverter) writeFullArray(w *wire.Writer, v reflect.Value, ctx *SerializationContext) error {
	if err := w.WriteArrayHeader(len(c.properties)); err != nil {
		return err
	}
	for _, prop := range c.properties {
		if prop == nil || !prop.HasWrite {
			if err := w.WriteNil(); err != nil {
				return err
			}
			continue
		}
		if err := prop.Conv.writeValue(w, prop.GetPtr(v), ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *objectArrayConverter) readValueAsync(ctx context.Context, r *AsyncReader, sc *SerializationContext) (reflect.Value, error) {
	out := reflect.New(c.typ)

	t, err := r.sync.PeekType()
	if err != nil {
		return reflect.Value{}, newWireError(r.sync.Position(), err)
	}

	switch t {
	case wire.TypeMap:
		n, err := r.sync.ReadMapHeader()
		if err != nil {
			return reflect.Value{}, newWireError(r.sync.Position(), err)
		}
		for i := 0; i < n; i++ {
			if err := sc.CheckCancelled(); err != nil {
				return reflect.Value{}, err
			}
			idx, err := r.sync.ReadInt64()
			if err != nil {
				return reflect.Value{}, newWireError(r.sync.Position(), err)
			}
			if err := c.readSlotAsync(ctx, r, sc, out.Elem(), int(idx)); err != nil {
				return reflect.Value{}, err
			}
		}
	case wire.TypeArray:
		n, err := r.sync.ReadArrayHeader()
		if err != nil {
			return reflect.Value{}, newWireError(r.sync.Position(), err)
		}
		for i := 0; i < n; i++ {
			if err := sc.CheckCancelled(); err != nil {
				return reflect.Value{}, err
			}
			if err := c.readSlotAsync(ctx, r, sc, out.Elem(), i); err != nil {
				return reflect.Value{}, err
			}
		}
	default:
		return reflect.Value{}, newWireError(r.sync.Position(), ErrWireFormat)
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

// readSlotAsync mirrors readSlot but dispatches to the async reader when
// the target slot's converter prefers it (spec §4.3 decode — async
// batching).
func (c *objectArrayConverter) readSlotAsync(ctx context.Context, r *AsyncReader, sc *SerializationContext, owner reflect.Value, idx int) error {
	if idx < 0 || idx >= len(c.properties) || c.properties[idx] == nil {
		return r.sync.Skip()
	}
	prop := c.properties[idx]
	var val reflect.Value
	var err error
	if prop.PreferAsyncProp {
		val, err = prop.Conv.readValueAsync(ctx, r, sc)
	} else {
		val, err = prop.Conv.readValue(r.sync, sc)
	}
	if err != nil {
		return err
	}
	prop.GetPtr(owner).Set(val)
	return nil
}

// arraySlotAsync describes one position in the async write schedule: a
// property to emit (nil for a hole), and, for the map shape, the integer
// key that must precede it.
type arraySlotAsync struct {
	prop   *PropertyAccessor
	key    int
	hasKey bool
}

// writeValueAsync implements the §4.3 async write schedule and applies
// the same should_serialize filtering and map/array overhead comparison
// as the sync writeValue, so EncodeAsync and Encode agree on wire shape
// for the same value.
func (c *objectArrayConverter) writeValueAsync(ctx context.Context, w *AsyncWriter, v reflect.Value, sc *SerializationContext) error {
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

	if !c.hasSelect {
		n := len(c.properties)
		sub := w.CreateSubWriter()
		if err := sub.WriteArrayHeader(n); err != nil {
			return err
		}
		slots := make([]arraySlotAsync, n)
		for i, prop := range c.properties {
			if prop != nil && prop.HasWrite {
				slots[i] = arraySlotAsync{prop: prop}
			}
		}
		return c.writeSlotsAsync(ctx, w, v, sc, slots)
	}

	indexes := scratchIndexPool.Get().(*[]int)
	*indexes = (*indexes)[:0]
	defer scratchIndexPool.Put(indexes)

	for i, prop := range c.properties {
		if prop != nil && prop.shouldInclude(v) {
			*indexes = append(*indexes, i)
		}
	}
	sort.Ints(*indexes)

	if len(*indexes) == 0 {
		sub := w.CreateSubWriter()
		if err := sub.WriteArrayHeader(0); err != nil {
			return err
		}
		return w.FlushIfAppropriate(ctx)
	}

	k := (*indexes)[len(*indexes)-1]
	n := len(*indexes)
	mapOverhead := encodedIntLen(k) * n
	arrayOverhead := (k + 1) - n

	if mapOverhead < arrayOverhead {
		emitLayoutSelected(layoutCtx(sc), c.typ.String(), "map")
		sub := w.CreateSubWriter()
		if err := sub.WriteMapHeader(n); err != nil {
			return err
		}
		slots := make([]arraySlotAsync, n)
		for pos, i := range *indexes {
			slots[pos] = arraySlotAsync{prop: c.properties[i], key: i, hasKey: true}
		}
		return c.writeSlotsAsync(ctx, w, v, sc, slots)
	}

	emitLayoutSelected(layoutCtx(sc), c.typ.String(), "array")
	sub := w.CreateSubWriter()
	if err := sub.WriteArrayHeader(k + 1); err != nil {
		return err
	}
	slots := make([]arraySlotAsync, k+1)
	for i := 0; i <= k; i++ {
		if c.properties[i] != nil && contains(*indexes, i) {
			slots[i] = arraySlotAsync{prop: c.properties[i]}
		}
	}
	return c.writeSlotsAsync(ctx, w, v, sc, slots)
}

// writeSlotsAsync drives the shared run-schedule loop over an already
// header-written sequence of slots: consecutive runs of sync-preferring
// properties are written to the scratch sub-writer with periodic flush
// checks, and properties that prefer async suspend individually via
// write_async. A slot with hasKey writes its integer key synchronously
// immediately before the value, for the map shape.
func (c *objectArrayConverter) writeSlotsAsync(ctx context.Context, w *AsyncWriter, v reflect.Value, sc *SerializationContext, slots []arraySlotAsync) error {
	sub := w.CreateSubWriter()
	n := len(slots)

	i := 0
	for i < n {
		runEnd := i
		for runEnd < n && (slots[runEnd].prop == nil || !slots[runEnd].prop.PreferAsyncProp) {
			runEnd++
		}

		for i < runEnd {
			if w.IsTimeToFlush(ctx, sub) {
				if err := w.FlushIfAppropriate(ctx); err != nil {
					return err
				}
			}
			s := slots[i]
			if s.hasKey {
				if err := w.WriteKeySync(s.key); err != nil {
					return err
				}
			}
			if s.prop == nil {
				if err := sub.WriteNil(); err != nil {
					return err
				}
			} else if err := s.prop.Conv.writeValue(sub, s.prop.GetPtr(v), sc); err != nil {
				return err
			}
			i++
		}

		if err := w.FlushIfAppropriate(ctx); err != nil {
			return err
		}

		for i < n && slots[i].prop != nil && slots[i].prop.PreferAsyncProp {
			if err := sc.CheckCancelled(); err != nil {
				return err
			}
			s := slots[i]
			if s.hasKey {
				if err := w.WriteKeySync(s.key); err != nil {
					return err
				}
			}
			if err := s.prop.Conv.writeValueAsync(ctx, w, s.prop.GetPtr(v), sc); err != nil {
				return err
			}
			i++
		}
	}

	return w.FlushIfAppropriate(ctx)
}

func (c *objectArrayConverter) preferAsync() bool {
	for _, prop := range c.properties {
		if prop != nil && prop.PreferAsyncProp {
			return true
		}
	}
	return false
}

// contains reports whether sorted slice xs holds x, by linear scan (xs
// is at most a handful of property indexes).
func contains(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

// encodedIntLen estimates the MessagePack-encoded byte length of a
// non-negative integer key, for the map/array overhead comparison in
// spec §4.3.
func encodedIntLen(n int) int {
	switch {
	case n < 0:
		return 9
	case n <= 0x7f:
		return 1
	case n <= 0xff:
		return 2
	case n <= 0xffff:
		return 3
	case n <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

// buildObjectArrayConverter synthesizes the array-layout converter for
// shape, sizing the slot list to max declared index + 1 (spec §3,
// "Object-as-array layout").
func buildObjectArrayConverter(typ reflect.Type, shape *objectShape) (anyConverter, error) {
	maxIdx := shape.maxArrayIndex()
	c := &objectArrayConverter{
		typ:        typ,
		properties: make([]*PropertyAccessor, maxIdx+1),
	}

	probe := reflect.New(typ).Interface()
	if _, ok := probe.(BeforeSerializer); ok {
		c.hasBeforeSerialize = true
	}
	if _, ok := probe.(AfterDeserializer); ok {
		c.hasAfterDeserialize = true
	}

	for _, ps := range shape.Properties {
		if ps.Index < 0 {
			continue
		}
		fieldIndex := ps.FieldIndex
		elemConv, err := converterFor(ps.FieldType)
		if err != nil {
			return nil, err
		}
		prop := &PropertyAccessor{
			Name:    ps.Name,
			Index:   ps.Index,
			Conv:    elemConv,
			HasRead: true,
			HasWrite: true,
			GetPtr: func(owner reflect.Value) reflect.Value {
				return owner.FieldByIndex(fieldIndex)
			},
		}
		if ps.OmitEmpty {
			c.hasSelect = true
			prop.ShouldSerialize = func(owner reflect.Value) bool {
				return !owner.FieldByIndex(fieldIndex).IsZero()
			}
		}
		c.properties[ps.Index] = prop
	}

	return c, nil
}
