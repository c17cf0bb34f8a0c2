package packrat

import (
	"context"
	"reflect"

	"github.com/zoobzio/packrat/wire"
)

// Converter is the uniform, type-safe contract every type's codec
// implements (spec §3, C4). Read and Write must be inverses on every
// value the shape admits. PreferAsync signals that WriteAsync/ReadAsync
// should be preferred over the sync path when encoding/decoding under
// the async framing adapter (§4.3).
type Converter[T any] interface {
	Read(r *wire.Reader, ctx *SerializationContext) (T, error)
	Write(w *wire.Writer, v T, ctx *SerializationContext) error
	ReadAsync(ctx context.Context, r *AsyncReader, sc *SerializationContext) (T, error)
	WriteAsync(ctx context.Context, w *AsyncWriter, v T, sc *SerializationContext) error
	PreferAsync() bool
}

// anyConverter is the type-erased form of Converter[T], keyed by
// reflect.Type in the cache (§4.1) and composed by the object-as-array
// and object-as-map converters, which hold heterogeneous property
// converters that a single generic parameter cannot express.
type anyConverter interface {
	readValue(r *wire.Reader, ctx *SerializationContext) (reflect.Value, error)
	writeValue(w *wire.Writer, v reflect.Value, ctx *SerializationContext) error
	readValueAsync(ctx context.Context, r *AsyncReader, sc *SerializationContext) (reflect.Value, error)
	writeValueAsync(ctx context.Context, w *AsyncWriter, v reflect.Value, sc *SerializationContext) error
	preferAsync() bool
}

// typedConverter adapts an anyConverter to the public generic Converter[T]
// surface, for callers that know T at compile time.
type typedConverter[T any] struct {
	inner anyConverter
}

func (t *typedConverter[T]) Read(r *wire.Reader, ctx *SerializationContext) (T, error) {
	var zero T
	rv, err := t.inner.readValue(r, ctx)
	if err != nil {
		return zero, err
	}
	return rv.Interface().(T), nil
}

func (t *typedConverter[T]) Write(w *wire.Writer, v T, ctx *SerializationContext) error {
	return t.inner.writeValue(w, reflect.ValueOf(v), ctx)
}

func (t *typedConverter[T]) ReadAsync(ctx context.Context, r *AsyncReader, sc *SerializationContext) (T, error) {
	var zero T
	rv, err := t.inner.readValueAsync(ctx, r, sc)
	if err != nil {
		return zero, err
	}
	return rv.Interface().(T), nil
}

func (t *typedConverter[T]) WriteAsync(ctx context.Context, w *AsyncWriter, v T, sc *SerializationContext) error {
	return t.inner.writeValueAsync(ctx, w, reflect.ValueOf(v), sc)
}

func (t *typedConverter[T]) PreferAsync() bool { return t.inner.preferAsync() }

// genericAdapter adapts a user-registered Converter[T] to anyConverter,
// so RegisterConverter[T] can drop a typed converter directly into the
// type-erased cache.
type genericAdapter[T any] struct {
	inner Converter[T]
}

func (g *genericAdapter[T]) readValue(r *wire.Reader, ctx *SerializationContext) (reflect.Value, error) {
	v, err := g.inner.Read(r, ctx)
	if err != nil {
		return reflect.Value{}, err
	}
	return reflect.ValueOf(v), nil
}

func (g *genericAdapter[T]) writeValue(w *wire.Writer, v reflect.Value, ctx *SerializationContext) error {
	return g.inner.Write(w, v.Interface().(T), ctx)
}

func (g *genericAdapter[T]) readValueAsync(ctx context.Context, r *AsyncReader, sc *SerializationContext) (reflect.Value, error) {
	v, err := g.inner.ReadAsync(ctx, r, sc)
	if err != nil {
		return reflect.Value{}, err
	}
	return reflect.ValueOf(v), nil
}

func (g *genericAdapter[T]) writeValueAsync(ctx context.Context, w *AsyncWriter, v reflect.Value, sc *SerializationContext) error {
	return g.inner.WriteAsync(ctx, w, v.Interface().(T), sc)
}

func (g *genericAdapter[T]) preferAsync() bool { return g.inner.PreferAsync() }

// PropertyAccessor describes one property of an owner type T (spec §3).
// Exactly one of the read/write pairs may be absent; an accessor with
// both absent is structurally dead and must never reach a converter's
// property list (the synthesis visitor drops it instead).
type PropertyAccessor struct {
	Name    string // property name (map layout) / unused (array layout)
	Index   int    // declared array index; -1 when the shape uses map layout
	Conv    anyConverter
	GetPtr  func(owner reflect.Value) reflect.Value // navigates to the field
	HasRead bool
	HasWrite bool

	// SuppressIfNoCtorParam is not consulted by any converter: decode
	// always assigns properties directly to the fields of a fresh owner.
	SuppressIfNoCtorParam bool

	PreferAsyncProp bool

	// ShouldSerialize, when non-nil, is consulted on every Write to decide
	// whether this property is included at all (spec §3, §4.3).
	ShouldSerialize func(owner reflect.Value) bool
}

// shouldInclude reports whether this property belongs in the current
// Write, honoring ShouldSerialize and requiring a writer to exist.
func (p *PropertyAccessor) shouldInclude(owner reflect.Value) bool {
	if !p.HasWrite {
		return false
	}
	if p.ShouldSerialize == nil {
		return true
	}
	return p.ShouldSerialize(owner)
}
