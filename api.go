// Package packrat converts in-memory Go values to and from MessagePack.
//
// A type's wire shape — its properties, whether it lays out as a
// name-keyed map or an integer-indexed array, and its known subtypes —
// is discovered once via reflection and compiled into a cached
// Converter; every later Marshal/Unmarshal for that type reuses it.
//
// # Basic usage
//
//	type User struct {
//	    ID    string `msgpack:"id"`
//	    Email string `msgpack:"email,omitempty"`
//	}
//
//	data, err := packrat.Marshal(User{ID: "u1"})
//	var u User
//	err = packrat.Unmarshal(data, &u)
//
// # Array layout
//
// Tagging every field with msgpackidx selects the positional array
// layout instead of the default name-keyed map layout:
//
//	type Point struct {
//	    X float64 `msgpackidx:"0"`
//	    Y float64 `msgpackidx:"1"`
//	}
//
// # Polymorphism
//
// Register a subtype table for a base type to enable the two-element
// envelope encoding described in the package's design notes:
//
//	packrat.RegisterSubTypes[Animal](map[any]reflect.Type{
//	    1: reflect.TypeOf(Cow{}),
//	})
package packrat

import (
	"bytes"
	"context"
	"io"
	"reflect"
	"time"

	"github.com/zoobzio/sentinel"

	"github.com/zoobzio/packrat/wire"
)

// Options configures a Serializer (spec §6.3).
type Options struct {
	// MaxDepth bounds nesting depth during a single encode/decode call.
	// Zero selects DefaultMaxDepth.
	MaxDepth int

	// Codec, if set, is a whole-document fallback (see the json, xml,
	// yaml, and bson subpackages) used for T until its shape-synthesized
	// converter has been warmed via Warm. This lets a Serializer answer
	// Marshal/Unmarshal/Encode/Decode calls made before synthesis has
	// run, at the cost of the native wire format in the interim.
	Codec wire.Codec
}

func (o Options) maxDepth() int {
	if o.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return o.MaxDepth
}

// Serializer[T] is the public entry point for one value type. Construct
// once per type and reuse; synthesis of the underlying converter runs at
// most once, on first use, and is cached for the process lifetime.
type Serializer[T any] struct {
	opts Options
}

// NewSerializer returns a Serializer for T configured by opts.
func NewSerializer[T any](opts Options) *Serializer[T] {
	return &Serializer[T]{opts: opts}
}

func (s *Serializer[T]) converter() (anyConverter, error) {
	typ := reflect.TypeFor[T]()
	if typ.Kind() == reflect.Struct {
		sentinel.Scan[T]()
	}
	return converterFor(typ)
}

// Warm eagerly synthesizes and caches T's converter. Once it returns
// without error, Marshal/Unmarshal/Encode/Decode use the native wire
// format instead of falling back to opts.Codec.
func (s *Serializer[T]) Warm() error {
	_, err := s.converter()
	return err
}

// warmed reports whether T's converter is already present in the
// instance cache, without triggering synthesis.
func (s *Serializer[T]) warmed() bool {
	_, ok := lookupConverter(reflect.TypeFor[T]())
	return ok
}

// Marshal encodes v to MessagePack bytes, or to opts.Codec's content
// type if a fallback Codec is configured and T has not yet been warmed.
func (s *Serializer[T]) Marshal(v T) ([]byte, error) {
	if s.opts.Codec != nil && !s.warmed() {
		return s.opts.Codec.Marshal(v)
	}
	var buf bytes.Buffer
	if err := s.Encode(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes bytes into a T, via opts.Codec if configured and T
// has not yet been warmed, else via MessagePack. The returned value's
// RawBytes fields, if any, alias data until ToOwned is called.
func (s *Serializer[T]) Unmarshal(data []byte) (T, error) {
	if s.opts.Codec != nil && !s.warmed() {
		var out T
		err := s.opts.Codec.Unmarshal(data, &out)
		return out, err
	}
	return s.decode(wire.NewReaderBytes(data))
}

// Encode writes v to dst, via opts.Codec if configured and T has not
// yet been warmed, else as MessagePack.
func (s *Serializer[T]) Encode(dst io.Writer, v T) error {
	if s.opts.Codec != nil && !s.warmed() {
		data, err := s.opts.Codec.Marshal(v)
		if err != nil {
			return err
		}
		_, err = dst.Write(data)
		return err
	}

	typeName := reflect.TypeFor[T]().String()
	start := time.Now()
	ctx := context.Background()
	emitEncodeStart(ctx, typeName)

	conv, err := s.converter()
	if err != nil {
		emitEncodeComplete(ctx, typeName, time.Since(start), err)
		return err
	}

	w := wire.NewWriter(dst)
	sc := NewSerializationContext(s.opts.maxDepth())
	err = conv.writeValue(w, reflect.ValueOf(v), sc)
	emitEncodeComplete(ctx, typeName, time.Since(start), err)
	return err
}

// Decode reads a streamed T from src, via opts.Codec if configured and T
// has not yet been warmed, else as MessagePack.
func (s *Serializer[T]) Decode(src io.Reader) (T, error) {
	if s.opts.Codec != nil && !s.warmed() {
		var zero T
		data, err := io.ReadAll(src)
		if err != nil {
			return zero, err
		}
		err = s.opts.Codec.Unmarshal(data, &zero)
		return zero, err
	}
	return s.decode(wire.NewReader(src))
}

func (s *Serializer[T]) decode(r *wire.Reader) (T, error) {
	var zero T
	typeName := reflect.TypeFor[T]().String()
	start := time.Now()
	ctx := context.Background()
	emitDecodeStart(ctx, typeName)

	conv, err := s.converter()
	if err != nil {
		emitDecodeComplete(ctx, typeName, time.Since(start), err)
		return zero, err
	}

	sc := NewSerializationContext(s.opts.maxDepth())
	rv, err := conv.readValue(r, sc)
	emitDecodeComplete(ctx, typeName, time.Since(start), err)
	if err != nil {
		return zero, err
	}
	return rv.Interface().(T), nil
}

// EncodeAsync writes v to dst as MessagePack, honoring async-preferring
// properties and the flush-batching schedule in spec §4.3.
func (s *Serializer[T]) EncodeAsync(ctx context.Context, dst io.Writer, v T) error {
	conv, err := s.converter()
	if err != nil {
		return err
	}
	w := NewAsyncWriter(dst)
	sc := NewSerializationContext(s.opts.maxDepth()).WithCancel(ctx)
	if err := conv.writeValueAsync(ctx, w, reflect.ValueOf(v), sc); err != nil {
		return err
	}
	return w.FlushIfAppropriate(ctx)
}

// DecodeAsync reads a streamed T from src, honoring async-preferring
// properties.
func (s *Serializer[T]) DecodeAsync(ctx context.Context, src io.Reader) (T, error) {
	var zero T
	conv, err := s.converter()
	if err != nil {
		return zero, err
	}
	r := NewAsyncReader(src)
	sc := NewSerializationContext(s.opts.maxDepth()).WithCancel(ctx)
	rv, err := conv.readValueAsync(ctx, r, sc)
	if err != nil {
		return zero, err
	}
	return rv.Interface().(T), nil
}

// RegisterConverter installs a user-supplied Converter[T], overriding
// whatever synthesis would otherwise produce for T (spec §3, "the
// instance cache wins when it has an entry"). Must be called before the
// first Marshal/Unmarshal of T; converters are immutable once published.
func RegisterConverter[T any](conv Converter[T]) {
	typ := reflect.TypeFor[T]()
	adapter := &genericAdapter[T]{inner: conv}
	converterCacheMu.Lock()
	cell := newConverterCell()
	converterCache[typ] = cell
	converterCacheMu.Unlock()
	cell.publish(adapter)
}
