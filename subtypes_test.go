package packrat

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/zoobzio/packrat/wire"
)

type subtypeBase struct {
	Kind string `msgpack:"kind"`
}

type subtypeConcreteA struct {
	Kind  string `msgpack:"kind"`
	Extra int    `msgpack:"extra"`
}

type subtypeConcreteB struct {
	Kind string `msgpack:"kind"`
}

type subtypeUnregistered struct {
	Kind string `msgpack:"kind"`
}

func TestRegisterSubTypesWriteUnknownRuntimeType(t *testing.T) {
	ResetCache()
	if err := RegisterSubTypes[subtypeBase](map[any]reflect.Type{
		"a": reflect.TypeOf(subtypeConcreteA{}),
	}); err != nil {
		t.Fatalf("RegisterSubTypes: %v", err)
	}

	conv, err := converterFor(reflect.TypeOf(subtypeBase{}))
	if err != nil {
		t.Fatalf("converterFor: %v", err)
	}

	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	ctx := NewSerializationContext(DefaultMaxDepth)

	err = conv.writeValue(w, reflect.ValueOf(subtypeUnregistered{Kind: "x"}), ctx)
	if err == nil {
		t.Fatal("writeValue succeeded for an unregistered runtime type, want error")
	}
}

func TestRegisterSubTypesUnknownAliasOnRead(t *testing.T) {
	ResetCache()
	if err := RegisterSubTypes[subtypeBase](map[any]reflect.Type{
		"a": reflect.TypeOf(subtypeConcreteA{}),
	}); err != nil {
		t.Fatalf("RegisterSubTypes: %v", err)
	}

	s := NewSerializer[subtypeBase](Options{})
	// A hand-built envelope carrying an alias absent from the table.
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	if err := w.WriteArrayHeader(2); err != nil {
		t.Fatalf("WriteArrayHeader: %v", err)
	}
	if err := w.WriteString("unknown-alias"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	if err := w.WriteMapHeader(1); err != nil {
		t.Fatalf("WriteMapHeader: %v", err)
	}
	if err := w.WriteString("kind"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	if err := w.WriteString("x"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}

	if _, err := s.Unmarshal(buf.Bytes()); err == nil {
		t.Fatal("Unmarshal succeeded for an unknown alias, want error")
	}
}

type subtypeIntBase struct {
	Kind string `msgpack:"kind"`
}

type subtypeIntConcrete struct {
	Kind  string `msgpack:"kind"`
	Extra int    `msgpack:"extra"`
}

// TestRegisterSubTypesIntAliasRoundtrip covers an alias registered as a
// plain int (not int64): RegisterSubTypes and readAlias (which always
// decodes a non-string alias via ReadInt64) must agree on a canonical
// dynamic type for the deserializers lookup to ever succeed. Exercises
// subTypesConverter.readValue directly so the concrete subtype returned
// need not be assignable back to the base type.
func TestRegisterSubTypesIntAliasRoundtrip(t *testing.T) {
	ResetCache()
	baseType := reflect.TypeOf(subtypeIntBase{})
	if err := RegisterSubTypes[subtypeIntBase](map[any]reflect.Type{
		1: reflect.TypeOf(subtypeIntConcrete{}),
	}); err != nil {
		t.Fatalf("RegisterSubTypes: %v", err)
	}

	table, ok := lookupSubTypesTable(baseType)
	if !ok {
		t.Fatal("expected a registered subtypes table for subtypeIntBase")
	}
	baseConv, err := converterFor(baseType)
	if err != nil {
		t.Fatalf("converterFor base: %v", err)
	}
	conv := &subTypesConverter{baseType: baseType, baseConv: baseConv, table: table}

	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	if err := w.WriteArrayHeader(2); err != nil {
		t.Fatalf("WriteArrayHeader: %v", err)
	}
	if err := w.WriteInt64(1); err != nil {
		t.Fatalf("WriteInt64: %v", err)
	}
	if err := w.WriteMapHeader(2); err != nil {
		t.Fatalf("WriteMapHeader: %v", err)
	}
	if err := w.WriteString("kind"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	if err := w.WriteString("x"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	if err := w.WriteString("extra"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	if err := w.WriteInt64(7); err != nil {
		t.Fatalf("WriteInt64: %v", err)
	}

	r := wire.NewReaderBytes(buf.Bytes())
	rv, err := conv.readValue(r, NewSerializationContext(DefaultMaxDepth))
	if err != nil {
		t.Fatalf("readValue with an int-aliased subtype: %v", err)
	}
	out := rv.Interface().(subtypeIntConcrete)
	if out.Kind != "x" || out.Extra != 7 {
		t.Errorf("got %+v, want {Kind:x Extra:7}", out)
	}
}

func TestRegisterSubTypesInvalidatesCache(t *testing.T) {
	ResetCache()
	if err := RegisterSubTypes[subtypeBase](map[any]reflect.Type{
		"a": reflect.TypeOf(subtypeConcreteA{}),
	}); err != nil {
		t.Fatalf("first RegisterSubTypes: %v", err)
	}
	if _, err := converterFor(reflect.TypeOf(subtypeBase{})); err != nil {
		t.Fatalf("converterFor: %v", err)
	}

	converterCacheMu.RLock()
	_, cached := converterCache[reflect.TypeOf(subtypeBase{})]
	converterCacheMu.RUnlock()
	if !cached {
		t.Fatal("expected a cached converter for subtypeBase after first synthesis")
	}

	if err := RegisterSubTypes[subtypeBase](map[any]reflect.Type{
		"b": reflect.TypeOf(subtypeConcreteB{}),
	}); err != nil {
		t.Fatalf("second RegisterSubTypes: %v", err)
	}

	converterCacheMu.RLock()
	_, stillCached := converterCache[reflect.TypeOf(subtypeBase{})]
	converterCacheMu.RUnlock()
	if stillCached {
		t.Fatal("RegisterSubTypes did not invalidate the cached converter")
	}
}
