package packrat

import (
	"context"
	"reflect"
	"time"
)

// converterFor resolves an anyConverter for typ, in the order specified
// by spec §3/§4.1: instance cache, then static primitive registry, then
// synthesis. This is the single recursive entry point the collection,
// pointer, and object converters call to resolve member/element types.
func converterFor(typ reflect.Type) (anyConverter, error) {
	if conv, ok := lookupConverter(typ); ok {
		return conv, nil
	}
	if conv, ok := primitiveRegistry[typ]; ok {
		return conv, nil
	}
	if typ.Kind() == reflect.Slice && typ.Elem().Kind() == reflect.Uint8 {
		return bytesConverter{}, nil
	}

	return getOrBuildConverter(typ, func() (anyConverter, error) {
		return synthesize(typ)
	})
}

// synthesize is the shape-directed visitor (C6, spec §4.1): given a
// runtime type it produces a Converter by dispatching on the type's
// reflect.Kind, which stands in for the shape variants {Primitive, Enum,
// Nullable, Array, Dictionary, Object} named in spec §3. The primitive
// registry is keyed by exact type, so only the predeclared scalar types
// resolve there; a named scalar type (the Go form of an enum) reaches
// the default case below and fails with ErrNotSupported. The shape
// variants with dedicated converters are Nullable (pointer),
// Array/Dictionary (slice/map), and Object (struct).
func synthesize(typ reflect.Type) (conv anyConverter, err error) {
	start := time.Now()
	ctx := context.Background()
	emitSynthesisStart(ctx, typ.String())
	propCount := 0
	defer func() {
		emitSynthesisComplete(ctx, typ.String(), time.Since(start), propCount, err)
	}()

	switch typ.Kind() {
	case reflect.Ptr:
		elemConv, err := converterFor(typ.Elem())
		if err != nil {
			return nil, err
		}
		return &pointerConverter{elemType: typ.Elem(), elemConv: elemConv}, nil

	case reflect.Slice:
		if typ.Elem().Kind() == reflect.Uint8 {
			return bytesConverter{}, nil
		}
		elemConv, err := converterFor(typ.Elem())
		if err != nil {
			return nil, err
		}
		return &sliceConverter{elemType: typ.Elem(), elemConv: elemConv}, nil

	case reflect.Map:
		keyConv, err := converterFor(typ.Key())
		if err != nil {
			return nil, err
		}
		valConv, err := converterFor(typ.Elem())
		if err != nil {
			return nil, err
		}
		return &mapConverter{keyType: typ.Key(), valType: typ.Elem(), keyConv: keyConv, valConv: valConv}, nil

	case reflect.Struct:
		baseConv, shape, err := synthesizeObject(typ)
		if err != nil {
			return nil, err
		}
		propCount = len(shape.Properties)
		return wrapSubTypesIfDeclared(typ, baseConv)

	default:
		return nil, newSynthesisError(ErrNotSupported, typ)
	}
}

// synthesizeObject builds the map- or array-layout converter for a
// struct type, per the layout rule in spec §4.1 step 2: presence of any
// property with an explicit declared integer key selects the array
// layout; otherwise the map layout.
func synthesizeObject(typ reflect.Type) (anyConverter, *objectShape, error) {
	shape, err := scanObjectShape(typ)
	if err != nil {
		return nil, nil, err
	}

	var conv anyConverter
	if shape.ArrayLayout {
		conv, err = buildObjectArrayConverter(typ, shape)
	} else {
		conv, err = buildObjectMapConverter(typ, shape)
	}
	if err != nil {
		return nil, nil, err
	}
	return conv, shape, nil
}

// wrapSubTypesIfDeclared wraps baseConv in the polymorphic envelope
// (spec §4.4) if typ has a runtime-registered or shape-declared subtype
// table. Runtime registration (RegisterSubTypes) takes precedence over a
// shape-declared table for the same base type (spec §4.4).
func wrapSubTypesIfDeclared(typ reflect.Type, baseConv anyConverter) (anyConverter, error) {
	if table, ok := lookupSubTypesTable(typ); ok {
		return &subTypesConverter{baseType: typ, baseConv: baseConv, table: table}, nil
	}
	if table, ok := declaredSubTypesTable(typ); ok {
		return &subTypesConverter{baseType: typ, baseConv: baseConv, table: table}, nil
	}
	return baseConv, nil
}
