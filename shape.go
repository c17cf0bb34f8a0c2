package packrat

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/zoobzio/sentinel"
)

func init() {
	sentinel.Tag("msgpack")
	sentinel.Tag("msgpackidx")
}

// propertyShape describes one property discovered on a struct type,
// before a converter has been synthesized for its element type (spec
// §3, PropertyAccessor<T>).
type propertyShape struct {
	Name       string // wire name, map layout only
	Index      int    // declared array index; -1 when undeclared
	FieldIndex []int  // reflect.Value.FieldByIndex path
	FieldType  reflect.Type
	OmitEmpty  bool
}

// objectShape describes a struct type's serializable surface: its
// properties and whether any property declared an explicit array index
// (spec §4.1 step 2 — presence of even one indexed property selects the
// array layout for the whole type).
type objectShape struct {
	Type        reflect.Type
	Properties  []propertyShape
	ArrayLayout bool
}

// scanObjectShape builds an objectShape for a struct type via sentinel,
// falling back to ad hoc reflection for nested types sentinel has not
// scanned (mirrors the teacher's scanNestedType fallback).
func scanObjectShape(typ reflect.Type) (*objectShape, error) {
	if typ.Kind() != reflect.Struct {
		return nil, newSynthesisError(ErrNotSupported, typ)
	}

	meta, ok := sentinel.Lookup(typ.String())
	if !ok {
		meta = reflectScan(typ)
	}

	shape := &objectShape{Type: typ}
	for _, field := range meta.Fields {
		ps, include, err := buildPropertyShape(field)
		if err != nil {
			return nil, err
		}
		if !include {
			continue
		}
		if ps.Index >= 0 {
			shape.ArrayLayout = true
		}
		shape.Properties = append(shape.Properties, ps)
	}
	return shape, nil
}

// buildPropertyShape derives a propertyShape from one scanned field,
// honoring the `msgpack` (name/omitempty/skip) and `msgpackidx` (array
// layout index) struct tags.
func buildPropertyShape(field sentinel.FieldMetadata) (propertyShape, bool, error) {
	ps := propertyShape{
		Name:       field.Name,
		Index:      -1,
		FieldIndex: field.Index,
		FieldType:  field.ReflectType,
	}

	if tag, ok := field.Tags["msgpack"]; ok {
		parts := strings.Split(tag, ",")
		if parts[0] == "-" {
			return ps, false, nil
		}
		if parts[0] != "" {
			ps.Name = parts[0]
		}
		for _, opt := range parts[1:] {
			if opt == "omitempty" {
				ps.OmitEmpty = true
			}
		}
	}

	if tag, ok := field.Tags["msgpackidx"]; ok {
		idx, err := strconv.Atoi(tag)
		if err != nil {
			return ps, false, newSynthesisError(ErrNotSupported, field.ReflectType)
		}
		ps.Index = idx
	}

	return ps, true, nil
}

// reflectScan builds sentinel.Metadata for a struct type sentinel has
// not indexed via Scan[T], by walking its exported fields directly.
// Grounded on the teacher's scanNestedType fallback in processor.go.
func reflectScan(typ reflect.Type) sentinel.Metadata {
	meta := sentinel.Metadata{
		TypeName:    typ.Name(),
		PackageName: typ.PkgPath(),
		Fields:      make([]sentinel.FieldMetadata, 0, typ.NumField()),
	}

	for i := 0; i < typ.NumField(); i++ {
		sf := typ.Field(i)
		if !sf.IsExported() {
			continue
		}

		fm := sentinel.FieldMetadata{
			Name:        sf.Name,
			Type:        sf.Type.String(),
			ReflectType: sf.Type,
			Index:       sf.Index,
			Tags: map[string]string{},
		}
		if v, ok := sf.Tag.Lookup("msgpack"); ok {
			fm.Tags["msgpack"] = v
		}
		if v, ok := sf.Tag.Lookup("msgpackidx"); ok {
			fm.Tags["msgpackidx"] = v
		}

		switch sf.Type.Kind() {
		case reflect.Struct:
			fm.Kind = sentinel.KindStruct
		case reflect.Ptr:
			fm.Kind = sentinel.KindPointer
		case reflect.Slice, reflect.Array:
			fm.Kind = sentinel.KindSlice
		case reflect.Map:
			fm.Kind = sentinel.KindMap
		case reflect.Interface:
			fm.Kind = sentinel.KindInterface
		default:
			fm.Kind = sentinel.KindScalar
		}

		meta.Fields = append(meta.Fields, fm)
	}

	return meta
}

// maxArrayIndex returns the maximum declared Index across shape's
// properties, or -1 if none declared one.
func (s *objectShape) maxArrayIndex() int {
	max := -1
	for _, p := range s.Properties {
		if p.Index > max {
			max = p.Index
		}
	}
	return max
}
