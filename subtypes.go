package packrat

import (
	"context"
	"reflect"
	"sync"

	"github.com/zoobzio/packrat/wire"
)

// SubTypeDeclarer lets a base type declare its known subtypes inline at
// the shape level (spec §3, SubTypes), as an alternative to registering
// them at runtime via RegisterSubTypes. Alias values must be int or
// string; PacratSubTypes should return a fresh map each call only if the
// declaration is computed — a package-level var is fine to return
// directly since synthesis never mutates it.
type SubTypeDeclarer interface {
	PacratSubTypes() map[any]reflect.Type
}

// subTypesTable holds the two lookup directions required by the
// polymorphic envelope (spec §3, SubTypes): deserializers by alias, and
// serializers by runtime type. Immutable once built.
type subTypesTable struct {
	baseType      reflect.Type
	deserializers map[any]anyConverter
	byRuntimeType map[reflect.Type]aliasedConverter
}

type aliasedConverter struct {
	alias any
	conv  anyConverter
}

var (
	subtypesRegistry   = make(map[reflect.Type]*subTypesTable)
	subtypesRegistryMu sync.RWMutex
)

// RegisterSubTypes installs or replaces the subtype table for Base,
// mapping an alias to each concrete subtype. It wholly replaces any
// shape-declared table for Base (spec §4.4, runtime registration), and
// invalidates any converter already cached for Base so the next
// get_or_make resynthesizes with the new table (the "invalidate" policy
// chosen for the ambiguity noted in spec §9).
func RegisterSubTypes[Base any](table map[any]reflect.Type) error {
	baseType := reflect.TypeOf((*Base)(nil)).Elem()

	built := &subTypesTable{
		baseType:      baseType,
		deserializers: make(map[any]anyConverter, len(table)),
		byRuntimeType: make(map[reflect.Type]aliasedConverter, len(table)),
	}

	for alias, concreteType := range table {
		conv, err := converterFor(concreteType)
		if err != nil {
			return err
		}
		alias = normalizeAlias(alias)
		built.deserializers[alias] = conv
		built.byRuntimeType[concreteType] = aliasedConverter{alias: alias, conv: conv}
	}

	subtypesRegistryMu.Lock()
	subtypesRegistry[baseType] = built
	subtypesRegistryMu.Unlock()

	converterCacheMu.Lock()
	delete(converterCache, baseType)
	converterCacheMu.Unlock()

	return nil
}

func lookupSubTypesTable(baseType reflect.Type) (*subTypesTable, bool) {
	subtypesRegistryMu.RLock()
	defer subtypesRegistryMu.RUnlock()
	t, ok := subtypesRegistry[baseType]
	return t, ok
}

// declaredSubTypesTable builds a subTypesTable from a type's own
// SubTypeDeclarer implementation, if any, checked once at synthesis time
// (spec §9, "Callbacks on the value" — same one-branch-at-synthesis
// principle applied to subtype declaration).
func declaredSubTypesTable(baseType reflect.Type) (*subTypesTable, bool) {
	probe := reflect.New(baseType).Interface()
	decl, ok := probe.(SubTypeDeclarer)
	if !ok {
		return nil, false
	}

	table := decl.PacratSubTypes()
	built := &subTypesTable{
		baseType:      baseType,
		deserializers: make(map[any]anyConverter, len(table)),
		byRuntimeType: make(map[reflect.Type]aliasedConverter, len(table)),
	}
	for alias, concreteType := range table {
		conv, err := converterFor(concreteType)
		if err != nil {
			continue
		}
		alias = normalizeAlias(alias)
		built.deserializers[alias] = conv
		built.byRuntimeType[concreteType] = aliasedConverter{alias: alias, conv: conv}
	}
	return built, true
}

// normalizeAlias canonicalizes an alias's dynamic type before it is used
// as a map key. Table authors may register an integer alias as any int
// kind, but readAlias always decodes a non-string alias via ReadInt64,
// so every integer alias is coerced to int64 here to keep the two sides
// comparable under Go's any-key equality (type and value must match).
func normalizeAlias(alias any) any {
	switch a := alias.(type) {
	case int64:
		return a
	case int:
		return int64(a)
	case int8:
		return int64(a)
	case int16:
		return int64(a)
	case int32:
		return int64(a)
	case uint:
		return int64(a)
	case uint8:
		return int64(a)
	case uint16:
		return int64(a)
	case uint32:
		return int64(a)
	case uint64:
		return int64(a)
	default:
		return alias
	}
}

// subTypesConverter wraps a base converter with the polymorphic envelope
// (spec §4.4): every instance serializes as a two-element array
// `[alias|nil, payload]`.
type subTypesConverter struct {
	baseType reflect.Type
	baseConv anyConverter
	table    *subTypesTable
}

func (s *subTypesConverter) dispatchForWrite(v reflect.Value) (any, anyConverter, error) {
	runtimeType := v.Type()
	if runtimeType == s.baseType {
		return nil, s.baseConv, nil
	}
	if ac, ok := s.table.byRuntimeType[runtimeType]; ok {
		return ac.alias, ac.conv, nil
	}
	return nil, nil, newSynthesisError(ErrUnknownSubType, runtimeType)
}

func (s *subTypesConverter) readValue(r *wire.Reader, ctx *SerializationContext) (reflect.Value, error) {
	if err := ctx.DepthStep(); err != nil {
		return reflect.Value{}, err
	}
	n, err := r.ReadArrayHeader()
	if err != nil {
		return reflect.Value{}, newWireError(r.Position(), err)
	}
	if n != 2 {
		return reflect.Value{}, newConversionError(ErrMalformedEnvelope, s.baseType.Name(), nil)
	}

	isNil, err := r.TryReadNil()
	if err != nil {
		return reflect.Value{}, newWireError(r.Position(), err)
	}
	if isNil {
		return s.baseConv.readValue(r, ctx)
	}

	alias, err := readAlias(r)
	if err != nil {
		return reflect.Value{}, err
	}
	conv, ok := s.table.deserializers[alias]
	if !ok {
		return reflect.Value{}, newConversionError(ErrUnknownAlias, s.baseType.Name(), nil)
	}
	return conv.readValue(r, ctx)
}

func (s *subTypesConverter) writeValue(w *wire.Writer, v reflect.Value, ctx *SerializationContext) error {
	if err := ctx.DepthStep(); err != nil {
		return err
	}
	alias, conv, err := s.dispatchForWrite(v)
	if err != nil {
		return err
	}
	if err := w.WriteArrayHeader(2); err != nil {
		return err
	}
	if alias == nil {
		if err := w.WriteNil(); err != nil {
			return err
		}
	} else if err := writeAlias(w, alias); err != nil {
		return err
	}
	return conv.writeValue(w, v, ctx)
}

func (s *subTypesConverter) readValueAsync(ctx context.Context, r *AsyncReader, sc *SerializationContext) (reflect.Value, error) {
	return s.readValue(r.sync, sc)
}

func (s *subTypesConverter) writeValueAsync(ctx context.Context, w *AsyncWriter, v reflect.Value, sc *SerializationContext) error {
	return s.writeValue(w.sync, v, sc)
}

func (s *subTypesConverter) preferAsync() bool { return false }

// readAlias reads slot 0 of a polymorphic envelope once it is known not
// to be nil. Aliases are declared as either an integer or a string
// (spec §3); the wire type of the next value disambiguates which.
func readAlias(r *wire.Reader) (any, error) {
	t, err := r.PeekType()
	if err != nil {
		return nil, newWireError(r.Position(), err)
	}
	if t == wire.TypeString {
		v, err := r.ReadString()
		if err != nil {
			return nil, newWireError(r.Position(), err)
		}
		return v, nil
	}
	v, err := r.ReadInt64()
	if err != nil {
		return nil, newWireError(r.Position(), err)
	}
	return v, nil
}

func writeAlias(w *wire.Writer, alias any) error {
	switch a := alias.(type) {
	case string:
		return w.WriteString(a)
	case int:
		return w.WriteInt64(int64(a))
	case int64:
		return w.WriteInt64(a)
	default:
		return ErrWireFormat
	}
}
