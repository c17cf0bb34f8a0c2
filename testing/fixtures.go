// Package testing provides fixture types shared by packrat's test suite:
// map-layout and array-layout objects, polymorphic subtypes, and the
// before/after callback hooks, each exercising one corner of converter
// synthesis.
package testing

import "reflect"

// SimpleUser is a map-layout object with an omitempty property and no
// callbacks — the baseline synthesis path.
type SimpleUser struct {
	ID    string `msgpack:"id"`
	Email string `msgpack:"email,omitempty"`
}

// Nested holds a map-layout object inside another, exercising recursive
// converter synthesis.
type Nested struct {
	Name  string     `msgpack:"name"`
	Owner SimpleUser `msgpack:"owner"`
}

// Point is an array-layout object: every field declares msgpackidx, so
// synthesis selects the positional array layout.
type Point struct {
	X float64 `msgpackidx:"0"`
	Y float64 `msgpackidx:"1"`
}

// Sparse declares indexes with a gap at 1, to exercise nil-hole handling
// on both read and write.
type Sparse struct {
	First string `msgpackidx:"0"`
	Third string `msgpackidx:"2"`
}

// Selective carries omitempty properties on the array layout, which
// forces the map-vs-array overhead comparison in the array converter's
// write path.
type Selective struct {
	A string `msgpackidx:"0" msgpack:",omitempty"`
	B string `msgpackidx:"1" msgpack:",omitempty"`
	C string `msgpackidx:"2" msgpack:",omitempty"`
	D string `msgpackidx:"3" msgpack:",omitempty"`
	E string `msgpackidx:"4" msgpack:",omitempty"`
}

// Lifecycle records whether its callbacks ran, to verify the
// BeforeSerializer/AfterDeserializer hooks fire on encode/decode.
type Lifecycle struct {
	Value        string `msgpack:"value"`
	BeforeCalled bool   `msgpack:"-"`
	AfterCalled  bool   `msgpack:"-"`
}

// BeforeSerialize implements packrat.BeforeSerializer.
func (l *Lifecycle) BeforeSerialize() error {
	l.BeforeCalled = true
	return nil
}

// AfterDeserialize implements packrat.AfterDeserializer.
func (l *Lifecycle) AfterDeserialize() error {
	l.AfterCalled = true
	return nil
}

// Cyclic is a self-referential struct: Next may point back to another
// Cyclic, exercising the converter cache's cyclic-shape handling during
// synthesis.
type Cyclic struct {
	Label string  `msgpack:"label"`
	Next  *Cyclic `msgpack:"next,omitempty"`
}

// Animal is the base type of a polymorphic hierarchy registered at
// runtime via packrat.RegisterSubTypes.
type Animal struct {
	Name string `msgpack:"name"`
}

// Cow is a concrete Animal subtype.
type Cow struct {
	Name    string `msgpack:"name"`
	Spotted bool   `msgpack:"spotted"`
}

// Pig is a second concrete Animal subtype.
type Pig struct {
	Name   string `msgpack:"name"`
	Weight int    `msgpack:"weight"`
}

// Shape is the base type of a polymorphic hierarchy declared inline via
// SubTypeDeclarer rather than runtime registration.
type Shape struct {
	ID string `msgpack:"id"`
}

// Circle is a concrete Shape subtype.
type Circle struct {
	ID     string  `msgpack:"id"`
	Radius float64 `msgpack:"radius"`
}

// Square is a second concrete Shape subtype.
type Square struct {
	ID   string  `msgpack:"id"`
	Side float64 `msgpack:"side"`
}

// PacratSubTypes declares Shape's known subtypes inline, implementing
// packrat.SubTypeDeclarer.
func (Shape) PacratSubTypes() map[any]reflect.Type {
	return map[any]reflect.Type{
		"circle": reflect.TypeOf(Circle{}),
		"square": reflect.TypeOf(Square{}),
	}
}
