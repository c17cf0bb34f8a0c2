package packrat

// BeforeSerializer is implemented by values that need to run logic
// immediately before their first property is written (spec §4.2, §8
// scenario 6). Checked once at synthesis time (spec §9, "Callbacks on
// the value") rather than per-value, so the object converters carry a
// fixed boolean instead of a runtime interface probe on every write.
type BeforeSerializer interface {
	BeforeSerialize() error
}

// AfterDeserializer is implemented by values that need to run logic
// after every property has been read.
type AfterDeserializer interface {
	AfterDeserialize() error
}
