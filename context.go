package packrat

import "context"

// DefaultMaxDepth is the default nesting limit applied when a Serializer
// is constructed without an explicit MaxDepth option.
const DefaultMaxDepth = 64

// SerializationContext carries scoped, per-call state through one
// encode or decode: the remaining recursion depth and an optional
// cancellation signal for async operation. It is never shared across
// calls and is not safe to retain past the call that created it.
type SerializationContext struct {
	// RemainingDepth decrements on every nested Object/Array/Dictionary
	// descent. DepthStep fails once it would go below zero.
	RemainingDepth int

	// Ctx carries cancellation for async encode/decode. A nil Ctx means
	// no cancellation is observed (equivalent to context.Background()).
	Ctx context.Context
}

// NewSerializationContext returns a context scoped to maxDepth levels of
// nesting with no cancellation signal.
func NewSerializationContext(maxDepth int) *SerializationContext {
	return &SerializationContext{RemainingDepth: maxDepth}
}

// WithCancel returns a copy of sc that observes cancellation via ctx.
func (sc *SerializationContext) WithCancel(ctx context.Context) *SerializationContext {
	return &SerializationContext{RemainingDepth: sc.RemainingDepth, Ctx: ctx}
}

// DepthStep decrements the remaining depth and returns ErrDepthExceeded
// once it would fall below zero. Call this once per Object/Array/
// Dictionary level entered, both on encode and decode.
func (sc *SerializationContext) DepthStep() error {
	if sc.RemainingDepth <= 0 {
		return ErrDepthExceeded
	}
	sc.RemainingDepth--
	return nil
}

// Cancelled reports whether the context's cancellation signal has fired.
// Safe to call even when Ctx is nil.
func (sc *SerializationContext) Cancelled() bool {
	if sc.Ctx == nil {
		return false
	}
	select {
	case <-sc.Ctx.Done():
		return true
	default:
		return false
	}
}

// CheckCancelled returns ErrCancelled if the context has been cancelled.
// Async converters call this at every suspension point per spec §5.
func (sc *SerializationContext) CheckCancelled() error {
	if sc.Cancelled() {
		return ErrCancelled
	}
	return nil
}
