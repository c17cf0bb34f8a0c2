package packrat

import (
	"context"
	"reflect"
	"sync"

	"github.com/zoobzio/packrat/wire"
)

// converterCell holds the converter for one reflect.Type once synthesis
// completes. Cyclic shapes publish a cell before synthesis finishes so
// self-referential fields can capture a stable forwarding handle instead
// of recursing forever (spec §4.1, §9).
type converterCell struct {
	done chan struct{}
	mu   sync.Mutex
	conv anyConverter
}

func newConverterCell() *converterCell {
	return &converterCell{done: make(chan struct{})}
}

// tryResolve returns the published converter and true if publish() has
// already happened, without blocking.
func (c *converterCell) tryResolve() (anyConverter, bool) {
	select {
	case <-c.done:
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.conv, true
	default:
		return nil, false
	}
}

// resolve blocks until the cell has been published, then returns the
// synthesized converter. Safe to call before publication: a forwarding
// converter only ever reaches resolve() once its whole type's synthesis
// has completed, since all recursive getOrBuildConverter calls return
// before the outer build() call that triggered them does.
func (c *converterCell) resolve() anyConverter {
	<-c.done
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conv
}

// publish installs the synthesized converter and wakes any forwarding
// converters blocked on resolve(). Called at most once per cell.
func (c *converterCell) publish(conv anyConverter) {
	c.mu.Lock()
	c.conv = conv
	c.mu.Unlock()
	close(c.done)
}

// forwardingConverter defers every call to whatever its cell eventually
// resolves to, so a cyclic or concurrently-racing type reference can be
// captured before synthesis for that type has finished (spec §9).
type forwardingConverter struct {
	cell *converterCell
}

func (f *forwardingConverter) readValue(r *wire.Reader, ctx *SerializationContext) (reflect.Value, error) {
	return f.cell.resolve().readValue(r, ctx)
}

func (f *forwardingConverter) writeValue(w *wire.Writer, v reflect.Value, ctx *SerializationContext) error {
	return f.cell.resolve().writeValue(w, v, ctx)
}

func (f *forwardingConverter) readValueAsync(ctx context.Context, r *AsyncReader, sc *SerializationContext) (reflect.Value, error) {
	return f.cell.resolve().readValueAsync(ctx, r, sc)
}

func (f *forwardingConverter) writeValueAsync(ctx context.Context, w *AsyncWriter, v reflect.Value, sc *SerializationContext) error {
	return f.cell.resolve().writeValueAsync(ctx, w, v, sc)
}

func (f *forwardingConverter) preferAsync() bool { return f.cell.resolve().preferAsync() }

var (
	converterCache   = make(map[reflect.Type]*converterCell)
	converterCacheMu sync.RWMutex
)

// getOrBuildConverter returns the cached anyConverter for typ, or
// synthesizes and caches one via build. Synthesis races are resolved
// insert-once: the cell map entry is created under a single write-lock
// acquisition, so exactly one caller ever observes "not yet present" for
// a given type and becomes that type's synthesizer; every other caller
// — whether racing concurrently or recursing back into typ from within
// that very synthesis (a cyclic shape) — receives a forwardingConverter
// over the same cell instead (spec §4.1, §9).
func getOrBuildConverter(typ reflect.Type, build func() (anyConverter, error)) (anyConverter, error) {
	converterCacheMu.RLock()
	cell, ok := converterCache[typ]
	converterCacheMu.RUnlock()
	if ok {
		if conv, done := cell.tryResolve(); done {
			return conv, nil
		}
		return &forwardingConverter{cell: cell}, nil
	}

	converterCacheMu.Lock()
	cell, existed := converterCache[typ]
	if !existed {
		cell = newConverterCell()
		converterCache[typ] = cell
	}
	converterCacheMu.Unlock()

	if existed {
		return &forwardingConverter{cell: cell}, nil
	}

	conv, err := build()
	if err != nil {
		converterCacheMu.Lock()
		delete(converterCache, typ)
		converterCacheMu.Unlock()
		cell.publish(nil)
		return nil, err
	}
	cell.publish(conv)
	return conv, nil
}

// lookupConverter returns the instance-cache entry for typ without
// synthesizing one, so converterFor can give RegisterConverter's
// registrations precedence over the static primitive registry (spec.md
// §3, "the instance cache wins when it has an entry").
func lookupConverter(typ reflect.Type) (anyConverter, bool) {
	converterCacheMu.RLock()
	cell, ok := converterCache[typ]
	converterCacheMu.RUnlock()
	if !ok {
		return nil, false
	}
	if conv, done := cell.tryResolve(); done {
		return conv, true
	}
	return &forwardingConverter{cell: cell}, true
}

// ResetCache clears every cached converter. Intended for test isolation,
// mirroring the teacher's ResetPlansCache.
func ResetCache() {
	converterCacheMu.Lock()
	defer converterCacheMu.Unlock()
	converterCache = make(map[reflect.Type]*converterCell)
}
