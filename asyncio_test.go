package packrat

import (
	"bytes"
	"context"
	"testing"
)

func TestAsyncWriterFlushIfAppropriate(t *testing.T) {
	var buf bytes.Buffer
	w := NewAsyncWriter(&buf)
	sub := w.CreateSubWriter()

	if err := sub.WriteString("payload"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("underlying buffer received %d bytes before flush, want 0", buf.Len())
	}

	if err := w.FlushIfAppropriate(context.Background()); err != nil {
		t.Fatalf("FlushIfAppropriate: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("underlying buffer is still empty after flush")
	}
}

func TestAsyncWriterIsTimeToFlushHonorsCancellation(t *testing.T) {
	var buf bytes.Buffer
	w := NewAsyncWriter(&buf)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if !w.IsTimeToFlush(ctx, w.CreateSubWriter()) {
		t.Error("IsTimeToFlush() = false for a cancelled context, want true")
	}
}

func TestAsyncWriterFlushIfAppropriateReturnsCancelled(t *testing.T) {
	var buf bytes.Buffer
	w := NewAsyncWriter(&buf)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := w.FlushIfAppropriate(ctx); err != ErrCancelled {
		t.Errorf("FlushIfAppropriate() = %v, want ErrCancelled", err)
	}
}

func TestAsyncReaderReadNextStructuresAndAdvance(t *testing.T) {
	var buf bytes.Buffer
	w := NewAsyncWriter(&buf)
	sub := w.CreateSubWriter()
	if err := sub.WriteString("a"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	if err := sub.WriteString("b"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	if err := w.FlushIfAppropriate(context.Background()); err != nil {
		t.Fatalf("FlushIfAppropriate: %v", err)
	}

	r := NewAsyncReader(&buf)
	sr, n, err := r.ReadNextStructures(1, 1<<16, context.Background())
	if err != nil {
		t.Fatalf("ReadNextStructures: %v", err)
	}
	if n == 0 {
		t.Fatal("ReadNextStructures returned zero buffered bytes")
	}

	first, err := sr.ReadString()
	if err != nil || first != "a" {
		t.Fatalf("ReadString() = %q, %v, want a, nil", first, err)
	}
	consumed := sr.Position()

	if err := r.AdvanceTo(int(consumed)); err != nil {
		t.Fatalf("AdvanceTo: %v", err)
	}

	second, err := r.Sync().ReadString()
	if err != nil || second != "b" {
		t.Fatalf("ReadString() after advance = %q, %v, want b, nil", second, err)
	}
}
