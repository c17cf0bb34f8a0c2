package packrat

import (
	"bufio"
	"context"
	"io"

	"github.com/zoobzio/packrat/wire"
)

// flushThreshold is the scratch-buffer size, in bytes, at which
// AsyncWriter.IsTimeToFlush recommends flushing a sub-writer into the
// underlying stream. Modeled on grailbio/base/recordio's buffer-size-
// triggered flush policy rather than a fixed structure count, since
// structure sizes vary wildly across property types.
const flushThreshold = 32 * 1024

// AsyncWriter is the async extension of the Writer collaborator (spec
// §6.2, §4.3): it can hand out a scratch sub-writer for a synchronous
// run of property writes, decide when that run has grown long enough to
// flush, and flush it into the underlying stream.
type AsyncWriter struct {
	sync *wire.Writer
	dst  io.Writer
	bw   *bufio.Writer
}

// NewAsyncWriter wraps dst for async framed encoding.
func NewAsyncWriter(dst io.Writer) *AsyncWriter {
	bw := bufio.NewWriterSize(dst, 2*flushThreshold)
	return &AsyncWriter{
		sync: wire.NewWriter(bw),
		dst:  dst,
		bw:   bw,
	}
}

// CreateSubWriter returns the scratch sync Writer backing this
// AsyncWriter. The object-as-array converter's async loop (spec §4.3)
// writes a consecutive run of sync-preferring properties to it before
// checking IsTimeToFlush again.
func (a *AsyncWriter) CreateSubWriter() *wire.Writer { return a.sync }

// IsTimeToFlush reports whether the scratch sub-writer has accumulated
// enough buffered bytes to be worth flushing now. Checked between every
// two sync property writes in the async loop.
func (a *AsyncWriter) IsTimeToFlush(ctx context.Context, _ *wire.Writer) bool {
	if ctx != nil && ctx.Err() != nil {
		return true // surface cancellation promptly at the next suspension point
	}
	return a.bw.Buffered() >= flushThreshold
}

// FlushIfAppropriate flushes the buffered sub-writer into the
// underlying stream and checks for cancellation.
func (a *AsyncWriter) FlushIfAppropriate(ctx context.Context) error {
	if err := a.bw.Flush(); err != nil {
		return err
	}
	if ctx != nil {
		select {
		case <-ctx.Done():
			return ErrCancelled
		default:
		}
	}
	return nil
}

// WriteKeySync writes an array-layout map-shape integer key synchronously,
// used by the map-shape selection's async write loop (spec §4.3).
func (a *AsyncWriter) WriteKeySync(i int) error { return a.sync.WriteInt64(int64(i)) }

// AsyncReader is the async extension of the Reader collaborator (spec
// §6.2, §4.3): it hands back a contiguous buffer containing at least
// some whole structures, bounded by a byte budget, for the decoder to
// parse synchronously before surrendering to the async path.
type AsyncReader struct {
	sync *wire.Reader
	br   *bufio.Reader
	src  io.Reader
}

// NewAsyncReader wraps src for async framed decoding.
func NewAsyncReader(src io.Reader) *AsyncReader {
	br := bufio.NewReader(src)
	return &AsyncReader{
		sync: wire.NewReader(br),
		br:   br,
		src:  src,
	}
}

// ReadNextStructures ensures at least `minimum` bytes are buffered (best
// effort; returns fewer only at EOF) up to `budget` bytes, and returns a
// Reader over that buffered region. The caller parses as many whole
// properties from it as fit, then calls ReadNextStructures again for more.
func (a *AsyncReader) ReadNextStructures(minimum, budget int, ctx context.Context) (*wire.Reader, int, error) {
	if ctx != nil {
		select {
		case <-ctx.Done():
			return nil, 0, ErrCancelled
		default:
		}
	}
	if _, err := a.br.Peek(minimum); err != nil && err != bufio.ErrBufferFull && err != io.EOF {
		return nil, 0, err
	}
	n := a.br.Buffered()
	if n > budget {
		n = budget
	}
	buf, _ := a.br.Peek(n)
	return wire.NewReaderBytes(buf), n, nil
}

// AdvanceTo discards n bytes from the buffered stream after the caller
// has synchronously consumed a whole number of structures from a buffer
// returned by ReadNextStructures.
func (a *AsyncReader) AdvanceTo(n int) error {
	_, err := a.br.Discard(n)
	return err
}

// Sync exposes the streaming Reader for the await-boundary portion of
// the decode loop, where a single async property reader takes over.
func (a *AsyncReader) Sync() *wire.Reader { return a.sync }
