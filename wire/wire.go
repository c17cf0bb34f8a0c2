// Package wire adapts github.com/vmihailenco/msgpack/v5's encoder/decoder
// to the primitive, header-oriented Reader/Writer contract the converter
// layer is written against (see the root package's shape, objectmap, and
// objectarray converters). Nothing above this package talks to
// vmihailenco/msgpack directly.
package wire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Type identifies the wire-level category of the next value, as reported
// by PeekType.
type Type int

// Wire type categories, mirroring the MessagePack format families.
const (
	TypeNil Type = iota
	TypeInt
	TypeFloat
	TypeBool
	TypeString
	TypeArray
	TypeMap
	TypeBinary
	TypeExtension
	TypeUnknown
)

// Codec provides content-type aware whole-document marshaling, used by
// the peripheral format adapters (json/xml/yaml/bson) and by the
// fallback path of the façade. It mirrors the teacher's Codec interface.
type Codec interface {
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// msgpackCodec implements Codec for whole-document MessagePack, used when
// a caller wants vmihailenco/msgpack's own reflection-based encoding
// rather than a packrat-synthesized Converter (e.g. during migration).
type msgpackCodec struct{}

// NewCodec returns a whole-document MessagePack Codec.
func NewCodec() Codec { return &msgpackCodec{} }

func (c *msgpackCodec) ContentType() string { return "application/msgpack" }

func (c *msgpackCodec) Marshal(v any) ([]byte, error) { return msgpack.Marshal(v) }

func (c *msgpackCodec) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }

// Writer is the primitive MessagePack byte-writer collaborator (spec §6.2).
// It tracks its own destination alongside the encoder so WriteRawSpan can
// blit pre-encoded bytes without going through the encoder's reflection path.
type Writer struct {
	enc *msgpack.Encoder
	dst io.Writer
}

// NewWriter returns a Writer that writes to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: msgpack.NewEncoder(w), dst: w}
}

// Reset rebinds the writer to a new destination, for pooled reuse.
func (w *Writer) Reset(dst io.Writer) {
	w.enc.Reset(dst)
	w.dst = dst
}

func (w *Writer) WriteNil() error              { return w.enc.EncodeNil() }
func (w *Writer) WriteBool(v bool) error       { return w.enc.EncodeBool(v) }
func (w *Writer) WriteInt64(v int64) error     { return w.enc.EncodeInt64(v) }
func (w *Writer) WriteUint64(v uint64) error   { return w.enc.EncodeUint64(v) }
func (w *Writer) WriteFloat32(v float32) error { return w.enc.EncodeFloat32(v) }
func (w *Writer) WriteFloat64(v float64) error { return w.enc.EncodeFloat64(v) }
func (w *Writer) WriteString(v string) error   { return w.enc.EncodeString(v) }
func (w *Writer) WriteBytes(v []byte) error    { return w.enc.EncodeBytes(v) }
func (w *Writer) WriteArrayHeader(n int) error { return w.enc.EncodeArrayLen(n) }
func (w *Writer) WriteMapHeader(n int) error   { return w.enc.EncodeMapLen(n) }

// WriteRawSpan blits pre-encoded MessagePack bytes verbatim (used for
// pre-encoded property-name headers and RawBytes passthrough).
func (w *Writer) WriteRawSpan(b []byte) error {
	_, err := w.dst.Write(b)
	return err
}

// Flush flushes the destination if it buffers writes.
func (w *Writer) Flush() error {
	if f, ok := w.dst.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// EncodeStringValue pre-encodes s as a standalone MessagePack value
// (string header plus UTF-8 bytes), for callers that blit a fixed key
// on every write rather than re-encoding it each time.
func EncodeStringValue(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.EncodeString(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Reader is the primitive MessagePack byte-reader collaborator (spec §6.2).
type Reader struct {
	dec    *msgpack.Decoder
	br     *bytes.Reader // non-nil only when reading from an in-memory span
	source []byte        // backing array for br, for zero-copy ReadRawSpan
}

// NewReader returns a Reader that reads from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: msgpack.NewDecoder(r)}
}

// NewReaderBytes returns a Reader bound to an in-memory byte span, so
// Position() reports an offset into that span and ReadRawSpan can alias
// it without copying.
func NewReaderBytes(b []byte) *Reader {
	br := bytes.NewReader(b)
	return &Reader{dec: msgpack.NewDecoder(br), br: br, source: b}
}

func (r *Reader) ReadNil() error                { return r.dec.DecodeNil() }
func (r *Reader) ReadBool() (bool, error)       { return r.dec.DecodeBool() }
func (r *Reader) ReadInt64() (int64, error)     { return r.dec.DecodeInt64() }
func (r *Reader) ReadUint64() (uint64, error)   { return r.dec.DecodeUint64() }
func (r *Reader) ReadFloat32() (float32, error) { return r.dec.DecodeFloat32() }
func (r *Reader) ReadFloat64() (float64, error) { return r.dec.DecodeFloat64() }
func (r *Reader) ReadString() (string, error)   { return r.dec.DecodeString() }
func (r *Reader) ReadBytes() ([]byte, error)    { return r.dec.DecodeBytes() }
func (r *Reader) ReadArrayHeader() (int, error) { return r.dec.DecodeArrayLen() }
func (r *Reader) ReadMapHeader() (int, error)   { return r.dec.DecodeMapLen() }

// nilCode is the single-byte MessagePack encoding of nil (0xc0).
const nilCode byte = 0xc0

// TryReadNil consumes a nil value if present and reports whether it did,
// leaving the cursor unmoved when the next value is not nil.
func (r *Reader) TryReadNil() (bool, error) {
	code, err := r.dec.PeekCode()
	if err != nil {
		return false, err
	}
	if code != nilCode {
		return false, nil
	}
	return true, r.dec.DecodeNil()
}

// Skip advances past one complete MessagePack value without decoding it.
func (r *Reader) Skip() error { return r.dec.Skip() }

// ReadRawSpan records and returns the exact bytes of the next complete
// MessagePack value without interpreting it, for the RawBytes converter.
// When the reader was constructed over an in-memory span (NewReaderBytes)
// the returned slice aliases that span directly, so the caller can wrap
// it as an unowned RawBytes with no copy; otherwise (a streaming source)
// the bytes are necessarily copied during the read.
func (r *Reader) ReadRawSpan() ([]byte, error) {
	if r.br == nil {
		var v msgpack.RawMessage
		if err := r.dec.Decode(&v); err != nil {
			return nil, err
		}
		return []byte(v), nil
	}

	start := r.Position()
	if err := r.dec.Skip(); err != nil {
		return nil, err
	}
	end := r.Position()
	if start < 0 || end > int64(len(r.source)) || start > end {
		return nil, fmt.Errorf("raw span [%d,%d) out of bounds", start, end)
	}
	return r.source[start:end], nil
}

// PeekType reports the wire category of the next value without consuming it.
func (r *Reader) PeekType() (Type, error) {
	code, err := r.dec.PeekCode()
	if err != nil {
		return TypeUnknown, err
	}
	return codeToType(code), nil
}

// Position reports the reader's current byte offset into its source.
// Only meaningful for in-memory readers (NewReaderBytes); streaming
// readers report 0.
func (r *Reader) Position() int64 {
	if r.br == nil {
		return 0
	}
	pos, _ := r.br.Seek(0, io.SeekCurrent)
	return pos
}

// codeToType classifies a raw MessagePack lead byte into a wire Type,
// per the format table in the MessagePack spec.
func codeToType(code byte) Type {
	switch {
	case code <= 0x7f, code >= 0xe0, code >= 0xcc && code <= 0xd3:
		return TypeInt
	case code == 0xc0:
		return TypeNil
	case code == 0xc2 || code == 0xc3:
		return TypeBool
	case code == 0xca || code == 0xcb:
		return TypeFloat
	case code >= 0xa0 && code <= 0xbf, code == 0xd9, code == 0xda, code == 0xdb:
		return TypeString
	case code >= 0x90 && code <= 0x9f, code == 0xdc, code == 0xdd:
		return TypeArray
	case code >= 0x80 && code <= 0x8f, code == 0xde, code == 0xdf:
		return TypeMap
	case code == 0xc4 || code == 0xc5 || code == 0xc6:
		return TypeBinary
	case code == 0xc7 || code == 0xc8 || code == 0xc9 || (code >= 0xd4 && code <= 0xd8):
		return TypeExtension
	default:
		return TypeUnknown
	}
}

// String implements fmt.Stringer for Type, used in error messages.
func (t Type) String() string {
	switch t {
	case TypeNil:
		return "nil"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeString:
		return "string"
	case TypeArray:
		return "array"
	case TypeMap:
		return "map"
	case TypeBinary:
		return "binary"
	case TypeExtension:
		return "extension"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}
