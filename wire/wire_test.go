package wire

import "testing"

func TestWriterReaderPrimitivesRoundtrip(t *testing.T) {
	var buf byteBuffer
	w := NewWriter(&buf)

	if err := w.WriteInt64(-42); err != nil {
		t.Fatalf("WriteInt64: %v", err)
	}
	if err := w.WriteString("hello"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	if err := w.WriteBool(true); err != nil {
		t.Fatalf("WriteBool: %v", err)
	}

	r := NewReaderBytes(buf.data)

	n, err := r.ReadInt64()
	if err != nil || n != -42 {
		t.Fatalf("ReadInt64() = %d, %v, want -42, nil", n, err)
	}
	s, err := r.ReadString()
	if err != nil || s != "hello" {
		t.Fatalf("ReadString() = %q, %v, want hello, nil", s, err)
	}
	b, err := r.ReadBool()
	if err != nil || !b {
		t.Fatalf("ReadBool() = %v, %v, want true, nil", b, err)
	}
}

func TestTryReadNil(t *testing.T) {
	var buf byteBuffer
	w := NewWriter(&buf)
	if err := w.WriteNil(); err != nil {
		t.Fatalf("WriteNil: %v", err)
	}
	if err := w.WriteInt64(7); err != nil {
		t.Fatalf("WriteInt64: %v", err)
	}

	r := NewReaderBytes(buf.data)
	isNil, err := r.TryReadNil()
	if err != nil || !isNil {
		t.Fatalf("TryReadNil() = %v, %v, want true, nil", isNil, err)
	}

	isNil, err = r.TryReadNil()
	if err != nil || isNil {
		t.Fatalf("TryReadNil() = %v, %v, want false, nil", isNil, err)
	}
	n, err := r.ReadInt64()
	if err != nil || n != 7 {
		t.Fatalf("ReadInt64() = %d, %v, want 7, nil", n, err)
	}
}

func TestPeekTypeClassifiesFamilies(t *testing.T) {
	cases := []struct {
		name   string
		encode func(w *Writer) error
		want   Type
	}{
		{"int", func(w *Writer) error { return w.WriteInt64(1) }, TypeInt},
		{"string", func(w *Writer) error { return w.WriteString("x") }, TypeString},
		{"array", func(w *Writer) error { return w.WriteArrayHeader(0) }, TypeArray},
		{"map", func(w *Writer) error { return w.WriteMapHeader(0) }, TypeMap},
		{"bool", func(w *Writer) error { return w.WriteBool(false) }, TypeBool},
		{"nil", func(w *Writer) error { return w.WriteNil() }, TypeNil},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var buf byteBuffer
			w := NewWriter(&buf)
			if err := c.encode(w); err != nil {
				t.Fatalf("encode: %v", err)
			}
			r := NewReaderBytes(buf.data)
			got, err := r.PeekType()
			if err != nil {
				t.Fatalf("PeekType: %v", err)
			}
			if got != c.want {
				t.Errorf("PeekType() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestReadRawSpanAliasesSourceForByteReader(t *testing.T) {
	var buf byteBuffer
	w := NewWriter(&buf)
	if err := w.WriteString("first"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	if err := w.WriteInt64(2); err != nil {
		t.Fatalf("WriteInt64: %v", err)
	}

	r := NewReaderBytes(buf.data)
	span, err := r.ReadRawSpan()
	if err != nil {
		t.Fatalf("ReadRawSpan: %v", err)
	}
	if len(span) == 0 {
		t.Fatal("ReadRawSpan returned an empty span")
	}

	spanReader := NewReaderBytes(span)
	s, err := spanReader.ReadString()
	if err != nil || s != "first" {
		t.Fatalf("span decodes to %q, %v, want first, nil", s, err)
	}

	n, err := r.ReadInt64()
	if err != nil || n != 2 {
		t.Fatalf("ReadInt64() after span = %d, %v, want 2, nil", n, err)
	}
}

func TestEncodeStringValueProducesStandaloneValue(t *testing.T) {
	header, err := EncodeStringValue("field")
	if err != nil {
		t.Fatalf("EncodeStringValue: %v", err)
	}
	r := NewReaderBytes(header)
	s, err := r.ReadString()
	if err != nil {
		t.Fatalf("ReadString: %v", err)
	}
	if s != "field" {
		t.Errorf("ReadString() = %q, want %q", s, "field")
	}
}

// byteBuffer is a minimal growable io.Writer, avoiding a bytes.Buffer
// import collision with this package's own byte-span tests.
type byteBuffer struct {
	data []byte
}

func (b *byteBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}
