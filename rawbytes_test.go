package packrat

import "testing"

func TestRawBytesToOwnedIsIdempotent(t *testing.T) {
	backing := []byte{0x01, 0x02, 0x03}
	rb := RawBytes{Bytes: backing, Owned: false}

	rb.ToOwned()
	if !rb.Owned {
		t.Fatal("ToOwned did not mark the value owned")
	}
	if &rb.Bytes[0] == &backing[0] {
		t.Fatal("ToOwned did not copy the backing array")
	}

	ownedPtr := &rb.Bytes[0]
	rb.ToOwned()
	if &rb.Bytes[0] != ownedPtr {
		t.Error("second ToOwned call re-copied an already-owned buffer")
	}
}

func TestRawBytesEqualIgnoresOwnership(t *testing.T) {
	a := RawBytes{Bytes: []byte("abc"), Owned: false}
	b := RawBytes{Bytes: []byte("abc"), Owned: true}
	if !a.Equal(b) {
		t.Error("Equal() = false for identical byte content with differing ownership")
	}
	c := RawBytes{Bytes: []byte("xyz")}
	if a.Equal(c) {
		t.Error("Equal() = true for differing byte content")
	}
}

func TestRawBytesConverterRoundtrip(t *testing.T) {
	type Envelope struct {
		Payload RawBytes `msgpack:"payload"`
	}

	s := NewSerializer[Envelope](Options{})

	inner := NewSerializer[string](Options{})
	encodedInner, err := inner.Marshal("hello")
	if err != nil {
		t.Fatalf("Marshal inner: %v", err)
	}
	in := Envelope{Payload: RawBytes{Bytes: encodedInner, Owned: true}}

	data, err := s.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	out, err := s.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	decodedInner, err := inner.Unmarshal(out.Payload.Bytes)
	if err != nil {
		t.Fatalf("Unmarshal inner: %v", err)
	}
	if decodedInner != "hello" {
		t.Errorf("decodedInner = %q, want %q", decodedInner, "hello")
	}
}
