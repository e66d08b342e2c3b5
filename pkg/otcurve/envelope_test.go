package otcurve

import "testing"

func TestEnvelopeRoundTrip(t *testing.T) {
	var key [32]byte
	for i := range key {
		key[i] = byte(i * 7)
	}

	tests := []string{"", "a", "exactly16bytes..", "a message longer than one AES block to exercise multi-block padding"}
	for _, pt := range tests {
		ct, err := encryptCBC(key, []byte(pt))
		if err != nil {
			t.Fatalf("encrypt %q: %v", pt, err)
		}
		got, err := decryptCBC(key, ct)
		if err != nil {
			t.Fatalf("decrypt %q: %v", pt, err)
		}
		if string(got) != pt {
			t.Errorf("round trip mismatch: got %q want %q", got, pt)
		}
	}
}

func TestDecryptRejectsBadPadding(t *testing.T) {
	var key [32]byte
	ct, err := encryptCBC(key, []byte("hello world"))
	if err != nil {
		t.Fatal(err)
	}
	ct[len(ct)-1] ^= 0xff
	if _, err := decryptCBC(key, ct); err == nil {
		t.Error("expected padding validation to fail after corrupting last byte")
	}
}
