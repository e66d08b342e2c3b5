package otcurve

import (
	"testing"

	"github.com/packetloom/otmp/pkg/otproto"
)

func mustMessage(t *testing.T, s string) otproto.UserMessage {
	t.Helper()
	m, err := otproto.NewUserMessage(s)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

// TestObliviousTransferDeliversChosenMessage runs the full Greet/Response/Data
// exchange and checks that the receiver always recovers whichever of the two
// messages its own coin flip selected, regardless of which one that is.
func TestObliviousTransferDeliversChosenMessage(t *testing.T) {
	for trial := 0; trial < 50; trial++ {
		m0 := mustMessage(t, "message zero")
		m1 := mustMessage(t, "message one")

		greetPoint, sender, err := SendMessage(m0, m1)
		if err != nil {
			t.Fatal(err)
		}

		responsePoint, receiver, err := OnGreeting(greetPoint)
		if err != nil {
			t.Fatal(err)
		}

		c0, c1, err := sender.OnResponse(responsePoint)
		if err != nil {
			t.Fatal(err)
		}

		got, err := receiver.OnMessages(c0, c1)
		if err != nil {
			t.Fatalf("receiver failed to decrypt its chosen message: %v", err)
		}

		want := m0.String()
		if receiver.c {
			want = m1.String()
		}
		if got != want {
			t.Fatalf("decrypted message %q, want %q (the message selected by c=%v)", got, want, receiver.c)
		}
	}
}

// TestReceiverCannotDecryptBothMessages is a smoke test for the oblivious
// property: the ciphertext the receiver's own coin flip did NOT select must
// not decrypt with valid PKCS#7 padding under the receiver's derived key on
// every one of many trials (a pass wouldn't prove security, but it is a basic
// sanity signal that the two envelope keys are in fact different).
func TestReceiverCannotDecryptBothMessages(t *testing.T) {
	mismatches := 0
	trials := 50
	for i := 0; i < trials; i++ {
		m0 := mustMessage(t, "zero")
		m1 := mustMessage(t, "one")

		greetPoint, sender, err := SendMessage(m0, m1)
		if err != nil {
			t.Fatal(err)
		}
		responsePoint, receiver, err := OnGreeting(greetPoint)
		if err != nil {
			t.Fatal(err)
		}
		c0, c1, err := sender.OnResponse(responsePoint)
		if err != nil {
			t.Fatal(err)
		}

		wrong := c1
		if receiver.c {
			wrong = c0
		}
		if _, err := decryptCBC(receiver.key, wrong); err == nil {
			mismatches++
		}
	}
	if mismatches == trials {
		t.Fatal("receiver's key decrypted the non-chosen ciphertext on every trial")
	}
}

func TestStatePhaseDiscipline(t *testing.T) {
	m0 := mustMessage(t, "a")
	m1 := mustMessage(t, "b")

	greetPoint, sender, err := SendMessage(m0, m1)
	if err != nil {
		t.Fatal(err)
	}
	_, receiver, err := OnGreeting(greetPoint)
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := receiver.OnResponse(greetPoint); err != ErrInvalidMessage {
		t.Errorf("OnResponse on a GreetReceived state: got %v, want ErrInvalidMessage", err)
	}
	if _, err := sender.OnMessages([]byte("x"), []byte("y")); err != ErrInvalidMessage {
		t.Errorf("OnMessages on a GreetSent state: got %v, want ErrInvalidMessage", err)
	}
}
