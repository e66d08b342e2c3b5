package otproto

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewUsername(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"empty", "", ErrUsernameEmpty},
		{"single char", "a", nil},
		{"max length", strings.Repeat("a", 100), nil},
		{"too long", strings.Repeat("a", 101), ErrUsernameTooLong},
		{"unicode within bound", strings.Repeat("é", 50), nil}, // 2 bytes each = 100
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			u, err := NewUsername(tc.input)
			if err != tc.wantErr {
				t.Fatalf("got err %v, want %v", err, tc.wantErr)
			}
			if tc.wantErr == nil && u.String() != tc.input {
				t.Errorf("got %q, want %q", u.String(), tc.input)
			}
		})
	}
}

func TestUsernameCompare(t *testing.T) {
	a, _ := NewUsername("alice")
	b, _ := NewUsername("bob")
	if a.Compare(b) >= 0 {
		t.Error("expected alice < bob")
	}
	if a.Compare(a) != 0 {
		t.Error("expected equal usernames to compare equal")
	}
}

func TestUsernameLen(t *testing.T) {
	u, err := NewUsername("hello")
	if err != nil {
		t.Fatal(err)
	}
	if u.Len() != 5 {
		t.Errorf("got %d, want 5", u.Len())
	}
	if !bytes.Equal([]byte(u.String()), []byte("hello")) {
		t.Error("string mismatch")
	}
}
