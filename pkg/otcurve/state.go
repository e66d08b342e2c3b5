package otcurve

import (
	"crypto/rand"
	"math/big"
	"unicode/utf8"

	"github.com/packetloom/otmp/pkg/otproto"
)

type stateKind uint8

const (
	stateGreetSent stateKind = iota
	stateGreetReceived
)

// MessageState is the per-peer oblivious transfer exchange state, matching
// the source's MessageState enum. A peer is in exactly one of two phases:
// GreetSent (we initiated, waiting on a Response) or GreetReceived (a peer
// greeted us, and we've committed to which of their two messages we'll
// read).
type MessageState struct {
	kind stateKind

	a     *big.Int
	point Point
	m0    otproto.UserMessage
	m1    otproto.UserMessage

	key [32]byte
	c   bool
}

// SendMessage begins an oblivious transfer offering m0 and m1, returning the
// point to send to the peer as a Greet and the GreetSent state to retain until a
// Response arrives.
func SendMessage(m0, m1 otproto.UserMessage) (Point, MessageState, error) {
	a, err := RandomScalar()
	if err != nil {
		return Point{}, MessageState{}, err
	}
	point := ScalarBaseMult(a)
	return point, MessageState{kind: stateGreetSent, a: a, point: point, m0: m0, m1: m1}, nil
}

// OnGreeting handles an inbound Greet carrying point, flipping a private coin
// c to choose which of the sender's two future messages will be readable,
// and returns the point to send back as a Response along with the resulting
// GreetReceived state.
func OnGreeting(point Point) (Point, MessageState, error) {
	b, err := RandomScalar()
	if err != nil {
		return Point{}, MessageState{}, err
	}
	c, err := randomBool()
	if err != nil {
		return Point{}, MessageState{}, err
	}

	var response Point
	if c {
		response = point.Add(ScalarBaseMult(b))
	} else {
		response = ScalarBaseMult(b)
	}

	key := KeyFromPoint(point.ScalarMult(b))
	return response, MessageState{kind: stateGreetReceived, key: key, c: c}, nil
}

// OnResponse consumes a GreetSent state and an inbound Response point,
// producing the two ciphertexts to send as a Data message. Exactly one of
// them will be decryptable by the peer, depending on the coin it flipped in
// OnGreeting, but the sender here has no way to learn which.
func (s MessageState) OnResponse(other Point) (c0, c1 []byte, err error) {
	if s.kind != stateGreetSent {
		return nil, nil, ErrInvalidMessage
	}
	key0 := KeyFromPoint(other.ScalarMult(s.a))
	key1 := KeyFromPoint(other.Sub(s.point).ScalarMult(s.a))

	c0, err = encryptCBC(key0, []byte(s.m0.String()))
	if err != nil {
		return nil, nil, err
	}
	c1, err = encryptCBC(key1, []byte(s.m1.String()))
	if err != nil {
		return nil, nil, err
	}
	return c0, c1, nil
}

// OnMessages consumes a GreetReceived state and an inbound Data message's two
// ciphertexts, decrypting exactly the one selected by the coin flipped in
// OnGreeting.
func (s MessageState) OnMessages(c0, c1 []byte) (string, error) {
	if s.kind != stateGreetReceived {
		return "", ErrInvalidMessage
	}
	ciphertext := c0
	if s.c {
		ciphertext = c1
	}
	plain, err := decryptCBC(s.key, ciphertext)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(plain) {
		return "", ErrInvalidMessage
	}
	return string(plain), nil
}

func randomBool() (bool, error) {
	var b [1]byte
	if _, err := rand.Read(b[:]); err != nil {
		return false, err
	}
	return b[0]&1 == 1, nil
}
