// Package otwire implements the OTMP frame codec: encoding and decoding of
// the framed UDP packets exchanged by the network task.
//
//	offset 0..4  : magic "OTMP"
//	offset 4     : message type (u8)
//	offset 5..7  : payload length L (u16 be)
//	offset 7..7+L: payload
//
// Grounded on the source's net/message.rs framing and the teacher's
// allocation-conscious packet buffer idiom in pkg/nspkt/r2crypto.go.
package otwire

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/packetloom/otmp/pkg/otproto"
)

var magic = [4]byte{'O', 'T', 'M', 'P'}

const headerSize = 7

// Type identifies an OTMP message variant.
type Type uint8

const (
	TypeBroadcastGreet    Type = 0
	TypeBroadcastResponse Type = 1
	TypeBroadcastBye      Type = 2
	TypeGreet             Type = 3
	TypeResponse          Type = 4
	TypeData              Type = 5
)

// String returns the message variant's name, for logging and the debug
// monitor.
func (t Type) String() string {
	switch t {
	case TypeBroadcastGreet:
		return "BroadcastGreet"
	case TypeBroadcastResponse:
		return "BroadcastResponse"
	case TypeBroadcastBye:
		return "BroadcastBye"
	case TypeGreet:
		return "Greet"
	case TypeResponse:
		return "Response"
	case TypeData:
		return "Data"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// MessageError is the decoder's error taxonomy, matching net/message.rs's
// MessageError enum member-for-member.
type MessageError struct {
	kind string
	err  error
}

func (e *MessageError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("otwire: %s: %v", e.kind, e.err)
	}
	return "otwire: " + e.kind
}

func (e *MessageError) Unwrap() error { return e.err }

// Is reports whether target is the same MessageError kind as e, so callers
// can do errors.Is(err, ErrInvalidMagicNumber) etc.
func (e *MessageError) Is(target error) bool {
	t, ok := target.(*MessageError)
	return ok && t.kind == e.kind
}

var (
	ErrMissingHeaderBytes = &MessageError{kind: "header bytes are missing"}
	ErrInvalidMagicNumber = &MessageError{kind: "magic number is invalid"}
	ErrInvalidMessageType = &MessageError{kind: "message type is invalid"}
	ErrInvalidMessageLen  = &MessageError{kind: "message length is invalid"}
)

func errInvalidUTF8(err error) error {
	return &MessageError{kind: "message is invalid utf-8", err: err}
}

func errInvalidUsername(err error) error {
	return &MessageError{kind: "greeting name is invalid", err: err}
}

// ErrInvalidPoint is the MessageError kind for point-decoding failures.
// Decode does not check Greet/Response points against the curve, so it never
// returns this; otcurve.Decompress reports such failures with its own
// otcurve.ErrInvalidPoint, which does not wrap this value.
var ErrInvalidPoint = &MessageError{kind: "received invalid curve point"}

// Message is a decoded OTMP frame. Exactly one of the accessor methods below
// is meaningful, selected by Type().
type Message struct {
	typ      Type
	username otproto.Username
	point    [33]byte // compressed SEC1 P-256 point
	data0    []byte
	data1    []byte
}

// Type reports the decoded message's variant.
func (m Message) Type() Type { return m.typ }

// Username returns the payload of a BroadcastGreet/BroadcastResponse message.
func (m Message) Username() otproto.Username { return m.username }

// Point returns the compressed SEC1-encoded point of a Greet/Response message.
func (m Message) Point() [33]byte { return m.point }

// Data returns the two ciphertexts of a Data message.
func (m Message) Data() (c0, c1 []byte) { return m.data0, m.data1 }

// NewBroadcastGreet constructs a BroadcastGreet message.
func NewBroadcastGreet(name otproto.Username) Message {
	return Message{typ: TypeBroadcastGreet, username: name}
}

// NewBroadcastResponse constructs a BroadcastResponse message.
func NewBroadcastResponse(name otproto.Username) Message {
	return Message{typ: TypeBroadcastResponse, username: name}
}

// NewBroadcastBye constructs a BroadcastBye message.
func NewBroadcastBye() Message {
	return Message{typ: TypeBroadcastBye}
}

// NewGreet constructs a Greet message carrying a's compressed point.
func NewGreet(point [33]byte) Message {
	return Message{typ: TypeGreet, point: point}
}

// NewResponse constructs a Response message carrying b's compressed point.
func NewResponse(point [33]byte) Message {
	return Message{typ: TypeResponse, point: point}
}

// NewData constructs a Data message carrying both OT ciphertexts.
func NewData(c0, c1 []byte) Message {
	return Message{typ: TypeData, data0: c0, data1: c1}
}

// Encode appends the wire representation of m to dst and returns the result.
func Encode(dst []byte, m Message) ([]byte, error) {
	switch m.typ {
	case TypeBroadcastGreet, TypeBroadcastResponse:
		payload := []byte(m.username.String())
		dst = appendHeader(dst, m.typ, len(payload))
		dst = append(dst, payload...)
	case TypeBroadcastBye:
		dst = appendHeader(dst, m.typ, 0)
	case TypeGreet, TypeResponse:
		dst = appendHeader(dst, m.typ, len(m.point))
		dst = append(dst, m.point[:]...)
	case TypeData:
		size := 2 + len(m.data0) + len(m.data1)
		if size > 0xFFFF {
			return nil, &MessageError{kind: "message length is invalid", err: errors.New("data payload too large")}
		}
		dst = appendHeader(dst, m.typ, size)
		var lenbuf [2]byte
		binary.BigEndian.PutUint16(lenbuf[:], uint16(len(m.data0)))
		dst = append(dst, lenbuf[:]...)
		dst = append(dst, m.data0...)
		dst = append(dst, m.data1...)
	default:
		return nil, ErrInvalidMessageType
	}
	return dst, nil
}

func appendHeader(dst []byte, typ Type, payloadLen int) []byte {
	dst = append(dst, magic[:]...)
	dst = append(dst, byte(typ))
	var lenbuf [2]byte
	binary.BigEndian.PutUint16(lenbuf[:], uint16(payloadLen))
	return append(dst, lenbuf[:]...)
}

// Decode parses an OTMP frame from b. b is not retained; Data ciphertexts
// are copied.
func Decode(b []byte) (Message, error) {
	if len(b) < headerSize {
		return Message{}, ErrMissingHeaderBytes
	}
	if b[0] != magic[0] || b[1] != magic[1] || b[2] != magic[2] || b[3] != magic[3] {
		return Message{}, ErrInvalidMagicNumber
	}

	size := int(binary.BigEndian.Uint16(b[5:7]))
	if len(b) != headerSize+size {
		return Message{}, ErrInvalidMessageLen
	}
	payload := b[headerSize:]

	switch Type(b[4]) {
	case TypeBroadcastGreet:
		name, err := decodeUsername(payload)
		if err != nil {
			return Message{}, err
		}
		return NewBroadcastGreet(name), nil
	case TypeBroadcastResponse:
		name, err := decodeUsername(payload)
		if err != nil {
			return Message{}, err
		}
		return NewBroadcastResponse(name), nil
	case TypeBroadcastBye:
		if size != 0 {
			return Message{}, ErrInvalidMessageLen
		}
		return NewBroadcastBye(), nil
	case TypeGreet, TypeResponse:
		if size != 33 {
			return Message{}, ErrInvalidMessageLen
		}
		var pt [33]byte
		copy(pt[:], payload)
		m := Message{typ: Type(b[4]), point: pt}
		return m, nil
	case TypeData:
		if size < 2 {
			return Message{}, ErrInvalidMessageLen
		}
		len0 := int(binary.BigEndian.Uint16(payload[:2]))
		if len0 > size-2 {
			return Message{}, ErrInvalidMessageLen
		}
		rest := payload[2:]
		c0 := append([]byte(nil), rest[:len0]...)
		c1 := append([]byte(nil), rest[len0:]...)
		return NewData(c0, c1), nil
	default:
		return Message{}, ErrInvalidMessageType
	}
}

func decodeUsername(payload []byte) (otproto.Username, error) {
	if !isValidUTF8(payload) {
		return otproto.Username{}, errInvalidUTF8(errors.New("invalid utf-8 sequence"))
	}
	name, err := otproto.NewUsername(string(payload))
	if err != nil {
		return otproto.Username{}, errInvalidUsername(err)
	}
	return name, nil
}
