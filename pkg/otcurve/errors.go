package otcurve

import "errors"

// ErrInvalidMessage is returned when an operation is attempted against a
// MessageState in the wrong phase of the exchange (e.g. OnResponse called on
// a state that already received a greeting), or when a decrypted payload is
// not valid UTF-8.
var ErrInvalidMessage = errors.New("otcurve: received incorrect message type")

// ErrInvalidPoint is returned when a peer-supplied compressed point does not
// decode to a valid point on the P-256 curve.
var ErrInvalidPoint = errors.New("otcurve: received invalid curve point")
