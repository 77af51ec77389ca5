// Package ber implements the small subset of ASN.1 BER needed for the
// directory bind exchange: length encoding, tag-length-value framing,
// bind-request construction and bind-response parsing.
//
// The codec is deliberately hand-rolled. The wire layout must be
// byte-exact and stable, so no general-purpose ASN.1 library is used.
// Framing is a pure function over an accumulated buffer: callers append
// transport reads and call Frame until a complete element is available,
// which keeps partial-read handling deterministic and unit-testable.
package ber
