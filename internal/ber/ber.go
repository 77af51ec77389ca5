package ber

import (
	"errors"
	"fmt"
)

// Tags used by the directory bind exchange. The protocol-op tags are the
// standard LDAP application tags; the same scheme is used by both the
// encode and decode halves.
const (
	TagSequence     = 0x30
	TagInteger      = 0x02
	TagOctetString  = 0x04
	TagEnumerated   = 0x0A
	TagBindRequest  = 0x60
	TagBindResponse = 0x61

	// TagSimpleAuth is the context-specific tag for the simple
	// (password) choice of the bind request's authentication field.
	TagSimpleAuth = 0x80
)

// BindVersion is the protocol version carried in every bind request.
const BindVersion = 3

// longFormBit marks a long-form length octet.
const longFormBit = 0x80

// Sentinel errors for codec failures.
var (
	// ErrTruncated indicates the buffer ends before the declared
	// element does. Frame accumulation treats it as "need more bytes".
	ErrTruncated = errors.New("ber: truncated element")

	// ErrInvalidLength indicates an indefinite or oversized length
	// encoding, which this codec does not accept.
	ErrInvalidLength = errors.New("ber: invalid length encoding")

	// ErrUnexpectedTag indicates an element tagged differently than the
	// protocol requires at that position.
	ErrUnexpectedTag = errors.New("ber: unexpected tag")

	// ErrMissingResultCode indicates a bind response without an
	// ENUMERATED result-code field.
	ErrMissingResultCode = errors.New("ber: bind response missing result code")
)

// EncodeLength encodes a content length. Lengths below 128 use the
// single-byte short form; anything larger uses the long form: a count
// octet (0x80 | numBytes) followed by the minimal big-endian value.
// EncodeLength and DecodeLength are exact inverses.
func EncodeLength(n int) []byte {
	if n < 0 {
		panic("ber: negative length")
	}
	if n < longFormBit {
		return []byte{byte(n)}
	}

	var value []byte
	for v := n; v > 0; v >>= 8 {
		value = append([]byte{byte(v & 0xFF)}, value...)
	}
	return append([]byte{longFormBit | byte(len(value))}, value...)
}

// DecodeLength decodes a length produced by EncodeLength.
//
// Returns the content length, the number of bytes consumed from buf,
// and an error. ErrTruncated means more bytes are needed before the
// length can be decoded.
func DecodeLength(buf []byte) (n int, consumed int, err error) {
	if len(buf) == 0 {
		return 0, 0, ErrTruncated
	}

	first := buf[0]
	if first < longFormBit {
		return int(first), 1, nil
	}

	numBytes := int(first & 0x7F)
	if numBytes == 0 {
		// Indefinite form is not part of this protocol subset.
		return 0, 0, ErrInvalidLength
	}
	const maxLengthBytes = 8
	if numBytes > maxLengthBytes {
		return 0, 0, ErrInvalidLength
	}
	if len(buf) < 1+numBytes {
		return 0, 0, ErrTruncated
	}

	for _, b := range buf[1 : 1+numBytes] {
		if n > (1<<55)-1 {
			return 0, 0, ErrInvalidLength
		}
		n = n<<8 | int(b)
	}
	return n, 1 + numBytes, nil
}

// Frame extracts one complete tag-length-value element from buf.
//
// It is a pure accumulator step: callers append transport reads to buf
// and call Frame until it stops returning ErrTruncated, at which point
// frame holds exactly one element and rest holds any surplus bytes.
func Frame(buf []byte) (frame, rest []byte, err error) {
	if len(buf) < 1 {
		return nil, buf, ErrTruncated
	}

	n, consumed, err := DecodeLength(buf[1:])
	if err != nil {
		return nil, buf, err
	}

	total := 1 + consumed + n
	if len(buf) < total {
		return nil, buf, ErrTruncated
	}
	return buf[:total], buf[total:], nil
}

// element wraps content in a tag-length-value envelope.
func element(tag byte, content []byte) []byte {
	out := make([]byte, 0, 2+len(content))
	out = append(out, tag)
	out = append(out, EncodeLength(len(content))...)
	return append(out, content...)
}

// encodeInteger emits a non-negative INTEGER in minimal two's-complement
// form, with a leading zero octet when the high bit would otherwise flip
// the sign.
func encodeInteger(n int) []byte {
	if n < 0 {
		panic("ber: negative integer")
	}

	var value []byte
	for v := n; ; v >>= 8 {
		value = append([]byte{byte(v & 0xFF)}, value...)
		if v < 0x100 {
			break
		}
	}
	if value[0]&0x80 != 0 {
		value = append([]byte{0x00}, value...)
	}
	return element(TagInteger, value)
}

// decodeInteger reads the content octets of an INTEGER or ENUMERATED
// element as a non-negative value.
func decodeInteger(content []byte) int {
	var n int
	for _, b := range content {
		n = n<<8 | int(b)
	}
	return n
}

// EncodeBindRequest builds a directory bind request:
//
//	SEQUENCE {
//	    messageID  INTEGER,
//	    [APPLICATION 0] {            -- 0x60 BindRequest
//	        version    INTEGER (3),
//	        name       OCTET STRING,
//	        [0]        password      -- 0x80 simple authentication
//	    }
//	}
func EncodeBindRequest(messageID int, principal, password string) []byte {
	body := encodeInteger(BindVersion)
	body = append(body, element(TagOctetString, []byte(principal))...)
	body = append(body, element(TagSimpleAuth, []byte(password))...)

	envelope := encodeInteger(messageID)
	envelope = append(envelope, element(TagBindRequest, body)...)

	return element(TagSequence, envelope)
}

// DecodeBindResponse parses one complete bind-response frame (as
// returned by Frame) and extracts the result code.
//
// The protocol-op tag must be 0x61 (BindResponse); any other tag fails
// with ErrUnexpectedTag before the result code is inspected. The result
// code is the first ENUMERATED (0x0A) field of the response body; zero
// means success, and interpretation of non-zero codes is the caller's.
func DecodeBindResponse(frame []byte) (int, error) {
	content, err := expect(frame, TagSequence)
	if err != nil {
		return 0, fmt.Errorf("bind response envelope: %w", err)
	}

	// messageID INTEGER
	msgID, rest, err := next(content)
	if err != nil {
		return 0, fmt.Errorf("bind response message id: %w", err)
	}
	if msgID[0] != TagInteger {
		return 0, fmt.Errorf("bind response message id: %w", ErrUnexpectedTag)
	}

	// protocol op, which must be a BindResponse
	op, _, err := next(rest)
	if err != nil {
		return 0, fmt.Errorf("bind response protocol op: %w", err)
	}
	if op[0] != TagBindResponse {
		return 0, fmt.Errorf("bind response protocol op tag 0x%02X: %w", op[0], ErrUnexpectedTag)
	}

	body, err := expect(op, TagBindResponse)
	if err != nil {
		return 0, fmt.Errorf("bind response body: %w", err)
	}

	// First ENUMERATED field in the body is the result code.
	for len(body) > 0 {
		elem, rest, err := next(body)
		if err != nil {
			return 0, fmt.Errorf("bind response field: %w", err)
		}
		if elem[0] == TagEnumerated {
			value, err := expect(elem, TagEnumerated)
			if err != nil {
				return 0, fmt.Errorf("bind response result code: %w", err)
			}
			return decodeInteger(value), nil
		}
		body = rest
	}

	return 0, ErrMissingResultCode
}

// expect validates the element's tag and returns its content octets.
func expect(elem []byte, tag byte) ([]byte, error) {
	if len(elem) == 0 {
		return nil, ErrTruncated
	}
	if elem[0] != tag {
		return nil, ErrUnexpectedTag
	}
	n, consumed, err := DecodeLength(elem[1:])
	if err != nil {
		return nil, err
	}
	if len(elem) < 1+consumed+n {
		return nil, ErrTruncated
	}
	return elem[1+consumed : 1+consumed+n], nil
}

// next splits off the first complete element of buf.
func next(buf []byte) (elem, rest []byte, err error) {
	return Frame(buf)
}
