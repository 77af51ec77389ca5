package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"os"
	"syscall"
)

// Sentinel errors for transport operations.
var (
	// ErrTimeout indicates the connect attempt exceeded its deadline.
	ErrTimeout = errors.New("transport: connect timeout")

	// ErrRefused indicates the peer actively refused the connection.
	ErrRefused = errors.New("transport: connection refused")

	// ErrTLSRejected indicates the peer certificate failed validation.
	ErrTLSRejected = errors.New("transport: tls certificate rejected")

	// ErrClosed indicates an operation on a closed transport.
	ErrClosed = errors.New("transport: closed")
)

// classifyDialError maps low-level dial failures onto the transport's
// error taxonomy so callers can branch with errors.Is.
func classifyDialError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return errors.Join(ErrRefused, err)
	}

	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return errors.Join(ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errors.Join(ErrTimeout, err)
	}

	return err
}

// classifyHandshakeError maps TLS handshake failures. Certificate
// verification failures become ErrTLSRejected; everything else keeps
// its original cause.
func classifyHandshakeError(err error) error {
	if err == nil {
		return nil
	}

	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return errors.Join(ErrTLSRejected, err)
	}
	var unknownAuth x509.UnknownAuthorityError
	if errors.As(err, &unknownAuth) {
		return errors.Join(ErrTLSRejected, err)
	}
	var hostErr x509.HostnameError
	if errors.As(err, &hostErr) {
		return errors.Join(ErrTLSRejected, err)
	}

	return classifyDialError(err)
}
