// Package transport owns the physical byte stream to a database server.
//
// It dials a plain or TLS-wrapped TCP socket, applies best-effort socket
// tuning (keep-alive, no-delay), and exposes write / single-shot read /
// close. Unrecoverable I/O errors close the stream and are reported once
// to the owning connection via the registered error observer.
//
// Failure classification is sentinel-based so callers can branch with
// errors.Is: ErrTimeout, ErrRefused, ErrTLSRejected, ErrClosed.
package transport
