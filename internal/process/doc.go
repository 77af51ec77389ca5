// Package process invokes the external ticket helpers (kinit, klist,
// which) used by ticket-based authentication.
//
// Invocation is deliberately narrow: only an exact allow-list of
// executable names is accepted, arguments travel as a discrete vector
// with no shell anywhere in the path, and caller-supplied values must
// pass an allow-list pattern before they may appear on an argv.
// Passwords are piped over stdin, never passed as arguments.
package process
