// Package auth implements the four database authentication mechanisms:
//
//   - password: credentials embedded in the connection string
//   - ticket: external kinit/klist helpers plus an AP-REQ/AP-REP
//     security-context exchange over the transport
//   - token: local HMAC-SHA256 verification of a signed three-part
//     token before it is forwarded to the server
//   - directory: a single hand-rolled BER bind request/response
//
// Credentials form a closed union dispatched exhaustively by
// ForCredential; a strategy drives the transport it is handed and the
// owning connection performs the surrounding state transitions.
//
// Secrets (passwords, token secrets, keytab paths' contents) never
// appear in logs or error strings; diagnostics carry only non-secret
// identifiers such as username, principal and token expiry.
package auth
