package auth

import (
	"errors"
	"fmt"

	"github.com/nerrad567/dbconduit/internal/infrastructure/config"
)

// Mechanism identifies an authentication mechanism.
type Mechanism string

const (
	MechanismPassword  Mechanism = "password"
	MechanismTicket    Mechanism = "ticket"
	MechanismToken     Mechanism = "token"
	MechanismDirectory Mechanism = "directory"
)

// Credential is the closed union of authentication inputs. Exactly four
// implementations exist; ForCredential dispatches over them
// exhaustively, so adding a mechanism is a compile-time-visible change.
type Credential interface {
	Mechanism() Mechanism
}

// Password authenticates with a username and password carried in the
// connection string.
type Password struct {
	Username string
	Password string
}

func (Password) Mechanism() Mechanism { return MechanismPassword }

// Ticket authenticates through an external ticket-granting helper
// followed by a security-context exchange over the transport.
type Ticket struct {
	// Principal is the Kerberos principal, e.g. "svc@EXAMPLE.COM".
	Principal string

	// Keytab is the path to a keytab file. When set, ticket
	// acquisition is non-interactive.
	Keytab string

	// Password drives interactive acquisition when no keytab is
	// configured. Piped to the helper on stdin, never on the argv.
	Password string

	// ServiceName names the database service principal, e.g. "db2svc".
	ServiceName string

	// Realm, Krb5Conf and CCache override environment defaults when set.
	Realm    string
	Krb5Conf string
	CCache   string
}

func (Ticket) Mechanism() Mechanism { return MechanismTicket }

// SignedToken authenticates with an HMAC-signed three-part token
// verified locally against a shared secret.
type SignedToken struct {
	Token  string
	Secret string
}

func (SignedToken) Mechanism() Mechanism { return MechanismToken }

// DirectoryBind authenticates with a single BER-encoded bind exchange
// against a directory server.
type DirectoryBind struct {
	Username string
	Password string

	// URL is the directory endpoint, recorded for diagnostics.
	URL string
}

func (DirectoryBind) Mechanism() Mechanism { return MechanismDirectory }

// Sentinel errors for authentication outcomes.
var (
	// ErrMissingCredential indicates a mechanism was selected without
	// the credential fields it requires.
	ErrMissingCredential = errors.New("auth: missing credential")

	// ErrConfigInvalid indicates unusable mechanism configuration,
	// such as a keytab path that does not exist.
	ErrConfigInvalid = errors.New("auth: invalid configuration")

	// ErrTicketAcquisitionFailed indicates the external ticket helper
	// could not produce a valid ticket.
	ErrTicketAcquisitionFailed = errors.New("auth: ticket acquisition failed")

	// ErrHandshakeFailed indicates the security-context exchange over
	// the transport did not complete.
	ErrHandshakeFailed = errors.New("auth: security handshake failed")

	// ErrTokenMalformed indicates the signed token is not a valid
	// three-part token.
	ErrTokenMalformed = errors.New("auth: token malformed")

	// ErrSignatureInvalid indicates the recomputed HMAC signature does
	// not match, or the declared algorithm is not the expected one.
	ErrSignatureInvalid = errors.New("auth: token signature invalid")

	// ErrTokenExpired indicates the token's exp claim is in the past.
	ErrTokenExpired = errors.New("auth: token expired")

	// ErrProtocolViolation indicates the directory server answered
	// with something other than a well-formed bind response.
	ErrProtocolViolation = errors.New("auth: directory protocol violation")
)

// RejectedError reports a directory bind refused by the server. The
// result code is preserved for diagnostics.
type RejectedError struct {
	Code int
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("auth: directory bind rejected with result code %d", e.Code)
}

// CredentialFromConfig maps the auth section of the configuration onto
// the credential union. Mechanism-specific field presence has already
// been checked by config.Validate.
func CredentialFromConfig(cfg config.AuthConfig) (Credential, error) {
	switch cfg.Mechanism {
	case config.MechanismPassword:
		return Password{Username: cfg.Username, Password: cfg.Password}, nil
	case config.MechanismTicket:
		return Ticket{
			Principal:   cfg.Principal,
			Keytab:      cfg.Keytab,
			Password:    cfg.Password,
			ServiceName: cfg.ServiceName,
			Realm:       cfg.Realm,
			Krb5Conf:    cfg.Krb5Conf,
			CCache:      cfg.CCache,
		}, nil
	case config.MechanismToken:
		return SignedToken{Token: cfg.Token, Secret: cfg.TokenSecret}, nil
	case config.MechanismDirectory:
		return DirectoryBind{
			Username: cfg.Username,
			Password: cfg.Password,
			URL:      cfg.DirectoryURL,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown mechanism %q", ErrConfigInvalid, cfg.Mechanism)
	}
}
