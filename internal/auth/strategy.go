package auth

import (
	"context"
	"fmt"

	"github.com/nerrad567/dbconduit/internal/transport"
)

// Logger defines the logging interface for authentication strategies.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Target describes the database endpoint a strategy authenticates
// against. Used to build the connection string and, for the ticket
// mechanism, the service principal name.
type Target struct {
	Database string
	Host     string
	Port     int

	SSL               bool
	CharacterEncoding string
	CurrentSchema     string
	ApplicationName   string
}

// Strategy drives a transport to an authenticated state. Authenticate
// is invoked exactly once per connection, by the connection itself,
// which owns the surrounding state transitions.
type Strategy interface {
	Mechanism() Mechanism
	Authenticate(ctx context.Context, tr *transport.Transport) error
}

// ForCredential selects the strategy for a credential. The type switch
// is exhaustive over the closed credential union.
func ForCredential(cred Credential, target Target, logger Logger) (Strategy, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	switch c := cred.(type) {
	case Password:
		return &passwordStrategy{cred: c, target: target, logger: logger}, nil
	case Ticket:
		return newTicketStrategy(c, target, logger), nil
	case SignedToken:
		return &tokenStrategy{cred: c, target: target, logger: logger}, nil
	case DirectoryBind:
		return &directoryStrategy{cred: c, target: target, logger: logger}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported credential type %T", ErrConfigInvalid, cred)
	}
}
