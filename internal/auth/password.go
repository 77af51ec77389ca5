package auth

import (
	"context"
	"fmt"

	"github.com/nerrad567/dbconduit/internal/connstring"
	"github.com/nerrad567/dbconduit/internal/transport"
)

// passwordStrategy embeds the credentials in the connection string and
// sends it over the (optionally TLS-wrapped) transport. There is no
// handshake round-trip beyond the transport connect itself.
type passwordStrategy struct {
	cred   Password
	target Target
	logger Logger
}

func (*passwordStrategy) Mechanism() Mechanism { return MechanismPassword }

func (s *passwordStrategy) Authenticate(_ context.Context, tr *transport.Transport) error {
	if s.cred.Username == "" || s.cred.Password == "" {
		return fmt.Errorf("%w: password mechanism requires username and password", ErrMissingCredential)
	}

	cs := connstring.Build(connstring.Params{
		Database:          s.target.Database,
		Hostname:          s.target.Host,
		Port:              s.target.Port,
		Username:          s.cred.Username,
		Password:          s.cred.Password,
		SSL:               s.target.SSL,
		CharacterEncoding: s.target.CharacterEncoding,
		CurrentSchema:     s.target.CurrentSchema,
		ApplicationName:   s.target.ApplicationName,
	})

	if err := tr.Write([]byte(cs)); err != nil {
		return fmt.Errorf("sending credentials: %w", err)
	}

	s.logger.Debug("password credentials sent", "username", s.cred.Username)
	return nil
}
