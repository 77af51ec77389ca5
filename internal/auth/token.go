package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nerrad567/dbconduit/internal/connstring"
	"github.com/nerrad567/dbconduit/internal/transport"
)

// tokenStrategy verifies an HMAC-SHA256 signed token locally against
// the shared secret, then forwards it in the connection string. The
// server performs its own verification; the local check fails fast on
// malformed, mis-signed or expired tokens without a network round-trip.
type tokenStrategy struct {
	cred   SignedToken
	target Target
	logger Logger
}

func (*tokenStrategy) Mechanism() Mechanism { return MechanismToken }

func (s *tokenStrategy) Authenticate(_ context.Context, tr *transport.Transport) error {
	if s.cred.Token == "" || s.cred.Secret == "" {
		return fmt.Errorf("%w: token mechanism requires token and secret", ErrMissingCredential)
	}

	claims, err := verifyToken(s.cred.Token, s.cred.Secret)
	if err != nil {
		return err
	}

	cs := connstring.Build(connstring.Params{
		Database:          s.target.Database,
		Hostname:          s.target.Host,
		Port:              s.target.Port,
		AccessToken:       s.cred.Token,
		SSL:               s.target.SSL,
		CharacterEncoding: s.target.CharacterEncoding,
		CurrentSchema:     s.target.CurrentSchema,
		ApplicationName:   s.target.ApplicationName,
	})

	if err := tr.Write([]byte(cs)); err != nil {
		return fmt.Errorf("sending token: %w", err)
	}

	if exp, expErr := claims.GetExpirationTime(); expErr == nil && exp != nil {
		s.logger.Debug("signed token accepted", "expires_at", exp.Time)
	}
	return nil
}

// verifyToken checks shape, signature and expiry, mapping jwt errors
// onto the package's error taxonomy. The algorithm must be HS256; any
// other declared algorithm is treated as a signature failure.
func verifyToken(token, secret string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)

	switch {
	case err == nil && parsed.Valid:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fmt.Errorf("%w: %w", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, fmt.Errorf("%w: %w", ErrSignatureInvalid, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	default:
		return nil, ErrTokenMalformed
	}
}
