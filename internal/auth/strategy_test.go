package auth

import (
	"errors"
	"testing"

	"github.com/nerrad567/dbconduit/internal/infrastructure/config"
)

func TestForCredential_Dispatch(t *testing.T) {
	target := Target{Database: "SAMPLE", Host: "h", Port: 50000}

	tests := []struct {
		name string
		cred Credential
		want Mechanism
	}{
		{name: "password", cred: Password{Username: "u", Password: "p"}, want: MechanismPassword},
		{name: "ticket", cred: Ticket{Principal: "svc@X", ServiceName: "db2svc"}, want: MechanismTicket},
		{name: "token", cred: SignedToken{Token: "a.b.c", Secret: "s"}, want: MechanismToken},
		{name: "directory", cred: DirectoryBind{Username: "u", Password: "p"}, want: MechanismDirectory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ForCredential(tt.cred, target, nil)
			if err != nil {
				t.Fatalf("ForCredential() error = %v", err)
			}
			if s.Mechanism() != tt.want {
				t.Errorf("Mechanism() = %q, want %q", s.Mechanism(), tt.want)
			}
		})
	}
}

func TestCredentialFromConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.AuthConfig
		want Mechanism
	}{
		{
			name: "password",
			cfg:  config.AuthConfig{Mechanism: config.MechanismPassword, Username: "u", Password: "p"},
			want: MechanismPassword,
		},
		{
			name: "ticket",
			cfg:  config.AuthConfig{Mechanism: config.MechanismTicket, Principal: "svc@X", ServiceName: "db2svc"},
			want: MechanismTicket,
		},
		{
			name: "token",
			cfg:  config.AuthConfig{Mechanism: config.MechanismToken, Token: "a.b.c", TokenSecret: "s"},
			want: MechanismToken,
		},
		{
			name: "directory",
			cfg:  config.AuthConfig{Mechanism: config.MechanismDirectory, Username: "u", Password: "p"},
			want: MechanismDirectory,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred, err := CredentialFromConfig(tt.cfg)
			if err != nil {
				t.Fatalf("CredentialFromConfig() error = %v", err)
			}
			if cred.Mechanism() != tt.want {
				t.Errorf("Mechanism() = %q, want %q", cred.Mechanism(), tt.want)
			}
		})
	}
}

func TestCredentialFromConfig_Unknown(t *testing.T) {
	_, err := CredentialFromConfig(config.AuthConfig{Mechanism: "x509"})
	if !errors.Is(err, ErrConfigInvalid) {
		t.Errorf("CredentialFromConfig() error = %v, want ErrConfigInvalid", err)
	}
}
