package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestPasswordStrategy_SendsConnectionString(t *testing.T) {
	server := newScriptedServer(t)
	tr := server.dial(t)

	s := &passwordStrategy{
		cred: Password{Username: "dbuser", Password: "dbpass"},
		target: Target{
			Database: "SAMPLE",
			Host:     "db.example.com",
			Port:     50000,
		},
		logger: noopLogger{},
	}

	if err := s.Authenticate(context.Background(), tr); err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}

	got := string(server.sent(t))
	for _, want := range []string{"DATABASE=SAMPLE;", "UID=dbuser;", "PWD=dbpass;", "PROTOCOL=TCPIP;"} {
		if !strings.Contains(got, want) {
			t.Errorf("connection string missing %q: %s", want, got)
		}
	}
}

func TestPasswordStrategy_MissingCredential(t *testing.T) {
	tests := []struct {
		name string
		cred Password
	}{
		{name: "no username", cred: Password{Password: "p"}},
		{name: "no password", cred: Password{Username: "u"}},
		{name: "empty", cred: Password{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &passwordStrategy{cred: tt.cred, logger: noopLogger{}}
			err := s.Authenticate(context.Background(), nil)
			if !errors.Is(err, ErrMissingCredential) {
				t.Errorf("Authenticate() error = %v, want ErrMissingCredential", err)
			}
		})
	}
}
