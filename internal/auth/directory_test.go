package auth

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nerrad567/dbconduit/internal/ber"
)

// bindResponseFrame builds a bind-response frame by hand: envelope
// SEQUENCE { messageID INTEGER, <opTag> { ENUMERATED code, two empty
// OCTET STRINGs } }.
func bindResponseFrame(opTag byte, messageID, code int) []byte {
	body := []byte{ber.TagEnumerated, 0x01, byte(code)}
	body = append(body, ber.TagOctetString, 0x00)
	body = append(body, ber.TagOctetString, 0x00)

	op := append([]byte{opTag}, ber.EncodeLength(len(body))...)
	op = append(op, body...)

	envelope := []byte{ber.TagInteger, 0x01, byte(messageID)}
	envelope = append(envelope, op...)

	frame := append([]byte{ber.TagSequence}, ber.EncodeLength(len(envelope))...)
	return append(frame, envelope...)
}

func TestDirectoryStrategy_Success(t *testing.T) {
	server := newScriptedServer(t, bindResponseFrame(ber.TagBindResponse, 1, 0))
	tr := server.dial(t)

	s := &directoryStrategy{
		cred:   DirectoryBind{Username: "cn=admin", Password: "secret"},
		target: Target{Database: "SAMPLE", Host: "db.example.com", Port: 50000},
		logger: noopLogger{},
	}

	if err := s.Authenticate(context.Background(), tr); err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}

	// The request on the wire must be the canonical bind request with
	// message id 1.
	want := ber.EncodeBindRequest(1, "cn=admin", "secret")
	if got := server.sent(t); !bytes.Equal(got, want) {
		t.Errorf("bind request:\n got % X\nwant % X", got, want)
	}

	// The accepted bind is followed by the connection string, marked for
	// directory security.
	cs := string(server.sent(t))
	for _, pair := range []string{"DATABASE=SAMPLE;", "UID=cn=admin;", "PWD=secret;", "SECURITY=LDAP;"} {
		if !strings.Contains(cs, pair) {
			t.Errorf("connection string %q missing %q", cs, pair)
		}
	}
}

// debugCapture records Debug fields so log content can be asserted.
type debugCapture struct {
	noopLogger
	args [][]any
}

func (l *debugCapture) Debug(_ string, args ...any) {
	l.args = append(l.args, args)
}

func TestDirectoryStrategy_LogsDirectoryURL(t *testing.T) {
	server := newScriptedServer(t, bindResponseFrame(ber.TagBindResponse, 1, 0))
	tr := server.dial(t)

	logger := &debugCapture{}
	s := &directoryStrategy{
		cred: DirectoryBind{
			Username: "cn=admin",
			Password: "secret",
			URL:      "ldap://dir.example.com:389",
		},
		logger: logger,
	}

	if err := s.Authenticate(context.Background(), tr); err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}

	found := false
	for _, args := range logger.args {
		for i := 0; i+1 < len(args); i += 2 {
			if args[i] == "directory" && args[i+1] == "ldap://dir.example.com:389" {
				found = true
			}
			if args[i] == "password" || args[i+1] == "secret" {
				t.Errorf("log fields %v leak the password", args)
			}
		}
	}
	if !found {
		t.Error("successful bind did not log the directory URL")
	}
}

func TestDirectoryStrategy_SplitResponse(t *testing.T) {
	// Response delivered in two chunks; the strategy must accumulate
	// until a full frame is available.
	full := bindResponseFrame(ber.TagBindResponse, 1, 0)
	server := newScriptedServer(t, full[:3], full[3:])
	tr := server.dial(t)

	s := &directoryStrategy{
		cred:   DirectoryBind{Username: "cn=admin", Password: "secret"},
		logger: noopLogger{},
	}

	if err := s.Authenticate(context.Background(), tr); err != nil {
		t.Fatalf("Authenticate() with split response error = %v", err)
	}
}

func TestDirectoryStrategy_Rejected(t *testing.T) {
	// Result code 49: invalid credentials.
	server := newScriptedServer(t, bindResponseFrame(ber.TagBindResponse, 1, 49))
	tr := server.dial(t)

	s := &directoryStrategy{
		cred:   DirectoryBind{Username: "cn=admin", Password: "wrong"},
		logger: noopLogger{},
	}

	err := s.Authenticate(context.Background(), tr)
	var rejected *RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("Authenticate() error = %v, want *RejectedError", err)
	}
	if rejected.Code != 49 {
		t.Errorf("RejectedError.Code = %d, want 49", rejected.Code)
	}
}

func TestDirectoryStrategy_WrongTag(t *testing.T) {
	// Tag 0x62 instead of 0x61 must fail as a protocol violation
	// before the result code is looked at, even though the code is 0.
	server := newScriptedServer(t, bindResponseFrame(0x62, 1, 0))
	tr := server.dial(t)

	s := &directoryStrategy{
		cred:   DirectoryBind{Username: "cn=admin", Password: "secret"},
		logger: noopLogger{},
	}

	err := s.Authenticate(context.Background(), tr)
	if !errors.Is(err, ErrProtocolViolation) {
		t.Errorf("Authenticate() error = %v, want ErrProtocolViolation", err)
	}
}

func TestDirectoryStrategy_MissingCredential(t *testing.T) {
	s := &directoryStrategy{cred: DirectoryBind{Username: "cn=admin"}, logger: noopLogger{}}

	err := s.Authenticate(context.Background(), nil)
	if !errors.Is(err, ErrMissingCredential) {
		t.Errorf("Authenticate() error = %v, want ErrMissingCredential", err)
	}
}

func TestDirectoryStrategy_MessageIDIncrements(t *testing.T) {
	s := &directoryStrategy{
		cred:   DirectoryBind{Username: "cn=admin", Password: "secret"},
		logger: noopLogger{},
	}

	first := newScriptedServer(t, bindResponseFrame(ber.TagBindResponse, 1, 0))
	if err := s.Authenticate(context.Background(), first.dial(t)); err != nil {
		t.Fatalf("first Authenticate() error = %v", err)
	}

	second := newScriptedServer(t, bindResponseFrame(ber.TagBindResponse, 2, 0))
	if err := s.Authenticate(context.Background(), second.dial(t)); err != nil {
		t.Fatalf("second Authenticate() error = %v", err)
	}

	want := ber.EncodeBindRequest(2, "cn=admin", "secret")
	if got := second.sent(t); !bytes.Equal(got, want) {
		t.Errorf("second bind request should carry message id 2:\n got % X\nwant % X", got, want)
	}
}
