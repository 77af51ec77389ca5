package auth

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/nerrad567/dbconduit/internal/ber"
	"github.com/nerrad567/dbconduit/internal/connstring"
	"github.com/nerrad567/dbconduit/internal/transport"
)

// directoryStrategy performs a single BER-encoded bind exchange over
// the transport: one bind request out, one bind response in. Response
// bytes are accumulated across reads until a full frame is available,
// then decoded by the pure parser in internal/ber. A successful bind is
// followed by the connection string, flagged for directory security so
// the server validates the session against the same directory entry.
type directoryStrategy struct {
	cred   DirectoryBind
	target Target
	logger Logger

	// msgID increments per bind, starting at 1.
	msgID atomic.Int64
}

func (*directoryStrategy) Mechanism() Mechanism { return MechanismDirectory }

func (s *directoryStrategy) Authenticate(ctx context.Context, tr *transport.Transport) error {
	if s.cred.Username == "" || s.cred.Password == "" {
		return fmt.Errorf("%w: directory mechanism requires username and password", ErrMissingCredential)
	}

	id := int(s.msgID.Add(1))
	req := ber.EncodeBindRequest(id, s.cred.Username, s.cred.Password)
	if err := tr.Write(req); err != nil {
		return fmt.Errorf("sending bind request: %w", err)
	}

	frame, err := s.readFrame(ctx, tr)
	if err != nil {
		return err
	}

	code, err := ber.DecodeBindResponse(frame)
	if err != nil {
		// Any malformed or mis-tagged response is a protocol
		// violation, distinct from a transport-level failure.
		return fmt.Errorf("%w: %w", ErrProtocolViolation, err)
	}
	if code != 0 {
		return &RejectedError{Code: code}
	}

	cs := connstring.Build(connstring.Params{
		Database:          s.target.Database,
		Hostname:          s.target.Host,
		Port:              s.target.Port,
		Username:          s.cred.Username,
		Password:          s.cred.Password,
		DirectorySecurity: true,
		SSL:               s.target.SSL,
		CharacterEncoding: s.target.CharacterEncoding,
		CurrentSchema:     s.target.CurrentSchema,
		ApplicationName:   s.target.ApplicationName,
	})
	if err := tr.Write([]byte(cs)); err != nil {
		return fmt.Errorf("sending connection string: %w", err)
	}

	fields := []any{"username", s.cred.Username, "message_id", id}
	if s.cred.URL != "" {
		fields = append(fields, "directory", s.cred.URL)
	}
	s.logger.Debug("directory bind accepted", fields...)
	return nil
}

// readFrame accumulates transport reads until one complete BER element
// is buffered.
func (s *directoryStrategy) readFrame(ctx context.Context, tr *transport.Transport) ([]byte, error) {
	var buf []byte
	for {
		frame, _, err := ber.Frame(buf)
		if err == nil {
			return frame, nil
		}
		if !errors.Is(err, ber.ErrTruncated) {
			return nil, fmt.Errorf("%w: %w", ErrProtocolViolation, err)
		}

		chunk, err := tr.ReadOnce(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading bind response: %w", err)
		}
		buf = append(buf, chunk...)
	}
}
