package auth

import (
	"context"
	"errors"
	"fmt"
	"os"

	krbclient "github.com/jcmturner/gokrb5/v8/client"
	krbconfig "github.com/jcmturner/gokrb5/v8/config"
	"github.com/jcmturner/gokrb5/v8/credentials"
	"github.com/jcmturner/gokrb5/v8/messages"
	krbtypes "github.com/jcmturner/gokrb5/v8/types"

	"github.com/nerrad567/dbconduit/internal/process"
	"github.com/nerrad567/dbconduit/internal/transport"
)

// defaultKrb5Conf is used when the credential does not name one.
const defaultKrb5Conf = "/etc/krb5.conf"

// helperRunner is the slice of process.Runner the strategy needs.
// Narrowed to an interface so helper behaviour can be faked in tests.
type helperRunner interface {
	Run(ctx context.Context, cmd process.Command) ([]byte, error)
}

// ticketStrategy acquires a ticket through the external helpers, then
// performs an AP-REQ/AP-REP security-context exchange over the
// transport: one initial token written, exactly one response token read.
type ticketStrategy struct {
	cred   Ticket
	target Target
	logger Logger
	runner helperRunner
}

func newTicketStrategy(cred Ticket, target Target, logger Logger) *ticketStrategy {
	return &ticketStrategy{
		cred:   cred,
		target: target,
		logger: logger,
		runner: process.NewRunner(),
	}
}

func (*ticketStrategy) Mechanism() Mechanism { return MechanismTicket }

func (s *ticketStrategy) Authenticate(ctx context.Context, tr *transport.Transport) error {
	if s.cred.Principal == "" {
		return fmt.Errorf("%w: ticket mechanism requires a principal", ErrMissingCredential)
	}
	if !process.ValidArgument(s.cred.Principal) {
		return fmt.Errorf("%w: principal %q contains characters outside the allow-list", ErrConfigInvalid, s.cred.Principal)
	}

	if err := s.acquireTicket(ctx); err != nil {
		return err
	}
	if err := s.verifyTicket(ctx); err != nil {
		return err
	}

	if err := s.exchangeContext(ctx, tr); err != nil {
		return err
	}

	s.logger.Info("ticket authentication complete", "principal", s.cred.Principal)
	return nil
}

// acquireTicket obtains a ticket via kinit: keytab-driven when a keytab
// is configured, otherwise interactive with the password on stdin.
func (s *ticketStrategy) acquireTicket(ctx context.Context) error {
	var cmd process.Command

	switch {
	case s.cred.Keytab != "":
		if _, err := os.Stat(s.cred.Keytab); err != nil {
			return fmt.Errorf("%w: keytab %s: %v", ErrConfigInvalid, s.cred.Keytab, err)
		}
		cmd = process.Command{
			Name: "kinit",
			Args: []string{"-k", "-t", s.cred.Keytab, s.cred.Principal},
		}
	case s.cred.Password != "":
		cmd = process.Command{
			Name:  "kinit",
			Args:  []string{s.cred.Principal},
			Stdin: s.cred.Password + "\n",
		}
	default:
		return fmt.Errorf("%w: ticket mechanism requires a keytab or password", ErrMissingCredential)
	}

	if _, err := s.runner.Run(ctx, cmd); err != nil {
		var exitErr *process.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("%w: kinit for %s: %v", ErrTicketAcquisitionFailed, s.cred.Principal, err)
		}
		return fmt.Errorf("%w: %v", ErrTicketAcquisitionFailed, err)
	}

	s.logger.Debug("ticket acquired", "principal", s.cred.Principal, "keytab", s.cred.Keytab != "")
	return nil
}

// verifyTicket confirms a valid ticket is present in the cache.
// klist -s is silent and signals validity through its exit code.
func (s *ticketStrategy) verifyTicket(ctx context.Context) error {
	if _, err := s.runner.Run(ctx, process.Command{Name: "klist", Args: []string{"-s"}}); err != nil {
		return fmt.Errorf("%w: no valid ticket in cache: %v", ErrTicketAcquisitionFailed, err)
	}
	return nil
}

// exchangeContext builds the initial security-context token from the
// cached ticket, writes it, and waits for exactly one response token.
func (s *ticketStrategy) exchangeContext(ctx context.Context, tr *transport.Transport) error {
	token, err := s.buildContextToken()
	if err != nil {
		return err
	}

	if err := tr.Write(token); err != nil {
		return fmt.Errorf("%w: writing context token: %v", ErrHandshakeFailed, err)
	}

	resp, err := tr.ReadOnce(ctx)
	if err != nil {
		return fmt.Errorf("%w: reading response token: %v", ErrHandshakeFailed, err)
	}

	var rep messages.APRep
	if err := rep.Unmarshal(resp); err != nil {
		return fmt.Errorf("%w: response token rejected: %v", ErrHandshakeFailed, err)
	}

	return nil
}

// buildContextToken produces a marshalled AP-REQ for the database
// service principal, from the credential cache kinit populated.
func (s *ticketStrategy) buildContextToken() ([]byte, error) {
	conf, err := s.krbConfig()
	if err != nil {
		return nil, err
	}

	ccache, err := credentials.LoadCCache(s.ccachePath())
	if err != nil {
		return nil, fmt.Errorf("%w: loading credential cache: %v", ErrTicketAcquisitionFailed, err)
	}

	cl, err := krbclient.NewFromCCache(ccache, conf, krbclient.DisablePAFXFAST(true))
	if err != nil {
		return nil, fmt.Errorf("%w: initialising from credential cache: %v", ErrTicketAcquisitionFailed, err)
	}
	defer cl.Destroy()

	spn := fmt.Sprintf("%s/%s", s.cred.ServiceName, s.target.Host)
	tkt, key, err := cl.GetServiceTicket(spn)
	if err != nil {
		return nil, fmt.Errorf("%w: service ticket for %s: %v", ErrHandshakeFailed, spn, err)
	}

	authenticator, err := krbtypes.NewAuthenticator(cl.Credentials.Domain(), cl.Credentials.CName())
	if err != nil {
		return nil, fmt.Errorf("%w: building authenticator: %v", ErrHandshakeFailed, err)
	}

	apReq, err := messages.NewAPReq(tkt, key, authenticator)
	if err != nil {
		return nil, fmt.Errorf("%w: building context token: %v", ErrHandshakeFailed, err)
	}

	token, err := apReq.Marshal()
	if err != nil {
		return nil, fmt.Errorf("%w: marshalling context token: %v", ErrHandshakeFailed, err)
	}
	return token, nil
}

// krbConfig loads the Kerberos library configuration. A realm on the
// credential overrides the file's default realm, so one krb5.conf can
// serve principals from several realms.
func (s *ticketStrategy) krbConfig() (*krbconfig.Config, error) {
	confPath := s.cred.Krb5Conf
	if confPath == "" {
		confPath = defaultKrb5Conf
	}
	conf, err := krbconfig.Load(confPath)
	if err != nil {
		return nil, fmt.Errorf("%w: loading %s: %v", ErrConfigInvalid, confPath, err)
	}
	if s.cred.Realm != "" {
		conf.LibDefaults.DefaultRealm = s.cred.Realm
	}
	return conf, nil
}

// ccachePath resolves the credential cache location: explicit config,
// then KRB5CCNAME, then the conventional per-uid default.
func (s *ticketStrategy) ccachePath() string {
	if s.cred.CCache != "" {
		return s.cred.CCache
	}
	if env := os.Getenv("KRB5CCNAME"); env != "" {
		const filePrefix = "FILE:"
		if len(env) > len(filePrefix) && env[:len(filePrefix)] == filePrefix {
			return env[len(filePrefix):]
		}
		return env
	}
	return fmt.Sprintf("/tmp/krb5cc_%d", os.Getuid())
}
