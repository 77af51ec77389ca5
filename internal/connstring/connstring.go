// Package connstring builds the semicolon-separated KEY=VALUE connection
// string consumed by the database engine. Field order is fixed so output
// is deterministic and testable.
package connstring

import (
	"fmt"
	"strings"
)

// SecurityMechanismTicket is the engine's identifier for ticket-based
// (Kerberos) authentication.
const SecurityMechanismTicket = 11

// Params holds every field that can appear in a connection string.
// Exactly one authentication block is emitted, selected by which
// credential fields are populated (see Build).
type Params struct {
	Database string
	Hostname string
	Port     int

	// Password / directory mechanisms.
	Username string
	Password string

	// Directory mechanism marker: SECURITY=LDAP is appended when set.
	DirectorySecurity bool

	// Ticket mechanism: emits SecurityMechanism=11;ServiceName=<svc>.
	ServiceName string

	// Token mechanism: emits AccessToken=<token>.
	AccessToken string

	// Optional properties.
	SSL               bool
	CharacterEncoding string
	CurrentSchema     string
	ApplicationName   string
}

// Build renders the connection string.
//
// Layout: DATABASE, HOSTNAME, PORT, PROTOCOL=TCPIP, then the
// authentication block, then optional properties. Every pair is
// terminated by a semicolon.
func Build(p Params) string {
	var b strings.Builder

	pair := func(key, value string) {
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(value)
		b.WriteByte(';')
	}

	pair("DATABASE", p.Database)
	pair("HOSTNAME", p.Hostname)
	pair("PORT", fmt.Sprintf("%d", p.Port))
	pair("PROTOCOL", "TCPIP")

	switch {
	case p.ServiceName != "":
		pair("SecurityMechanism", fmt.Sprintf("%d", SecurityMechanismTicket))
		pair("ServiceName", p.ServiceName)
	case p.AccessToken != "":
		pair("AccessToken", p.AccessToken)
	default:
		pair("UID", p.Username)
		pair("PWD", p.Password)
		if p.DirectorySecurity {
			pair("SECURITY", "LDAP")
		}
	}

	if p.SSL {
		pair("SECURITY", "SSL")
	}
	if p.CharacterEncoding != "" {
		pair("CHARACTERENCODING", p.CharacterEncoding)
	}
	if p.CurrentSchema != "" {
		pair("CURRENTSCHEMA", p.CurrentSchema)
	}
	if p.ApplicationName != "" {
		pair("APPLICATIONNAME", p.ApplicationName)
	}

	return b.String()
}
