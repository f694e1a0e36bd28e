package ldap

import (
	"context"

	"github.com/go-ldap/ldap/v3"
)

// Conn is the subset of *ldap.Conn the client uses.
type Conn interface {
	Bind(username, password string) error
	NTLMBind(domain, username, password string) error
	GSSAPIBind(client ldap.GSSAPIClient, servicePrincipal, authzid string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Unbind() error
	Close()
}

// DialFunc opens an unauthenticated connection to the configured server.
type DialFunc func(ctx context.Context, cfg *DirectoryConfig) (Conn, error)

// Directory is the lookup surface consumed by the provider.
type Directory interface {
	SearchUsers(ctx context.Context, term string, maxResults int) []UserRecord
	GetUserByUsername(ctx context.Context, username string) (*UserRecord, bool)
	GetUserGroups(ctx context.Context, username string) []string
	TestConnection(ctx context.Context) ConnectionTestResult
	GetConfigStatus() ConfigStatus
	ProbeCredentialFormats(ctx context.Context) ([]CredentialTrial, error)
	ResetCaches()
}

// ConnectionTestResult reports one connect, probe and release cycle.
type ConnectionTestResult struct {
	Success                 bool
	Message                 string
	Error                   string
	ErrorKind               string
	WorkingCredential       string
	AvailableAttributeCount int
	Config                  map[string]any
}

// TrialOutcome classifies a single bind attempt.
type TrialOutcome string

const (
	TrialAccepted           TrialOutcome = "accepted"
	TrialInvalidCredentials TrialOutcome = "invalid_credentials"
	TrialInvalidDNSyntax    TrialOutcome = "invalid_dn_syntax"
	TrialNoSuchObject       TrialOutcome = "no_such_object"
	TrialSkipped            TrialOutcome = "skipped"
	TrialError              TrialOutcome = "error"
)

// CredentialTrial is the result of presenting one candidate identity.
type CredentialTrial struct {
	Name     string // Candidate name, e.g. "upn_derived"
	Identity string
	Outcome  TrialOutcome
	Message  string
}
