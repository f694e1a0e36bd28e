package ldap

import (
	"context"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// noAttributes requests no attributes at all (RFC 4511 section 4.5.1.8).
const noAttributes = "1.1"

// ClientOption customizes a DirectoryClient.
type ClientOption func(*clientOptions)

type clientOptions struct {
	dial   DialFunc
	gssapi GSSAPIClientFactory
}

// WithDialer replaces the network dialer, mainly for tests.
func WithDialer(dial DialFunc) ClientOption {
	return func(o *clientOptions) {
		o.dial = dial
	}
}

// WithGSSAPIClientFactory replaces how Kerberos clients are created.
func WithGSSAPIClientFactory(factory GSSAPIClientFactory) ClientOption {
	return func(o *clientOptions) {
		o.gssapi = factory
	}
}

// DirectoryClient looks up users in one directory. The negotiated credential
// and the attribute availability are cached for the client's lifetime and
// shared by all callers; create one client per configuration.
type DirectoryClient struct {
	cfg        *DirectoryConfig
	negotiator *CredentialNegotiator
	prober     *SchemaProber
}

var _ Directory = (*DirectoryClient)(nil)

// NewDirectoryClient creates a client. No connection is made until the first call.
func NewDirectoryClient(cfg *DirectoryConfig, opts ...ClientOption) *DirectoryClient {
	if cfg == nil {
		cfg = NewDirectoryConfig()
	}

	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}

	return &DirectoryClient{
		cfg:        cfg,
		negotiator: NewCredentialNegotiator(cfg, o.dial, o.gssapi),
		prober:     NewSchemaProber(cfg.SearchBase()),
	}
}

// Config returns the client's configuration.
func (c *DirectoryClient) Config() *DirectoryConfig {
	return c.cfg
}

// NegotiatedCredential returns the cached working identity, if any.
func (c *DirectoryClient) NegotiatedCredential() (string, bool) {
	return c.negotiator.Cached()
}

// AvailableAttributes returns the cached attribute availability, if any.
func (c *DirectoryClient) AvailableAttributes() (AttributeAvailability, bool) {
	return c.prober.Cached()
}

// ResetCaches forgets the negotiated credential and the probed attributes.
// The next call negotiates and probes again.
func (c *DirectoryClient) ResetCaches() {
	c.negotiator.Reset()
	c.prober.Reset()
}

// session returns a bound connection together with the attribute
// availability. The caller must release the connection.
func (c *DirectoryClient) session(ctx context.Context) (Conn, AttributeAvailability, string, error) {
	conn, identity, err := c.negotiator.Connect(ctx)
	if err != nil {
		return nil, nil, "", err
	}

	available, err := c.prober.Ensure(ctx, conn)
	if err != nil {
		release(conn)
		return nil, nil, "", err
	}

	return conn, available, identity, nil
}

// failSoft logs err and returns an empty result for read paths.
func failSoft[T any](ctx context.Context, operation string, err error, fields map[string]any) []T {
	LogLDAPError(ctx, operation, err, fields)
	return []T{}
}

// SearchUsers returns users matching term, in server order, at most
// maxResults of them. A non-positive maxResults selects the configured
// default. Failures are logged and yield an empty result.
func (c *DirectoryClient) SearchUsers(ctx context.Context, term string, maxResults int) []UserRecord {
	if maxResults <= 0 {
		maxResults = c.defaultMaxResults()
	}

	records, err := c.searchUsers(ctx, term, maxResults)
	if err != nil {
		return failSoft[UserRecord](ctx, "search_users", err, map[string]any{
			"search_term": term,
		})
	}
	return records
}

func (c *DirectoryClient) defaultMaxResults() int {
	if c.cfg.MaxResults > 0 {
		return c.cfg.MaxResults
	}
	return DefaultMaxResults
}

func (c *DirectoryClient) searchUsers(ctx context.Context, term string, maxResults int) ([]UserRecord, error) {
	conn, available, _, err := c.session(ctx)
	if err != nil {
		return nil, err
	}
	defer release(conn)

	filter := BuildUserSearchFilter(term, available)
	tflog.SubsystemDebug(ctx, SubsystemLDAP, "Searching users", map[string]any{
		"search_base": c.cfg.SearchBase(),
		"filter":      filter,
		"max_results": maxResults,
	})

	req := ldap.NewSearchRequest(
		c.cfg.SearchBase(),
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		maxResults,
		0,
		false,
		filter,
		available.Available(),
		nil,
	)

	entries, err := searchEntries(conn, req)
	if err != nil {
		return nil, NewLDAPError("search", err)
	}
	if len(entries) > maxResults {
		entries = entries[:maxResults]
	}

	records, problems := MapEntries(entries, available)
	for _, problem := range problems {
		tflog.SubsystemWarn(ctx, SubsystemLDAP, "Partially decoded user entry", map[string]any{
			"error": problem.Error(),
		})
	}

	tflog.SubsystemDebug(ctx, SubsystemLDAP, "User search completed", map[string]any{
		"result_count": len(records),
	})
	return records, nil
}

// GetUserByUsername returns the user whose username equals username,
// ignoring case. Partial matches are not returned.
func (c *DirectoryClient) GetUserByUsername(ctx context.Context, username string) (*UserRecord, bool) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, false
	}

	for _, record := range c.SearchUsers(ctx, username, c.defaultMaxResults()) {
		if strings.EqualFold(record.Username, username) {
			return &record, true
		}
	}
	return nil, false
}

// GetUserGroups returns the common names of the groups username is a
// direct member of. Failures, an unknown user and an unavailable memberOf
// attribute all yield an empty result.
func (c *DirectoryClient) GetUserGroups(ctx context.Context, username string) []string {
	username = strings.TrimSpace(username)
	if username == "" {
		return []string{}
	}

	groups, err := c.getUserGroups(ctx, username)
	if err != nil {
		return failSoft[string](ctx, "get_user_groups", err, map[string]any{
			"username": username,
		})
	}
	return groups
}

func (c *DirectoryClient) getUserGroups(ctx context.Context, username string) ([]string, error) {
	conn, available, _, err := c.session(ctx)
	if err != nil {
		return nil, err
	}
	defer release(conn)

	attrs := []string{noAttributes}
	if available.Has("memberOf") {
		attrs = []string{"memberOf"}
	}

	req := ldap.NewSearchRequest(
		c.cfg.SearchBase(),
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		1,
		0,
		false,
		BuildAccountFilter(username, available),
		attrs,
		nil,
	)

	entries, err := searchEntries(conn, req)
	if err != nil {
		return nil, NewLDAPError("search", err)
	}

	if len(entries) == 0 || !available.Has("memberOf") {
		return []string{}, nil
	}
	return groupNames(entries[0].GetAttributeValues("memberOf")), nil
}

// TestConnection validates the configuration and, when valid, performs one
// bind and attribute probe. Unlike the read operations it reports failures.
func (c *DirectoryClient) TestConnection(ctx context.Context) ConnectionTestResult {
	result := ConnectionTestResult{Config: c.cfg.Sanitized()}

	if err := c.cfg.Validate(); err != nil {
		result.Error = "Configuration error: " + err.Error()
		result.ErrorKind = ErrorKind(err)
		return result
	}

	err := LogOperation(ctx, SubsystemLDAP, "test_connection", map[string]any{
		"server": ServerURL(c.cfg),
	}, func() error {
		conn, available, identity, err := c.session(ctx)
		if err != nil {
			return err
		}
		defer release(conn)

		result.WorkingCredential = identity
		result.AvailableAttributeCount = available.Count()
		return nil
	})
	if err != nil {
		result.Error = err.Error()
		result.ErrorKind = ErrorKind(err)
		return result
	}

	result.Success = true
	result.Message = "Connection successful using: " + result.WorkingCredential
	return result
}

// GetConfigStatus reports whether the configuration is complete. It never
// touches the network.
func (c *DirectoryClient) GetConfigStatus() ConfigStatus {
	return c.cfg.Status()
}

// ProbeCredentialFormats presents every candidate identity to the server and
// reports how each was answered. Cached state is left untouched.
func (c *DirectoryClient) ProbeCredentialFormats(ctx context.Context) ([]CredentialTrial, error) {
	var trials []CredentialTrial
	err := LogOperation(ctx, SubsystemLDAP, "probe_credential_formats", map[string]any{
		"server":      ServerURL(c.cfg),
		"bind_method": string(c.cfg.BindMethod),
	}, func() error {
		var err error
		trials, err = c.negotiator.ProbeCredentialFormats(ctx)
		return err
	})
	return trials, err
}
