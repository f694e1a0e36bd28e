package ldap

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/mock"
)

// MockConn implements Conn for tests that script individual calls.
type MockConn struct {
	mock.Mock
}

func (m *MockConn) Bind(username, password string) error {
	args := m.Called(username, password)
	return args.Error(0)
}

func (m *MockConn) NTLMBind(domain, username, password string) error {
	args := m.Called(domain, username, password)
	return args.Error(0)
}

func (m *MockConn) GSSAPIBind(client ldap.GSSAPIClient, servicePrincipal, authzid string) error {
	args := m.Called(client, servicePrincipal, authzid)
	return args.Error(0)
}

func (m *MockConn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	result, ok := args.Get(0).(*ldap.SearchResult)
	if !ok {
		return nil, args.Error(1)
	}
	return result, args.Error(1)
}

func (m *MockConn) Unbind() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockConn) Close() {
	m.Called()
}

// expectRelease allows any number of Unbind/Close calls.
func (m *MockConn) expectRelease() {
	m.On("Unbind").Return(nil).Maybe()
	m.On("Close").Return().Maybe()
}

// dialing returns a DialFunc that always hands out conn.
func dialing(conn Conn) DialFunc {
	return func(context.Context, *DirectoryConfig) (Conn, error) {
		return conn, nil
	}
}

func invalidCredentials() error {
	return ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("80090308: LdapErr: DSID-0C09044E, comment: AcceptSecurityContext error, data 52e, v4563"))
}

// fakeDirectory is an in-memory server that understands the filters the
// client builds.
type fakeDirectory struct {
	mu sync.Mutex

	password    string
	accepted    map[string]bool
	entries     []*ldap.Entry
	exposed     map[string]bool // lower-cased attribute names; nil exposes all
	unreachable bool

	// rejectNarrowProbes refuses searches for a single named attribute.
	rejectNarrowProbes bool

	dials    int
	binds    []string
	searches []*ldap.SearchRequest
	open     int
}

func newFakeDirectory(password string, accepted ...string) *fakeDirectory {
	d := &fakeDirectory{password: password, accepted: map[string]bool{}}
	for _, identity := range accepted {
		d.accepted[identity] = true
	}
	return d
}

func (d *fakeDirectory) expose(attrs ...string) {
	d.exposed = map[string]bool{}
	for _, attr := range attrs {
		d.exposed[strings.ToLower(attr)] = true
	}
}

func (d *fakeDirectory) Dial(ctx context.Context, _ *DirectoryConfig) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewConnectionError("connection aborted", false, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.unreachable {
		return nil, NewConnectionError("failed to connect to ldap://dc.invalid:389", true,
			ldap.NewError(ldap.ErrorNetwork, errors.New("dial tcp: lookup dc.invalid: no such host")))
	}
	d.dials++
	d.open++
	return &fakeConn{dir: d}, nil
}

func (d *fakeDirectory) bindCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.binds)
}

func (d *fakeDirectory) openConns() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

type fakeConn struct {
	dir    *fakeDirectory
	bound  bool
	closed bool
}

func (c *fakeConn) Bind(username, password string) error {
	c.dir.mu.Lock()
	defer c.dir.mu.Unlock()

	c.dir.binds = append(c.dir.binds, username)
	if c.dir.accepted[username] && password == c.dir.password {
		c.bound = true
		return nil
	}
	return invalidCredentials()
}

func (c *fakeConn) NTLMBind(domain, username, password string) error {
	identity := username
	if domain != "" {
		identity = domain + `\` + username
	}
	return c.Bind(identity, password)
}

func (c *fakeConn) GSSAPIBind(ldap.GSSAPIClient, string, string) error {
	return ldap.NewError(ldap.LDAPResultAuthMethodNotSupported, errors.New("GSSAPI not supported"))
}

func (c *fakeConn) Unbind() error {
	c.bound = false
	return nil
}

func (c *fakeConn) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.dir.mu.Lock()
	c.dir.open--
	c.dir.mu.Unlock()
}

var (
	clausePattern = regexp.MustCompile(`\((\w+)=(\*?)([^()*]*)(\*?)\)`)
	ignoredClause = map[string]bool{"objectclass": true, "objectcategory": true}
)

func (c *fakeConn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	c.dir.mu.Lock()
	defer c.dir.mu.Unlock()

	c.dir.searches = append(c.dir.searches, req)
	if !c.bound {
		return nil, ldap.NewError(ldap.LDAPResultOperationsError, errors.New("000004DC: LdapErr: DSID-0C090A5C, comment: In order to perform this operation a successful bind must be completed on the connection"))
	}
	if c.dir.rejectNarrowProbes && len(req.Attributes) == 1 && req.Attributes[0] != "*" {
		return nil, ldap.NewError(ldap.LDAPResultUnwillingToPerform, errors.New("per-attribute queries are not permitted"))
	}

	result := &ldap.SearchResult{}
	for _, entry := range c.dir.entries {
		if !c.dir.matches(entry, req.Filter) {
			continue
		}
		if req.SizeLimit > 0 && len(result.Entries) == req.SizeLimit {
			return result, ldap.NewError(ldap.LDAPResultSizeLimitExceeded, errors.New("size limit exceeded"))
		}
		result.Entries = append(result.Entries, c.dir.project(entry, req.Attributes))
	}
	return result, nil
}

// matches evaluates the value clauses of filter. Any one clause matching
// is enough; objectClass and objectCategory clauses always hold.
func (d *fakeDirectory) matches(entry *ldap.Entry, filter string) bool {
	clauses := 0
	for _, m := range clausePattern.FindAllStringSubmatch(filter, -1) {
		attr, substring, value := m[1], m[2] == "*" || m[4] == "*", m[3]
		if ignoredClause[strings.ToLower(attr)] {
			continue
		}
		clauses++
		if !d.visible(attr) {
			continue
		}
		for _, v := range entry.GetEqualFoldAttributeValues(attr) {
			if substring && strings.Contains(strings.ToLower(v), strings.ToLower(value)) {
				return true
			}
			if !substring && strings.EqualFold(v, value) {
				return true
			}
		}
	}
	return clauses == 0
}

func (d *fakeDirectory) visible(attr string) bool {
	return d.exposed == nil || d.exposed[strings.ToLower(attr)]
}

func (d *fakeDirectory) project(entry *ldap.Entry, requested []string) *ldap.Entry {
	all := len(requested) == 0
	want := map[string]bool{}
	for _, attr := range requested {
		if attr == "*" {
			all = true
		}
		want[strings.ToLower(attr)] = true
	}

	out := &ldap.Entry{DN: entry.DN}
	for _, attr := range entry.Attributes {
		if !d.visible(attr.Name) {
			continue
		}
		if all || want[strings.ToLower(attr.Name)] {
			out.Attributes = append(out.Attributes, attr)
		}
	}
	return out
}

// userEntry builds a user entry under OU=Staff,DC=example,DC=com.
func userEntry(cn string, attrs map[string][]string) *ldap.Entry {
	values := map[string][]string{
		"cn":                {cn},
		"objectClass":       {"top", "person", "organizationalPerson", "user"},
		"distinguishedName": {"CN=" + cn + ",OU=Staff,DC=example,DC=com"},
	}
	for k, v := range attrs {
		values[k] = v
	}
	return ldap.NewEntry("CN="+cn+",OU=Staff,DC=example,DC=com", values)
}

func testConfig() *DirectoryConfig {
	cfg := NewDirectoryConfig()
	cfg.Host = "dc1.example.com"
	cfg.BaseDN = "DC=example,DC=com"
	cfg.BindUser = "su-jsmith@corp.example.com"
	cfg.BindPassword = "s3cret!"
	return cfg
}
