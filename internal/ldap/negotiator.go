package ldap

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-ldap/ldap/v3"
)

// identityForm is the shape of a bind identity.
type identityForm int

const (
	formUPN       identityForm = iota // user@domain
	formDownLevel                     // DOMAIN\user
	formBare                          // user
	formDN                            // CN=user,...
)

func classifyIdentity(identity string) identityForm {
	switch {
	case strings.Contains(identity, "=") && strings.Contains(identity, ","):
		return formDN
	case strings.Contains(identity, `\`):
		return formDownLevel
	case strings.Contains(identity, "@"):
		return formUPN
	default:
		return formBare
	}
}

// identityParts are the pieces candidate identities are built from.
type identityParts struct {
	configured string
	local      string // configured identity without domain qualifiers
	stripped   string // local with the service account prefix removed
	domain     string
	netbios    string
	baseDN     string
}

func newIdentityParts(cfg *DirectoryConfig) identityParts {
	configured := strings.TrimSpace(cfg.BindUser)
	local := configured
	upnDomain := ""

	if _, user, ok := strings.Cut(local, `\`); ok {
		local = user
	}
	if user, domain, ok := strings.Cut(local, "@"); ok {
		local = user
		upnDomain = domain
	}

	stripped := local
	if prefix := cfg.ServiceAccountPrefix; prefix != "" && len(local) > len(prefix) &&
		strings.EqualFold(local[:len(prefix)], prefix) {
		stripped = local[len(prefix):]
	}

	domain := cfg.DerivedDomain()
	if domain == "" {
		domain = upnDomain
	}
	netbios := cfg.NetBIOSDomain()
	if netbios == "" && domain != "" {
		label, _, _ := strings.Cut(domain, ".")
		netbios = strings.ToUpper(label)
	}

	return identityParts{
		configured: configured,
		local:      local,
		stripped:   stripped,
		domain:     domain,
		netbios:    netbios,
		baseDN:     strings.TrimSpace(cfg.BaseDN),
	}
}

// candidateRule derives one candidate identity. An empty result means the
// rule does not apply to this configuration.
type candidateRule struct {
	name   string
	derive func(p identityParts) string
}

// candidateRules are tried in order until one binds.
var candidateRules = []candidateRule{
	{"upn_derived", func(p identityParts) string {
		if p.domain == "" {
			return ""
		}
		return p.local + "@" + p.domain
	}},
	{"configured", func(p identityParts) string {
		return p.configured
	}},
	{"upn_unprefixed", func(p identityParts) string {
		if p.domain == "" {
			return ""
		}
		return p.stripped + "@" + p.domain
	}},
	{"down_level", func(p identityParts) string {
		if p.netbios == "" {
			return ""
		}
		return p.netbios + `\` + p.local
	}},
	{"bare", func(p identityParts) string {
		return p.local
	}},
	{"dn_users", func(p identityParts) string {
		if p.baseDN == "" {
			return ""
		}
		return "CN=" + escapeDNValue(p.local) + ",CN=Users," + p.baseDN
	}},
	{"dn_service_accounts", func(p identityParts) string {
		if p.baseDN == "" {
			return ""
		}
		return "CN=" + escapeDNValue(p.local) + ",OU=Service Accounts," + p.baseDN
	}},
}

// CredentialCandidate is one identity encoding to present to the server.
type CredentialCandidate struct {
	Name     string
	Identity string
	form     identityForm
}

// CandidateIdentities derives the ordered, de-duplicated candidate list for cfg.
// Duplicates keep their first position.
func CandidateIdentities(cfg *DirectoryConfig) []CredentialCandidate {
	parts := newIdentityParts(cfg)
	if parts.local == "" {
		return nil
	}

	seen := make(map[string]bool, len(candidateRules))
	candidates := make([]CredentialCandidate, 0, len(candidateRules))
	for _, rule := range candidateRules {
		identity := rule.derive(parts)
		if identity == "" || seen[identity] {
			continue
		}
		seen[identity] = true
		candidates = append(candidates, CredentialCandidate{
			Name:     rule.name,
			Identity: identity,
			form:     classifyIdentity(identity),
		})
	}
	return candidates
}

// CredentialNegotiator finds and caches the identity encoding the server accepts.
type CredentialNegotiator struct {
	cfg    *DirectoryConfig
	dial   DialFunc
	gssapi GSSAPIClientFactory

	mu     sync.Mutex
	cached *CredentialCandidate
}

// NewCredentialNegotiator creates a negotiator. Nil dial and gssapi select the
// network dialer and the password-based Kerberos client.
func NewCredentialNegotiator(cfg *DirectoryConfig, dial DialFunc, gssapi GSSAPIClientFactory) *CredentialNegotiator {
	if dial == nil {
		dial = DialDirectory
	}
	if gssapi == nil {
		gssapi = NewPasswordGSSAPIClient
	}
	return &CredentialNegotiator{
		cfg:    cfg,
		dial:   dial,
		gssapi: gssapi,
	}
}

// Cached returns the negotiated identity, if any.
func (n *CredentialNegotiator) Cached() (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.cached == nil {
		return "", false
	}
	return n.cached.Identity, true
}

// Reset forgets the negotiated identity.
func (n *CredentialNegotiator) Reset() {
	n.mu.Lock()
	n.cached = nil
	n.mu.Unlock()
}

// store records c unless another caller got there first, and returns the
// candidate that is cached afterwards.
func (n *CredentialNegotiator) store(c CredentialCandidate) CredentialCandidate {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.cached == nil {
		n.cached = &c
	}
	return *n.cached
}

func (n *CredentialNegotiator) load() (CredentialCandidate, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.cached == nil {
		return CredentialCandidate{}, false
	}
	return *n.cached, true
}

// Negotiate returns the working identity, trying candidates if none is cached.
func (n *CredentialNegotiator) Negotiate(ctx context.Context) (string, error) {
	conn, identity, err := n.Connect(ctx)
	if err != nil {
		return "", err
	}
	release(conn)
	return identity, nil
}

// Connect returns a connection bound with the negotiated identity. The caller
// must release it.
func (n *CredentialNegotiator) Connect(ctx context.Context) (Conn, string, error) {
	if err := n.cfg.Validate(); err != nil {
		return nil, "", err
	}

	if c, ok := n.load(); ok {
		return n.connectAs(ctx, c)
	}

	candidates := CandidateIdentities(n.cfg)
	attempted := make([]string, 0, len(candidates))
	var lastErr error

	for _, c := range candidates {
		if !n.applicable(c) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, "", NewConnectionError("credential negotiation aborted", false, err)
		}

		conn, err := n.dial(ctx, n.cfg)
		if err != nil {
			LogConnectionEvent(ctx, "connection_failed", map[string]any{
				"server": ServerURL(n.cfg),
				"error":  err.Error(),
			})
			return nil, "", err
		}

		attempted = append(attempted, c.Identity)
		err = n.bind(ctx, conn, c)
		if err == nil {
			winner := n.store(c)
			if winner.Identity != c.Identity {
				// Lost the race; use the identity that was cached first.
				release(conn)
				return n.connectAs(ctx, winner)
			}
			LogConnectionEvent(ctx, "credential_negotiated", map[string]any{
				"candidate": c.Name,
				"identity":  c.Identity,
				"attempts":  len(attempted),
			})
			return conn, c.Identity, nil
		}

		release(conn)
		if isTransportError(err) {
			return nil, "", NewConnectionError("connection lost during bind", true, err)
		}

		lastErr = err
		LogConnectionEvent(ctx, "bind_rejected", map[string]any{
			"candidate": c.Name,
			"identity":  c.Identity,
			"error":     NewLDAPError("bind", err).Error(),
			"invalid":   IsAuthenticationError(err),
		})
	}

	LogConnectionEvent(ctx, "negotiation_failed", map[string]any{
		"attempted": len(attempted),
	})
	return nil, "", &NoWorkingCredentialError{Attempted: attempted, LastErr: lastErr}
}

// connectAs binds with a previously negotiated candidate. A rejection is
// reported as is; the candidate list is not tried again.
func (n *CredentialNegotiator) connectAs(ctx context.Context, c CredentialCandidate) (Conn, string, error) {
	conn, err := n.dial(ctx, n.cfg)
	if err != nil {
		return nil, "", err
	}

	if err := n.bind(ctx, conn, c); err != nil {
		release(conn)
		if isTransportError(err) {
			return nil, "", NewConnectionError("connection lost during bind", true, err)
		}
		LogConnectionEvent(ctx, "cached_credential_rejected", map[string]any{
			"identity": c.Identity,
			"error":    err.Error(),
		})
		return nil, "", fmt.Errorf("bind with negotiated credential %q failed: %w", c.Identity, NewLDAPError("bind", err))
	}

	return conn, c.Identity, nil
}

// ProbeCredentialFormats presents every candidate to the server and reports
// how each was answered. The negotiated identity is neither used nor changed.
func (n *CredentialNegotiator) ProbeCredentialFormats(ctx context.Context) ([]CredentialTrial, error) {
	if err := n.cfg.Validate(); err != nil {
		return nil, err
	}

	candidates := CandidateIdentities(n.cfg)
	trials := make([]CredentialTrial, 0, len(candidates))

	for _, c := range candidates {
		trial := CredentialTrial{Name: c.Name, Identity: c.Identity}

		if !n.applicable(c) {
			trial.Outcome = TrialSkipped
			trial.Message = fmt.Sprintf("not usable with %s bind", n.cfg.BindMethod)
			trials = append(trials, trial)
			continue
		}
		if err := ctx.Err(); err != nil {
			return trials, NewConnectionError("credential probe aborted", false, err)
		}

		conn, err := n.dial(ctx, n.cfg)
		if err != nil {
			return trials, err
		}

		err = n.bind(ctx, conn, c)
		release(conn)
		if err != nil && isTransportError(err) {
			return trials, NewConnectionError("connection lost during bind", true, err)
		}

		trial.Outcome = classifyTrial(err)
		if err != nil {
			trial.Message = NewLDAPError("bind", err).Error()
		}
		trials = append(trials, trial)
	}

	return trials, nil
}

func classifyTrial(err error) TrialOutcome {
	switch {
	case err == nil:
		return TrialAccepted
	case ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials):
		return TrialInvalidCredentials
	case ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidDNSyntax):
		return TrialInvalidDNSyntax
	case ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject):
		return TrialNoSuchObject
	default:
		return TrialError
	}
}

// applicable reports whether c can be presented with the configured bind method.
func (n *CredentialNegotiator) applicable(c CredentialCandidate) bool {
	switch n.cfg.BindMethod {
	case BindMethodNTLM:
		return c.form != formDN
	case BindMethodKerberos:
		return c.form == formUPN || c.form == formBare
	default:
		return true
	}
}

func (n *CredentialNegotiator) bind(ctx context.Context, conn Conn, c CredentialCandidate) error {
	switch n.cfg.BindMethod {
	case BindMethodNTLM:
		domain, user := n.ntlmIdentity(c)
		return conn.NTLMBind(domain, user, n.cfg.BindPassword)
	case BindMethodKerberos:
		return kerberosBind(ctx, conn, n.cfg, n.gssapi, c.Identity)
	default:
		return conn.Bind(c.Identity, n.cfg.BindPassword)
	}
}

func (n *CredentialNegotiator) ntlmIdentity(c CredentialCandidate) (string, string) {
	switch c.form {
	case formDownLevel:
		domain, user, _ := strings.Cut(c.Identity, `\`)
		return domain, user
	case formUPN:
		return "", c.Identity
	default:
		return n.cfg.NetBIOSDomain(), c.Identity
	}
}
