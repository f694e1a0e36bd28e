package ldap

import (
	"context"
	"strings"
	"sync"

	"github.com/go-ldap/ldap/v3"
)

// userClassFilter matches user accounts that represent people.
const userClassFilter = "(&(objectClass=user)(objectCategory=person))"

// probeTimeLimit bounds each probe search on the server side, in seconds.
const probeTimeLimit = 10

// candidateAttributes are the attributes the client knows how to use, in
// the order they are probed and requested.
var candidateAttributes = []string{
	// Identity
	"cn",
	"sAMAccountName",
	"displayName",
	"name",
	"givenName",
	"sn",
	"mail",
	"userPrincipalName",
	"distinguishedName",

	// Organization
	"department",
	"title",
	"telephoneNumber",
	"mobile",
	"physicalDeliveryOfficeName",
	"company",
	"manager",
	"employeeID",
	"employeeNumber",

	// Timestamps
	"whenCreated",
	"lastLogon",

	// Membership and classification
	"memberOf",
	"objectClass",
	"objectCategory",

	// Identifiers
	"objectGUID",
	"objectSid",
}

// fallbackAttributes are assumed present when nothing could be confirmed.
var fallbackAttributes = []string{"cn", "distinguishedName", "objectClass"}

var canonicalAttributeNames = func() map[string]string {
	names := make(map[string]string, len(candidateAttributes))
	for _, attr := range candidateAttributes {
		names[strings.ToLower(attr)] = attr
	}
	return names
}()

// AttributeAvailability maps candidate attribute names to whether the server
// returns them for user entries.
type AttributeAvailability map[string]bool

// NewAttributeAvailability marks the named attributes available.
func NewAttributeAvailability(available ...string) AttributeAvailability {
	a := make(AttributeAvailability, len(candidateAttributes))
	for _, attr := range candidateAttributes {
		a[attr] = false
	}
	for _, attr := range available {
		if canonical, ok := canonicalAttributeNames[strings.ToLower(attr)]; ok {
			a[canonical] = true
		}
	}
	return a
}

// Has reports whether attr is available, ignoring case.
func (a AttributeAvailability) Has(attr string) bool {
	canonical, ok := canonicalAttributeNames[strings.ToLower(attr)]
	if !ok {
		return false
	}
	return a[canonical]
}

// Available lists the available attributes in candidate order.
func (a AttributeAvailability) Available() []string {
	var attrs []string
	for _, attr := range candidateAttributes {
		if a[attr] {
			attrs = append(attrs, attr)
		}
	}
	return attrs
}

// Count returns the number of available attributes.
func (a AttributeAvailability) Count() int {
	return len(a.Available())
}

// SchemaProber discovers which candidate attributes the server exposes.
type SchemaProber struct {
	searchBase string

	mu     sync.Mutex
	cached AttributeAvailability
}

// NewSchemaProber creates a prober that searches below searchBase.
func NewSchemaProber(searchBase string) *SchemaProber {
	return &SchemaProber{searchBase: searchBase}
}

// Cached returns the probed availability, if any.
func (p *SchemaProber) Cached() (AttributeAvailability, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.cached, p.cached != nil
}

// Reset forgets the probed availability.
func (p *SchemaProber) Reset() {
	p.mu.Lock()
	p.cached = nil
	p.mu.Unlock()
}

// Ensure returns the cached availability, probing over conn on first use.
func (p *SchemaProber) Ensure(ctx context.Context, conn Conn) (AttributeAvailability, error) {
	if cached, ok := p.Cached(); ok {
		return cached, nil
	}

	probed, err := p.Probe(ctx, conn)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cached == nil {
		p.cached = probed
	}
	return p.cached, nil
}

// Probe runs the discovery without consulting or filling the cache.
//
// Each candidate is requested alone for a single user entry holding a value
// for it, and counts as available when the returned entry carries it. When none can be
// confirmed that way, one entry is fetched with all attributes and its
// attribute names are matched against the candidates. When that also yields
// nothing, the fallback set is assumed. A lost connection aborts the probe
// with a ConnectionError so that a degraded result is never cached.
func (p *SchemaProber) Probe(ctx context.Context, conn Conn) (AttributeAvailability, error) {
	availability := NewAttributeAvailability()
	confirmed := 0

	for _, attr := range candidateAttributes {
		if err := ctx.Err(); err != nil {
			return nil, NewConnectionError("attribute probe aborted", false, err)
		}

		entries, err := searchEntries(conn, p.request(attr))
		if err != nil {
			if isTransportError(err) {
				return nil, NewConnectionError("connection lost during attribute probe", true, err)
			}
			logProbeRejection(ctx, attr, err)
			continue
		}
		if len(entries) > 0 && entryHasAttribute(entries[0], attr) {
			availability[attr] = true
			confirmed++
		}
	}

	if confirmed == 0 {
		if err := ctx.Err(); err != nil {
			return nil, NewConnectionError("attribute probe aborted", false, err)
		}

		entries, err := searchEntries(conn, p.request("*"))
		switch {
		case err != nil && isTransportError(err):
			return nil, NewConnectionError("connection lost during attribute probe", true, err)
		case err != nil:
			logProbeRejection(ctx, "*", err)
		case len(entries) > 0:
			for _, returned := range entries[0].Attributes {
				if canonical, ok := canonicalAttributeNames[strings.ToLower(returned.Name)]; ok {
					availability[canonical] = true
					confirmed++
				}
			}
		}
	}

	if confirmed == 0 {
		LogConnectionEvent(ctx, "attribute_fallback", map[string]any{
			"attributes": fallbackAttributes,
		})
		availability = NewAttributeAvailability(fallbackAttributes...)
	}

	LogConnectionEvent(ctx, "attributes_probed", map[string]any{
		"available_count": availability.Count(),
		"search_base":     p.searchBase,
	})
	return availability, nil
}

func (p *SchemaProber) request(attr string) *ldap.SearchRequest {
	filter := userClassFilter
	if attr != "*" {
		filter = "(&(objectClass=user)(objectCategory=person)(" + attr + "=*))"
	}

	return ldap.NewSearchRequest(
		p.searchBase,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		1,
		probeTimeLimit,
		false,
		filter,
		[]string{attr},
		nil,
	)
}

func entryHasAttribute(entry *ldap.Entry, attr string) bool {
	for _, a := range entry.Attributes {
		if strings.EqualFold(a.Name, attr) && (len(a.Values) > 0 || len(a.ByteValues) > 0) {
			return true
		}
	}
	return false
}

func logProbeRejection(ctx context.Context, attr string, err error) {
	LogConnectionEvent(ctx, "attribute_probe_rejected", map[string]any{
		"attribute": attr,
		"error":     err.Error(),
	})
}
