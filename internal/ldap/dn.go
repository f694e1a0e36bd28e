package ldap

import (
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// DomainFromBaseDN extracts the DNS domain encoded in the DC components of a DN.
// "DC=corp,DC=example,DC=com" yields "corp.example.com".
func DomainFromBaseDN(baseDN string) string {
	if strings.TrimSpace(baseDN) == "" {
		return ""
	}

	var labels []string
	if parsed, err := ldap.ParseDN(baseDN); err == nil {
		for _, rdn := range parsed.RDNs {
			for _, attr := range rdn.Attributes {
				if strings.EqualFold(attr.Type, "DC") && attr.Value != "" {
					labels = append(labels, attr.Value)
				}
			}
		}
		return strings.Join(labels, ".")
	}

	// Unparseable DNs still get a best effort split.
	for _, part := range strings.Split(baseDN, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && strings.EqualFold(strings.TrimSpace(key), "DC") && strings.TrimSpace(value) != "" {
			labels = append(labels, strings.TrimSpace(value))
		}
	}
	return strings.Join(labels, ".")
}

// LeadingCommonName returns the value of the first RDN of a DN when it is a CN.
// Group membership values such as "CN=Domain Admins,CN=Users,DC=example,DC=com"
// reduce to "Domain Admins". DNs that do not parse fall back to a plain split.
func LeadingCommonName(dn string) string {
	dn = strings.TrimSpace(dn)
	if dn == "" {
		return ""
	}

	if parsed, err := ldap.ParseDN(dn); err == nil && len(parsed.RDNs) > 0 {
		for _, attr := range parsed.RDNs[0].Attributes {
			if strings.EqualFold(attr.Type, "CN") {
				return attr.Value
			}
		}
		return parsed.RDNs[0].Attributes[0].Value
	}

	first, _, _ := strings.Cut(dn, ",")
	if key, value, ok := strings.Cut(first, "="); ok && strings.EqualFold(strings.TrimSpace(key), "CN") {
		return strings.TrimSpace(value)
	}
	return first
}

// escapeDNValue escapes an attribute value for use inside an RDN (RFC 4514).
func escapeDNValue(value string) string {
	if value == "" {
		return value
	}

	var b strings.Builder
	b.Grow(len(value) + 8)

	last := len(value) - 1
	for i := 0; i < len(value); i++ {
		c := value[i]
		switch {
		case c == ',' || c == '+' || c == '"' || c == '\\' || c == '<' || c == '>' || c == ';':
			b.WriteByte('\\')
			b.WriteByte(c)
		case c == '#' && i == 0:
			b.WriteString(`\#`)
		case c == ' ' && (i == 0 || i == last):
			b.WriteString(`\ `)
		case c == 0:
			b.WriteString(`\00`)
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}
