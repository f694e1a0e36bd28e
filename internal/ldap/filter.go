package ldap

import (
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// searchableAttributes are matched against a search term, in clause order.
var searchableAttributes = []string{"cn", "displayName", "sAMAccountName", "mail", "givenName"}

// BuildUserSearchFilter returns the user search filter for term. Only
// available attributes get a substring clause; with none available the
// filter matches on cn alone. An empty term matches every user.
func BuildUserSearchFilter(term string, available AttributeAvailability) string {
	term = strings.TrimSpace(term)
	if term == "" {
		return userClassFilter
	}

	escaped := ldap.EscapeFilter(term)

	var clauses strings.Builder
	for _, attr := range searchableAttributes {
		if available.Has(attr) {
			clauses.WriteString("(" + attr + "=*" + escaped + "*)")
		}
	}
	if clauses.Len() == 0 {
		clauses.WriteString("(cn=*" + escaped + "*)")
	}

	return "(&(objectClass=user)(objectCategory=person)(|" + clauses.String() + "))"
}

// BuildAccountFilter returns the filter selecting one account by name, keyed
// on sAMAccountName when available and cn otherwise.
func BuildAccountFilter(username string, available AttributeAvailability) string {
	attr := "cn"
	if available.Has("sAMAccountName") {
		attr = "sAMAccountName"
	}
	return "(&(objectClass=user)(" + attr + "=" + ldap.EscapeFilter(strings.TrimSpace(username)) + "))"
}
