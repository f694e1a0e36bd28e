package validators

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
)

// Ensure the implementation satisfies the expected interface.
var _ validator.String = dnValidator{}

// dnValidator validates that a string is a properly formatted Distinguished Name (DN).
// With requireDomain set it also requires at least one DC component, which is
// what a directory base DN needs for the domain to be derived from it.
type dnValidator struct {
	requireDomain bool
}

// Description describes the validation in plain text.
func (v dnValidator) Description(_ context.Context) string {
	if v.requireDomain {
		return "value must be a valid Distinguished Name (DN) with at least one DC component"
	}
	return "value must be a valid Distinguished Name (DN)"
}

// MarkdownDescription describes the validation in Markdown.
func (v dnValidator) MarkdownDescription(ctx context.Context) string {
	return v.Description(ctx)
}

// ValidateString performs the validation.
func (v dnValidator) ValidateString(ctx context.Context, request validator.StringRequest, response *validator.StringResponse) {
	// Skip validation for unknown or null values
	if request.ConfigValue.IsNull() || request.ConfigValue.IsUnknown() {
		return
	}

	value := request.ConfigValue.ValueString()

	if strings.TrimSpace(value) == "" {
		response.Diagnostics.AddAttributeError(
			request.Path,
			"Invalid Distinguished Name",
			fmt.Sprintf("The value %q is not a valid Distinguished Name format: DN cannot be empty", value),
		)
		return
	}

	dn, err := ldap.ParseDN(value)
	if err != nil {
		response.Diagnostics.AddAttributeError(
			request.Path,
			"Invalid Distinguished Name",
			fmt.Sprintf("The value %q is not a valid Distinguished Name format: %s", value, err.Error()),
		)
		return
	}

	if v.requireDomain && !hasDomainComponent(dn) {
		response.Diagnostics.AddAttributeError(
			request.Path,
			"Invalid Base DN",
			fmt.Sprintf("The value %q has no DC components, so no domain can be derived from it (e.g., DC=example,DC=com)", value),
		)
	}
}

func hasDomainComponent(dn *ldap.DN) bool {
	for _, rdn := range dn.RDNs {
		for _, attr := range rdn.Attributes {
			if strings.EqualFold(attr.Type, "DC") && attr.Value != "" {
				return true
			}
		}
	}
	return false
}

// IsValidDN returns a validator which ensures that any configured
// attribute value is a valid Distinguished Name (DN).
//
// Unknown values and null values are skipped from validation.
func IsValidDN() validator.String {
	return dnValidator{}
}

// IsValidBaseDN returns a validator which ensures that any configured
// attribute value is a valid DN carrying at least one DC component.
//
// Unknown values and null values are skipped from validation.
func IsValidBaseDN() validator.String {
	return dnValidator{requireDomain: true}
}
