package provider

import (
	"context"

	"github.com/hashicorp/terraform-plugin-framework/function"
	"github.com/hashicorp/terraform-plugin-framework/types"

	ldapclient "github.com/isometry/terraform-provider-adlookup/internal/ldap"
)

var _ function.Function = &UserSearchFilterFunction{}

// UserSearchFilterFunction implements the user_search_filter function.
type UserSearchFilterFunction struct{}

// Metadata returns the function name and signature.
func (f UserSearchFilterFunction) Metadata(_ context.Context, req function.MetadataRequest, resp *function.MetadataResponse) {
	resp.Name = "user_search_filter"
}

// Definition returns the function schema including parameters and return types.
func (f UserSearchFilterFunction) Definition(_ context.Context, req function.DefinitionRequest, resp *function.DefinitionResponse) {
	resp.Definition = function.Definition{
		Summary:     "Build the LDAP filter used for user searches",
		Description: "Returns the LDAP filter adlookup_users would send for a search term, given the user attributes the directory exposes. Only exposed attributes among cn, displayName, sAMAccountName, mail and givenName get a substring clause; with none exposed the filter matches on cn. An empty term matches every user. The term is escaped.",
		MarkdownDescription: "Returns the LDAP filter `adlookup_users` would send for a search term, given the user attributes " +
			"the directory exposes.\n\n" +
			"- Only exposed attributes among `cn`, `displayName`, `sAMAccountName`, `mail` and `givenName` get a substring clause\n" +
			"- With none of them exposed the filter matches on `cn`\n" +
			"- An empty term matches every user\n" +
			"- Filter metacharacters in the term are escaped",
		Parameters: []function.Parameter{
			function.StringParameter{
				Name:        "search_term",
				Description: "Substring to match.",
			},
			function.ListParameter{
				Name:        "attributes",
				Description: "LDAP attribute names the directory schema exposes.",
				ElementType: types.StringType,
			},
		},
		Return: function.StringReturn{},
	}
}

// Run implements the function logic.
func (f UserSearchFilterFunction) Run(ctx context.Context, req function.RunRequest, resp *function.RunResponse) {
	var term string
	var attributes []string

	resp.Error = function.ConcatFuncErrors(resp.Error, req.Arguments.Get(ctx, &term, &attributes))
	if resp.Error != nil {
		return
	}

	filter := ldapclient.BuildUserSearchFilter(term, ldapclient.NewAttributeAvailability(attributes...))

	resp.Error = function.ConcatFuncErrors(resp.Error, resp.Result.Set(ctx, filter))
}

// NewUserSearchFilterFunction creates a new instance of the user_search_filter function.
func NewUserSearchFilterFunction() function.Function {
	return &UserSearchFilterFunction{}
}
