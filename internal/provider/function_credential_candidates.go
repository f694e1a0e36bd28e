package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/creasty/defaults"
	"github.com/hashicorp/terraform-plugin-framework/attr"
	"github.com/hashicorp/terraform-plugin-framework/function"
	"github.com/hashicorp/terraform-plugin-framework/types"

	ldapclient "github.com/isometry/terraform-provider-adlookup/internal/ldap"
	"github.com/isometry/terraform-provider-adlookup/internal/provider/helpers"
)

var _ function.Function = &CredentialCandidatesFunction{}

var candidateAttrTypes = map[string]attr.Type{
	"name":     types.StringType,
	"identity": types.StringType,
}

// CredentialCandidatesOptions are the optional settings of credential_candidates.
type CredentialCandidatesOptions struct {
	// ServiceAccountPrefix is stripped from the account name for the unprefixed UPN form.
	ServiceAccountPrefix string `default:"su-"`
}

// CredentialCandidatesFunction implements the credential_candidates function.
type CredentialCandidatesFunction struct{}

// Metadata returns the function name and signature.
func (f CredentialCandidatesFunction) Metadata(_ context.Context, req function.MetadataRequest, resp *function.MetadataResponse) {
	resp.Name = "credential_candidates"
}

// Definition returns the function schema including parameters and return types.
func (f CredentialCandidatesFunction) Definition(_ context.Context, req function.DefinitionRequest, resp *function.DefinitionResponse) {
	resp.Definition = function.Definition{
		Summary:     "List the identity forms tried for a service account",
		Description: "Returns the ordered, de-duplicated list of identity forms the provider presents to the directory when negotiating a bind for the given service account and base DN. No connection is made. Options map fields (all optional): service_account_prefix (string) - prefix stripped from the account name for the unprefixed UPN form (default: su-).",
		MarkdownDescription: "Returns the ordered, de-duplicated list of identity forms the provider presents to the directory " +
			"when negotiating a bind for the given service account and base DN. No connection is made.\n\n" +
			"**Options map fields (all optional):**\n" +
			"- `service_account_prefix` (string): Prefix stripped from the account name for the unprefixed UPN form (default: \"su-\")",
		Parameters: []function.Parameter{
			function.StringParameter{
				Name:        "bind_user",
				Description: "Service account identity as configured: bare name, UPN, DOMAIN\\user or DN.",
			},
			function.StringParameter{
				Name:        "base_dn",
				Description: "Directory base DN; its DC components give the domain.",
			},
			function.DynamicParameter{
				Name:           "options",
				Description:    "Optional map of settings. Can be null to use defaults. Supported keys: service_account_prefix (string).",
				AllowNullValue: true,
			},
		},
		Return: function.ListReturn{
			ElementType: types.ObjectType{AttrTypes: candidateAttrTypes},
		},
	}
}

// Run implements the function logic.
func (f CredentialCandidatesFunction) Run(ctx context.Context, req function.RunRequest, resp *function.RunResponse) {
	var bindUser, baseDN string
	var options types.Dynamic

	resp.Error = function.ConcatFuncErrors(resp.Error, req.Arguments.Get(ctx, &bindUser, &baseDN, &options))
	if resp.Error != nil {
		return
	}

	opts, err := f.ParseOptions(ctx, options)
	if err != nil {
		resp.Error = function.NewArgumentFuncError(2, err.Error())
		return
	}

	cfg := ldapclient.NewDirectoryConfig()
	cfg.BindUser = strings.TrimSpace(bindUser)
	cfg.BaseDN = strings.TrimSpace(baseDN)
	cfg.ServiceAccountPrefix = opts.ServiceAccountPrefix

	candidates := ldapclient.CandidateIdentities(cfg)

	elements := make([]attr.Value, 0, len(candidates))
	for _, c := range candidates {
		obj, diags := types.ObjectValue(candidateAttrTypes, map[string]attr.Value{
			"name":     types.StringValue(c.Name),
			"identity": types.StringValue(c.Identity),
		})
		if diags.HasError() {
			resp.Error = function.FuncErrorFromDiags(ctx, diags)
			return
		}
		elements = append(elements, obj)
	}

	result, diags := types.ListValue(types.ObjectType{AttrTypes: candidateAttrTypes}, elements)
	if diags.HasError() {
		resp.Error = function.FuncErrorFromDiags(ctx, diags)
		return
	}

	resp.Error = function.ConcatFuncErrors(resp.Error, resp.Result.Set(ctx, result))
}

// ParseOptions applies defaults and then any keys set in value.
func (f CredentialCandidatesFunction) ParseOptions(ctx context.Context, value types.Dynamic) (*CredentialCandidatesOptions, error) {
	opts := &CredentialCandidatesOptions{}
	if err := defaults.Set(opts); err != nil {
		return nil, fmt.Errorf("failed to set default values: %w", err)
	}

	if value.IsNull() || value.IsUnknown() || value.IsUnderlyingValueNull() {
		return opts, nil
	}

	optionMap, err := helpers.DynamicValueToMap(ctx, value)
	if err != nil {
		return nil, fmt.Errorf("failed to extract options map: %w", err)
	}

	for key, val := range optionMap {
		switch key {
		case "service_account_prefix":
			if val == nil {
				continue
			}
			str, ok := val.(string)
			if !ok {
				return nil, fmt.Errorf("service_account_prefix must be a string, got %T", val)
			}
			opts.ServiceAccountPrefix = strings.TrimSpace(str)
		default:
			return nil, fmt.Errorf("unsupported option %q", key)
		}
	}

	return opts, nil
}

// NewCredentialCandidatesFunction creates a new instance of the credential_candidates function.
func NewCredentialCandidatesFunction() function.Function {
	return &CredentialCandidatesFunction{}
}
