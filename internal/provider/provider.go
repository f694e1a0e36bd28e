package provider

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework-validators/int64validator"
	"github.com/hashicorp/terraform-plugin-framework-validators/providervalidator"
	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/ephemeral"
	"github.com/hashicorp/terraform-plugin-framework/function"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/provider"
	"github.com/hashicorp/terraform-plugin-framework/provider/schema"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	ldapclient "github.com/isometry/terraform-provider-adlookup/internal/ldap"
	"github.com/isometry/terraform-provider-adlookup/internal/provider/validators"
)

// Ensure AdLookupProvider satisfies various provider interfaces.
var _ provider.Provider = &AdLookupProvider{}
var _ provider.ProviderWithFunctions = &AdLookupProvider{}
var _ provider.ProviderWithEphemeralResources = &AdLookupProvider{}
var _ provider.ProviderWithConfigValidators = &AdLookupProvider{}

// AdLookupProvider defines the provider implementation.
type AdLookupProvider struct {
	// version is set to the provider version on release, "dev" when the
	// provider is built and ran locally, and "test" when running acceptance
	// testing.
	version string
}

// AdLookupProviderModel describes the provider data model.
type AdLookupProviderModel struct {
	// Connection settings
	ServerHost     types.String `tfsdk:"server_host"`
	ServerPort     types.Int64  `tfsdk:"server_port"`
	UseSSL         types.Bool   `tfsdk:"use_ssl"`
	StartTLS       types.Bool   `tfsdk:"start_tls"`
	SkipTLSVerify  types.Bool   `tfsdk:"skip_tls_verify"`
	ConnectTimeout types.Int64  `tfsdk:"connect_timeout"`

	// Directory layout
	BaseDN         types.String `tfsdk:"base_dn"`
	UserSearchBase types.String `tfsdk:"user_search_base"`
	MaxResults     types.Int64  `tfsdk:"max_results"`

	// Authentication settings
	BindUser             types.String `tfsdk:"bind_user"`
	BindPassword         types.String `tfsdk:"bind_password"`
	BindMethod           types.String `tfsdk:"bind_method"`
	ServiceAccountPrefix types.String `tfsdk:"service_account_prefix"`

	// Kerberos settings
	KerberosRealm  types.String `tfsdk:"kerberos_realm"`
	KerberosConfig types.String `tfsdk:"kerberos_config"`
}

func (p *AdLookupProvider) Metadata(ctx context.Context, req provider.MetadataRequest, resp *provider.MetadataResponse) {
	resp.TypeName = "adlookup"
	resp.Version = p.version
}

func (p *AdLookupProvider) Schema(ctx context.Context, req provider.SchemaRequest, resp *provider.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "The AD Lookup provider reads user accounts from Active Directory over LDAP. " +
			"It works out which form of the service account identity the directory accepts and which user " +
			"attributes the schema exposes, and adapts its searches to both.",
		Attributes: map[string]schema.Attribute{
			// Connection settings
			"server_host": schema.StringAttribute{
				MarkdownDescription: "Directory server host name or address (e.g., `dc1.example.com`). " +
					"Can be set via the `AD_SERVER_HOST` environment variable.",
				Optional: true,
				Validators: []validator.String{
					stringvalidator.LengthAtLeast(1),
				},
			},
			"server_port": schema.Int64Attribute{
				MarkdownDescription: "Directory server port. Defaults to `389`. " +
					"Can be set via the `AD_SERVER_PORT` environment variable.",
				Optional: true,
				Validators: []validator.Int64{
					int64validator.Between(1, 65535),
				},
			},
			"use_ssl": schema.BoolAttribute{
				MarkdownDescription: "Connect with LDAPS instead of plain LDAP. Defaults to `false`. " +
					"Can be set via the `AD_USE_SSL` environment variable.",
				Optional: true,
			},
			"start_tls": schema.BoolAttribute{
				MarkdownDescription: "Upgrade a plain LDAP connection with StartTLS before binding. Defaults to `false`. " +
					"Can be set via the `AD_START_TLS` environment variable.",
				Optional: true,
			},
			"skip_tls_verify": schema.BoolAttribute{
				MarkdownDescription: "Skip TLS certificate verification. Not recommended for production. Defaults to `false`. " +
					"Can be set via the `AD_SKIP_TLS_VERIFY` environment variable.",
				Optional: true,
			},
			"connect_timeout": schema.Int64Attribute{
				MarkdownDescription: "Connection timeout in seconds. Defaults to `30`. " +
					"Can be set via the `AD_CONNECT_TIMEOUT` environment variable.",
				Optional: true,
				Validators: []validator.Int64{
					int64validator.AtLeast(1),
				},
			},

			// Directory layout
			"base_dn": schema.StringAttribute{
				MarkdownDescription: "Base DN of the directory (e.g., `DC=example,DC=com`). The DC components " +
					"are also used to derive the domain for credential candidates. " +
					"Can be set via the `AD_BASE_DN` environment variable.",
				Optional: true,
				Validators: []validator.String{
					validators.IsValidBaseDN(),
				},
			},
			"user_search_base": schema.StringAttribute{
				MarkdownDescription: "Base DN for user searches. Defaults to `base_dn`. " +
					"Can be set via the `AD_USER_SEARCH_BASE` environment variable.",
				Optional: true,
				Validators: []validator.String{
					validators.IsValidDN(),
				},
			},
			"max_results": schema.Int64Attribute{
				MarkdownDescription: "Default result cap for user searches that do not set their own. Defaults to `100`. " +
					"Can be set via the `AD_MAX_RESULTS` environment variable.",
				Optional: true,
				Validators: []validator.Int64{
					int64validator.AtLeast(1),
				},
			},

			// Authentication settings
			"bind_user": schema.StringAttribute{
				MarkdownDescription: "Service account identity as it is known to operators. It may be a bare " +
					"name, a UPN, a down-level `DOMAIN\\user` name or a DN; the provider tries the variants " +
					"the directory is likely to accept. Can be set via the `AD_BIND_USER` environment variable.",
				Optional: true,
			},
			"bind_password": schema.StringAttribute{
				MarkdownDescription: "Password for the service account. " +
					"Can be set via the `AD_BIND_PASSWORD` environment variable.",
				Optional:  true,
				Sensitive: true,
			},
			"bind_method": schema.StringAttribute{
				MarkdownDescription: "How candidate identities are presented: `simple`, `ntlm` or `kerberos`. " +
					"Defaults to `simple`. Can be set via the `AD_BIND_METHOD` environment variable.",
				Optional: true,
				Validators: []validator.String{
					validators.CaseInsensitiveOneOf(ldapclient.SupportedBindMethods()...),
				},
			},
			"service_account_prefix": schema.StringAttribute{
				MarkdownDescription: "Prefix carried by service account names (e.g., `su-`). A UPN without the prefix " +
					"is also tried during bind negotiation. Defaults to `su-`; set to an empty string to disable. " +
					"Can be set via the `AD_SERVICE_ACCOUNT_PREFIX` environment variable.",
				Optional: true,
			},

			// Kerberos settings
			"kerberos_realm": schema.StringAttribute{
				MarkdownDescription: "Kerberos realm used when `bind_method` is `kerberos` (e.g., `EXAMPLE.COM`). " +
					"Defaults to the upper-cased domain derived from `base_dn`. " +
					"Can be set via the `AD_KERBEROS_REALM` environment variable.",
				Optional: true,
			},
			"kerberos_config": schema.StringAttribute{
				MarkdownDescription: "Path to the Kerberos configuration file. Defaults to `/etc/krb5.conf`. " +
					"Can be set via the `AD_KERBEROS_CONFIG` environment variable.",
				Optional: true,
			},
		},
	}
}

// ConfigValidators implements provider.ProviderWithConfigValidators.
func (p *AdLookupProvider) ConfigValidators(ctx context.Context) []provider.ConfigValidator {
	return []provider.ConfigValidator{
		// LDAPS and StartTLS are alternative ways of securing the connection
		providervalidator.Conflicting(
			path.MatchRoot("use_ssl"),
			path.MatchRoot("start_tls"),
		),
	}
}

// Configure builds the directory client. It performs no network I/O and
// accepts an incomplete configuration, which adlookup_config_status and
// adlookup_connection report on.
func (p *AdLookupProvider) Configure(ctx context.Context, req provider.ConfigureRequest, resp *provider.ConfigureResponse) {
	var data AdLookupProviderModel

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	ctx = p.configureLogging(ctx)

	tflog.Info(ctx, "Configuring AD Lookup provider", map[string]any{
		"version": p.version,
	})

	config, err := p.buildDirectoryConfig(&data)
	if err != nil {
		resp.Diagnostics.AddAttributeError(
			path.Root("bind_method"),
			"Invalid Bind Method",
			"The configured bind method is not supported.\n\n"+
				"Configuration Error: "+err.Error(),
		)
		return
	}

	status := config.Status()
	if !status.Valid {
		tflog.Warn(ctx, "Directory configuration is incomplete, lookups will return empty results", map[string]any{
			"missing_fields": status.MissingFields,
		})
	} else {
		tflog.Debug(ctx, "Directory configuration resolved", config.Sanitized())
	}

	client := ldapclient.NewDirectoryClient(config)

	tflog.Info(ctx, "AD Lookup provider configured successfully")

	resp.DataSourceData = client
}

// configureLogging sets up logging configuration based on environment variables.
func (p *AdLookupProvider) configureLogging(ctx context.Context) context.Context {
	ctx = tflog.SetField(ctx, "provider", "adlookup")
	ctx = tflog.SetField(ctx, "provider_version", p.version)

	tflog.Debug(ctx, "AD Lookup provider logging configured")

	return ctx
}

// buildDirectoryConfig resolves every setting from the provider block first,
// then the environment, then the defaults carried by DirectoryConfig. Both
// layers go through ldapclient.LoadConfigFromEnv so they are parsed alike.
func (p *AdLookupProvider) buildDirectoryConfig(data *AdLookupProviderModel) (*ldapclient.DirectoryConfig, error) {
	return ldapclient.LoadConfigFromEnv(providerLookup(data, os.LookupEnv))
}

// providerLookup answers AD_* lookups from the provider block, falling back
// to env. Blank strings count as unset, except service_account_prefix where an
// explicit empty value disables prefixed candidates.
func providerLookup(data *AdLookupProviderModel, env func(string) (string, bool)) func(string) (string, bool) {
	attributes := make(map[string]string)

	strs := map[string]types.String{
		ldapclient.EnvServerHost:     data.ServerHost,
		ldapclient.EnvBaseDN:         data.BaseDN,
		ldapclient.EnvUserSearchBase: data.UserSearchBase,
		ldapclient.EnvBindUser:       data.BindUser,
		ldapclient.EnvBindPassword:   data.BindPassword,
		ldapclient.EnvBindMethod:     data.BindMethod,
		ldapclient.EnvKerberosRealm:  data.KerberosRealm,
		ldapclient.EnvKerberosConfig: data.KerberosConfig,
	}
	for key, value := range strs {
		if !value.IsNull() && strings.TrimSpace(value.ValueString()) != "" {
			attributes[key] = value.ValueString()
		}
	}
	if !data.ServiceAccountPrefix.IsNull() {
		attributes[ldapclient.EnvServiceAccountPrefix] = data.ServiceAccountPrefix.ValueString()
	}

	bools := map[string]types.Bool{
		ldapclient.EnvUseSSL:        data.UseSSL,
		ldapclient.EnvStartTLS:      data.StartTLS,
		ldapclient.EnvSkipTLSVerify: data.SkipTLSVerify,
	}
	for key, value := range bools {
		if !value.IsNull() {
			attributes[key] = strconv.FormatBool(value.ValueBool())
		}
	}

	ints := map[string]types.Int64{
		ldapclient.EnvServerPort:     data.ServerPort,
		ldapclient.EnvConnectTimeout: data.ConnectTimeout,
		ldapclient.EnvMaxResults:     data.MaxResults,
	}
	for key, value := range ints {
		if !value.IsNull() {
			attributes[key] = strconv.FormatInt(value.ValueInt64(), 10)
		}
	}

	return func(key string) (string, bool) {
		if value, ok := attributes[key]; ok {
			return value, true
		}
		return env(key)
	}
}

func (p *AdLookupProvider) Resources(ctx context.Context) []func() resource.Resource {
	return []func() resource.Resource{
		// Read-only provider
	}
}

func (p *AdLookupProvider) EphemeralResources(ctx context.Context) []func() ephemeral.EphemeralResource {
	return []func() ephemeral.EphemeralResource{
		// No ephemeral resources defined yet
	}
}

func (p *AdLookupProvider) DataSources(ctx context.Context) []func() datasource.DataSource {
	return []func() datasource.DataSource{
		NewUsersDataSource,
		NewUserDataSource,
		NewUserGroupsDataSource,
		NewConnectionDataSource,
		NewConfigStatusDataSource,
		NewCredentialFormatsDataSource,
	}
}

func (p *AdLookupProvider) Functions(ctx context.Context) []func() function.Function {
	return []func() function.Function{
		NewCredentialCandidatesFunction,
		NewUserSearchFilterFunction,
	}
}

func New(version string) func() provider.Provider {
	return func() provider.Provider {
		return &AdLookupProvider{
			version: version,
		}
	}
}
