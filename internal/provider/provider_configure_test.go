package provider

import (
	"os"
	"testing"
	"time"

	"github.com/hashicorp/terraform-plugin-framework/provider"
	"github.com/hashicorp/terraform-plugin-framework/tfsdk"
	"github.com/hashicorp/terraform-plugin-go/tftypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ldapclient "github.com/isometry/terraform-provider-adlookup/internal/ldap"
)

// clearDirectoryEnv blanks every AD_* variable the provider reads.
func clearDirectoryEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		ldapclient.EnvServerHost, ldapclient.EnvServerPort, ldapclient.EnvUseSSL, ldapclient.EnvStartTLS,
		ldapclient.EnvSkipTLSVerify, ldapclient.EnvBaseDN, ldapclient.EnvBindUser, ldapclient.EnvBindPassword,
		ldapclient.EnvUserSearchBase, ldapclient.EnvBindMethod, ldapclient.EnvConnectTimeout,
		ldapclient.EnvKerberosRealm, ldapclient.EnvKerberosConfig, ldapclient.EnvMaxResults,
	} {
		t.Setenv(name, "")
	}

	// An empty prefix variable is meaningful, so this one is removed.
	t.Setenv(ldapclient.EnvServiceAccountPrefix, "")
	require.NoError(t, os.Unsetenv(ldapclient.EnvServiceAccountPrefix))
}

// providerConfig builds a provider configuration with the given attributes
// set and every other attribute null.
func providerConfig(t *testing.T, values map[string]tftypes.Value) tfsdk.Config {
	t.Helper()

	p := &AdLookupProvider{version: "test"}
	schemaResp := &provider.SchemaResponse{}
	p.Schema(t.Context(), provider.SchemaRequest{}, schemaResp)
	require.False(t, schemaResp.Diagnostics.HasError())

	objectType, ok := schemaResp.Schema.Type().TerraformType(t.Context()).(tftypes.Object)
	require.True(t, ok)

	attrs := make(map[string]tftypes.Value, len(objectType.AttributeTypes))
	for name, typ := range objectType.AttributeTypes {
		if v, ok := values[name]; ok {
			attrs[name] = v
		} else {
			attrs[name] = tftypes.NewValue(typ, nil)
		}
	}

	return tfsdk.Config{
		Schema: schemaResp.Schema,
		Raw:    tftypes.NewValue(objectType, attrs),
	}
}

func configureProvider(t *testing.T, values map[string]tftypes.Value) *provider.ConfigureResponse {
	t.Helper()

	p := &AdLookupProvider{version: "test"}
	resp := &provider.ConfigureResponse{}
	p.Configure(t.Context(), provider.ConfigureRequest{Config: providerConfig(t, values)}, resp)
	return resp
}

func TestConfigure_AttributesOverrideEnvironment(t *testing.T) {
	clearDirectoryEnv(t)
	t.Setenv(ldapclient.EnvServerHost, "env-dc.example.com")
	t.Setenv(ldapclient.EnvBindPassword, "from-env")
	t.Setenv(ldapclient.EnvConnectTimeout, "5")

	resp := configureProvider(t, map[string]tftypes.Value{
		"server_host": tftypes.NewValue(tftypes.String, "dc1.example.com"),
		"base_dn":     tftypes.NewValue(tftypes.String, "DC=example,DC=com"),
		"bind_user":   tftypes.NewValue(tftypes.String, " jsmith "),
		"bind_method": tftypes.NewValue(tftypes.String, "NTLM"),
		"server_port": tftypes.NewValue(tftypes.Number, 636),
		"use_ssl":     tftypes.NewValue(tftypes.Bool, true),
	})
	require.False(t, resp.Diagnostics.HasError(), "%v", resp.Diagnostics)

	client, ok := resp.DataSourceData.(*ldapclient.DirectoryClient)
	require.True(t, ok, "expected *DirectoryClient, got %T", resp.DataSourceData)

	cfg := client.Config()
	assert.Equal(t, "dc1.example.com", cfg.Host)
	assert.Equal(t, "DC=example,DC=com", cfg.BaseDN)
	assert.Equal(t, "jsmith", cfg.BindUser)
	assert.Equal(t, "from-env", cfg.BindPassword)
	assert.Equal(t, ldapclient.BindMethodNTLM, cfg.BindMethod)
	assert.Equal(t, 636, cfg.Port)
	assert.True(t, cfg.UseSSL)
	assert.Equal(t, 5*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, "su-", cfg.ServiceAccountPrefix)
	assert.Equal(t, "DC=example,DC=com", cfg.SearchBase())
}

func TestConfigure_EnvironmentOnly(t *testing.T) {
	clearDirectoryEnv(t)
	t.Setenv(ldapclient.EnvServerHost, "dc1.example.com")
	t.Setenv(ldapclient.EnvBaseDN, "DC=example,DC=com")
	t.Setenv(ldapclient.EnvBindUser, "jsmith")
	t.Setenv(ldapclient.EnvBindPassword, "secret")
	t.Setenv(ldapclient.EnvUseSSL, "yes")
	t.Setenv(ldapclient.EnvStartTLS, "TRUE")
	t.Setenv(ldapclient.EnvServerPort, "not-a-port")
	t.Setenv(ldapclient.EnvMaxResults, "25")
	t.Setenv(ldapclient.EnvServiceAccountPrefix, "")

	resp := configureProvider(t, nil)
	require.False(t, resp.Diagnostics.HasError(), "%v", resp.Diagnostics)

	cfg := resp.DataSourceData.(*ldapclient.DirectoryClient).Config()
	assert.False(t, cfg.UseSSL, "only an explicit true enables SSL")
	assert.True(t, cfg.StartTLS)
	assert.Equal(t, 389, cfg.Port)
	assert.Equal(t, 25, cfg.MaxResults)
	assert.Empty(t, cfg.ServiceAccountPrefix)
	assert.True(t, configuredClient(resp).GetConfigStatus().Valid)
}

func TestConfigure_IncompleteConfigurationStillConfigures(t *testing.T) {
	clearDirectoryEnv(t)

	resp := configureProvider(t, map[string]tftypes.Value{
		"server_host": tftypes.NewValue(tftypes.String, "dc1.example.com"),
	})
	require.False(t, resp.Diagnostics.HasError(), "%v", resp.Diagnostics)

	status := configuredClient(resp).GetConfigStatus()
	assert.False(t, status.Valid)
	assert.Equal(t, []string{ldapclient.EnvBaseDN, ldapclient.EnvBindUser, ldapclient.EnvBindPassword}, status.MissingFields)
}

func TestConfigure_InvalidBindMethodFromEnvironment(t *testing.T) {
	clearDirectoryEnv(t)
	t.Setenv(ldapclient.EnvBindMethod, "digest")

	resp := configureProvider(t, nil)
	require.True(t, resp.Diagnostics.HasError())
	assert.Equal(t, "Invalid Bind Method", resp.Diagnostics.Errors()[0].Summary())
	assert.Nil(t, resp.DataSourceData)
}

func TestConfigure_BindMethodAttributeOverridesInvalidEnvironment(t *testing.T) {
	clearDirectoryEnv(t)
	t.Setenv(ldapclient.EnvBindMethod, "digest")

	resp := configureProvider(t, map[string]tftypes.Value{
		"bind_method": tftypes.NewValue(tftypes.String, "NTLM"),
	})
	require.False(t, resp.Diagnostics.HasError(), "%v", resp.Diagnostics)
	assert.Equal(t, ldapclient.BindMethodNTLM, configuredClient(resp).Config().BindMethod)
}

func TestConfigure_EnvironmentMatchesLoadConfigFromEnv(t *testing.T) {
	clearDirectoryEnv(t)
	t.Setenv(ldapclient.EnvServerHost, " dc1.example.com ")
	t.Setenv(ldapclient.EnvServerPort, "-1")
	t.Setenv(ldapclient.EnvConnectTimeout, "0")
	t.Setenv(ldapclient.EnvMaxResults, "-5")
	t.Setenv(ldapclient.EnvSkipTLSVerify, "true")

	expected, err := ldapclient.LoadConfigFromEnv(os.LookupEnv)
	require.NoError(t, err)

	resp := configureProvider(t, nil)
	require.False(t, resp.Diagnostics.HasError(), "%v", resp.Diagnostics)

	cfg := configuredClient(resp).Config()
	assert.Equal(t, expected, cfg)
	assert.Equal(t, 389, cfg.Port, "non-positive ports keep the default")
	assert.Equal(t, "dc1.example.com", cfg.Host)
}

func TestConfigure_ExplicitEmptyPrefix(t *testing.T) {
	clearDirectoryEnv(t)
	t.Setenv(ldapclient.EnvServiceAccountPrefix, "svc-")

	resp := configureProvider(t, map[string]tftypes.Value{
		"service_account_prefix": tftypes.NewValue(tftypes.String, ""),
	})
	require.False(t, resp.Diagnostics.HasError(), "%v", resp.Diagnostics)
	assert.Empty(t, configuredClient(resp).Config().ServiceAccountPrefix)

	resp = configureProvider(t, nil)
	assert.Equal(t, "svc-", configuredClient(resp).Config().ServiceAccountPrefix)
}

func configuredClient(resp *provider.ConfigureResponse) *ldapclient.DirectoryClient {
	return resp.DataSourceData.(*ldapclient.DirectoryClient)
}
