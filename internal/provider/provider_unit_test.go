package provider_test

import (
	"strings"
	"testing"

	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/function"
	"github.com/hashicorp/terraform-plugin-framework/provider"
	"github.com/hashicorp/terraform-plugin-framework/providerserver"

	this "github.com/isometry/terraform-provider-adlookup/internal/provider"
)

// TestProviderMetadata tests the provider metadata.
func TestProviderMetadata(t *testing.T) {
	p := this.New("test")()

	req := provider.MetadataRequest{}
	resp := &provider.MetadataResponse{}

	p.Metadata(t.Context(), req, resp)

	if resp.TypeName != "adlookup" {
		t.Errorf("Expected TypeName 'adlookup', got %s", resp.TypeName)
	}

	if resp.Version != "test" {
		t.Errorf("Expected Version 'test', got %s", resp.Version)
	}
}

// TestProviderSchema tests the provider schema.
func TestProviderSchema(t *testing.T) {
	p := &this.AdLookupProvider{}

	req := provider.SchemaRequest{}
	resp := &provider.SchemaResponse{}

	p.Schema(t.Context(), req, resp)

	if resp.Diagnostics.HasError() {
		t.Fatalf("Schema creation failed: %v", resp.Diagnostics)
	}

	expectedAttributes := []string{
		"server_host", "server_port", "use_ssl", "start_tls", "skip_tls_verify", "connect_timeout",
		"base_dn", "user_search_base", "max_results",
		"bind_user", "bind_password", "bind_method", "service_account_prefix",
		"kerberos_realm", "kerberos_config",
	}

	for _, attr := range expectedAttributes {
		attribute, exists := resp.Schema.Attributes[attr]
		if !exists {
			t.Errorf("Expected attribute %s not found in schema", attr)
			continue
		}
		if attribute.IsRequired() {
			t.Errorf("Attribute %s must be optional so it can come from the environment", attr)
		}
	}

	if len(resp.Schema.Attributes) != len(expectedAttributes) {
		t.Errorf("Expected %d attributes, got %d", len(expectedAttributes), len(resp.Schema.Attributes))
	}

	if !resp.Schema.Attributes["bind_password"].IsSensitive() {
		t.Error("bind_password must be sensitive")
	}
}

// TestProviderResources tests that the provider is read-only.
func TestProviderResources(t *testing.T) {
	p := &this.AdLookupProvider{}

	if resources := p.Resources(t.Context()); len(resources) != 0 {
		t.Errorf("Expected 0 resources, got %d", len(resources))
	}
}

// TestProviderDataSources tests the provider data sources.
func TestProviderDataSources(t *testing.T) {
	p := &this.AdLookupProvider{}

	dataSources := p.DataSources(t.Context())

	expectedDataSources := []string{
		"adlookup_users",
		"adlookup_user",
		"adlookup_user_groups",
		"adlookup_connection",
		"adlookup_config_status",
		"adlookup_credential_formats",
	}

	if len(dataSources) != len(expectedDataSources) {
		t.Fatalf("Expected %d data sources, got %d", len(expectedDataSources), len(dataSources))
	}

	for i, dataSourceFunc := range dataSources {
		dataSource := dataSourceFunc()
		if dataSource == nil {
			t.Errorf("Data source function %d returned nil", i)
			continue
		}

		resp := &datasource.MetadataResponse{}
		dataSource.Metadata(t.Context(), datasource.MetadataRequest{ProviderTypeName: "adlookup"}, resp)
		if resp.TypeName != expectedDataSources[i] {
			t.Errorf("Expected data source %s, got %s", expectedDataSources[i], resp.TypeName)
		}

		if _, ok := dataSource.(datasource.DataSourceWithConfigure); !ok {
			t.Errorf("Data source %s does not accept provider data", resp.TypeName)
		}
	}
}

// TestProviderConfigValidators tests the provider config validators.
func TestProviderConfigValidators(t *testing.T) {
	p := &this.AdLookupProvider{}

	validators := p.ConfigValidators(t.Context())

	if len(validators) == 0 {
		t.Error("Expected config validators, got none")
	}

	for i, validator := range validators {
		if validator == nil {
			t.Errorf("Config validator %d is nil", i)
		}
	}
}

// TestProviderFunctions tests the provider functions.
func TestProviderFunctions(t *testing.T) {
	p := &this.AdLookupProvider{}

	functions := p.Functions(t.Context())

	expectedFunctions := []string{"credential_candidates", "user_search_filter"}
	if len(functions) != len(expectedFunctions) {
		t.Fatalf("Expected %d functions, got %d", len(expectedFunctions), len(functions))
	}

	for i, fnFactory := range functions {
		fn := fnFactory()
		if fn == nil {
			t.Fatal("Function factory returned nil")
		}

		resp := &function.MetadataResponse{}
		fn.Metadata(t.Context(), function.MetadataRequest{}, resp)
		if resp.Name != expectedFunctions[i] {
			t.Errorf("Expected function %s, got %s", expectedFunctions[i], resp.Name)
		}
	}
}

// TestProviderEphemeralResources tests the provider ephemeral resources.
func TestProviderEphemeralResources(t *testing.T) {
	p := &this.AdLookupProvider{}

	ephemeralResources := p.EphemeralResources(t.Context())

	if len(ephemeralResources) != 0 {
		t.Errorf("Expected 0 ephemeral resources, got %d", len(ephemeralResources))
	}
}

// TestNewProvider tests the New provider function.
func TestNewProvider(t *testing.T) {
	testCases := []struct {
		name    string
		version string
	}{
		{
			name:    "test version",
			version: "test",
		},
		{
			name:    "dev version",
			version: "dev",
		},
		{
			name:    "release version",
			version: "1.0.0",
		},
		{
			name:    "empty version",
			version: "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			providerFunc := this.New(tc.version)
			if providerFunc == nil {
				t.Fatal("New() returned nil")
			}

			p := providerFunc()
			if p == nil {
				t.Fatal("Provider function returned nil")
			}

			if _, ok := p.(*this.AdLookupProvider); !ok {
				t.Fatal("Provider is not of type *AdLookupProvider")
			}

			resp := &provider.MetadataResponse{}
			p.Metadata(t.Context(), provider.MetadataRequest{}, resp)
			if resp.Version != tc.version {
				t.Errorf("Expected version %s, got %s", tc.version, resp.Version)
			}
		})
	}
}

// TestProviderServer tests provider server creation.
func TestProviderServer(t *testing.T) {
	providerFunc := this.New("test")

	serverFactory := providerserver.NewProtocol6WithError(providerFunc())
	if serverFactory == nil {
		t.Fatal("Provider server factory is nil")
	}

	server, err := serverFactory()
	if err != nil {
		t.Fatalf("Failed to create provider server: %v", err)
	}

	if server == nil {
		t.Fatal("Provider server is nil")
	}
}

// TestProviderEnvironmentVariables tests that every attribute documents its environment variable.
func TestProviderEnvironmentVariables(t *testing.T) {
	p := &this.AdLookupProvider{}
	resp := &provider.SchemaResponse{}

	p.Schema(t.Context(), provider.SchemaRequest{}, resp)

	for name, attr := range resp.Schema.Attributes {
		envVar := "AD_" + strings.ToUpper(name)
		if !strings.Contains(attr.GetMarkdownDescription(), "`"+envVar+"`") {
			t.Errorf("Attribute %s does not document environment variable %s", name, envVar)
		}
	}
}
