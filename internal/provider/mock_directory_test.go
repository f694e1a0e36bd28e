package provider

import (
	"context"
	"testing"

	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/tfsdk"
	"github.com/hashicorp/terraform-plugin-go/tftypes"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	ldapclient "github.com/isometry/terraform-provider-adlookup/internal/ldap"
)

// mockDirectory is a testify mock of ldapclient.Directory.
type mockDirectory struct {
	mock.Mock
}

var _ ldapclient.Directory = (*mockDirectory)(nil)

func (m *mockDirectory) SearchUsers(ctx context.Context, term string, maxResults int) []ldapclient.UserRecord {
	args := m.Called(ctx, term, maxResults)
	return args.Get(0).([]ldapclient.UserRecord)
}

func (m *mockDirectory) GetUserByUsername(ctx context.Context, username string) (*ldapclient.UserRecord, bool) {
	args := m.Called(ctx, username)
	record, _ := args.Get(0).(*ldapclient.UserRecord)
	return record, args.Bool(1)
}

func (m *mockDirectory) GetUserGroups(ctx context.Context, username string) []string {
	args := m.Called(ctx, username)
	return args.Get(0).([]string)
}

func (m *mockDirectory) TestConnection(ctx context.Context) ldapclient.ConnectionTestResult {
	args := m.Called(ctx)
	return args.Get(0).(ldapclient.ConnectionTestResult)
}

func (m *mockDirectory) GetConfigStatus() ldapclient.ConfigStatus {
	args := m.Called()
	return args.Get(0).(ldapclient.ConfigStatus)
}

func (m *mockDirectory) ProbeCredentialFormats(ctx context.Context) ([]ldapclient.CredentialTrial, error) {
	args := m.Called(ctx)
	trials, _ := args.Get(0).([]ldapclient.CredentialTrial)
	return trials, args.Error(1)
}

func (m *mockDirectory) ResetCaches() {
	m.Called()
}

// readDataSource configures ds with directory and reads it with the given
// attributes set and every other attribute null.
func readDataSource(t *testing.T, ds datasource.DataSource, directory any, values map[string]tftypes.Value) *datasource.ReadResponse {
	t.Helper()
	ctx := t.Context()

	schemaResp := &datasource.SchemaResponse{}
	ds.Schema(ctx, datasource.SchemaRequest{}, schemaResp)
	require.False(t, schemaResp.Diagnostics.HasError(), "%v", schemaResp.Diagnostics)

	configureResp := &datasource.ConfigureResponse{}
	ds.(datasource.DataSourceWithConfigure).Configure(ctx, datasource.ConfigureRequest{ProviderData: directory}, configureResp)
	require.False(t, configureResp.Diagnostics.HasError(), "%v", configureResp.Diagnostics)

	objectType, ok := schemaResp.Schema.Type().TerraformType(ctx).(tftypes.Object)
	require.True(t, ok)

	attrs := make(map[string]tftypes.Value, len(objectType.AttributeTypes))
	for name, typ := range objectType.AttributeTypes {
		if v, ok := values[name]; ok {
			attrs[name] = v
		} else {
			attrs[name] = tftypes.NewValue(typ, nil)
		}
	}

	req := datasource.ReadRequest{
		Config: tfsdk.Config{Schema: schemaResp.Schema, Raw: tftypes.NewValue(objectType, attrs)},
	}
	resp := &datasource.ReadResponse{
		State: tfsdk.State{Schema: schemaResp.Schema, Raw: tftypes.NewValue(objectType, nil)},
	}
	ds.Read(ctx, req, resp)
	return resp
}
