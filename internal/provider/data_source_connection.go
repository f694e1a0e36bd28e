package provider

import (
	"context"

	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	ldapclient "github.com/isometry/terraform-provider-adlookup/internal/ldap"
	"github.com/isometry/terraform-provider-adlookup/internal/provider/helpers"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ datasource.DataSource = &ConnectionDataSource{}

func NewConnectionDataSource() datasource.DataSource {
	return &ConnectionDataSource{}
}

// ConnectionDataSource defines the data source implementation.
type ConnectionDataSource struct {
	directory ldapclient.Directory
}

// ConnectionDataSourceModel describes the data source data model.
type ConnectionDataSourceModel struct {
	ID                      types.String  `tfsdk:"id"`
	Success                 types.Bool    `tfsdk:"success"`
	Message                 types.String  `tfsdk:"message"`
	Error                   types.String  `tfsdk:"error"`
	ErrorKind               types.String  `tfsdk:"error_kind"`
	WorkingCredential       types.String  `tfsdk:"working_credential"`
	AvailableAttributeCount types.Int64   `tfsdk:"available_attribute_count"`
	Config                  types.Dynamic `tfsdk:"config"`
}

func (d *ConnectionDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_connection"
}

func (d *ConnectionDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Tests the directory connection: validates the provider configuration, negotiates a working " +
			"service account identity, probes the available user attributes and releases the connection. " +
			"Failures are reported in `error` rather than failing the plan, so the result can be inspected.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				MarkdownDescription: "Identifier for this test.",
				Computed:            true,
			},
			"success": schema.BoolAttribute{
				MarkdownDescription: "Whether the connection, bind and attribute probe all succeeded.",
				Computed:            true,
			},
			"message": schema.StringAttribute{
				MarkdownDescription: "Summary naming the identity that was accepted, set on success.",
				Computed:            true,
			},
			"error": schema.StringAttribute{
				MarkdownDescription: "Failure description, set when `success` is `false`.",
				Computed:            true,
			},
			"error_kind": schema.StringAttribute{
				MarkdownDescription: "Failure class: `configuration`, `no_working_credential`, `connection` or `unknown`.",
				Computed:            true,
			},
			"working_credential": schema.StringAttribute{
				MarkdownDescription: "Identity form the directory accepted for the service account.",
				Computed:            true,
			},
			"available_attribute_count": schema.Int64Attribute{
				MarkdownDescription: "Number of user attributes the directory schema exposes.",
				Computed:            true,
			},
			"config": schema.DynamicAttribute{
				MarkdownDescription: "Effective configuration. The bind password is never included.",
				Computed:            true,
			},
		},
	}
}

func (d *ConnectionDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	if directory, ok := configureDirectory(req, resp); ok {
		d.directory = directory
	}
}

func (d *ConnectionDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data ConnectionDataSourceModel

	ctx = initializeLogging(ctx)

	logCompletion := ldapclient.LogDataSourceOperation(ctx, "adlookup_connection", "read", nil)
	defer logReadCompletion(logCompletion, &resp.Diagnostics)()

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	if d.directory == nil {
		missingDirectory(&resp.Diagnostics)
		return
	}

	result := d.directory.TestConnection(ctx)

	if !result.Success {
		tflog.Warn(ctx, "Directory connection test failed", map[string]any{
			"error":      result.Error,
			"error_kind": result.ErrorKind,
		})
	}

	data.ID = types.StringValue("connection")
	data.Success = types.BoolValue(result.Success)
	data.Message = stringOrNull(result.Message)
	data.Error = stringOrNull(result.Error)
	data.ErrorKind = stringOrNull(result.ErrorKind)
	data.WorkingCredential = stringOrNull(result.WorkingCredential)
	data.AvailableAttributeCount = types.Int64Value(int64(result.AvailableAttributeCount))
	data.Config = dynamicFromFields(ctx, result.Config, &resp.Diagnostics)
	if resp.Diagnostics.HasError() {
		return
	}

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

// dynamicFromFields converts sanitized configuration fields to an object value.
func dynamicFromFields(ctx context.Context, fields map[string]any, diags *diag.Diagnostics) types.Dynamic {
	if fields == nil {
		return types.DynamicNull()
	}

	value, err := helpers.GoValueToTerraform(ctx, fields)
	if err != nil {
		diags.AddError(
			"Error Converting Configuration",
			"Could not convert the directory configuration to a Terraform value: "+err.Error(),
		)
		return types.DynamicNull()
	}
	return types.DynamicValue(value)
}
