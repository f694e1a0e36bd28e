package provider

import (
	"context"

	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/types"

	ldapclient "github.com/isometry/terraform-provider-adlookup/internal/ldap"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ datasource.DataSource = &ConfigStatusDataSource{}

func NewConfigStatusDataSource() datasource.DataSource {
	return &ConfigStatusDataSource{}
}

// ConfigStatusDataSource defines the data source implementation.
type ConfigStatusDataSource struct {
	directory ldapclient.Directory
}

// ConfigStatusDataSourceModel describes the data source data model.
type ConfigStatusDataSourceModel struct {
	ID            types.String  `tfsdk:"id"`
	Valid         types.Bool    `tfsdk:"valid"`
	MissingFields types.List    `tfsdk:"missing_fields"`
	Error         types.String  `tfsdk:"error"`
	Config        types.Dynamic `tfsdk:"config"`
}

func (d *ConfigStatusDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_config_status"
}

func (d *ConfigStatusDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Reports whether the provider configuration is complete. No connection is made.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				MarkdownDescription: "Identifier for this status.",
				Computed:            true,
			},
			"valid": schema.BoolAttribute{
				MarkdownDescription: "Whether every required setting is present.",
				Computed:            true,
			},
			"missing_fields": schema.ListAttribute{
				MarkdownDescription: "Environment variable names of the missing required settings, e.g. `AD_BIND_PASSWORD`.",
				ElementType:         types.StringType,
				Computed:            true,
			},
			"error": schema.StringAttribute{
				MarkdownDescription: "Validation error, set when `valid` is `false`.",
				Computed:            true,
			},
			"config": schema.DynamicAttribute{
				MarkdownDescription: "Effective configuration, set when `valid` is `true`. The bind password is never included.",
				Computed:            true,
			},
		},
	}
}

func (d *ConfigStatusDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	if directory, ok := configureDirectory(req, resp); ok {
		d.directory = directory
	}
}

func (d *ConfigStatusDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data ConfigStatusDataSourceModel

	ctx = initializeLogging(ctx)

	logCompletion := ldapclient.LogDataSourceOperation(ctx, "adlookup_config_status", "read", nil)
	defer logReadCompletion(logCompletion, &resp.Diagnostics)()

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	if d.directory == nil {
		missingDirectory(&resp.Diagnostics)
		return
	}

	status := d.directory.GetConfigStatus()

	data.ID = types.StringValue("config_status")
	data.Valid = types.BoolValue(status.Valid)
	data.Error = stringOrNull(status.Error)
	data.MissingFields = stringsToList(ctx, status.MissingFields, &resp.Diagnostics)
	data.Config = dynamicFromFields(ctx, status.Fields, &resp.Diagnostics)
	if resp.Diagnostics.HasError() {
		return
	}

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}
