package provider

import (
	"context"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"

	ldapclient "github.com/isometry/terraform-provider-adlookup/internal/ldap"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ datasource.DataSource = &UserGroupsDataSource{}

func NewUserGroupsDataSource() datasource.DataSource {
	return &UserGroupsDataSource{}
}

// UserGroupsDataSource defines the data source implementation.
type UserGroupsDataSource struct {
	directory ldapclient.Directory
}

// UserGroupsDataSourceModel describes the data source data model.
type UserGroupsDataSourceModel struct {
	ID         types.String `tfsdk:"id"`
	Username   types.String `tfsdk:"username"`
	Groups     types.List   `tfsdk:"groups"`
	GroupCount types.Int64  `tfsdk:"group_count"`
}

func (d *UserGroupsDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_user_groups"
}

func (d *UserGroupsDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Lists the common names of the groups a user is a direct member of, read from `memberOf`. " +
			"Nested membership is not expanded. An unknown user, a schema without `memberOf` and lookup " +
			"failures all yield an empty list.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				MarkdownDescription: "Same as `username`.",
				Computed:            true,
			},
			"username": schema.StringAttribute{
				MarkdownDescription: "Account name of the user.",
				Required:            true,
				Validators: []validator.String{
					stringvalidator.LengthAtLeast(1),
				},
			},
			"groups": schema.ListAttribute{
				MarkdownDescription: "Group common names in the order the directory returned them.",
				ElementType:         types.StringType,
				Computed:            true,
			},
			"group_count": schema.Int64Attribute{
				MarkdownDescription: "Number of groups returned.",
				Computed:            true,
			},
		},
	}
}

func (d *UserGroupsDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	if directory, ok := configureDirectory(req, resp); ok {
		d.directory = directory
	}
}

func (d *UserGroupsDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data UserGroupsDataSourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	username := strings.TrimSpace(data.Username.ValueString())

	logCompletion := ldapclient.LogDataSourceOperation(ctx, "adlookup_user_groups", "read", map[string]any{
		"username": username,
	})
	defer logReadCompletion(logCompletion, &resp.Diagnostics)()

	if d.directory == nil {
		missingDirectory(&resp.Diagnostics)
		return
	}

	groups := d.directory.GetUserGroups(ctx, username)

	data.Groups = stringsToList(ctx, groups, &resp.Diagnostics)
	if resp.Diagnostics.HasError() {
		return
	}
	data.GroupCount = types.Int64Value(int64(len(groups)))
	data.ID = types.StringValue(username)

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}
