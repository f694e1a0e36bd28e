package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework-validators/int64validator"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	ldapclient "github.com/isometry/terraform-provider-adlookup/internal/ldap"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ datasource.DataSource = &UsersDataSource{}

func NewUsersDataSource() datasource.DataSource {
	return &UsersDataSource{}
}

// UsersDataSource defines the data source implementation.
type UsersDataSource struct {
	directory ldapclient.Directory
}

// UsersDataSourceModel describes the data source data model.
type UsersDataSourceModel struct {
	ID         types.String `tfsdk:"id"`
	SearchTerm types.String `tfsdk:"search_term"`
	MaxResults types.Int64  `tfsdk:"max_results"`
	Users      types.List   `tfsdk:"users"`
	UserCount  types.Int64  `tfsdk:"user_count"`
}

func (d *UsersDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_users"
}

func (d *UsersDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Searches Active Directory for user accounts whose name, display name, account name, " +
			"email or given name contains the search term. Only attributes the directory schema exposes are searched " +
			"and returned. Lookup failures are logged and yield an empty result.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				MarkdownDescription: "Identifier for this search.",
				Computed:            true,
			},
			"search_term": schema.StringAttribute{
				MarkdownDescription: "Substring to match. Omit or leave empty to list every user up to `max_results`.",
				Optional:            true,
			},
			"max_results": schema.Int64Attribute{
				MarkdownDescription: "Maximum number of users to return. Defaults to the provider's `max_results`.",
				Optional:            true,
				Validators: []validator.Int64{
					int64validator.AtLeast(1),
				},
			},
			"users": schema.ListNestedAttribute{
				MarkdownDescription: "Matching users in the order the directory returned them.",
				Computed:            true,
				NestedObject: schema.NestedAttributeObject{
					Attributes: userRecordAttributes(),
				},
			},
			"user_count": schema.Int64Attribute{
				MarkdownDescription: "Number of users returned.",
				Computed:            true,
			},
		},
	}
}

func (d *UsersDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	if directory, ok := configureDirectory(req, resp); ok {
		d.directory = directory
	}
}

func (d *UsersDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data UsersDataSourceModel

	ctx = initializeLogging(ctx)

	logCompletion := ldapclient.LogDataSourceOperation(ctx, "adlookup_users", "read", nil)
	defer logReadCompletion(logCompletion, &resp.Diagnostics)()

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	if d.directory == nil {
		missingDirectory(&resp.Diagnostics)
		return
	}

	term := strings.TrimSpace(data.SearchTerm.ValueString())
	maxResults := 0
	if !data.MaxResults.IsNull() && !data.MaxResults.IsUnknown() {
		maxResults = int(data.MaxResults.ValueInt64())
	}

	tflog.Debug(ctx, "Searching for AD users", map[string]any{
		"search_term": term,
		"max_results": maxResults,
	})

	users := d.directory.SearchUsers(ctx, term, maxResults)

	tflog.Debug(ctx, "User search returned", map[string]any{
		"user_count": len(users),
	})

	data.Users = userRecordsToList(users, &resp.Diagnostics)
	if resp.Diagnostics.HasError() {
		return
	}

	data.UserCount = types.Int64Value(int64(len(users)))
	data.ID = types.StringValue(fmt.Sprintf("users-search-%s", term))

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}
