package provider

import (
	"context"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	ldapclient "github.com/isometry/terraform-provider-adlookup/internal/ldap"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ datasource.DataSource = &UserDataSource{}

func NewUserDataSource() datasource.DataSource {
	return &UserDataSource{}
}

// UserDataSource defines the data source implementation.
type UserDataSource struct {
	directory ldapclient.Directory
}

// UserDataSourceModel describes the data source data model.
type UserDataSourceModel struct {
	ID            types.String `tfsdk:"id"`
	Username      types.String `tfsdk:"username"`
	IncludeGroups types.Bool   `tfsdk:"include_groups"`
	Found         types.Bool   `tfsdk:"found"`

	DisplayName types.String `tfsdk:"display_name"`
	FirstName   types.String `tfsdk:"first_name"`
	LastName    types.String `tfsdk:"last_name"`
	Email       types.String `tfsdk:"email"`
	Department  types.String `tfsdk:"department"`
	Title       types.String `tfsdk:"title"`
	Phone       types.String `tfsdk:"phone"`
	Mobile      types.String `tfsdk:"mobile"`
	Office      types.String `tfsdk:"office"`
	Company     types.String `tfsdk:"company"`
	Manager     types.String `tfsdk:"manager"`
	EmployeeID  types.String `tfsdk:"employee_id"`
	CreatedDate types.String `tfsdk:"created_date"`
	LastLogon   types.String `tfsdk:"last_logon"`
	DN          types.String `tfsdk:"dn"`
	ObjectGUID  types.String `tfsdk:"object_guid"`
	ObjectSID   types.String `tfsdk:"object_sid"`
	Groups      types.List   `tfsdk:"groups"`
}

func (d *UserDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_user"
}

func (d *UserDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	attributes := userRecordAttributes()

	attributes["id"] = schema.StringAttribute{
		MarkdownDescription: "Distinguished Name of the user, or the requested username when not found.",
		Computed:            true,
	}
	attributes["username"] = schema.StringAttribute{
		MarkdownDescription: "Username to look up. Matched exactly, ignoring case.",
		Required:            true,
		Validators: []validator.String{
			stringvalidator.LengthAtLeast(1),
		},
	}
	attributes["include_groups"] = schema.BoolAttribute{
		MarkdownDescription: "Also resolve the common names of the groups the user is a direct member of. Defaults to `false`.",
		Optional:            true,
	}
	attributes["found"] = schema.BoolAttribute{
		MarkdownDescription: "Whether a user with exactly this username exists. " +
			"Lookup failures are logged and reported as not found.",
		Computed: true,
	}
	attributes["groups"] = schema.ListAttribute{
		MarkdownDescription: "Group common names, set when `include_groups` is `true`.",
		ElementType:         types.StringType,
		Computed:            true,
	}

	resp.Schema = schema.Schema{
		MarkdownDescription: "Retrieves a single Active Directory user by exact username.",
		Attributes:          attributes,
	}
}

func (d *UserDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	if directory, ok := configureDirectory(req, resp); ok {
		d.directory = directory
	}
}

func (d *UserDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data UserDataSourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	username := strings.TrimSpace(data.Username.ValueString())

	logCompletion := ldapclient.LogDataSourceOperation(ctx, "adlookup_user", "read", map[string]any{
		"username": username,
	})
	defer logReadCompletion(logCompletion, &resp.Diagnostics)()

	if d.directory == nil {
		missingDirectory(&resp.Diagnostics)
		return
	}

	record, found := d.directory.GetUserByUsername(ctx, username)
	data.Found = types.BoolValue(found)

	if !found {
		tflog.Debug(ctx, "User not found", map[string]any{
			"username": username,
		})
		data.ID = types.StringValue(username)
		data.setRecord(ldapclient.UserRecord{})
		data.Groups = types.ListNull(types.StringType)
		resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
		return
	}

	data.ID = types.StringValue(record.DistinguishedName)
	data.setRecord(*record)

	if data.IncludeGroups.ValueBool() {
		data.Groups = stringsToList(ctx, d.directory.GetUserGroups(ctx, username), &resp.Diagnostics)
		if resp.Diagnostics.HasError() {
			return
		}
	} else {
		data.Groups = types.ListNull(types.StringType)
	}

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

// setRecord copies the record fields into the model. The username stays as
// configured so state matches the plan. An empty record nulls every field.
func (m *UserDataSourceModel) setRecord(record ldapclient.UserRecord) {
	values := userRecordValues(record)
	str := func(name string) types.String {
		return values[name].(types.String)
	}

	m.DisplayName = str("display_name")
	m.FirstName = str("first_name")
	m.LastName = str("last_name")
	m.Email = str("email")
	m.Department = str("department")
	m.Title = str("title")
	m.Phone = str("phone")
	m.Mobile = str("mobile")
	m.Office = str("office")
	m.Company = str("company")
	m.Manager = str("manager")
	m.EmployeeID = str("employee_id")
	m.CreatedDate = str("created_date")
	m.LastLogon = str("last_logon")
	m.DN = str("dn")
	m.ObjectGUID = str("object_guid")
	m.ObjectSID = str("object_sid")
}
