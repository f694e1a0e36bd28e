package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/terraform-plugin-framework/attr"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/types"

	ldapclient "github.com/isometry/terraform-provider-adlookup/internal/ldap"
)

// userAttrTypes is the object type of one user record in state.
var userAttrTypes = map[string]attr.Type{
	"username":     types.StringType,
	"display_name": types.StringType,
	"first_name":   types.StringType,
	"last_name":    types.StringType,
	"email":        types.StringType,
	"department":   types.StringType,
	"title":        types.StringType,
	"phone":        types.StringType,
	"mobile":       types.StringType,
	"office":       types.StringType,
	"company":      types.StringType,
	"manager":      types.StringType,
	"employee_id":  types.StringType,
	"created_date": types.StringType,
	"last_logon":   types.StringType,
	"dn":           types.StringType,
	"object_guid":  types.StringType,
	"object_sid":   types.StringType,
}

// userRecordAttributes returns the schema attributes describing a user
// record, all computed. Nested list items and the single user data source
// share them.
func userRecordAttributes() map[string]schema.Attribute {
	computed := func(description string) schema.StringAttribute {
		return schema.StringAttribute{
			MarkdownDescription: description,
			Computed:            true,
		}
	}

	return map[string]schema.Attribute{
		"username":     computed("Account name (`sAMAccountName`, falling back to `cn` or `name`)."),
		"display_name": computed("Display name, falling back to the common name or username."),
		"first_name":   computed("Given name."),
		"last_name":    computed("Surname."),
		"email":        computed("Email address, falling back to the user principal name."),
		"department":   computed("Department."),
		"title":        computed("Job title."),
		"phone":        computed("Telephone number."),
		"mobile":       computed("Mobile number."),
		"office":       computed("Physical delivery office name."),
		"company":      computed("Company."),
		"manager":      computed("Distinguished Name of the manager."),
		"employee_id":  computed("Employee ID, falling back to the employee number."),
		"created_date": computed("Creation time in RFC 3339 format."),
		"last_logon":   computed("Last logon time in RFC 3339 format. Null when the user has never logged on."),
		"dn":           computed("Distinguished Name of the user entry."),
		"object_guid":  computed("Object GUID in canonical string form."),
		"object_sid":   computed("Object SID in `S-1-...` form."),
	}
}

// stringOrNull maps the empty string to a null value.
func stringOrNull(s string) types.String {
	if s == "" {
		return types.StringNull()
	}
	return types.StringValue(s)
}

func timeOrNull(t *time.Time) types.String {
	if t == nil {
		return types.StringNull()
	}
	return types.StringValue(t.UTC().Format(time.RFC3339))
}

// userRecordValues converts a record to attribute values keyed like userAttrTypes.
func userRecordValues(record ldapclient.UserRecord) map[string]attr.Value {
	return map[string]attr.Value{
		"username":     stringOrNull(record.Username),
		"display_name": stringOrNull(record.DisplayName),
		"first_name":   stringOrNull(record.FirstName),
		"last_name":    stringOrNull(record.LastName),
		"email":        stringOrNull(record.Email),
		"department":   stringOrNull(record.Department),
		"title":        stringOrNull(record.Title),
		"phone":        stringOrNull(record.Phone),
		"mobile":       stringOrNull(record.Mobile),
		"office":       stringOrNull(record.Office),
		"company":      stringOrNull(record.Company),
		"manager":      stringOrNull(record.Manager),
		"employee_id":  stringOrNull(record.EmployeeID),
		"created_date": timeOrNull(record.CreatedDate),
		"last_logon":   timeOrNull(record.LastLogon),
		"dn":           stringOrNull(record.DistinguishedName),
		"object_guid":  stringOrNull(record.ObjectGUID),
		"object_sid":   stringOrNull(record.ObjectSID),
	}
}

// userRecordsToList converts records to a list of user objects, preserving order.
func userRecordsToList(records []ldapclient.UserRecord, diags *diag.Diagnostics) types.List {
	userObjectType := types.ObjectType{AttrTypes: userAttrTypes}

	elements := make([]attr.Value, 0, len(records))
	for _, record := range records {
		obj, objDiags := types.ObjectValue(userAttrTypes, userRecordValues(record))
		diags.Append(objDiags...)
		if objDiags.HasError() {
			return types.ListNull(userObjectType)
		}
		elements = append(elements, obj)
	}

	list, listDiags := types.ListValue(userObjectType, elements)
	diags.Append(listDiags...)
	return list
}

// stringsToList converts names to a list of strings. A nil slice yields an
// empty list so state never holds null for a completed lookup.
func stringsToList(ctx context.Context, values []string, diags *diag.Diagnostics) types.List {
	if values == nil {
		values = []string{}
	}
	list, listDiags := types.ListValueFrom(ctx, types.StringType, values)
	diags.Append(listDiags...)
	return list
}

// configureDirectory extracts the directory client handed over by the provider.
func configureDirectory(req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) (ldapclient.Directory, bool) {
	// Prevent panic if the provider has not been configured.
	if req.ProviderData == nil {
		return nil, false
	}

	directory, ok := req.ProviderData.(ldapclient.Directory)
	if !ok {
		resp.Diagnostics.AddError(
			"Unexpected Data Source Configure Type",
			fmt.Sprintf("Expected ldapclient.Directory, got: %T. Please report this issue to the provider developers.", req.ProviderData),
		)
		return nil, false
	}

	return directory, true
}

// missingDirectory reports a read attempted before the provider was configured.
func missingDirectory(diags *diag.Diagnostics) {
	diags.AddError(
		"Unconfigured Directory Client",
		"The data source was read before the provider was configured. "+
			"Please report this issue to the provider developers.",
	)
}

// logReadCompletion returns a deferred logger that reports the first error
// diagnostic, if any.
func logReadCompletion(logCompletion func(error), diags *diag.Diagnostics) func() {
	return func() {
		var err error
		for _, d := range diags.Errors() {
			err = fmt.Errorf("%s: %s", d.Summary(), d.Detail())
			break
		}
		logCompletion(err)
	}
}
