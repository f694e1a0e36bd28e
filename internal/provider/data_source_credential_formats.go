package provider

import (
	"context"
	"fmt"

	"github.com/hashicorp/terraform-plugin-framework/attr"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	ldapclient "github.com/isometry/terraform-provider-adlookup/internal/ldap"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ datasource.DataSource = &CredentialFormatsDataSource{}

var credentialTrialAttrTypes = map[string]attr.Type{
	"name":     types.StringType,
	"identity": types.StringType,
	"outcome":  types.StringType,
	"message":  types.StringType,
}

func NewCredentialFormatsDataSource() datasource.DataSource {
	return &CredentialFormatsDataSource{}
}

// CredentialFormatsDataSource defines the data source implementation.
type CredentialFormatsDataSource struct {
	directory ldapclient.Directory
}

// CredentialFormatsDataSourceModel describes the data source data model.
type CredentialFormatsDataSourceModel struct {
	ID       types.String `tfsdk:"id"`
	Trials   types.List   `tfsdk:"trials"`
	Accepted types.List   `tfsdk:"accepted"`
}

func (d *CredentialFormatsDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_credential_formats"
}

func (d *CredentialFormatsDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Presents every candidate form of the service account identity to the directory and reports " +
			"how each was answered. Useful when working out which form a domain accepts. Each candidate is tried " +
			"once, so an account with a low lockout threshold may be affected.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				MarkdownDescription: "Identifier for this probe.",
				Computed:            true,
			},
			"trials": schema.ListNestedAttribute{
				MarkdownDescription: "One entry per candidate, in the order they were tried.",
				Computed:            true,
				NestedObject: schema.NestedAttributeObject{
					Attributes: map[string]schema.Attribute{
						"name": schema.StringAttribute{
							MarkdownDescription: "Candidate name, e.g. `upn_derived`.",
							Computed:            true,
						},
						"identity": schema.StringAttribute{
							MarkdownDescription: "Identity presented to the directory.",
							Computed:            true,
						},
						"outcome": schema.StringAttribute{
							MarkdownDescription: "One of `accepted`, `invalid_credentials`, `invalid_dn_syntax`, " +
								"`no_such_object`, `skipped` or `error`.",
							Computed: true,
						},
						"message": schema.StringAttribute{
							MarkdownDescription: "Server or client message for the attempt.",
							Computed:            true,
						},
					},
				},
			},
			"accepted": schema.ListAttribute{
				MarkdownDescription: "Identities the directory accepted.",
				ElementType:         types.StringType,
				Computed:            true,
			},
		},
	}
}

func (d *CredentialFormatsDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	if directory, ok := configureDirectory(req, resp); ok {
		d.directory = directory
	}
}

func (d *CredentialFormatsDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data CredentialFormatsDataSourceModel

	ctx = initializeLogging(ctx)

	logCompletion := ldapclient.LogDataSourceOperation(ctx, "adlookup_credential_formats", "read", nil)
	defer logReadCompletion(logCompletion, &resp.Diagnostics)()

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	if d.directory == nil {
		missingDirectory(&resp.Diagnostics)
		return
	}

	trials, err := d.directory.ProbeCredentialFormats(ctx)
	if err != nil {
		resp.Diagnostics.AddError(
			"Error Probing Credential Formats",
			fmt.Sprintf("Could not probe credential formats (%s): %s", ldapclient.ErrorKind(err), err.Error()),
		)
		return
	}

	trialObjectType := types.ObjectType{AttrTypes: credentialTrialAttrTypes}
	elements := make([]attr.Value, 0, len(trials))
	accepted := []string{}
	for _, trial := range trials {
		obj, diags := types.ObjectValue(credentialTrialAttrTypes, map[string]attr.Value{
			"name":     types.StringValue(trial.Name),
			"identity": types.StringValue(trial.Identity),
			"outcome":  types.StringValue(string(trial.Outcome)),
			"message":  stringOrNull(trial.Message),
		})
		resp.Diagnostics.Append(diags...)
		if resp.Diagnostics.HasError() {
			return
		}
		elements = append(elements, obj)

		if trial.Outcome == ldapclient.TrialAccepted {
			accepted = append(accepted, trial.Identity)
		}
	}

	tflog.Debug(ctx, "Credential format probe completed", map[string]any{
		"trial_count":    len(trials),
		"accepted_count": len(accepted),
	})

	list, diags := types.ListValue(trialObjectType, elements)
	resp.Diagnostics.Append(diags...)
	data.Trials = list
	data.Accepted = stringsToList(ctx, accepted, &resp.Diagnostics)
	if resp.Diagnostics.HasError() {
		return
	}
	data.ID = types.StringValue("credential_formats")

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}
