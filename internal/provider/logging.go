package provider

import (
	"context"

	"github.com/hashicorp/terraform-plugin-log/tflog"

	ldapclient "github.com/isometry/terraform-provider-adlookup/internal/ldap"
)

// initializeLogging creates the provider and ldap subsystems on ctx.
// Call it at the beginning of each data source Read method.
func initializeLogging(ctx context.Context) context.Context {
	// Pattern: TF_LOG_PROVIDER_ADLOOKUP_<SUBSYSTEM>
	ctx = tflog.NewSubsystem(ctx, ldapclient.SubsystemProvider,
		tflog.WithLevelFromEnv("TF_LOG_PROVIDER_ADLOOKUP_PROVIDER"))
	return tflog.NewSubsystem(ctx, ldapclient.SubsystemLDAP,
		tflog.WithLevelFromEnv("TF_LOG_PROVIDER_ADLOOKUP_LDAP"))
}
