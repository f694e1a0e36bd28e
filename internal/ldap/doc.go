/*
Package ldap provides read-only Active Directory user lookups for the adlookup provider.

The server's accepted bind identity format and its retrievable attribute set
are not known in advance. The client discovers both on first use and caches
them for its lifetime.

# Architecture Overview

  - DirectoryConfig: connection parameters, loaded from AD_* variables
  - CredentialNegotiator: finds the identity encoding the server accepts
  - SchemaProber: finds which user attributes the server returns
  - DirectoryClient: searches users and groups using confirmed attributes only
  - MapEntry: turns a sparse entry into a UserRecord

# Credential Negotiation

Starting from the configured bind user, candidates are tried in order:

  - localPart@domain, with the domain taken from the base DN
  - the bind user as configured
  - localPart without the service account prefix, @domain
  - NETBIOS\localPart
  - localPart
  - CN=localPart,CN=Users,<base DN>
  - CN=localPart,OU=Service Accounts,<base DN>

The first identity that binds is cached and used for every later connection.
If every candidate is rejected, nothing is cached and the next call starts over.

# Error Handling

Diagnostic operations (TestConnection, GetConfigStatus, ProbeCredentialFormats)
report ConfigurationError, NoWorkingCredentialError and ConnectionError to the
caller. Read operations (SearchUsers, GetUserGroups, GetUserByUsername) log the
failure and return an empty result.

# Thread Safety

DirectoryClient is safe for concurrent use. Each operation opens its own
connection and releases it before returning; no lock is held during I/O.

# Example Usage

	cfg, err := ldap.LoadConfigFromEnv(nil)
	if err != nil {
		return err
	}
	client := ldap.NewDirectoryClient(cfg)

	if result := client.TestConnection(ctx); !result.Success {
		return errors.New(result.Error)
	}

	for _, user := range client.SearchUsers(ctx, "smith", 50) {
		fmt.Println(user.Username, user.Email)
	}
*/
package ldap
