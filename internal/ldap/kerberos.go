package ldap

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/go-ldap/ldap/v3/gssapi"
	krb5client "github.com/jcmturner/gokrb5/v8/client"
)

// GSSAPIClientFactory builds a Kerberos client for one principal.
type GSSAPIClientFactory func(principal, realm, password, krb5conf string) (ldap.GSSAPIClient, error)

// NewPasswordGSSAPIClient authenticates principal@realm with a password using
// the given krb5.conf.
func NewPasswordGSSAPIClient(principal, realm, password, krb5conf string) (ldap.GSSAPIClient, error) {
	if !fileExists(krb5conf) {
		return nil, fmt.Errorf("Kerberos configuration file not found at %s. "+
			"Create it or set kerberos_config. Example minimal configuration:\n%s",
			krb5conf, exampleKrb5Conf(realm))
	}

	return gssapi.NewClientWithPassword(principal, realm, password, krb5conf, krb5client.DisablePAFXFAST(true))
}

// kerberosBind performs a GSSAPI bind as principal on conn.
func kerberosBind(ctx context.Context, conn Conn, cfg *DirectoryConfig, factory GSSAPIClientFactory, principal string) error {
	realm := cfg.Realm()
	if user, principalRealm, ok := strings.Cut(principal, "@"); ok {
		principal = user
		realm = strings.ToUpper(principalRealm)
	}
	if realm == "" {
		return fmt.Errorf("kerberos realm is required (set kerberos_realm or a base DN with DC components)")
	}

	client, err := factory(principal, realm, cfg.BindPassword, cfg.KerberosConfig)
	if err != nil {
		return fmt.Errorf("failed to create GSSAPI client: %w", err)
	}
	defer func() {
		_ = client.DeleteSecContext()
	}()

	spn := servicePrincipal(cfg.Host)
	LogConnectionEvent(ctx, "kerberos_bind_attempt", map[string]any{
		"principal": principal + "@" + realm,
		"spn":       spn,
	})

	if err := conn.GSSAPIBind(client, spn, ""); err != nil {
		return fmt.Errorf("GSSAPI bind failed: %w", err)
	}
	return nil
}

// servicePrincipal builds the LDAP SPN for host, dropping any port.
func servicePrincipal(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return "ldap/" + host
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func exampleKrb5Conf(realm string) string {
	if realm == "" {
		realm = "YOUR.REALM.COM"
	}
	kdc := "dc." + strings.ToLower(realm)

	return fmt.Sprintf(`[libdefaults]
    default_realm = %s
    dns_lookup_realm = false
    dns_lookup_kdc = false

[realms]
    %s = {
        kdc = %s:88
    }`, realm, realm, kdc)
}
