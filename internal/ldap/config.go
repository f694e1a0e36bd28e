package ldap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
)

// Environment variables read by LoadConfigFromEnv.
const (
	EnvServerHost           = "AD_SERVER_HOST"
	EnvServerPort           = "AD_SERVER_PORT"
	EnvUseSSL               = "AD_USE_SSL"
	EnvStartTLS             = "AD_START_TLS"
	EnvSkipTLSVerify        = "AD_SKIP_TLS_VERIFY"
	EnvBaseDN               = "AD_BASE_DN"
	EnvBindUser             = "AD_BIND_USER"
	EnvBindPassword         = "AD_BIND_PASSWORD"
	EnvUserSearchBase       = "AD_USER_SEARCH_BASE"
	EnvBindMethod           = "AD_BIND_METHOD"
	EnvConnectTimeout       = "AD_CONNECT_TIMEOUT"
	EnvServiceAccountPrefix = "AD_SERVICE_ACCOUNT_PREFIX"
	EnvKerberosRealm        = "AD_KERBEROS_REALM"
	EnvKerberosConfig       = "AD_KERBEROS_CONFIG"
	EnvMaxResults           = "AD_MAX_RESULTS"
)

// DefaultMaxResults caps user searches when the caller passes no limit.
const DefaultMaxResults = 100

// BindMethod selects how a candidate identity is presented to the server.
type BindMethod string

const (
	BindMethodSimple   BindMethod = "simple"
	BindMethodNTLM     BindMethod = "ntlm"
	BindMethodKerberos BindMethod = "kerberos"
)

// SupportedBindMethods returns the accepted bind method names.
func SupportedBindMethods() []string {
	return []string{string(BindMethodSimple), string(BindMethodNTLM), string(BindMethodKerberos)}
}

// ParseBindMethod parses a bind method name, ignoring case and surrounding space.
// An empty value selects simple bind.
func ParseBindMethod(s string) (BindMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(BindMethodSimple):
		return BindMethodSimple, nil
	case string(BindMethodNTLM):
		return BindMethodNTLM, nil
	case string(BindMethodKerberos):
		return BindMethodKerberos, nil
	default:
		return "", fmt.Errorf("unsupported bind method %q: must be one of %s", s, strings.Join(SupportedBindMethods(), ", "))
	}
}

// DirectoryConfig holds the connection parameters for one directory.
// It is built once and treated as immutable afterwards.
type DirectoryConfig struct {
	// Connection settings
	Host           string        // Directory server host
	Port           int           `default:"389"`
	UseSSL         bool          // Dial ldaps:// instead of ldap://
	StartTLS       bool          // Upgrade a plain connection with StartTLS
	SkipTLSVerify  bool          // Disable certificate verification (not recommended)
	ConnectTimeout time.Duration `default:"30s"`

	// Directory layout
	BaseDN         string // e.g. DC=example,DC=com
	UserSearchBase string // Defaults to BaseDN

	// Authentication settings
	BindUser             string     // Identity as configured by the operator
	BindPassword         string     // Never logged
	BindMethod           BindMethod `default:"simple"`
	ServiceAccountPrefix string     `default:"su-"`
	KerberosRealm        string     // Defaults to the upper-cased domain derived from BaseDN
	KerberosConfig       string     `default:"/etc/krb5.conf"`

	MaxResults int `default:"100"`
}

// NewDirectoryConfig returns a configuration with defaults applied.
func NewDirectoryConfig() *DirectoryConfig {
	cfg := &DirectoryConfig{}
	if err := defaults.Set(cfg); err != nil {
		// Only reachable with malformed struct tags.
		panic(fmt.Sprintf("failed to apply directory config defaults: %v", err))
	}
	return cfg
}

// LoadConfigFromEnv builds a configuration from the AD_* environment surface.
// Values are trimmed. Malformed numbers fall back to their defaults.
func LoadConfigFromEnv(lookup func(string) (string, bool)) (*DirectoryConfig, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	cfg := NewDirectoryConfig()
	cfg.Host = get(EnvServerHost)
	cfg.BaseDN = get(EnvBaseDN)
	cfg.BindUser = get(EnvBindUser)
	cfg.BindPassword = get(EnvBindPassword)
	cfg.UserSearchBase = get(EnvUserSearchBase)
	cfg.KerberosRealm = get(EnvKerberosRealm)

	if v := get(EnvServerPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.Port = port
		}
	}

	// Only an explicit "true" enables transport security flags.
	cfg.UseSSL = strings.EqualFold(get(EnvUseSSL), "true")
	cfg.StartTLS = strings.EqualFold(get(EnvStartTLS), "true")
	cfg.SkipTLSVerify = strings.EqualFold(get(EnvSkipTLSVerify), "true")

	if v := get(EnvConnectTimeout); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.ConnectTimeout = time.Duration(secs) * time.Second
		}
	}
	if v := get(EnvMaxResults); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxResults = n
		}
	}
	if v, ok := lookup(EnvServiceAccountPrefix); ok {
		cfg.ServiceAccountPrefix = strings.TrimSpace(v)
	}
	if v := get(EnvKerberosConfig); v != "" {
		cfg.KerberosConfig = v
	}

	method, err := ParseBindMethod(get(EnvBindMethod))
	if err != nil {
		return nil, err
	}
	cfg.BindMethod = method

	return cfg, nil
}

// SearchBase returns the base used for user searches.
func (c *DirectoryConfig) SearchBase() string {
	if c.UserSearchBase != "" {
		return c.UserSearchBase
	}
	return c.BaseDN
}

// Validate reports every empty required field. It never mutates the config.
func (c *DirectoryConfig) Validate() error {
	if c == nil {
		return &ConfigurationError{MissingFields: []string{EnvServerHost, EnvBaseDN, EnvBindUser, EnvBindPassword}}
	}

	var missing []string
	required := []struct {
		name  string
		value string
	}{
		{EnvServerHost, c.Host},
		{EnvBaseDN, c.BaseDN},
		{EnvBindUser, c.BindUser},
		{EnvBindPassword, c.BindPassword},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.name)
		}
	}

	if len(missing) > 0 {
		return &ConfigurationError{MissingFields: missing}
	}
	return nil
}

// Sanitized returns the configuration as log-safe fields. The password is never included.
func (c *DirectoryConfig) Sanitized() map[string]any {
	return map[string]any{
		"server_host":      c.Host,
		"server_port":      c.Port,
		"use_ssl":          c.UseSSL,
		"start_tls":        c.StartTLS,
		"base_dn":          c.BaseDN,
		"bind_user":        c.BindUser,
		"bind_method":      string(c.BindMethod),
		"user_search_base": c.SearchBase(),
	}
}

// ConfigStatus is the result of a configuration check.
type ConfigStatus struct {
	Valid         bool
	Fields        map[string]any // Sanitized fields, set when Valid
	MissingFields []string       // Set when not Valid
	Error         string
}

// Status validates the configuration without touching the network.
func (c *DirectoryConfig) Status() ConfigStatus {
	if err := c.Validate(); err != nil {
		status := ConfigStatus{Error: err.Error()}
		if cfgErr, ok := err.(*ConfigurationError); ok {
			status.MissingFields = append([]string(nil), cfgErr.MissingFields...)
		}
		return status
	}
	return ConfigStatus{Valid: true, Fields: c.Sanitized()}
}

// DerivedDomain joins every DC component of the base DN with dots.
// "DC=corp,DC=example,DC=com" yields "corp.example.com".
func (c *DirectoryConfig) DerivedDomain() string {
	return DomainFromBaseDN(c.BaseDN)
}

// NetBIOSDomain is the upper-cased leading label of the derived domain.
func (c *DirectoryConfig) NetBIOSDomain() string {
	domain := c.DerivedDomain()
	if domain == "" {
		return ""
	}
	label, _, _ := strings.Cut(domain, ".")
	return strings.ToUpper(label)
}

// Realm returns the Kerberos realm for principal candidates.
func (c *DirectoryConfig) Realm() string {
	if c.KerberosRealm != "" {
		return strings.ToUpper(c.KerberosRealm)
	}
	return strings.ToUpper(c.DerivedDomain())
}
