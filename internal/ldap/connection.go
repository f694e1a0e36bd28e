package ldap

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"

	"github.com/go-ldap/ldap/v3"
)

// netConn adapts *ldap.Conn to Conn.
type netConn struct {
	*ldap.Conn
}

func (c *netConn) Close() {
	c.Conn.Close()
}

// ServerURL returns the ldap:// or ldaps:// URL for the configured server.
func ServerURL(cfg *DirectoryConfig) string {
	scheme := "ldap"
	if cfg.UseSSL {
		scheme = "ldaps"
	}

	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)))
}

func tlsConfig(cfg *DirectoryConfig) *tls.Config {
	return &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.SkipTLSVerify, //nolint:gosec // operator opt-in
		MinVersion:         tls.VersionTLS12,
	}
}

// DialDirectory opens an unauthenticated connection, upgrading it with
// StartTLS when configured. It is the default DialFunc.
func DialDirectory(ctx context.Context, cfg *DirectoryConfig) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewConnectionError("connection aborted", false, err)
	}

	url := ServerURL(cfg)
	opts := []ldap.DialOpt{
		ldap.DialWithDialer(&net.Dialer{Timeout: cfg.ConnectTimeout}),
	}
	if cfg.UseSSL {
		opts = append(opts, ldap.DialWithTLSConfig(tlsConfig(cfg)))
	}

	conn, err := ldap.DialURL(url, opts...)
	if err != nil {
		return nil, NewConnectionError(fmt.Sprintf("failed to connect to %s", url), true, err)
	}

	if cfg.StartTLS && !cfg.UseSSL {
		if err := conn.StartTLS(tlsConfig(cfg)); err != nil {
			conn.Close()
			return nil, NewConnectionError(fmt.Sprintf("StartTLS failed on %s", url), false, err)
		}
	}

	if cfg.ConnectTimeout > 0 {
		conn.SetTimeout(cfg.ConnectTimeout)
	}

	return &netConn{Conn: conn}, nil
}

// release unbinds and closes conn. Errors are ignored; the connection is gone either way.
func release(conn Conn) {
	if conn == nil {
		return
	}
	_ = conn.Unbind()
	conn.Close()
}

// searchEntries runs req and returns its entries. A size-limit-exceeded
// result still carries the entries collected before the limit and is not an error.
func searchEntries(conn Conn, req *ldap.SearchRequest) ([]*ldap.Entry, error) {
	result, err := conn.Search(req)
	if err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultSizeLimitExceeded) && result != nil && len(result.Entries) > 0 {
			return result.Entries, nil
		}
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	return result.Entries, nil
}
