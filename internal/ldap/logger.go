package ldap

import (
	"context"
	"errors"
	"maps"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// Subsystem names registered by the provider.
const (
	SubsystemLDAP     = "ldap"
	SubsystemProvider = "provider"
)

// LogOperation runs fn and logs its duration and outcome.
func LogOperation(ctx context.Context, subsystem, operation string, fields map[string]any, fn func() error) error {
	start := time.Now()

	if fields == nil {
		fields = make(map[string]any)
	}
	fields["operation"] = operation

	tflog.SubsystemDebug(ctx, subsystem, "Starting operation", fields)

	err := fn()

	fields["duration_ms"] = time.Since(start).Milliseconds()

	if err != nil {
		fields["error"] = err.Error()
		tflog.SubsystemError(ctx, subsystem, "Operation failed", fields)
	} else {
		tflog.SubsystemDebug(ctx, subsystem, "Operation completed successfully", fields)
	}

	return err
}

// LogLDAPError logs a failed directory operation with any result code it carries.
// Read paths that fail soft call this instead of returning the error.
func LogLDAPError(ctx context.Context, operation string, err error, fields map[string]any) {
	if err == nil {
		return
	}
	if fields == nil {
		fields = make(map[string]any)
	}

	fields["operation"] = operation
	fields["error"] = err.Error()
	fields["error_kind"] = ErrorKind(err)
	fields["error_category"] = string(GetErrorCategory(err))

	var retryable interface{ IsRetryable() bool }
	if errors.As(err, &retryable) {
		fields["retryable"] = retryable.IsRetryable()
	}

	var resultErr *ldap.Error
	if errors.As(err, &resultErr) {
		fields["ldap_result_code"] = resultErr.ResultCode
		if resultErr.MatchedDN != "" {
			fields["ldap_matched_dn"] = resultErr.MatchedDN
		}
		if resultErr.Err != nil {
			fields["ldap_diagnostic_message"] = resultErr.Err.Error()
		}
	}

	tflog.SubsystemError(ctx, SubsystemLDAP, "LDAP operation failed", SanitizeFields(fields))
}

// LogConnectionEvent logs connection and bind events at a level chosen by event.
func LogConnectionEvent(ctx context.Context, event string, fields map[string]any) {
	if fields == nil {
		fields = make(map[string]any)
	}

	fields["event"] = event
	fields = SanitizeFields(fields)

	switch event {
	case "connection_established", "credential_negotiated", "attributes_probed":
		tflog.SubsystemInfo(ctx, SubsystemLDAP, "Connection event", fields)
	case "connection_failed", "negotiation_failed", "cached_credential_rejected":
		tflog.SubsystemError(ctx, SubsystemLDAP, "Connection event", fields)
	case "bind_rejected":
		tflog.SubsystemDebug(ctx, SubsystemLDAP, "Connection event", fields)
	default:
		tflog.SubsystemTrace(ctx, SubsystemLDAP, "Connection event", fields)
	}
}

// SanitizeFields returns a copy of fields with sensitive values redacted.
func SanitizeFields(fields map[string]any) map[string]any {
	sanitized := make(map[string]any, len(fields))

	sensitiveKeys := map[string]bool{
		"password":      true,
		"bind_password": true,
		"passwd":        true,
		"secret":        true,
		"token":         true,
		"credentials":   true,
	}

	for k, v := range fields {
		if sensitiveKeys[strings.ToLower(k)] {
			sanitized[k] = "[REDACTED]"
			continue
		}
		if str, ok := v.(string); ok && containsSensitivePattern(str) {
			sanitized[k] = "[REDACTED]"
			continue
		}
		sanitized[k] = v
	}

	return sanitized
}

func containsSensitivePattern(s string) bool {
	patterns := []string{
		"password=",
		"passwd=",
		"secret=",
		"token=",
	}

	lower := strings.ToLower(s)
	for _, pattern := range patterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}

	return false
}

// LogDataSourceOperation logs entry to a data source operation and returns
// the matching exit logger.
func LogDataSourceOperation(ctx context.Context, dataSource, operation string, fields map[string]any) func(error) {
	start := time.Now()

	if fields == nil {
		fields = make(map[string]any)
	}

	entryFields := make(map[string]any)
	maps.Copy(entryFields, fields)
	entryFields["data_source"] = dataSource
	entryFields["operation"] = operation

	tflog.SubsystemDebug(ctx, SubsystemProvider, "Starting data source operation", entryFields)

	return func(err error) {
		exitFields := make(map[string]any)
		maps.Copy(exitFields, fields)
		exitFields["data_source"] = dataSource
		exitFields["operation"] = operation
		exitFields["duration_ms"] = time.Since(start).Milliseconds()
		exitFields["has_error"] = err != nil

		if err != nil {
			exitFields["error"] = err.Error()
			tflog.SubsystemError(ctx, SubsystemProvider, "Data source operation failed", exitFields)
		} else {
			tflog.SubsystemDebug(ctx, SubsystemProvider, "Data source operation completed", exitFields)
		}
	}
}
