package ldap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// ConfigurationError reports required configuration fields that are empty.
// No connection attempt is made while it applies.
type ConfigurationError struct {
	MissingFields []string
}

func (e *ConfigurationError) Error() string {
	return "missing required configuration: " + strings.Join(e.MissingFields, ", ")
}

// NoWorkingCredentialError reports that every candidate identity was rejected.
type NoWorkingCredentialError struct {
	Attempted []string // Candidate identities, in the order tried
	LastErr   error
}

func (e *NoWorkingCredentialError) Error() string {
	msg := fmt.Sprintf("no working credential format found after %d attempts", len(e.Attempted))
	if len(e.Attempted) > 0 {
		msg += " (" + strings.Join(e.Attempted, ", ") + ")"
	}
	if e.LastErr != nil {
		msg += ": " + e.LastErr.Error()
	}
	return msg
}

func (e *NoWorkingCredentialError) Unwrap() error {
	return e.LastErr
}

// ConnectionError represents a transport-level failure reaching the server.
type ConnectionError struct {
	message   string
	retryable bool
	cause     error
}

func (e *ConnectionError) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

func (e *ConnectionError) IsRetryable() bool {
	return e.retryable
}

func (e *ConnectionError) Unwrap() error {
	return e.cause
}

// NewConnectionError creates a new connection error.
func NewConnectionError(message string, retryable bool, cause error) *ConnectionError {
	return &ConnectionError{
		message:   message,
		retryable: retryable,
		cause:     cause,
	}
}

// PartialExtractionError lists the fields of one entry that could not be decoded.
// The record is still usable; the listed fields are left empty.
type PartialExtractionError struct {
	DN     string
	Fields []string
	Causes []error
}

func (e *PartialExtractionError) Error() string {
	return fmt.Sprintf("partial extraction of %q: fields %s could not be decoded", e.DN, strings.Join(e.Fields, ", "))
}

func (e *PartialExtractionError) Unwrap() []error {
	return e.Causes
}

// IsConfigurationError reports whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsNoWorkingCredentialError reports whether err is or wraps a NoWorkingCredentialError.
func IsNoWorkingCredentialError(err error) bool {
	var target *NoWorkingCredentialError
	return errors.As(err, &target)
}

// IsConnectionError reports whether err is or wraps a ConnectionError.
func IsConnectionError(err error) bool {
	var target *ConnectionError
	return errors.As(err, &target)
}

// ErrorKind names the error kind of err for diagnostic output.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsConfigurationError(err):
		return "configuration"
	case IsNoWorkingCredentialError(err):
		return "no_working_credential"
	case IsConnectionError(err):
		return "connection"
	default:
		var partial *PartialExtractionError
		if errors.As(err, &partial) {
			return "partial_extraction"
		}
		return "unknown"
	}
}

// ErrorCategory represents different categories of LDAP errors.
type ErrorCategory string

const (
	ErrorCategoryConnection     ErrorCategory = "connection"
	ErrorCategoryAuthentication ErrorCategory = "authentication"
	ErrorCategoryPermission     ErrorCategory = "permission"
	ErrorCategoryNotFound       ErrorCategory = "not_found"
	ErrorCategoryValidation     ErrorCategory = "validation"
	ErrorCategoryServer         ErrorCategory = "server"
	ErrorCategoryUnknown        ErrorCategory = "unknown"
)

// LDAPError decorates a protocol error with the operation and a readable message.
type LDAPError struct {
	Operation string        // bind, search, dial
	Category  ErrorCategory // Error category
	LDAPCode  uint16        // LDAP result code
	Message   string        // Human-readable message
	ServerMsg string        // Server-provided diagnostic message
	Retryable bool
	Cause     error
}

func (e *LDAPError) Error() string {
	var parts []string

	if e.LDAPCode > 0 {
		parts = append(parts, fmt.Sprintf("LDAP %s failed (code %d)", e.Operation, e.LDAPCode))
	} else {
		parts = append(parts, fmt.Sprintf("LDAP %s failed", e.Operation))
	}

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	if e.ServerMsg != "" && e.ServerMsg != e.Message {
		parts = append(parts, fmt.Sprintf("server: %s", e.ServerMsg))
	}

	return strings.Join(parts, " - ")
}

func (e *LDAPError) IsRetryable() bool {
	return e.Retryable
}

func (e *LDAPError) Unwrap() error {
	return e.Cause
}

// NewLDAPError classifies err. It returns nil for a nil error.
func NewLDAPError(operation string, err error) *LDAPError {
	if err == nil {
		return nil
	}

	ldapErr := &LDAPError{
		Operation: operation,
		Cause:     err,
	}

	var resultErr *ldap.Error
	if errors.As(err, &resultErr) {
		ldapErr.LDAPCode = resultErr.ResultCode
		if resultErr.Err != nil {
			ldapErr.ServerMsg = resultErr.Err.Error()
		}
		ldapErr.Category = categorizeResultCode(resultErr.ResultCode)
		ldapErr.Retryable = isResultCodeRetryable(resultErr.ResultCode)
		ldapErr.Message = resultCodeMessage(resultErr.ResultCode)
		return ldapErr
	}

	ldapErr.Category = categorizeGenericError(err)
	ldapErr.Retryable = ldapErr.Category == ErrorCategoryConnection
	ldapErr.Message = err.Error()
	return ldapErr
}

// GetErrorCategory returns the category of an error.
func GetErrorCategory(err error) ErrorCategory {
	if err == nil {
		return ErrorCategoryUnknown
	}

	var ldapErr *LDAPError
	if errors.As(err, &ldapErr) {
		return ldapErr.Category
	}

	var resultErr *ldap.Error
	if errors.As(err, &resultErr) {
		return categorizeResultCode(resultErr.ResultCode)
	}

	return categorizeGenericError(err)
}

// IsAuthenticationError checks if an error indicates rejected credentials.
func IsAuthenticationError(err error) bool {
	return GetErrorCategory(err) == ErrorCategoryAuthentication
}

// isTransportError reports whether err means the server could not be reached
// or the connection dropped, as opposed to the server rejecting a request.
func isTransportError(err error) bool {
	if err == nil {
		return false
	}
	if IsConnectionError(err) {
		return true
	}
	var resultErr *ldap.Error
	if errors.As(err, &resultErr) {
		return resultErr.ResultCode == ldap.ErrorNetwork ||
			resultErr.ResultCode == ldap.LDAPResultServerDown ||
			resultErr.ResultCode == ldap.LDAPResultConnectError
	}
	return categorizeGenericError(err) == ErrorCategoryConnection
}

func categorizeResultCode(code uint16) ErrorCategory {
	switch code {
	case ldap.LDAPResultInvalidCredentials,
		ldap.LDAPResultInappropriateAuthentication,
		ldap.LDAPResultStrongAuthRequired,
		ldap.LDAPResultAuthMethodNotSupported,
		ldap.LDAPResultConfidentialityRequired:
		return ErrorCategoryAuthentication

	case ldap.LDAPResultInsufficientAccessRights,
		ldap.LDAPResultUnwillingToPerform:
		return ErrorCategoryPermission

	case ldap.LDAPResultNoSuchObject,
		ldap.LDAPResultNoSuchAttribute,
		ldap.LDAPResultUndefinedAttributeType:
		return ErrorCategoryNotFound

	case ldap.LDAPResultInvalidDNSyntax,
		ldap.LDAPResultInvalidAttributeSyntax,
		ldap.LDAPResultFilterError:
		return ErrorCategoryValidation

	case ldap.LDAPResultUnavailable,
		ldap.LDAPResultBusy,
		ldap.LDAPResultTimeLimitExceeded,
		ldap.LDAPResultAdminLimitExceeded,
		ldap.LDAPResultOperationsError:
		return ErrorCategoryServer

	case ldap.LDAPResultServerDown,
		ldap.LDAPResultConnectError,
		ldap.LDAPResultTimeout,
		ldap.ErrorNetwork:
		return ErrorCategoryConnection

	default:
		return ErrorCategoryUnknown
	}
}

func categorizeGenericError(err error) ErrorCategory {
	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "connection"),
		strings.Contains(errStr, "network"),
		strings.Contains(errStr, "timeout"),
		strings.Contains(errStr, "no such host"),
		strings.Contains(errStr, "broken pipe"):
		return ErrorCategoryConnection
	case strings.Contains(errStr, "credentials"),
		strings.Contains(errStr, "authentication"):
		return ErrorCategoryAuthentication
	default:
		return ErrorCategoryUnknown
	}
}

func isResultCodeRetryable(code uint16) bool {
	switch code {
	case ldap.LDAPResultBusy,
		ldap.LDAPResultUnavailable,
		ldap.LDAPResultServerDown,
		ldap.LDAPResultTimeLimitExceeded,
		ldap.LDAPResultConnectError,
		ldap.ErrorNetwork:
		return true
	default:
		return false
	}
}

func resultCodeMessage(code uint16) string {
	switch code {
	case ldap.LDAPResultOperationsError:
		return "LDAP operations error"
	case ldap.LDAPResultProtocolError:
		return "LDAP protocol error"
	case ldap.LDAPResultTimeLimitExceeded:
		return "LDAP time limit exceeded"
	case ldap.LDAPResultSizeLimitExceeded:
		return "LDAP size limit exceeded"
	case ldap.LDAPResultAuthMethodNotSupported:
		return "Authentication method not supported"
	case ldap.LDAPResultStrongAuthRequired:
		return "Strong authentication required"
	case ldap.LDAPResultAdminLimitExceeded:
		return "Administrative limit exceeded"
	case ldap.LDAPResultConfidentialityRequired:
		return "Confidentiality required"
	case ldap.LDAPResultNoSuchAttribute:
		return "Requested attribute does not exist"
	case ldap.LDAPResultUndefinedAttributeType:
		return "Attribute type is not defined"
	case ldap.LDAPResultNoSuchObject:
		return "Requested object does not exist"
	case ldap.LDAPResultInvalidDNSyntax:
		return "Invalid DN syntax"
	case ldap.LDAPResultInappropriateAuthentication:
		return "Inappropriate authentication method"
	case ldap.LDAPResultInvalidCredentials:
		return "Invalid credentials"
	case ldap.LDAPResultInsufficientAccessRights:
		return "Insufficient access rights"
	case ldap.LDAPResultBusy:
		return "Server is busy"
	case ldap.LDAPResultUnavailable:
		return "Server is unavailable"
	case ldap.LDAPResultUnwillingToPerform:
		return "Server is unwilling to perform the operation"
	case ldap.LDAPResultServerDown:
		return "Server is down"
	case ldap.LDAPResultTimeout:
		return "Operation timed out"
	case ldap.LDAPResultFilterError:
		return "Invalid search filter"
	case ldap.LDAPResultConnectError:
		return "Connection error"
	case ldap.ErrorNetwork:
		return "Network error"
	default:
		return fmt.Sprintf("Unknown LDAP error (code %d)", code)
	}
}
