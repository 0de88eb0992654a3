package pgsession

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a ConnectorError without requiring callers to use
// type assertions against every concrete kind. Mirrors the conceptual
// error family in §7.
type ErrorKind int

const (
	ErrKindInvalidConnectionArguments ErrorKind = iota
	ErrKindTLS
	ErrKindConnectTimeout
	ErrKindSocketTimeout
	ErrKindConnectionClosed
	ErrKindQueryInvalidInput
	ErrKindIncorrectNumberOfParameters
	ErrKindDatabaseDoesNotExist
	ErrKindAuthenticationFailed
	ErrKindInvalidIsolationLevel
	ErrKindUnique
	ErrKindForeignKey
	ErrKindNullConstraintViolation
	ErrKindRaw
)

func (k ErrorKind) String() string {
	switch k {
	case ErrKindInvalidConnectionArguments:
		return "invalid_connection_arguments"
	case ErrKindTLS:
		return "tls"
	case ErrKindConnectTimeout:
		return "connect_timeout"
	case ErrKindSocketTimeout:
		return "socket_timeout"
	case ErrKindConnectionClosed:
		return "connection_closed"
	case ErrKindQueryInvalidInput:
		return "query_invalid_input"
	case ErrKindIncorrectNumberOfParameters:
		return "incorrect_number_of_parameters"
	case ErrKindDatabaseDoesNotExist:
		return "database_does_not_exist"
	case ErrKindAuthenticationFailed:
		return "authentication_failed"
	case ErrKindInvalidIsolationLevel:
		return "invalid_isolation_level"
	case ErrKindUnique:
		return "unique_violation"
	case ErrKindForeignKey:
		return "foreign_key_violation"
	case ErrKindNullConstraintViolation:
		return "null_constraint_violation"
	default:
		return "raw"
	}
}

// ConnectorError is the error type this package constructs for its own
// failures. It always carries a Kind, a human message, and (when it was
// translated from a server error) the server's own SQLSTATE and message
// text, so a caller that wants the original detail never has to re-parse
// the formatted Error() string. Errors that a query's wire call or a
// SQLVisitor return, other than timeouts and closed connections, are
// passed through unchanged rather than wrapped in a ConnectorError.
type ConnectorError struct {
	Kind ErrorKind

	// Message is a human-readable summary, safe to log.
	Message string

	// OriginalCode is the PostgreSQL SQLSTATE this error was translated
	// from, empty when the error did not originate on the wire.
	OriginalCode string
	// OriginalMessage is the server's own error text, empty when the
	// error did not originate on the wire.
	OriginalMessage string

	// Detail carries kind-specific structured data: for
	// ErrKindIncorrectNumberOfParameters, a *ParameterCountMismatch; for
	// ErrKindDatabaseDoesNotExist, the missing database name; for
	// ErrKindAuthenticationFailed, the user name; for
	// ErrKindInvalidIsolationLevel, the rejected level string.
	Detail any

	// Cause is the underlying error, if any, wrapped for errors.Is/As.
	Cause error
}

// ParameterCountMismatch is the Detail payload of an
// ErrKindIncorrectNumberOfParameters error.
type ParameterCountMismatch struct {
	Expected int
	Actual   int
}

func (e *ConnectorError) Error() string {
	if e.OriginalCode != "" {
		return fmt.Sprintf("pgsession: %s: %s (sqlstate %s: %s)", e.Kind, e.Message, e.OriginalCode, e.OriginalMessage)
	}
	return fmt.Sprintf("pgsession: %s: %s", e.Kind, e.Message)
}

func (e *ConnectorError) Unwrap() error { return e.Cause }

// Is reports whether target has the same Kind, so callers can write
// errors.Is(err, &ConnectorError{Kind: ErrKindConnectionClosed}).
func (e *ConnectorError) Is(target error) bool {
	var other *ConnectorError
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

func newInvalidConnectionArguments(format string, args ...any) *ConnectorError {
	return &ConnectorError{Kind: ErrKindInvalidConnectionArguments, Message: fmt.Sprintf(format, args...)}
}

func newTLSError(cause error, format string, args ...any) *ConnectorError {
	return &ConnectorError{Kind: ErrKindTLS, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func newConnectTimeout(cause error) *ConnectorError {
	return &ConnectorError{Kind: ErrKindConnectTimeout, Message: "timed out connecting to the server", Cause: cause}
}

func newSocketTimeout(cause error) *ConnectorError {
	return &ConnectorError{Kind: ErrKindSocketTimeout, Message: "timed out waiting on the socket", Cause: cause}
}

func newConnectionClosed(cause error) *ConnectorError {
	return &ConnectorError{Kind: ErrKindConnectionClosed, Message: "the connection is no longer usable", Cause: cause}
}

func newQueryInvalidInput(detail string) *ConnectorError {
	return &ConnectorError{Kind: ErrKindQueryInvalidInput, Message: detail}
}

func newIncorrectNumberOfParameters(expected, actual int) *ConnectorError {
	return &ConnectorError{
		Kind:    ErrKindIncorrectNumberOfParameters,
		Message: fmt.Sprintf("expected %d bind parameters, got %d", expected, actual),
		Detail:  &ParameterCountMismatch{Expected: expected, Actual: actual},
	}
}

func newDatabaseDoesNotExist(dbName string, cause error) *ConnectorError {
	return &ConnectorError{
		Kind:    ErrKindDatabaseDoesNotExist,
		Message: fmt.Sprintf("database %q does not exist", dbName),
		Detail:  dbName,
		Cause:   cause,
	}
}

func newAuthenticationFailed(user string, cause error) *ConnectorError {
	return &ConnectorError{
		Kind:    ErrKindAuthenticationFailed,
		Message: fmt.Sprintf("authentication failed for user %q", user),
		Detail:  user,
		Cause:   cause,
	}
}

func newInvalidIsolationLevel(level string) *ConnectorError {
	return &ConnectorError{
		Kind:    ErrKindInvalidIsolationLevel,
		Message: fmt.Sprintf("isolation level %q has no PostgreSQL equivalent", level),
		Detail:  level,
	}
}

// sqlStateKind maps the SQLSTATE classes §7 calls out by name to an
// ErrorKind. Codes not present here fall back to ErrKindRaw, carrying the
// original code/message through unclassified rather than dropped.
var sqlStateKind = map[string]ErrorKind{
	"23505": ErrKindUnique,
	"23503": ErrKindForeignKey,
	"23502": ErrKindNullConstraintViolation,
	"3D000": ErrKindDatabaseDoesNotExist,
	"28P01": ErrKindAuthenticationFailed,
	"28000": ErrKindAuthenticationFailed,
}

// translateSQLState converts a server-reported SQLSTATE and message into
// a ConnectorError, preserving the original code/message on every kind
// so callers never lose detail to the translation (§7).
func translateSQLState(code, message string) *ConnectorError {
	kind, ok := sqlStateKind[code]
	if !ok {
		kind = ErrKindRaw
	}
	return &ConnectorError{
		Kind:            kind,
		Message:         message,
		OriginalCode:    code,
		OriginalMessage: message,
	}
}
