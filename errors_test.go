package pgsession

import (
	"errors"
	"testing"
)

func TestTranslateSQLState_KnownCodes(t *testing.T) {
	cases := []struct {
		code string
		want ErrorKind
	}{
		{"3D000", ErrKindDatabaseDoesNotExist},
		{"28P01", ErrKindAuthenticationFailed},
		{"28000", ErrKindAuthenticationFailed},
		{"23505", ErrKindUnique},
		{"23503", ErrKindForeignKey},
		{"23502", ErrKindNullConstraintViolation},
	}
	for _, tc := range cases {
		got := translateSQLState(tc.code, "some message")
		if got.Kind != tc.want {
			t.Errorf("translateSQLState(%q) kind = %v, want %v", tc.code, got.Kind, tc.want)
		}
		if got.OriginalCode != tc.code {
			t.Errorf("OriginalCode = %q, want %q", got.OriginalCode, tc.code)
		}
		if got.OriginalMessage != "some message" {
			t.Errorf("OriginalMessage = %q, want %q", got.OriginalMessage, "some message")
		}
	}
}

func TestTranslateSQLState_UnknownCodeFallsBackToRaw(t *testing.T) {
	got := translateSQLState("99999", "weird")
	if got.Kind != ErrKindRaw {
		t.Errorf("Kind = %v, want %v", got.Kind, ErrKindRaw)
	}
	if got.OriginalCode != "99999" {
		t.Errorf("OriginalCode = %q, want %q", got.OriginalCode, "99999")
	}
}

func TestConnectorError_IsMatchesOnKindOnly(t *testing.T) {
	a := newConnectionClosed(nil)
	b := &ConnectorError{Kind: ErrKindConnectionClosed, Message: "different message"}
	if !errors.Is(a, b) {
		t.Error("expected errors.Is to match on Kind regardless of Message")
	}

	c := newSocketTimeout(nil)
	if errors.Is(a, c) {
		t.Error("expected errors.Is to not match across different Kinds")
	}
}

func TestNewIncorrectNumberOfParameters_CarriesDetail(t *testing.T) {
	err := newIncorrectNumberOfParameters(1, 2)
	detail, ok := err.Detail.(*ParameterCountMismatch)
	if !ok {
		t.Fatalf("Detail = %T, want *ParameterCountMismatch", err.Detail)
	}
	if detail.Expected != 1 || detail.Actual != 2 {
		t.Errorf("detail = %+v, want {Expected:1 Actual:2}", detail)
	}
}

func TestConnectorError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := newConnectTimeout(cause)
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to see through Unwrap to the cause")
	}
}
