package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodeExpired, status: http.StatusGone, publicMsg: "resource expired"},
		{code: CodeTooManyAttempts, status: http.StatusTooManyRequests, publicMsg: "too many attempts"},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if !IsCode(fmt.Errorf("outer: %w", wrapped), CodeConflict) {
		t.Fatalf("IsCode should see through wrapping")
	}
	if IsCode(cause, CodeConflict) {
		t.Fatalf("plain errors carry no code")
	}
}

type statusErr struct{ status int }

func (s statusErr) Error() string   { return "status" }
func (s statusErr) HTTPStatus() int { return s.status }

func TestDumpCapturesChainAndStatus(t *testing.T) {
	err := Wrap(CodeDependency, statusErr{status: 502}, "call failed")
	d := Dump(err)
	if d.Code != CodeDependency {
		t.Fatalf("unexpected code %s", d.Code)
	}
	if d.HTTPStatus != 502 {
		t.Fatalf("expected http status 502, got %d", d.HTTPStatus)
	}
	if len(d.Chain) != 2 {
		t.Fatalf("expected chain of 2, got %v", d.Chain)
	}
	if Dump(nil).TopMessage != "" {
		t.Fatalf("nil error should dump empty")
	}
}

func TestDumpDecodesPostgresErrors(t *testing.T) {
	pgxErr := fmt.Errorf("set state: %w", &pgconn.PgError{Code: "23505", ConstraintName: "client_state_pkey", TableName: "client_state"})
	d := Dump(pgxErr)
	if d.PGCode != "23505" || d.PGConstraint != "client_state_pkey" || d.PGTable != "client_state" {
		t.Fatalf("unexpected pgx dump %+v", d)
	}
	fields := d.Fields()
	if fields["pg_code"] != "23505" || fields["pg_table"] != "client_state" {
		t.Fatalf("pg fields missing from %v", fields)
	}
	if _, ok := fields["pg_detail"]; ok {
		t.Fatalf("empty pg_detail should be omitted")
	}

	pqErr := Wrap(CodeDependency, &pq.Error{Code: "40P01", Message: "deadlock detected", Table: "client_state"}, "clear state")
	d = Dump(pqErr)
	if d.PGCode != "40P01" || d.PGMessage != "deadlock detected" {
		t.Fatalf("unexpected pq dump %+v", d)
	}
	if d.Fields()["error_code"] != CodeDependency {
		t.Fatalf("error code missing from fields")
	}
}
