package utils

import (
	"errors"
	"testing"

	mysqlDriver "github.com/go-sql-driver/mysql"
)

func TestClassifyDBError(t *testing.T) {
	if ClassifyDBError(nil) != nil {
		t.Fatalf("nil must classify to nil")
	}

	lockWait := ClassifyDBError(&mysqlDriver.MySQLError{Number: 1205})
	var conflict *ConflictError
	if !errors.As(lockWait, &conflict) || !conflict.Retryable {
		t.Fatalf("lock wait timeout must become a retryable conflict; got %v", lockWait)
	}

	deadlock := ClassifyDBError(&mysqlDriver.MySQLError{Number: 1213})
	if !errors.As(deadlock, &conflict) || !conflict.Retryable {
		t.Fatalf("deadlock must become a retryable conflict; got %v", deadlock)
	}

	passthrough := errors.New("driver: bad connection")
	if ClassifyDBError(passthrough) != passthrough {
		t.Fatalf("unrelated errors must pass through unchanged")
	}
}

func TestIsDuplicateKeyErr(t *testing.T) {
	if !IsDuplicateKeyErr(&mysqlDriver.MySQLError{Number: 1062}) {
		t.Fatalf("1062 is a duplicate key error")
	}
	if IsDuplicateKeyErr(&mysqlDriver.MySQLError{Number: 1213}) {
		t.Fatalf("1213 is not a duplicate key error")
	}
	if IsDuplicateKeyErr(errors.New("not a mysql error")) {
		t.Fatalf("plain errors are not duplicate key errors")
	}
}

func TestNotFoundErrorMessage(t *testing.T) {
	err := NewNotFoundError("group")
	if err.Error() != "group not found" {
		t.Fatalf("got %q", err.Error())
	}
}

func TestUniqueSlice(t *testing.T) {
	got := UniqueSlice([]int{3, 1, 3, 2, 1})
	if len(got) != 3 || got[0] != 3 || got[1] != 1 || got[2] != 2 {
		t.Fatalf("got %v", got)
	}
}

func TestParseDecimal(t *testing.T) {
	d, err := ParseDecimal(" 12.5 ")
	if err != nil || d.String() != "12.5" {
		t.Fatalf("got (%s, %v)", d, err)
	}
	if _, err := ParseDecimal(""); err == nil {
		t.Fatalf("empty string must fail")
	}
	if _, err := ParseDecimal("abc"); err == nil {
		t.Fatalf("non-numeric must fail")
	}
}
