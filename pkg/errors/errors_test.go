package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := New(KindConstraint, CodeConstraint, "duplicate key")
	got := err.Error()
	if !strings.Contains(got, "E4004") {
		t.Errorf("missing code in %q", got)
	}
	if !strings.Contains(got, "[constraint]") {
		t.Errorf("missing kind in %q", got)
	}
	if !strings.Contains(got, "duplicate key") {
		t.Errorf("missing message in %q", got)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("socket closed")
	err := Wrap(cause, KindConnection, CodeConnectFailed, "connecting to target")

	if !stderrors.Is(err, cause) {
		t.Error("wrapped cause not reachable via errors.Is")
	}
	if !strings.Contains(err.Error(), "socket closed") {
		t.Errorf("cause missing from message: %q", err.Error())
	}
}

func TestKindAndCodeExtraction(t *testing.T) {
	err := Newf(KindRange, CodePageOutOfRange, "page %d of %d", 7, 3)

	if KindOf(err) != KindRange {
		t.Errorf("KindOf = %v, want range", KindOf(err))
	}
	if CodeOf(err) != CodePageOutOfRange {
		t.Errorf("CodeOf = %v, want page-out-of-range", CodeOf(err))
	}
	if !IsKind(err, KindRange) {
		t.Error("IsKind(range) = false")
	}

	// Extraction works through wrapping layers.
	outer := Wrap(err, KindInternal, CodeInternal, "outer")
	var inner *Error
	if !As(outer.Cause, &inner) || inner.Code != CodePageOutOfRange {
		t.Error("inner structured error lost through wrapping")
	}

	// Foreign errors default to internal.
	plain := stderrors.New("plain")
	if KindOf(plain) != KindInternal || CodeOf(plain) != CodeInternal {
		t.Error("foreign error did not default to internal")
	}
}

func TestWithFieldAndOp(t *testing.T) {
	err := New(KindConnection, CodePoolExhausted, "no free handles").
		WithOp("Pool.Acquire").
		WithField("target", "sqlite:/x.db").
		WithField("max", 4)

	if err.Op != "Pool.Acquire" {
		t.Errorf("Op = %q", err.Op)
	}
	fields := FieldsOf(err)
	if fields["target"] != "sqlite:/x.db" || fields["max"] != 4 {
		t.Errorf("unexpected fields: %v", fields)
	}
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindInternal:   "internal",
		KindConnection: "connection",
		KindSyntax:     "syntax",
		KindFault:      "fault",
		Kind(99):       "unknown",
	}
	for kind, want := range cases {
		if kind.String() != want {
			t.Errorf("Kind(%d).String() = %q, want %q", kind, kind.String(), want)
		}
	}
}
