package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{DefaultLevel: LevelWarn, Output: &buf})

	l.Debug(CategorySystem, "dropped")
	l.Info(CategorySystem, "dropped too")
	l.Warn(CategorySystem, "kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("below-threshold entries leaked: %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Errorf("warn entry missing: %q", out)
	}
}

func TestPerCategoryLevels(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{
		DefaultLevel: LevelError,
		Output:       &buf,
		CategoryLevels: map[Category]Level{
			CategoryPool: LevelDebug,
		},
	})

	l.Debug(CategoryPool, "pool detail")
	l.Debug(CategorySystem, "system detail")

	out := buf.String()
	if !strings.Contains(out, "pool detail") {
		t.Errorf("pool debug entry missing: %q", out)
	}
	if strings.Contains(out, "system detail") {
		t.Errorf("system debug entry leaked: %q", out)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{DefaultLevel: LevelInfo, Output: &buf, Format: FormatJSON})

	l.Info(CategoryExecution, "batch done", "statements", 3, "failed", 1)

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v (%q)", err, buf.String())
	}
	if entry.Category != CategoryExecution || entry.Message != "batch done" {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if entry.Fields["statements"] != float64(3) {
		t.Errorf("unexpected fields: %v", entry.Fields)
	}
}

func TestPairFields(t *testing.T) {
	m := pairFields([]interface{}{"a", 1, "b", "two"})
	if m["a"] != 1 || m["b"] != "two" {
		t.Errorf("unexpected map: %v", m)
	}

	m = pairFields([]interface{}{"a", 1, "dangling"})
	if m["extra"] != "dangling" {
		t.Errorf("odd trailing value not captured: %v", m)
	}

	if m := pairFields(nil); m != nil {
		t.Errorf("expected nil map for no fields, got %v", m)
	}
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"debug", LevelDebug, true},
		{" INFO ", LevelInfo, true},
		{"warning", LevelWarn, true},
		{"err", LevelError, true},
		{"none", LevelOff, true},
		{"loud", LevelInfo, false},
	}
	for _, tc := range cases {
		got, err := ParseLevel(tc.in)
		if (err == nil) != tc.ok {
			t.Errorf("ParseLevel(%q) error = %v, ok = %v", tc.in, err, tc.ok)
		}
		if got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestErrorEntryCarriesError(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{DefaultLevel: LevelInfo, Output: &buf})

	l.Error(CategorySystem, "something broke", errFixture("boom"))
	if !strings.Contains(buf.String(), "error=boom") {
		t.Errorf("error string missing: %q", buf.String())
	}
}

type errFixture string

func (e errFixture) Error() string { return string(e) }
