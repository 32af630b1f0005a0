package registry

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/unisql-project/unisql/pkg/dialect"
	"github.com/unisql-project/unisql/pkg/errors"
)

func writeProfiles(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing profiles: %v", err)
	}
}

const twoProfiles = `[
	{"name": "local", "kind": "sqlite", "database": "/data/local.db"},
	{
		"name": "main",
		"kind": "postgres",
		"host": "db.internal",
		"port": 5433,
		"database": "app",
		"credential_ref": "UNISQL_TEST_CRED",
		"max_pool_size": 8,
		"fail_fast": true
	}
]`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	writeProfiles(t, path, twoProfiles)

	r, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	names := r.Names()
	sort.Strings(names)
	if len(names) != 2 || names[0] != "local" || names[1] != "main" {
		t.Errorf("unexpected profile names: %v", names)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"), nil)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if errors.CodeOf(err) != errors.CodeConfigMissing {
		t.Errorf("expected config-missing code, got %v", errors.CodeOf(err))
	}
}

func TestLoad_RejectsUnknownKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	writeProfiles(t, path, `[{"name": "legacy", "kind": "dbase", "database": "x"}]`)

	_, err := Load(path, nil)
	if err == nil {
		t.Fatal("expected error for unsupported backend kind")
	}
	if errors.CodeOf(err) != errors.CodeConfigInvalid {
		t.Errorf("expected config-invalid code, got %v", errors.CodeOf(err))
	}
}

func TestLoad_RejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	writeProfiles(t, path, `{"not": "an array"`)

	_, err := Load(path, nil)
	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}
	if errors.CodeOf(err) != errors.CodeConfigParse {
		t.Errorf("expected config-parse code, got %v", errors.CodeOf(err))
	}
}

func TestDescriptor(t *testing.T) {
	t.Setenv("UNISQL_TEST_CRED", "alice:hunter2")

	path := filepath.Join(t.TempDir(), "profiles.json")
	writeProfiles(t, path, twoProfiles)

	r, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	desc, err := r.Descriptor("main")
	if err != nil {
		t.Fatalf("Descriptor failed: %v", err)
	}
	if desc.Kind != dialect.KindPostgres || desc.Host != "db.internal" || desc.Port != 5433 {
		t.Errorf("unexpected descriptor: %+v", desc)
	}
	if desc.Credentials.User != "alice" || desc.Credentials.Secret != "hunter2" {
		t.Error("credential reference not resolved")
	}
	if desc.MaxPoolSize != 8 || !desc.FailFast {
		t.Errorf("pool hints not carried: %+v", desc)
	}

	// Profiles without a credential reference resolve to empty
	// credentials.
	desc, err = r.Descriptor("local")
	if err != nil {
		t.Fatalf("Descriptor failed: %v", err)
	}
	if desc.Credentials != (dialect.Credentials{}) {
		t.Errorf("unexpected credentials for local profile: %+v", desc.Credentials)
	}

	if _, err := r.Descriptor("nope"); err == nil {
		t.Error("expected error for unknown profile")
	}
}

func TestDescriptor_UnsetCredentialRef(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	writeProfiles(t, path, twoProfiles)

	r, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	os.Unsetenv("UNISQL_TEST_CRED")
	_, err = r.Descriptor("main")
	if err == nil {
		t.Fatal("expected error for unresolvable credential reference")
	}
	if errors.CodeOf(err) != errors.CodeConfigMissing {
		t.Errorf("expected config-missing code, got %v", errors.CodeOf(err))
	}
}

func TestSetResolver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	writeProfiles(t, path, twoProfiles)

	r, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	r.SetResolver(func(ref string) (dialect.Credentials, error) {
		return dialect.Credentials{User: "vault:" + ref, Secret: "s"}, nil
	})

	desc, err := r.Descriptor("main")
	if err != nil {
		t.Fatalf("Descriptor failed: %v", err)
	}
	if desc.Credentials.User != "vault:UNISQL_TEST_CRED" {
		t.Errorf("custom resolver not used: %+v", desc.Credentials)
	}
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	writeProfiles(t, path, `[{"name": "a", "kind": "sqlite", "database": "a.db"}]`)

	r, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	reloaded := make(chan struct{}, 4)
	w, err := NewWatcher(r,
		WithDebounceDelay(10*time.Millisecond),
		WithOnReload(func() { reloaded <- struct{}{} }))
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	writeProfiles(t, path, `[
		{"name": "a", "kind": "sqlite", "database": "a.db"},
		{"name": "b", "kind": "sqlite", "database": "b.db"}
	]`)

	select {
	case <-reloaded:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not reload after file change")
	}

	names := r.Names()
	sort.Strings(names)
	if len(names) != 2 || names[1] != "b" {
		t.Errorf("reloaded profiles = %v, want [a b]", names)
	}
}

func TestWatcher_BadReloadKeepsPriorProfiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	writeProfiles(t, path, `[{"name": "a", "kind": "sqlite", "database": "a.db"}]`)

	r, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	failed := make(chan error, 4)
	w, err := NewWatcher(r,
		WithDebounceDelay(10*time.Millisecond),
		WithOnError(func(err error) { failed <- err }))
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	writeProfiles(t, path, `{broken`)

	select {
	case <-failed:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not report the reload failure")
	}

	if names := r.Names(); len(names) != 1 || names[0] != "a" {
		t.Errorf("prior profiles not retained: %v", names)
	}
}
