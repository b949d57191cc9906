package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadConfigFrom_MissingFile(t *testing.T) {
	cfg, err := LoadConfigFrom(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
}

func TestLoadConfigFrom_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	want := DefaultConfig()
	want.Port = 9090
	want.LanEnabled = true
	want.NotifyOnMultiplier = false
	if err := SaveConfigTo(want, path); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := LoadConfigFrom(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestLoadConfigFrom_CorruptFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadConfigFrom(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
}

func TestLoadConfigFrom_SchemaMismatchFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"schema_version": 99, "port": 9999}`), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadConfigFrom(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != DefaultConfig().Port {
		t.Errorf("port = %d, want default", cfg.Port)
	}
}

func TestLoadConfigFrom_NormalizesBadPort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"schema_version": 1, "port": -5}`), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadConfigFrom(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != DefaultConfig().Port {
		t.Errorf("port = %d, want default", cfg.Port)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("PENALTYPOT_PORT", "9191")
	t.Setenv("PENALTYPOT_LAN_ENABLED", "true")
	t.Setenv("PENALTYPOT_NOTIFY_ON_COMMIT", "false")

	cfg, err := ApplyEnvOverrides(DefaultConfig())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cfg.Port != 9191 {
		t.Errorf("port = %d, want 9191", cfg.Port)
	}
	if !cfg.LanEnabled {
		t.Error("lan not enabled")
	}
	if cfg.NotifyOnCommit {
		t.Error("notify_on_commit not overridden")
	}
}

func TestSecrets_RedactedInLogs(t *testing.T) {
	s := Secret("super-secret")
	if s.String() != "[REDACTED]" {
		t.Errorf("String() = %q", s.String())
	}
	if s.Value() != "super-secret" {
		t.Errorf("Value() = %q", s.Value())
	}
}

func TestSecrets_JSONStillCarriesValue(t *testing.T) {
	// The file on disk needs the real value; only log formatting redacts.
	data, err := json.Marshal(Secrets{SchemaVersion: 1, BasicAuthPassword: "pw"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"pw"`) {
		t.Errorf("marshalled secrets missing value: %s", data)
	}
}

func TestLoadSecretsFrom_Statuses(t *testing.T) {
	dir := t.TempDir()

	_, status, err := LoadSecretsFrom(filepath.Join(dir, "secrets.json"))
	if err != nil || status != SecretsMissing {
		t.Errorf("missing file: status = %v, err = %v", status, err)
	}

	corrupt := filepath.Join(dir, "corrupt.json")
	if err := os.WriteFile(corrupt, []byte("{"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, status, err = LoadSecretsFrom(corrupt)
	if err == nil || status != SecretsFallback {
		t.Errorf("corrupt file: status = %v, err = %v", status, err)
	}

	good := filepath.Join(dir, "good.json")
	if err := SaveSecretsTo(Secrets{BasicAuthUsername: "treasurer"}, good); err != nil {
		t.Fatalf("save: %v", err)
	}
	sec, status, err := LoadSecretsFrom(good)
	if err != nil || status != SecretsLoaded {
		t.Fatalf("good file: status = %v, err = %v", status, err)
	}
	if sec.BasicAuthUsername != "treasurer" {
		t.Errorf("username = %q", sec.BasicAuthUsername)
	}
}

func TestEnsureLanAuth(t *testing.T) {
	var sec Secrets

	updated, pw, err := EnsureLanAuth(&sec, false)
	if err != nil || updated || pw != "" {
		t.Errorf("lan disabled: updated = %v, pw = %q, err = %v", updated, pw, err)
	}

	updated, pw, err = EnsureLanAuth(&sec, true)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if !updated {
		t.Error("expected update")
	}
	if sec.BasicAuthUsername == "" || sec.BasicAuthPassword.IsEmpty() || sec.StreamSecret.IsEmpty() {
		t.Errorf("credentials not filled: %+v", sec.BasicAuthUsername)
	}
	if pw != sec.BasicAuthPassword.Value() {
		t.Error("generated password not returned")
	}

	// Second call keeps the existing credentials.
	before := sec
	updated, _, err = EnsureLanAuth(&sec, true)
	if err != nil || updated {
		t.Errorf("second call: updated = %v, err = %v", updated, err)
	}
	if sec != before {
		t.Error("credentials changed on second call")
	}
}

func TestGeneratePassword(t *testing.T) {
	pw, err := GeneratePassword(24)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(pw) != 24 {
		t.Errorf("len = %d, want 24", len(pw))
	}

	pw2, err := GeneratePassword(24)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if pw == pw2 {
		t.Error("two generated passwords are identical")
	}

	if _, err := GeneratePassword(0); err == nil {
		t.Error("expected error for zero length")
	}
}
