package internal

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/vigil/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestStoreConfig_RequiresIDColumn(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Store.Columns.ID = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("missing id column should fail")
	}
}

func TestStoreConfig_RequiresPath(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Store.Path = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("missing store path should fail")
	}
}

func TestFetchConfig_Invalid(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Fetch.WaitTimeout = 0
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "fetch") {
		t.Fatalf("err = %v, want fetch error", err)
	}
}

func TestGeocodeConfig_DisabledSkipsValidation(t *testing.T) {
	cfg := GeocodeConfig{Enabled: false, Retries: 99}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled geocoder should pass: %v", err)
	}
	cfg.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("enabled geocoder without timeout should fail")
	}
}

func TestGeocodeConfig_ArcGISOptions(t *testing.T) {
	opts := NewDefaultConfig().Geocode.ArcGISOptions()
	if opts.Attempts != 4 || opts.Timeout != 10*time.Second {
		t.Errorf("opts = %+v", opts)
	}
}

func TestAppConfig_LogFormat(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.App.LogFormat = "xml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown log format should fail")
	}
}

func TestLoadConfigFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("VIGIL_TEST_TOKEN", "s3cret")
	content := `
app:
  log_level: debug
  log_format: json
  http:
    port: 9090
store:
  path: ./master.csv
  summary_path: ./SUMMARY.md
fetch:
  timeout: 120s
  wait_timeout: 10s
geocode:
  enabled: false
auth:
  mode: token
  token: ${VIGIL_TEST_TOKEN}
`
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(p, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.LogLevel != slog.LevelDebug || cfg.App.HTTP.Port != 9090 {
		t.Errorf("app = %+v", cfg.App)
	}
	if cfg.Fetch.Timeout != 120*time.Second || cfg.Fetch.Prefix != "gvatemp" {
		t.Errorf("fetch = %+v", cfg.Fetch)
	}
	if cfg.Store.Columns.ID != "Incident ID" || cfg.Store.SummaryPath != "./SUMMARY.md" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Auth.Token != "s3cret" || !cfg.Auth.AuthEnabled() {
		t.Errorf("auth = %+v", cfg.Auth)
	}
}
