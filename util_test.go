package fileconf

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestConvertCase(t *testing.T) {
	tests := []struct {
		name       string
		in         string
		convention NamingConvention
		want       string
	}{
		{name: "camel to snake", in: "ApiKey", convention: SnakeCase, want: "api_key"},
		{name: "single word", in: "Timeout", convention: SnakeCase, want: "timeout"},
		{name: "all upper lowercased whole", in: "TIMEOUT", convention: SnakeCase, want: "timeout"},
		{name: "digits do not split", in: "ApiKey2FA", convention: SnakeCase, want: "api_key2fa"},
		{name: "screaming snake", in: "ApiKey", convention: ScreamingSnakeCase, want: "API_KEY"},
		{name: "kebab", in: "ServerName", convention: KebabCase, want: "server-name"},
		{name: "already lower", in: "name", convention: SnakeCase, want: "name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := convertCase(tt.in, tt.convention); got != tt.want {
				t.Errorf("convertCase(%q, %v) = %q, want %q", tt.in, tt.convention, got, tt.want)
			}
		})
	}
}

func TestEnsurePath(t *testing.T) {
	td := t.TempDir()

	t.Run("creates missing parents", func(t *testing.T) {
		p := filepath.Join(td, "a", "b", "conf.yml")
		if err := EnsurePath(p); err != nil {
			t.Fatalf("EnsurePath: %v", err)
		}
		info, err := os.Stat(filepath.Dir(p))
		if err != nil || !info.IsDir() {
			t.Errorf("parent directory not created: %v", err)
		}
	})

	t.Run("existing file is fine", func(t *testing.T) {
		p := filepath.Join(td, "existing.yml")
		if err := os.WriteFile(p, []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
		if err := EnsurePath(p); err != nil {
			t.Errorf("EnsurePath on existing file: %v", err)
		}
	})

	t.Run("path occupied by a directory", func(t *testing.T) {
		p := filepath.Join(td, "iamadir")
		if err := os.Mkdir(p, 0o700); err != nil {
			t.Fatal(err)
		}
		if err := EnsurePath(p); !errors.Is(err, ErrInaccessiblePath) {
			t.Errorf("EnsurePath on directory = %v, want ErrInaccessiblePath", err)
		}
	})
}

func TestWriteFileAtomic(t *testing.T) {
	td := t.TempDir()
	p := filepath.Join(td, "out.yml")

	if err := writeFileAtomic(p, []byte("first\n")); err != nil {
		t.Fatalf("writeFileAtomic: %v", err)
	}
	if err := writeFileAtomic(p, []byte("second\n")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "second\n" {
		t.Errorf("contents = %q, want second", data)
	}

	// No temp files may be left behind.
	entries, err := os.ReadDir(td)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries after writes, want just the target", len(entries))
	}
}

func TestBuildEnvName(t *testing.T) {
	tests := []struct {
		prefix   string
		segments []string
		want     string
	}{
		{prefix: "", segments: nil, want: ""},
		{prefix: "APP", segments: nil, want: "APP"},
		{prefix: "", segments: []string{"PORT"}, want: "PORT"},
		{prefix: "APP", segments: []string{"PORT"}, want: "APP_PORT"},
		{prefix: "APP", segments: []string{"DB", "HOST"}, want: "APP_DB_HOST"},
	}
	for _, tt := range tests {
		if got := buildEnvName(tt.prefix, tt.segments); got != tt.want {
			t.Errorf("buildEnvName(%q, %v) = %q, want %q", tt.prefix, tt.segments, got, tt.want)
		}
	}
}

type envExtra struct {
	Token string
}

type envRoot struct {
	Name    string
	Port    int `env:"PORT"`
	Timeout time.Duration
	Debug   bool
	Rate    float64
	Skip    string `env:"-"`
	Nested  struct {
		Level int
	}
	Extra *envExtra
	Token *string
	Grace *time.Duration
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("APP_NAME", "bob")
	t.Setenv("APP_PORT", "99")
	t.Setenv("APP_TIMEOUT", "45s")
	t.Setenv("APP_DEBUG", "true")
	t.Setenv("APP_RATE", "1.5")
	t.Setenv("APP_SKIP", "nope")
	t.Setenv("APP_NESTED_LEVEL", "3")
	t.Setenv("APP_EXTRA_TOKEN", "tok")
	t.Setenv("APP_TOKEN", "secret")
	t.Setenv("APP_GRACE", "90s")

	cfg := envRoot{Skip: "original"}
	applyEnv(reflect.ValueOf(&cfg).Elem(), "APP", nil)

	if cfg.Name != "bob" {
		t.Errorf("Name = %q", cfg.Name)
	}
	if cfg.Port != 99 {
		t.Errorf("Port = %d", cfg.Port)
	}
	if cfg.Timeout != 45*time.Second {
		t.Errorf("Timeout = %v", cfg.Timeout)
	}
	if !cfg.Debug {
		t.Error("Debug = false")
	}
	if cfg.Rate != 1.5 {
		t.Errorf("Rate = %v", cfg.Rate)
	}
	if cfg.Skip != "original" {
		t.Errorf("Skip = %q, want env:\"-\" to exclude it", cfg.Skip)
	}
	if cfg.Nested.Level != 3 {
		t.Errorf("Nested.Level = %d", cfg.Nested.Level)
	}
	if cfg.Extra == nil || cfg.Extra.Token != "tok" {
		t.Errorf("Extra = %+v, want allocated with Token tok", cfg.Extra)
	}
	if cfg.Token == nil || *cfg.Token != "secret" {
		t.Errorf("Token = %v, want allocated pointer to secret", cfg.Token)
	}
	if cfg.Grace == nil || *cfg.Grace != 90*time.Second {
		t.Errorf("Grace = %v, want allocated pointer to 90s", cfg.Grace)
	}
}

func TestApplyEnvLeavesDefaults(t *testing.T) {
	cfg := envRoot{Name: "preset", Port: 8080}
	applyEnv(reflect.ValueOf(&cfg).Elem(), "UNSET_PREFIX_FOR_TEST", nil)

	if cfg.Name != "preset" || cfg.Port != 8080 {
		t.Errorf("cfg = %+v, want presets untouched", cfg)
	}
	if cfg.Extra != nil {
		t.Errorf("Extra allocated with no matching variables: %+v", cfg.Extra)
	}
	if cfg.Token != nil {
		t.Errorf("Token allocated with no matching variable: %v", cfg.Token)
	}
}

func TestApplyEnvIgnoresMalformedValues(t *testing.T) {
	t.Setenv("APP_PORT", "not-a-number")
	t.Setenv("APP_DEBUG", "not-a-bool")
	t.Setenv("APP_GRACE", "not-a-duration")

	cfg := envRoot{Port: 8080}
	applyEnv(reflect.ValueOf(&cfg).Elem(), "APP", nil)

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want malformed value ignored", cfg.Port)
	}
	if cfg.Debug {
		t.Error("Debug set from a malformed value")
	}
	if cfg.Grace != nil {
		t.Errorf("Grace = %v, want pointer left nil on a malformed value", cfg.Grace)
	}
}
