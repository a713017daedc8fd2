package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

// fakeBinder wraps a pflag.FlagSet to satisfy the flagBinder interface.
type fakeBinder struct {
	fs *pflag.FlagSet
}

func (f *fakeBinder) Flags() *pflag.FlagSet { return f.fs }

func newFlagSet(defaults Config) *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)
	RegisterEncodeFlags(fs, defaults)
	RegisterServerFlags(fs, defaults)
	return fs
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dspstream.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Encode.Format != "bcstm" {
		t.Errorf("Encode.Format = %q; want %q", cfg.Encode.Format, "bcstm")
	}
	if cfg.Encode.Workers != 0 {
		t.Errorf("Encode.Workers = %d; want 0", cfg.Encode.Workers)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("Server.ListenAddr = %q; want %q", cfg.Server.ListenAddr, ":8080")
	}
	if cfg.Server.Workers != 2 {
		t.Errorf("Server.Workers = %d; want 2", cfg.Server.Workers)
	}
	if cfg.Server.MaxBodyBytes != 64<<20 {
		t.Errorf("Server.MaxBodyBytes = %d; want %d", cfg.Server.MaxBodyBytes, 64<<20)
	}
	if cfg.Server.RequestTimeout != 60 || cfg.Server.ShutdownTimeout != 30 {
		t.Errorf("timeouts = %d/%d; want 60/30", cfg.Server.RequestTimeout, cfg.Server.ShutdownTimeout)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "info")
	}
}

func TestRegisterFlags(t *testing.T) {
	fs := newFlagSet(DefaultConfig())

	checks := []struct {
		flag string
		want string
	}{
		{"format", "bcstm"},
		{"workers", "0"},
		{"progress", "false"},
		{"listen", ":8080"},
		{"server-workers", "2"},
		{"log-level", "info"},
	}
	for _, c := range checks {
		f := fs.Lookup(c.flag)
		if f == nil {
			t.Errorf("flag %q not registered", c.flag)
			continue
		}
		if f.DefValue != c.want {
			t.Errorf("flag %q default = %q; want %q", c.flag, f.DefValue, c.want)
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{
		Cmd:      &fakeBinder{fs: newFlagSet(defaults)},
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg != defaults {
		t.Errorf("Load() = %+v; want %+v", cfg, defaults)
	}
}

func TestLoad_FlagOverride(t *testing.T) {
	defaults := DefaultConfig()
	fs := newFlagSet(defaults)
	err := fs.Parse([]string{
		"--format=bcwav",
		"--workers=8",
		"--listen=:9000",
		"--log-level=debug",
	})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	cfg, err := Load(LoadOptions{Cmd: &fakeBinder{fs: fs}, Defaults: defaults})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Encode.Format != "bcwav" {
		t.Errorf("Encode.Format = %q; want %q", cfg.Encode.Format, "bcwav")
	}
	if cfg.Encode.Workers != 8 {
		t.Errorf("Encode.Workers = %d; want 8", cfg.Encode.Workers)
	}
	if cfg.Server.ListenAddr != ":9000" {
		t.Errorf("Server.ListenAddr = %q; want %q", cfg.Server.ListenAddr, ":9000")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "debug")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("DSPSTREAM_LOG_LEVEL", "warn")
	t.Setenv("DSPSTREAM_SERVER_LISTEN_ADDR", ":9999")
	t.Setenv("DSPSTREAM_ENCODE_FORMAT", "brstm")

	cfg, err := Load(LoadOptions{Defaults: DefaultConfig()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "warn")
	}
	if cfg.Server.ListenAddr != ":9999" {
		t.Errorf("Server.ListenAddr = %q; want %q", cfg.Server.ListenAddr, ":9999")
	}
	if cfg.Encode.Format != "brstm" {
		t.Errorf("Encode.Format = %q; want %q", cfg.Encode.Format, "brstm")
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	path := writeConfig(t, `
log_level: error
encode:
  format: bcwav
  progress: true
server:
  workers: 16
  listen_addr: ":7777"
  max_body_bytes: 1024
`)

	defaults := DefaultConfig()
	cfg, err := Load(LoadOptions{
		Cmd:        &fakeBinder{fs: newFlagSet(defaults)},
		ConfigFile: path,
		Defaults:   defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "error")
	}
	if cfg.Encode.Format != "bcwav" || !cfg.Encode.Progress {
		t.Errorf("Encode = %+v; want bcwav with progress", cfg.Encode)
	}
	if cfg.Server.Workers != 16 || cfg.Server.ListenAddr != ":7777" || cfg.Server.MaxBodyBytes != 1024 {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Server.RequestTimeout != defaults.Server.RequestTimeout {
		t.Errorf("unset key RequestTimeout = %d; want default %d", cfg.Server.RequestTimeout, defaults.Server.RequestTimeout)
	}
}

func TestLoad_FlagBeatsConfigFile(t *testing.T) {
	path := writeConfig(t, "encode:\n  format: bcwav\n")

	defaults := DefaultConfig()
	fs := newFlagSet(defaults)
	if err := fs.Parse([]string{"--format=brstm"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	cfg, err := Load(LoadOptions{Cmd: &fakeBinder{fs: fs}, ConfigFile: path, Defaults: defaults})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Encode.Format != "brstm" {
		t.Errorf("Encode.Format = %q; want %q", cfg.Encode.Format, "brstm")
	}
}

func TestLoad_ConfigFileMissing(t *testing.T) {
	_, err := Load(LoadOptions{
		ConfigFile: filepath.Join(t.TempDir(), "nope.yaml"),
		Defaults:   DefaultConfig(),
	})
	if err == nil {
		t.Fatal("Load() with missing explicit config file: want error")
	}
}

func TestLoad_ConfigFileMalformed(t *testing.T) {
	path := writeConfig(t, "encode: [unterminated\n")

	_, err := Load(LoadOptions{ConfigFile: path, Defaults: DefaultConfig()})
	if err == nil {
		t.Fatal("Load() with malformed config: want error")
	}
}
