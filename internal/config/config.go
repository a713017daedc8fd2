package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Encode   EncodeConfig `mapstructure:"encode"`
	Server   ServerConfig `mapstructure:"server"`
	LogLevel string       `mapstructure:"log_level"`
}

type EncodeConfig struct {
	Format   string `mapstructure:"format"`
	Workers  int    `mapstructure:"workers"`
	Progress bool   `mapstructure:"progress"`
}

type ServerConfig struct {
	ListenAddr      string `mapstructure:"listen_addr"`
	Workers         int    `mapstructure:"workers"`
	MaxBodyBytes    int64  `mapstructure:"max_body_bytes"`
	RequestTimeout  int    `mapstructure:"request_timeout"`  // seconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // seconds
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Encode: EncodeConfig{
			Format:   "bcstm",
			Workers:  0,
			Progress: false,
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			Workers:         2,
			MaxBodyBytes:    64 << 20,
			RequestTimeout:  60,
			ShutdownTimeout: 30,
		},
		LogLevel: "info",
	}
}

// flagKeys maps flag names to config keys. Flags missing from a command's
// flag set are skipped.
var flagKeys = []struct{ flag, key string }{
	{"format", "encode.format"},
	{"workers", "encode.workers"},
	{"progress", "encode.progress"},
	{"listen", "server.listen_addr"},
	{"server-workers", "server.workers"},
	{"server-max-body-bytes", "server.max_body_bytes"},
	{"server-request-timeout", "server.request_timeout"},
	{"server-shutdown-timeout", "server.shutdown_timeout"},
	{"log-level", "log_level"},
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
}

func RegisterEncodeFlags(fs *pflag.FlagSet, defaults Config) {
	fs.StringP("format", "f", defaults.Encode.Format, "Output container (brstm|bcstm|bcwav)")
	fs.Int("workers", defaults.Encode.Workers, "Goroutines used per encode (0 = GOMAXPROCS)")
	fs.Bool("progress", defaults.Encode.Progress, "Show a progress bar on stderr")
}

func RegisterServerFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("listen", defaults.Server.ListenAddr, "HTTP listen address")
	fs.Int("server-workers", defaults.Server.Workers, "Concurrent encode requests")
	fs.Int64("server-max-body-bytes", defaults.Server.MaxBodyBytes, "Largest accepted request body")
	fs.Int("server-request-timeout", defaults.Server.RequestTimeout, "Per-request timeout in seconds")
	fs.Int("server-shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown timeout in seconds")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("DSPSTREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("dspstream")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("encode.format", c.Encode.Format)
	v.SetDefault("encode.workers", c.Encode.Workers)
	v.SetDefault("encode.progress", c.Encode.Progress)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.workers", c.Server.Workers)
	v.SetDefault("server.max_body_bytes", c.Server.MaxBodyBytes)
	v.SetDefault("server.request_timeout", c.Server.RequestTimeout)
	v.SetDefault("server.shutdown_timeout", c.Server.ShutdownTimeout)
	v.SetDefault("log_level", c.LogLevel)
}

// bindFlags binds the flat flag names to their nested keys. A flag only
// overrides the config file and environment when it was set explicitly.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, fk := range flagKeys {
		f := fs.Lookup(fk.flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(fk.key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", fk.flag, err)
		}
	}
	return nil
}
