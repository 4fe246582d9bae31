// Package config loads figma-auto settings from .figma-auto/config.yaml,
// the environment and command-line flags, in increasing precedence.
package config

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ghkdsigm/figma-auto/internal/figma"
	"github.com/ghkdsigm/figma-auto/internal/ingest"
)

// Dir and FileName locate the project configuration.
const (
	Dir      = ".figma-auto"
	FileName = "config.yaml"
	// EnvPrefix prefixes every automatically bound variable.
	EnvPrefix = "FIGMA_AUTO"
)

// ErrNoToken is returned when an API call is needed but no token is set.
var ErrNoToken = figma.ErrNoToken

// Config is the decoded configuration.
type Config struct {
	Figma        FigmaConfig `mapstructure:"figma"`
	DesignSystem string      `mapstructure:"design_system"`
	Heuristics   string      `mapstructure:"heuristics"`
	Policy       string      `mapstructure:"policy"`
	Target       string      `mapstructure:"target"`
	WorkDir      string      `mapstructure:"work_dir"`
	Log          LogConfig   `mapstructure:"log"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// FigmaConfig configures the API client and subtree reconstruction.
type FigmaConfig struct {
	Token             string        `mapstructure:"token"`
	APIBase           string        `mapstructure:"api_base"`
	Depth             int           `mapstructure:"depth"`
	ExpandRounds      int           `mapstructure:"expand_rounds"`
	ExpandMaxNodes    int           `mapstructure:"expand_max_nodes"`
	BatchSize         int           `mapstructure:"batch_size"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
	CacheMax          int           `mapstructure:"cache_max"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Defaults returns the default value of every key.
func Defaults() map[string]any {
	return map[string]any{
		"figma.api_base":            figma.DefaultAPIBase,
		"figma.depth":               ingest.DefaultDepth,
		"figma.expand_rounds":       ingest.DefaultRounds,
		"figma.expand_max_nodes":    ingest.DefaultMaxNodes,
		"figma.batch_size":          ingest.DefaultBatchSize,
		"figma.cache_ttl":           5 * time.Minute,
		"figma.cache_max":           50,
		"figma.requests_per_minute": 0,
		"figma.timeout":             60 * time.Second,
		"design_system":             "",
		"heuristics":                "",
		"policy":                    "TOLERANT",
		"target":                    "nuxt",
		"work_dir":                  Dir + "/work",
		"log.level":                 "info",
		"log.format":                "console",
	}
}

// explicitEnv lists variables bound besides the FIGMA_AUTO_ ones.
var explicitEnv = map[string][]string{
	"figma.token":            {"FIGMA_TOKEN", "FIGMA_ACCESS_TOKEN"},
	"figma.expand_rounds":    {"FIGMA_EXPAND_ROUNDS"},
	"figma.expand_max_nodes": {"FIGMA_EXPAND_MAX_NODES"},
	"figma.cache_ttl":        {"FIGMA_CACHE_TTL"},
	"figma.cache_max":        {"FIGMA_CACHE_MAX"},
}

// New returns a viper instance with defaults and environment bindings,
// merged with configFile or, when that is empty, with
// projectDir/.figma-auto/config.yaml if it exists.
func New(projectDir, configFile string) (*viper.Viper, error) {
	v := viper.New()
	for k, val := range Defaults() {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range explicitEnv {
		args := append([]string{key, EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := v.BindEnv(args...); err != nil {
			return nil, errors.Wrapf(err, "binding %s", key)
		}
	}

	path := configFile
	if path == "" {
		path = filepath.Join(projectDir, Dir, FileName)
		if _, err := os.Stat(path); err != nil {
			return v, nil
		}
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	return v, nil
}

// Decode unmarshals v into a Config.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	cfg.File = v.ConfigFileUsed()
	return &cfg, nil
}

// Load is New followed by Decode.
func Load(projectDir, configFile string) (*Config, error) {
	v, err := New(projectDir, configFile)
	if err != nil {
		return nil, err
	}
	return Decode(v)
}

// RequireToken returns ErrNoToken with a hint when no token is set.
func (c *Config) RequireToken() error {
	if c.Figma.Token != "" {
		return nil
	}
	return errors.WithHint(ErrNoToken,
		"set FIGMA_TOKEN or figma.token in "+filepath.Join(Dir, FileName)+", or pass --input with a local export")
}

// FigmaOptions converts the figma section into client options.
func (c *Config) FigmaOptions(reg prometheus.Registerer, logger *zap.Logger) figma.Options {
	opts := figma.Options{
		Token:             c.Figma.Token,
		BaseURL:           c.Figma.APIBase,
		RequestsPerMinute: c.Figma.RequestsPerMinute,
		CacheSize:         c.Figma.CacheMax,
		CacheTTL:          c.Figma.CacheTTL,
		Registerer:        reg,
		Logger:            logger,
	}
	if c.Figma.Timeout > 0 {
		opts.HTTPClient = &http.Client{Timeout: c.Figma.Timeout}
	}
	return opts
}

// WriteDefault writes a config file holding the defaults into projectDir
// and returns its path. The token is never written. An existing file is
// left alone and reported with os.ErrExist.
func WriteDefault(projectDir string) (string, error) {
	dir := filepath.Join(projectDir, Dir)
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil {
		return path, errors.Wrapf(os.ErrExist, "config %s", path)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrapf(err, "creating %s", dir)
	}

	nested := map[string]any{}
	for key, val := range Defaults() {
		if d, ok := val.(time.Duration); ok {
			val = d.String()
		}
		parts := strings.Split(key, ".")
		m := nested
		for _, p := range parts[:len(parts)-1] {
			sub, ok := m[p].(map[string]any)
			if !ok {
				sub = map[string]any{}
				m[p] = sub
			}
			m = sub
		}
		m[parts[len(parts)-1]] = val
	}
	data, err := yaml.Marshal(nested)
	if err != nil {
		return "", errors.Wrap(err, "encoding config")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", errors.Wrapf(err, "writing %s", path)
	}
	return path, nil
}
