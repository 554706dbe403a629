// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

// Package config loads the server configuration from defaults, a YAML file,
// WARDEN_ environment variables and command-line flags, in increasing order of
// precedence.
package config

import (
	"fmt"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/wardenhq/warden/internal/auth"
	"github.com/wardenhq/warden/internal/logging"
)

// EnvPrefix prefixes every environment variable read by Load. Nested keys use
// a double underscore: WARDEN_JWT__SECRET sets jwt.secret.
const EnvPrefix = "WARDEN_"

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// MinSecretLength is the shortest accepted JWT signing secret.
const MinSecretLength = auth.MinSigningKeyLength

const redacted = "********"

// Config is the complete server configuration.
type Config struct {
	HTTP      HTTPConfig      `koanf:"http" yaml:"http"`
	Metrics   MetricsConfig   `koanf:"metrics" yaml:"metrics"`
	Log       LogConfig       `koanf:"log" yaml:"log"`
	Database  DatabaseConfig  `koanf:"database" yaml:"database"`
	JWT       JWTConfig       `koanf:"jwt" yaml:"jwt"`
	Tokens    TokensConfig    `koanf:"tokens" yaml:"tokens"`
	Mail      MailConfig      `koanf:"mail" yaml:"mail"`
	Redis     RedisConfig     `koanf:"redis" yaml:"redis"`
	RateLimit RateLimitConfig `koanf:"ratelimit" yaml:"ratelimit"`
	S3        S3Config        `koanf:"s3" yaml:"s3"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr string `koanf:"addr" yaml:"addr"`
	// PublicURL is the externally reachable base used in mailed links.
	PublicURL string `koanf:"public_url" yaml:"public_url"`
	// TrustedProxies lists the proxy addresses or CIDRs whose forwarding
	// headers are believed. Requests from any other peer are keyed on the
	// socket address.
	TrustedProxies []string `koanf:"trusted_proxies" yaml:"trusted_proxies"`
}

// TrustedProxyPrefixes parses TrustedProxies. A bare address is a single-host
// prefix.
func (h HTTPConfig) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(h.TrustedProxies))
	for _, raw := range h.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, oops.Code("CONFIG_INVALID").With("trusted_proxy", raw).Wrap(err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("trusted_proxy", raw).Wrap(err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// MetricsConfig configures the observability listener. Empty disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" yaml:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format" yaml:"format"`
	Level  string `koanf:"level" yaml:"level"`
}

// DatabaseConfig selects the persistence backend.
type DatabaseConfig struct {
	Driver  string `koanf:"driver" yaml:"driver"`
	URL     string `koanf:"url" yaml:"url"`
	MongoDB string `koanf:"mongo_db" yaml:"mongo_db"`
}

// JWTConfig configures bearer token signing.
type JWTConfig struct {
	Secret string        `koanf:"secret" yaml:"secret"`
	Expiry time.Duration `koanf:"expiry" yaml:"expiry"`
}

// TokensConfig configures verification and reset tokens.
type TokensConfig struct {
	Throttle         time.Duration `koanf:"throttle" yaml:"throttle"`
	StrictRedemption bool          `koanf:"strict_redemption" yaml:"strict_redemption"`
}

// MailConfig configures SMTP delivery. An empty host logs mail instead.
type MailConfig struct {
	Host     string `koanf:"host" yaml:"host"`
	Port     int    `koanf:"port" yaml:"port"`
	Username string `koanf:"username" yaml:"username"`
	Password string `koanf:"password" yaml:"password"`
	From     string `koanf:"from" yaml:"from"`
}

// RedisConfig configures the rate limiter store. Empty addr disables limiting.
type RedisConfig struct {
	Addr string `koanf:"addr" yaml:"addr"`
}

// RateLimitConfig configures the per-IP limiter.
type RateLimitConfig struct {
	Requests int           `koanf:"requests" yaml:"requests"`
	Window   time.Duration `koanf:"window" yaml:"window"`
}

// S3Config configures avatar storage. Empty bucket disables uploads.
type S3Config struct {
	Bucket    string `koanf:"bucket" yaml:"bucket"`
	Region    string `koanf:"region" yaml:"region"`
	Endpoint  string `koanf:"endpoint" yaml:"endpoint"`
	AccessKey string `koanf:"access_key" yaml:"access_key"`
	SecretKey string `koanf:"secret_key" yaml:"secret_key"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		HTTP:      HTTPConfig{Addr: ":3000", PublicURL: "http://localhost:3000"},
		Metrics:   MetricsConfig{Addr: "127.0.0.1:9100"},
		Log:       LogConfig{Format: "json", Level: "info"},
		Database:  DatabaseConfig{Driver: DriverPostgres, MongoDB: "warden"},
		JWT:       JWTConfig{Expiry: time.Hour},
		Tokens:    TokensConfig{Throttle: 15 * time.Minute},
		Mail:      MailConfig{Port: 587, From: "Warden <noreply@localhost>"},
		RateLimit: RateLimitConfig{Requests: 100, Window: 15 * time.Minute},
	}
}

func defaultValues() map[string]any {
	d := Default()
	return map[string]any{
		"http.addr":                d.HTTP.Addr,
		"http.public_url":          d.HTTP.PublicURL,
		"metrics.addr":             d.Metrics.Addr,
		"log.format":               d.Log.Format,
		"log.level":                d.Log.Level,
		"database.driver":          d.Database.Driver,
		"database.mongo_db":        d.Database.MongoDB,
		"jwt.expiry":               d.JWT.Expiry,
		"tokens.throttle":          d.Tokens.Throttle,
		"tokens.strict_redemption": d.Tokens.StrictRedemption,
		"mail.port":                d.Mail.Port,
		"mail.from":                d.Mail.From,
		"ratelimit.requests":       d.RateLimit.Requests,
		"ratelimit.window":         d.RateLimit.Window,
	}
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"http-addr":         "http.addr",
	"public-url":        "http.public_url",
	"metrics-addr":      "metrics.addr",
	"log-format":        "log.format",
	"log-level":         "log.level",
	"database-driver":   "database.driver",
	"database-url":      "database.url",
	"redis-addr":        "redis.addr",
	"strict-redemption": "tokens.strict_redemption",
	"trusted-proxies":   "http.trusted_proxies",
}

// RegisterFlags adds the configuration flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("http-addr", d.HTTP.Addr, "HTTP API listen address")
	fs.String("public-url", d.HTTP.PublicURL, "public base URL used in mailed links")
	fs.String("metrics-addr", d.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	fs.String("log-format", d.Log.Format, "log format (json or text)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.String("database-driver", d.Database.Driver, "database driver (postgres or mongo)")
	fs.String("database-url", "", "database connection URL")
	fs.String("redis-addr", "", "redis address for rate limiting (empty = disabled)")
	fs.StringSlice("trusted-proxies", nil, "proxy addresses or CIDRs allowed to set X-Forwarded-For")
	fs.Bool("strict-redemption", d.Tokens.StrictRedemption, "reject expired tokens and make them single-use")
}

// Load builds the configuration. path may be empty; fs may be nil.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	for key, value := range defaultValues() {
		if err := k.Set(key, value); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("key", key).Wrap(err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "unmarshal").Wrap(err)
	}
	return &cfg, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var problems []string
	add := func(p string) { problems = append(problems, p) }

	if c.HTTP.Addr == "" {
		add("http.addr is required")
	}
	if u, err := url.Parse(c.HTTP.PublicURL); err != nil || u.Scheme == "" || u.Host == "" {
		add("http.public_url must be an absolute URL")
	}
	if _, err := c.HTTP.TrustedProxyPrefixes(); err != nil {
		add("http.trusted_proxies must hold IP addresses or CIDR prefixes")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		add("log.level must be debug, info, warn or error")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		add("log.format must be json or text")
	}
	switch c.Database.Driver {
	case DriverPostgres:
	case DriverMongo:
		if c.Database.MongoDB == "" {
			add("database.mongo_db is required for the mongo driver")
		}
	default:
		add("database.driver must be postgres or mongo")
	}
	if c.Database.URL == "" {
		add("database.url is required")
	}
	if len(c.JWT.Secret) < MinSecretLength {
		add(fmt.Sprintf("jwt.secret must be at least %d characters", MinSecretLength))
	}
	if c.JWT.Expiry <= 0 {
		add("jwt.expiry must be positive")
	}
	if c.Tokens.Throttle <= 0 {
		add("tokens.throttle must be positive")
	}
	if c.Mail.Host != "" && (c.Mail.Port <= 0 || c.Mail.Port > 65535) {
		add("mail.port must be between 1 and 65535")
	}
	if c.Mail.Host != "" && c.Mail.From == "" {
		add("mail.from is required when mail.host is set")
	}
	if c.Redis.Addr != "" && (c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0) {
		add("ratelimit.requests and ratelimit.window must be positive")
	}
	if (c.S3.Bucket == "") != (c.S3.Region == "") {
		add("s3.bucket and s3.region must be set together")
	}

	if len(problems) > 0 {
		return oops.Code("CONFIG_INVALID").
			With("problems", problems).
			Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Redacted returns a copy with secrets masked.
func (c Config) Redacted() Config {
	mask := func(s *string) {
		if *s != "" {
			*s = redacted
		}
	}
	mask(&c.JWT.Secret)
	mask(&c.Mail.Password)
	mask(&c.S3.SecretKey)
	c.Database.URL = redactURL(c.Database.URL)
	c.Redis.Addr = redactURL(c.Redis.Addr)
	return c
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), redacted)
	}
	return u.String()
}
