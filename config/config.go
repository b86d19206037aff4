package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "DOMAIN_MCP_"

// Config is the runtime configuration. Precedence, lowest first: defaults,
// YAML file, environment (including .env).
type Config struct {
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
	HTTPAddr string `yaml:"http_addr"`

	Resolver string `yaml:"resolver"` // doh or system
	DoHURL   string `yaml:"doh_url"`
	TLSPort  int    `yaml:"tls_port"`

	WhoisBinary    string            `yaml:"whois_binary"`
	MaxOutputBytes int               `yaml:"max_output_bytes"`
	RDAPServers    map[string]string `yaml:"rdap_servers"`

	Timeouts Timeouts `yaml:"timeouts"`
	Bulk     Bulk     `yaml:"bulk"`
}

type Timeouts struct {
	RDAP  time.Duration `yaml:"rdap"`
	Whois time.Duration `yaml:"whois"`
	DNS   time.Duration `yaml:"dns"`
	TLS   time.Duration `yaml:"tls"`
}

type Bulk struct {
	MaxDomains  int `yaml:"max_domains"`
	Concurrency int `yaml:"concurrency"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		LogLevel:       "info",
		HTTPAddr:       ":8080",
		Resolver:       "doh",
		DoHURL:         "https://cloudflare-dns.com/dns-query",
		TLSPort:        443,
		WhoisBinary:    "whois",
		MaxOutputBytes: 1 << 20,
		RDAPServers:    map[string]string{},
		Timeouts: Timeouts{
			RDAP:  10 * time.Second,
			Whois: 15 * time.Second,
			DNS:   5 * time.Second,
			TLS:   10 * time.Second,
		},
		Bulk: Bulk{
			MaxDomains:  100,
			Concurrency: 8,
		},
	}
}

// Load reads .env (if present), the YAML file at path (if set) and the
// environment, then validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Defaults()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from DOMAIN_MCP_* variables. LOG_LEVEL,
// LOG_FILE and PORT are honoured as unprefixed fallbacks.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(envPrefix + key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, key, err)
		}
		*dst = n
		return nil
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(envPrefix + key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, key, err)
		}
		*dst = d
		return nil
	}

	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup("LOG_FILE"); ok && v != "" {
		c.LogFile = v
	}
	if v, ok := lookup("PORT"); ok && v != "" {
		c.HTTPAddr = ":" + v
	}
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FILE", &c.LogFile)
	str("HTTP_ADDR", &c.HTTPAddr)
	str("RESOLVER", &c.Resolver)
	str("DOH_URL", &c.DoHURL)
	str("WHOIS_BINARY", &c.WhoisBinary)

	if v, ok := lookup(envPrefix + "RDAP_SERVERS"); ok && v != "" {
		// tld=url,tld=url
		for _, pair := range strings.Split(v, ",") {
			tld, url, found := strings.Cut(strings.TrimSpace(pair), "=")
			if !found || tld == "" || url == "" {
				return fmt.Errorf("%sRDAP_SERVERS: malformed entry %q", envPrefix, pair)
			}
			if c.RDAPServers == nil {
				c.RDAPServers = map[string]string{}
			}
			c.RDAPServers[tld] = url
		}
	}

	for key, dst := range map[string]*int{
		"TLS_PORT":         &c.TLSPort,
		"MAX_OUTPUT_BYTES": &c.MaxOutputBytes,
		"BULK_MAX":         &c.Bulk.MaxDomains,
		"BULK_CONCURRENCY": &c.Bulk.Concurrency,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}
	for key, dst := range map[string]*time.Duration{
		"RDAP_TIMEOUT":  &c.Timeouts.RDAP,
		"WHOIS_TIMEOUT": &c.Timeouts.Whois,
		"DNS_TIMEOUT":   &c.Timeouts.DNS,
		"TLS_TIMEOUT":   &c.Timeouts.TLS,
	} {
		if err := dur(key, dst); err != nil {
			return err
		}
	}
	return nil
}

// Validate rejects settings the backends cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Resolver {
	case "doh", "system":
	default:
		errs = append(errs, fmt.Errorf("resolver must be doh or system, got %q", c.Resolver))
	}
	if c.TLSPort < 1 || c.TLSPort > 65535 {
		errs = append(errs, fmt.Errorf("tls_port out of range: %d", c.TLSPort))
	}
	if c.Bulk.MaxDomains < 1 || c.Bulk.MaxDomains > 100 {
		errs = append(errs, fmt.Errorf("bulk.max_domains must be between 1 and 100, got %d", c.Bulk.MaxDomains))
	}
	if c.Bulk.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("bulk.concurrency must be positive, got %d", c.Bulk.Concurrency))
	}
	for name, d := range map[string]time.Duration{
		"rdap":  c.Timeouts.RDAP,
		"whois": c.Timeouts.Whois,
		"dns":   c.Timeouts.DNS,
		"tls":   c.Timeouts.TLS,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("timeouts.%s must be positive", name))
		}
	}
	return errors.Join(errs...)
}
