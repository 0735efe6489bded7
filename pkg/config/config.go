package config

import "time"

// CrawlConfig holds the settings of the frontier crawler for one domain
type CrawlConfig struct {
	RequestDelay    time.Duration `yaml:"request_delay"`    // Politeness gap between page fetches of the extraction stage
	Timeout         time.Duration `yaml:"timeout"`          // Per-fetch timeout
	BypassExclusion bool          `yaml:"bypass_exclusion"` // Ignore robots.txt; default false
	MaxDepth        int           `yaml:"max_depth"`
	MaxPages        int           `yaml:"max_pages"`
	PacingInterval  time.Duration `yaml:"pacing_interval"` // Minimum gap between crawler request starts
	MaxBodyBytes    int64         `yaml:"max_body_bytes,omitempty"`
}

// VerificationConfig holds the settings of the verification engine
type VerificationConfig struct {
	Timeout    time.Duration `yaml:"timeout"`              // Per MX lookup
	MockDNS    bool          `yaml:"mock_dns"`             // Assume MX present, no network
	Nameserver string        `yaml:"nameserver,omitempty"` // host:port, empty = system resolver
}

// DomainConfig holds optional per-domain overrides of the crawl settings
type DomainConfig struct {
	BypassExclusion *bool `yaml:"bypass_exclusion,omitempty"`
	MaxDepth        *int  `yaml:"max_depth,omitempty"`
	MaxPages        *int  `yaml:"max_pages,omitempty"`
}

// KafkaConfig enables the Kafka result publisher when Brokers is non-empty
type KafkaConfig struct {
	Brokers []string `yaml:"brokers,omitempty"`
	Topic   string   `yaml:"topic,omitempty"`
}

// RedisConfig enables the Redis status sink when Addr is non-empty
type RedisConfig struct {
	Addr   string        `yaml:"addr,omitempty"`
	Prefix string        `yaml:"prefix,omitempty"`
	TTL    time.Duration `yaml:"ttl,omitempty"`
}

// AppConfig holds the global application configuration
type AppConfig struct {
	Crawl              CrawlConfig             `yaml:"crawl"`
	Verification       VerificationConfig      `yaml:"verification"`
	MaxWorkers         int                     `yaml:"max_workers"`
	MaxEmailsPerPage   int                     `yaml:"max_emails_per_page"`
	MaxTotalEmails     int                     `yaml:"max_total_emails"`
	MaxParallelDomains int                     `yaml:"max_parallel_domains"`
	MaxRequestsPerHost int                     `yaml:"max_requests_per_host"`
	StateDir           string                  `yaml:"state_dir,omitempty"`  // Badger result store; empty disables persistence
	OutputDir          string                  `yaml:"output_dir,omitempty"` // Report exports
	TablesFile         string                  `yaml:"tables_file,omitempty"`
	HTTPClientSettings HTTPClientConfig        `yaml:"http_client_settings,omitempty"`
	Kafka              KafkaConfig             `yaml:"kafka,omitempty"`
	Redis              RedisConfig             `yaml:"redis,omitempty"`
	Domains            map[string]DomainConfig `yaml:"domains,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
}

// GetEffectiveCrawl returns the crawl settings for domain with any per-domain overrides applied
func GetEffectiveCrawl(domain string, appCfg AppConfig) CrawlConfig {
	eff := appCfg.Crawl
	override, ok := appCfg.Domains[domain]
	if !ok {
		return eff
	}
	if override.BypassExclusion != nil {
		eff.BypassExclusion = *override.BypassExclusion
	}
	if override.MaxDepth != nil {
		eff.MaxDepth = *override.MaxDepth
	}
	if override.MaxPages != nil && *override.MaxPages > 0 {
		eff.MaxPages = *override.MaxPages
	}
	return eff
}

// PersistenceEnabled reports whether results should be written to the badger store
func (c *AppConfig) PersistenceEnabled() bool {
	return c.StateDir != ""
}
