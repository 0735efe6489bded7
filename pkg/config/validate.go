package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Sriram-PR/emailscope/pkg/utils"
)

// Default returns the configuration used when no config file is given.
// A loaded YAML file is unmarshalled over this value.
func Default() AppConfig {
	return AppConfig{
		Crawl: CrawlConfig{
			RequestDelay:    500 * time.Millisecond,
			Timeout:         10 * time.Second,
			BypassExclusion: false,
			MaxDepth:        2,
			MaxPages:        30,
			PacingInterval:  800 * time.Millisecond,
			MaxBodyBytes:    10 << 20,
		},
		Verification: VerificationConfig{
			Timeout: 1 * time.Second,
		},
		MaxWorkers:         5,
		MaxEmailsPerPage:   50,
		MaxTotalEmails:     100,
		MaxParallelDomains: 2,
		MaxRequestsPerHost: 2,
		OutputDir:          "./emailscope_output",
	}
}

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	cw, err := c.Crawl.validate()
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, cw...)

	if c.Verification.Timeout <= 0 {
		warnings = append(warnings, "verification.timeout should be > 0, defaulting to 1s")
		c.Verification.Timeout = 1 * time.Second
	}

	if c.MaxWorkers <= 0 {
		warnings = append(warnings, "max_workers should be > 0, defaulting to 5")
		c.MaxWorkers = 5
	}
	if c.MaxEmailsPerPage <= 0 {
		warnings = append(warnings, "max_emails_per_page should be > 0, defaulting to 50")
		c.MaxEmailsPerPage = 50
	}
	if c.MaxTotalEmails <= 0 {
		warnings = append(warnings, "max_total_emails should be > 0, defaulting to 100")
		c.MaxTotalEmails = 100
	}
	if c.MaxParallelDomains <= 0 {
		warnings = append(warnings, "max_parallel_domains should be > 0, defaulting to 2")
		c.MaxParallelDomains = 2
	}
	if c.MaxRequestsPerHost <= 0 {
		warnings = append(warnings, "max_requests_per_host should be > 0, defaulting to 2")
		c.MaxRequestsPerHost = 2
	}
	if c.OutputDir == "" {
		c.OutputDir = "./emailscope_output"
	}

	c.validateHTTPClientSettings()

	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		warnings = append(warnings, "kafka.brokers set but kafka.topic is empty, defaulting to 'emailscope.results'")
		c.Kafka.Topic = "emailscope.results"
	}
	if c.Redis.Addr != "" {
		if c.Redis.Prefix == "" {
			c.Redis.Prefix = "emailscope:job:"
		}
		if c.Redis.TTL <= 0 {
			c.Redis.TTL = 24 * time.Hour
		}
	}

	for domain, override := range c.Domains {
		if strings.TrimSpace(domain) == "" {
			return nil, fmt.Errorf("%w: domains entry with empty key", utils.ErrConfigValidation)
		}
		if override.MaxDepth != nil && *override.MaxDepth < 0 {
			return nil, fmt.Errorf("%w: domain '%s' has negative max_depth", utils.ErrConfigValidation, domain)
		}
		if override.MaxPages != nil && *override.MaxPages < 0 {
			return nil, fmt.Errorf("%w: domain '%s' has negative max_pages", utils.ErrConfigValidation, domain)
		}
	}

	return warnings, nil
}

// validate applies crawl defaults; a negative page ceiling is fatal
func (c *CrawlConfig) validate() (warnings []string, err error) {
	if c.MaxPages < 0 {
		return nil, fmt.Errorf("%w: crawl.max_pages cannot be negative (%d)", utils.ErrConfigValidation, c.MaxPages)
	}
	if c.MaxPages == 0 {
		warnings = append(warnings, "crawl.max_pages not specified, defaulting to 30")
		c.MaxPages = 30
	}
	if c.MaxDepth < 0 {
		warnings = append(warnings, "crawl.max_depth cannot be negative, setting to 0 (seed page only)")
		c.MaxDepth = 0
	}
	if c.Timeout <= 0 {
		warnings = append(warnings, "crawl.timeout should be > 0, defaulting to 10s")
		c.Timeout = 10 * time.Second
	}
	if c.RequestDelay < 0 {
		warnings = append(warnings, "crawl.request_delay cannot be negative, setting to 0")
		c.RequestDelay = 0
	}
	if c.PacingInterval < 0 {
		warnings = append(warnings, "crawl.pacing_interval cannot be negative, setting to 0")
		c.PacingInterval = 0
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 10 << 20
	}
	if c.BypassExclusion {
		warnings = append(warnings, "crawl.bypass_exclusion is enabled: robots.txt will be ignored")
	}
	return warnings, nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 45 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 2
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}
