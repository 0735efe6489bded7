package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func boolPtr(b bool) *bool {
	return &b
}

func intPtr(i int) *int {
	return &i
}

func TestGetEffectiveCrawl(t *testing.T) {
	base := Default()

	tests := []struct {
		name       string
		domains    map[string]DomainConfig
		domain     string
		wantBypass bool
		wantDepth  int
		wantPages  int
	}{
		{
			name:       "no override uses global",
			domain:     "acme.com",
			wantBypass: false,
			wantDepth:  2,
			wantPages:  30,
		},
		{
			name:       "override for other domain ignored",
			domains:    map[string]DomainConfig{"other.com": {MaxDepth: intPtr(5)}},
			domain:     "acme.com",
			wantBypass: false,
			wantDepth:  2,
			wantPages:  30,
		},
		{
			name: "all fields overridden",
			domains: map[string]DomainConfig{"acme.com": {
				BypassExclusion: boolPtr(true),
				MaxDepth:        intPtr(0),
				MaxPages:        intPtr(5),
			}},
			domain:     "acme.com",
			wantBypass: true,
			wantDepth:  0,
			wantPages:  5,
		},
		{
			name:       "zero max_pages override ignored",
			domains:    map[string]DomainConfig{"acme.com": {MaxPages: intPtr(0)}},
			domain:     "acme.com",
			wantBypass: false,
			wantDepth:  2,
			wantPages:  30,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			cfg.Domains = tt.domains
			eff := GetEffectiveCrawl(tt.domain, cfg)
			assert.Equal(t, tt.wantBypass, eff.BypassExclusion)
			assert.Equal(t, tt.wantDepth, eff.MaxDepth)
			assert.Equal(t, tt.wantPages, eff.MaxPages)
		})
	}
}

func TestPersistenceEnabled(t *testing.T) {
	cfg := Default()
	assert.False(t, cfg.PersistenceEnabled())
	cfg.StateDir = "./state"
	assert.True(t, cfg.PersistenceEnabled())
}
