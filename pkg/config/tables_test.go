package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/emailscope/pkg/utils"
)

func TestDefaultTables_Embedded(t *testing.T) {
	tables := DefaultTables()

	require.NoError(t, tables.Validate())
	assert.Len(t, tables.GenericLocalParts, 14)
	assert.Len(t, tables.UserAgents, 5)
	assert.Contains(t, tables.DisposableDomains, "10minutemail.com")
	assert.Contains(t, tables.ReputableDomains, "gmail.com")
	assert.Contains(t, tables.SkipPathSegments, "/wp-admin/")
	assert.Contains(t, tables.SkipExtensions, ".pdf")

	require.Len(t, tables.Industries, 6)
	names := make([]string, 0, len(tables.Industries))
	for _, ind := range tables.Industries {
		names = append(names, ind.Name)
	}
	assert.Equal(t, []string{"technology", "media", "finance", "healthcare", "education", "retail"}, names)
	assert.Contains(t, tables.Industries[0].LocalParts, "dev")
}

func TestLoadTables_NoPathReturnsDefaults(t *testing.T) {
	tables, err := LoadTables("")
	require.NoError(t, err)
	assert.Equal(t, DefaultTables(), tables)
}

func TestLoadTables_OverlayReplacesOnlyPresentKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.yaml")
	content := `
priority_keywords: [Contact, Impressum]
reputable_domains: [Example.ORG]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	tables, err := LoadTables(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"contact", "impressum"}, tables.PriorityKeywords)
	assert.Equal(t, []string{"example.org"}, tables.ReputableDomains)
	assert.Equal(t, DefaultTables().DisposableDomains, tables.DisposableDomains)
}

func TestLoadTables_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadTables(filepath.Join(dir, "nope.yaml"))
		assert.ErrorIs(t, err, utils.ErrFilesystem)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("priority_keywords: [unclosed"), 0o644))
		_, err := LoadTables(path)
		assert.ErrorIs(t, err, utils.ErrParsing)
	})

	t.Run("invalid regex", func(t *testing.T) {
		path := filepath.Join(dir, "regex.yaml")
		require.NoError(t, os.WriteFile(path, []byte("disposable_patterns: ['[oops']"), 0o644))
		_, err := LoadTables(path)
		assert.ErrorIs(t, err, utils.ErrConfigValidation)
	})

	t.Run("empty user agents", func(t *testing.T) {
		path := filepath.Join(dir, "ua.yaml")
		require.NoError(t, os.WriteFile(path, []byte("user_agents: []"), 0o644))
		_, err := LoadTables(path)
		assert.ErrorIs(t, err, utils.ErrConfigValidation)
	})
}
