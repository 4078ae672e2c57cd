package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCommunityYAML = `
defaults:
  scan:
    enabled: false
    thresholds:
      flag: 0.5
    tagFilters:
      "0": [loli]
      "1": [nude]
    publicScanEmojis: ["🔍"]
  channels:
    rules: "900"
  modRoles: [role-a]
guilds:
  "42":
    scan:
      enabled: true
      thresholds:
        delete: 0.9
      tagFilters:
        "1": [Explicit]
    channels:
      moderation: "700"
    modRoles: [role-b, role-a]
    adminRoles: [admin]
`

func TestParseCommunities(t *testing.T) {
	c, err := ParseCommunities([]byte(testCommunityYAML))
	require.NoError(t, err)

	guild := c.For("42")
	assert.True(t, guild.ScanEnabled())
	assert.Equal(t, "700", guild.ModLogChannel())
	assert.Equal(t, "<#900>", guild.RulesLink())
	assert.Equal(t, []string{"🔍"}, guild.PublicScanEmojis())
	assert.Equal(t, []string{"role-a", "role-b"}, guild.ModRoles())
	assert.Equal(t, []string{"admin"}, guild.AdminRoles())
	require.NotNil(t, guild.Guild.Scan.Thresholds.Delete)
	assert.InDelta(t, 0.9, *guild.Guild.Scan.Thresholds.Delete, 1e-9)
	assert.Nil(t, guild.Guild.Scan.Thresholds.Flag)
	assert.Equal(t, []string{"Explicit"}, guild.Guild.Scan.TagFilters["1"])

	other := c.For("7")
	assert.False(t, other.ScanEnabled())
	assert.Empty(t, other.ModLogChannel())
}

func TestCommunityRulesLinkFallbacks(t *testing.T) {
	c := Community{}
	assert.Equal(t, "the server rules", c.RulesLink())

	c.Global.Scan.RulesLink = "https://example.com/rules"
	assert.Equal(t, "https://example.com/rules", c.RulesLink())
}

func TestCommunityModLogPrefersModLog(t *testing.T) {
	c := Community{
		Guild: GuildSettings{Channels: Channels{ModLog: "1", Moderation: "2"}},
	}
	assert.Equal(t, "1", c.ModLogChannel())
}

func TestLoadCommunities_MissingFile(t *testing.T) {
	c, err := LoadCommunities(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.False(t, c.For("any").ScanEnabled())
}

func TestParseCommunities_Invalid(t *testing.T) {
	_, err := ParseCommunities([]byte("guilds: [unterminated"))
	require.Error(t, err)
}
