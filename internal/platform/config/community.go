package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// TagFilters maps a tier key ("0", "1", "2") to denylisted tags.
type TagFilters map[string][]string

// Thresholds holds optional numeric risk thresholds; nil means "not configured".
type Thresholds struct {
	Flag   *float64 `yaml:"flag"`
	Delete *float64 `yaml:"delete"`
}

// ScanSettings is the scan section of a community configuration.
type ScanSettings struct {
	Enabled          *bool      `yaml:"enabled"`
	Thresholds       Thresholds `yaml:"thresholds"`
	TagFilters       TagFilters `yaml:"tagFilters"`
	RulesLink        string     `yaml:"rulesLink"`
	PublicScanEmojis []string   `yaml:"publicScanEmojis"`
}

// Channels lists the channels the moderation core posts to or links.
type Channels struct {
	ModLog     string `yaml:"modLog"`
	Moderation string `yaml:"moderation"`
	Rules      string `yaml:"rules"`
}

// GuildSettings is the configuration of one community, or the global defaults.
type GuildSettings struct {
	Scan       ScanSettings `yaml:"scan"`
	Channels   Channels     `yaml:"channels"`
	ModRoles   []string     `yaml:"modRoles"`
	AdminRoles []string     `yaml:"adminRoles"`
}

// Communities is the parsed community configuration file.
type Communities struct {
	Defaults GuildSettings            `yaml:"defaults"`
	Guilds   map[string]GuildSettings `yaml:"guilds"`
}

// Community pairs the global defaults with one guild's own settings.
type Community struct {
	GuildID string
	Global  GuildSettings
	Guild   GuildSettings
}

// CommunitySource resolves community settings by guild id.
type CommunitySource interface {
	For(guildID string) Community
}

// LoadCommunities reads the YAML community configuration. A missing file yields
// an empty configuration so that scanning stays disabled until one is provided.
func LoadCommunities(path string) (*Communities, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Communities{Guilds: map[string]GuildSettings{}}, nil
		}

		return nil, fmt.Errorf("read community config: %w", err)
	}

	return ParseCommunities(data)
}

// ParseCommunities decodes a YAML community configuration.
func ParseCommunities(data []byte) (*Communities, error) {
	var c Communities
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse community config: %w", err)
	}

	if c.Guilds == nil {
		c.Guilds = map[string]GuildSettings{}
	}

	return &c, nil
}

// For returns the settings of guildID layered over the defaults.
func (c *Communities) For(guildID string) Community {
	return Community{
		GuildID: guildID,
		Global:  c.Defaults,
		Guild:   c.Guilds[guildID],
	}
}

// ScanEnabled reports whether automatic scanning is on for the community.
func (c Community) ScanEnabled() bool {
	if c.Guild.Scan.Enabled != nil {
		return *c.Guild.Scan.Enabled
	}

	if c.Global.Scan.Enabled != nil {
		return *c.Global.Scan.Enabled
	}

	return false
}

// ModLogChannel returns the moderation channel, preferring modLog over moderation.
func (c Community) ModLogChannel() string {
	return coalesce(
		c.Guild.Channels.ModLog,
		c.Guild.Channels.Moderation,
		c.Global.Channels.ModLog,
		c.Global.Channels.Moderation,
	)
}

// RulesLink returns the text used to point users at the community rules.
func (c Community) RulesLink() string {
	if link := coalesce(c.Guild.Scan.RulesLink, c.Global.Scan.RulesLink); link != "" {
		return link
	}

	if rules := coalesce(c.Guild.Channels.Rules, c.Global.Channels.Rules); rules != "" {
		return "<#" + rules + ">"
	}

	return "the server rules"
}

// PublicScanEmojis returns the emojis that trigger a manual scan.
func (c Community) PublicScanEmojis() []string {
	if len(c.Guild.Scan.PublicScanEmojis) > 0 {
		return c.Guild.Scan.PublicScanEmojis
	}

	return c.Global.Scan.PublicScanEmojis
}

// ModRoles returns the union of default and guild moderator roles.
func (c Community) ModRoles() []string {
	return union(c.Global.ModRoles, c.Guild.ModRoles)
}

// AdminRoles returns the union of default and guild administrator roles.
func (c Community) AdminRoles() []string {
	return union(c.Global.AdminRoles, c.Guild.AdminRoles)
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}

	return ""
}

func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))

	for _, list := range [][]string{a, b} {
		for _, v := range list {
			if v == "" || seen[v] {
				continue
			}

			seen[v] = true
			out = append(out, v)
		}
	}

	return out
}
