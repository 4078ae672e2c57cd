package review

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/lueurxax/media-guard-bot/internal/core/domain"
	"github.com/lueurxax/media-guard-bot/internal/core/risk"
	"github.com/lueurxax/media-guard-bot/internal/process/scan"
)

const (
	colorDelete = 0xff0000
	colorFlag   = 0xff9900
	colorOK     = 0x00cc66

	maxPreviewTags = 20
	maxHistoryRows = 5
	maxFieldValue  = 1024
	emptyValue     = "—"
	defaultFooter  = "auto-scan"
)

func colorFor(a domain.Action) int {
	switch a {
	case domain.ActionDelete:
		return colorDelete
	case domain.ActionFlag:
		return colorFlag
	default:
		return colorOK
	}
}

func titleFor(a domain.Action) string {
	switch a {
	case domain.ActionDelete:
		return "🚫 Automatic deletion"
	case domain.ActionFlag:
		return "⚠️ Automatic flag"
	default:
		return "✅ Scan result"
	}
}

// statusLabel is the human label of a case status.
func statusLabel(s domain.CaseStatus) string {
	if s == domain.StatusPending || s == "" {
		return "Pending review"
	}

	return cases.Title(language.English).String(string(s))
}

func historyLabel(action string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(action, "_", " "))
}

// highlightTags lists the first 20 tags, bolding those that matched a denylist.
func highlightTags(tags, matched []string) string {
	if len(tags) == 0 {
		return emptyValue
	}

	hit := make(map[string]bool, len(matched))
	for _, m := range matched {
		hit[m] = true
	}

	top := tags
	if len(top) > maxPreviewTags {
		top = top[:maxPreviewTags]
	}

	out := make([]string, 0, len(top))

	for _, t := range top {
		if hit[strings.ToLower(t)] {
			out = append(out, "**"+t+"**")
		} else {
			out = append(out, t)
		}
	}

	return strings.Join(out, ", ")
}

func mention(userID string) string {
	return "<@" + userID + ">"
}

func description(userID, channelID string, riskValue float64, tier int, tagsPreview, messageURL string) string {
	lines := []string{
		"**User:** " + mention(userID),
		"**Channel:** <#" + channelID + ">",
		fmt.Sprintf("**Risk:** %s | Level %d", risk.FormatRisk(riskValue), tier),
		"**Tags:** " + tagsPreview,
	}

	if messageURL != "" {
		lines = append(lines, "[Jump to original]("+messageURL+")")
	}

	return strings.Join(lines, "\n")
}

func footer(reasons []string) string {
	if len(reasons) == 0 {
		return defaultFooter
	}

	return strings.Join(reasons, ", ")
}

// Headline is the content line of a new review post.
func Headline(c domain.FlaggedCase) string {
	if c.Action == domain.ActionDelete {
		return "🚫 **Deleted** " + mention(c.UserID) + " · automatic scan"
	}

	return "⚠️ **Flagged** " + mention(c.UserID) + " · automatic scan"
}

// RenderCase renders the review post of c. An empty note shows the status label.
func RenderCase(c domain.FlaggedCase, note string) domain.Post {
	if note == "" {
		note = statusLabel(c.Status)
	}

	embed := &domain.PostEmbed{
		Title:       titleFor(c.Action),
		Description: description(c.UserID, c.ChannelID, c.Risk, c.TierLevel, highlightTags(c.Tags, c.MatchedTags), c.MessageURL),
		Color:       colorFor(c.Action),
		Fields: []domain.PostField{
			{Name: "Status", Value: note, Inline: true},
			{Name: "Risk", Value: fmt.Sprintf("%s (Level %d)", risk.FormatRisk(c.Risk), c.TierLevel), Inline: true},
		},
		Footer: footer(c.Reasons),
	}

	for _, a := range c.Attachments {
		if a.URL != "" {
			embed.ImageURL = a.URL
			break
		}
	}

	if len(c.MatchedTags) > 0 {
		embed.Fields = append(embed.Fields, domain.PostField{Name: "Triggered Tags", Value: triggeredTags(c.MatchedTags)})
	}

	if rows := historyRows(c.History); rows != "" {
		embed.Fields = append(embed.Fields, domain.PostField{Name: "History", Value: rows})
	}

	return domain.Post{Content: Headline(c), Embed: embed}
}

// triggeredTags quotes matched tags, dropping the tail once the embed field
// limit would be exceeded and noting how many were left out.
func triggeredTags(matched []string) string {
	var b strings.Builder

	for i, t := range matched {
		item := "`" + t + "`"
		if i > 0 {
			item = ", " + item
		}

		reserve := 0
		if left := len(matched) - i - 1; left > 0 {
			reserve = len(moreSuffix(left))
		}

		if b.Len()+len(item)+reserve > maxFieldValue {
			b.WriteString(moreSuffix(len(matched) - i))
			break
		}

		b.WriteString(item)
	}

	return b.String()
}

func moreSuffix(n int) string {
	return fmt.Sprintf(" … +%d more", n)
}

func historyRows(history []domain.HistoryEntry) string {
	if len(history) > maxHistoryRows {
		history = history[len(history)-maxHistoryRows:]
	}

	rows := make([]string, 0, len(history))

	for _, h := range history {
		row := historyLabel(h.Action)
		if h.ModeratorID != "" {
			row += " by " + mention(h.ModeratorID)
		}

		if !h.Timestamp.IsZero() {
			row += fmt.Sprintf(" <t:%d:R>", h.Timestamp.Unix())
		}

		rows = append(rows, row)
	}

	return strings.Join(rows, "\n")
}

// RenderScanResult renders the public result of a manually triggered scan.
func RenderScanResult(run *scan.Run) domain.Post {
	var tags []string
	for _, r := range run.Summary.ActedTargets {
		tags = append(tags, r.Tags...)
	}

	return domain.Post{Embed: &domain.PostEmbed{
		Title:       titleFor(run.Summary.Action),
		Description: description(run.Message.AuthorID, run.Message.ChannelID, run.Summary.HighestRisk, run.Summary.LowestTierSeen, highlightTags(tags, run.Summary.MatchedTags), run.Message.URL),
		Color:       colorFor(run.Summary.Action),
		Footer:      footer(run.Summary.Reasons),
	}}
}

// WarningText is the bilingual notice sent to a warned user.
func WarningText(userID, rulesLink string) string {
	return strings.Join([]string{
		"**Image moderation notice**",
		"",
		"Hello " + mention(userID) + "!",
		"Your recent image appears to break our server guidelines.",
		"",
		"Please review the rules here → " + rulesLink,
		"",
		"Thank you for understanding! 🙏",
		"",
		"---",
		"",
		"**画像モデレーションのお知らせ**",
		"",
		mention(userID) + " さん、こんにちは！",
		"あなたが投稿した画像は、サーバーのガイドラインに違反している可能性があります。",
		"",
		"ルールはこちらをご確認ください → " + rulesLink,
		"",
		"ご協力ありがとうございます！ 🙏",
	}, "\n")
}
