// Package risk turns classifier output into moderation decisions.
//
// Evaluation runs in three steps:
//   - Tags are matched against the tier denylists (0 strictest, 2 laxest)
//   - Scores of the explicit-content classes are summed into a risk value
//   - Tier and risk are mapped to ignore, flag or delete
//
// Summarize folds the per-target results of one message into a single summary.
package risk

import (
	"fmt"
	"strconv"

	"golang.org/x/text/cases"

	"github.com/lueurxax/media-guard-bot/internal/core/domain"
)

const (
	DefaultFlagThreshold   = 0.6
	DefaultDeleteThreshold = 0.95

	ReasonRiskDelete = "risk-delete"
	ReasonRiskFlag   = "risk-flag"
	ReasonNone       = "none"

	tierCount = 3
)

// Score fields that add up to the risk value.
var riskFields = []string{"hentai", "porn", "sexy"}

// Filters holds the lowercased denylist of each tier.
type Filters [tierCount][]string

// Limits are optional thresholds as configured; nil means unset.
type Limits struct {
	Flag   *float64
	Delete *float64
}

// Thresholds are the resolved numeric thresholds.
type Thresholds struct {
	Flag   float64
	Delete float64
}

// Policy bundles the filters and thresholds of one community.
type Policy struct {
	Filters    Filters
	Thresholds Thresholds
}

var fold = cases.Fold()

// TierReason returns the reason code of a tag tier match.
func TierReason(tier int) string {
	return "tag-level-" + strconv.Itoa(tier)
}

// ResolveFilters unions the global and community tag lists per tier, case-insensitively.
// Keys other than "0", "1" and "2" are ignored.
func ResolveFilters(global, community map[string][]string) Filters {
	var f Filters

	for tier := range tierCount {
		key := strconv.Itoa(tier)
		seen := make(map[string]bool)

		for _, src := range []map[string][]string{global, community} {
			for _, tag := range src[key] {
				tag = fold.String(tag)
				if tag == "" || seen[tag] {
					continue
				}

				seen[tag] = true
				f[tier] = append(f[tier], tag)
			}
		}
	}

	return f
}

// ResolveThresholds picks the community threshold, then the global one, then the default.
func ResolveThresholds(community, global Limits) Thresholds {
	return Thresholds{
		Flag:   firstSet(DefaultFlagThreshold, community.Flag, global.Flag),
		Delete: firstSet(DefaultDeleteThreshold, community.Delete, global.Delete),
	}
}

func firstSet(def float64, values ...*float64) float64 {
	for _, v := range values {
		if v != nil {
			return *v
		}
	}

	return def
}

// Lowercase returns the case-folded copy of tags.
func Lowercase(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t != "" {
			out = append(out, fold.String(t))
		}
	}

	return out
}

// Evaluate returns the first tier (0, 1, 2) whose denylist intersects the tags,
// together with the matched entries. TierSafe means nothing matched.
func (f Filters) Evaluate(lowercased []string) (int, []string) {
	present := make(map[string]bool, len(lowercased))
	for _, t := range lowercased {
		present[t] = true
	}

	for tier := range tierCount {
		var matched []string

		for _, tag := range f[tier] {
			if present[tag] {
				matched = append(matched, tag)
			}
		}

		if len(matched) > 0 {
			return tier, matched
		}
	}

	return domain.TierSafe, nil
}

// Risk sums the explicit-content scores; missing fields count as zero.
func Risk(scores map[string]float64) float64 {
	var total float64
	for _, field := range riskFields {
		total += scores[field]
	}

	return total
}

// Decide maps a tier and risk to an action. Tier matches win over numeric risk;
// both thresholds are inclusive.
func Decide(tier int, risk float64, th Thresholds) domain.Decision {
	switch {
	case tier == domain.TierInstantDelete:
		return domain.Decision{Action: domain.ActionDelete, Reason: TierReason(tier)}
	case tier == domain.TierExplicit || tier == domain.TierQuestionable:
		return domain.Decision{Action: domain.ActionFlag, Reason: TierReason(tier)}
	case risk >= th.Delete:
		return domain.Decision{Action: domain.ActionDelete, Reason: ReasonRiskDelete}
	case risk >= th.Flag:
		return domain.Decision{Action: domain.ActionFlag, Reason: ReasonRiskFlag}
	default:
		return domain.Decision{Action: domain.ActionIgnore, Reason: ReasonNone}
	}
}

// Apply evaluates one classified target under the policy.
func (p Policy) Apply(target domain.ScanTarget, media *domain.DownloadedMedia, c *domain.Classification) domain.ScanResult {
	lowered := Lowercase(c.Tags)
	tier, matched := p.Filters.Evaluate(lowered)
	risk := Risk(c.Scores)

	return domain.ScanResult{
		Target:         target,
		Media:          media,
		Tags:           c.Tags,
		LowercasedTags: lowered,
		MatchedTags:    matched,
		Scores:         c.Scores,
		TierLevel:      tier,
		RiskScore:      risk,
		Decision:       Decide(tier, risk, p.Thresholds),
	}
}

// Summarize aggregates the results of one message. The summary action is the most
// severe one; on equal severity the first result keeps its reason.
func Summarize(results []domain.ScanResult) domain.ScanSummary {
	summary := domain.ScanSummary{
		Action:         domain.ActionIgnore,
		Reason:         ReasonNone,
		LowestTierSeen: domain.TierSafe,
	}

	tags := newOrderedSet()
	reasons := newOrderedSet()

	for _, r := range results {
		if r.RiskScore > summary.HighestRisk {
			summary.HighestRisk = r.RiskScore
		}

		if r.TierLevel < summary.LowestTierSeen {
			summary.LowestTierSeen = r.TierLevel
		}

		if r.Decision.Action != domain.ActionIgnore {
			tags.add(r.MatchedTags...)
			reasons.add(r.Decision.Reason)
			summary.ActedTargets = append(summary.ActedTargets, r)
		}

		if r.Decision.Action.Severity() > summary.Action.Severity() {
			summary.Action = r.Decision.Action
			summary.Reason = r.Decision.Reason
		}
	}

	summary.MatchedTags = tags.items
	summary.Reasons = reasons.items

	return summary
}

// FormatRisk renders a risk value the way review posts show it.
func FormatRisk(v float64) string {
	return fmt.Sprintf("%.3f", v)
}

type orderedSet struct {
	seen  map[string]bool
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: map[string]bool{}, items: []string{}}
}

func (s *orderedSet) add(values ...string) {
	for _, v := range values {
		if v == "" || s.seen[v] {
			continue
		}

		s.seen[v] = true
		s.items = append(s.items, v)
	}
}
