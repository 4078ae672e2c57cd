package scan

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/lueurxax/media-guard-bot/internal/core/domain"
	"github.com/lueurxax/media-guard-bot/internal/core/links/linkextract"
	"github.com/lueurxax/media-guard-bot/internal/core/ports"
)

// Collector discovers the media referenced by a message, its reply target and
// the messages it links to.
type Collector struct {
	fetcher ports.MessageFetcher
	logger  *zerolog.Logger
}

func NewCollector(fetcher ports.MessageFetcher, logger *zerolog.Logger) *Collector {
	return &Collector{fetcher: fetcher, logger: logger}
}

type source struct {
	msg    *domain.Message
	origin domain.Origin
}

// Collect returns the scan targets of msg in discovery order, distinct by URL.
// Referenced messages that cannot be loaded are left out.
func (c *Collector) Collect(ctx context.Context, msg *domain.Message) []domain.ScanTarget {
	sources := append([]source{{msg: msg, origin: domain.OriginMessage}}, c.related(ctx, msg)...)

	seen := make(map[string]bool)

	var targets []domain.ScanTarget

	add := func(t domain.ScanTarget) {
		if t.URL == "" || seen[t.URL] {
			return
		}

		seen[t.URL] = true
		targets = append(targets, t)
	}

	for _, src := range sources {
		for _, a := range src.msg.Attachments {
			add(domain.ScanTarget{
				URL:                 a.URL,
				Origin:              src.origin,
				MediaKind:           domain.MediaKindAttachment,
				DeclaredName:        a.Filename,
				DeclaredContentType: a.ContentType,
				SourceMessageID:     src.msg.ID,
			})
		}

		for _, e := range src.msg.Embeds {
			for _, u := range []string{e.ImageURL, e.ImageProxyURL, e.ThumbnailURL, e.ThumbnailProxyURL, e.URL} {
				add(domain.ScanTarget{
					URL:             u,
					Origin:          src.origin,
					MediaKind:       domain.MediaKindEmbed,
					SourceMessageID: src.msg.ID,
				})
			}
		}

		if src.origin != domain.OriginMessage {
			continue
		}

		for _, l := range linkextract.ExtractLinks(src.msg.Content) {
			if l.Type == linkextract.LinkTypePermalink {
				continue
			}

			add(domain.ScanTarget{
				URL:             l.URL,
				Origin:          domain.OriginLink,
				MediaKind:       domain.MediaKindLink,
				SourceMessageID: src.msg.ID,
			})
		}
	}

	return targets
}

// related loads the reply target and every linked message of the same guild.
func (c *Collector) related(ctx context.Context, msg *domain.Message) []source {
	var out []source

	if ref := msg.Reference; ref != nil && ref.MessageID != "" {
		channelID := ref.ChannelID
		if channelID == "" {
			channelID = msg.ChannelID
		}

		reply, err := c.fetcher.FetchMessage(ctx, channelID, ref.MessageID)
		if err != nil {
			c.logger.Debug().Err(err).Str(LogFieldMessageID, msg.ID).Msg("reply reference not resolvable")
		} else {
			out = append(out, source{msg: reply, origin: domain.OriginReply})
		}
	}

	for _, link := range linkextract.Permalinks(msg.Content) {
		linked, err := c.fetcher.FetchMessage(ctx, link.ChannelID, link.MessageID)
		if err != nil {
			c.logger.Debug().Err(err).Str(LogFieldURL, link.URL).Msg("message link not resolvable")
			continue
		}

		if linked.GuildID != link.GuildID {
			c.logger.Debug().Str(LogFieldURL, link.URL).Msg("message link points outside its guild")
			continue
		}

		out = append(out, source{msg: linked, origin: domain.OriginMessageLink})
	}

	return out
}
