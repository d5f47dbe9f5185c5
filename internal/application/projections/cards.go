package projections

import (
	"bytes"
	"context"
	"html/template"
	"log/slog"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/sync/errgroup"

	"cellule/internal/domain/event"
	"cellule/internal/domain/member"
)

// mdRenderer is a goldmark instance configured for safe HTML output.
// Raw HTML in markdown input is escaped (WithUnsafe is NOT set).
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// RenderMarkdown converts a description to HTML, falling back to escaped text.
func RenderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
		slog.Warn("markdown_render_failed", "error", err)
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// EventCard is an event as shown on the public page and the admin grid.
type EventCard struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Description     string        `json:"description"`
	DescriptionHTML template.HTML `json:"descriptionHtml"`
	PhotoURL        string        `json:"photoUrl"`
	VideoURL        string        `json:"videoUrl,omitempty"`
	HasVideo        bool          `json:"hasVideo"`
}

// MemberCard is a team member as shown on the public page and the admin grid.
type MemberCard struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Role            string        `json:"role"`
	Description     string        `json:"description"`
	DescriptionHTML template.HTML `json:"descriptionHtml"`
	PhotoURL        string        `json:"photoUrl"`
}

// BuildEventCards renders events in the given order.
func BuildEventCards(events []event.Event) []EventCard {
	cards := make([]EventCard, len(events))
	for i, e := range events {
		cards[i] = EventCard{
			ID:              e.ID,
			Name:            e.Name,
			Description:     e.Description,
			DescriptionHTML: RenderMarkdown(e.Description),
			PhotoURL:        e.PhotoURL,
			VideoURL:        e.VideoURL,
			HasVideo:        e.HasVideo(),
		}
	}
	return cards
}

// BuildMemberCards renders members in the given order.
func BuildMemberCards(members []member.Member) []MemberCard {
	cards := make([]MemberCard, len(members))
	for i, m := range members {
		cards[i] = MemberCard{
			ID:              m.ID,
			Name:            m.Name,
			Role:            m.Role,
			Description:     m.Description,
			DescriptionHTML: RenderMarkdown(m.Description),
			PhotoURL:        m.PhotoURL,
		}
	}
	return cards
}

// GetPublicPageResult carries the cards of the public page.
type GetPublicPageResult struct {
	Events  []EventCard
	Members []MemberCard
}

// GetPublicPageDeps holds dependencies for QueryGetPublicPage.
type GetPublicPageDeps struct {
	Events  EventLister
	Members MemberLister
}

// QueryGetPublicPage loads events (newest first) and members (oldest first) concurrently.
// POST: Either both lists are returned or the first error
func QueryGetPublicPage(ctx context.Context, deps GetPublicPageDeps) (GetPublicPageResult, error) {
	var result GetPublicPageResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		events, err := deps.Events.List(gctx)
		if err != nil {
			return err
		}
		result.Events = BuildEventCards(events)
		return nil
	})
	g.Go(func() error {
		members, err := deps.Members.List(gctx)
		if err != nil {
			return err
		}
		result.Members = BuildMemberCards(members)
		return nil
	})
	if err := g.Wait(); err != nil {
		return GetPublicPageResult{}, err
	}
	return result, nil
}
