package status

import (
	"fmt"
	"strings"
	"time"

	"storefront-bot/services/catalog"

	"github.com/bwmarrin/discordgo"
)

const (
	IndicatorUp      = "🟢"
	IndicatorDown    = "🔴"
	IndicatorUnknown = "🟡"

	colorHeader = 0x5865F2
)

func normalizeTitle(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "")
	return strings.ReplaceAll(s, ".", "")
}

// Find matches a catalog status name against the API titles: an exact
// case-insensitive title first, then titles equal once spaces and dots are
// removed, then containment either way.
func Find(entries []Entry, name string) (Entry, bool) {
	if name == "" {
		return Entry{}, false
	}
	for _, e := range entries {
		if strings.EqualFold(e.Title, name) {
			return e, true
		}
	}
	want := normalizeTitle(name)
	for _, e := range entries {
		if normalizeTitle(e.Title) == want {
			return e, true
		}
	}
	for _, e := range entries {
		got := normalizeTitle(e.Title)
		if got == "" {
			continue
		}
		if strings.Contains(got, want) || strings.Contains(want, got) {
			return e, true
		}
	}
	return Entry{}, false
}

type Line struct {
	Product   catalog.Product
	Indicator string
	Version   string
}

func LineFor(entries []Entry, p catalog.Product) Line {
	e, ok := Find(entries, p.StatusName)
	if !ok {
		return Line{Product: p, Indicator: IndicatorUnknown, Version: "N/A"}
	}
	l := Line{Product: p, Indicator: IndicatorDown, Version: e.Version}
	if e.UpdateStatus {
		l.Indicator = IndicatorUp
	}
	if l.Version == "" {
		l.Version = "N/A"
	}
	return l
}

func (l Line) String() string {
	return fmt.Sprintf("%s **[%s](%s)** • v%s", l.Indicator, l.Product.Name, l.Product.BuyLink, l.Version)
}

// Embeds renders the dashboard: a header followed by one embed per product
// group that has products.
func Embeds(entries []Entry, now time.Time, stale bool) []*discordgo.MessageEmbed {
	desc := "Real-time status of all software products.\nUpdated every 10 minutes.\n\n" +
		IndicatorUp + " Online/Updated | " + IndicatorDown + " Down/Offline | " + IndicatorUnknown + " Unknown"
	if stale {
		desc += "\n\n⚠️ The status service is unreachable; showing the last known data."
	}
	embeds := []*discordgo.MessageEmbed{{
		Title:       "📊 Software Status",
		Description: desc,
		Color:       colorHeader,
		Timestamp:   now.UTC().Format(time.RFC3339),
	}}

	for _, g := range catalog.Groups {
		products := catalog.ProductsInGroup(g.Group)
		if len(products) == 0 {
			continue
		}
		lines := make([]string, 0, len(products))
		for _, p := range products {
			lines = append(lines, LineFor(entries, p).String())
		}
		embeds = append(embeds, &discordgo.MessageEmbed{
			Title:       g.Title,
			Description: strings.Join(lines, "\n"),
			Color:       g.Color,
		})
	}
	return embeds
}
