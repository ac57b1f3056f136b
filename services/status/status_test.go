package status

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront-bot/pkg/errutil"
	"storefront-bot/services/catalog"
	"storefront-bot/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestFindMatchOrder(t *testing.T) {
	entries := []Entry{
		{Title: "Arceus X Neo", Version: "1"},
		{Title: "Bunni.lol", Version: "2"},
		{Title: "Wave", Version: "3"},
		{Title: "Potassium Beta", Version: "4"},
	}

	cases := []struct {
		name    string
		want    string
		matched bool
	}{
		{"wave", "3", true},
		{"bunni lol", "2", true},
		{"potassium", "4", true},
		{"arceus x", "1", true},
		{"volcano", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		e, ok := Find(entries, tc.name)
		require.Equal(t, tc.matched, ok, tc.name)
		require.Equal(t, tc.want, e.Version, tc.name)
	}
}

func TestFindPrefersExactOverPartial(t *testing.T) {
	entries := []Entry{{Title: "Wave Android", Version: "a"}, {Title: "WAVE", Version: "b"}}
	e, ok := Find(entries, "wave")
	require.True(t, ok)
	require.Equal(t, "b", e.Version)
}

func TestLineFor(t *testing.T) {
	p := catalog.Product{Name: "Wave", StatusName: "wave", BuyLink: "https://shop/wave"}

	require.Equal(t, "🟡 **[Wave](https://shop/wave)** • vN/A", LineFor(nil, p).String())
	require.Equal(t, "🟢 **[Wave](https://shop/wave)** • v2.1", LineFor([]Entry{{Title: "Wave", Version: "2.1", UpdateStatus: true}}, p).String())
	require.Equal(t, IndicatorDown, LineFor([]Entry{{Title: "Wave"}}, p).Indicator)
}

func TestEmbedsCoverEveryGroup(t *testing.T) {
	embeds := Embeds(nil, time.Now(), true)

	groups := 0
	for _, g := range catalog.Groups {
		if len(catalog.ProductsInGroup(g.Group)) > 0 {
			groups++
		}
	}
	require.Len(t, embeds, groups+1)
	require.Contains(t, embeds[0].Description, "last known data")

	lines := 0
	for _, e := range embeds[1:] {
		lines += len(strings.Split(e.Description, "\n"))
	}
	require.Equal(t, len(catalog.Products), lines)
}

func TestClientSendsUserAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "WEAO-3PService", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"title":"Wave","version":"9","updateStatus":true}]`))
	}))
	defer srv.Close()

	entries, err := NewClient(srv.URL, nil).Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, []Entry{{Title: "Wave", Version: "9", UpdateStatus: true}}, entries)
}

func TestClientRejectsNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, nil).Fetch(context.Background())
	require.True(t, errutil.HasStatus(err, errutil.StatusServiceUnavailable))
}

type fakeFetcher struct {
	entries []Entry
	err     error
}

func (f *fakeFetcher) Fetch(context.Context) ([]Entry, error) { return f.entries, f.err }

type fakePoster struct {
	existing []string
	deleted  []string
	sent     []*discordgo.MessageSend
}

func (f *fakePoster) BotMessages(context.Context, string, int) ([]string, error) {
	return f.existing, nil
}

func (f *fakePoster) DeleteMessage(_ context.Context, _ string, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakePoster) Send(_ context.Context, _ string, msg *discordgo.MessageSend) (string, error) {
	f.sent = append(f.sent, msg)
	return "new", nil
}

func TestRefreshReplacesDashboard(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t, &Snapshot{})
	fetcher := &fakeFetcher{entries: []Entry{{Title: "Wave", Version: "5", UpdateStatus: true}}}
	poster := &fakePoster{existing: []string{"old1", "old2"}}
	svc := NewService(db, fetcher, poster, "status")
	svc.spacer = 0

	require.NoError(t, svc.Refresh(ctx))
	require.Equal(t, []string{"old1", "old2"}, poster.deleted)
	require.Len(t, poster.sent, 1)
	require.Contains(t, poster.sent[0].Embeds[1].Description, "🟢 **[Wave]")
	require.NotContains(t, poster.sent[0].Embeds[0].Description, "last known data")

	// the API goes down: the stored snapshot still renders
	fetcher.err = errors.New("timeout")
	require.NoError(t, svc.Refresh(ctx))
	require.Len(t, poster.sent, 2)
	require.Contains(t, poster.sent[1].Embeds[0].Description, "last known data")
	require.Contains(t, poster.sent[1].Embeds[1].Description, "🟢 **[Wave]")

	entries, stale := svc.Current(ctx)
	require.True(t, stale)
	require.Len(t, entries, 1)
}

func TestRefreshNeedsChannel(t *testing.T) {
	db := testutil.NewTestDB(t, &Snapshot{})
	svc := NewService(db, &fakeFetcher{}, &fakePoster{}, "")
	require.Error(t, svc.Refresh(context.Background()))
}
