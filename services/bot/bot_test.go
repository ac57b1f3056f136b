package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	"storefront-bot/pkg/errutil"
	"storefront-bot/services/catalog"
	"storefront-bot/services/coupon"
	"storefront-bot/services/customer"
	"storefront-bot/services/loyalty"
	"storefront-bot/services/membersync"
	"storefront-bot/services/reward"
	"storefront-bot/services/role"
	"storefront-bot/services/status"
	"storefront-bot/services/ticket"
	"storefront-bot/services/verification"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeResponder struct {
	responses []*discordgo.InteractionResponse
	edits     []*discordgo.WebhookEdit
}

func (f *fakeResponder) InteractionRespond(_ *discordgo.Interaction, r *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	f.responses = append(f.responses, r)
	return nil
}

func (f *fakeResponder) InteractionResponseEdit(_ *discordgo.Interaction, e *discordgo.WebhookEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.edits = append(f.edits, e)
	return &discordgo.Message{}, nil
}

// lastEmbed returns the embed the user finally sees.
func (f *fakeResponder) lastEmbed(t *testing.T) *discordgo.MessageEmbed {
	t.Helper()
	if len(f.edits) > 0 {
		embeds := *f.edits[len(f.edits)-1].Embeds
		require.NotEmpty(t, embeds)
		return embeds[0]
	}
	require.NotEmpty(t, f.responses)
	data := f.responses[len(f.responses)-1].Data
	require.NotNil(t, data)
	require.NotEmpty(t, data.Embeds)
	return data.Embeds[0]
}

type fakeVerifier struct {
	result  verification.VerifyResult
	req     verification.VerifyRequest
	unlinks []verification.UnlinkRequest
}

func (f *fakeVerifier) Verify(_ context.Context, req verification.VerifyRequest) (verification.VerifyResult, error) {
	f.req = req
	return f.result, nil
}

func (f *fakeVerifier) Unlink(_ context.Context, req verification.UnlinkRequest) (*verification.Record, role.Result, error) {
	f.unlinks = append(f.unlinks, req)
	if req.MemberID == "404" {
		return nil, role.Result{}, errutil.NotFound("no verification found", nil)
	}
	return &verification.Record{MemberID: req.MemberID, Email: "a@example.com"}, role.Result{Removed: []string{"$10 Buyer"}}, nil
}

type fakeMembers map[string]verification.Record

func (f fakeMembers) GetByMember(_ context.Context, id string) (*verification.Record, error) {
	if rec, ok := f[id]; ok {
		return &rec, nil
	}
	return nil, nil
}

func (f fakeMembers) GetByEmail(_ context.Context, email string) (*verification.Record, error) {
	for _, rec := range f {
		if rec.Email == email {
			return &rec, nil
		}
	}
	return nil, nil
}

func (f fakeMembers) Products(context.Context, string) ([]string, error) {
	return []string{"wave"}, nil
}

type fakeKeys struct {
	balance map[string]int
}

func (f *fakeKeys) Get(_ context.Context, id string) (loyalty.Record, error) {
	return loyalty.Record{MemberID: id, KeysBalance: f.balance[id], TotalKeysEarned: f.balance[id]}, nil
}

func (f *fakeKeys) AddKeys(_ context.Context, id string, n int) (int, error) {
	f.balance[id] += n
	return f.balance[id], nil
}

type fakeRewards struct{ result reward.ClaimResult }

func (f fakeRewards) Claim(context.Context, string) (reward.ClaimResult, error) { return f.result, nil }

type fakeCoupons struct{}

func (fakeCoupons) ListByMember(context.Context, string) ([]coupon.Coupon, error) {
	return []coupon.Coupon{{Code: "BUYER5-ABC123", Percent: 5}}, nil
}

type fakeTickets struct {
	recorded []string
	result   ticket.OpenResult
}

func (f *fakeTickets) Open(context.Context, ticket.OpenRequest) (ticket.OpenResult, error) {
	return f.result, nil
}

func (f *fakeTickets) Close(_ context.Context, channelID, _ string) (*ticket.Ticket, error) {
	return nil, errutil.NotFound("ticket not found", nil)
}

func (f *fakeTickets) Record(_ context.Context, channelID, _, name, content string) (bool, error) {
	f.recorded = append(f.recorded, name+": "+content)
	return true, nil
}

type fakeSync struct {
	err   error
	check *membersync.ProductCheck
}

func (f fakeSync) RequestSync(context.Context, string, string) (string, error) { return "req-1", f.err }

func (f fakeSync) CheckProducts(context.Context, string) (*membersync.ProductCheck, error) {
	return f.check, nil
}

type fakeCache struct{ cleared int }

func (f *fakeCache) Stats() customer.Stats {
	return customer.Stats{Loaded: true, Customers: 42, LastLoad: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}
func (f *fakeCache) Refresh(context.Context) error { return nil }
func (f *fakeCache) ClearOrderCache() int          { f.cleared++; return 7 }

type fakeRoles struct{}

func (fakeRoles) EnsureRoles(context.Context) ([]string, error) { return []string{"Wave Buyer"}, nil }

type fakeStatus struct{ refreshed int }

func (f *fakeStatus) Refresh(context.Context) error { f.refreshed++; return nil }
func (f *fakeStatus) Current(context.Context) ([]status.Entry, bool) {
	return []status.Entry{{Title: "Wave", Version: "1.2", UpdateStatus: true}}, true
}

type fakeGuild struct {
	dms      map[string][]*discordgo.MessageSend
	sent     map[string][]*discordgo.MessageSend
	deleted  []string
	channels map[string]string
}

func newFakeGuild() *fakeGuild {
	return &fakeGuild{
		dms:      map[string][]*discordgo.MessageSend{},
		sent:     map[string][]*discordgo.MessageSend{},
		channels: map[string]string{"verify": "c-verify"},
	}
}

func (f *fakeGuild) DirectMessage(_ context.Context, userID string, msg *discordgo.MessageSend) error {
	f.dms[userID] = append(f.dms[userID], msg)
	return nil
}

func (f *fakeGuild) Send(_ context.Context, channelID string, msg *discordgo.MessageSend) (string, error) {
	f.sent[channelID] = append(f.sent[channelID], msg)
	return "m", nil
}

func (f *fakeGuild) BotMessages(_ context.Context, channelID string, _ int) ([]string, error) {
	if channelID == "c-verify" {
		return []string{"old-panel"}, nil
	}
	return nil, nil
}

func (f *fakeGuild) DeleteMessage(_ context.Context, _, messageID string) error {
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeGuild) EnsureTextChannel(_ context.Context, name, _, _ string) (string, bool, error) {
	if id, ok := f.channels[name]; ok {
		return id, false, nil
	}
	id := "c-" + name
	f.channels[name] = id
	return id, true, nil
}

type fixture struct {
	bot      *Bot
	respond  *fakeResponder
	verifier *fakeVerifier
	keys     *fakeKeys
	tickets  *fakeTickets
	cache    *fakeCache
	status   *fakeStatus
	guild    *fakeGuild
	rewards  *fakeRewards
	syncer   *fakeSync
	members  fakeMembers
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		respond:  &fakeResponder{},
		verifier: &fakeVerifier{},
		keys:     &fakeKeys{balance: map[string]int{"1": 2}},
		tickets:  &fakeTickets{},
		cache:    &fakeCache{},
		status:   &fakeStatus{},
		guild:    newFakeGuild(),
		rewards:  &fakeRewards{},
		syncer:   &fakeSync{},
		members: fakeMembers{
			"1": {MemberID: "1", Email: "vip@example.com", TotalSpent: 75, PurchaseCount: 12, Level: 7},
		},
	}
	f.bot = New(Deps{
		Verifier:     f.verifier,
		Members:      f.members,
		Keys:         f.keys,
		Rewards:      f.rewards,
		Coupons:      fakeCoupons{},
		Tickets:      f.tickets,
		Sync:         f.syncer,
		Cache:        f.cache,
		Roles:        fakeRoles{},
		Status:       f.status,
		Guild:        f.guild,
		LogChannelID: "logs",
	}, f.respond, context.Background())
	return f
}

func member(id string, admin bool) *discordgo.Member {
	m := &discordgo.Member{User: &discordgo.User{ID: id, Username: "user" + id}}
	if admin {
		m.Permissions = discordgo.PermissionAdministrator
	}
	return m
}

func command(name string, m *discordgo.Member, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.Interaction {
	return &discordgo.Interaction{
		ID:        "i-" + name,
		Type:      discordgo.InteractionApplicationCommand,
		ChannelID: "admin-channel",
		Member:    m,
		Data:      discordgo.ApplicationCommandInteractionData{Name: name, Options: opts},
	}
}

func component(customID string, m *discordgo.Member) *discordgo.Interaction {
	return &discordgo.Interaction{
		ID:        "i-" + customID,
		Type:      discordgo.InteractionMessageComponent,
		ChannelID: "ticket-channel",
		Member:    m,
		Data:      discordgo.MessageComponentInteractionData{CustomID: customID},
	}
}

func opt(name string, value any) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Value: value}
}

func TestCommandsAreUniqueAndAdminGated(t *testing.T) {
	seen := map[string]bool{}
	for _, c := range Commands() {
		require.False(t, seen[c.Name], c.Name)
		seen[c.Name] = true
		if strings.HasPrefix(c.Name, "admin_") {
			require.NotNil(t, c.DefaultMemberPermissions, c.Name)
			require.Equal(t, int64(discordgo.PermissionAdministrator), *c.DefaultMemberPermissions)
		} else {
			require.Nil(t, c.DefaultMemberPermissions, c.Name)
		}
	}
	require.Len(t, seen, 9)
}

func TestAdminCommandRejectsNonAdmins(t *testing.T) {
	f := newFixture(t)

	f.bot.Dispatch(context.Background(), command(cmdGiveKeys, member("9", false), opt("user", "1"), opt("amount", float64(3))))

	require.Contains(t, f.respond.lastEmbed(t).Title, "Insufficient permissions")
	require.Equal(t, 2, f.keys.balance["1"])
}

func TestProfile(t *testing.T) {
	f := newFixture(t)

	f.bot.Dispatch(context.Background(), command(cmdProfile, member("2", false)))
	require.Equal(t, "Not verified", f.respond.lastEmbed(t).Title)

	f.bot.Dispatch(context.Background(), command(cmdProfile, member("1", false)))
	embed := f.respond.lastEmbed(t)
	require.Equal(t, "7 (VIP)", embed.Fields[0].Value)
	require.Equal(t, "$75.00", embed.Fields[1].Value)
	require.Contains(t, embed.Fields[3].Value, "to level 8")
	require.Equal(t, "Wave", embed.Fields[5].Value)
	require.Contains(t, embed.Fields[6].Value, "BUYER5-ABC123")
	require.Equal(t, discordgo.MessageFlagsEphemeral, f.respond.responses[0].Data.Flags)
}

func TestVerifyModalRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.bot.Dispatch(ctx, component(VerifyButtonID, member("5", false)))
	require.Len(t, f.respond.responses, 1)
	require.Equal(t, discordgo.InteractionResponseModal, f.respond.responses[0].Type)
	require.Equal(t, VerifyModalID, f.respond.responses[0].Data.CustomID)

	rec := &verification.Record{MemberID: "5", Email: "new@example.com", TotalSpent: 25, Level: 2}
	f.verifier.result = verification.VerifyResult{
		Outcome:     verification.OutcomeVerified,
		Record:      rec,
		Spent:       25,
		InitialKeys: 1,
		Products:    []string{"wave"},
		Coupon:      &coupon.Coupon{Code: "BUYER5-XYZ789", Percent: 5},
		CouponNew:   true,
	}
	f.bot.Dispatch(ctx, &discordgo.Interaction{
		Type:   discordgo.InteractionModalSubmit,
		Member: member("5", false),
		Data: discordgo.ModalSubmitInteractionData{
			CustomID: VerifyModalID,
			Components: []discordgo.MessageComponent{
				&discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					&discordgo.TextInput{CustomID: emailInputID, Value: "New@Example.com"},
				}},
			},
		},
	})

	require.Equal(t, "New@Example.com", f.verifier.req.Email)
	require.Equal(t, "5", f.verifier.req.MemberID)
	require.Equal(t, discordgo.InteractionResponseDeferredChannelMessageWithSource, f.respond.responses[1].Type)
	require.Equal(t, "✅ Verified", f.respond.lastEmbed(t).Title)

	require.Len(t, f.guild.dms["5"], 1)
	require.Contains(t, f.guild.dms["5"][0].Embeds[0].Description, "BUYER5-XYZ789")
	require.Len(t, f.guild.sent["logs"], 1)
}

func TestVerifyFailureOutcomes(t *testing.T) {
	cases := map[verification.Outcome]string{
		verification.OutcomeInvalidEmail:      "Invalid email",
		verification.OutcomeEmailTaken:        "Email in use",
		verification.OutcomeCustomerNotFound:  "Customer not found",
		verification.OutcomeInsufficientSpend: "Not enough purchases",
	}
	for outcome, title := range cases {
		embed := verifyEmbed(verification.VerifyResult{Outcome: outcome, Spent: 9.5})
		require.Contains(t, embed.Title, title)
	}

	embed := verifyEmbed(verification.VerifyResult{Outcome: verification.OutcomeInsufficientSpend, Spent: 9.5})
	require.Contains(t, embed.Description, "$10.00")
	require.Contains(t, embed.Description, "$9.50")

	embed = verifyEmbed(verification.VerifyResult{
		Outcome: verification.OutcomeAlreadyVerified,
		Record:  &verification.Record{Email: "johnnoe@example.com"},
	})
	require.Contains(t, embed.Description, "jo***oe@example.com")
}

func TestClaimOutcomes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.rewards.result = reward.ClaimResult{Outcome: reward.ClaimNoKeys}
	f.bot.Dispatch(ctx, component(ClaimButtonID, member("1", false)))
	require.Equal(t, "No loyalty keys", f.respond.lastEmbed(t).Title)
	require.Empty(t, f.guild.dms)

	f.rewards.result = reward.ClaimResult{
		Outcome:  reward.ClaimGranted,
		Roll:     12,
		KeysLeft: 1,
		Grant: &reward.Grant{
			Kind:        catalog.RewardDiscountKey,
			Value:       1,
			Description: "1-Day Discount Key (10% off)",
			Code:        "ABCDEF123456",
			IssuedAt:    time.Now(),
		},
	}
	f.bot.Dispatch(ctx, component(ClaimButtonID, member("1", false)))
	embed := f.respond.lastEmbed(t)
	require.Contains(t, embed.Description, "ABCDEF123456")
	require.Equal(t, "1", embed.Fields[1].Value)
	require.Contains(t, embed.Fields[2].Value, "within 1 day(s)")
	require.Len(t, f.guild.dms["1"], 1)
	require.Len(t, f.guild.sent["logs"], 1)
}

func TestGiveKeysCreditsAndNotifies(t *testing.T) {
	f := newFixture(t)

	f.bot.Dispatch(context.Background(), command(cmdGiveKeys, member("9", true), opt("user", "1"), opt("amount", float64(3))))

	require.Equal(t, 5, f.keys.balance["1"])
	require.Contains(t, f.respond.lastEmbed(t).Description, "New balance: **5**")
	require.Len(t, f.guild.dms["1"], 1)
	require.Equal(t, "Loyalty Keys Received!", f.guild.dms["1"][0].Embeds[0].Title)
}

func TestSyncConflictShowsReason(t *testing.T) {
	f := newFixture(t)
	f.syncer.err = errutil.Conflict("a member sync is already queued", nil)

	f.bot.Dispatch(context.Background(), command(cmdSync, member("9", true)))

	embed := f.respond.lastEmbed(t)
	require.Contains(t, embed.Title, "Sync not started")
	require.Equal(t, "a member sync is already queued", embed.Description)
}

func TestUnlinkAndLookup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.bot.Dispatch(ctx, command(cmdUnlink, member("9", true)))
	require.Contains(t, f.respond.lastEmbed(t).Title, "Nothing to unlink")
	require.Empty(t, f.verifier.unlinks)

	f.bot.Dispatch(ctx, command(cmdUnlink, member("9", true), opt("user", "404")))
	require.Equal(t, "no verification found", f.respond.lastEmbed(t).Description)

	f.bot.Dispatch(ctx, command(cmdUnlink, member("9", true), opt("email", "a@example.com")))
	require.Equal(t, "Member unlinked", f.respond.lastEmbed(t).Title)
	last := f.verifier.unlinks[len(f.verifier.unlinks)-1]
	require.True(t, last.Admin)
	require.Equal(t, "user9", last.Actor)

	f.bot.Dispatch(ctx, command(cmdLookup, member("9", true), opt("email", "vip@example.com")))
	embed := f.respond.lastEmbed(t)
	require.Equal(t, "Member lookup", embed.Title)
	require.Equal(t, "1", embed.Fields[0].Value)
	require.Equal(t, "2", embed.Fields[6].Value)
}

func TestCheckProducts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.bot.Dispatch(ctx, command(cmdCheckProducts, member("9", true), opt("user", "2")))
	require.Contains(t, f.respond.lastEmbed(t).Title, "Not verified")

	f.syncer.check = &membersync.ProductCheck{Found: []string{"wave", "codex"}, New: []string{"codex"}, Roles: role.Result{Added: []string{"Codex Buyer"}}}
	f.bot.Dispatch(ctx, command(cmdCheckProducts, member("9", true), opt("user", "1")))
	embed := f.respond.lastEmbed(t)
	require.Equal(t, "wave, codex", embed.Fields[1].Value)
	require.Equal(t, "Codex Buyer", embed.Fields[3].Value)
}

func TestCacheActions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.bot.Dispatch(ctx, command(cmdCache, member("9", true), opt("action", cacheActionStats)))
	require.Equal(t, "42", f.respond.lastEmbed(t).Fields[1].Value)

	f.bot.Dispatch(ctx, command(cmdCache, member("9", true), opt("action", cacheActionClear)))
	require.Equal(t, 1, f.cache.cleared)
	require.Contains(t, f.respond.lastEmbed(t).Description, "7 cached")
}

func TestSetupInstallsEveryPanelOnce(t *testing.T) {
	f := newFixture(t)

	f.bot.Dispatch(context.Background(), command(cmdSetup, member("9", true)))

	require.Equal(t, []string{"old-panel"}, f.guild.deleted)
	for _, p := range Panels() {
		msgs := f.guild.sent["c-"+p.Channel]
		require.Len(t, msgs, 1, p.Channel)
		row := msgs[0].Components[0].(discordgo.ActionsRow)
		require.Len(t, row.Components, 1)
	}
	require.Equal(t, 1, f.status.refreshed)
	embed := f.respond.lastEmbed(t)
	require.Contains(t, embed.Description, "#verify refreshed")
	require.Contains(t, embed.Description, "#support created")
}

func TestCloseOutsideTicket(t *testing.T) {
	f := newFixture(t)

	f.bot.Dispatch(context.Background(), component(ticket.CloseButtonID, member("1", false)))

	require.Equal(t, "ticket not found", f.respond.lastEmbed(t).Description)
	require.Empty(t, f.guild.sent["logs"])
}

func TestOpenTicketOutcomes(t *testing.T) {
	f := newFixture(t)

	f.tickets.result = ticket.OpenResult{Outcome: ticket.OpenNotEligible}
	f.bot.Dispatch(context.Background(), component(ticket.PriorityButtonID, member("1", false)))
	require.Contains(t, f.respond.lastEmbed(t).Description, "$70")

	f.tickets.result = ticket.OpenResult{Outcome: ticket.OpenCreated, Ticket: &ticket.Ticket{ChannelID: "t-1"}}
	f.bot.Dispatch(context.Background(), component(ticket.OpenButtonID, member("1", false)))
	require.Contains(t, f.respond.lastEmbed(t).Description, "<#t-1>")
	require.Len(t, f.guild.sent["logs"], 1)
}

func TestStatusCheckButton(t *testing.T) {
	f := newFixture(t)

	f.bot.Dispatch(context.Background(), component(status.CheckButtonID, member("1", false)))

	desc := f.respond.lastEmbed(t).Description
	require.Contains(t, desc, status.IndicatorUp+" **[Wave]")
	require.Equal(t, len(catalog.Products), strings.Count(desc, "\n")+1)
}

func TestOnMessageRecordsHumansOnly(t *testing.T) {
	f := newFixture(t)

	f.bot.OnMessage(nil, &discordgo.MessageCreate{Message: &discordgo.Message{
		ChannelID: "t-1", GuildID: "g", Content: "hello", Author: &discordgo.User{ID: "1", Username: "alice"},
	}})
	f.bot.OnMessage(nil, &discordgo.MessageCreate{Message: &discordgo.Message{
		ChannelID: "t-1", GuildID: "g", Content: "beep", Author: &discordgo.User{ID: "b", Bot: true},
	}})
	f.bot.OnMessage(nil, &discordgo.MessageCreate{Message: &discordgo.Message{
		ChannelID: "dm", Content: "psst", Author: &discordgo.User{ID: "1", Username: "alice"},
	}})

	require.Equal(t, []string{"alice: hello"}, f.tickets.recorded)
}

func TestProgressBar(t *testing.T) {
	require.Equal(t, "░░░░░░░░░░", progressBar(0))
	require.Equal(t, "█████░░░░░", progressBar(50))
	require.Equal(t, "██████████", progressBar(150))
}
