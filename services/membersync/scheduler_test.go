package membersync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"storefront-bot/services/customer"
	"storefront-bot/services/loyalty"
	"storefront-bot/services/role"
	"storefront-bot/services/role/roletest"
	"storefront-bot/services/testutil"
	"storefront-bot/services/verification"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeDirectory struct {
	mu        sync.Mutex
	customers map[string]customer.Record
	items     map[string][]customer.LineItem
	panicOn   string
	onLookup  func()
}

func (f *fakeDirectory) Lookup(_ context.Context, email string) (customer.Record, bool) {
	if f.onLookup != nil {
		f.onLookup()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if email == f.panicOn {
		panic("directory exploded")
	}
	rec, ok := f.customers[email]
	return rec, ok
}

func (f *fakeDirectory) PurchaseCount(_ context.Context, email string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.customers[email].OrderCount
}

func (f *fakeDirectory) Products(_ context.Context, email string) []customer.LineItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[email]
}

type keysNote struct {
	memberID      string
	keys, balance int
}

type fakeNotifier struct {
	notes []keysNote
}

func (f *fakeNotifier) KeysEarned(_ context.Context, memberID string, keys, balance int) error {
	f.notes = append(f.notes, keysNote{memberID, keys, balance})
	return nil
}

type fixture struct {
	db        *gorm.DB
	scheduler *Scheduler
	members   *verification.Ledger
	keys      *loyalty.Ledger
	dir       *fakeDirectory
	guild     *roletest.FakeGuild
	notifier  *fakeNotifier
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.NewTestDB(t, append(verification.Models(), &loyalty.Record{})...)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	keys := loyalty.NewLedger(loyalty.LedgerParams{DB: db})
	members := verification.NewLedger(verification.LedgerParams{DB: db, Node: node, Loyalty: keys})

	guild := roletest.NewFakeGuild()
	roles := role.NewReconciler(guild)
	_, err = roles.EnsureRoles(context.Background())
	require.NoError(t, err)

	dir := &fakeDirectory{customers: map[string]customer.Record{}, items: map[string][]customer.LineItem{}}
	notifier := &fakeNotifier{}

	s := NewScheduler(Options{
		Members:     members,
		Directory:   dir,
		Roles:       roles,
		Notifier:    notifier,
		MemberDelay: -1,
	})
	return fixture{db: db, scheduler: s, members: members, keys: keys, dir: dir, guild: guild, notifier: notifier}
}

func (f fixture) link(t *testing.T, memberID, email string, spent float64, count int) {
	t.Helper()
	_, _, err := f.members.Link(context.Background(), verification.LinkParams{
		MemberID: memberID, Email: email, TotalSpent: spent, PurchaseCount: count,
	})
	require.NoError(t, err)
}

func TestRunOnceAppliesNewPurchases(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.link(t, "1", "a@example.com", 20, 3)
	f.dir.customers["a@example.com"] = customer.Record{Email: "a@example.com", TotalSpend: 75, OrderCount: 12}
	f.dir.items["a@example.com"] = []customer.LineItem{{ProductName: "Wave 7 days"}}

	rep, err := f.scheduler.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, rep.Checked)
	require.Equal(t, 1, rep.Updated)
	require.Equal(t, 2, rep.KeysAwarded)
	require.Equal(t, 1, rep.RolesChanged)
	require.Zero(t, rep.Failed)

	rec, err := f.members.GetByMember(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, 7, rec.Level)
	require.Equal(t, 12, rec.PurchaseCount)

	bal, err := f.keys.Get(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, 2, bal.KeysBalance)
	require.Equal(t, []keysNote{{"1", 2, 2}}, f.notifier.notes)

	require.Equal(t, []string{"$70 VIP", "Priority Support", "Verified Buyer", "Wave Buyer"}, f.guild.RoleNames("1"))

	owned, err := f.members.Products(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, []string{"wave"}, owned)

	last, ok := f.scheduler.LastReport()
	require.True(t, ok)
	require.Equal(t, rep.Updated, last.Updated)

	// nothing changed remotely, so the second pass is a no-op
	rep, err = f.scheduler.RunOnce(ctx)
	require.NoError(t, err)
	require.Zero(t, rep.Updated)
	require.Zero(t, rep.KeysAwarded)
	require.Len(t, f.notifier.notes, 1)
}

func TestRunOnceRetriesKeysAfterFailedCredit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.link(t, "1", "a@example.com", 20, 4)
	f.dir.customers["a@example.com"] = customer.Record{Email: "a@example.com", TotalSpend: 25, OrderCount: 5}

	// Without the loyalty table the key credit fails inside the transaction.
	require.NoError(t, f.db.Migrator().DropTable(&loyalty.Record{}))
	rep, err := f.scheduler.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, rep.Failed)
	require.Zero(t, rep.Updated)

	rec, err := f.members.GetByMember(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, 4, rec.PurchaseCount)
	require.Equal(t, 20.0, rec.TotalSpent)

	require.NoError(t, f.db.AutoMigrate(&loyalty.Record{}))
	rep, err = f.scheduler.RunOnce(ctx)
	require.NoError(t, err)
	require.Zero(t, rep.Failed)
	require.Equal(t, 1, rep.Updated)
	require.Equal(t, 1, rep.KeysAwarded)

	bal, err := f.keys.Get(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, 1, bal.KeysBalance)
	require.Equal(t, 1, bal.PurchaseKeysEarned)
}

func TestRunOnceSpendChangeWithoutNewKey(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.link(t, "1", "a@example.com", 20, 5)
	f.guild.Grant("1", "$20 Buyer")
	f.dir.customers["a@example.com"] = customer.Record{Email: "a@example.com", TotalSpend: 35, OrderCount: 6}

	rep, err := f.scheduler.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, rep.Updated)
	require.Zero(t, rep.KeysAwarded)
	require.Empty(t, f.notifier.notes)
	require.Equal(t, []string{"$30 Buyer", "Verified Buyer"}, f.guild.RoleNames("1"))
}

func TestRunOnceLeavesMissingCustomersAlone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.link(t, "1", "gone@example.com", 40, 4)

	rep, err := f.scheduler.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, rep.Checked)
	require.Zero(t, rep.Updated)

	rec, err := f.members.GetByMember(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, 40.0, rec.TotalSpent)
}

func TestRunOnceContinuesPastFailingMember(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.link(t, "1", "boom@example.com", 20, 1)
	f.link(t, "2", "ok@example.com", 20, 1)
	f.dir.panicOn = "boom@example.com"
	f.dir.customers["ok@example.com"] = customer.Record{Email: "ok@example.com", TotalSpend: 50, OrderCount: 5}

	rep, err := f.scheduler.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, rep.Checked)
	require.Equal(t, 1, rep.Failed)
	require.Equal(t, 1, rep.Updated)
	require.Equal(t, 1, rep.KeysAwarded)
}

func TestRunOnceStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	f.link(t, "1", "a@example.com", 20, 1)
	f.link(t, "2", "b@example.com", 20, 1)
	f.scheduler.delay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.dir.onLookup = cancel

	rep, err := f.scheduler.RunOnce(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, rep.Checked)
}

func TestCheckProducts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	check, err := f.scheduler.CheckProducts(ctx, "404")
	require.NoError(t, err)
	require.Nil(t, check)

	f.link(t, "1", "a@example.com", 20, 1)
	f.dir.items["a@example.com"] = []customer.LineItem{{ProductName: "Codex Key"}, {ProductName: "Arceus X V5"}}

	check, err = f.scheduler.CheckProducts(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, []string{"codex", "arceus"}, check.Found)
	require.Equal(t, []string{"codex", "arceus"}, check.New)
	require.ElementsMatch(t, []string{"Codex Buyer", "Arceus Buyer"}, check.Roles.Added)

	check, err = f.scheduler.CheckProducts(ctx, "1")
	require.NoError(t, err)
	require.Empty(t, check.New)
	require.Empty(t, check.Roles.Added)
}
