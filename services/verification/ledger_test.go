package verification

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront-bot/pkg/errutil"
	"storefront-bot/services/loyalty"
	"storefront-bot/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type ledgers struct {
	members *Ledger
	keys    *loyalty.Ledger
}

func newLedgers(t *testing.T, extra ...any) ledgers {
	t.Helper()
	models := append(Models(), &loyalty.Record{})
	db := testutil.NewTestDB(t, append(models, extra...)...)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	keys := loyalty.NewLedger(loyalty.LedgerParams{DB: db})
	return ledgers{
		members: NewLedger(LedgerParams{DB: db, Node: node, Loyalty: keys}),
		keys:    keys,
	}
}

func TestLinkCreatesLoyaltyRecord(t *testing.T) {
	ctx := context.Background()
	l := newLedgers(t)

	rec, keys, err := l.members.Link(ctx, LinkParams{MemberID: "1", Username: "alice", Email: "Alice@Example.com", TotalSpent: 75, PurchaseCount: 3})
	require.NoError(t, err)
	require.Zero(t, keys)
	require.Equal(t, "alice@example.com", rec.Email)
	require.Equal(t, 7, rec.Level)

	var count int64
	require.NoError(t, l.members.db.Model(&loyalty.Record{}).Where("member_id = ?", "1").Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestLinkConflicts(t *testing.T) {
	ctx := context.Background()
	l := newLedgers(t)

	_, _, err := l.members.Link(ctx, LinkParams{MemberID: "1", Email: "a@example.com", TotalSpent: 20})
	require.NoError(t, err)

	_, _, err = l.members.Link(ctx, LinkParams{MemberID: "1", Email: "b@example.com", TotalSpent: 20})
	require.ErrorIs(t, err, ErrMemberLinked)
	require.True(t, errutil.HasStatus(err, errutil.StatusConflict))

	_, _, err = l.members.Link(ctx, LinkParams{MemberID: "2", Email: "A@example.com", TotalSpent: 20})
	require.ErrorIs(t, err, ErrEmailLinked)

	rec, err := l.members.GetByMember(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, "a@example.com", rec.Email)
}

func TestApplyStats(t *testing.T) {
	ctx := context.Background()
	l := newLedgers(t)

	_, keys, err := l.members.Link(ctx, LinkParams{MemberID: "1", Email: "a@example.com", TotalSpent: 20, PurchaseCount: 2})
	require.NoError(t, err)
	require.Zero(t, keys)

	upd, err := l.members.ApplyStats(ctx, "1", 123.4, 11)
	require.NoError(t, err)
	require.Equal(t, StatsUpdate{Applied: true, Keys: 2, Balance: 2}, upd)

	rec, err := l.members.GetByEmail(ctx, "A@EXAMPLE.com")
	require.NoError(t, err)
	require.Equal(t, 10, rec.Level)
	require.Equal(t, 11, rec.PurchaseCount)

	// same count again credits nothing
	upd, err = l.members.ApplyStats(ctx, "1", 130, 11)
	require.NoError(t, err)
	require.True(t, upd.Applied)
	require.Zero(t, upd.Keys)

	// unknown members are not created
	upd, err = l.members.ApplyStats(ctx, "2", 50, 1)
	require.NoError(t, err)
	require.False(t, upd.Applied)
	missing, err := l.members.GetByMember(ctx, "2")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestApplyStatsRollsBackWhenCreditFails(t *testing.T) {
	ctx := context.Background()
	l := newLedgers(t)

	_, _, err := l.members.Link(ctx, LinkParams{MemberID: "1", Email: "a@example.com", TotalSpent: 20, PurchaseCount: 4})
	require.NoError(t, err)

	require.NoError(t, l.members.db.Migrator().DropTable(&loyalty.Record{}))
	_, err = l.members.ApplyStats(ctx, "1", 25, 5)
	require.Error(t, err)

	rec, err := l.members.GetByMember(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, 4, rec.PurchaseCount)

	require.NoError(t, l.members.db.AutoMigrate(&loyalty.Record{}))
	upd, err := l.members.ApplyStats(ctx, "1", 25, 5)
	require.NoError(t, err)
	require.Equal(t, 1, upd.Keys)
}

func TestLinkRollsBackWhenCreditFails(t *testing.T) {
	ctx := context.Background()
	l := newLedgers(t)

	require.NoError(t, l.members.db.Migrator().DropTable(&loyalty.Record{}))
	_, _, err := l.members.Link(ctx, LinkParams{MemberID: "1", Email: "a@example.com", TotalSpent: 50, PurchaseCount: 10})
	require.Error(t, err)

	rec, err := l.members.GetByMember(ctx, "1")
	require.NoError(t, err)
	require.Nil(t, rec)

	require.NoError(t, l.members.db.AutoMigrate(&loyalty.Record{}))
	_, keys, err := l.members.Link(ctx, LinkParams{MemberID: "1", Email: "a@example.com", TotalSpent: 50, PurchaseCount: 10})
	require.NoError(t, err)
	require.Equal(t, 2, keys)
}

func TestLinkCreditsUnclaimedPurchaseKeys(t *testing.T) {
	ctx := context.Background()
	l := newLedgers(t)

	_, keys, err := l.members.Link(ctx, LinkParams{MemberID: "1", Email: "a@example.com", TotalSpent: 50, PurchaseCount: 10})
	require.NoError(t, err)
	require.Equal(t, 2, keys)

	// gifts from an admin must not count as claimed purchase keys
	_, err = l.keys.AddKeys(ctx, "1", 3)
	require.NoError(t, err)
	_, err = l.members.Unlink(ctx, "1")
	require.NoError(t, err)

	claimed, err := l.members.KeysClaimed(ctx, "a@example.com")
	require.NoError(t, err)
	require.Equal(t, 2, claimed)

	_, keys, err = l.members.Link(ctx, LinkParams{MemberID: "2", Email: "a@example.com", TotalSpent: 120, PurchaseCount: 25})
	require.NoError(t, err)
	require.Equal(t, 3, keys)

	rec, err := l.keys.Get(ctx, "2")
	require.NoError(t, err)
	require.Equal(t, 3, rec.KeysBalance)
	require.Equal(t, 3, rec.PurchaseKeysEarned)
}

func TestUnlinkPreservesClaimCounterOnBothPaths(t *testing.T) {
	ctx := context.Background()

	unlinkers := map[string]func(l ledgers) (*Record, error){
		"by member": func(l ledgers) (*Record, error) { return l.members.Unlink(ctx, "1") },
		"by email":  func(l ledgers) (*Record, error) { return l.members.UnlinkByEmail(ctx, "A@example.com") },
	}

	for name, unlink := range unlinkers {
		t.Run(name, func(t *testing.T) {
			l := newLedgers(t)

			_, _, err := l.members.Link(ctx, LinkParams{MemberID: "1", Email: "a@example.com", TotalSpent: 20})
			require.NoError(t, err)
			_, err = l.keys.AccrueKeys(ctx, "1", 3)
			require.NoError(t, err)
			_, err = l.members.RecordProducts(ctx, "1", []string{"wave"})
			require.NoError(t, err)

			removed, err := unlink(l)
			require.NoError(t, err)
			require.NotNil(t, removed)
			require.Equal(t, "1", removed.MemberID)

			claimed, err := l.members.KeysClaimed(ctx, "a@example.com")
			require.NoError(t, err)
			require.Equal(t, 3, claimed)

			rec, err := l.keys.Get(ctx, "1")
			require.NoError(t, err)
			require.Zero(t, rec.TotalKeysEarned)

			products, err := l.members.Products(ctx, "1")
			require.NoError(t, err)
			require.Empty(t, products)

			again, err := unlink(l)
			require.NoError(t, err)
			require.Nil(t, again)
		})
	}
}

func TestClaimCounterAccumulatesAcrossLinks(t *testing.T) {
	ctx := context.Background()
	l := newLedgers(t)

	for i, keys := range []int{2, 1} {
		_, _, err := l.members.Link(ctx, LinkParams{MemberID: "1", Email: "a@example.com", TotalSpent: 20})
		require.NoError(t, err, "link %d", i)
		_, err = l.keys.AccrueKeys(ctx, "1", keys)
		require.NoError(t, err)
		_, err = l.members.Unlink(ctx, "1")
		require.NoError(t, err)
	}

	claimed, err := l.members.KeysClaimed(ctx, "a@example.com")
	require.NoError(t, err)
	require.Equal(t, 3, claimed)
}

func TestRecordProductsReturnsOnlyNew(t *testing.T) {
	ctx := context.Background()
	l := newLedgers(t)

	fresh, err := l.members.RecordProducts(ctx, "1", []string{"wave", "codex"})
	require.NoError(t, err)
	require.Equal(t, []string{"wave", "codex"}, fresh)

	fresh, err = l.members.RecordProducts(ctx, "1", []string{"codex", "volt", "volt"})
	require.NoError(t, err)
	require.Equal(t, []string{"volt"}, fresh)

	owned, err := l.members.Products(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, []string{"codex", "volt", "wave"}, owned)
}

func TestLogAttempt(t *testing.T) {
	ctx := context.Background()
	l := newLedgers(t)

	l.members.LogAttempt(ctx, Attempt{MemberID: "1", Email: "A@b.co", Action: ActionVerify, Details: map[string]any{"reason": "x"}})
	logs, err := l.members.Logs(ctx, "1", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, "a@b.co", logs[0].Email)
	require.Equal(t, "x", logs[0].Details["reason"])
}

func TestMaskEmail(t *testing.T) {
	require.Equal(t, "a***@example.com", MaskEmail("abcd@example.com"))
	require.Equal(t, "jo***oe@example.com", MaskEmail("johnnoe@example.com"))
	require.Equal(t, "nope", MaskEmail("nope"))
}
