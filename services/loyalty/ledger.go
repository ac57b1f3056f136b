package loyalty

import (
	"context"
	"errors"
	"time"

	"storefront-bot/pkg/config"
	"storefront-bot/services/catalog"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ledger stores loyalty key balances. Every balance mutation is a single SQL
// statement so concurrent accrual and consumption cannot interleave.
type Ledger struct {
	db     *gorm.DB
	perKey int
}

type LedgerParams struct {
	fx.In
	DB     *gorm.DB
	Config *config.Config `optional:"true"`
}

func NewLedger(p LedgerParams) *Ledger {
	perKey := catalog.PurchasesPerKey
	if p.Config != nil && p.Config.Sync.PurchasesPerKey > 0 {
		perKey = p.Config.Sync.PurchasesPerKey
	}
	return &Ledger{db: p.DB, perKey: perKey}
}

// WithTx returns a ledger bound to an open transaction.
func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	return &Ledger{db: tx, perKey: l.perKey}
}

func (l *Ledger) PurchasesPerKey() int { return l.perKey }

// KeysEarned is the number of keys crossed between two purchase counts.
func (l *Ledger) KeysEarned(current, previous int) int {
	return catalog.KeysEarned(current, previous, l.perKey)
}

// Get returns the member's record, or a zero record when none exists.
func (l *Ledger) Get(ctx context.Context, memberID string) (Record, error) {
	var rec Record
	err := l.db.WithContext(ctx).Where("member_id = ?", memberID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Record{MemberID: memberID}, nil
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Init creates an empty record for the member when one does not exist yet.
func (l *Ledger) Init(ctx context.Context, memberID string) error {
	return l.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "member_id"}}, DoNothing: true}).
		Create(&Record{MemberID: memberID}).Error
}

// AddKeys credits n gifted keys, creating the record if needed, and returns
// the new balance. Gifts never count towards the purchase claim counter.
func (l *Ledger) AddKeys(ctx context.Context, memberID string, n int) (int, error) {
	return l.credit(ctx, memberID, n, false)
}

// AccrueKeys credits n keys earned through purchases and returns the new balance.
func (l *Ledger) AccrueKeys(ctx context.Context, memberID string, n int) (int, error) {
	return l.credit(ctx, memberID, n, true)
}

func (l *Ledger) credit(ctx context.Context, memberID string, n int, purchase bool) (int, error) {
	if n <= 0 {
		rec, err := l.Get(ctx, memberID)
		return rec.KeysBalance, err
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"keys_balance":       gorm.Expr("keys_balance + ?", n),
		"total_keys_earned":  gorm.Expr("total_keys_earned + ?", n),
		"last_key_earned_at": now,
		"updated_at":         now,
	}
	if purchase {
		updates["purchase_keys_earned"] = gorm.Expr("purchase_keys_earned + ?", n)
	}

	var balance int
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txl := l.WithTx(tx)
		if err := txl.Init(ctx, memberID); err != nil {
			return err
		}
		if err := tx.Model(&Record{}).Where("member_id = ?", memberID).Updates(updates).Error; err != nil {
			return err
		}
		rec, err := txl.Get(ctx, memberID)
		if err != nil {
			return err
		}
		balance = rec.KeysBalance
		return nil
	})
	if err != nil {
		zap.L().Error("[Loyalty] failed to add keys",
			zap.String("member_id", memberID),
			zap.Int("keys", n),
			zap.Bool("purchase", purchase),
			zap.Error(err),
		)
		return 0, err
	}

	return balance, nil
}

// UseKey consumes one key. It returns false, leaving every counter untouched,
// when the balance is zero or the member has no record.
func (l *Ledger) UseKey(ctx context.Context, memberID string) (bool, error) {
	res := l.db.WithContext(ctx).Model(&Record{}).
		Where("member_id = ? AND keys_balance > 0", memberID).
		Updates(map[string]any{
			"keys_balance":    gorm.Expr("keys_balance - 1"),
			"total_keys_used": gorm.Expr("total_keys_used + 1"),
			"updated_at":      time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Delete removes the member's record and returns what was removed.
func (l *Ledger) Delete(ctx context.Context, memberID string) (Record, error) {
	rec, err := l.Get(ctx, memberID)
	if err != nil {
		return Record{}, err
	}
	if err := l.db.WithContext(ctx).Where("member_id = ?", memberID).Delete(&Record{}).Error; err != nil {
		return Record{}, err
	}
	return rec, nil
}
