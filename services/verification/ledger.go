package verification

import (
	"context"
	"errors"
	"strings"
	"time"

	"storefront-bot/pkg/errutil"
	"storefront-bot/services/catalog"
	"storefront-bot/services/loyalty"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrMemberLinked = errors.New("member already verified")
	ErrEmailLinked  = errors.New("email already linked to another member")
)

// Ledger persists member to email links, the claim counter and owned products.
type Ledger struct {
	db      *gorm.DB
	node    *snowflake.Node
	loyalty *loyalty.Ledger
}

type LedgerParams struct {
	fx.In
	DB      *gorm.DB
	Node    *snowflake.Node
	Loyalty *loyalty.Ledger
}

func NewLedger(p LedgerParams) *Ledger {
	return &Ledger{db: p.DB, node: p.Node, loyalty: p.Loyalty}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type LinkParams struct {
	MemberID      string
	Username      string
	Email         string
	TotalSpent    float64
	PurchaseCount int
}

// Link creates the member's verification record and its loyalty record, and
// credits the purchase keys this email has not collected under an earlier
// link. Everything commits together. It returns the record and the keys
// credited; a member or email already linked yields a Conflict.
func (l *Ledger) Link(ctx context.Context, p LinkParams) (Record, int, error) {
	email := NormalizeEmail(p.Email)
	now := time.Now().UTC()
	rec := Record{
		MemberID:      p.MemberID,
		Email:         email,
		Username:      p.Username,
		TotalSpent:    p.TotalSpent,
		PurchaseCount: p.PurchaseCount,
		Level:         catalog.Level(p.TotalSpent),
		VerifiedAt:    now,
		LastUpdated:   now,
	}

	var keys int
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Record{}).Where("member_id = ?", p.MemberID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return errutil.Conflict("member already verified", ErrMemberLinked)
		}

		if err := tx.Model(&Record{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return errutil.Conflict("email already linked", ErrEmailLinked)
		}

		if err := tx.Create(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errutil.Conflict("verification already exists", ErrEmailLinked)
			}
			return err
		}

		txl := l.loyalty.WithTx(tx)
		if err := txl.Init(ctx, p.MemberID); err != nil {
			return err
		}

		claimed, err := keysClaimed(ctx, tx, email)
		if err != nil {
			return err
		}
		if n := txl.KeysEarned(p.PurchaseCount, 0) - claimed; n > 0 {
			if _, err := txl.AccrueKeys(ctx, p.MemberID, n); err != nil {
				return err
			}
			keys = n
		}
		return nil
	})
	if err != nil {
		return Record{}, 0, err
	}

	return rec, keys, nil
}

// StatsUpdate is what ApplyStats changed.
type StatsUpdate struct {
	Applied bool
	Keys    int
	Balance int
}

// ApplyStats overwrites spend and purchase count, recomputes the level and
// credits the keys crossed since the stored purchase count. The stats write
// and the credit commit together, and the write only lands when the stored
// count is still the one the keys were computed from, so a concurrent run
// cannot credit the same purchases twice. Unknown members are ignored.
func (l *Ledger) ApplyStats(ctx context.Context, memberID string, spent float64, count int) (StatsUpdate, error) {
	var out StatsUpdate
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec Record
		err := tx.Where("member_id = ?", memberID).First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		res := tx.Model(&Record{}).
			Where("member_id = ? AND purchase_count = ?", memberID, rec.PurchaseCount).
			Updates(map[string]any{
				"total_spent":    spent,
				"purchase_count": count,
				"level":          catalog.Level(spent),
				"last_updated":   time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		out.Applied = true

		txl := l.loyalty.WithTx(tx)
		if n := txl.KeysEarned(count, rec.PurchaseCount); n > 0 {
			balance, err := txl.AccrueKeys(ctx, memberID, n)
			if err != nil {
				return err
			}
			out.Keys, out.Balance = n, balance
		}
		return nil
	})
	if err != nil {
		return StatsUpdate{}, err
	}
	return out, nil
}

// Unlink removes the member's verification, loyalty and product rows and
// returns the removed record, or nil when the member was not verified.
func (l *Ledger) Unlink(ctx context.Context, memberID string) (*Record, error) {
	return l.unlink(ctx, "member_id = ?", memberID)
}

// UnlinkByEmail behaves like Unlink but locates the record by email.
func (l *Ledger) UnlinkByEmail(ctx context.Context, email string) (*Record, error) {
	return l.unlink(ctx, "email = ?", NormalizeEmail(email))
}

func (l *Ledger) unlink(ctx context.Context, query string, arg any) (*Record, error) {
	var removed *Record
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec Record
		err := tx.Where(query, arg).First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		keys, err := l.loyalty.WithTx(tx).Delete(ctx, rec.MemberID)
		if err != nil {
			return err
		}
		if err := addClaimed(ctx, tx, rec.Email, keys.PurchaseKeysEarned); err != nil {
			return err
		}

		if err := tx.Where("member_id = ?", rec.MemberID).Delete(&ProductOwnership{}).Error; err != nil {
			return err
		}
		if err := tx.Where("member_id = ?", rec.MemberID).Delete(&Record{}).Error; err != nil {
			return err
		}

		removed = &rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	if removed != nil {
		zap.L().Info("[Verification] unlinked member",
			zap.String("member_id", removed.MemberID),
			zap.String("email", MaskEmail(removed.Email)),
		)
	}
	return removed, nil
}

// addClaimed preserves the purchase keys credited during the link that is
// being removed. Gifted keys are not added.
func addClaimed(ctx context.Context, tx *gorm.DB, email string, n int) error {
	if err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).
		Create(&KeyClaimHistory{Email: email, UpdatedAt: time.Now().UTC()}).Error; err != nil {
		return err
	}
	if n <= 0 {
		return nil
	}
	return tx.WithContext(ctx).Model(&KeyClaimHistory{}).
		Where("email = ?", email).
		Updates(map[string]any{
			"keys_claimed": gorm.Expr("keys_claimed + ?", n),
			"updated_at":   time.Now().UTC(),
		}).Error
}

// KeysClaimed returns how many purchase keys earlier links of this email collected.
func (l *Ledger) KeysClaimed(ctx context.Context, email string) (int, error) {
	return keysClaimed(ctx, l.db, NormalizeEmail(email))
}

func keysClaimed(ctx context.Context, db *gorm.DB, email string) (int, error) {
	var h KeyClaimHistory
	err := db.WithContext(ctx).Where("email = ?", email).First(&h).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return h.KeysClaimed, nil
}

// GetByMember returns nil when the member is not verified.
func (l *Ledger) GetByMember(ctx context.Context, memberID string) (*Record, error) {
	return l.first(ctx, "member_id = ?", memberID)
}

// GetByEmail matches case-insensitively and returns nil when the email is not linked.
func (l *Ledger) GetByEmail(ctx context.Context, email string) (*Record, error) {
	return l.first(ctx, "email = ?", NormalizeEmail(email))
}

func (l *Ledger) first(ctx context.Context, query string, arg any) (*Record, error) {
	var rec Record
	err := l.db.WithContext(ctx).Where(query, arg).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (l *Ledger) ListAll(ctx context.Context) ([]Record, error) {
	var out []Record
	if err := l.db.WithContext(ctx).Order("verified_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (l *Ledger) Count(ctx context.Context) (int64, error) {
	var n int64
	err := l.db.WithContext(ctx).Model(&Record{}).Count(&n).Error
	return n, err
}

type Attempt struct {
	MemberID string
	Username string
	Email    string
	Action   Action
	Success  bool
	Details  map[string]any
}

// LogAttempt appends to the audit trail. Failures are logged and swallowed.
func (l *Ledger) LogAttempt(ctx context.Context, a Attempt) {
	entry := Log{
		ID:        l.node.Generate(),
		MemberID:  a.MemberID,
		Username:  a.Username,
		Email:     NormalizeEmail(a.Email),
		Action:    a.Action,
		Success:   a.Success,
		Details:   datatypes.JSONMap(a.Details),
		CreatedAt: time.Now().UTC(),
	}
	if err := l.db.WithContext(ctx).Create(&entry).Error; err != nil {
		zap.L().Warn("[Verification] failed to write audit log", zap.String("member_id", a.MemberID), zap.Error(err))
	}
}

func (l *Ledger) Logs(ctx context.Context, memberID string, limit int) ([]Log, error) {
	var out []Log
	err := l.db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// RecordProducts stores newly detected products and returns the ones that
// were not owned before.
func (l *Ledger) RecordProducts(ctx context.Context, memberID string, productIDs []string) ([]string, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}

	owned, err := l.Products(ctx, memberID)
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(owned))
	for _, id := range owned {
		have[id] = true
	}

	now := time.Now().UTC()
	var (
		fresh []string
		rows  []ProductOwnership
	)
	for _, id := range productIDs {
		if have[id] {
			continue
		}
		have[id] = true
		fresh = append(fresh, id)
		rows = append(rows, ProductOwnership{MemberID: memberID, ProductID: id, DetectedAt: now})
	}
	if len(rows) == 0 {
		return nil, nil
	}

	if err := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error; err != nil {
		return nil, err
	}
	return fresh, nil
}

func (l *Ledger) Products(ctx context.Context, memberID string) ([]string, error) {
	var ids []string
	err := l.db.WithContext(ctx).Model(&ProductOwnership{}).
		Where("member_id = ?", memberID).
		Order("product_id").
		Pluck("product_id", &ids).Error
	return ids, err
}

// MaskEmail keeps the first character of a short local part, or the first and
// last two characters of a longer one.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return email
	}
	local, domain := email[:at], email[at:]
	if len(local) <= 4 {
		return local[:1] + strings.Repeat("*", len(local)-1) + domain
	}
	return local[:2] + strings.Repeat("*", len(local)-4) + local[len(local)-2:] + domain
}
