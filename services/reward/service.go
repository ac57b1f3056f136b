package reward

import (
	"context"
	"time"

	"storefront-bot/pkg/sequence"
	"storefront-bot/services/catalog"
	"storefront-bot/services/loyalty"
	"storefront-bot/services/verification"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("reward",
	fx.Provide(NewService),
)

type Grant struct {
	ID          snowflake.ID       `gorm:"column:id;primaryKey;autoIncrement:false" json:"id"`
	MemberID    string             `gorm:"column:member_id;index;size:32;not null" json:"member_id"`
	Kind        catalog.RewardKind `gorm:"column:kind;type:varchar(32);not null" json:"kind"`
	Value       int                `gorm:"column:value;not null" json:"value"`
	Description string             `gorm:"column:description" json:"description"`
	Code        string             `gorm:"column:code;uniqueIndex;size:16;not null" json:"code"`
	IssuedAt    time.Time          `gorm:"column:issued_at" json:"issued_at"`
	ExpiresAt   *time.Time         `gorm:"column:expires_at" json:"expires_at,omitempty"`
	Used        bool               `gorm:"column:used;not null;default:false" json:"used"`
}

func (Grant) TableName() string { return "reward_grants" }

type ClaimOutcome string

const (
	ClaimGranted     ClaimOutcome = "granted"
	ClaimNotVerified ClaimOutcome = "not_verified"
	ClaimNoKeys      ClaimOutcome = "no_keys"
)

type ClaimResult struct {
	Outcome  ClaimOutcome
	Grant    *Grant
	Roll     int
	KeysLeft int
}

type Members interface {
	GetByMember(ctx context.Context, memberID string) (*verification.Record, error)
}

type Service struct {
	db      *gorm.DB
	node    *snowflake.Node
	members Members
	loyalty *loyalty.Ledger
	roller  *Roller
}

type ServiceParams struct {
	fx.In
	DB      *gorm.DB
	Node    *snowflake.Node
	Members *verification.Ledger
	Loyalty *loyalty.Ledger
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:      p.DB,
		node:    p.Node,
		members: p.Members,
		loyalty: p.Loyalty,
		roller:  NewRoller(catalog.Rewards, uint64(time.Now().UnixNano())),
	}
}

// Claim spends one key and draws a reward. The key is consumed before the
// roll in the same transaction that stores the grant, so a consumed key
// always produces a grant and a failed consumption never rolls.
func (s *Service) Claim(ctx context.Context, memberID string) (ClaimResult, error) {
	rec, err := s.members.GetByMember(ctx, memberID)
	if err != nil {
		return ClaimResult{}, err
	}
	if rec == nil {
		return ClaimResult{Outcome: ClaimNotVerified}, nil
	}

	var result ClaimResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		keys := s.loyalty.WithTx(tx)
		ok, err := keys.UseKey(ctx, memberID)
		if err != nil {
			return err
		}
		if !ok {
			result = ClaimResult{Outcome: ClaimNoKeys}
			return nil
		}

		roll := s.roller.Roll()
		_, entry := s.roller.Pick(roll)
		grant, err := s.newGrant(memberID, entry)
		if err != nil {
			return err
		}
		if err := tx.Create(grant).Error; err != nil {
			return err
		}

		left, err := keys.Get(ctx, memberID)
		if err != nil {
			return err
		}
		result = ClaimResult{Outcome: ClaimGranted, Grant: grant, Roll: roll, KeysLeft: left.KeysBalance}
		return nil
	})
	if err != nil {
		zap.L().Error("[Reward] claim failed", zap.String("member_id", memberID), zap.Error(err))
		return ClaimResult{}, err
	}

	if result.Grant != nil {
		zap.L().Info("[Reward] granted",
			zap.String("member_id", memberID),
			zap.String("kind", string(result.Grant.Kind)),
			zap.Int("roll", result.Roll),
		)
	}
	return result, nil
}

func (s *Service) newGrant(memberID string, entry catalog.Reward) (*Grant, error) {
	code, err := sequence.RewardCode()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	g := &Grant{
		ID:          s.node.Generate(),
		MemberID:    memberID,
		Kind:        entry.Kind,
		Value:       entry.Value,
		Description: entry.Description,
		Code:        code,
		IssuedAt:    now,
	}
	if entry.Kind == catalog.RewardDiscountKey {
		exp := now.AddDate(0, 0, entry.Value)
		g.ExpiresAt = &exp
	}
	return g, nil
}

func (s *Service) ListGrants(ctx context.Context, memberID string) ([]Grant, error) {
	var out []Grant
	err := s.db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Order("issued_at DESC").
		Find(&out).Error
	return out, err
}
