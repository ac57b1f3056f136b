package coupon

import (
	"context"
	"errors"
	"strings"
	"time"

	"storefront-bot/pkg/sequence"
	"storefront-bot/services/catalog"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("coupon",
	fx.Provide(NewService),
)

type Coupon struct {
	Code     string    `gorm:"column:code;primaryKey;size:32" json:"code"`
	MemberID string    `gorm:"column:member_id;index;size:32;not null" json:"member_id"`
	Email    string    `gorm:"column:email;size:320;not null;uniqueIndex:idx_coupon_email_level" json:"email"`
	Level    int       `gorm:"column:level;not null;uniqueIndex:idx_coupon_email_level" json:"level"`
	Percent  int       `gorm:"column:percent;not null" json:"percent"`
	IssuedAt time.Time `gorm:"column:issued_at" json:"issued_at"`
	Used     bool      `gorm:"column:used;not null;default:false" json:"used"`
}

func (Coupon) TableName() string { return "issued_coupons" }

type Service struct {
	db *gorm.DB
}

type ServiceParams struct {
	fx.In
	DB *gorm.DB
}

func NewService(p ServiceParams) *Service {
	return &Service{db: p.DB}
}

const maxCodeAttempts = 3

// IssueForLevel issues the level's discount coupon at most once per email and
// once per member. When a coupon for the level already exists it is returned
// with issued=false. Level zero gets no coupon.
func (s *Service) IssueForLevel(ctx context.Context, memberID, email string, level int) (*Coupon, bool, error) {
	discount := catalog.DiscountForLevel(level)
	if discount.Percent == 0 {
		return nil, false, nil
	}
	email = strings.ToLower(strings.TrimSpace(email))

	existing, err := s.existing(ctx, memberID, email, level)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := sequence.CouponCode(discount.CodePrefix)
		if err != nil {
			return nil, false, err
		}

		c := &Coupon{
			Code:     code,
			MemberID: memberID,
			Email:    email,
			Level:    level,
			Percent:  discount.Percent,
			IssuedAt: time.Now().UTC(),
		}
		err = s.db.WithContext(ctx).Create(c).Error
		if err == nil {
			zap.L().Info("[Coupon] issued",
				zap.String("member_id", memberID),
				zap.Int("level", level),
				zap.String("code", code),
			)
			return c, true, nil
		}

		// Either a concurrent issue for the same email and level won, or the
		// random code collided.
		existing, lookupErr := s.existing(ctx, memberID, email, level)
		if lookupErr != nil {
			return nil, false, lookupErr
		}
		if existing != nil {
			return existing, false, nil
		}
		zap.L().Warn("[Coupon] insert failed, retrying with a new code", zap.Int("attempt", attempt+1), zap.Error(err))
	}

	return nil, false, errors.New("coupon: could not allocate a unique code")
}

func (s *Service) existing(ctx context.Context, memberID, email string, level int) (*Coupon, error) {
	var c Coupon
	err := s.db.WithContext(ctx).
		Where("(email = ? OR member_id = ?) AND level = ?", email, memberID, level).
		Order("issued_at ASC").
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Service) ListByMember(ctx context.Context, memberID string) ([]Coupon, error) {
	var out []Coupon
	err := s.db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Order("issued_at DESC").
		Find(&out).Error
	return out, err
}

// MarkUsed flags a coupon as redeemed. It returns false when the code is
// unknown or already used.
func (s *Service) MarkUsed(ctx context.Context, code string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&Coupon{}).
		Where("code = ? AND used = ?", strings.ToUpper(code), false).
		Update("used", true)
	return res.RowsAffected == 1, res.Error
}
