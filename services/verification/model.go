package verification

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Action string

const (
	ActionVerify      Action = "verify"
	ActionUnlink      Action = "unlink"
	ActionAdminUnlink Action = "admin_unlink"
)

// Record links one member to one lower-cased email.
type Record struct {
	MemberID      string    `gorm:"column:member_id;primaryKey;size:32" json:"member_id"`
	Email         string    `gorm:"column:email;uniqueIndex;size:320;not null" json:"email"`
	Username      string    `gorm:"column:username;size:100" json:"username"`
	TotalSpent    float64   `gorm:"column:total_spent;not null;default:0" json:"total_spent"`
	PurchaseCount int       `gorm:"column:purchase_count;not null;default:0" json:"purchase_count"`
	Level         int       `gorm:"column:level;not null;default:0" json:"level"`
	VerifiedAt    time.Time `gorm:"column:verified_at" json:"verified_at"`
	LastUpdated   time.Time `gorm:"column:last_updated" json:"last_updated"`
}

func (Record) TableName() string { return "verified_members" }

// Log is the append-only audit trail of verification attempts.
type Log struct {
	ID        snowflake.ID      `gorm:"column:id;primaryKey;autoIncrement:false" json:"id"`
	MemberID  string            `gorm:"column:member_id;index;size:32" json:"member_id"`
	Username  string            `gorm:"column:username;size:100" json:"username"`
	Email     string            `gorm:"column:email;index;size:320" json:"email"`
	Action    Action            `gorm:"column:action;type:varchar(32);not null" json:"action"`
	Success   bool              `gorm:"column:success" json:"success"`
	Details   datatypes.JSONMap `gorm:"column:details" json:"details,omitempty"`
	CreatedAt time.Time         `gorm:"column:created_at" json:"created_at"`
}

func (Log) TableName() string { return "verification_logs" }

// KeyClaimHistory counts purchase keys ever credited to an email. It outlives
// the verification link so a relink cannot collect the same keys twice.
type KeyClaimHistory struct {
	Email       string    `gorm:"column:email;primaryKey;size:320" json:"email"`
	KeysClaimed int       `gorm:"column:keys_claimed;not null;default:0" json:"keys_claimed"`
	UpdatedAt   time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (KeyClaimHistory) TableName() string { return "key_claim_histories" }

type ProductOwnership struct {
	MemberID   string    `gorm:"column:member_id;primaryKey;size:32" json:"member_id"`
	ProductID  string    `gorm:"column:product_id;primaryKey;size:32" json:"product_id"`
	DetectedAt time.Time `gorm:"column:detected_at" json:"detected_at"`
}

func (ProductOwnership) TableName() string { return "product_ownerships" }

// Models lists every table owned by this package.
func Models() []any {
	return []any{&Record{}, &Log{}, &KeyClaimHistory{}, &ProductOwnership{}}
}
