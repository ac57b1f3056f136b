package loyalty

import "time"

// Record is a member's loyalty key account.
// KeysBalance always equals TotalKeysEarned - TotalKeysUsed and never drops below zero.
// PurchaseKeysEarned is the part of TotalKeysEarned that came from purchases;
// admin gifts are not counted there.
type Record struct {
	MemberID           string     `gorm:"column:member_id;primaryKey;size:32" json:"member_id"`
	KeysBalance        int        `gorm:"column:keys_balance;not null;default:0" json:"keys_balance"`
	TotalKeysEarned    int        `gorm:"column:total_keys_earned;not null;default:0" json:"total_keys_earned"`
	PurchaseKeysEarned int        `gorm:"column:purchase_keys_earned;not null;default:0" json:"purchase_keys_earned"`
	TotalKeysUsed      int        `gorm:"column:total_keys_used;not null;default:0" json:"total_keys_used"`
	LastKeyEarnedAt    *time.Time `gorm:"column:last_key_earned_at" json:"last_key_earned_at,omitempty"`
	CreatedAt          time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (Record) TableName() string { return "loyalty_records" }
