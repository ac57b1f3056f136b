package relay

import "time"

// Operator is a Telegram user allowed to work priority tickets.
type Operator struct {
	TelegramID   int64  `gorm:"primaryKey;autoIncrement:false"`
	Username     string
	ChatID       int64
	ChatChannel  string
	AuthorizedAt time.Time
	UpdatedAt    time.Time
}

func (Operator) TableName() string { return "relay_operators" }
