package ticket

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

type SenderType string

const (
	SenderUser     SenderType = "user"
	SenderStaff    SenderType = "staff"
	SenderOperator SenderType = "operator"
)

// Ticket is a support conversation bound to one private channel.
type Ticket struct {
	ChannelID      string     `gorm:"primaryKey" bson:"_id" json:"channel_id"`
	MemberID       string     `gorm:"index:idx_ticket_member_status" bson:"member_id" json:"member_id"`
	Username       string     `bson:"username" json:"username"`
	Email          string     `bson:"email" json:"email"`
	TotalSpent     float64    `bson:"total_spent" json:"total_spent"`
	PurchaseCount  int        `bson:"purchase_count" json:"purchase_count"`
	Level          int        `bson:"level" json:"level"`
	Priority       bool       `bson:"priority" json:"priority"`
	Status         Status     `gorm:"index:idx_ticket_member_status" bson:"status" json:"status"`
	TelegramChatID int64      `bson:"telegram_chat_id,omitempty" json:"telegram_chat_id,omitempty"`
	CreatedAt      time.Time  `bson:"created_at" json:"created_at"`
	ClosedAt       *time.Time `bson:"closed_at,omitempty" json:"closed_at,omitempty"`
	ClosedBy       string     `bson:"closed_by,omitempty" json:"closed_by,omitempty"`
}

func (Ticket) TableName() string { return "tickets" }

func (t Ticket) Active() bool { return t.Status == StatusActive }

type Message struct {
	ID         snowflake.ID `gorm:"primaryKey;autoIncrement:false" bson:"_id" json:"id,string"`
	ChannelID  string       `gorm:"index" bson:"channel_id" json:"channel_id"`
	SenderID   string       `bson:"sender_id" json:"sender_id"`
	SenderName string       `bson:"sender_name" json:"sender_name"`
	SenderType SenderType   `bson:"sender_type" json:"sender_type"`
	Content    string       `bson:"content" json:"content"`
	CreatedAt  time.Time    `bson:"created_at" json:"created_at"`
}

func (Message) TableName() string { return "ticket_messages" }

func Models() []any {
	return []any{&Ticket{}, &Message{}}
}
