package ticket

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Store persists tickets and their transcripts.
type Store interface {
	Create(ctx context.Context, t *Ticket) error
	Get(ctx context.Context, channelID string) (*Ticket, error)
	ActiveByMember(ctx context.Context, memberID string) (*Ticket, error)
	ListActive(ctx context.Context) ([]Ticket, error)
	// Close marks an active ticket closed. It reports false when the ticket
	// was not active.
	Close(ctx context.Context, channelID, closedBy string, at time.Time) (bool, error)
	SetTelegramChat(ctx context.Context, channelID string, chatID int64) error
	AddMessage(ctx context.Context, m *Message) error
	Messages(ctx context.Context, channelID string, limit int) ([]Message, error)
	// MessagesAfter returns up to limit messages with an ID above after, in
	// ID order.
	MessagesAfter(ctx context.Context, channelID string, after snowflake.ID, limit int) ([]Message, error)
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Create(ctx context.Context, t *Ticket) error {
	return s.db.WithContext(ctx).Create(t).Error
}

func (s *GormStore) Get(ctx context.Context, channelID string) (*Ticket, error) {
	return s.first(ctx, "channel_id = ?", channelID)
}

func (s *GormStore) ActiveByMember(ctx context.Context, memberID string) (*Ticket, error) {
	return s.first(ctx, "member_id = ? AND status = ?", memberID, StatusActive)
}

func (s *GormStore) first(ctx context.Context, query string, args ...any) (*Ticket, error) {
	var t Ticket
	err := s.db.WithContext(ctx).Where(query, args...).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *GormStore) ListActive(ctx context.Context) ([]Ticket, error) {
	var out []Ticket
	err := s.db.WithContext(ctx).
		Where("status = ?", StatusActive).
		Order("priority DESC, created_at ASC").
		Find(&out).Error
	return out, err
}

func (s *GormStore) Close(ctx context.Context, channelID, closedBy string, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&Ticket{}).
		Where("channel_id = ? AND status = ?", channelID, StatusActive).
		Updates(map[string]any{"status": StatusClosed, "closed_at": at, "closed_by": closedBy})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) SetTelegramChat(ctx context.Context, channelID string, chatID int64) error {
	return s.db.WithContext(ctx).Model(&Ticket{}).
		Where("channel_id = ?", channelID).
		Update("telegram_chat_id", chatID).Error
}

func (s *GormStore) AddMessage(ctx context.Context, m *Message) error {
	return s.db.WithContext(ctx).Create(m).Error
}

// Messages returns the transcript oldest first; limit <= 0 means all.
func (s *GormStore) Messages(ctx context.Context, channelID string, limit int) ([]Message, error) {
	q := s.db.WithContext(ctx).Where("channel_id = ?", channelID).Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []Message
	err := q.Find(&out).Error
	return out, err
}

func (s *GormStore) MessagesAfter(ctx context.Context, channelID string, after snowflake.ID, limit int) ([]Message, error) {
	var out []Message
	err := s.db.WithContext(ctx).
		Where("channel_id = ? AND id > ?", channelID, after).
		Order("id ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
