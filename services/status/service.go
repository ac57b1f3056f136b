package status

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	historyScan  = 20
	deleteSpacer = 500 * time.Millisecond
	snapshotID   = 1
)

// Snapshot is the last successful status API response.
type Snapshot struct {
	ID        uint `gorm:"primaryKey"`
	Entries   datatypes.JSON
	FetchedAt time.Time
}

func (Snapshot) TableName() string { return "status_snapshots" }

type Fetcher interface {
	Fetch(ctx context.Context) ([]Entry, error)
}

type Poster interface {
	BotMessages(ctx context.Context, channelID string, limit int) ([]string, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	Send(ctx context.Context, channelID string, msg *discordgo.MessageSend) (string, error)
}

type Service struct {
	db        *gorm.DB
	fetcher   Fetcher
	poster    Poster
	channelID string
	spacer    time.Duration
	now       func() time.Time
}

func NewService(db *gorm.DB, fetcher Fetcher, poster Poster, channelID string) *Service {
	return &Service{db: db, fetcher: fetcher, poster: poster, channelID: channelID, spacer: deleteSpacer, now: time.Now}
}

// CheckButtonID is the custom ID of the dashboard's refresh button.
const CheckButtonID = "status_check"

// Refresh fetches the status API and replaces the dashboard messages. When
// the API is down the last stored snapshot is rendered instead.
func (s *Service) Refresh(ctx context.Context) error {
	if s.channelID == "" {
		return errors.New("status channel not configured")
	}

	entries, stale := s.entries(ctx)

	ids, err := s.poster.BotMessages(ctx, s.channelID, historyScan)
	if err != nil {
		zap.L().Warn("[Status] failed to read channel history", zap.Error(err))
	}
	for i, id := range ids {
		if i > 0 && s.spacer > 0 {
			select {
			case <-time.After(s.spacer):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := s.poster.DeleteMessage(ctx, s.channelID, id); err != nil {
			zap.L().Warn("[Status] failed to delete previous dashboard", zap.String("message_id", id), zap.Error(err))
		}
	}

	_, err = s.poster.Send(ctx, s.channelID, &discordgo.MessageSend{
		Embeds: Embeds(entries, s.now(), stale),
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{Label: "Check Status", Style: discordgo.SecondaryButton, CustomID: CheckButtonID},
			}},
		},
	})
	if err != nil {
		return err
	}
	zap.L().Info("[Status] dashboard refreshed", zap.Int("entries", len(entries)), zap.Bool("stale", stale))
	return nil
}

// Current returns live entries, falling back to the stored snapshot.
func (s *Service) Current(ctx context.Context) ([]Entry, bool) {
	return s.entries(ctx)
}

func (s *Service) entries(ctx context.Context) ([]Entry, bool) {
	entries, err := s.fetcher.Fetch(ctx)
	if err == nil {
		s.save(ctx, entries)
		return entries, false
	}
	zap.L().Warn("[Status] status api unavailable", zap.Error(err))

	var snap Snapshot
	if err := s.db.WithContext(ctx).First(&snap, snapshotID).Error; err != nil {
		return nil, true
	}
	if err := json.Unmarshal(snap.Entries, &entries); err != nil {
		return nil, true
	}
	return entries, true
}

func (s *Service) save(ctx context.Context, entries []Entry) {
	raw, err := json.Marshal(entries)
	if err != nil {
		return
	}
	snap := Snapshot{ID: snapshotID, Entries: datatypes.JSON(raw), FetchedAt: s.now().UTC()}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"entries", "fetched_at"}),
	}).Create(&snap).Error
	if err != nil {
		zap.L().Warn("[Status] failed to store snapshot", zap.Error(err))
	}
}
