package relay

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"storefront-bot/pkg/errutil"
	"storefront-bot/services/ticket"
	"storefront-bot/services/verification"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const transcriptPreview = 10

// Sender is the part of the Telegram Bot API the relay writes through.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Tickets interface {
	Get(ctx context.Context, channelID string) (*ticket.Ticket, error)
	ActivePriority(ctx context.Context) ([]ticket.Ticket, error)
	Messages(ctx context.Context, channelID string, limit int) ([]ticket.Message, error)
	Reply(ctx context.Context, channelID, senderName, content string, sender ticket.SenderType) (*ticket.Message, error)
	Close(ctx context.Context, channelID, closedBy string) (*ticket.Ticket, error)
	BindTelegramChat(ctx context.Context, channelID string, chatID int64) error
}

// Service bridges priority tickets to a Telegram operator console. With no
// Sender it is inert: ticket events are dropped and nothing is polled.
type Service struct {
	db      *gorm.DB
	sender  Sender
	tickets Tickets
	secret  string

	mu sync.Mutex
}

func NewService(db *gorm.DB, sender Sender, tickets Tickets, secret string) *Service {
	return &Service{db: db, sender: sender, tickets: tickets, secret: secret}
}

func (s *Service) Enabled() bool { return s.sender != nil }

func (s *Service) reply(chatID int64, text string) {
	if s.sender == nil {
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := s.sender.Send(msg); err != nil {
		zap.L().Warn("[Relay] failed to send telegram message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// HandleUpdate processes one Telegram update. Only private text messages
// are handled.
func (s *Service) HandleUpdate(ctx context.Context, u tgbotapi.Update) {
	msg := u.Message
	if msg == nil || msg.From == nil || msg.Chat == nil || msg.Text == "" {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("[Relay] update handler panicked", zap.Any("panic", r))
		}
	}()

	if msg.IsCommand() {
		s.handleCommand(ctx, msg)
		return
	}

	op, err := s.operator(ctx, msg.From.ID)
	if err != nil {
		zap.L().Error("[Relay] operator lookup failed", zap.Error(err))
		return
	}
	if op == nil {
		s.reply(msg.Chat.ID, "Not authorized. Use /auth <secret>.")
		return
	}
	if op.ChatChannel == "" {
		s.reply(msg.Chat.ID, "You are not in a ticket. Use /tickets and /chat <channel>.")
		return
	}

	if _, err := s.tickets.Reply(ctx, op.ChatChannel, operatorName(msg.From), msg.Text, ticket.SenderOperator); err != nil {
		if errutil.HasStatus(err, errutil.StatusNotFound) {
			s.setChat(ctx, op.TelegramID, "")
			s.reply(msg.Chat.ID, "That ticket is closed. Chat mode ended.")
			return
		}
		zap.L().Warn("[Relay] operator reply failed", zap.String("channel_id", op.ChatChannel), zap.Error(err))
		s.reply(msg.Chat.ID, "Message not delivered: "+err.Error())
	}
}

func operatorName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return u.UserName
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (s *Service) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		s.reply(chatID, helpText)
		return
	case "auth":
		s.authorize(ctx, msg, args)
		return
	}

	op, err := s.operator(ctx, msg.From.ID)
	if err != nil {
		zap.L().Error("[Relay] operator lookup failed", zap.Error(err))
		return
	}
	if op == nil {
		s.reply(chatID, "Not authorized. Use /auth <secret>.")
		return
	}

	switch msg.Command() {
	case "tickets":
		s.listTickets(ctx, chatID)
	case "chat":
		s.enterChat(ctx, op, chatID, args)
	case "exit":
		s.setChat(ctx, op.TelegramID, "")
		s.reply(chatID, "Left chat mode.")
	case "close":
		channelID := args
		if channelID == "" {
			channelID = op.ChatChannel
		}
		if channelID == "" {
			s.reply(chatID, "Usage: /close <channel>")
			return
		}
		if _, err := s.tickets.Close(ctx, channelID, "telegram:"+operatorName(msg.From)); err != nil {
			s.reply(chatID, "Could not close ticket: "+err.Error())
			return
		}
		if op.ChatChannel == channelID {
			s.setChat(ctx, op.TelegramID, "")
		}
		s.reply(chatID, "Ticket "+channelID+" closed.")
	case "logout":
		if err := s.db.WithContext(ctx).Delete(&Operator{}, "telegram_id = ?", op.TelegramID).Error; err != nil {
			zap.L().Error("[Relay] logout failed", zap.Error(err))
			return
		}
		s.reply(chatID, "Logged out.")
	default:
		s.reply(chatID, helpText)
	}
}

const helpText = `Ticket relay commands:
/auth <secret> - authorize this account
/tickets - list open priority tickets
/chat <channel> - relay your messages into a ticket
/exit - leave chat mode
/close <channel> - close a ticket
/logout - revoke this account`

func (s *Service) authorize(ctx context.Context, msg *tgbotapi.Message, secret string) {
	if s.secret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(s.secret)) != 1 {
		zap.L().Warn("[Relay] rejected authorization attempt", zap.Int64("telegram_id", msg.From.ID))
		s.reply(msg.Chat.ID, "Invalid secret.")
		return
	}

	now := time.Now().UTC()
	op := Operator{
		TelegramID:   msg.From.ID,
		Username:     operatorName(msg.From),
		ChatID:       msg.Chat.ID,
		AuthorizedAt: now,
		UpdatedAt:    now,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "telegram_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "chat_id", "updated_at"}),
	}).Create(&op).Error
	if err != nil {
		zap.L().Error("[Relay] failed to store operator", zap.Error(err))
		s.reply(msg.Chat.ID, "Authorization failed, try again later.")
		return
	}
	zap.L().Info("[Relay] operator authorized", zap.Int64("telegram_id", op.TelegramID), zap.String("username", op.Username))
	s.reply(msg.Chat.ID, "Authorized. You will receive priority ticket notifications.\n\n"+helpText)
}

func (s *Service) listTickets(ctx context.Context, chatID int64) {
	tickets, err := s.tickets.ActivePriority(ctx)
	if err != nil {
		s.reply(chatID, "Could not load tickets.")
		return
	}
	if len(tickets) == 0 {
		s.reply(chatID, "No open priority tickets.")
		return
	}
	var b strings.Builder
	b.WriteString("Open priority tickets:\n")
	for _, t := range tickets {
		fmt.Fprintf(&b, "\n%s  %s  $%.2f  (opened %s)", t.ChannelID, t.Username, t.TotalSpent, t.CreatedAt.Format("Jan 2 15:04"))
	}
	s.reply(chatID, b.String())
}

func (s *Service) enterChat(ctx context.Context, op *Operator, chatID int64, channelID string) {
	if channelID == "" {
		s.reply(chatID, "Usage: /chat <channel>")
		return
	}
	t, err := s.tickets.Get(ctx, channelID)
	if err != nil {
		s.reply(chatID, "Could not load ticket.")
		return
	}
	if t == nil || !t.Active() {
		s.reply(chatID, "No open ticket with that channel.")
		return
	}
	s.setChat(ctx, op.TelegramID, channelID)
	if err := s.tickets.BindTelegramChat(ctx, channelID, chatID); err != nil {
		zap.L().Warn("[Relay] failed to bind telegram chat", zap.Error(err))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Now chatting in ticket %s (%s, %s).\nMessages you send are relayed. /exit to leave.", t.ChannelID, t.Username, verification.MaskEmail(t.Email))
	if msgs, err := s.tickets.Messages(ctx, channelID, 0); err == nil && len(msgs) > 0 {
		if len(msgs) > transcriptPreview {
			msgs = msgs[len(msgs)-transcriptPreview:]
		}
		b.WriteString("\n\nRecent messages:")
		for _, m := range msgs {
			fmt.Fprintf(&b, "\n[%s] %s: %s", m.SenderType, m.SenderName, m.Content)
		}
	}
	s.reply(chatID, b.String())
}

func (s *Service) operator(ctx context.Context, telegramID int64) (*Operator, error) {
	var op Operator
	err := s.db.WithContext(ctx).First(&op, "telegram_id = ?", telegramID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &op, nil
}

func (s *Service) setChat(ctx context.Context, telegramID int64, channelID string) {
	err := s.db.WithContext(ctx).Model(&Operator{}).
		Where("telegram_id = ?", telegramID).
		Updates(map[string]any{"chat_channel": channelID, "updated_at": time.Now().UTC()}).Error
	if err != nil {
		zap.L().Warn("[Relay] failed to update chat mode", zap.Error(err))
	}
}

func (s *Service) operators(ctx context.Context) []Operator {
	var ops []Operator
	if err := s.db.WithContext(ctx).Find(&ops).Error; err != nil {
		zap.L().Warn("[Relay] failed to list operators", zap.Error(err))
	}
	return ops
}

func (s *Service) broadcast(ctx context.Context, text string, only func(Operator) bool) {
	if s.sender == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, op := range s.operators(ctx) {
		if only != nil && !only(op) {
			continue
		}
		s.reply(op.ChatID, text)
	}
}

func (s *Service) TicketOpened(ctx context.Context, t ticket.Ticket) {
	s.broadcast(ctx, fmt.Sprintf("⭐ New priority ticket %s\nFrom: %s\nEmail: %s\nSpent: $%.2f (level %d)\n\n/chat %s",
		t.ChannelID, t.Username, verification.MaskEmail(t.Email), t.TotalSpent, t.Level, t.ChannelID), nil)
}

// TicketMessage forwards member messages to operators chatting in that
// ticket, or to everyone when nobody has joined it yet.
func (s *Service) TicketMessage(ctx context.Context, t ticket.Ticket, m ticket.Message) {
	text := fmt.Sprintf("💬 %s in %s:\n%s", m.SenderName, t.ChannelID, m.Content)
	joined := false
	for _, op := range s.operators(ctx) {
		if op.ChatChannel == t.ChannelID {
			joined = true
			break
		}
	}
	if !joined {
		s.broadcast(ctx, text, nil)
		return
	}
	s.broadcast(ctx, text, func(op Operator) bool { return op.ChatChannel == t.ChannelID })
}

func (s *Service) TicketClosed(ctx context.Context, t ticket.Ticket) {
	s.broadcast(ctx, fmt.Sprintf("✅ Ticket %s (%s) closed by %s", t.ChannelID, t.Username, t.ClosedBy), nil)
	err := s.db.WithContext(ctx).Model(&Operator{}).
		Where("chat_channel = ?", t.ChannelID).
		Update("chat_channel", "").Error
	if err != nil {
		zap.L().Warn("[Relay] failed to reset chat mode", zap.Error(err))
	}
}
