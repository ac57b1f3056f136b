package ticket

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"storefront-bot/pkg/errutil"
	"storefront-bot/services/catalog"
	"storefront-bot/services/discord"
	"storefront-bot/services/verification"

	"github.com/bwmarrin/discordgo"
	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

const (
	maxChannelName = 90
	colorTicket    = 0x5865F2
	colorPriority  = 0xF1C40F
	colorOperator  = 0x2ECC71
	archiveTimeout = 30 * time.Second
)

type OpenOutcome string

const (
	OpenCreated     OpenOutcome = "created"
	OpenNotVerified OpenOutcome = "not_verified"
	OpenAlreadyOpen OpenOutcome = "already_open"
	OpenNotEligible OpenOutcome = "not_eligible"
)

type OpenRequest struct {
	MemberID string
	Username string
	// Priority asks for a priority ticket, which needs the priority spend.
	Priority bool
}

type OpenResult struct {
	Outcome OpenOutcome
	Ticket  *Ticket
}

// Channels is the Discord surface a ticket needs.
type Channels interface {
	CreatePrivateChannel(ctx context.Context, p discord.PrivateChannel) (string, error)
	ChannelExists(ctx context.Context, channelID string) (bool, error)
	DeleteChannel(ctx context.Context, channelID string) error
	Send(ctx context.Context, channelID string, msg *discordgo.MessageSend) (string, error)
}

type Members interface {
	GetByMember(ctx context.Context, memberID string) (*verification.Record, error)
}

// Subscriber is told about ticket activity. Calls happen synchronously on
// the caller's goroutine, so implementations should not block.
type Subscriber interface {
	TicketOpened(ctx context.Context, t Ticket)
	TicketMessage(ctx context.Context, t Ticket, m Message)
	TicketClosed(ctx context.Context, t Ticket)
}

// Archiver keeps a copy of a closed ticket's transcript.
type Archiver interface {
	Save(ctx context.Context, t Ticket, msgs []Message) (string, error)
}

type Service struct {
	store    Store
	channels Channels
	members  Members
	node     *snowflake.Node
	category string
	archiver Archiver

	mu          sync.RWMutex
	subscribers []Subscriber

	opening memberLocks
}

func NewService(store Store, channels Channels, members Members, node *snowflake.Node, category string) *Service {
	return &Service{store: store, channels: channels, members: members, node: node, category: category}
}

func (s *Service) Subscribe(sub Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, sub)
}

// SetArchiver enables transcript archiving on close.
func (s *Service) SetArchiver(a Archiver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archiver = a
}

func (s *Service) each(fn func(Subscriber)) {
	s.mu.RLock()
	subs := append([]Subscriber(nil), s.subscribers...)
	s.mu.RUnlock()
	for _, sub := range subs {
		fn(sub)
	}
}

// ChannelName is "ticket-<slug(username)>", falling back to the member ID
// when the username has no sluggable characters.
func ChannelName(username, memberID string) string {
	base := slug.Make(username)
	if base == "" {
		base = memberID
	}
	name := "ticket-" + base
	if len(name) > maxChannelName {
		name = strings.TrimRight(name[:maxChannelName], "-")
	}
	return name
}

func Topic(username, email string, spent float64, priority bool) string {
	prefix := ""
	if priority {
		prefix = "[VIP] "
	}
	return fmt.Sprintf("%sTicket from %s | Email: %s | Spent: $%.2f", prefix, username, verification.MaskEmail(email), spent)
}

// Open creates a ticket channel for a verified member. A member has at most
// one active ticket; an active ticket whose channel was deleted by hand is
// closed and replaced.
func (s *Service) Open(ctx context.Context, req OpenRequest) (OpenResult, error) {
	// The active-ticket check and the create must not interleave for one member.
	unlock := s.opening.lock(req.MemberID)
	defer unlock()

	rec, err := s.members.GetByMember(ctx, req.MemberID)
	if err != nil {
		return OpenResult{}, err
	}
	if rec == nil {
		return OpenResult{Outcome: OpenNotVerified}, nil
	}

	existing, err := s.store.ActiveByMember(ctx, req.MemberID)
	if err != nil {
		return OpenResult{}, err
	}
	if existing != nil {
		exists, err := s.channels.ChannelExists(ctx, existing.ChannelID)
		if err != nil || exists {
			return OpenResult{Outcome: OpenAlreadyOpen, Ticket: existing}, nil
		}
		zap.L().Info("[Ticket] closing stale ticket", zap.String("channel_id", existing.ChannelID))
		if _, err := s.store.Close(ctx, existing.ChannelID, "system", time.Now().UTC()); err != nil {
			return OpenResult{}, err
		}
	}

	priority := rec.TotalSpent >= catalog.PrioritySpend
	if req.Priority && !priority {
		return OpenResult{Outcome: OpenNotEligible}, nil
	}

	username := req.Username
	if username == "" {
		username = rec.Username
	}

	channelID, err := s.channels.CreatePrivateChannel(ctx, discord.PrivateChannel{
		Name:     ChannelName(username, req.MemberID),
		Topic:    Topic(username, rec.Email, rec.TotalSpent, priority),
		Category: s.category,
		MemberID: req.MemberID,
	})
	if err != nil {
		return OpenResult{}, fmt.Errorf("create ticket channel: %w", err)
	}

	t := &Ticket{
		ChannelID:     channelID,
		MemberID:      req.MemberID,
		Username:      username,
		Email:         rec.Email,
		TotalSpent:    rec.TotalSpent,
		PurchaseCount: rec.PurchaseCount,
		Level:         rec.Level,
		Priority:      priority,
		Status:        StatusActive,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.Create(ctx, t); err != nil {
		if derr := s.channels.DeleteChannel(ctx, channelID); derr != nil {
			zap.L().Warn("[Ticket] orphaned ticket channel", zap.String("channel_id", channelID), zap.Error(derr))
		}
		return OpenResult{}, err
	}

	if _, err := s.channels.Send(ctx, channelID, welcomeMessage(*t)); err != nil {
		zap.L().Warn("[Ticket] welcome message not sent", zap.String("channel_id", channelID), zap.Error(err))
	}

	zap.L().Info("[Ticket] ticket opened",
		zap.String("channel_id", channelID),
		zap.String("member_id", req.MemberID),
		zap.Bool("priority", priority),
	)

	if t.Priority {
		s.each(func(sub Subscriber) { sub.TicketOpened(ctx, *t) })
	}
	return OpenResult{Outcome: OpenCreated, Ticket: t}, nil
}

func welcomeMessage(t Ticket) *discordgo.MessageSend {
	color, title := colorTicket, "🎫 Support Ticket"
	if t.Priority {
		color, title = colorPriority, "⭐ Priority Support Ticket"
	}
	return &discordgo.MessageSend{
		Content: fmt.Sprintf("<@%s>", t.MemberID),
		Embeds: []*discordgo.MessageEmbed{{
			Title:       title,
			Description: "Describe your issue and a staff member will be with you shortly.",
			Color:       color,
			Fields: []*discordgo.MessageEmbedField{
				{Name: "Level", Value: fmt.Sprintf("%d (%s)", t.Level, catalog.LevelName(t.Level)), Inline: true},
				{Name: "Total spent", Value: fmt.Sprintf("$%.2f", t.TotalSpent), Inline: true},
				{Name: "Purchases", Value: fmt.Sprintf("%d", t.PurchaseCount), Inline: true},
			},
		}},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{Label: "Close Ticket", Style: discordgo.DangerButton, CustomID: CloseButtonID},
			}},
		},
	}
}

// Button custom IDs shared with the Discord front-end.
const (
	OpenButtonID     = "ticket_open"
	PriorityButtonID = "ticket_priority"
	CloseButtonID    = "ticket_close"
)

// Record stores a message posted in a ticket channel by the ticket owner or
// by staff. It reports false when the channel is not an active ticket.
func (s *Service) Record(ctx context.Context, channelID, senderID, senderName, content string) (bool, error) {
	t, err := s.store.Get(ctx, channelID)
	if err != nil {
		return false, err
	}
	if t == nil || !t.Active() {
		return false, nil
	}
	sender := SenderStaff
	if senderID == t.MemberID {
		sender = SenderUser
	}
	m, err := s.addMessage(ctx, channelID, senderID, senderName, content, sender)
	if err != nil {
		return false, err
	}
	if t.Priority {
		s.each(func(sub Subscriber) { sub.TicketMessage(ctx, *t, *m) })
	}
	return true, nil
}

func (s *Service) addMessage(ctx context.Context, channelID, senderID, senderName, content string, sender SenderType) (*Message, error) {
	m := &Message{
		ID:         s.node.Generate(),
		ChannelID:  channelID,
		SenderID:   senderID,
		SenderName: senderName,
		SenderType: sender,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.AddMessage(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Reply posts a staff or operator message into the ticket channel and adds
// it to the transcript.
func (s *Service) Reply(ctx context.Context, channelID, senderName, content string, sender SenderType) (*Message, error) {
	t, err := s.activeTicket(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, errutil.BadRequest("message content is empty", nil)
	}

	label := "Staff"
	if sender == SenderOperator {
		label = "Support (via Telegram)"
	}
	if _, err := s.channels.Send(ctx, channelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Author:      &discordgo.MessageEmbedAuthor{Name: fmt.Sprintf("%s · %s", senderName, label)},
			Description: content,
			Color:       colorOperator,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		}},
	}); err != nil {
		return nil, errutil.BadGateway("failed to post message to ticket channel", err)
	}

	m, err := s.addMessage(ctx, channelID, "", senderName, content, sender)
	if err != nil {
		return nil, err
	}
	zap.L().Debug("[Ticket] reply posted", zap.String("channel_id", t.ChannelID), zap.String("sender_type", string(sender)))
	return m, nil
}

// Close marks the ticket closed, tells subscribers and removes the channel.
func (s *Service) Close(ctx context.Context, channelID, closedBy string) (*Ticket, error) {
	t, err := s.activeTicket(ctx, channelID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	closed, err := s.store.Close(ctx, channelID, closedBy, now)
	if err != nil {
		return nil, err
	}
	if !closed {
		return nil, errutil.NotFound("ticket is not open", nil)
	}
	t.Status, t.ClosedAt, t.ClosedBy = StatusClosed, &now, closedBy

	zap.L().Info("[Ticket] ticket closed", zap.String("channel_id", channelID), zap.String("closed_by", closedBy))
	if t.Priority {
		s.each(func(sub Subscriber) { sub.TicketClosed(ctx, *t) })
	}

	s.mu.RLock()
	archiver := s.archiver
	s.mu.RUnlock()
	if archiver != nil {
		go s.archive(archiver, *t)
	}

	if err := s.channels.DeleteChannel(ctx, channelID); err != nil {
		zap.L().Warn("[Ticket] failed to delete ticket channel", zap.String("channel_id", channelID), zap.Error(err))
	}
	return t, nil
}

func (s *Service) archive(a Archiver, t Ticket) {
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()

	msgs, err := s.store.Messages(ctx, t.ChannelID, 0)
	if err != nil {
		zap.L().Error("[Ticket] transcript not loaded", zap.String("channel_id", t.ChannelID), zap.Error(err))
		return
	}
	name, err := a.Save(ctx, t, msgs)
	if err != nil {
		zap.L().Error("[Ticket] transcript not archived", zap.String("channel_id", t.ChannelID), zap.Error(err))
		return
	}
	zap.L().Info("[Ticket] transcript archived", zap.String("channel_id", t.ChannelID), zap.String("object", name), zap.Int("messages", len(msgs)))
}

func (s *Service) activeTicket(ctx context.Context, channelID string) (*Ticket, error) {
	t, err := s.store.Get(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if t == nil || !t.Active() {
		return nil, errutil.NotFound("no active ticket in this channel", nil)
	}
	return t, nil
}

func (s *Service) Get(ctx context.Context, channelID string) (*Ticket, error) {
	return s.store.Get(ctx, channelID)
}

func (s *Service) Active(ctx context.Context) ([]Ticket, error) {
	return s.store.ListActive(ctx)
}

// ActivePriority lists the open tickets the operator console can join.
func (s *Service) ActivePriority(ctx context.Context) ([]Ticket, error) {
	all, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, t := range all {
		if t.Priority {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Service) Messages(ctx context.Context, channelID string, limit int) ([]Message, error) {
	return s.store.Messages(ctx, channelID, limit)
}

// MessagePage returns the transcript in pages of limit, starting after the
// message ID in after (zero for the first page).
func (s *Service) MessagePage(ctx context.Context, channelID string, after snowflake.ID, limit int) ([]Message, error) {
	return s.store.MessagesAfter(ctx, channelID, after, limit)
}

func (s *Service) BindTelegramChat(ctx context.Context, channelID string, chatID int64) error {
	return s.store.SetTelegramChat(ctx, channelID, chatID)
}
