// Package bot is the Discord front-end: slash commands, panel buttons, the
// verification modal and the ticket message relay. Handlers only translate
// between Discord interactions and the domain services.
package bot

import (
	"context"
	"time"

	"storefront-bot/services/coupon"
	"storefront-bot/services/customer"
	"storefront-bot/services/loyalty"
	"storefront-bot/services/membersync"
	"storefront-bot/services/reward"
	"storefront-bot/services/role"
	"storefront-bot/services/status"
	"storefront-bot/services/ticket"
	"storefront-bot/services/verification"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const handlerTimeout = 2 * time.Minute

// Responder acknowledges interactions. *discordgo.Session satisfies it.
type Responder interface {
	InteractionRespond(i *discordgo.Interaction, r *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(i *discordgo.Interaction, e *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type Verifier interface {
	Verify(ctx context.Context, req verification.VerifyRequest) (verification.VerifyResult, error)
	Unlink(ctx context.Context, req verification.UnlinkRequest) (*verification.Record, role.Result, error)
}

type Members interface {
	GetByMember(ctx context.Context, memberID string) (*verification.Record, error)
	GetByEmail(ctx context.Context, email string) (*verification.Record, error)
	Products(ctx context.Context, memberID string) ([]string, error)
}

type Keys interface {
	Get(ctx context.Context, memberID string) (loyalty.Record, error)
	AddKeys(ctx context.Context, memberID string, n int) (int, error)
}

type Rewards interface {
	Claim(ctx context.Context, memberID string) (reward.ClaimResult, error)
}

type Coupons interface {
	ListByMember(ctx context.Context, memberID string) ([]coupon.Coupon, error)
}

type Tickets interface {
	Open(ctx context.Context, req ticket.OpenRequest) (ticket.OpenResult, error)
	Close(ctx context.Context, channelID, closedBy string) (*ticket.Ticket, error)
	Record(ctx context.Context, channelID, senderID, senderName, content string) (bool, error)
}

type Syncer interface {
	RequestSync(ctx context.Context, requestedBy, channelID string) (string, error)
	CheckProducts(ctx context.Context, memberID string) (*membersync.ProductCheck, error)
}

type Cache interface {
	Stats() customer.Stats
	Refresh(ctx context.Context) error
	ClearOrderCache() int
}

type Roles interface {
	EnsureRoles(ctx context.Context) ([]string, error)
}

type Status interface {
	Refresh(ctx context.Context) error
	Current(ctx context.Context) ([]status.Entry, bool)
}

// Guild is the outbound Discord surface used outside interaction replies.
type Guild interface {
	DirectMessage(ctx context.Context, userID string, msg *discordgo.MessageSend) error
	Send(ctx context.Context, channelID string, msg *discordgo.MessageSend) (string, error)
	BotMessages(ctx context.Context, channelID string, limit int) ([]string, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	EnsureTextChannel(ctx context.Context, name, topic, category string) (string, bool, error)
}

type Deps struct {
	Verifier Verifier
	Members  Members
	Keys     Keys
	Rewards  Rewards
	Coupons  Coupons
	Tickets  Tickets
	Sync     Syncer
	Cache    Cache
	Roles    Roles
	Status   Status
	Guild    Guild
	// LogChannelID receives audit embeds; empty disables them.
	LogChannelID string
}

type Bot struct {
	Deps
	respond Responder
	// base is cancelled on shutdown so in-flight handlers stop early.
	base context.Context
}

func New(d Deps, respond Responder, base context.Context) *Bot {
	return &Bot{Deps: d, respond: respond, base: base}
}

// OnInteraction is the discordgo handler for every interaction type.
func (b *Bot) OnInteraction(_ *discordgo.Session, ic *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(b.base, handlerTimeout)
	defer cancel()
	b.Dispatch(ctx, ic.Interaction)
}

// Dispatch routes one interaction. Panics are contained to the interaction.
func (b *Bot) Dispatch(ctx context.Context, i *discordgo.Interaction) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("[Bot] interaction handler panicked", zap.Any("panic", r), zap.String("interaction_id", i.ID))
		}
	}()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(ctx, i)
	case discordgo.InteractionMessageComponent:
		b.handleComponent(ctx, i)
	case discordgo.InteractionModalSubmit:
		if i.ModalSubmitData().CustomID == VerifyModalID {
			b.handleVerifySubmit(ctx, i)
		}
	}
}

func (b *Bot) handleCommand(ctx context.Context, i *discordgo.Interaction) {
	data := i.ApplicationCommandData()
	if data.Name != cmdProfile && !isAdmin(i) {
		b.reply(i, errorEmbed("Insufficient permissions", "This command is for administrators."))
		return
	}
	opts := optionMap(data.Options)

	switch data.Name {
	case cmdProfile:
		b.handleProfile(ctx, i)
	case cmdUnlink:
		b.handleUnlink(ctx, i, opts)
	case cmdLookup:
		b.handleLookup(ctx, i, opts)
	case cmdSync:
		b.handleSync(ctx, i)
	case cmdGiveKeys:
		b.handleGiveKeys(ctx, i, opts)
	case cmdCheckProducts:
		b.handleCheckProducts(ctx, i, opts)
	case cmdSetup:
		b.handleSetup(ctx, i)
	case cmdUpdateStatus:
		b.handleUpdateStatus(ctx, i)
	case cmdCache:
		b.handleCache(ctx, i, opts)
	default:
		zap.L().Warn("[Bot] unknown command", zap.String("name", data.Name))
	}
}

func (b *Bot) handleComponent(ctx context.Context, i *discordgo.Interaction) {
	switch id := i.MessageComponentData().CustomID; id {
	case VerifyButtonID:
		b.showVerifyModal(i)
	case ticket.OpenButtonID:
		b.handleOpenTicket(ctx, i, false)
	case ticket.PriorityButtonID:
		b.handleOpenTicket(ctx, i, true)
	case ticket.CloseButtonID:
		b.handleCloseTicket(ctx, i)
	case ClaimButtonID:
		b.handleClaim(ctx, i)
	case status.CheckButtonID:
		b.handleStatusCheck(ctx, i)
	default:
		zap.L().Warn("[Bot] unknown component", zap.String("custom_id", id))
	}
}

// OnMessage stores messages posted in ticket channels.
func (b *Bot) OnMessage(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" || m.Content == "" {
		return
	}
	ctx, cancel := context.WithTimeout(b.base, 30*time.Second)
	defer cancel()

	name := displayName(m.Author)
	if m.Member != nil && m.Member.Nick != "" {
		name = m.Member.Nick
	}
	if _, err := b.Tickets.Record(ctx, m.ChannelID, m.Author.ID, name, m.Content); err != nil {
		zap.L().Warn("[Bot] failed to record ticket message", zap.String("channel_id", m.ChannelID), zap.Error(err))
	}
}

// reply answers an interaction with an ephemeral embed.
func (b *Bot) reply(i *discordgo.Interaction, embed *discordgo.MessageEmbed) {
	err := b.respond.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		zap.L().Warn("[Bot] interaction reply failed", zap.String("interaction_id", i.ID), zap.Error(err))
	}
}

// deferReply acknowledges an interaction whose answer takes longer than the
// three seconds Discord allows; finish delivers the answer.
func (b *Bot) deferReply(i *discordgo.Interaction) bool {
	err := b.respond.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		zap.L().Warn("[Bot] interaction defer failed", zap.String("interaction_id", i.ID), zap.Error(err))
		return false
	}
	return true
}

func (b *Bot) finish(i *discordgo.Interaction, embeds ...*discordgo.MessageEmbed) {
	if _, err := b.respond.InteractionResponseEdit(i, &discordgo.WebhookEdit{Embeds: &embeds}); err != nil {
		zap.L().Warn("[Bot] interaction edit failed", zap.String("interaction_id", i.ID), zap.Error(err))
	}
}

// audit posts to the log channel, if one is configured.
func (b *Bot) audit(ctx context.Context, embed *discordgo.MessageEmbed) {
	if b.LogChannelID == "" {
		return
	}
	if _, err := b.Guild.Send(ctx, b.LogChannelID, &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}}); err != nil {
		zap.L().Warn("[Bot] audit log not posted", zap.Error(err))
	}
}

func (b *Bot) dm(ctx context.Context, userID string, embed *discordgo.MessageEmbed) bool {
	if err := b.Guild.DirectMessage(ctx, userID, &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}}); err != nil {
		zap.L().Info("[Bot] direct message not delivered", zap.String("member_id", userID), zap.Error(err))
		return false
	}
	return true
}
