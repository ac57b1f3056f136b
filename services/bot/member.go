package bot

import (
	"context"
	"fmt"

	"storefront-bot/services/reward"
	"storefront-bot/services/ticket"
	"storefront-bot/services/verification"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) handleProfile(ctx context.Context, i *discordgo.Interaction) {
	u := invoker(i)
	rec, err := b.Members.GetByMember(ctx, u.ID)
	if err != nil {
		zap.L().Error("[Bot] profile lookup failed", zap.String("member_id", u.ID), zap.Error(err))
		b.reply(i, errorEmbed("Something went wrong", "Please try again in a moment."))
		return
	}
	if rec == nil {
		b.reply(i, notVerifiedEmbed())
		return
	}

	keys, err := b.Keys.Get(ctx, u.ID)
	if err != nil {
		zap.L().Warn("[Bot] profile keys unavailable", zap.String("member_id", u.ID), zap.Error(err))
	}
	products, err := b.Members.Products(ctx, u.ID)
	if err != nil {
		zap.L().Warn("[Bot] profile products unavailable", zap.String("member_id", u.ID), zap.Error(err))
	}
	coupons, err := b.Coupons.ListByMember(ctx, u.ID)
	if err != nil {
		zap.L().Warn("[Bot] profile coupons unavailable", zap.String("member_id", u.ID), zap.Error(err))
	}

	b.reply(i, profileEmbed(displayName(u), *rec, keys, products, coupons))
}

func (b *Bot) showVerifyModal(i *discordgo.Interaction) {
	err := b.respond.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: VerifyModalID,
			Title:    "Verify your purchase",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID:    emailInputID,
						Label:       "Email used at checkout",
						Style:       discordgo.TextInputShort,
						Placeholder: "you@example.com",
						Required:    true,
						MinLength:   5,
						MaxLength:   254,
					},
				}},
			},
		},
	})
	if err != nil {
		zap.L().Warn("[Bot] verify modal not shown", zap.Error(err))
	}
}

// modalValue returns the value of the text input with the given custom ID.
func modalValue(data discordgo.ModalSubmitInteractionData, id string) string {
	for _, c := range data.Components {
		row, ok := c.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if input, ok := inner.(*discordgo.TextInput); ok && input.CustomID == id {
				return input.Value
			}
		}
	}
	return ""
}

func (b *Bot) handleVerifySubmit(ctx context.Context, i *discordgo.Interaction) {
	if !b.deferReply(i) {
		return
	}
	u := invoker(i)
	email := modalValue(i.ModalSubmitData(), emailInputID)

	res, err := b.Verifier.Verify(ctx, verification.VerifyRequest{MemberID: u.ID, Username: u.Username, Email: email})
	if err != nil {
		zap.L().Error("[Bot] verification failed", zap.String("member_id", u.ID), zap.Error(err))
		b.finish(i, errorEmbed("Verification failed", "Something went wrong on our side. Please try again later."))
		return
	}

	b.finish(i, verifyEmbed(res))
	if res.Outcome != verification.OutcomeVerified {
		return
	}

	if res.Coupon != nil && res.CouponNew {
		b.dm(ctx, u.ID, couponEmbed(res.Coupon.Code, res.Coupon.Percent, res.Record.Level))
	}
	b.audit(ctx, verifiedLogEmbed(u.ID, res))
}

func (b *Bot) handleClaim(ctx context.Context, i *discordgo.Interaction) {
	if !b.deferReply(i) {
		return
	}
	u := invoker(i)

	res, err := b.Rewards.Claim(ctx, u.ID)
	if err != nil {
		zap.L().Error("[Bot] reward claim failed", zap.String("member_id", u.ID), zap.Error(err))
		b.finish(i, errorEmbed("Claim failed", "Failed to use key. Try again."))
		return
	}

	switch res.Outcome {
	case reward.ClaimNotVerified:
		b.finish(i, errorEmbed("Access denied", "Only verified buyers can claim rewards."))
	case reward.ClaimNoKeys:
		keys, _ := b.Keys.Get(ctx, u.ID)
		b.finish(i, noKeysEmbed(keys))
	case reward.ClaimGranted:
		b.finish(i, rewardEmbed(res))
		b.dm(ctx, u.ID, rewardEmbed(res))
		b.audit(ctx, &discordgo.MessageEmbed{
			Title: "Reward claimed",
			Color: colorGold,
			Fields: []*discordgo.MessageEmbedField{
				{Name: "User", Value: mention(u.ID), Inline: true},
				{Name: "Reward", Value: res.Grant.Description, Inline: true},
				{Name: "Code", Value: "`" + res.Grant.Code + "`", Inline: true},
			},
		})
	}
}

func (b *Bot) handleOpenTicket(ctx context.Context, i *discordgo.Interaction, priority bool) {
	if !b.deferReply(i) {
		return
	}
	u := invoker(i)

	res, err := b.Tickets.Open(ctx, ticket.OpenRequest{MemberID: u.ID, Username: u.Username, Priority: priority})
	if err != nil {
		zap.L().Error("[Bot] ticket not opened", zap.String("member_id", u.ID), zap.Error(err))
		b.finish(i, errorEmbed("Ticket not created", "Something went wrong. Please try again later."))
		return
	}
	b.finish(i, openTicketEmbed(res))

	if res.Outcome == ticket.OpenCreated {
		b.audit(ctx, &discordgo.MessageEmbed{
			Title:       "Ticket opened",
			Description: fmt.Sprintf("%s opened <#%s>", mention(u.ID), res.Ticket.ChannelID),
			Color:       colorInfo,
		})
	}
}

func (b *Bot) handleCloseTicket(ctx context.Context, i *discordgo.Interaction) {
	if !b.deferReply(i) {
		return
	}
	u := invoker(i)
	t, err := b.Tickets.Close(ctx, i.ChannelID, u.Username)
	if err != nil {
		b.finish(i, errorEmbed("Ticket not closed", errorMessage(err, "This channel is not an open ticket.")))
		return
	}
	b.audit(ctx, &discordgo.MessageEmbed{
		Title:       "Ticket closed",
		Description: fmt.Sprintf("Ticket of %s closed by %s", mention(t.MemberID), mention(u.ID)),
		Color:       colorInfo,
	})
}

func (b *Bot) handleStatusCheck(ctx context.Context, i *discordgo.Interaction) {
	if !b.deferReply(i) {
		return
	}
	entries, ok := b.Status.Current(ctx)
	if !ok {
		b.finish(i, errorEmbed("Status unavailable", "The status service could not be reached."))
		return
	}
	b.finish(i, statusCheckEmbed(entries))
}
