package bot

import (
	"context"
	"fmt"
	"strings"

	"storefront-bot/pkg/errutil"
	"storefront-bot/services/verification"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// findMember resolves the user or email option of a lookup-style command.
func (b *Bot) findMember(ctx context.Context, opts options) (*verification.Record, error) {
	if id := opts.user("user"); id != "" {
		return b.Members.GetByMember(ctx, id)
	}
	if email := opts.string("email"); email != "" {
		return b.Members.GetByEmail(ctx, email)
	}
	return nil, errutil.BadRequest("provide a user or an email", nil)
}

func (b *Bot) handleUnlink(ctx context.Context, i *discordgo.Interaction, opts options) {
	memberID, email := opts.user("user"), opts.string("email")
	if memberID == "" && email == "" {
		b.reply(i, errorEmbed("Nothing to unlink", "Provide a user or an email."))
		return
	}
	if !b.deferReply(i) {
		return
	}

	actor := invoker(i)
	rec, res, err := b.Verifier.Unlink(ctx, verification.UnlinkRequest{
		MemberID: memberID,
		Email:    email,
		Actor:    actor.Username,
		Admin:    true,
	})
	if err != nil {
		b.finish(i, errorEmbed("Unlink failed", errorMessage(err, "Could not unlink this member.")))
		return
	}

	embed := &discordgo.MessageEmbed{
		Title: "Member unlinked",
		Color: colorSuccess,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Member", Value: mention(rec.MemberID), Inline: true},
			{Name: "Email", Value: "`" + rec.Email + "`", Inline: true},
			{Name: "Roles removed", Value: listOr(res.Removed, "None"), Inline: false},
		},
	}
	b.finish(i, embed)
	b.audit(ctx, &discordgo.MessageEmbed{
		Title:       "Admin unlink",
		Description: fmt.Sprintf("%s unlinked %s (`%s`)", mention(actor.ID), mention(rec.MemberID), verification.MaskEmail(rec.Email)),
		Color:       colorWarning,
	})
}

func (b *Bot) handleLookup(ctx context.Context, i *discordgo.Interaction, opts options) {
	rec, err := b.findMember(ctx, opts)
	if err != nil {
		b.reply(i, errorEmbed("Lookup failed", errorMessage(err, "Could not read the member.")))
		return
	}
	if rec == nil {
		b.reply(i, errorEmbed("Not found", "No verification matches that user or email."))
		return
	}
	keys, err := b.Keys.Get(ctx, rec.MemberID)
	if err != nil {
		zap.L().Warn("[Bot] lookup keys unavailable", zap.String("member_id", rec.MemberID), zap.Error(err))
	}
	b.reply(i, lookupEmbed(*rec, keys))
}

func (b *Bot) handleSync(ctx context.Context, i *discordgo.Interaction) {
	u := invoker(i)
	id, err := b.Sync.RequestSync(ctx, u.Username, i.ChannelID)
	if err != nil {
		b.reply(i, errorEmbed("Sync not started", errorMessage(err, "The sync could not be queued.")))
		return
	}
	b.reply(i, &discordgo.MessageEmbed{
		Title:       "Sync queued",
		Description: "Every verified member will be re-checked. The report will be posted in this channel.",
		Color:       colorInfo,
		Footer:      &discordgo.MessageEmbedFooter{Text: "Request " + id},
	})
}

func (b *Bot) handleGiveKeys(ctx context.Context, i *discordgo.Interaction, opts options) {
	memberID, amount := opts.user("user"), opts.int("amount")
	if memberID == "" || amount < 1 {
		b.reply(i, errorEmbed("Invalid request", "Pick a member and an amount of at least 1."))
		return
	}

	balance, err := b.Keys.AddKeys(ctx, memberID, amount)
	if err != nil {
		zap.L().Error("[Bot] keys not granted", zap.String("member_id", memberID), zap.Error(err))
		b.reply(i, errorEmbed("Keys not granted", "The loyalty ledger could not be updated."))
		return
	}

	b.reply(i, &discordgo.MessageEmbed{
		Title:       "Keys given",
		Description: fmt.Sprintf("Gave **%d** key(s) to %s. New balance: **%d**.", amount, mention(memberID), balance),
		Color:       colorSuccess,
	})
	b.dm(ctx, memberID, &discordgo.MessageEmbed{
		Title:       "Loyalty Keys Received!",
		Description: fmt.Sprintf("An administrator gave you **%d** loyalty key(s).", amount),
		Color:       colorGold,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Balance", Value: fmt.Sprintf("%d", balance), Inline: true},
		},
	})
	b.audit(ctx, &discordgo.MessageEmbed{
		Title:       "Keys given",
		Description: fmt.Sprintf("%s gave %d key(s) to %s", mention(invoker(i).ID), amount, mention(memberID)),
		Color:       colorGold,
	})
}

func (b *Bot) handleCheckProducts(ctx context.Context, i *discordgo.Interaction, opts options) {
	memberID := opts.user("user")
	if !b.deferReply(i) {
		return
	}
	check, err := b.Sync.CheckProducts(ctx, memberID)
	if err != nil {
		zap.L().Error("[Bot] product check failed", zap.String("member_id", memberID), zap.Error(err))
		b.finish(i, errorEmbed("Check failed", "The member's products could not be checked."))
		return
	}
	if check == nil {
		b.finish(i, errorEmbed("Not verified", mention(memberID)+" has no verification."))
		return
	}

	b.finish(i, &discordgo.MessageEmbed{
		Title: "Product check",
		Color: colorInfo,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Member", Value: mention(memberID), Inline: false},
			{Name: "Products found", Value: listOr(check.Found, "None"), Inline: false},
			{Name: "Newly detected", Value: listOr(check.New, "None"), Inline: true},
			{Name: "Roles added", Value: listOr(check.Roles.Added, "None"), Inline: true},
			{Name: "Roles failed", Value: listOr(check.Roles.Failed, "None"), Inline: true},
		},
	})
}

func (b *Bot) handleUpdateStatus(ctx context.Context, i *discordgo.Interaction) {
	if !b.deferReply(i) {
		return
	}
	if err := b.Status.Refresh(ctx); err != nil {
		b.finish(i, errorEmbed("Status not updated", errorMessage(err, "The dashboard could not be refreshed.")))
		return
	}
	b.finish(i, &discordgo.MessageEmbed{Title: "Status updated", Color: colorSuccess})
}

func (b *Bot) handleCache(ctx context.Context, i *discordgo.Interaction, opts options) {
	switch opts.string("action") {
	case cacheActionStats:
		b.reply(i, cacheEmbed(b.Cache.Stats()))
	case cacheActionClear:
		n := b.Cache.ClearOrderCache()
		b.reply(i, &discordgo.MessageEmbed{
			Title:       "Order cache cleared",
			Description: fmt.Sprintf("Dropped %d cached order list(s).", n),
			Color:       colorSuccess,
		})
	case cacheActionRefresh:
		if !b.deferReply(i) {
			return
		}
		if err := b.Cache.Refresh(ctx); err != nil {
			b.finish(i, errorEmbed("Reload failed", errorMessage(err, "The customer list could not be reloaded.")))
			return
		}
		b.finish(i, cacheEmbed(b.Cache.Stats()))
	default:
		b.reply(i, errorEmbed("Unknown action", "Pick one of the listed actions."))
	}
}

func (b *Bot) handleSetup(ctx context.Context, i *discordgo.Interaction) {
	if !b.deferReply(i) {
		return
	}

	var lines []string
	created, err := b.Roles.EnsureRoles(ctx)
	if err != nil {
		zap.L().Error("[Bot] roles not ensured", zap.Error(err))
		lines = append(lines, "❌ Roles: "+err.Error())
	} else {
		lines = append(lines, fmt.Sprintf("✅ Roles ready (%d created)", len(created)))
	}

	for _, p := range Panels() {
		line, err := b.installPanel(ctx, p)
		if err != nil {
			zap.L().Error("[Bot] panel not installed", zap.String("channel", p.Channel), zap.Error(err))
			line = fmt.Sprintf("❌ #%s: %v", p.Channel, err)
		}
		lines = append(lines, line)
	}

	if err := b.Status.Refresh(ctx); err != nil {
		lines = append(lines, "⚠️ Status dashboard: "+errorMessage(err, "not refreshed"))
	}

	b.finish(i, &discordgo.MessageEmbed{
		Title:       "Setup finished",
		Description: strings.Join(lines, "\n"),
		Color:       colorSuccess,
	})
}

// installPanel makes sure the panel channel exists and holds exactly one
// current copy of the panel.
func (b *Bot) installPanel(ctx context.Context, p Panel) (string, error) {
	channelID, created, err := b.Guild.EnsureTextChannel(ctx, p.Channel, p.Topic, p.Category)
	if err != nil {
		return "", err
	}
	old, err := b.Guild.BotMessages(ctx, channelID, 50)
	if err != nil {
		return "", err
	}
	for _, id := range old {
		if err := b.Guild.DeleteMessage(ctx, channelID, id); err != nil {
			zap.L().Warn("[Bot] old panel not deleted", zap.String("channel_id", channelID), zap.Error(err))
		}
	}
	if _, err := b.Guild.Send(ctx, channelID, p.Message()); err != nil {
		return "", err
	}
	if created {
		return fmt.Sprintf("✅ #%s created", p.Channel), nil
	}
	return fmt.Sprintf("✅ #%s refreshed", p.Channel), nil
}
